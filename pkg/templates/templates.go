package templates

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdxmph/leafscan/pkg/session"
)

// Variables holds all the available template variables
type Variables struct {
	Filename    string
	Preview     string // path to the local preview image
	Label       string
	Confidence  string // percent, two decimals
	Severity    string
	Description string
	Remedy      string
}

var (
	// Match %variable% or %var1|var2|var3%
	templatePattern = regexp.MustCompile(`%([a-z_]+(?:\|[a-z_]+)*)%`)
)

// Process renders a template with the given variables
func Process(template string, vars Variables) string {
	return templatePattern.ReplaceAllStringFunc(template, func(match string) string {
		content := strings.Trim(match, "%")

		// Fallback chain: first non-empty value wins
		for _, part := range strings.Split(content, "|") {
			if value := getVariable(part, vars); value != "" {
				return value
			}
		}
		return ""
	})
}

// getVariable returns the value of a single variable
func getVariable(name string, vars Variables) string {
	switch name {
	case "filename":
		return vars.Filename
	case "preview":
		return vars.Preview
	case "label":
		return vars.Label
	case "confidence":
		return vars.Confidence
	case "severity":
		return vars.Severity
	case "description":
		return vars.Description
	case "remedy":
		return vars.Remedy
	default:
		return ""
	}
}

// BuildVariables creates template variables from a session entry
func BuildVariables(e session.Entry) Variables {
	filename := filepath.Base(e.Name)
	return Variables{
		Filename:    strings.TrimSuffix(filename, filepath.Ext(filename)),
		Preview:     e.Preview.Path,
		Label:       e.Label,
		Confidence:  e.Confidence,
		Severity:    e.Info.Severity.String(),
		Description: e.Info.Description,
		Remedy:      e.Info.Remedy,
	}
}
