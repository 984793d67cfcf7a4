// Package render draws classification results for the terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pdxmph/leafscan/pkg/classify"
	"github.com/pdxmph/leafscan/pkg/disease"
	"github.com/pdxmph/leafscan/pkg/session"
)

var (
	badgeBase = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Bold(true).
			Padding(0, 1)

	badgeLow    = badgeBase.Background(lipgloss.Color("#4caf50"))
	badgeMedium = badgeBase.Background(lipgloss.Color("#ff9800"))
	badgeHigh   = badgeBase.Background(lipgloss.Color("#f44336"))

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#8a8a8a")).
			Padding(0, 1).
			Width(60)

	labelStyle   = lipgloss.NewStyle().Bold(true)
	headingStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8a8a8a"))
)

// Badge renders a coloured severity tag
func Badge(s disease.Severity) string {
	text := strings.ToUpper(s.String())
	switch s {
	case disease.High:
		return badgeHigh.Render(text)
	case disease.Medium:
		return badgeMedium.Render(text)
	default:
		return badgeLow.Render(text)
	}
}

// Card renders a single result with its description and remedy
func Card(e session.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", dimStyle.Render(e.Name))
	fmt.Fprintf(&b, "%s  %s\n", labelStyle.Render(e.Label), Badge(e.Info.Severity))
	fmt.Fprintf(&b, "Confidence: %s%%", e.Confidence)
	if e.Info.Description != "" {
		fmt.Fprintf(&b, "\n\n%s\n%s", headingStyle.Render("Description"), e.Info.Description)
	}
	if e.Info.Remedy != "" {
		fmt.Fprintf(&b, "\n\n%s\n%s", headingStyle.Render("Remedy"), e.Info.Remedy)
	}
	return cardStyle.Render(b.String())
}

// Results renders every entry, one card per result
func Results(entries []session.Entry) string {
	cards := make([]string, 0, len(entries))
	for _, e := range entries {
		cards = append(cards, Card(e))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

// ProgressLine renders a one-line status for a pipeline progress event
func ProgressLine(p classify.Progress) string {
	prefix := dimStyle.Render(fmt.Sprintf("[%d/%d]", p.Index+1, p.Total))
	switch p.Status {
	case classify.StatusUploading:
		return fmt.Sprintf("%s Classifying %s...", prefix, p.Name)
	case classify.StatusComplete:
		return fmt.Sprintf("%s %s done", prefix, p.Name)
	case classify.StatusError:
		return fmt.Sprintf("%s %s failed: %s", prefix, p.Name, p.Message)
	default:
		return fmt.Sprintf("%s %s %s", prefix, p.Name, p.Status)
	}
}
