package types

import "github.com/pdxmph/leafscan/pkg/session"

// BatchResponse is the JSON output of `leafscan predict --json`
type BatchResponse struct {
	Success bool           `json:"success"`
	Results []ResultOutput `json:"results"`
	Skipped []string       `json:"skipped,omitempty"` // files without a preview
	Error   *string        `json:"error"`
}

// ResultOutput is one classified image
type ResultOutput struct {
	Path        string  `json:"path"`
	Class       string  `json:"class"`
	Confidence  string  `json:"confidence"`
	Fraction    float64 `json:"fraction"`
	Severity    string  `json:"severity"`
	Description string  `json:"description,omitempty"`
	Remedy      string  `json:"remedy,omitempty"`
	Known       bool    `json:"known"`
}

// NewResultOutput flattens a session entry. path is the file as the user
// gave it.
func NewResultOutput(path string, e session.Entry) ResultOutput {
	return ResultOutput{
		Path:        path,
		Class:       e.Label,
		Confidence:  e.Confidence,
		Fraction:    e.Fraction,
		Severity:    e.Info.Severity.String(),
		Description: e.Info.Description,
		Remedy:      e.Info.Remedy,
		Known:       e.Known,
	}
}

// Failure builds an unsuccessful response
func Failure(err error, skipped []string) BatchResponse {
	msg := err.Error()
	return BatchResponse{
		Success: false,
		Results: []ResultOutput{},
		Skipped: skipped,
		Error:   &msg,
	}
}
