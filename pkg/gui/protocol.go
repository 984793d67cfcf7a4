package gui

import (
	"time"

	"github.com/pdxmph/leafscan/pkg/classify"
	"github.com/pdxmph/leafscan/pkg/disease"
	"github.com/pdxmph/leafscan/pkg/session"
)

// Message types
const (
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeEvent    = "event"
)

// Commands
const (
	CmdSelect = "select" // GUI → CLI: user picked these files
	CmdSubmit = "submit" // GUI → CLI: classify the current selection
	CmdLookup = "lookup" // GUI → CLI: severity/remedy for a label
	CmdClose  = "close"  // GUI → CLI: user is done with the session
)

// Event types
const (
	EventProgress = "progress"
	EventComplete = "complete"
	EventError    = "error"
)

// Error codes
const (
	CodeParseError      = "PARSE_ERROR"
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeSessionNotFound = "SESSION_NOT_FOUND"
	CodeUnknownCommand  = "UNKNOWN_COMMAND"
	CodeBusy            = "BUSY"
	CodeTooManyFiles    = "TOO_MANY_FILES"
	CodeUploadFailed    = "UPLOAD_FAILED"
	CodeCloseFailed     = "CLOSE_FAILED"
)

// Message wraps all communication
type Message struct {
	Type    string      `json:"type"`    // request, response, event
	Command string      `json:"command"` // select, submit, lookup, close
	Data    interface{} `json:"data"`
	ID      string      `json:"id,omitempty"`
}

// SelectRequest replaces a session's selection. An empty SessionID starts
// a new session; an unknown one creates a session with that ID.
type SelectRequest struct {
	SessionID string   `json:"sessionId,omitempty"`
	Files     []string `json:"files"`
}

// SelectResponse lists what was actually selected
type SelectResponse struct {
	SessionID string        `json:"sessionId"`
	Files     []FileInfo    `json:"files"`
	Skipped   []SkippedFile `json:"skipped,omitempty"`
}

// FileInfo contains basic file information and its preview
type FileInfo struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Preview  string    `json:"preview,omitempty"`
	Width    int       `json:"width,omitempty"`
	Height   int       `json:"height,omitempty"`
}

// SkippedFile is a requested file left out of the selection
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// SubmitRequest classifies a session's selection
type SubmitRequest struct {
	SessionID string `json:"sessionId"`
}

// SubmitResponse carries the ordered results
type SubmitResponse struct {
	SessionID string          `json:"sessionId"`
	Success   bool            `json:"success"`
	Results   []session.Entry `json:"results"`
}

// ProgressEvent - progress updates during a submission
type ProgressEvent struct {
	SessionID string `json:"sessionId"`
	classify.Progress
}

// CompleteEvent is sent once a submission has finished successfully
type CompleteEvent struct {
	SessionID string `json:"sessionId"`
	Count     int    `json:"count"`
}

// LookupRequest asks for the static info of a label
type LookupRequest struct {
	Label string `json:"label"`
}

// LookupResponse - severity, description and remedy
type LookupResponse struct {
	Label string       `json:"label"`
	Known bool         `json:"known"`
	Info  disease.Info `json:"info"`
}

// CloseRequest ends a session and releases its previews
type CloseRequest struct {
	SessionID string `json:"sessionId"`
}

// CloseResponse confirms a closed session
type CloseResponse struct {
	SessionID string `json:"sessionId"`
	Closed    bool   `json:"closed"`
}

// ErrorResponse - Error response for any command
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`    // Error code for GUI handling
	Details string `json:"details,omitempty"` // Technical details
}
