package gui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/pdxmph/leafscan/pkg/blob"
	"github.com/pdxmph/leafscan/pkg/classify"
	"github.com/pdxmph/leafscan/pkg/disease"
	"github.com/pdxmph/leafscan/pkg/preview"
	"github.com/pdxmph/leafscan/pkg/selection"
	"github.com/pdxmph/leafscan/pkg/session"
)

// Server handles GUI protocol communication
type Server struct {
	input     io.Reader
	encMu     sync.Mutex
	encoder   *json.Encoder
	alloc     preview.Allocator
	submitter session.Submitter
	maxFiles  int
	log       *slog.Logger

	// Session management
	sessions sync.Map // sessionID -> *session.Session
	inflight sync.WaitGroup
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithMaxFiles caps the files per session selection. Zero means no limit.
func WithMaxFiles(n int) ServerOption {
	return func(s *Server) { s.maxFiles = n }
}

// NewServer creates a new GUI protocol server
func NewServer(input io.Reader, output io.Writer, alloc preview.Allocator, submitter session.Submitter, log *slog.Logger, opts ...ServerOption) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		input:     input,
		encoder:   json.NewEncoder(output),
		alloc:     alloc,
		submitter: submitter,
		maxFiles:  selection.DefaultLimit,
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts the server loop. It returns on EOF or as soon as ctx is done,
// after in-flight submissions finish and every session is closed.
func (s *Server) Run(ctx context.Context) error {
	defer s.shutdown()

	done := make(chan struct{})
	defer close(done)
	incoming := s.readMessages(done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in := <-incoming:
			if in.err != nil {
				if in.err == io.EOF {
					return nil
				}
				s.sendError("", fmt.Sprintf("Invalid JSON: %v", in.err), CodeParseError)
				if fatalDecodeError(in.err) {
					return fmt.Errorf("decode message: %w", in.err)
				}
				continue
			}

			s.handleMessage(ctx, &in.msg)
		}
	}
}

type decoded struct {
	msg Message
	err error
}

// readMessages decodes input on its own goroutine so Run can watch ctx
// while stdin is idle. The goroutine stops after a fatal error or once done
// is closed.
func (s *Server) readMessages(done <-chan struct{}) <-chan decoded {
	out := make(chan decoded)
	go func() {
		decoder := json.NewDecoder(s.input)
		for {
			var in decoded
			in.err = decoder.Decode(&in.msg)
			select {
			case out <- in:
			case <-done:
				return
			}
			if in.err != nil && (in.err == io.EOF || fatalDecodeError(in.err)) {
				return
			}
		}
	}()
	return out
}

// fatalDecodeError reports errors the decoder cannot resync after
func fatalDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	return errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

// handleMessage routes messages to appropriate handlers
func (s *Server) handleMessage(ctx context.Context, msg *Message) {
	s.log.Debug("message received", "command", msg.Command, "id", msg.ID)
	switch msg.Command {
	case CmdSelect:
		s.handleSelect(msg)
	case CmdSubmit:
		s.handleSubmit(ctx, msg)
	case CmdLookup:
		s.handleLookup(msg)
	case CmdClose:
		s.handleClose(msg)
	default:
		s.sendError(msg.ID, fmt.Sprintf("Unknown command: %s", msg.Command), CodeUnknownCommand)
	}
}

// handleSelect replaces the selection of a new or existing session
func (s *Server) handleSelect(msg *Message) {
	var req SelectRequest
	if err := decodeData(msg.Data, &req); err != nil {
		s.sendError(msg.ID, "Invalid select request", CodeInvalidRequest)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	sess := s.session(sessionID, true)

	// Missing files never reach the selection
	var skipped []SkippedFile
	paths := make([]string, 0, len(req.Files))
	for _, path := range req.Files {
		if _, err := os.Stat(path); err != nil {
			skipped = append(skipped, SkippedFile{Path: path, Reason: "file not found"})
			continue
		}
		paths = append(paths, path)
	}

	err := sess.Select(blob.Files(paths))
	if errors.Is(err, session.ErrBusy) {
		s.sendError(msg.ID, "Submission in progress", CodeBusy)
		return
	}
	if errors.Is(err, selection.ErrTooManyFiles) {
		s.sendResponse(msg.ID, ErrorResponse{Error: "Too many files", Code: CodeTooManyFiles, Details: err.Error()})
		return
	}
	if err != nil {
		s.log.Warn("selection incomplete", "session", sessionID, "err", err)
	}

	selected := make(map[string]bool)
	files := make([]FileInfo, 0, len(paths))
	for _, item := range sess.Items() {
		path := blob.PathOf(item.Blob)
		selected[path] = true
		fi := FileInfo{
			Path:    path,
			Name:    filepath.Base(path),
			Preview: item.Preview.Path,
			Width:   item.Preview.Width,
			Height:  item.Preview.Height,
		}
		if info, err := os.Stat(path); err == nil {
			fi.Size = info.Size()
			fi.Modified = info.ModTime()
		}
		files = append(files, fi)
	}
	for _, path := range paths {
		if !selected[path] {
			skipped = append(skipped, SkippedFile{Path: path, Reason: "preview unavailable"})
		}
	}

	s.sendResponse(msg.ID, SelectResponse{
		SessionID: sessionID,
		Files:     files,
		Skipped:   skipped,
	})
}

// handleSubmit classifies the session's selection in the background
func (s *Server) handleSubmit(ctx context.Context, msg *Message) {
	var req SubmitRequest
	if err := decodeData(msg.Data, &req); err != nil {
		s.sendError(msg.ID, "Invalid submit request", CodeInvalidRequest)
		return
	}

	sess := s.session(req.SessionID, false)
	if sess == nil {
		s.sendError(msg.ID, "Session not found", CodeSessionNotFound)
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.performSubmit(ctx, sess, msg.ID)
	}()
}

// performSubmit runs one submission and reports progress as events
func (s *Server) performSubmit(ctx context.Context, sess *session.Session, messageID string) {
	err := sess.Submit(ctx, func(p classify.Progress) {
		eventType := EventProgress
		if p.Status == classify.StatusError {
			eventType = EventError
		}
		s.sendEvent(eventType, ProgressEvent{SessionID: sess.ID, Progress: p})
	})

	switch {
	case errors.Is(err, session.ErrBusy):
		s.sendError(messageID, "Submission in progress", CodeBusy)
		return
	case err != nil:
		s.log.Error("submission failed", "session", sess.ID, "err", err)
		s.sendResponse(messageID, ErrorResponse{
			Error:   "Upload failed",
			Code:    CodeUploadFailed,
			Details: err.Error(),
		})
		return
	}

	entries := sess.Snapshot()
	s.sendEvent(EventComplete, CompleteEvent{SessionID: sess.ID, Count: len(entries)})
	s.sendResponse(messageID, SubmitResponse{
		SessionID: sess.ID,
		Success:   true,
		Results:   entries,
	})
}

// handleLookup answers with the static info for a label
func (s *Server) handleLookup(msg *Message) {
	var req LookupRequest
	if err := decodeData(msg.Data, &req); err != nil {
		s.sendError(msg.ID, "Invalid lookup request", CodeInvalidRequest)
		return
	}
	info, known := disease.Lookup(req.Label)
	s.sendResponse(msg.ID, LookupResponse{Label: req.Label, Known: known, Info: info})
}

// handleClose releases a session
func (s *Server) handleClose(msg *Message) {
	var req CloseRequest
	if err := decodeData(msg.Data, &req); err != nil {
		s.sendError(msg.ID, "Invalid close request", CodeInvalidRequest)
		return
	}

	sess := s.session(req.SessionID, false)
	if sess == nil {
		s.sendError(msg.ID, "Session not found", CodeSessionNotFound)
		return
	}

	err := sess.Close()
	if errors.Is(err, session.ErrBusy) {
		s.sendError(msg.ID, "Submission in progress", CodeBusy)
		return
	}
	s.sessions.Delete(req.SessionID)
	if err != nil {
		s.sendResponse(msg.ID, ErrorResponse{Error: "Close failed", Code: CodeCloseFailed, Details: err.Error()})
		return
	}
	s.sendResponse(msg.ID, CloseResponse{SessionID: req.SessionID, Closed: true})
}

// shutdown waits for submissions and closes every session
func (s *Server) shutdown() {
	s.inflight.Wait()
	s.sessions.Range(func(key, value interface{}) bool {
		if err := value.(*session.Session).Close(); err != nil {
			s.log.Warn("closing session", "session", key, "err", err)
		}
		s.sessions.Delete(key)
		return true
	})
}

// Helper methods

func (s *Server) session(id string, create bool) *session.Session {
	if v, ok := s.sessions.Load(id); ok {
		return v.(*session.Session)
	}
	if !create || id == "" {
		return nil
	}
	v, _ := s.sessions.LoadOrStore(id, session.New(id, s.alloc, s.submitter, s.log, selection.WithLimit(s.maxFiles)))
	return v.(*session.Session)
}

func (s *Server) sendResponse(id string, data interface{}) {
	s.send(Message{
		Type: TypeResponse,
		Data: data,
		ID:   id,
	})
}

func (s *Server) sendEvent(eventType string, data interface{}) {
	s.send(Message{
		Type:    TypeEvent,
		Command: eventType,
		Data:    data,
	})
}

func (s *Server) sendError(id string, message string, code string) {
	s.sendResponse(id, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func (s *Server) send(msg Message) {
	s.encMu.Lock()
	defer s.encMu.Unlock()
	if err := s.encoder.Encode(&msg); err != nil {
		s.log.Error("write message", "err", err)
	}
}

func decodeData(data interface{}, target interface{}) error {
	// Re-encode and decode to handle interface{} -> struct conversion
	bytes, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, target)
}
