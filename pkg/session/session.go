// Package session ties a selection, its classification results and a busy
// flag together for one user.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/pdxmph/leafscan/pkg/blob"
	"github.com/pdxmph/leafscan/pkg/classify"
	"github.com/pdxmph/leafscan/pkg/disease"
	"github.com/pdxmph/leafscan/pkg/preview"
	"github.com/pdxmph/leafscan/pkg/selection"
)

var (
	// ErrBusy is returned when a submission is already in flight
	ErrBusy = errors.New("submission already in progress")

	// ErrClosed is returned when selecting or submitting on a closed session
	ErrClosed = errors.New("session closed")
)

// Submitter runs the classification pipeline over a selection
type Submitter interface {
	SubmitWithProgress(ctx context.Context, items []selection.Item, fn func(classify.Progress)) ([]classify.Result, error)
}

// Entry is one result joined with its disease info, ready for display
type Entry struct {
	classify.Result
	Info  disease.Info `json:"info"`
	Known bool         `json:"known"`
}

// Session owns the current selection, the results derived from it, and the
// busy flag
type Session struct {
	ID string

	mu        sync.Mutex
	selection *selection.Manager
	submitter Submitter
	results   []classify.Result
	busy      bool
	closed    bool
	log       *slog.Logger
}

// New creates an empty session. opts configure its selection.
func New(id string, alloc preview.Allocator, submitter Submitter, log *slog.Logger, opts ...selection.Option) *Session {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{
		ID:        id,
		selection: selection.NewManager(alloc, log, opts...),
		submitter: submitter,
		log:       log,
	}
}

// Select replaces the selection and clears any previous results. A
// selection rejected for its size keeps both.
func (s *Session) Select(files []blob.Blob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: %s", ErrClosed, s.ID)
	}
	if s.busy {
		return ErrBusy
	}
	err := s.selection.Select(files)
	if errors.Is(err, selection.ErrTooManyFiles) {
		return err
	}
	s.results = nil
	return err
}

// Items returns the current selection
func (s *Session) Items() []selection.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Items()
}

// Submit classifies the current selection. The busy flag is held for the
// whole call; results are only stored when every item succeeded.
func (s *Session) Submit(ctx context.Context, progress func(classify.Progress)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrClosed, s.ID)
	}
	if s.selection.Len() == 0 {
		s.mu.Unlock()
		return nil
	}
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	s.busy = true
	items := s.selection.Items()
	s.mu.Unlock()

	s.log.Debug("submitting selection", "session", s.ID, "items", len(items))
	results, err := s.submitter.SubmitWithProgress(ctx, items, progress)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if err != nil {
		s.results = nil
		return err
	}
	s.results = results
	return nil
}

// Busy reports whether a submission is in flight
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Results returns the results of the last successful submission
func (s *Session) Results() []classify.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]classify.Result, len(s.results))
	copy(out, s.results)
	return out
}

// Snapshot joins the results with their disease info
func (s *Session) Snapshot() []Entry {
	results := s.Results()
	entries := make([]Entry, 0, len(results))
	for _, r := range results {
		info, known := disease.Lookup(r.Label)
		entries = append(entries, Entry{Result: r, Info: info, Known: known})
	}
	return entries
}

// Close releases the selection's previews. Close while busy is refused.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	s.closed = true
	s.results = nil
	return s.selection.Close()
}
