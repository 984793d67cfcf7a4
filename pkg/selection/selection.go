// Package selection tracks the files a user has chosen for classification
// and owns the preview references created for them.
package selection

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/pdxmph/leafscan/pkg/blob"
	"github.com/pdxmph/leafscan/pkg/preview"
)

// DefaultLimit caps how many files one selection may hold
const DefaultLimit = 20

// ErrTooManyFiles is returned when a selection exceeds the manager's limit
var ErrTooManyFiles = errors.New("too many files selected")

// Item is one selected file together with its preview
type Item struct {
	Blob    blob.Blob
	Preview preview.Ref
}

// PreviewError reports an item skipped because its preview could not be made
type PreviewError struct {
	Name string
	Err  error
}

func (e *PreviewError) Error() string {
	return fmt.Sprintf("skipped %s: %v", e.Name, e.Err)
}

func (e *PreviewError) Unwrap() error { return e.Err }

// Manager holds the current selection. Every preview it acquires is
// released exactly once, when the selection is replaced or on Close.
type Manager struct {
	alloc preview.Allocator
	items []Item
	limit int
	log   *slog.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithLimit caps the number of files per selection. Zero means no limit.
func WithLimit(n int) Option {
	return func(m *Manager) { m.limit = n }
}

// NewManager creates an empty selection backed by alloc, limited to
// DefaultLimit files unless an option says otherwise
func NewManager(alloc preview.Allocator, log *slog.Logger, opts ...Option) *Manager {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	m := &Manager{alloc: alloc, limit: DefaultLimit, log: log}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Select replaces the current selection with files. Items whose preview
// cannot be acquired are left out and reported in the returned error;
// the rest are still selected. More files than the limit is rejected with
// ErrTooManyFiles and leaves the current selection untouched.
func (m *Manager) Select(files []blob.Blob) error {
	if m.limit > 0 && len(files) > m.limit {
		return fmt.Errorf("%w: %d selected, limit is %d", ErrTooManyFiles, len(files), m.limit)
	}

	releaseErr := m.releaseAll()

	items := make([]Item, 0, len(files))
	var skipped []error
	for _, f := range files {
		ref, err := m.alloc.Acquire(f)
		if err != nil {
			m.log.Warn("skipping file without preview", "name", f.Name(), "err", err)
			if !errors.Is(err, preview.ErrPreviewUnavailable) {
				err = fmt.Errorf("%w: %w", preview.ErrPreviewUnavailable, err)
			}
			skipped = append(skipped, &PreviewError{Name: f.Name(), Err: err})
			continue
		}
		items = append(items, Item{Blob: f, Preview: ref})
	}
	m.items = items
	m.log.Debug("selection replaced", "selected", len(items), "skipped", len(skipped))

	return errors.Join(append([]error{releaseErr}, skipped...)...)
}

// Items returns a copy of the current selection in order
func (m *Manager) Items() []Item {
	out := make([]Item, len(m.items))
	copy(out, m.items)
	return out
}

// Len returns the number of selected items
func (m *Manager) Len() int {
	return len(m.items)
}

// Close releases every outstanding preview. Calling it again is a no-op.
func (m *Manager) Close() error {
	return m.releaseAll()
}

func (m *Manager) releaseAll() error {
	var errs []error
	for _, it := range m.items {
		if err := m.alloc.Release(it.Preview); err != nil {
			errs = append(errs, fmt.Errorf("release preview for %s: %w", it.Blob.Name(), err))
		}
	}
	m.items = nil
	return errors.Join(errs...)
}
