// Package preview manages preview references: small local renderings of a
// selected image that must be released once the selection moves on.
package preview

import (
	"errors"

	"github.com/pdxmph/leafscan/pkg/blob"
)

var (
	// ErrPreviewUnavailable is returned when a preview cannot be produced
	ErrPreviewUnavailable = errors.New("preview unavailable")

	// ErrNotOutstanding is returned when releasing a ref that was never
	// acquired or has already been released
	ErrNotOutstanding = errors.New("preview not outstanding")
)

// Ref is a handle to a displayable rendering of a blob
type Ref struct {
	ID     string `json:"id"`
	Path   string `json:"path,omitempty"`
	Width  int    `json:"width,omitempty"` // source image size
	Height int    `json:"height,omitempty"`
	MD5    string `json:"md5,omitempty"`
}

// IsZero reports whether the ref was never assigned
func (r Ref) IsZero() bool {
	return r.ID == ""
}

// Allocator creates and releases preview references
type Allocator interface {
	Acquire(b blob.Blob) (Ref, error)
	Release(ref Ref) error
}
