// Package previewtest provides a reference-counting preview allocator for tests.
package previewtest

import (
	"fmt"
	"sync"

	"github.com/pdxmph/leafscan/pkg/blob"
	"github.com/pdxmph/leafscan/pkg/preview"
)

// CountingAllocator hands out in-memory refs and records every release
type CountingAllocator struct {
	// Fail, when set, makes Acquire fail for names it returns true for
	Fail func(name string) bool

	mu       sync.Mutex
	next     int
	live     map[string]bool
	releases map[string]int
	acquired int
}

// NewCountingAllocator returns an allocator with no outstanding refs
func NewCountingAllocator() *CountingAllocator {
	return &CountingAllocator{
		live:     make(map[string]bool),
		releases: make(map[string]int),
	}
}

func (c *CountingAllocator) Acquire(b blob.Blob) (preview.Ref, error) {
	if c.Fail != nil && c.Fail(b.Name()) {
		return preview.Ref{}, fmt.Errorf("%w: %s", preview.ErrPreviewUnavailable, b.Name())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	c.acquired++
	id := fmt.Sprintf("ref-%d", c.next)
	c.live[id] = true
	return preview.Ref{ID: id, Path: "mem://" + b.Name()}, nil
}

func (c *CountingAllocator) Release(ref preview.Ref) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releases[ref.ID]++
	if !c.live[ref.ID] {
		return fmt.Errorf("%w: %s", preview.ErrNotOutstanding, ref.ID)
	}
	delete(c.live, ref.ID)
	return nil
}

// Outstanding returns the number of refs acquired but not released
func (c *CountingAllocator) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.live)
}

// Acquired returns the total number of successful acquisitions
func (c *CountingAllocator) Acquired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquired
}

// Releases returns how many times ref was released
func (c *CountingAllocator) Releases(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releases[id]
}

// OverReleased returns the IDs released more than once
func (c *CountingAllocator) OverReleased() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for id, n := range c.releases {
		if n > 1 {
			ids = append(ids, id)
		}
	}
	return ids
}
