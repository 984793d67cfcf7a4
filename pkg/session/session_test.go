package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pdxmph/leafscan/pkg/blob"
	"github.com/pdxmph/leafscan/pkg/classify"
	"github.com/pdxmph/leafscan/pkg/preview/previewtest"
	"github.com/pdxmph/leafscan/pkg/selection"
)

type stubClassifier struct {
	calls   int
	fail    string
	labels  map[string]string
	started chan struct{}
	release chan struct{}
}

func (s *stubClassifier) Classify(_ context.Context, b blob.Blob) (*classify.Prediction, error) {
	s.calls++
	if s.started != nil {
		s.started <- struct{}{}
		<-s.release
	}
	if b.Name() == s.fail {
		return nil, errors.New("status 500")
	}
	label := s.labels[b.Name()]
	if label == "" {
		label = "Healthy"
	}
	return &classify.Prediction{Label: label, Confidence: 0.9}, nil
}

func files(names ...string) []blob.Blob {
	out := make([]blob.Blob, 0, len(names))
	for _, n := range names {
		out = append(out, blob.Bytes(n, []byte(n)))
	}
	return out
}

func newSession(c classify.Classifier) (*Session, *previewtest.CountingAllocator) {
	alloc := previewtest.NewCountingAllocator()
	return New("test", alloc, classify.NewPipeline(c), nil), alloc
}

func TestSubmitStoresResults(t *testing.T) {
	stub := &stubClassifier{labels: map[string]string{"b.jpg": "Late Blight", "c.jpg": "Mystery Rot"}}
	s, _ := newSession(stub)

	require.NoError(t, s.Select(files("a.jpg", "b.jpg", "c.jpg")))
	require.NoError(t, s.Submit(context.Background(), nil))
	require.False(t, s.Busy())

	entries := s.Snapshot()
	require.Len(t, entries, 3)
	require.Equal(t, "low", entries[0].Info.Severity.String())
	require.Equal(t, "high", entries[1].Info.Severity.String())
	require.True(t, entries[1].Known)
	require.False(t, entries[2].Known)
	require.Equal(t, "low", entries[2].Info.Severity.String())
	require.Equal(t, "90.00", entries[2].Confidence)
}

func TestSelectClearsResults(t *testing.T) {
	s, alloc := newSession(&stubClassifier{})

	require.NoError(t, s.Select(files("a.jpg", "b.jpg")))
	require.NoError(t, s.Submit(context.Background(), nil))
	require.Len(t, s.Results(), 2)
	old := s.Items()

	require.NoError(t, s.Select(files("c.jpg")))
	require.Empty(t, s.Results())
	require.Equal(t, 1, alloc.Outstanding())
	for _, it := range old {
		require.Equal(t, 1, alloc.Releases(it.Preview.ID))
	}
}

func TestSubmitFailureExposesNothing(t *testing.T) {
	stub := &stubClassifier{fail: "b.jpg"}
	s, _ := newSession(stub)

	require.NoError(t, s.Select(files("a.jpg", "b.jpg", "c.jpg")))
	err := s.Submit(context.Background(), nil)
	require.ErrorIs(t, err, classify.ErrUpload)
	require.Empty(t, s.Results())
	require.False(t, s.Busy())
	require.Equal(t, 2, stub.calls)
}

func TestSubmitEmptyIsNoop(t *testing.T) {
	stub := &stubClassifier{}
	s, _ := newSession(stub)

	require.NoError(t, s.Submit(context.Background(), nil))
	require.Equal(t, 0, stub.calls)
	require.Empty(t, s.Results())
}

func TestSubmitWhileBusy(t *testing.T) {
	stub := &stubClassifier{started: make(chan struct{}), release: make(chan struct{})}
	s, _ := newSession(stub)
	require.NoError(t, s.Select(files("a.jpg")))

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background(), nil) }()

	<-stub.started
	require.True(t, s.Busy())
	require.ErrorIs(t, s.Submit(context.Background(), nil), ErrBusy)
	require.ErrorIs(t, s.Select(files("b.jpg")), ErrBusy)
	require.ErrorIs(t, s.Close(), ErrBusy)
	close(stub.release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("submit did not finish")
	}
	require.False(t, s.Busy())
	require.Len(t, s.Results(), 1)
}

func TestCloseReleasesEveryPreviewOnce(t *testing.T) {
	s, alloc := newSession(&stubClassifier{})

	require.NoError(t, s.Select(files("a.jpg", "b.jpg")))
	require.NoError(t, s.Select(files("c.jpg", "d.jpg", "e.jpg")))
	require.NoError(t, s.Submit(context.Background(), nil))
	require.NoError(t, s.Close())

	require.Equal(t, 0, alloc.Outstanding())
	require.Equal(t, 5, alloc.Acquired())
	require.Empty(t, alloc.OverReleased())
	require.Empty(t, s.Results())
	require.Error(t, s.Submit(context.Background(), nil))
}

func TestProgressCallback(t *testing.T) {
	s, _ := newSession(&stubClassifier{})
	require.NoError(t, s.Select(files("a.jpg", "b.jpg")))

	var got []classify.Progress
	require.NoError(t, s.Submit(context.Background(), func(p classify.Progress) { got = append(got, p) }))
	require.Len(t, got, 4)
	require.Equal(t, classify.StatusComplete, got[3].Status)
	require.Equal(t, 1, got[3].Index)
	require.Equal(t, 2, got[3].Total)
}

func TestClosedSessionRefusesSelect(t *testing.T) {
	s, alloc := newSession(&stubClassifier{})

	require.NoError(t, s.Select(files("a.jpg")))
	require.NoError(t, s.Close())
	require.ErrorIs(t, s.Select(files("b.jpg")), ErrClosed)
	require.ErrorIs(t, s.Submit(context.Background(), nil), ErrClosed)

	require.NoError(t, s.Close())
	require.Equal(t, 1, alloc.Acquired())
	require.Equal(t, 0, alloc.Outstanding())
	require.Empty(t, alloc.OverReleased())
}

func TestSelectOverLimitKeepsResults(t *testing.T) {
	alloc := previewtest.NewCountingAllocator()
	s := New("test", alloc, classify.NewPipeline(&stubClassifier{}), nil, selection.WithLimit(2))

	require.NoError(t, s.Select(files("a.jpg", "b.jpg")))
	require.NoError(t, s.Submit(context.Background(), nil))
	require.ErrorIs(t, s.Select(files("c.jpg", "d.jpg", "e.jpg")), selection.ErrTooManyFiles)
	require.Len(t, s.Results(), 2)
	require.Len(t, s.Items(), 2)
}
