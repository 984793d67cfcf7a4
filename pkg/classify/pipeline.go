// Package classify submits selected images to the inference endpoint and
// collects their classifications.
package classify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/pdxmph/leafscan/pkg/blob"
	"github.com/pdxmph/leafscan/pkg/preview"
	"github.com/pdxmph/leafscan/pkg/selection"
)

// ErrUpload matches any *UploadError via errors.Is
var ErrUpload = errors.New("upload failed")

// UploadError reports the item that stopped a submission
type UploadError struct {
	Index int // zero-based position in the selection
	Name  string
	Err   error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed for %s (item %d): %v", e.Name, e.Index+1, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

func (e *UploadError) Is(target error) bool { return target == ErrUpload }

// Result is the classification of one selected image. Preview is borrowed
// from the selection and must not be released by the holder.
type Result struct {
	Name       string      `json:"name"`
	Label      string      `json:"label"`
	Confidence string      `json:"confidence"` // percent, two decimals
	Fraction   float64     `json:"fraction"`
	Preview    preview.Ref `json:"preview"`
}

// FormatConfidence converts a [0,1] fraction to a percentage with exactly
// two decimals, e.g. 0.8734567 -> "87.35"
func FormatConfidence(fraction float64) string {
	return strconv.FormatFloat(fraction*100, 'f', 2, 64)
}

// Classifier classifies a single image
type Classifier interface {
	Classify(ctx context.Context, b blob.Blob) (*Prediction, error)
}

// Progress statuses
const (
	StatusUploading = "uploading"
	StatusComplete  = "complete"
	StatusError     = "error"
)

// Progress describes the state of one item during a submission
type Progress struct {
	Index   int    `json:"fileIndex"`
	Total   int    `json:"total"`
	Name    string `json:"fileName"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Pipeline sends items one at a time, in order, and stops at the first failure
type Pipeline struct {
	classifier Classifier
	observer   func(Progress)
	log        *slog.Logger
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithObserver registers a callback for per-item progress
func WithObserver(fn func(Progress)) PipelineOption {
	return func(p *Pipeline) { p.observer = fn }
}

// WithLogger sets the pipeline logger
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// NewPipeline creates a pipeline around c
func NewPipeline(c Classifier, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		classifier: c,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit classifies items sequentially. On the first failure it returns an
// *UploadError and no results; nothing is retried.
func (p *Pipeline) Submit(ctx context.Context, items []selection.Item) ([]Result, error) {
	return p.submit(ctx, items, p.observer)
}

// SubmitWithProgress is Submit with a per-call progress callback, used when
// several callers share one pipeline
func (p *Pipeline) SubmitWithProgress(ctx context.Context, items []selection.Item, fn func(Progress)) ([]Result, error) {
	return p.submit(ctx, items, func(pr Progress) {
		if p.observer != nil {
			p.observer(pr)
		}
		if fn != nil {
			fn(pr)
		}
	})
}

func (p *Pipeline) submit(ctx context.Context, items []selection.Item, notify func(Progress)) ([]Result, error) {
	if len(items) == 0 {
		return []Result{}, nil
	}
	if notify == nil {
		notify = func(Progress) {}
	}

	output := make([]Result, 0, len(items))
	for i, item := range items {
		name := item.Blob.Name()
		notify(Progress{Index: i, Total: len(items), Name: name, Status: StatusUploading})

		pred, err := p.classifier.Classify(ctx, item.Blob)
		if err != nil {
			p.log.Error("classification failed", "name", name, "index", i, "err", err)
			notify(Progress{Index: i, Total: len(items), Name: name, Status: StatusError, Message: err.Error()})
			return nil, &UploadError{Index: i, Name: name, Err: err}
		}

		output = append(output, Result{
			Name:       name,
			Label:      pred.Label,
			Confidence: FormatConfidence(pred.Confidence),
			Fraction:   pred.Confidence,
			Preview:    item.Preview,
		})
		notify(Progress{Index: i, Total: len(items), Name: name, Status: StatusComplete})
	}

	p.log.Info("submission complete", "items", len(output))
	return output, nil
}
