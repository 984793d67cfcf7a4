package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/pdxmph/leafscan/pkg/blob"
)

// Prediction is what the inference endpoint returns for one image
type Prediction struct {
	Label      string
	Confidence float64 // fraction in [0,1]
}

// Client talks to the remote inference endpoint
type Client struct {
	Endpoint   string
	HTTPClient *http.Client
	log        *slog.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithTimeout sets a request timeout. Zero leaves the transport default.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.HTTPClient = &http.Client{Timeout: d}
		}
	}
}

// WithClientLogger sets the logger used for request tracing
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient creates a client for the given endpoint URL
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		Endpoint:   strings.TrimSpace(endpoint),
		HTTPClient: &http.Client{},
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// predictResponse mirrors the endpoint's JSON body. Pointers let us tell a
// missing field from a zero value.
type predictResponse struct {
	Class      *string  `json:"class"`
	Confidence *float64 `json:"confidence"`
}

// Classify uploads one image as multipart field "file" and decodes the label
func (c *Client) Classify(ctx context.Context, b blob.Blob) (*Prediction, error) {
	rc, err := b.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer rc.Close()

	// Create multipart form
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", b.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, rc); err != nil {
		return nil, fmt.Errorf("failed to copy file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	c.log.Debug("posting image", "name", b.Name(), "endpoint", c.Endpoint, "bytes", buf.Len())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if pr.Class == nil || *pr.Class == "" {
		return nil, fmt.Errorf("response missing class")
	}
	if pr.Confidence == nil {
		return nil, fmt.Errorf("response missing confidence")
	}
	conf := *pr.Confidence
	if math.IsNaN(conf) || conf < 0 || conf > 1 {
		return nil, fmt.Errorf("confidence %v outside [0,1]", conf)
	}

	c.log.Debug("prediction received", "name", b.Name(), "class", *pr.Class, "confidence", conf)
	return &Prediction{Label: *pr.Class, Confidence: conf}, nil
}
