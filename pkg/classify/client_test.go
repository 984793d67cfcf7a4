package classify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pdxmph/leafscan/pkg/blob"
)

func TestClassifySendsMultipartFile(t *testing.T) {
	var method, filename, content string
	var parts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		filename = header.Filename
		content = string(data)
		parts = len(r.MultipartForm.File) + len(r.MultipartForm.Value)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"class":"Early Blight","confidence":0.91}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	pred, err := c.Classify(context.Background(), blob.Bytes("leaf.jpg", []byte("leaf-bytes")))
	require.NoError(t, err)
	require.Equal(t, http.MethodPost, method)
	require.Equal(t, "leaf.jpg", filename)
	require.Equal(t, "leaf-bytes", content)
	require.Equal(t, 1, parts)
	require.Equal(t, "Early Blight", pred.Label)
	require.InDelta(t, 0.91, pred.Confidence, 1e-9)
}

func TestClassifyRejectsBadResponses(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"server error":     {http.StatusInternalServerError, `{"detail":"boom"}`},
		"not found":        {http.StatusNotFound, ``},
		"malformed json":   {http.StatusOK, `{"class":`},
		"missing class":    {http.StatusOK, `{"confidence":0.5}`},
		"empty class":      {http.StatusOK, `{"class":"","confidence":0.5}`},
		"missing conf":     {http.StatusOK, `{"class":"Healthy"}`},
		"conf over one":    {http.StatusOK, `{"class":"Healthy","confidence":1.5}`},
		"negative conf":    {http.StatusOK, `{"class":"Healthy","confidence":-0.1}`},
		"wrong class type": {http.StatusOK, `{"class":3,"confidence":0.5}`},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).Classify(context.Background(), blob.Bytes("leaf.jpg", []byte("x")))
			require.Error(t, err)
		})
	}
}

func TestClassifyNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, WithTimeout(time.Second)).Classify(context.Background(), blob.Bytes("leaf.jpg", []byte("x")))
	require.Error(t, err)
}

func TestClassifyAcceptsAny2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, `{"class":"Healthy","confidence":1}`)
	}))
	defer srv.Close()

	pred, err := NewClient(srv.URL).Classify(context.Background(), blob.Bytes("leaf.jpg", []byte("x")))
	require.NoError(t, err)
	require.Equal(t, "Healthy", pred.Label)
}
