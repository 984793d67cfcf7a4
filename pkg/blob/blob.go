package blob

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// Blob is a named piece of binary content that can be read more than once
type Blob interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// File returns a Blob backed by a file on disk
func File(path string) Blob {
	return fileBlob(path)
}

type fileBlob string

func (f fileBlob) Name() string { return filepath.Base(string(f)) }

func (f fileBlob) Open() (io.ReadCloser, error) { return os.Open(string(f)) }

// Bytes returns a Blob backed by an in-memory buffer
func Bytes(name string, data []byte) Blob {
	return &bytesBlob{name: name, data: data}
}

type bytesBlob struct {
	name string
	data []byte
}

func (b *bytesBlob) Name() string { return b.name }

func (b *bytesBlob) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

// Files wraps each path as a Blob, preserving order
func Files(paths []string) []Blob {
	blobs := make([]Blob, 0, len(paths))
	for _, p := range paths {
		blobs = append(blobs, File(p))
	}
	return blobs
}

// PathOf returns the file path behind b, or its name when b is not file-backed
func PathOf(b Blob) string {
	if f, ok := b.(fileBlob); ok {
		return string(f)
	}
	return b.Name()
}
