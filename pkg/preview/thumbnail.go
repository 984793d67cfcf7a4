package preview

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/pdxmph/leafscan/pkg/blob"

	// Import image format handlers
	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxSize matches the classifier's input resolution
const DefaultMaxSize = 256

// ThumbnailAllocator writes a scaled copy of each image to a temp directory.
// Releasing a ref removes its file.
type ThumbnailAllocator struct {
	dir     string
	ownsDir bool
	maxSize int
	log     *slog.Logger

	mu          sync.Mutex
	outstanding map[string]string // ref ID -> file path
}

// NewThumbnailAllocator creates an allocator writing into dir. An empty dir
// means a fresh temp directory which Close removes.
func NewThumbnailAllocator(dir string, maxSize int, log *slog.Logger) (*ThumbnailAllocator, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	owns := false
	if dir == "" {
		tmp, err := os.MkdirTemp("", "leafscan-previews-*")
		if err != nil {
			return nil, fmt.Errorf("create preview directory: %w", err)
		}
		dir = tmp
		owns = true
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create preview directory: %w", err)
	}

	return &ThumbnailAllocator{
		dir:         dir,
		ownsDir:     owns,
		maxSize:     maxSize,
		log:         log,
		outstanding: make(map[string]string),
	}, nil
}

// Acquire decodes the blob and writes its thumbnail
func (a *ThumbnailAllocator) Acquire(b blob.Blob) (Ref, error) {
	rc, err := b.Open()
	if err != nil {
		return Ref{}, fmt.Errorf("%w: open %s: %w", ErrPreviewUnavailable, b.Name(), err)
	}
	defer rc.Close()

	// Calculate MD5 while decoding
	hasher := md5.New()
	img, format, err := image.Decode(io.TeeReader(rc, hasher))
	if err != nil {
		return Ref{}, fmt.Errorf("%w: decode %s: %w", ErrPreviewUnavailable, b.Name(), err)
	}
	_, _ = io.Copy(hasher, rc)

	data, ext, err := encodeThumbnail(img, format, a.maxSize)
	if err != nil {
		return Ref{}, fmt.Errorf("%w: %s: %w", ErrPreviewUnavailable, b.Name(), err)
	}

	id := uuid.New().String()
	path := filepath.Join(a.dir, id+ext)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return Ref{}, fmt.Errorf("%w: write %s: %w", ErrPreviewUnavailable, b.Name(), err)
	}

	a.mu.Lock()
	a.outstanding[id] = path
	a.mu.Unlock()

	bounds := img.Bounds()
	a.log.Debug("preview acquired", "name", b.Name(), "id", id, "path", path)
	return Ref{
		ID:     id,
		Path:   path,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		MD5:    fmt.Sprintf("%x", hasher.Sum(nil)),
	}, nil
}

// Release removes the thumbnail behind ref
func (a *ThumbnailAllocator) Release(ref Ref) error {
	a.mu.Lock()
	path, ok := a.outstanding[ref.ID]
	delete(a.outstanding, ref.ID)
	a.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotOutstanding, ref.ID)
	}
	a.log.Debug("preview released", "id", ref.ID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove preview: %w", err)
	}
	return nil
}

// Outstanding returns the number of refs not yet released
func (a *ThumbnailAllocator) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.outstanding)
}

// Close releases anything still outstanding and removes the temp directory
// if the allocator created it
func (a *ThumbnailAllocator) Close() error {
	a.mu.Lock()
	paths := make([]string, 0, len(a.outstanding))
	for id, p := range a.outstanding {
		paths = append(paths, p)
		delete(a.outstanding, id)
	}
	a.mu.Unlock()

	for _, p := range paths {
		os.Remove(p)
	}
	if a.ownsDir {
		return os.RemoveAll(a.dir)
	}
	return nil
}

// encodeThumbnail scales img to fit maxSize and encodes it, returning the
// file extension to use
func encodeThumbnail(img image.Image, format string, maxSize int) ([]byte, string, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil, "", fmt.Errorf("empty image")
	}

	newWidth, newHeight := width, height
	if width > maxSize || height > maxSize {
		if width > height {
			newWidth = maxSize
			newHeight = max(1, int(float64(height)*float64(maxSize)/float64(width)))
		} else {
			newHeight = maxSize
			newWidth = max(1, int(float64(width)*float64(maxSize)/float64(height)))
		}
	}

	// Nearest-neighbour is plenty for a preview
	thumb := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	for y := 0; y < newHeight; y++ {
		for x := 0; x < newWidth; x++ {
			srcX := bounds.Min.X + x*width/newWidth
			srcY := bounds.Min.Y + y*height/newHeight
			thumb.Set(x, y, img.At(srcX, srcY))
		}
	}

	var buf bytes.Buffer
	if format == "png" && hasTransparency(img) {
		if err := png.Encode(&buf, thumb); err != nil {
			return nil, "", fmt.Errorf("encode thumbnail: %w", err)
		}
		return buf.Bytes(), ".png", nil
	}
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 80}); err != nil {
		return nil, "", fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), ".jpg", nil
}

// hasTransparency checks if an image has any transparent pixels
func hasTransparency(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a < 0xffff {
				return true
			}
		}
	}
	return false
}
