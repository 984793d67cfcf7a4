package kitty

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pdxmph/leafscan/pkg/preview"
)

// IsKittyTerminal detects if we're running in a Kitty terminal
func IsKittyTerminal() bool {
	if strings.Contains(os.Getenv("TERM"), "kitty") {
		return true
	}
	return os.Getenv("KITTY_WINDOW_ID") != "" || os.Getenv("KITTY_PID") != ""
}

// Runner executes a command. Swapped out in tests.
type Runner func(name string, args []string, stdout, stderr io.Writer) error

func execRunner(name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Stdin = os.Stdin
	return cmd.Run()
}

// ImageDisplay shows preview images inline using kitten icat
type ImageDisplay struct {
	out io.Writer
	run Runner
}

// NewImageDisplay creates a display writing to out
func NewImageDisplay(out io.Writer) *ImageDisplay {
	return &ImageDisplay{out: out, run: execRunner}
}

// Show displays the preview behind ref. The preview file stays owned by
// whoever acquired it.
func (d *ImageDisplay) Show(ref preview.Ref) error {
	if ref.Path == "" {
		return fmt.Errorf("preview %s has no file", ref.ID)
	}
	if _, err := os.Stat(ref.Path); err != nil {
		return fmt.Errorf("preview file: %w", err)
	}

	// --align left keeps the image next to its card
	args := []string{"icat", "--align", "left", ref.Path}
	if err := d.run("kitten", args, d.out, os.Stderr); err != nil {
		return fmt.Errorf("kitten icat failed: %w", err)
	}
	return nil
}
