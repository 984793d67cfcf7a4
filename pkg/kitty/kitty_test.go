package kitty

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdxmph/leafscan/pkg/preview"
)

func TestIsKittyTerminal(t *testing.T) {
	t.Setenv("TERM", "xterm-256color")
	t.Setenv("KITTY_WINDOW_ID", "")
	t.Setenv("KITTY_PID", "")
	require.False(t, IsKittyTerminal())

	t.Setenv("TERM", "xterm-kitty")
	require.True(t, IsKittyTerminal())

	t.Setenv("TERM", "xterm")
	t.Setenv("KITTY_WINDOW_ID", "3")
	require.True(t, IsKittyTerminal())
}

func TestShowInvokesIcat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0600))

	var gotName string
	var gotArgs []string
	var out bytes.Buffer
	d := NewImageDisplay(&out)
	d.run = func(name string, args []string, stdout, stderr io.Writer) error {
		gotName, gotArgs = name, args
		return nil
	}

	require.NoError(t, d.Show(preview.Ref{ID: "a", Path: path}))
	require.Equal(t, "kitten", gotName)
	require.Equal(t, []string{"icat", "--align", "left", path}, gotArgs)
}

func TestShowErrors(t *testing.T) {
	d := NewImageDisplay(io.Discard)
	d.run = func(string, []string, io.Writer, io.Writer) error { return errors.New("no kitten") }

	require.Error(t, d.Show(preview.Ref{ID: "a"}))
	require.Error(t, d.Show(preview.Ref{ID: "a", Path: filepath.Join(t.TempDir(), "gone.jpg")}))

	path := filepath.Join(t.TempDir(), "p.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0600))
	require.ErrorContains(t, d.Show(preview.Ref{ID: "a", Path: path}), "kitten icat failed")
}
