package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func useConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if contents != "" {
		require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	}
	t.Setenv("LEAFSCAN_CONFIG", path)
	t.Setenv("LEAFSCAN_ENDPOINT", "")
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	useConfigFile(t, "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "", cfg.Endpoint)
	require.Equal(t, Duration(0), cfg.Timeout)
	require.Equal(t, "cards", cfg.Default.Format)
	require.Equal(t, 256, cfg.Preview.MaxSize)
	require.Equal(t, 20, cfg.Selection.MaxFiles)
	require.NotContains(t, cfg.Templates, "json")
	for name := range DefaultTemplates() {
		require.Contains(t, cfg.Templates, name)
	}
	require.ErrorIs(t, cfg.Validate(), ErrNoEndpoint)
}

func TestLoadFromFile(t *testing.T) {
	useConfigFile(t, `{
  "endpoint": "http://localhost:8000/predict",
  "timeout": "45s",
  "default": {"format": "markdown"},
  "preview": {"max_size": 128},
  "templates": {"text": "%label%", "short": "%filename%"}
}`)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000/predict", cfg.Endpoint)
	require.Equal(t, Duration(45*time.Second), cfg.Timeout)
	require.Equal(t, "markdown", cfg.Default.Format)
	require.Equal(t, 128, cfg.Preview.MaxSize)
	require.Equal(t, "%label%", cfg.Templates["text"])
	require.Equal(t, "%filename%", cfg.Templates["short"])
	require.Contains(t, cfg.Templates, "html")
	require.NoError(t, cfg.Validate())
}

func TestEnvOverridesFile(t *testing.T) {
	useConfigFile(t, `{"endpoint": "http://file/predict"}`)
	t.Setenv("LEAFSCAN_ENDPOINT", "https://env.example/predict")
	t.Setenv("LEAFSCAN_PREVIEW_MAX_SIZE", "64")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://env.example/predict", cfg.Endpoint)
	require.Equal(t, 64, cfg.Preview.MaxSize)
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	useConfigFile(t, `{"timeout": "soon"}`)
	_, err := Load()
	require.Error(t, err)
}

func TestSetAndSaveRoundTrip(t *testing.T) {
	useConfigFile(t, "")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Set("endpoint", " http://127.0.0.1:8000/predict "))
	require.NoError(t, cfg.Set("timeout", "2m"))
	require.NoError(t, cfg.Set("preview.max_size", "512"))
	require.NoError(t, cfg.Set("templates.plain", "%label%"))
	require.NoError(t, cfg.Set("selection.max_files", "0"))
	require.Error(t, cfg.Set("selection.max_files", "-1"))
	require.Error(t, cfg.Set("preview.max_size", "big"))
	require.Error(t, cfg.Set("flickr.key", "x"))
	require.NoError(t, cfg.Save())

	loaded, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:8000/predict", loaded.Endpoint)
	require.Equal(t, Duration(2*time.Minute), loaded.Timeout)
	require.Equal(t, 512, loaded.Preview.MaxSize)
	require.Equal(t, "%label%", loaded.Templates["plain"])
	require.Equal(t, 0, loaded.Selection.MaxFiles)
}

func TestValidateRequiresHTTP(t *testing.T) {
	cfg := &Config{Endpoint: "ftp://host/predict"}
	require.Error(t, cfg.Validate())
}
