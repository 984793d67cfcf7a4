package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrNoEndpoint is returned when no inference endpoint is configured
var ErrNoEndpoint = errors.New("inference endpoint not configured (set endpoint or LEAFSCAN_ENDPOINT)")

// Config holds the application configuration
type Config struct {
	Endpoint  string            `json:"endpoint"`
	Timeout   Duration          `json:"timeout,omitempty"` // zero means transport default
	Default   DefaultConfig     `json:"default,omitempty"`
	Preview   PreviewConfig     `json:"preview,omitempty"`
	Selection SelectionConfig   `json:"selection,omitempty"`
	Templates map[string]string `json:"templates,omitempty"`
}

// DefaultConfig holds default settings
type DefaultConfig struct {
	Format string `json:"format,omitempty"`
}

// PreviewConfig controls preview thumbnails
type PreviewConfig struct {
	MaxSize int    `json:"max_size,omitempty"`
	Dir     string `json:"dir,omitempty"` // empty means a temp dir per run
}

// SelectionConfig limits what one selection may hold
type SelectionConfig struct {
	MaxFiles int `json:"max_files"` // zero means no limit
}

// Duration is a time.Duration that reads and writes as a string like "30s"
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	if d == 0 {
		return json.Marshal("")
	}
	return json.Marshal(time.Duration(d).String())
}

// ParseDuration accepts "" as zero
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("invalid duration %q: negative", s)
	}
	return Duration(v), nil
}

// DefaultTemplates returns the default output templates
func DefaultTemplates() map[string]string {
	return map[string]string{
		"text":     "%filename%: %label% (%confidence%%) [%severity%]",
		"markdown": "![%filename%](%preview%)\n**%label%** %confidence%% (%severity%)\n\n%description|label%\n\n_Remedy:_ %remedy|description%",
		"html":     `<figure><img src="%preview%" alt="%label%"><figcaption>%label% %confidence%% (%severity%)</figcaption></figure>`,
		"org":      "[[%preview%][%filename%]] %label% %confidence%% (%severity%)",
	}
}

// Load loads configuration from the default location, applying LEAFSCAN_*
// environment overrides
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("endpoint", "")
	v.SetDefault("timeout", "")
	v.SetDefault("default.format", "cards")
	v.SetDefault("preview.max_size", 256)
	v.SetDefault("preview.dir", "")
	v.SetDefault("selection.max_files", 20)

	v.SetConfigType("json")
	v.SetConfigFile(Path())

	v.SetEnvPrefix("LEAFSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	timeout, err := ParseDuration(v.GetString("timeout"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := &Config{
		Endpoint: strings.TrimSpace(v.GetString("endpoint")),
		Timeout:  timeout,
		Default: DefaultConfig{
			Format: v.GetString("default.format"),
		},
		Preview: PreviewConfig{
			MaxSize: v.GetInt("preview.max_size"),
			Dir:     v.GetString("preview.dir"),
		},
		Selection: SelectionConfig{
			MaxFiles: v.GetInt("selection.max_files"),
		},
		Templates: v.GetStringMapString("templates"),
	}

	// Add any missing default templates
	if cfg.Templates == nil {
		cfg.Templates = map[string]string{}
	}
	for k, tmpl := range DefaultTemplates() {
		if _, exists := cfg.Templates[k]; !exists {
			cfg.Templates[k] = tmpl
		}
	}

	return cfg, nil
}

// Validate checks the settings needed before submitting anything
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return ErrNoEndpoint
	}
	if !strings.HasPrefix(c.Endpoint, "http://") && !strings.HasPrefix(c.Endpoint, "https://") {
		return fmt.Errorf("endpoint must be an http(s) URL: %s", c.Endpoint)
	}
	return nil
}

// Set updates a single key the way `leafscan config set` does
func (c *Config) Set(key, value string) error {
	switch {
	case key == "endpoint":
		c.Endpoint = strings.TrimSpace(value)
	case key == "timeout":
		d, err := ParseDuration(value)
		if err != nil {
			return err
		}
		c.Timeout = d
	case key == "default.format":
		c.Default.Format = value
	case key == "preview.max_size":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n <= 0 {
			return fmt.Errorf("preview.max_size must be a positive integer: %s", value)
		}
		c.Preview.MaxSize = n
	case key == "selection.max_files":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return fmt.Errorf("selection.max_files must be zero or a positive integer: %s", value)
		}
		c.Selection.MaxFiles = n
	case key == "preview.dir":
		c.Preview.Dir = value
	case strings.HasPrefix(key, "templates."):
		name := strings.TrimPrefix(key, "templates.")
		if c.Templates == nil {
			c.Templates = make(map[string]string)
		}
		c.Templates[name] = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

// Save saves the configuration
func (c *Config) Save() error {
	path := Path()

	// Create directory if needed
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Path returns the configuration file path. LEAFSCAN_CONFIG overrides it.
func Path() string {
	if p := os.Getenv("LEAFSCAN_CONFIG"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "leafscan", "config.json")
}
