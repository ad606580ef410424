// Package config handles configuration loading, validation, and management for signpad.
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"signpad/internal/export"
	"signpad/internal/viewport"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete application configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Annotator identifies who signs.
	Annotator AnnotatorConfig `toml:"annotator" json:"annotator" yaml:"annotator"`

	// Canvas configures the display canvas and zoom range.
	Canvas CanvasConfig `toml:"canvas" json:"canvas" yaml:"canvas"`

	// Library configures the saved signature store.
	Library LibraryConfig `toml:"library" json:"library" yaml:"library"`

	// Export configures signed document output.
	Export ExportConfig `toml:"export" json:"export" yaml:"export"`

	// Render configures page rasterization.
	Render RenderConfig `toml:"render" json:"render" yaml:"render"`

	// Notify configures desktop notifications.
	Notify NotifyConfig `toml:"notify" json:"notify" yaml:"notify"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// AnnotatorConfig holds the signer identity.
type AnnotatorConfig struct {
	// Name appears in the provenance stamp and the output file name.
	Name string `toml:"name" json:"name" yaml:"name"`
}

// CanvasConfig holds display settings.
type CanvasConfig struct {
	// Width is the canvas width in pixels a page is fitted to at 100%.
	Width float64 `toml:"width" json:"width" yaml:"width"`

	ZoomMin  float64 `toml:"zoom_min" json:"zoom_min" yaml:"zoom_min"`
	ZoomMax  float64 `toml:"zoom_max" json:"zoom_max" yaml:"zoom_max"`
	ZoomStep float64 `toml:"zoom_step" json:"zoom_step" yaml:"zoom_step"`
}

// LibraryConfig holds signature library settings.
type LibraryConfig struct {
	// Path is the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// LegacyDir is a saved_signatures directory offered for import.
	LegacyDir string `toml:"legacy_dir" json:"legacy_dir" yaml:"legacy_dir"`
}

// ExportConfig holds export settings.
type ExportConfig struct {
	// Compress deflates new content and image streams.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`

	// MaxImageWidth and MaxImageHeight bound embedded images in pixels.
	MaxImageWidth  int `toml:"max_image_width" json:"max_image_width" yaml:"max_image_width"`
	MaxImageHeight int `toml:"max_image_height" json:"max_image_height" yaml:"max_image_height"`

	// OutputDir receives signed files. Empty means next to the source.
	OutputDir string `toml:"output_dir" json:"output_dir" yaml:"output_dir"`
}

// RenderConfig holds page rasterizer settings.
type RenderConfig struct {
	// Rasterizer is "pdftoppm" or "blank".
	Rasterizer string `toml:"rasterizer" json:"rasterizer" yaml:"rasterizer"`

	// PdftoppmPath overrides the pdftoppm executable.
	PdftoppmPath string `toml:"pdftoppm_path" json:"pdftoppm_path" yaml:"pdftoppm_path"`

	// TimeoutSec bounds the rendering of one page.
	TimeoutSec int `toml:"timeout_sec" json:"timeout_sec" yaml:"timeout_sec"`
}

// NotifyConfig holds desktop notification settings.
type NotifyConfig struct {
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log destination: "stdout", "stderr", or "file".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file path when output is "file".
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is the maximum age of log files in days.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`

	// Compress determines whether to compress rotated logs.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := SignpadDir()
	limits := viewport.DefaultLimits()

	return &Config{
		Version: Version,
		Annotator: AnnotatorConfig{
			Name: DefaultAnnotator(),
		},
		Canvas: CanvasConfig{
			Width:    viewport.DefaultCanvasWidth,
			ZoomMin:  limits.Min,
			ZoomMax:  limits.Max,
			ZoomStep: limits.Step,
		},
		Library: LibraryConfig{
			Path:      filepath.Join(dir, "signatures.db"),
			LegacyDir: "saved_signatures",
		},
		Export: ExportConfig{
			Compress:       true,
			MaxImageWidth:  800,
			MaxImageHeight: 600,
		},
		Render: RenderConfig{
			Rasterizer: "pdftoppm",
			TimeoutSec: 30,
		},
		Notify: NotifyConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "signpad.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// DefaultAnnotator returns the login name of the current user in upper
// case, or "USER" when it cannot be determined.
func DefaultAnnotator() string {
	for _, key := range []string{"LOGNAME", "USER", "LNAME", "USERNAME"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return strings.ToUpper(v)
		}
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		name := u.Username
		if i := strings.LastIndexByte(name, '\\'); i >= 0 {
			name = name[i+1:]
		}
		return strings.ToUpper(name)
	}
	return "USER"
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// SignpadDir returns the data directory, honoring SIGNPAD_DATA_DIR.
func SignpadDir() string {
	if envDir := os.Getenv("SIGNPAD_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories the configuration refers to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Library.Path),
		c.Export.OutputDir,
	}
	if c.Logging.Output == "file" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(expandPath(dir), 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with SIGNPAD_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SIGNPAD_ANNOTATOR"); v != "" {
		c.Annotator.Name = v
	}
	if v := os.Getenv("SIGNPAD_CANVAS_WIDTH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Canvas.Width = f
		}
	}
	if v := os.Getenv("SIGNPAD_LIBRARY_PATH"); v != "" {
		c.Library.Path = v
	}
	if v := os.Getenv("SIGNPAD_LEGACY_DIR"); v != "" {
		c.Library.LegacyDir = v
	}
	if v := os.Getenv("SIGNPAD_OUTPUT_DIR"); v != "" {
		c.Export.OutputDir = v
	}
	if v := os.Getenv("SIGNPAD_RASTERIZER"); v != "" {
		c.Render.Rasterizer = v
	}
	if v := os.Getenv("SIGNPAD_PDFTOPPM_PATH"); v != "" {
		c.Render.PdftoppmPath = v
	}
	if v := os.Getenv("SIGNPAD_NOTIFY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Notify.Enabled = b
		}
	}
	if v := os.Getenv("SIGNPAD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SIGNPAD_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
		c.Logging.Output = "file"
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// ZoomLimits returns the viewport zoom range.
func (c *Config) ZoomLimits() viewport.Limits {
	return viewport.Limits{Min: c.Canvas.ZoomMin, Max: c.Canvas.ZoomMax, Step: c.Canvas.ZoomStep}
}

// ExportOptions returns the exporter settings.
func (c *Config) ExportOptions() export.Options {
	return export.Options{
		Compress:       c.Export.Compress,
		MaxImageWidth:  c.Export.MaxImageWidth,
		MaxImageHeight: c.Export.MaxImageHeight,
		OutputDir:      expandPath(c.Export.OutputDir),
	}
}

// RenderTimeout returns the per-page rendering timeout.
func (c *Config) RenderTimeout() time.Duration {
	return time.Duration(c.Render.TimeoutSec) * time.Second
}

// LibraryPath returns the library database path with ~ expanded.
func (c *Config) LibraryPath() string {
	return expandPath(c.Library.Path)
}

// Encode serializes the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	var b strings.Builder
	b.WriteString("# signpad configuration\n")
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}
