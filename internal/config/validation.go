package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Is makes errors.Is(err, ErrInvalidConfig) hold for validation failures.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Fields returns the names of the invalid fields.
func (e ValidationErrors) Fields() []string {
	out := make([]string, len(e))
	for i, err := range e {
		out[i] = err.Field
	}
	return out
}

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateAnnotator(&c.Annotator)...)
	errs = append(errs, validateCanvas(&c.Canvas)...)
	errs = append(errs, validateLibrary(&c.Library)...)
	errs = append(errs, validateExport(&c.Export)...)
	errs = append(errs, validateRender(&c.Render)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateAnnotator(a *AnnotatorConfig) ValidationErrors {
	var errs ValidationErrors
	if strings.TrimSpace(a.Name) == "" {
		errs = append(errs, *RequiredFieldError("annotator.name"))
	}
	return errs
}

func validateCanvas(c *CanvasConfig) ValidationErrors {
	var errs ValidationErrors

	if c.Width < 100 || c.Width > 10000 {
		errs = append(errs, *RangeError("canvas.width", 100, 10000))
	}
	if c.ZoomMin <= 0 {
		errs = append(errs, ValidationError{
			Field:   "canvas.zoom_min",
			Message: "zoom minimum must be positive",
		})
	}
	if c.ZoomMax < c.ZoomMin {
		errs = append(errs, ValidationError{
			Field:   "canvas.zoom_max",
			Message: fmt.Sprintf("zoom maximum %v is below the minimum %v", c.ZoomMax, c.ZoomMin),
		})
	}
	if c.ZoomMin > 0 && (c.ZoomMin > 1 || c.ZoomMax < 1) {
		errs = append(errs, ValidationError{
			Field:   "canvas.zoom_min",
			Message: "zoom range must include 1.0",
		})
	}
	if c.ZoomStep <= 1 {
		errs = append(errs, ValidationError{
			Field:   "canvas.zoom_step",
			Message: "zoom step must be greater than 1",
		})
	}
	return errs
}

func validateLibrary(l *LibraryConfig) ValidationErrors {
	var errs ValidationErrors
	if l.Path == "" {
		errs = append(errs, *RequiredFieldError("library.path"))
	}
	return errs
}

func validateExport(e *ExportConfig) ValidationErrors {
	var errs ValidationErrors
	if e.MaxImageWidth < 1 {
		errs = append(errs, ValidationError{
			Field:   "export.max_image_width",
			Message: "must be at least 1 pixel",
		})
	}
	if e.MaxImageHeight < 1 {
		errs = append(errs, ValidationError{
			Field:   "export.max_image_height",
			Message: "must be at least 1 pixel",
		})
	}
	if e.OutputDir != "" {
		if info, err := os.Stat(expandPath(e.OutputDir)); err == nil && !info.IsDir() {
			errs = append(errs, ValidationError{
				Field:   "export.output_dir",
				Message: "not a directory",
			})
		}
	}
	return errs
}

func validateRender(r *RenderConfig) ValidationErrors {
	var errs ValidationErrors
	switch r.Rasterizer {
	case "pdftoppm", "blank":
	default:
		errs = append(errs, ValidationError{
			Field:   "render.rasterizer",
			Message: fmt.Sprintf("invalid rasterizer: %s (valid: pdftoppm, blank)", r.Rasterizer),
		})
	}
	if r.TimeoutSec < 1 || r.TimeoutSec > 600 {
		errs = append(errs, *RangeError("render.timeout_sec", 1, 600))
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output is 'file'",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %q (valid: stdout, stderr, file)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}
	return errs
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}
