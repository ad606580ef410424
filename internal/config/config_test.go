package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SIGNPAD_DATA_DIR", dir)
	t.Setenv("LOGNAME", "jdoe")
	for _, k := range []string{
		"SIGNPAD_ANNOTATOR", "SIGNPAD_CANVAS_WIDTH", "SIGNPAD_LIBRARY_PATH",
		"SIGNPAD_LEGACY_DIR", "SIGNPAD_OUTPUT_DIR", "SIGNPAD_RASTERIZER",
		"SIGNPAD_PDFTOPPM_PATH", "SIGNPAD_NOTIFY", "SIGNPAD_LOG_LEVEL", "SIGNPAD_LOG_PATH",
	} {
		t.Setenv(k, "")
	}
	return dir
}

func TestDefaultConfig(t *testing.T) {
	dir := isolate(t)
	cfg := DefaultConfig()

	if cfg.Annotator.Name != "JDOE" {
		t.Errorf("expected annotator JDOE, got %q", cfg.Annotator.Name)
	}
	if cfg.Canvas.Width != 700 {
		t.Errorf("expected canvas width 700, got %v", cfg.Canvas.Width)
	}
	limits := cfg.ZoomLimits()
	if limits.Min != 0.5 || limits.Max != 3 || limits.Step != 1.2 {
		t.Errorf("unexpected zoom limits %+v", limits)
	}
	if cfg.Library.Path != filepath.Join(dir, "signatures.db") {
		t.Errorf("library path should live in the data dir: %s", cfg.Library.Path)
	}
	opts := cfg.ExportOptions()
	if !opts.Compress || opts.MaxImageWidth != 800 || opts.MaxImageHeight != 600 {
		t.Errorf("unexpected export options %+v", opts)
	}
	if cfg.RenderTimeout() != 30*time.Second {
		t.Errorf("expected 30s render timeout, got %v", cfg.RenderTimeout())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestDefaultAnnotatorFallsBack(t *testing.T) {
	for _, k := range []string{"LOGNAME", "USER", "LNAME", "USERNAME"} {
		t.Setenv(k, "")
	}
	t.Setenv("USERNAME", "Mixed.Case")
	if got := DefaultAnnotator(); got != "MIXED.CASE" {
		t.Errorf("expected MIXED.CASE, got %q", got)
	}
}

func TestLoadFormats(t *testing.T) {
	isolate(t)
	tests := []struct {
		name string
		file string
		data string
	}{
		{"toml", "config.toml", "[annotator]\nname = \"ALICE\"\n[canvas]\nwidth = 900.0\n"},
		{"json", "config.json", `{"annotator": {"name": "ALICE"}, "canvas": {"width": 900}}`},
		{"yaml", "config.yaml", "annotator:\n  name: ALICE\ncanvas:\n  width: 900\n"},
		{"autodetect", "signpadrc", "[annotator]\nname = \"ALICE\"\n[canvas]\nwidth = 900.0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.data), 0600); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.Annotator.Name != "ALICE" {
				t.Errorf("expected ALICE, got %q", cfg.Annotator.Name)
			}
			if cfg.Canvas.Width != 900 {
				t.Errorf("expected width 900, got %v", cfg.Canvas.Width)
			}
			if cfg.Canvas.ZoomStep != 1.2 {
				t.Errorf("unset fields keep defaults, got zoom step %v", cfg.Canvas.ZoomStep)
			}
		})
	}
}

func TestLoadMissingReturnsDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Version != Version {
		t.Errorf("expected version %d, got %d", Version, cfg.Version)
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("SIGNPAD_ANNOTATOR", "BOB")
	t.Setenv("SIGNPAD_CANVAS_WIDTH", "1024")
	t.Setenv("SIGNPAD_RASTERIZER", "blank")
	t.Setenv("SIGNPAD_NOTIFY", "false")
	t.Setenv("SIGNPAD_LOG_PATH", "/tmp/signpad-test.log")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	if cfg.Annotator.Name != "BOB" {
		t.Errorf("annotator override not applied: %q", cfg.Annotator.Name)
	}
	if cfg.Canvas.Width != 1024 {
		t.Errorf("canvas override not applied: %v", cfg.Canvas.Width)
	}
	if cfg.Render.Rasterizer != "blank" {
		t.Errorf("rasterizer override not applied: %q", cfg.Render.Rasterizer)
	}
	if cfg.Notify.Enabled {
		t.Error("notify override not applied")
	}
	if cfg.Logging.Output != "file" || cfg.Logging.FilePath != "/tmp/signpad-test.log" {
		t.Errorf("log path override should switch output to file: %+v", cfg.Logging)
	}
}

func TestValidation(t *testing.T) {
	isolate(t)
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"version", func(c *Config) { c.Version = 9 }, "version"},
		{"annotator", func(c *Config) { c.Annotator.Name = "  " }, "annotator.name"},
		{"canvas width", func(c *Config) { c.Canvas.Width = 10 }, "canvas.width"},
		{"zoom order", func(c *Config) { c.Canvas.ZoomMax = 0.2 }, "canvas.zoom_max"},
		{"zoom step", func(c *Config) { c.Canvas.ZoomStep = 1 }, "canvas.zoom_step"},
		{"library", func(c *Config) { c.Library.Path = "" }, "library.path"},
		{"image width", func(c *Config) { c.Export.MaxImageWidth = 0 }, "export.max_image_width"},
		{"rasterizer", func(c *Config) { c.Render.Rasterizer = "ghostscript" }, "render.rasterizer"},
		{"timeout", func(c *Config) { c.Render.TimeoutSec = 0 }, "render.timeout_sec"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"log output", func(c *Config) { c.Logging.Output = "syslog" }, "logging.output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %T", err)
			}
			found := false
			for _, f := range verrs.Fields() {
				if f == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected field %s in %v", tt.field, verrs.Fields())
			}
		})
	}
}

func TestSaveAndLoadOrCreate(t *testing.T) {
	isolate(t)
	for _, name := range []string{"config.toml", "config.json", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg, created, err := LoadOrCreate(path)
			if err != nil {
				t.Fatalf("LoadOrCreate failed: %v", err)
			}
			if !created {
				t.Error("expected a new file")
			}

			cfg.Annotator.Name = "CAROL"
			cfg.Export.Compress = false
			if err := SaveConfig(cfg, path); err != nil {
				t.Fatalf("SaveConfig failed: %v", err)
			}
			again, created, err := LoadOrCreate(path)
			if err != nil {
				t.Fatalf("LoadOrCreate failed: %v", err)
			}
			if created {
				t.Error("file should already exist")
			}
			if again.Annotator.Name != "CAROL" || again.Export.Compress {
				t.Errorf("saved values not read back: %+v", again)
			}
		})
	}
}

func TestEncodeHasHeader(t *testing.T) {
	isolate(t)
	data, err := DefaultConfig().Encode()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# signpad configuration") {
		t.Error("encoded config should start with a header comment")
	}
	if !strings.Contains(string(data), "[annotator]") {
		t.Error("encoded config should contain the annotator table")
	}
}

func TestLoaderReload(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[annotator]\nname = \"FIRST\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(path, nil)
	defer l.Close()
	if _, err := l.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	changed := make(chan [2]string, 1)
	l.OnChange(func(old, new *Config) {
		changed <- [2]string{old.Annotator.Name, new.Annotator.Name}
	})
	if err := l.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("[annotator]\nname = \"SECOND\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case names := <-changed:
		if names != [2]string{"FIRST", "SECOND"} {
			t.Errorf("unexpected change %v", names)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("configuration was not reloaded")
	}
	if l.Config().Annotator.Name != "SECOND" {
		t.Errorf("loader holds %q", l.Config().Annotator.Name)
	}
}

func TestLoaderRejectsInvalidReload(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[annotator]\nname = \"OK\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	l := NewLoader(path, nil)
	defer l.Close()
	if _, err := l.Load(); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("[render]\nrasterizer = \"nope\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := l.Reload(); err == nil {
		t.Error("expected reload to fail validation")
	}
	if l.Config().Annotator.Name != "OK" {
		t.Error("a failed reload must keep the previous configuration")
	}
}
