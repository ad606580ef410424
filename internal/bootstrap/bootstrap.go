// Package bootstrap wires configuration, logging, the signature library,
// notifications and the PDF back end into sessions and exporters for the
// signpad commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"signpad/internal/config"
	"signpad/internal/engine"
	"signpad/internal/export"
	"signpad/internal/library"
	"signpad/internal/logging"
	"signpad/internal/notify"
	"signpad/internal/pdfdoc"
)

// ErrNoLibrary is returned by commands that need the signature library when
// it could not be opened.
var ErrNoLibrary = errors.New("bootstrap: signature library unavailable")

// Options controls Setup.
type Options struct {
	// ConfigPath overrides the configuration file lookup.
	ConfigPath string

	// Strict turns stale element references into panics.
	Strict bool

	// SkipLibrary leaves the library closed.
	SkipLibrary bool

	// SkipNotify disables desktop notifications regardless of config.
	SkipNotify bool
}

// Env holds the long-lived collaborators of one process.
type Env struct {
	Config   *config.Config
	Loader   *config.Loader
	Log      *logging.Logger
	Library  *library.Store
	Notifier notify.Notifier

	strict bool
}

// ResolveConfigPath returns path, or the first config file found in the
// standard locations, or the default config path.
func ResolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if found := config.FindConfigFile(); found != "" {
		return found
	}
	return config.ConfigPath()
}

// Setup loads configuration, installs the default logger and opens the
// library. A library that cannot be opened is logged and left nil.
func Setup(ctx context.Context, opts Options) (*Env, error) {
	loader := config.NewLoader(ResolveConfigPath(opts.ConfigPath), nil)
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	lc, err := logging.FromConfig(cfg.Logging)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(lc)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: logger: %w", err)
	}
	logging.SetDefault(log)

	env := &Env{
		Config: cfg,
		Loader: loader,
		Log:    log,
		strict: opts.Strict,
	}
	if !opts.SkipLibrary {
		if err := cfg.EnsureDirectories(); err != nil {
			log.Warn("creating data directories", "error", err)
		}
		store, err := library.Open(ctx, cfg.LibraryPath(), log.Logger)
		if err != nil {
			log.Warn("signature library unavailable", "path", cfg.LibraryPath(), "error", err)
		} else {
			env.Library = store
		}
	}
	env.Notifier = notify.New(cfg.Notify.Enabled && !opts.SkipNotify, log.Logger)
	return env, nil
}

// Rasterizer returns the page rasterizer selected by configuration.
func (e *Env) Rasterizer() engine.Rasterizer {
	if e.Config.Render.Rasterizer == "blank" {
		return pdfdoc.Blank{}
	}
	return pdfdoc.NewRasterizer(e.Config.Render.PdftoppmPath, e.Config.RenderTimeout(), e.Log.Logger)
}

// NewSession returns an idle session using the configured canvas.
func (e *Env) NewSession() *engine.Session {
	opts := engine.Options{
		Source:      pdfdoc.Source{},
		Rasterizer:  e.Rasterizer(),
		Logger:      e.Log.Logger,
		CanvasWidth: e.Config.Canvas.Width,
		Zoom:        e.Config.ZoomLimits(),
		Strict:      e.strict,
	}
	if e.Library != nil {
		opts.Library = e.Library
	}
	return engine.NewSession(opts)
}

// Exporter returns an exporter writing incremental PDF updates.
func (e *Env) Exporter() *export.Exporter {
	return export.New(pdfdoc.Sink{Logger: e.Log.Logger}, e.Config.ExportOptions(), e.Log.Logger)
}

// Sign exports every element of the session under the configured
// annotator, or under annotator when it is not empty, and announces the
// result.
func (e *Env) Sign(ctx context.Context, s *engine.Session, annotator string) (*export.Result, error) {
	doc := s.Document()
	if doc == nil {
		return nil, engine.ErrNoDocument
	}
	if annotator == "" {
		annotator = e.Config.Annotator.Name
	}
	op := e.Log.NewOperationID()
	ctx = logging.ContextWithOperation(ctx, op)
	e.Log.WithContext(ctx).Info("signing document", "source", doc.Path(), "annotator", annotator)

	res, err := e.Exporter().Export(ctx, export.Request{
		Source:      doc.Path(),
		Pages:       doc,
		CanvasWidth: s.Viewport().CanvasWidth,
		Elements:    s.Set().All(),
		Annotator:   annotator,
	})
	if err != nil {
		return nil, err
	}
	msg := res.Message(filepath.Base(res.Path))
	if err := e.Notifier.Notify(ctx, notify.Notification{
		Summary: "Document signed",
		Body:    msg,
	}); err != nil {
		e.Log.Warn("notification failed", "error", err)
	}
	return res, nil
}

// RequireLibrary returns the library or ErrNoLibrary.
func (e *Env) RequireLibrary() (*library.Store, error) {
	if e.Library == nil {
		return nil, ErrNoLibrary
	}
	return e.Library, nil
}

// Close releases the library, the notifier, the config watcher and the log
// file.
func (e *Env) Close() error {
	var errs []error
	if e.Library != nil {
		errs = append(errs, e.Library.Close())
	}
	if e.Notifier != nil {
		errs = append(errs, e.Notifier.Close())
	}
	if e.Loader != nil {
		errs = append(errs, e.Loader.Close())
	}
	errs = append(errs, e.Log.Close())
	return errors.Join(errs...)
}
