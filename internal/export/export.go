package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"signpad/internal/element"
	"signpad/internal/fsutil"
	"signpad/internal/geom"
	"signpad/internal/raster"
)

// ErrNothingToExport is returned when the element set is empty.
var ErrNothingToExport = errors.New("export: no elements to export")

// ExportWriteError reports an output that could not be written. No file is
// left at Path when it is returned.
type ExportWriteError struct {
	Path string
	Err  error
}

func (e *ExportWriteError) Error() string {
	return fmt.Sprintf("export: write %s: %v", e.Path, e.Err)
}

func (e *ExportWriteError) Unwrap() error {
	return e.Err
}

// FinishOptions controls how a Writer serializes the document.
type FinishOptions struct {
	Compress bool
}

// Writer accumulates placements on a copy of the source document.
type Writer interface {
	PlaceImage(page int, rect geom.Rect, png []byte) error
	PlaceText(page int, at geom.Point, text string, size float64, color RGB) error
	Finish(w io.Writer, opts FinishOptions) error
}

// Sink starts document exports.
type Sink interface {
	Begin(sourcePath string) (Writer, error)
}

// Options configures an Exporter.
type Options struct {
	Compress       bool
	MaxImageWidth  int
	MaxImageHeight int
	// OutputDir overrides the directory of the output file.
	OutputDir string
}

// DefaultOptions returns compression on and the 800x600 image limit.
func DefaultOptions() Options {
	return Options{
		Compress:       true,
		MaxImageWidth:  raster.MaxEmbedWidth,
		MaxImageHeight: raster.MaxEmbedHeight,
	}
}

// Request describes one export.
type Request struct {
	Source      string
	Pages       PageSizer
	CanvasWidth float64
	Elements    []*element.Element
	Annotator   string
}

// Result describes a completed export.
type Result struct {
	Path        string
	SignedPages []int
	Images      int
	Texts       int
}

// Message is the status line shown after a successful export.
func (r *Result) Message(name string) string {
	msg := "PDF saved as: " + name
	if n := len(r.SignedPages); n > 0 {
		msg += fmt.Sprintf(" (%d pages signed)", n)
	}
	return msg
}

// Exporter writes signed documents.
type Exporter struct {
	sink   Sink
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// New returns an exporter writing through sink.
func New(sink Sink, opts Options, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxImageWidth <= 0 {
		opts.MaxImageWidth = raster.MaxEmbedWidth
	}
	if opts.MaxImageHeight <= 0 {
		opts.MaxImageHeight = raster.MaxEmbedHeight
	}
	return &Exporter{
		sink:   sink,
		opts:   opts,
		logger: logger.With("component", "export"),
		now:    time.Now,
	}
}

// SetClock replaces the clock used for the provenance stamp.
func (x *Exporter) SetClock(now func() time.Time) {
	x.now = now
}

// Plan computes the placements for a request without writing anything.
func (x *Exporter) Plan(req Request) (*Plan, error) {
	if len(req.Elements) == 0 {
		return nil, ErrNothingToExport
	}
	if req.Pages == nil {
		return nil, fmt.Errorf("export: no page geometry for %s", req.Source)
	}
	return BuildPlan(req.Elements, CanvasScale(req.Pages, req.CanvasWidth), req.Annotator, x.now())
}

// Export writes the signed copy of req.Source. The elements are only read.
// On failure no output file is left behind.
func (x *Exporter) Export(ctx context.Context, req Request) (*Result, error) {
	plan, err := x.Plan(req)
	if err != nil {
		return nil, err
	}
	out := OutputPath(req.Source, x.opts.OutputDir, req.Annotator)
	fail := func(err error) (*Result, error) {
		x.logger.Error("export failed", "output", out, "error", err)
		return nil, &ExportWriteError{Path: out, Err: err}
	}

	doc, err := x.sink.Begin(req.Source)
	if err != nil {
		return fail(err)
	}
	for _, im := range plan.Images {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		data, err := raster.EncodePNG(raster.Thumbnail(im.Image, x.opts.MaxImageWidth, x.opts.MaxImageHeight))
		if err != nil {
			return fail(err)
		}
		if err := doc.PlaceImage(im.Page, im.Rect, data); err != nil {
			return fail(fmt.Errorf("place image on page %d: %w", im.Page+1, err))
		}
	}
	for _, list := range [][]TextPlacement{plan.Texts, plan.Stamps} {
		for _, tp := range list {
			if err := doc.PlaceText(tp.Page, tp.At, tp.Text, tp.Size, tp.Color); err != nil {
				return fail(fmt.Errorf("place text on page %d: %w", tp.Page+1, err))
			}
		}
	}

	w, err := fsutil.NewAtomicWriter(out, fsutil.PermPublicFile)
	if err != nil {
		return fail(err)
	}
	if err := doc.Finish(w, FinishOptions{Compress: x.opts.Compress}); err != nil {
		w.Abort()
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		w.Abort()
		return fail(err)
	}
	if err := w.Commit(); err != nil {
		return fail(err)
	}

	res := &Result{
		Path:        w.Path(),
		SignedPages: plan.SignedPages(),
		Images:      len(plan.Images),
		Texts:       len(plan.Texts),
	}
	x.logger.Info("document exported",
		"source", req.Source,
		"output", res.Path,
		"images", res.Images,
		"texts", res.Texts,
		"signed_pages", len(res.SignedPages))
	return res, nil
}
