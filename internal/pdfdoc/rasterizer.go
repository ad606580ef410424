package pdfdoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"signpad/internal/engine"
	"signpad/internal/raster"
)

// PointsPerInch converts a document-to-pixel scale into a resolution.
const PointsPerInch = 72.0

// DefaultRasterTimeout bounds one page rendering.
const DefaultRasterTimeout = 30 * time.Second

// ErrNoRenderer is returned when the external renderer is not installed.
var ErrNoRenderer = errors.New("pdfdoc: pdftoppm not found")

// Pdftoppm renders pages with the poppler pdftoppm tool.
type Pdftoppm struct {
	// Path is the executable; empty means "pdftoppm" on PATH.
	Path    string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Available reports whether the executable can be found.
func (p Pdftoppm) Available() bool {
	_, err := exec.LookPath(p.binary())
	return err == nil
}

func (p Pdftoppm) binary() string {
	if p.Path != "" {
		return p.Path
	}
	return "pdftoppm"
}

// Rasterize implements engine.Rasterizer. The image covers the page's
// visible box at scale pixels per point.
func (p Pdftoppm) Rasterize(ctx context.Context, doc engine.Document, page int, scale float64) (image.Image, error) {
	if scale <= 0 || math.IsNaN(scale) {
		return nil, fmt.Errorf("pdfdoc: invalid raster scale %v", scale)
	}
	bin, err := exec.LookPath(p.binary())
	if err != nil {
		return nil, ErrNoRenderer
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultRasterTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n := strconv.Itoa(page + 1)
	dpi := strconv.FormatFloat(scale*PointsPerInch, 'f', 2, 64)
	args := []string{"-f", n, "-l", n, "-r", dpi, "-png", "-singlefile", "-cropbox", doc.Path()}

	start := time.Now()
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if ctx.Err() != nil {
			return nil, fmt.Errorf("pdfdoc: render page %d: %w", page+1, ctx.Err())
		}
		return nil, fmt.Errorf("pdfdoc: render page %d: %w: %s", page+1, err, msg)
	}
	img, err := raster.DecodeBytes(stdout.Bytes(), "pdftoppm output")
	if err != nil {
		return nil, err
	}
	if p.Logger != nil {
		p.Logger.Debug("page rendered",
			"page", page+1,
			"dpi", dpi,
			"size", fmt.Sprintf("%dx%d", img.Bounds().Dx(), img.Bounds().Dy()),
			"elapsed", time.Since(start))
	}
	return img, nil
}

// Blank draws an empty white page with a thin border. It stands in when no
// renderer is installed.
type Blank struct{}

// Rasterize implements engine.Rasterizer.
func (Blank) Rasterize(_ context.Context, doc engine.Document, page int, scale float64) (image.Image, error) {
	size, err := doc.PageSize(page)
	if err != nil {
		return nil, err
	}
	w := int(math.Round(size.Width * scale))
	h := int(math.Round(size.Height * scale))
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("pdfdoc: empty page raster %dx%d", w, h)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	border := color.RGBA{R: 0xc0, G: 0xc0, B: 0xc0, A: 0xff}
	for x := 0; x < w; x++ {
		img.SetRGBA(x, 0, border)
		img.SetRGBA(x, h-1, border)
	}
	for y := 0; y < h; y++ {
		img.SetRGBA(0, y, border)
		img.SetRGBA(w-1, y, border)
	}
	return img, nil
}

// Fallback tries Primary and falls back to Secondary on any error.
type Fallback struct {
	Primary   engine.Rasterizer
	Secondary engine.Rasterizer
	Logger    *slog.Logger
}

// Rasterize implements engine.Rasterizer.
func (f Fallback) Rasterize(ctx context.Context, doc engine.Document, page int, scale float64) (image.Image, error) {
	img, err := f.Primary.Rasterize(ctx, doc, page, scale)
	if err == nil {
		return img, nil
	}
	if f.Logger != nil && !errors.Is(err, ErrNoRenderer) {
		f.Logger.Warn("page renderer failed, drawing blank page", "page", page+1, "error", err)
	}
	return f.Secondary.Rasterize(ctx, doc, page, scale)
}

// NewRasterizer returns pdftoppm with a blank-page fallback.
func NewRasterizer(path string, timeout time.Duration, logger *slog.Logger) engine.Rasterizer {
	return Fallback{
		Primary:   Pdftoppm{Path: path, Timeout: timeout, Logger: logger},
		Secondary: Blank{},
		Logger:    logger,
	}
}
