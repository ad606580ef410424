package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"signpad/internal/geom"
)

var (
	selectionBlue = color.NRGBA{R: 0x00, G: 0x00, B: 0xff, A: 0xff}
	handleOutline = color.NRGBA{R: 0x00, G: 0x00, B: 0x8b, A: 0xff}
)

// Compositor draws an adapter's state into an RGBA image. It is the
// headless counterpart of the GUI canvas and is used for previews.
type Compositor struct {
	mu    sync.Mutex
	font  *opentype.Font
	faces map[int]font.Face
}

// NewCompositor parses the bundled Go Regular font.
func NewCompositor() (*Compositor, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("render: parse font: %w", err)
	}
	return &Compositor{font: f, faces: make(map[int]font.Face)}, nil
}

// Face returns a cached face of the given pixel size.
func (c *Compositor) Face(size float64) (font.Face, error) {
	px := int(math.Max(1, math.Round(size)))
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.faces[px]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(c.font, &opentype.FaceOptions{
		Size:    float64(px),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("render: face %dpx: %w", px, err)
	}
	c.faces[px] = f
	return f, nil
}

// Compose paints the page raster, the element commands, the selection and the
// feedback label. The canvas is at least as large as the page raster and
// every command.
func (c *Compositor) Compose(a *Adapter) (*image.RGBA, error) {
	cmds := a.Commands()
	bounds := image.Rectangle{}
	if p := a.Page(); p != nil {
		bounds = image.Rect(0, 0, p.Bounds().Dx(), p.Bounds().Dy())
	}
	for _, cmd := range cmds {
		bounds = bounds.Union(pixelRect(cmd.Rect))
	}
	bounds = bounds.Intersect(image.Rect(0, 0, math.MaxInt16, math.MaxInt16))
	if bounds.Empty() {
		bounds = image.Rect(0, 0, 1, 1)
	}
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Max.X, bounds.Max.Y))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	if p := a.Page(); p != nil {
		draw.Draw(dst, image.Rect(0, 0, p.Bounds().Dx(), p.Bounds().Dy()), p, p.Bounds().Min, draw.Over)
	}
	for _, cmd := range cmds {
		if err := c.drawCommand(dst, cmd); err != nil {
			return nil, err
		}
	}
	if sel, ok := a.Selection(); ok {
		dashedRect(dst, pixelRect(sel.Border), selectionBlue)
		hr := pixelRect(sel.Handle)
		draw.Draw(dst, hr, image.NewUniform(selectionBlue), image.Point{}, draw.Src)
		outlineRect(dst, hr, handleOutline)
	}
	if fb, ok := a.Feedback(); ok {
		face, err := c.Face(10)
		if err != nil {
			return nil, err
		}
		d := &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(selectionBlue),
			Face: face,
			Dot:  fixed.P(int(fb.At.X), int(fb.At.Y)+face.Metrics().Ascent.Ceil()),
		}
		d.DrawString(fb.Text)
	}
	return dst, nil
}

func (c *Compositor) drawCommand(dst draw.Image, cmd Command) error {
	r := pixelRect(cmd.Rect)
	switch {
	case cmd.Image != nil:
		if r.Empty() {
			return nil
		}
		draw.CatmullRom.Scale(dst, r, cmd.Image, cmd.Image.Bounds(), draw.Over, nil)
	case cmd.Text != "":
		face, err := c.Face(cmd.FontSize)
		if err != nil {
			return err
		}
		d := &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(cmd.Color.NRGBA()),
			Face: face,
			Dot:  fixed.P(r.Min.X, r.Min.Y+face.Metrics().Ascent.Ceil()),
		}
		d.DrawString(cmd.Text)
	}
	return nil
}

func pixelRect(r geom.Rect) image.Rectangle {
	return image.Rect(
		int(math.Floor(r.X)), int(math.Floor(r.Y)),
		int(math.Ceil(r.X+r.Width)), int(math.Ceil(r.Y+r.Height)),
	)
}

func outlineRect(dst draw.Image, r image.Rectangle, c color.Color) {
	for x := r.Min.X; x < r.Max.X; x++ {
		dst.Set(x, r.Min.Y, c)
		dst.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		dst.Set(r.Min.X, y, c)
		dst.Set(r.Max.X-1, y, c)
	}
}

// dashedRect draws a 2px border with 5px dashes.
func dashedRect(dst draw.Image, r image.Rectangle, c color.Color) {
	on := func(i int) bool { return (i/5)%2 == 0 }
	for w := 0; w < 2; w++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if on(x - r.Min.X) {
				dst.Set(x, r.Min.Y+w, c)
				dst.Set(x, r.Max.Y-1-w, c)
			}
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			if on(y - r.Min.Y) {
				dst.Set(r.Min.X+w, y, c)
				dst.Set(r.Max.X-1-w, y, c)
			}
		}
	}
}
