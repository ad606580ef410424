// Package geom converts between the three coordinate spaces used by signpad.
//
// Document space is measured in PDF points with the origin at the top-left
// corner of the page. Base-display space is document space scaled so that the
// page width fills the canvas width. Zoomed-display space is base-display space
// multiplied by the user zoom factor; it is what is drawn and what pointer
// events report.
//
// All scale arithmetic lives here. Element geometry is stored in base-display
// space, so ToDocument never involves the zoom factor.
package geom

import "math"

// Point is a position in one of the coordinate spaces.
type Point struct {
	X, Y float64
}

// Add returns p+q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p-q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Size is a page size in points.
type Size struct {
	Width, Height float64
}

// Rect is an axis aligned rectangle given by its top-left corner and size.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// Min returns the top-left corner.
func (r Rect) Min() Point {
	return Point{X: r.X, Y: r.Y}
}

// Max returns the bottom-right corner.
func (r Rect) Max() Point {
	return Point{X: r.X + r.Width, Y: r.Y + r.Height}
}

// Contains reports whether p lies inside r. The right and bottom edges are
// inclusive so that a click on the resize handle still hits the element.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width &&
		p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Inset grows r by d on every side. A negative d shrinks it.
func (r Rect) Inset(d float64) Rect {
	return Rect{X: r.X - d, Y: r.Y - d, Width: r.Width + 2*d, Height: r.Height + 2*d}
}

// BaseScale returns the factor that fits a page of the given width into a
// canvas of the given width. A degenerate page width yields 1.
func BaseScale(canvasWidth, pageWidth float64) float64 {
	if pageWidth <= 0 || canvasWidth <= 0 {
		return 1
	}
	return canvasWidth / pageWidth
}

// Transform holds the two factors that relate the coordinate spaces.
type Transform struct {
	// BaseScale maps document points to base-display units.
	BaseScale float64
	// Zoom maps base-display units to zoomed-display pixels.
	Zoom float64
}

// Identity is the transform for a canvas exactly as wide as the page at 100%.
var Identity = Transform{BaseScale: 1, Zoom: 1}

// DisplayScale returns the combined document-to-screen factor used when a
// page is rasterized.
func (t Transform) DisplayScale() float64 {
	return t.base() * t.zoom()
}

func (t Transform) base() float64 {
	if t.BaseScale <= 0 {
		return 1
	}
	return t.BaseScale
}

func (t Transform) zoom() float64 {
	if t.Zoom <= 0 {
		return 1
	}
	return t.Zoom
}

// ToZoomed maps a base-display length to zoomed-display pixels.
func (t Transform) ToZoomed(v float64) float64 {
	return v * t.zoom()
}

// FromZoomed maps a zoomed-display length back to base-display units.
func (t Transform) FromZoomed(v float64) float64 {
	return v / t.zoom()
}

// ToDocument maps a base-display length to document points.
func (t Transform) ToDocument(v float64) float64 {
	return v / t.base()
}

// FromDocument maps document points to base-display units.
func (t Transform) FromDocument(v float64) float64 {
	return v * t.base()
}

// PointToZoomed applies ToZoomed to both coordinates.
func (t Transform) PointToZoomed(p Point) Point {
	return Point{X: t.ToZoomed(p.X), Y: t.ToZoomed(p.Y)}
}

// PointFromZoomed applies FromZoomed to both coordinates.
func (t Transform) PointFromZoomed(p Point) Point {
	return Point{X: t.FromZoomed(p.X), Y: t.FromZoomed(p.Y)}
}

// PointToDocument applies ToDocument to both coordinates.
func (t Transform) PointToDocument(p Point) Point {
	return Point{X: t.ToDocument(p.X), Y: t.ToDocument(p.Y)}
}

// RectToZoomed maps a base-display rectangle to zoomed-display space.
func (t Transform) RectToZoomed(r Rect) Rect {
	return Rect{
		X:      t.ToZoomed(r.X),
		Y:      t.ToZoomed(r.Y),
		Width:  t.ToZoomed(r.Width),
		Height: t.ToZoomed(r.Height),
	}
}

// RectToDocument maps a base-display rectangle to document space.
func (t Transform) RectToDocument(r Rect) Rect {
	return Rect{
		X:      t.ToDocument(r.X),
		Y:      t.ToDocument(r.Y),
		Width:  t.ToDocument(r.Width),
		Height: t.ToDocument(r.Height),
	}
}

// RectFromDocument maps a document rectangle to base-display space.
func (t Transform) RectFromDocument(r Rect) Rect {
	return Rect{
		X:      t.FromDocument(r.X),
		Y:      t.FromDocument(r.Y),
		Width:  t.FromDocument(r.Width),
		Height: t.FromDocument(r.Height),
	}
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
