// Package viewport tracks which page is shown and at what scale.
package viewport

import (
	"math"

	"signpad/internal/geom"
)

// Zoom limits and step used when no configuration overrides them.
const (
	DefaultZoomMin     = 0.5
	DefaultZoomMax     = 3.0
	DefaultZoomStep    = 1.2
	DefaultCanvasWidth = 700
)

// Limits bounds the zoom factor.
type Limits struct {
	Min, Max, Step float64
}

// DefaultLimits returns the standard zoom range.
func DefaultLimits() Limits {
	return Limits{Min: DefaultZoomMin, Max: DefaultZoomMax, Step: DefaultZoomStep}
}

func (l Limits) normalized() Limits {
	if l.Min <= 0 {
		l.Min = DefaultZoomMin
	}
	if l.Max < l.Min {
		l.Max = math.Max(l.Min, DefaultZoomMax)
	}
	if l.Step <= 1 {
		l.Step = DefaultZoomStep
	}
	return l
}

// Viewport holds the current page, the user zoom and the base scale of the
// displayed page. The zero value is not ready for use; call New.
type Viewport struct {
	Page        int
	Zoom        float64
	BaseScale   float64
	CanvasWidth float64

	limits Limits
}

// New returns a viewport on page 0 at 100% zoom.
func New(canvasWidth float64, limits Limits) *Viewport {
	if canvasWidth <= 0 {
		canvasWidth = DefaultCanvasWidth
	}
	return &Viewport{
		Zoom:        1,
		BaseScale:   1,
		CanvasWidth: canvasWidth,
		limits:      limits.normalized(),
	}
}

// Limits returns the configured zoom range.
func (v *Viewport) Limits() Limits {
	return v.limits
}

// Refresh recomputes the base scale for a page of the given width. It is
// called on every page display.
func (v *Viewport) Refresh(pageWidth float64) {
	v.BaseScale = geom.BaseScale(v.CanvasWidth, pageWidth)
}

// ZoomIn multiplies the zoom by the step, clamped to the limits.
func (v *Viewport) ZoomIn() bool {
	return v.setZoom(v.Zoom * v.limits.Step)
}

// ZoomOut divides the zoom by the step, clamped to the limits.
func (v *Viewport) ZoomOut() bool {
	return v.setZoom(v.Zoom / v.limits.Step)
}

// ZoomReset returns to 100%.
func (v *Viewport) ZoomReset() bool {
	return v.setZoom(1)
}

// SetZoom sets an explicit zoom, clamped to the limits. It reports whether
// the zoom changed.
func (v *Viewport) SetZoom(z float64) bool {
	return v.setZoom(z)
}

func (v *Viewport) setZoom(z float64) bool {
	z = geom.Clamp(z, v.limits.Min, v.limits.Max)
	if z == v.Zoom {
		return false
	}
	v.Zoom = z
	return true
}

// Reset returns to the first page at 100% zoom.
func (v *Viewport) Reset() {
	v.Page = 0
	v.Zoom = 1
	v.BaseScale = 1
}

// Transform returns the current coordinate transform.
func (v *Viewport) Transform() geom.Transform {
	return geom.Transform{BaseScale: v.BaseScale, Zoom: v.Zoom}
}
