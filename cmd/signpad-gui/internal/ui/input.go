package ui

import (
	"image"
	"time"

	"gioui.org/f32"
	"gioui.org/io/key"

	"signpad/internal/geom"
)

const (
	doubleClickInterval = 400 * time.Millisecond
	doubleClickSlop     = 4
)

// clickTracker recognizes a second press near the first one within the
// double click interval.
type clickTracker struct {
	last  time.Time
	pos   f32.Point
	armed bool
}

// press records a press and reports whether it completes a double click.
// A double click disarms the tracker so a third press starts over.
func (c *clickTracker) press(now time.Time, pos f32.Point) bool {
	d := pos.Sub(c.pos)
	double := c.armed &&
		now.Sub(c.last) <= doubleClickInterval &&
		abs32(d.X) <= doubleClickSlop && abs32(d.Y) <= doubleClickSlop
	c.last, c.pos, c.armed = now, pos, !double
	return double
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// resizeDelta maps a vertical wheel step to the engine's sign: scrolling
// up (negative Y in gio) enlarges.
func resizeDelta(scrollY float32) float64 {
	return -float64(scrollY)
}

// resizeModifier reports whether the modifiers turn a scroll into a resize.
func resizeModifier(m key.Modifiers) bool {
	return m.Contain(key.ModCtrl) || m.Contain(key.ModShortcut)
}

// canvasPoint converts a pointer position in widget space to zoomed-display
// space, given the scroll offset of the canvas.
func canvasPoint(p f32.Point, offset image.Point) geom.Point {
	return geom.Point{X: float64(p.X) + float64(offset.X), Y: float64(p.Y) + float64(offset.Y)}
}

// clampOffset keeps a scroll offset inside content that is larger than
// the view.
func clampOffset(off, content, view image.Point) image.Point {
	clamp := func(v, c, w int) int {
		if max := c - w; v > max {
			v = max
		}
		if v < 0 {
			v = 0
		}
		return v
	}
	return image.Point{X: clamp(off.X, content.X, view.X), Y: clamp(off.Y, content.Y, view.Y)}
}

// pixelRect rounds a zoomed-display rectangle outwards.
func pixelRect(r geom.Rect) image.Rectangle {
	return image.Rect(int(r.X), int(r.Y), int(r.X+r.Width+0.999), int(r.Y+r.Height+0.999))
}
