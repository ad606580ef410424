// Package render turns the element model into draw commands for a display
// surface. The Adapter owns one handle per drawn element; the element model
// never holds display state.
package render

import (
	"fmt"
	"image"
	"log/slog"
	"sort"

	"signpad/internal/element"
	"signpad/internal/geom"
)

// Handle identifies one drawn item on the surface.
type Handle uint64

// SelectionMargin is the gap between an element and its selection border.
const SelectionMargin = 5

// HandleSize is the side of the square resize handle.
const HandleSize = 8

// Command is one element drawn in zoomed-display space.
type Command struct {
	Handle  Handle
	Element element.ID
	Kind    element.Kind
	Rect    geom.Rect

	Text     string
	FontSize float64
	Color    element.Color

	Image image.Image
}

// Selection is the dashed border and resize handle around the selected
// element, in zoomed-display space.
type Selection struct {
	Border geom.Rect
	Handle geom.Rect
}

// Feedback is a short-lived label shown next to an element after a resize.
type Feedback struct {
	At   geom.Point
	Text string
}

// Adapter keeps the draw state of the current page: the page raster, one
// command per visible element, the selection decoration and feedback text.
type Adapter struct {
	logger *slog.Logger

	page   image.Image
	slots  map[element.ID]Handle
	cmds   map[Handle]Command
	next   Handle
	sel    *Selection
	notice *Feedback
}

// NewAdapter returns an empty adapter.
func NewAdapter(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		logger: logger,
		slots:  make(map[element.ID]Handle),
		cmds:   make(map[Handle]Command),
	}
}

// SetPage replaces the page raster.
func (a *Adapter) SetPage(img image.Image) {
	a.page = img
}

// Page returns the current page raster, or nil.
func (a *Adapter) Page() image.Image {
	return a.page
}

// Draw (re)draws e with the given transform. Any previous handle of e is
// released first, so an element never has more than one live handle.
func (a *Adapter) Draw(e *element.Element, tr geom.Transform) Handle {
	a.Release(e.ID)

	a.next++
	h := a.next
	cmd := Command{
		Handle:  h,
		Element: e.ID,
		Kind:    e.Kind,
		Rect:    tr.RectToZoomed(e.Rect()),
	}
	switch e.Kind {
	case element.KindText:
		cmd.Text = e.Text
		cmd.FontSize = e.FontSize(tr.Zoom)
		cmd.Color = e.Color
	case element.KindImage:
		cmd.Image = e.Image
	default:
		panic(fmt.Sprintf("render: unhandled element kind %v", e.Kind))
	}
	a.slots[e.ID] = h
	a.cmds[h] = cmd
	return h
}

// Release drops the handle of the element, if it has one.
func (a *Adapter) Release(id element.ID) {
	h, ok := a.slots[id]
	if !ok {
		return
	}
	delete(a.slots, id)
	delete(a.cmds, h)
}

// HandleOf returns the live handle of an element.
func (a *Adapter) HandleOf(id element.ID) (Handle, bool) {
	h, ok := a.slots[id]
	return h, ok
}

// Len returns the number of live element handles.
func (a *Adapter) Len() int {
	return len(a.slots)
}

// Commands returns the element commands in z-order. Element IDs grow with
// insertion order, so sorting by ID reproduces the set order.
func (a *Adapter) Commands() []Command {
	out := make([]Command, 0, len(a.cmds))
	for _, c := range a.cmds {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Element < out[j].Element })
	return out
}

// Select shows the selection decoration around a base-display rectangle.
func (a *Adapter) Select(r geom.Rect, tr geom.Transform) {
	z := tr.RectToZoomed(r)
	br := z.Max()
	a.sel = &Selection{
		Border: z.Inset(SelectionMargin),
		Handle: geom.Rect{
			X:      br.X - HandleSize/2,
			Y:      br.Y - HandleSize/2,
			Width:  HandleSize,
			Height: HandleSize,
		},
	}
}

// Deselect removes the selection decoration.
func (a *Adapter) Deselect() {
	a.sel = nil
}

// Selection returns the selection decoration, if any.
func (a *Adapter) Selection() (Selection, bool) {
	if a.sel == nil {
		return Selection{}, false
	}
	return *a.sel, true
}

// SetFeedback shows a size label to the right of a base-display rectangle.
func (a *Adapter) SetFeedback(r geom.Rect, tr geom.Transform) {
	z := tr.RectToZoomed(r)
	a.notice = &Feedback{
		At:   geom.Point{X: z.Max().X + 10, Y: z.Y},
		Text: fmt.Sprintf("%dx%d", int(r.Width), int(r.Height)),
	}
}

// ClearFeedback hides the size label.
func (a *Adapter) ClearFeedback() {
	a.notice = nil
}

// Feedback returns the size label, if any.
func (a *Adapter) Feedback() (Feedback, bool) {
	if a.notice == nil {
		return Feedback{}, false
	}
	return *a.notice, true
}

// Reset drops every handle and the page raster.
func (a *Adapter) Reset() {
	if n := len(a.slots); n > 0 {
		a.logger.Debug("releasing element handles", "count", n)
	}
	a.page = nil
	a.slots = make(map[element.ID]Handle)
	a.cmds = make(map[Handle]Command)
	a.sel = nil
	a.notice = nil
}
