package ui

import (
	"image"
	"log/slog"

	"gioui.org/io/event"
	"gioui.org/io/key"
	"gioui.org/io/pointer"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"signpad/cmd/signpad-gui/internal/theme"
	"signpad/internal/element"
	"signpad/internal/engine"
	"signpad/internal/render"
)

// Canvas shows the composed page and forwards pointer gestures to the
// session. The page and its overlays are composed into one image whenever
// the session changed; the inline editor is a live widget on top.
type Canvas struct {
	theme   *theme.Theme
	session *engine.Session
	comp    *render.Compositor
	logger  *slog.Logger
	onError func(error)

	dirty  bool
	img    image.Image
	imgOp  paint.ImageOp
	offset image.Point
	clicks clickTracker

	editor   widget.Editor
	editing  element.ID
	hadFocus bool
}

// NewCanvas returns a canvas for s.
func NewCanvas(t *theme.Theme, s *engine.Session, comp *render.Compositor, logger *slog.Logger, onError func(error)) *Canvas {
	c := &Canvas{
		theme:   t,
		session: s,
		comp:    comp,
		logger:  logger,
		onError: onError,
		dirty:   true,
	}
	c.editor.SingleLine = true
	c.editor.Submit = true
	return c
}

// Invalidate forces the page image to be composed again.
func (c *Canvas) Invalidate() {
	c.dirty = true
}

// ResetScroll moves the view to the top-left corner.
func (c *Canvas) ResetScroll() {
	c.offset = image.Point{}
}

// EditorText returns the live content of the inline editor.
func (c *Canvas) EditorText() string {
	return c.editor.Text()
}

func (c *Canvas) report(err error) {
	if err != nil && c.onError != nil {
		c.onError(err)
	}
}

// Layout handles input and draws the canvas.
func (c *Canvas) Layout(gtx layout.Context) layout.Dimensions {
	size := gtx.Constraints.Max
	c.updateEditor(gtx)
	c.handlePointer(gtx)
	c.handleKeys(gtx)

	if c.dirty {
		c.compose()
	}
	if c.img != nil {
		c.offset = clampOffset(c.offset, c.img.Bounds().Size(), size)
	}

	defer clip.Rect{Max: size}.Push(gtx.Ops).Pop()
	paint.Fill(gtx.Ops, c.theme.Palette.Canvas)
	event.Op(gtx.Ops, c)

	if c.img != nil {
		st := op.Offset(c.offset.Mul(-1)).Push(gtx.Ops)
		cl := clip.Rect{Max: c.img.Bounds().Size()}.Push(gtx.Ops)
		c.imgOp.Add(gtx.Ops)
		paint.PaintOp{}.Add(gtx.Ops)
		cl.Pop()
		st.Pop()
	}
	c.layoutEditor(gtx)
	return layout.Dimensions{Size: size}
}

func (c *Canvas) compose() {
	c.dirty = false
	if c.session.Document() == nil {
		c.img = nil
		return
	}
	img, err := c.comp.Compose(c.session.Adapter())
	if err != nil {
		c.logger.Error("composing page", "error", err)
		c.report(err)
		return
	}
	c.img = img
	c.imgOp = paint.NewImageOp(img)
}

func (c *Canvas) handlePointer(gtx layout.Context) {
	for {
		ev, ok := gtx.Event(pointer.Filter{
			Target:  c,
			Kinds:   pointer.Press | pointer.Drag | pointer.Release | pointer.Scroll,
			ScrollX: pointer.ScrollRange{Min: -1 << 16, Max: 1 << 16},
			ScrollY: pointer.ScrollRange{Min: -1 << 16, Max: 1 << 16},
		})
		if !ok {
			return
		}
		e, ok := ev.(pointer.Event)
		if !ok {
			continue
		}
		p := canvasPoint(e.Position, c.offset)
		switch e.Kind {
		case pointer.Press:
			if e.Buttons != pointer.ButtonPrimary {
				continue
			}
			c.syncEdit()
			gtx.Execute(key.FocusCmd{Tag: c})
			if c.clicks.press(gtx.Now, e.Position) {
				c.report(c.session.DoubleClick(p))
			} else {
				c.report(c.session.DragBegin(p))
			}
		case pointer.Drag:
			c.report(c.session.DragMove(p))
		case pointer.Release, pointer.Cancel:
			c.session.DragEnd()
		case pointer.Scroll:
			if resizeModifier(e.Modifiers) {
				c.report(c.session.Scroll(resizeDelta(e.Scroll.Y), true))
			} else {
				c.offset = c.offset.Add(image.Pt(int(e.Scroll.X), int(e.Scroll.Y)))
			}
		}
		c.dirty = true
	}
}

// handleKeys deletes the selected element with Delete or Backspace while
// the canvas has focus.
func (c *Canvas) handleKeys(gtx layout.Context) {
	for {
		ev, ok := gtx.Event(
			key.FocusFilter{Target: c},
			key.Filter{Focus: c, Name: key.NameDeleteForward},
			key.Filter{Focus: c, Name: key.NameDeleteBackward},
		)
		if !ok {
			return
		}
		ke, ok := ev.(key.Event)
		if !ok || ke.State != key.Press {
			continue
		}
		if c.session.State() == engine.Selected {
			c.report(c.session.DeleteSelected())
			c.dirty = true
		}
	}
}

// syncEdit hands the live editor text to the session, so that a gesture
// that confirms the edit commits what was typed.
func (c *Canvas) syncEdit() {
	if _, ok := c.session.EditBox(); ok {
		c.session.SetEditText(c.editor.Text())
	}
}

func (c *Canvas) updateEditor(gtx layout.Context) {
	box, ok := c.session.EditBox()
	if !ok {
		c.editing = 0
		c.hadFocus = false
		return
	}
	if c.editing != box.Element {
		c.editing = box.Element
		c.editor.SetText(box.Text)
		if box.SelectAll {
			c.editor.SetCaret(c.editor.Len(), 0)
		}
		gtx.Execute(key.FocusCmd{Tag: &c.editor})
		c.hadFocus = false
		return
	}

	for {
		ev, ok := c.editor.Update(gtx)
		if !ok {
			break
		}
		switch ev := ev.(type) {
		case widget.SubmitEvent:
			c.report(c.session.ConfirmEdit(ev.Text))
			c.dirty = true
			return
		case widget.ChangeEvent:
			c.session.SetEditText(c.editor.Text())
		}
	}
	for {
		ev, ok := gtx.Event(key.Filter{Focus: &c.editor, Name: key.NameEscape})
		if !ok {
			break
		}
		if ke, ok := ev.(key.Event); ok && ke.State == key.Press {
			c.report(c.session.CancelEdit())
			c.dirty = true
			return
		}
	}

	focused := gtx.Focused(&c.editor)
	if c.hadFocus && !focused {
		c.report(c.session.ConfirmEdit(c.editor.Text()))
		c.dirty = true
		return
	}
	c.hadFocus = focused
}

func (c *Canvas) layoutEditor(gtx layout.Context) {
	box, ok := c.session.EditBox()
	if !ok {
		return
	}
	r := pixelRect(box.Rect).Sub(c.offset)
	if r.Dx() < 80 {
		r.Max.X = r.Min.X + 80
	}
	defer op.Offset(r.Min).Push(gtx.Ops).Pop()

	sz := r.Size()
	paint.FillShape(gtx.Ops, c.theme.Palette.Surface, clip.Rect{Max: sz}.Op())
	paint.FillShape(gtx.Ops, c.theme.Palette.Primary, clip.Stroke{Path: clip.Rect{Max: sz}.Path(), Width: 1}.Op())

	gtx.Constraints = layout.Exact(sz)
	ed := material.Editor(c.theme.Theme, &c.editor, "")
	ed.TextSize = unit.Sp(float32(box.FontSize) / gtx.Metric.PxPerSp)
	layout.Inset{Left: unit.Dp(2), Right: unit.Dp(2)}.Layout(gtx, ed.Layout)
}
