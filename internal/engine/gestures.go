package engine

import (
	"errors"

	"signpad/internal/element"
	"signpad/internal/geom"
)

// Click selects the top-most element under p, a point in zoomed-display
// space. A click on empty canvas clears the selection.
func (s *Session) Click(p geom.Point) error {
	if s.doc == nil {
		return nil
	}
	s.endGesture()

	e, err := s.HitTest(p)
	if err != nil {
		if errors.Is(err, ErrNoHit) {
			s.deselect()
			return nil
		}
		return err
	}
	s.selectElement(e)
	return nil
}

// DragBegin starts moving the element under p. A press on an unselected
// element selects it first, so press-and-drag works as one gesture.
func (s *Session) DragBegin(p geom.Point) error {
	if err := s.Click(p); err != nil {
		return err
	}
	if s.state != Selected {
		return nil
	}
	s.state = Dragging
	s.anchor = p
	return nil
}

// DragMove moves the dragged element by the pointer delta since the last
// move. The anchor advances on every call so rounding never accumulates.
func (s *Session) DragMove(p geom.Point) error {
	if s.state != Dragging || s.selected == nil {
		return nil
	}
	d := s.Transform().PointFromZoomed(p.Sub(s.anchor))
	s.anchor = p
	e := s.selected
	return s.mutate("move", e, func() error {
		return s.set.Move(e, d.X, d.Y)
	})
}

// DragEnd finishes a drag.
func (s *Session) DragEnd() {
	if s.state == Dragging {
		s.state = Selected
	}
}

// Scroll handles a wheel step. With ctrl held and an element selected it
// resizes the element: up (delta > 0) enlarges, down shrinks. Plain scrolling
// belongs to the front end and is ignored here.
func (s *Session) Scroll(delta float64, ctrl bool) error {
	if !ctrl || delta == 0 || s.state != Selected || s.selected == nil {
		return nil
	}
	e := s.selected
	if err := s.mutate("resize", e, func() error {
		return s.set.Resize(e, delta > 0)
	}); err != nil {
		return err
	}
	if s.selected == e {
		s.adapter.SetFeedback(e.Rect(), s.Transform())
	}
	return nil
}

// DoubleClick opens the inline editor on the text element under p.
func (s *Session) DoubleClick(p geom.Point) error {
	if s.doc == nil {
		return nil
	}
	s.endGesture()
	e, err := s.HitTest(p)
	if err != nil {
		if errors.Is(err, ErrNoHit) {
			return nil
		}
		return err
	}
	s.selectElement(e)
	if e.Kind != element.KindText {
		return nil
	}
	s.beginEdit(e)
	return nil
}

// endGesture brings the session back to Selected or Idle before a new
// gesture. An open editor loses focus, which confirms it.
func (s *Session) endGesture() {
	switch s.state {
	case Dragging:
		s.state = Selected
	case Editing:
		s.confirmOpenEdit("gesture")
	}
}
