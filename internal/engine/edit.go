package engine

import (
	"strings"

	"signpad/internal/element"
	"signpad/internal/geom"
)

// EditBox describes the inline text editor the front end shows while the
// session is Editing. Rect and FontSize are in zoomed-display space.
type EditBox struct {
	Element  element.ID
	Rect     geom.Rect
	FontSize float64
	// Text is the initial content, later updated by SetEditText.
	Text      string
	SelectAll bool
}

// EditBox returns the open editor, if any.
func (s *Session) EditBox() (EditBox, bool) {
	if s.state != Editing || s.edit == nil {
		return EditBox{}, false
	}
	return *s.edit, true
}

func (s *Session) beginEdit(e *element.Element) {
	tr := s.Transform()
	s.adapter.Release(e.ID)
	s.edit = &EditBox{
		Element:   e.ID,
		Rect:      tr.RectToZoomed(e.Rect()),
		FontSize:  e.FontSize(tr.Zoom),
		Text:      e.Text,
		SelectAll: true,
	}
	s.state = Editing
}

// SetEditText records the editor content as the user types, so a later
// focus loss can confirm it.
func (s *Session) SetEditText(text string) {
	if s.edit != nil {
		s.edit.Text = text
	}
}

// ConfirmEdit commits text to the edited element. Surrounding space is
// trimmed; an empty result becomes the default text.
func (s *Session) ConfirmEdit(text string) error {
	e, ok := s.closeEdit()
	if !ok {
		return nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		text = element.DefaultText
	}
	return s.mutate("edit", e, func() error {
		return s.set.SetText(e, text)
	})
}

// confirmOpenEdit confirms the open editor with its last known text when
// another action takes over. Failures are logged, not returned.
func (s *Session) confirmOpenEdit(by string) {
	if s.edit == nil {
		return
	}
	id := s.edit.Element
	if err := s.ConfirmEdit(s.edit.Text); err != nil {
		s.logger.Warn("confirming edit failed", "by", by, "element", id, "error", err)
	}
}

// CancelEdit closes the editor without changing the content, except that
// the edit placeholder is replaced with the default text.
func (s *Session) CancelEdit() error {
	e, ok := s.closeEdit()
	if !ok {
		return nil
	}
	if e.Text != element.EditPlaceholder {
		s.redraw(e)
		return nil
	}
	return s.mutate("edit", e, func() error {
		return s.set.SetText(e, element.DefaultText)
	})
}

// closeEdit leaves Editing for Selected and returns the edited element.
func (s *Session) closeEdit() (*element.Element, bool) {
	if s.state != Editing || s.edit == nil {
		return nil, false
	}
	e, ok := s.set.ByID(s.edit.Element)
	s.edit = nil
	if !ok {
		s.stale("edit", nil, element.ErrStaleElement)
		s.deselect()
		return nil, false
	}
	s.selectElement(e)
	return e, true
}
