package engine

import (
	"context"
	"errors"
	"fmt"
	"image"

	"signpad/internal/element"
	"signpad/internal/raster"
)

// AddText creates a default text element on the current page, selects it and
// opens the editor on it.
func (s *Session) AddText() (*element.Element, error) {
	if s.doc == nil {
		s.setStatus("Please open a PDF first")
		return nil, ErrNoDocument
	}
	s.endGesture()
	e, err := s.set.Create(element.KindText, s.view.Page, element.Placement{})
	if err != nil {
		return nil, err
	}
	s.redraw(e)
	s.selectElement(e)
	s.beginEdit(e)
	s.setStatus("Text added - edit text now")
	return e, nil
}

// AddImage creates an image element on the current page from a decoded
// image.
func (s *Session) AddImage(img image.Image) (*element.Element, error) {
	if s.doc == nil {
		s.setStatus("Please open a PDF first")
		return nil, ErrNoDocument
	}
	s.endGesture()
	e, err := s.set.Create(element.KindImage, s.view.Page, element.Placement{Image: img})
	if err != nil {
		return nil, err
	}
	s.redraw(e)
	s.setStatus("Image signature added")
	return e, nil
}

// AddImageFile decodes an image file and adds it. A decode failure creates
// nothing and returns a *raster.ImageDecodeError.
func (s *Session) AddImageFile(path string) (*element.Element, error) {
	if s.doc == nil {
		s.setStatus("Please open a PDF first")
		return nil, ErrNoDocument
	}
	img, err := raster.DecodeFile(path)
	if err != nil {
		s.setStatus("Failed to load image: %v", err)
		return nil, err
	}
	return s.AddImage(img)
}

// AddLibraryImage adds the named signature from the library.
func (s *Session) AddLibraryImage(ctx context.Context, name string) (*element.Element, error) {
	if s.doc == nil {
		s.setStatus("Please open a PDF first")
		return nil, ErrNoDocument
	}
	if s.lib == nil {
		return nil, ErrNoLibrary
	}
	img, err := s.lib.Load(ctx, name)
	if err != nil {
		s.setStatus("Please select a saved signature")
		return nil, fmt.Errorf("engine: load signature %q: %w", name, err)
	}
	e, err := s.AddImage(img)
	if err != nil {
		return nil, err
	}
	s.setStatus("Used saved signature: %s", name)
	return e, nil
}

// LibraryNames lists the signatures available to AddLibraryImage.
func (s *Session) LibraryNames(ctx context.Context) ([]string, error) {
	if s.lib == nil {
		return nil, ErrNoLibrary
	}
	return s.lib.Names(ctx)
}

// Place adds a fully specified element on any page without touching the
// selection. It is used to apply stored layouts.
func (s *Session) Place(kind element.Kind, page int, p element.Placement) (*element.Element, error) {
	if s.doc == nil {
		return nil, ErrNoDocument
	}
	if page < 0 || page >= s.doc.PageCount() {
		return nil, fmt.Errorf("engine: page %d out of range [0,%d)", page, s.doc.PageCount())
	}
	e, err := s.set.Create(kind, page, p)
	if err != nil {
		return nil, err
	}
	s.redraw(e)
	return e, nil
}

// DeleteSelected removes the selected element and returns to Idle.
func (s *Session) DeleteSelected() error {
	if s.selected == nil {
		return ErrNoSelection
	}
	if s.state == Editing {
		s.edit = nil
	}
	e := s.selected
	s.adapter.Release(e.ID)
	s.deselect()
	if err := s.set.Remove(e); err != nil {
		if errors.Is(err, element.ErrStaleElement) {
			s.stale("delete", e, err)
			return nil
		}
		return err
	}
	s.setStatus("Element deleted")
	return nil
}

// ClearAll removes every element on every page.
func (s *Session) ClearAll() {
	s.edit = nil
	s.deselect()
	for _, e := range s.set.All() {
		s.adapter.Release(e.ID)
	}
	s.set.Clear()
	s.setStatus("All elements cleared")
}

// SetSelectedColor changes the color of the selected text element.
func (s *Session) SetSelectedColor(c element.Color) error {
	e := s.selected
	if e == nil || e.Kind != element.KindText {
		s.setStatus("Please select a text element first")
		if e == nil {
			return ErrNoSelection
		}
		return element.ErrNotText
	}
	if err := s.mutate("color", e, func() error {
		return s.set.SetColor(e, c)
	}); err != nil {
		return err
	}
	s.setStatus("Text color changed to %s", c)
	return nil
}

// SelectIndex selects the i-th element of the element list, showing its
// page first when it is not the current one.
func (s *Session) SelectIndex(ctx context.Context, i int) error {
	e, ok := s.set.At(i)
	if !ok {
		return fmt.Errorf("engine: element index %d out of range", i)
	}
	if e.Page != s.view.Page {
		if err := s.GotoPage(ctx, e.Page); err != nil {
			return err
		}
	} else {
		s.endGesture()
	}
	s.selectElement(e)
	return nil
}
