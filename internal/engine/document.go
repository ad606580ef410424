package engine

import (
	"context"
	"fmt"
)

// OpenDocument opens path and shows its first page. On failure the session
// is left unchanged and a *DocumentOpenError is returned.
func (s *Session) OpenDocument(ctx context.Context, path string) error {
	if s.src == nil {
		return &DocumentOpenError{Path: path, Err: fmt.Errorf("no document source")}
	}
	doc, err := s.src.Open(path)
	if err != nil {
		s.setStatus("Failed to open PDF: %v", err)
		return &DocumentOpenError{Path: path, Err: err}
	}
	if doc.PageCount() < 1 {
		_ = doc.Close()
		s.setStatus("Failed to open PDF: document has no pages")
		return &DocumentOpenError{Path: path, Err: fmt.Errorf("document has no pages")}
	}

	if err := s.closeDocument(); err != nil {
		s.logger.Warn("closing previous document", "error", err)
	}
	s.doc = doc
	s.logger.Info("document opened", "path", path, "pages", doc.PageCount())
	if err := s.redisplay(ctx); err != nil {
		return err
	}
	s.setStatus("Opened %s (%d pages)", path, doc.PageCount())
	return nil
}

// CloseDocument closes the open document and clears every element.
func (s *Session) CloseDocument() error {
	if s.doc == nil {
		return nil
	}
	err := s.closeDocument()
	s.setStatus("Document closed")
	return err
}

func (s *Session) closeDocument() error {
	s.edit = nil
	s.deselect()
	s.set.Clear()
	s.view.Reset()
	s.adapter.Reset()
	if s.doc == nil {
		return nil
	}
	err := s.doc.Close()
	s.doc = nil
	if err != nil {
		return fmt.Errorf("engine: close document: %w", err)
	}
	return nil
}

// PageCount returns the number of pages of the open document, or 0.
func (s *Session) PageCount() int {
	if s.doc == nil {
		return 0
	}
	return s.doc.PageCount()
}

// Page returns the current zero-based page.
func (s *Session) Page() int {
	return s.view.Page
}

// GotoPage shows page n. An open editor is confirmed and the selection is
// cleared; elements are never modified by navigation.
func (s *Session) GotoPage(ctx context.Context, n int) error {
	if s.doc == nil {
		return ErrNoDocument
	}
	if n < 0 || n >= s.doc.PageCount() {
		return fmt.Errorf("engine: page %d out of range [0,%d)", n, s.doc.PageCount())
	}
	s.endGesture()
	s.deselect()
	s.view.Page = n
	return s.redisplay(ctx)
}

// NextPage moves forward one page. It is a no-op on the last page.
func (s *Session) NextPage(ctx context.Context) error {
	if s.doc == nil || s.view.Page >= s.doc.PageCount()-1 {
		return nil
	}
	return s.GotoPage(ctx, s.view.Page+1)
}

// PrevPage moves back one page. It is a no-op on the first page.
func (s *Session) PrevPage(ctx context.Context) error {
	if s.doc == nil || s.view.Page == 0 {
		return nil
	}
	return s.GotoPage(ctx, s.view.Page-1)
}

// ZoomIn multiplies the zoom by the zoom step.
func (s *Session) ZoomIn(ctx context.Context) error {
	return s.zoom(ctx, s.view.ZoomIn)
}

// ZoomOut divides the zoom by the zoom step.
func (s *Session) ZoomOut(ctx context.Context) error {
	return s.zoom(ctx, s.view.ZoomOut)
}

// ZoomReset returns to 100%.
func (s *Session) ZoomReset(ctx context.Context) error {
	return s.zoom(ctx, s.view.ZoomReset)
}

// SetZoom sets an explicit zoom factor, clamped to the configured range.
func (s *Session) SetZoom(ctx context.Context, z float64) error {
	return s.zoom(ctx, func() bool { return s.view.SetZoom(z) })
}

// zoom changes the zoom factor and redisplays the page. Stored geometry is
// not touched. A drag in progress ends; the selection is kept.
func (s *Session) zoom(ctx context.Context, change func() bool) error {
	if s.state == Dragging {
		s.state = Selected
	}
	if s.state == Editing {
		s.confirmOpenEdit("zoom")
	}
	change()
	s.setStatus("Zoom: %d%%", int(s.view.Zoom*100+0.5))
	if s.doc == nil {
		return nil
	}
	return s.redisplay(ctx)
}

// Redisplay recomputes the base scale, rasterizes the current page and
// redraws every element on it.
func (s *Session) Redisplay(ctx context.Context) error {
	if s.doc == nil {
		return ErrNoDocument
	}
	return s.redisplay(ctx)
}

func (s *Session) redisplay(ctx context.Context) error {
	size, err := s.doc.PageSize(s.view.Page)
	if err != nil {
		return fmt.Errorf("engine: page %d geometry: %w", s.view.Page, err)
	}
	s.view.Refresh(size.Width)
	tr := s.Transform()

	s.adapter.Reset()
	if s.raster != nil {
		img, err := s.raster.Rasterize(ctx, s.doc, s.view.Page, tr.DisplayScale())
		if err != nil {
			s.logger.Warn("page rasterization failed", "page", s.view.Page, "error", err)
			s.setStatus("Failed to display page: %v", err)
		} else {
			s.adapter.SetPage(img)
		}
	}
	for _, e := range s.set.ForPage(s.view.Page) {
		if s.edit != nil && s.edit.Element == e.ID {
			continue
		}
		s.adapter.Draw(e, tr)
	}
	if s.selected != nil && s.selected.Page == s.view.Page {
		s.adapter.Select(s.selected.Rect(), tr)
	}
	return nil
}
