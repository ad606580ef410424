// Package engine implements the overlay interaction engine: an explicit
// session state that turns pointer gestures into element mutations and keeps
// the render adapter in step with the model.
//
// Element geometry is stored in base-display space. Pointer positions
// arrive in zoomed-display space and are converted with the viewport
// transform before they touch the model, so zooming never alters stored
// geometry. All methods must be called from one goroutine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"signpad/internal/element"
	"signpad/internal/geom"
	"signpad/internal/render"
	"signpad/internal/viewport"
)

// Errors reported by the session.
var (
	// ErrNoHit is returned by HitTest when no element is under the point.
	// Gestures that miss resolve silently and never surface it.
	ErrNoHit = errors.New("engine: no element at point")

	// ErrNoDocument is returned by operations that need an open document.
	ErrNoDocument = errors.New("engine: no document open")

	// ErrNoSelection is returned by operations that need a selected element.
	ErrNoSelection = errors.New("engine: no element selected")

	// ErrNoLibrary is returned when no signature library is configured.
	ErrNoLibrary = errors.New("engine: no signature library")
)

// DocumentOpenError reports a document that could not be opened.
type DocumentOpenError struct {
	Path string
	Err  error
}

func (e *DocumentOpenError) Error() string {
	return fmt.Sprintf("engine: open %s: %v", e.Path, e.Err)
}

func (e *DocumentOpenError) Unwrap() error {
	return e.Err
}

// Document is an open, read-only paginated document.
type Document interface {
	Path() string
	PageCount() int
	PageSize(page int) (geom.Size, error)
	Close() error
}

// DocumentSource opens documents.
type DocumentSource interface {
	Open(path string) (Document, error)
}

// Rasterizer renders one page of a document at the given document-to-pixel
// scale.
type Rasterizer interface {
	Rasterize(ctx context.Context, doc Document, page int, scale float64) (image.Image, error)
}

// Library maps signature names to images.
type Library interface {
	Names(ctx context.Context) ([]string, error)
	Load(ctx context.Context, name string) (image.Image, error)
}

// State is the interaction state.
type State int

const (
	Idle State = iota
	Selected
	Dragging
	Editing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selected:
		return "selected"
	case Dragging:
		return "dragging"
	case Editing:
		return "editing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures a Session.
type Options struct {
	Source     DocumentSource
	Rasterizer Rasterizer
	Library    Library
	Logger     *slog.Logger

	CanvasWidth float64
	Zoom        viewport.Limits

	// Strict makes operations on elements that are no longer in the set
	// panic instead of being logged and ignored.
	Strict bool
}

// Session is the complete interaction state of one window.
type Session struct {
	logger *slog.Logger
	src    DocumentSource
	raster Rasterizer
	lib    Library
	strict bool

	doc      Document
	set      *element.Set
	view     *viewport.Viewport
	adapter  *render.Adapter
	state    State
	selected *element.Element
	anchor   geom.Point
	edit     *EditBox
	status   string
}

// NewSession returns an idle session with no document.
func NewSession(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "engine")
	limits := opts.Zoom
	if limits == (viewport.Limits{}) {
		limits = viewport.DefaultLimits()
	}
	return &Session{
		logger:  logger,
		src:     opts.Source,
		raster:  opts.Rasterizer,
		lib:     opts.Library,
		strict:  opts.Strict,
		set:     element.NewSet(),
		view:    viewport.New(opts.CanvasWidth, limits),
		adapter: render.NewAdapter(logger),
	}
}

// State returns the interaction state.
func (s *Session) State() State {
	return s.state
}

// Selected returns the selected element, or nil.
func (s *Session) Selected() *element.Element {
	return s.selected
}

// Document returns the open document, or nil.
func (s *Session) Document() Document {
	return s.doc
}

// Set returns the annotation set.
func (s *Session) Set() *element.Set {
	return s.set
}

// Viewport returns the viewport. Callers must not modify it.
func (s *Session) Viewport() *viewport.Viewport {
	return s.view
}

// Adapter returns the render adapter that holds the draw state.
func (s *Session) Adapter() *render.Adapter {
	return s.adapter
}

// Transform returns the current coordinate transform.
func (s *Session) Transform() geom.Transform {
	return s.view.Transform()
}

// Status returns the last user-facing status message.
func (s *Session) Status() string {
	return s.status
}

func (s *Session) setStatus(format string, args ...any) {
	s.status = fmt.Sprintf(format, args...)
	s.logger.Debug("status", "message", s.status)
}

// Elements returns one element list row per element in insertion order.
func (s *Session) Elements() []string {
	all := s.set.All()
	rows := make([]string, len(all))
	for i, e := range all {
		rows[i] = e.Label()
	}
	return rows
}

// stale handles an operation on an element that left the set.
func (s *Session) stale(op string, e *element.Element, err error) {
	if s.strict {
		panic(fmt.Sprintf("engine: %s on stale element: %v", op, err))
	}
	var id element.ID
	if e != nil {
		id = e.ID
	}
	s.logger.Error("operation on stale element", "op", op, "element", id, "error", err)
}

// mutate applies fn to e and redraws it. Stale element errors are handled
// here; other errors are returned.
func (s *Session) mutate(op string, e *element.Element, fn func() error) error {
	if err := fn(); err != nil {
		if errors.Is(err, element.ErrStaleElement) {
			s.stale(op, e, err)
			if s.selected == e {
				s.deselect()
			}
			return nil
		}
		return err
	}
	s.redraw(e)
	return nil
}

// redraw releases and redraws e if it is on the current page, and refreshes
// the selection decoration.
func (s *Session) redraw(e *element.Element) {
	s.adapter.Release(e.ID)
	if e.Page != s.view.Page {
		return
	}
	if s.state == Editing && s.edit != nil && s.edit.Element == e.ID {
		return
	}
	tr := s.Transform()
	s.adapter.Draw(e, tr)
	if s.selected == e {
		s.adapter.Select(e.Rect(), tr)
	}
}

func (s *Session) selectElement(e *element.Element) {
	s.selected = e
	s.state = Selected
	s.adapter.Select(e.Rect(), s.Transform())
}

func (s *Session) deselect() {
	s.selected = nil
	s.state = Idle
	s.adapter.Deselect()
	s.adapter.ClearFeedback()
}

// HitTest returns the top-most element on the current page whose zoomed
// bounds contain p.
func (s *Session) HitTest(p geom.Point) (*element.Element, error) {
	if s.doc == nil {
		return nil, ErrNoDocument
	}
	tr := s.Transform()
	elems := s.set.ForPage(s.view.Page)
	for i := len(elems) - 1; i >= 0; i-- {
		if tr.RectToZoomed(elems[i].Rect()).Contains(p) {
			return elems[i], nil
		}
	}
	return nil, ErrNoHit
}
