package element

import (
	"fmt"
	"image"

	"signpad/internal/geom"
)

// Placement describes a new element. A zero Rect selects the default
// placement for the kind.
type Placement struct {
	Rect  geom.Rect
	Text  string
	Color Color
	Image image.Image
}

// Set is the ordered collection of all elements of the open document.
// Insertion order is z-order: later elements are drawn on top and win hit
// tests.
type Set struct {
	elems  []*Element
	nextID ID
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{}
}

// Create builds an element of the given kind, appends it and returns it.
func (s *Set) Create(kind Kind, page int, p Placement) (*Element, error) {
	var e *Element
	switch kind {
	case KindText:
		text := p.Text
		if text == "" {
			text = DefaultText
		}
		e = NewText(page, text)
		e.Color = p.Color
	case KindImage:
		if p.Image == nil {
			return nil, ErrNoContent
		}
		e = NewImage(page, p.Image)
	default:
		return nil, fmt.Errorf("element: cannot create %v", kind)
	}
	if !p.Rect.Empty() {
		e.X, e.Y = p.Rect.X, p.Rect.Y
		e.Width, e.Height = p.Rect.Width, p.Rect.Height
	}
	return s.Add(e), nil
}

// Add appends e, assigning it a fresh ID.
func (s *Set) Add(e *Element) *Element {
	s.nextID++
	e.ID = s.nextID
	s.elems = append(s.elems, e)
	return e
}

// Len returns the number of elements.
func (s *Set) Len() int {
	return len(s.elems)
}

// All returns the elements in insertion order. The slice is a copy.
func (s *Set) All() []*Element {
	out := make([]*Element, len(s.elems))
	copy(out, s.elems)
	return out
}

// At returns the element at position i in insertion order.
func (s *Set) At(i int) (*Element, bool) {
	if i < 0 || i >= len(s.elems) {
		return nil, false
	}
	return s.elems[i], true
}

// ByID finds an element by ID.
func (s *Set) ByID(id ID) (*Element, bool) {
	for _, e := range s.elems {
		if e.ID == id {
			return e, true
		}
	}
	return nil, false
}

// Index returns the position of e, or -1.
func (s *Set) Index(e *Element) int {
	for i, x := range s.elems {
		if x == e {
			return i
		}
	}
	return -1
}

// Contains reports whether e belongs to the set.
func (s *Set) Contains(e *Element) bool {
	return e != nil && s.Index(e) >= 0
}

// ForPage returns the elements anchored to page, in z-order.
func (s *Set) ForPage(page int) []*Element {
	var out []*Element
	for _, e := range s.elems {
		if e.Page == page {
			out = append(out, e)
		}
	}
	return out
}

// Pages returns the distinct pages that carry elements, in first-use order.
func (s *Set) Pages() []int {
	seen := make(map[int]bool)
	var pages []int
	for _, e := range s.elems {
		if !seen[e.Page] {
			seen[e.Page] = true
			pages = append(pages, e.Page)
		}
	}
	return pages
}

// Remove deletes e from the set.
func (s *Set) Remove(e *Element) error {
	i := s.Index(e)
	if i < 0 {
		return ErrStaleElement
	}
	s.elems = append(s.elems[:i], s.elems[i+1:]...)
	return nil
}

// Clear removes every element. IDs keep increasing.
func (s *Set) Clear() {
	s.elems = nil
}

// Move adds a base-display delta to the element position.
func (s *Set) Move(e *Element, dx, dy float64) error {
	if !s.Contains(e) {
		return ErrStaleElement
	}
	e.X += dx
	e.Y += dy
	return nil
}

// MoveTo sets the element position.
func (s *Set) MoveTo(e *Element, x, y float64) error {
	if !s.Contains(e) {
		return ErrStaleElement
	}
	e.X, e.Y = x, y
	return nil
}

// Resize applies one step of the resize policy. The position is unchanged.
func (s *Set) Resize(e *Element, enlarge bool) error {
	if !s.Contains(e) {
		return ErrStaleElement
	}
	e.Width, e.Height = ResizeStep(e.Width, e.Height, enlarge)
	return nil
}

// SetText replaces the content of a text element.
func (s *Set) SetText(e *Element, text string) error {
	if !s.Contains(e) {
		return ErrStaleElement
	}
	if e.Kind != KindText {
		return ErrNotText
	}
	e.Text = text
	return nil
}

// SetColor changes the color of a text element.
func (s *Set) SetColor(e *Element, c Color) error {
	if !s.Contains(e) {
		return ErrStaleElement
	}
	if e.Kind != KindText {
		return ErrNotText
	}
	if !c.valid() {
		return fmt.Errorf("element: invalid color %d", int(c))
	}
	e.Color = c
	return nil
}
