// Package element holds the annotation model: text and image elements placed
// on document pages, and the ordered set that owns them.
package element

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"signpad/internal/geom"
)

// Errors returned by element operations.
var (
	// ErrStaleElement is returned when an operation targets an element that
	// is no longer part of the set.
	ErrStaleElement = errors.New("element: element is not in the set")

	// ErrNotText is returned for text-only operations on image elements.
	ErrNotText = errors.New("element: not a text element")

	// ErrNoContent is returned when an image element is created without a
	// decoded raster.
	ErrNoContent = errors.New("element: image element needs a decoded image")
)

// Kind discriminates the element variants.
type Kind int

const (
	// KindText is a single line of text.
	KindText Kind = iota + 1
	// KindImage is a decoded raster image.
	KindImage
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindText || k == KindImage
}

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses "text" or "image".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text":
		return KindText, nil
	case "image":
		return KindImage, nil
	default:
		return 0, fmt.Errorf("element: unknown kind %q", s)
	}
}

// Defaults for newly created elements, in base-display units.
const (
	DefaultText        = "Text"
	EditPlaceholder    = "Click to edit text"
	DefaultFontSize    = 12
	DefaultTextWidth   = 200
	DefaultTextHeight  = DefaultFontSize + 10
	DefaultImageWidth  = 150
	DefaultImageHeight = 75
)

var (
	defaultTextOrigin  = geom.Point{X: 100, Y: 200}
	defaultImageOrigin = geom.Point{X: 100, Y: 100}
)

// Size limits applied by the resize policy.
const (
	MinWidth  = 20
	MaxWidth  = 500
	MinHeight = 10
	MaxHeight = 300

	// GrowFactor is applied per enlarge step; shrinking divides by it.
	GrowFactor = 1.1

	// MinFontSize is the smallest unzoomed font size a text element renders at.
	MinFontSize = 8
)

// ID identifies an element within its set. IDs are never reused.
type ID uint64

// Element is a positioned, sized text or image annotation anchored to one
// page. X, Y, Width and Height are in base-display space.
type Element struct {
	ID   ID
	Kind Kind
	Page int

	X, Y          float64
	Width, Height float64

	// Text is the content of a text element.
	Text string
	// Color applies to text elements only.
	Color Color
	// Image is the decoded raster of an image element.
	Image image.Image
}

// Rect returns the element bounds in base-display space.
func (e *Element) Rect() geom.Rect {
	return geom.Rect{X: e.X, Y: e.Y, Width: e.Width, Height: e.Height}
}

// FontSize returns the rendered font size of a text element at the given
// zoom. The box height drives the size; it never drops below MinFontSize
// before zooming and rounds down instead of failing at small sizes.
func (e *Element) FontSize(zoom float64) float64 {
	size := geom.Transform{Zoom: zoom}.ToZoomed(math.Max(MinFontSize, e.Height-2))
	return math.Max(1, math.Floor(size))
}

// Label returns the element list row shown to the user.
func (e *Element) Label() string {
	switch e.Kind {
	case KindText:
		return fmt.Sprintf("Page %d: Text - %s", e.Page+1, e.Text)
	case KindImage:
		return fmt.Sprintf("Page %d: Image - Image", e.Page+1)
	default:
		panic(fmt.Sprintf("element: unhandled kind %v", e.Kind))
	}
}

// Clone returns a shallow copy. The image raster is shared; it is never
// mutated after creation.
func (e *Element) Clone() *Element {
	c := *e
	return &c
}

// ResizeStep applies one step of the resize policy to a size and clamps the
// result to the allowed range.
func ResizeStep(width, height float64, enlarge bool) (float64, float64) {
	f := GrowFactor
	if !enlarge {
		f = 1 / GrowFactor
	}
	return geom.Clamp(width*f, MinWidth, MaxWidth), geom.Clamp(height*f, MinHeight, MaxHeight)
}

// NewText returns a text element with the default placement.
func NewText(page int, text string) *Element {
	return &Element{
		Kind:   KindText,
		Page:   page,
		X:      defaultTextOrigin.X,
		Y:      defaultTextOrigin.Y,
		Width:  DefaultTextWidth,
		Height: DefaultTextHeight,
		Text:   text,
		Color:  Black,
	}
}

// NewImage returns an image element with the default placement.
func NewImage(page int, img image.Image) *Element {
	return &Element{
		Kind:   KindImage,
		Page:   page,
		X:      defaultImageOrigin.X,
		Y:      defaultImageOrigin.Y,
		Width:  DefaultImageWidth,
		Height: DefaultImageHeight,
		Image:  img,
	}
}
