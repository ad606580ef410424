// Package layout reads and writes element layouts, so that a document can
// be annotated without a window. A layout lists elements with their page
// and geometry in either base-display units or document points.
package layout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"signpad/internal/element"
	"signpad/internal/engine"
	"signpad/internal/geom"
	"signpad/internal/raster"
)

// Units selects the coordinate space of a layout.
type Units string

const (
	// UnitsDisplay is base-display space: the canvas at 100% zoom.
	UnitsDisplay Units = "display"
	// UnitsDocument is PDF points from the top-left corner of the page.
	UnitsDocument Units = "document"
)

// Format is a layout file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// Errors returned while reading or applying layouts.
var (
	ErrUnknownFormat = errors.New("layout: unknown format")
	ErrInvalid       = errors.New("layout: invalid layout")
)

// Layout is a list of elements.
type Layout struct {
	Units    Units  `yaml:"units" json:"units" toml:"units"`
	Elements []Item `yaml:"elements" json:"elements" toml:"elements"`
}

// Item is one element. Page is one-based. A zero size selects the default
// size for the kind. Image is a file path, relative to the layout file;
// Library names a stored signature instead.
type Item struct {
	Kind    string  `yaml:"kind" json:"kind" toml:"kind"`
	Page    int     `yaml:"page" json:"page" toml:"page"`
	X       float64 `yaml:"x" json:"x" toml:"x"`
	Y       float64 `yaml:"y" json:"y" toml:"y"`
	Width   float64 `yaml:"width,omitempty" json:"width,omitempty" toml:"width,omitempty"`
	Height  float64 `yaml:"height,omitempty" json:"height,omitempty" toml:"height,omitempty"`
	Text    string  `yaml:"text,omitempty" json:"text,omitempty" toml:"text,omitempty"`
	Color   string  `yaml:"color,omitempty" json:"color,omitempty" toml:"color,omitempty"`
	Image   string  `yaml:"image,omitempty" json:"image,omitempty" toml:"image,omitempty"`
	Library string  `yaml:"library,omitempty" json:"library,omitempty" toml:"library,omitempty"`
}

// DetectFormat returns the format implied by a file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
}

// Load reads the layout file at path.
func Load(path string) (*Layout, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	return Parse(data, format)
}

// Parse decodes a layout and validates it.
func Parse(data []byte, format Format) (*Layout, error) {
	var l Layout
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &l)
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&l)
	case FormatTOML:
		_, err = toml.Decode(string(data), &l)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s layout: %w", format, err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Validate checks units, kinds, pages and colors.
func (l *Layout) Validate() error {
	switch l.Units {
	case "":
		l.Units = UnitsDisplay
	case UnitsDisplay, UnitsDocument:
	default:
		return fmt.Errorf("%w: units %q", ErrInvalid, l.Units)
	}
	for i, it := range l.Elements {
		kind, err := element.ParseKind(it.Kind)
		if err != nil {
			return fmt.Errorf("%w: element %d: %v", ErrInvalid, i+1, err)
		}
		if it.Page < 1 {
			return fmt.Errorf("%w: element %d: page %d", ErrInvalid, i+1, it.Page)
		}
		if it.Width < 0 || it.Height < 0 {
			return fmt.Errorf("%w: element %d: negative size", ErrInvalid, i+1)
		}
		switch kind {
		case element.KindText:
			if _, err := element.ParseColor(it.Color); err != nil {
				return fmt.Errorf("%w: element %d: %v", ErrInvalid, i+1, err)
			}
		case element.KindImage:
			if (it.Image == "") == (it.Library == "") {
				return fmt.Errorf("%w: element %d: exactly one of image and library is required", ErrInvalid, i+1)
			}
		}
	}
	return nil
}

// Encode serializes l.
func Encode(l *Layout, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(l)
	case FormatJSON:
		return json.MarshalIndent(l, "", "  ")
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(l); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Save writes l to path in the format implied by its extension.
func Save(path string, l *Layout) error {
	format, err := DetectFormat(path)
	if err != nil {
		return err
	}
	data, err := Encode(l, format)
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// ApplyOptions resolves image references.
type ApplyOptions struct {
	// BaseDir resolves relative image paths.
	BaseDir string
	Library engine.Library
}

// Apply adds every element of l to the session and returns them in order.
// Nothing is added when any element fails.
func Apply(ctx context.Context, s *engine.Session, l *Layout, opts ApplyOptions) ([]*element.Element, error) {
	doc := s.Document()
	if doc == nil {
		return nil, engine.ErrNoDocument
	}

	type prepared struct {
		kind element.Kind
		page int
		p    element.Placement
	}
	items := make([]prepared, 0, len(l.Elements))
	for i, it := range l.Elements {
		kind, err := element.ParseKind(it.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrInvalid, i+1, err)
		}
		page := it.Page - 1
		if page < 0 || page >= doc.PageCount() {
			return nil, fmt.Errorf("%w: element %d: page %d of %d", ErrInvalid, i+1, it.Page, doc.PageCount())
		}
		rect := geom.Rect{X: it.X, Y: it.Y, Width: it.Width, Height: it.Height}
		if l.Units == UnitsDocument {
			tr, err := pageTransform(s, doc, page)
			if err != nil {
				return nil, err
			}
			rect = tr.RectFromDocument(rect)
		}
		p := element.Placement{Rect: rect, Text: it.Text}
		switch kind {
		case element.KindText:
			c, err := element.ParseColor(it.Color)
			if err != nil {
				return nil, fmt.Errorf("%w: element %d: %v", ErrInvalid, i+1, err)
			}
			p.Color = c
		case element.KindImage:
			img, err := loadImage(ctx, it, opts)
			if err != nil {
				return nil, fmt.Errorf("layout: element %d: %w", i+1, err)
			}
			p.Image = img
		}
		if rect.Empty() {
			p.Rect = defaultRect(kind, rect.X, rect.Y, p.Image)
		}
		items = append(items, prepared{kind: kind, page: page, p: p})
	}

	out := make([]*element.Element, 0, len(items))
	for _, it := range items {
		e, err := s.Place(it.kind, it.page, it.p)
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}

// defaultRect keeps the item position and applies the default size.
func defaultRect(kind element.Kind, x, y float64, img image.Image) geom.Rect {
	var d *element.Element
	switch kind {
	case element.KindText:
		d = element.NewText(0, "")
	case element.KindImage:
		d = element.NewImage(0, img)
	default:
		panic(fmt.Sprintf("layout: unknown element kind %d", kind))
	}
	return geom.Rect{X: x, Y: y, Width: d.Width, Height: d.Height}
}

func pageTransform(s *engine.Session, doc engine.Document, page int) (geom.Transform, error) {
	size, err := doc.PageSize(page)
	if err != nil {
		return geom.Transform{}, fmt.Errorf("layout: page %d geometry: %w", page+1, err)
	}
	return geom.Transform{
		BaseScale: geom.BaseScale(s.Viewport().CanvasWidth, size.Width),
		Zoom:      1,
	}, nil
}

func loadImage(ctx context.Context, it Item, opts ApplyOptions) (image.Image, error) {
	if it.Library != "" {
		if opts.Library == nil {
			return nil, engine.ErrNoLibrary
		}
		return opts.Library.Load(ctx, it.Library)
	}
	path := it.Image
	if !filepath.IsAbs(path) && opts.BaseDir != "" {
		path = filepath.Join(opts.BaseDir, path)
	}
	return raster.DecodeFile(path)
}

// Capture describes the elements of a session as a layout in the given
// units. Image elements are written with the given reference resolver,
// which returns the value of the image field.
func Capture(s *engine.Session, units Units, imageRef func(*element.Element) string) (*Layout, error) {
	doc := s.Document()
	if doc == nil {
		return nil, engine.ErrNoDocument
	}
	l := &Layout{Units: units}
	for _, e := range s.Set().All() {
		r := e.Rect()
		if units == UnitsDocument {
			tr, err := pageTransform(s, doc, e.Page)
			if err != nil {
				return nil, err
			}
			r = tr.RectToDocument(r)
		}
		it := Item{
			Kind:   e.Kind.String(),
			Page:   e.Page + 1,
			X:      r.X,
			Y:      r.Y,
			Width:  r.Width,
			Height: r.Height,
		}
		switch e.Kind {
		case element.KindText:
			it.Text = e.Text
			it.Color = e.Color.String()
		case element.KindImage:
			if imageRef != nil {
				it.Image = imageRef(e)
			}
		}
		l.Elements = append(l.Elements, it)
	}
	return l, nil
}
