// Package export maps the element model back into document space and writes
// a signed copy of the source document.
package export

import (
	"fmt"
	"image"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"signpad/internal/element"
	"signpad/internal/geom"
)

// Provenance stamp appearance.
const (
	StampFontSize   = 6
	StampGray       = 0.4
	StampTimeLayout = "Jan 02, 2006 15:04:05"

	// MinTextSize is the smallest exported font size in points.
	MinTextSize = 8
)

// RGB is a color with components in [0, 1].
type RGB struct {
	R, G, B float64
}

// ImagePlacement fills a document rectangle with an image.
type ImagePlacement struct {
	Element element.ID
	Page    int
	Rect    geom.Rect
	Image   image.Image
}

// TextPlacement draws text with its first baseline at At.
type TextPlacement struct {
	Element element.ID
	Page    int
	At      geom.Point
	Text    string
	Size    float64
	Color   RGB
}

// Plan is every placement of one export, in document space.
type Plan struct {
	Images []ImagePlacement
	Texts  []TextPlacement
	Stamps []TextPlacement
}

// SignedPages returns the pages that carry a provenance stamp, ascending.
func (p *Plan) SignedPages() []int {
	pages := make([]int, 0, len(p.Stamps))
	for _, s := range p.Stamps {
		pages = append(pages, s.Page)
	}
	sort.Ints(pages)
	return pages
}

// ScaleFunc returns the base scale used to display a page.
type ScaleFunc func(page int) (float64, error)

// ConstantScale uses one base scale for every page.
func ConstantScale(s float64) ScaleFunc {
	return func(int) (float64, error) { return s, nil }
}

// PageSizer reports page geometry in points.
type PageSizer interface {
	PageSize(page int) (geom.Size, error)
}

// CanvasScale derives each page's base scale from its own width, the way
// the page is shown on a canvas of the given width.
func CanvasScale(doc PageSizer, canvasWidth float64) ScaleFunc {
	return func(page int) (float64, error) {
		size, err := doc.PageSize(page)
		if err != nil {
			return 0, err
		}
		return geom.BaseScale(canvasWidth, size.Width), nil
	}
}

// StampText returns the provenance stamp for an annotator at a time.
func StampText(annotator string, at time.Time) string {
	return fmt.Sprintf("Signed by %s\n%s", annotator, at.Format(StampTimeLayout))
}

// BuildPlan converts elements to document placements. Only the base scale
// enters the conversion; zoom never does.
func BuildPlan(elems []*element.Element, scale ScaleFunc, annotator string, now time.Time) (*Plan, error) {
	plan := &Plan{}
	stamped := make(map[int]bool)
	stamp := StampText(annotator, now)

	for _, e := range elems {
		s, err := scale(e.Page)
		if err != nil {
			return nil, fmt.Errorf("export: page %d scale: %w", e.Page, err)
		}
		tr := geom.Transform{BaseScale: s, Zoom: 1}
		switch e.Kind {
		case element.KindImage:
			r := tr.RectToDocument(e.Rect())
			plan.Images = append(plan.Images, ImagePlacement{
				Element: e.ID,
				Page:    e.Page,
				Rect:    r,
				Image:   e.Image,
			})
			if !stamped[e.Page] {
				stamped[e.Page] = true
				plan.Stamps = append(plan.Stamps, TextPlacement{
					Element: e.ID,
					Page:    e.Page,
					At:      r.Min(),
					Text:    stamp,
					Size:    StampFontSize,
					Color:   RGB{StampGray, StampGray, StampGray},
				})
			}
		case element.KindText:
			r, g, b := e.Color.RGB()
			plan.Texts = append(plan.Texts, TextPlacement{
				Element: e.ID,
				Page:    e.Page,
				At:      tr.PointToDocument(geom.Point{X: e.X, Y: e.Y + e.Height}),
				Text:    e.Text,
				Size:    math.Max(MinTextSize, tr.ToDocument(e.Height)),
				Color:   RGB{r, g, b},
			})
		default:
			panic(fmt.Sprintf("export: unhandled element kind %v", e.Kind))
		}
	}
	return plan, nil
}

// SanitizeName keeps letters, numerals, spaces, hyphens and underscores,
// drops trailing spaces and turns the remaining spaces into underscores.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimRight(b.String(), " "), " ", "_")
}

// OutputPath returns "<dir>/<base>_signed_by_<name>.pdf" for a source
// document. An empty dir places the output next to the source.
func OutputPath(source, dir, annotator string) string {
	if dir == "" {
		dir = filepath.Dir(source)
	}
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(dir, fmt.Sprintf("%s_signed_by_%s.pdf", base, SanitizeName(annotator)))
}
