package element

import (
	"fmt"
	"image/color"
	"strings"
)

// Color is one of the fixed text colors.
type Color int

// The text palette.
const (
	Black Color = iota
	Red
	Blue
	Green
	Purple
	Orange
	Brown
	Gray
)

type paletteEntry struct {
	name    string
	r, g, b float64
}

var palette = [...]paletteEntry{
	Black:  {"black", 0, 0, 0},
	Red:    {"red", 1, 0, 0},
	Blue:   {"blue", 0, 0, 1},
	Green:  {"green", 0, 0.5, 0},
	Purple: {"purple", 0.5, 0, 0.5},
	Orange: {"orange", 1, 0.5, 0},
	Brown:  {"brown", 0.6, 0.3, 0},
	Gray:   {"gray", 0.5, 0.5, 0.5},
}

// Palette returns every color in display order.
func Palette() []Color {
	cs := make([]Color, len(palette))
	for i := range palette {
		cs[i] = Color(i)
	}
	return cs
}

func (c Color) valid() bool {
	return c >= 0 && int(c) < len(palette)
}

func (c Color) String() string {
	if !c.valid() {
		return fmt.Sprintf("color(%d)", int(c))
	}
	return palette[c].name
}

// RGB returns the components in [0, 1]. Unknown colors map to black.
func (c Color) RGB() (r, g, b float64) {
	if !c.valid() {
		return 0, 0, 0
	}
	p := palette[c]
	return p.r, p.g, p.b
}

// NRGBA returns the opaque 8-bit color used on screen.
func (c Color) NRGBA() color.NRGBA {
	r, g, b := c.RGB()
	return color.NRGBA{R: to8(r), G: to8(g), B: to8(b), A: 0xff}
}

func to8(v float64) uint8 {
	return uint8(v*255 + 0.5)
}

// ParseColor looks up a palette color by name.
func ParseColor(s string) (Color, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return Black, nil
	}
	if name == "grey" {
		name = "gray"
	}
	for i, p := range palette {
		if p.name == name {
			return Color(i), nil
		}
	}
	return Black, fmt.Errorf("element: unknown color %q", s)
}
