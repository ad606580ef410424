package theme

import (
	"image/color"
	"runtime"

	"gioui.org/unit"
	"gioui.org/widget/material"
)

// Palette defines the window colors.
type Palette struct {
	Background color.NRGBA
	Surface    color.NRGBA
	Panel      color.NRGBA
	Primary    color.NRGBA
	Text       color.NRGBA
	TextMuted  color.NRGBA
	Border     color.NRGBA
	Canvas     color.NRGBA
	Danger     color.NRGBA
}

// Config defines the window metrics.
type Config struct {
	CornerRadius unit.Dp
	Spacing      unit.Dp
	Padding      unit.Dp
	SidebarWidth unit.Dp
	FontTitle    unit.Sp
	FontBody     unit.Sp
	FontCaption  unit.Sp
}

// Theme wraps the material theme with signpad styling.
type Theme struct {
	*material.Theme
	Palette Palette
	Config  Config
}

// NewTheme creates a theme for the current OS.
func NewTheme(mtheme *material.Theme) *Theme {
	t := &Theme{Theme: mtheme}
	switch runtime.GOOS {
	case "darwin":
		setupMacOSTheme(t)
	default:
		setupDefaultTheme(t)
	}
	t.Theme.Palette.ContrastBg = t.Palette.Primary
	t.Theme.Palette.Fg = t.Palette.Text
	t.Theme.Palette.Bg = t.Palette.Panel
	return t
}

func setupDefaultTheme(t *Theme) {
	t.Palette = Palette{
		Background: color.NRGBA{R: 0xF0, G: 0xF0, B: 0xF0, A: 0xFF},
		Surface:    color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF},
		Panel:      color.NRGBA{R: 0xF0, G: 0xF0, B: 0xF0, A: 0xFF},
		Primary:    color.NRGBA{R: 0x00, G: 0x78, B: 0xD4, A: 0xFF},
		Text:       color.NRGBA{R: 0x1A, G: 0x1A, B: 0x1A, A: 0xFF},
		TextMuted:  color.NRGBA{R: 0x60, G: 0x60, B: 0x60, A: 0xFF},
		Border:     color.NRGBA{R: 0xC8, G: 0xC8, B: 0xC8, A: 0xFF},
		Canvas:     color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF},
		Danger:     color.NRGBA{R: 0xC4, G: 0x2B, B: 0x1C, A: 0xFF},
	}
	t.Config = Config{
		CornerRadius: unit.Dp(4),
		Spacing:      unit.Dp(6),
		Padding:      unit.Dp(10),
		SidebarWidth: unit.Dp(260),
		FontTitle:    unit.Sp(18),
		FontBody:     unit.Sp(14),
		FontCaption:  unit.Sp(12),
	}
}

func setupMacOSTheme(t *Theme) {
	setupDefaultTheme(t)
	t.Palette.Primary = color.NRGBA{R: 0x0A, G: 0x84, B: 0xFF, A: 0xFF}
	t.Palette.Background = color.NRGBA{R: 0xEC, G: 0xEC, B: 0xEC, A: 0xFF}
	t.Config.CornerRadius = unit.Dp(8)
	t.Config.FontBody = unit.Sp(13)
	t.Config.FontCaption = unit.Sp(11)
}
