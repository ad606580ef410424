package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signpad/internal/element"
	"signpad/internal/geom"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestDrawReplacesHandle(t *testing.T) {
	a := NewAdapter(nil)
	s := element.NewSet()
	e, err := s.Create(element.KindText, 0, element.Placement{})
	require.NoError(t, err)

	h1 := a.Draw(e, geom.Identity)
	h2 := a.Draw(e, geom.Identity)
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, 1, a.Len())

	got, ok := a.HandleOf(e.ID)
	require.True(t, ok)
	assert.Equal(t, h2, got)

	a.Release(e.ID)
	_, ok = a.HandleOf(e.ID)
	assert.False(t, ok)
	assert.Empty(t, a.Commands())
}

func TestDrawAppliesZoom(t *testing.T) {
	a := NewAdapter(nil)
	s := element.NewSet()
	e, _ := s.Create(element.KindText, 0, element.Placement{})

	a.Draw(e, geom.Transform{BaseScale: 1.14, Zoom: 0.5})
	cmds := a.Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, geom.Rect{X: 50, Y: 100, Width: 100, Height: 11}, cmds[0].Rect)
	assert.Equal(t, 10.0, cmds[0].FontSize)
	assert.Equal(t, "Text", cmds[0].Text)
}

func TestCommandsInZOrder(t *testing.T) {
	a := NewAdapter(nil)
	s := element.NewSet()
	first, _ := s.Create(element.KindText, 0, element.Placement{Text: "first"})
	second, _ := s.Create(element.KindText, 0, element.Placement{Text: "second"})

	a.Draw(second, geom.Identity)
	a.Draw(first, geom.Identity)
	a.Draw(second, geom.Identity)

	cmds := a.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "first", cmds[0].Text)
	assert.Equal(t, "second", cmds[1].Text)
}

func TestSelectionDecoration(t *testing.T) {
	a := NewAdapter(nil)
	a.Select(geom.Rect{X: 100, Y: 100, Width: 150, Height: 75}, geom.Transform{BaseScale: 1, Zoom: 2})

	sel, ok := a.Selection()
	require.True(t, ok)
	assert.Equal(t, geom.Rect{X: 195, Y: 195, Width: 310, Height: 160}, sel.Border)
	assert.Equal(t, geom.Rect{X: 496, Y: 346, Width: 8, Height: 8}, sel.Handle)

	a.Deselect()
	_, ok = a.Selection()
	assert.False(t, ok)
}

func TestFeedback(t *testing.T) {
	a := NewAdapter(nil)
	a.SetFeedback(geom.Rect{X: 10, Y: 20, Width: 165.4, Height: 82.5}, geom.Identity)
	fb, ok := a.Feedback()
	require.True(t, ok)
	assert.Equal(t, "165x82", fb.Text)
	assert.InDelta(t, 185.4, fb.At.X, 1e-9)
	a.ClearFeedback()
	_, ok = a.Feedback()
	assert.False(t, ok)
}

func TestReset(t *testing.T) {
	a := NewAdapter(nil)
	s := element.NewSet()
	e, _ := s.Create(element.KindText, 0, element.Placement{})
	a.SetPage(solid(10, 10, color.White))
	a.Draw(e, geom.Identity)
	a.Select(e.Rect(), geom.Identity)

	a.Reset()
	assert.Nil(t, a.Page())
	assert.Zero(t, a.Len())
	_, ok := a.Selection()
	assert.False(t, ok)
}

func TestComposeDrawsImage(t *testing.T) {
	c, err := NewCompositor()
	require.NoError(t, err)

	a := NewAdapter(nil)
	a.SetPage(solid(200, 200, color.White))
	s := element.NewSet()
	red := color.NRGBA{R: 0xff, A: 0xff}
	e, err := s.Create(element.KindImage, 0, element.Placement{
		Rect:  geom.Rect{X: 10, Y: 10, Width: 40, Height: 20},
		Image: solid(4, 2, red),
	})
	require.NoError(t, err)
	a.Draw(e, geom.Identity)

	out, err := c.Compose(a)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 200, 200), out.Bounds())

	r, g, b, _ := out.At(30, 20).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Zero(t, g)
	assert.Zero(t, b)

	r, g, b, _ = out.At(100, 100).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b})
}

func TestComposeDrawsText(t *testing.T) {
	c, err := NewCompositor()
	require.NoError(t, err)

	a := NewAdapter(nil)
	a.SetPage(solid(300, 300, color.White))
	s := element.NewSet()
	e, _ := s.Create(element.KindText, 0, element.Placement{Text: "HHHH"})
	a.Draw(e, geom.Identity)

	out, err := c.Compose(a)
	require.NoError(t, err)

	dark := 0
	for y := 200; y < 222; y++ {
		for x := 100; x < 160; x++ {
			if r, _, _, _ := out.At(x, y).RGBA(); r < 0x8000 {
				dark++
			}
		}
	}
	assert.Greater(t, dark, 20)
}

func TestFaceCache(t *testing.T) {
	c, err := NewCompositor()
	require.NoError(t, err)
	f1, err := c.Face(12.2)
	require.NoError(t, err)
	f2, err := c.Face(11.8)
	require.NoError(t, err)
	assert.Same(t, f1, f2)
}
