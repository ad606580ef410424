package viewport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZoomClamps(t *testing.T) {
	v := New(700, DefaultLimits())
	for i := 0; i < 20; i++ {
		v.ZoomIn()
	}
	assert.Equal(t, 3.0, v.Zoom)
	assert.False(t, v.ZoomIn())

	for i := 0; i < 20; i++ {
		v.ZoomOut()
	}
	assert.Equal(t, 0.5, v.Zoom)

	assert.True(t, v.ZoomReset())
	assert.Equal(t, 1.0, v.Zoom)
}

func TestZoomStep(t *testing.T) {
	v := New(700, DefaultLimits())
	v.ZoomIn()
	assert.InDelta(t, 1.2, v.Zoom, 1e-12)
	v.ZoomOut()
	assert.InDelta(t, 1.0, v.Zoom, 1e-12)
	v.ZoomOut()
	assert.InDelta(t, 1/1.2, v.Zoom, 1e-12)
}

func TestRefresh(t *testing.T) {
	v := New(700, DefaultLimits())
	v.Refresh(612)
	assert.InDelta(t, 700.0/612.0, v.BaseScale, 1e-12)

	v.ZoomIn()
	tr := v.Transform()
	assert.InDelta(t, 700.0/612.0*1.2, tr.DisplayScale(), 1e-12)
}

func TestNormalizeLimits(t *testing.T) {
	v := New(0, Limits{})
	assert.Equal(t, float64(DefaultCanvasWidth), v.CanvasWidth)
	assert.Equal(t, DefaultLimits(), v.Limits())
}

func TestReset(t *testing.T) {
	v := New(700, DefaultLimits())
	v.Page = 3
	v.ZoomIn()
	v.Refresh(300)
	v.Reset()
	assert.Equal(t, 0, v.Page)
	assert.Equal(t, 1.0, v.Zoom)
	assert.Equal(t, 1.0, v.BaseScale)
}
