package raster

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checker(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.NRGBA{R: 0xff, A: 0xff})
			} else {
				img.Set(x, y, color.NRGBA{B: 0xff, A: 0x80})
			}
		}
	}
	return img
}

func TestPNGRoundTrip(t *testing.T) {
	data, err := EncodePNG(checker(6, 4))
	require.NoError(t, err)

	img, err := DecodeBytes(data, "mem")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 6, 4), img.Bounds())
	assert.Equal(t, color.NRGBA{B: 0xff, A: 0x80}, img.At(1, 0))
}

func TestDecodeJPEGConvertsToNRGBA(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, checker(8, 8), nil))
	img, err := Decode(&buf, "sig.jpg")
	require.NoError(t, err)
	_, ok := img.(*image.NRGBA)
	assert.True(t, ok)
}

func TestDecodeError(t *testing.T) {
	_, err := Decode(strings.NewReader("not an image"), "bad.png")
	var de *ImageDecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "bad.png", de.Source)
	assert.Contains(t, err.Error(), "bad.png")
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sig.png")
	data, err := EncodePNG(checker(3, 3))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	img, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())

	_, err = DecodeFile(filepath.Join(t.TempDir(), "missing.png"))
	var de *ImageDecodeError
	assert.ErrorAs(t, err, &de)
}

func TestFitSize(t *testing.T) {
	tests := []struct {
		w, h, mw, mh int
		ww, wh       int
	}{
		{400, 300, 800, 600, 400, 300},
		{1600, 1200, 800, 600, 800, 600},
		{1000, 200, 800, 600, 800, 160},
		{300, 1200, 800, 600, 150, 600},
		{5000, 1, 800, 600, 800, 1},
	}
	for _, tt := range tests {
		gw, gh := FitSize(tt.w, tt.h, tt.mw, tt.mh)
		if gw != tt.ww || gh != tt.wh {
			t.Errorf("FitSize(%d,%d) = %d,%d, want %d,%d", tt.w, tt.h, gw, gh, tt.ww, tt.wh)
		}
	}
}

func TestThumbnail(t *testing.T) {
	small := checker(10, 10)
	assert.Same(t, small, Thumbnail(small, MaxEmbedWidth, MaxEmbedHeight).(*image.NRGBA))

	big := checker(1600, 300)
	th := Thumbnail(big, MaxEmbedWidth, MaxEmbedHeight)
	assert.Equal(t, image.Rect(0, 0, 800, 150), th.Bounds())
}

func TestSplit(t *testing.T) {
	rgb, alpha, hasAlpha := Split(checker(2, 1))
	assert.Equal(t, []byte{0xff, 0, 0, 0, 0, 0xff}, rgb)
	assert.Equal(t, []byte{0xff, 0x80}, alpha)
	assert.True(t, hasAlpha)

	opaque := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	opaque.Set(0, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 0xff})
	_, _, hasAlpha = Split(opaque)
	assert.False(t, hasAlpha)
}

func TestDefaultCodec(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Default.Encode(&buf, checker(4, 4)))
	img, err := Default.Decode(&buf, "buf")
	require.NoError(t, err)
	r := Default.Resize(img, 2, 8)
	assert.Equal(t, image.Rect(0, 0, 2, 8), r.Bounds())
}
