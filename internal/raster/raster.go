// Package raster decodes, resizes and encodes the images placed as
// signature elements.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"io"
	"os"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// Embedding limits applied before an image is written into a document.
const (
	MaxEmbedWidth  = 800
	MaxEmbedHeight = 600
)

// ImageDecodeError reports an image that could not be decoded.
type ImageDecodeError struct {
	Source string
	Err    error
}

func (e *ImageDecodeError) Error() string {
	return fmt.Sprintf("raster: decode %s: %v", e.Source, e.Err)
}

func (e *ImageDecodeError) Unwrap() error {
	return e.Err
}

// Codec is the image codec used by the engine and the exporter.
type Codec interface {
	Decode(r io.Reader, source string) (image.Image, error)
	Resize(img image.Image, width, height int) image.Image
	Encode(w io.Writer, img image.Image) error
}

// Default is the codec backed by the registered decoders and PNG encoding.
var Default Codec = stdCodec{}

type stdCodec struct{}

func (stdCodec) Decode(r io.Reader, source string) (image.Image, error) {
	return Decode(r, source)
}

func (stdCodec) Resize(img image.Image, width, height int) image.Image {
	return Resize(img, width, height)
}

func (stdCodec) Encode(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// Decode reads any registered image format and converts it to NRGBA so that
// callers can rely on a straight-alpha layout.
func Decode(r io.Reader, source string) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, &ImageDecodeError{Source: source, Err: err}
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, &ImageDecodeError{Source: source, Err: fmt.Errorf("empty image")}
	}
	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n, nil
	}
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out, nil
}

// DecodeBytes decodes an in-memory image.
func DecodeBytes(data []byte, source string) (image.Image, error) {
	return Decode(bytes.NewReader(data), source)
}

// DecodeFile opens and decodes an image file.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ImageDecodeError{Source: path, Err: err}
	}
	defer f.Close()
	return Decode(f, path)
}

// Resize scales img to exactly width x height with Catmull-Rom resampling.
func Resize(img image.Image, width, height int) image.Image {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// FitSize returns the largest size with the aspect ratio of (w, h) that fits
// in (maxW, maxH). Images that already fit are returned unchanged.
func FitSize(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	rw := float64(maxW) / float64(w)
	rh := float64(maxH) / float64(h)
	r := rw
	if rh < r {
		r = rh
	}
	nw, nh := int(float64(w)*r), int(float64(h)*r)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

// Thumbnail shrinks img to fit maxW x maxH keeping its aspect ratio. It
// never enlarges.
func Thumbnail(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := FitSize(b.Dx(), b.Dy(), maxW, maxH)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	return Resize(img, w, h)
}

// EncodePNG returns img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("raster: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Split separates img into 8-bit RGB samples and an 8-bit alpha plane. The
// colour samples are un-premultiplied. hasAlpha is false when every pixel is
// opaque.
func Split(img image.Image) (rgb, alpha []byte, hasAlpha bool) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	rgb = make([]byte, 0, w*h*3)
	alpha = make([]byte, 0, w*h)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			rgb = append(rgb, c.R, c.G, c.B)
			alpha = append(alpha, c.A)
			if c.A != 0xff {
				hasAlpha = true
			}
		}
	}
	return rgb, alpha, hasAlpha
}
