package layout

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signpad/internal/element"
	"signpad/internal/engine"
	"signpad/internal/geom"
	"signpad/internal/raster"
)

type testDoc struct{}

func (testDoc) Path() string   { return "a.pdf" }
func (testDoc) PageCount() int { return 2 }
func (testDoc) Close() error   { return nil }
func (testDoc) PageSize(page int) (geom.Size, error) {
	if page == 1 {
		return geom.Size{Width: 350, Height: 500}, nil
	}
	return geom.Size{Width: 612, Height: 792}, nil
}

type testSource struct{}

func (testSource) Open(string) (engine.Document, error) { return testDoc{}, nil }

type testLibrary map[string]image.Image

func (l testLibrary) Names(context.Context) ([]string, error) { return nil, nil }
func (l testLibrary) Load(_ context.Context, name string) (image.Image, error) {
	if img, ok := l[name]; ok {
		return img, nil
	}
	return nil, errors.New("not found")
}

func newSession(t *testing.T) *engine.Session {
	t.Helper()
	s := engine.NewSession(engine.Options{
		Source:      testSource{},
		CanvasWidth: 700,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, s.OpenDocument(context.Background(), "a.pdf"))
	return s
}

const yamlLayout = `
units: document
elements:
  - kind: image
    page: 2
    x: 10
    y: 20
    width: 50
    height: 25
    library: initials
  - kind: text
    page: 1
    x: 61.2
    y: 122.4
    text: Approved
    color: red
`

func TestParseFormats(t *testing.T) {
	tests := []struct {
		format Format
		data   string
	}{
		{FormatYAML, yamlLayout},
		{FormatJSON, `{"units":"document","elements":[
			{"kind":"image","page":2,"x":10,"y":20,"width":50,"height":25,"library":"initials"},
			{"kind":"text","page":1,"x":61.2,"y":122.4,"text":"Approved","color":"red"}]}`},
		{FormatTOML, `units = "document"
[[elements]]
kind = "image"
page = 2
x = 10.0
y = 20.0
width = 50.0
height = 25.0
library = "initials"
[[elements]]
kind = "text"
page = 1
x = 61.2
y = 122.4
text = "Approved"
color = "red"
`},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			l, err := Parse([]byte(tt.data), tt.format)
			require.NoError(t, err)
			assert.Equal(t, UnitsDocument, l.Units)
			require.Len(t, l.Elements, 2)
			assert.Equal(t, Item{Kind: "image", Page: 2, X: 10, Y: 20, Width: 50, Height: 25, Library: "initials"}, l.Elements[0])
			assert.Equal(t, "Approved", l.Elements[1].Text)
		})
	}
}

func TestParseRejects(t *testing.T) {
	tests := map[string]string{
		"bad units":       `{"units":"inches"}`,
		"bad kind":        `{"elements":[{"kind":"shape","page":1}]}`,
		"page zero":       `{"elements":[{"kind":"text","page":0}]}`,
		"bad color":       `{"elements":[{"kind":"text","page":1,"color":"teal"}]}`,
		"image no source": `{"elements":[{"kind":"image","page":1}]}`,
		"image two srcs":  `{"elements":[{"kind":"image","page":1,"image":"a.png","library":"b"}]}`,
		"negative size":   `{"elements":[{"kind":"text","page":1,"width":-1}]}`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data), FormatJSON)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	_, err := Parse([]byte(`{"unknown": 1}`), FormatJSON)
	assert.Error(t, err)

	_, err = DetectFormat("layout.xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestApplyDocumentUnits(t *testing.T) {
	s := newSession(t)
	l, err := Parse([]byte(yamlLayout), FormatYAML)
	require.NoError(t, err)

	lib := testLibrary{"initials": image.NewNRGBA(image.Rect(0, 0, 40, 20))}
	elems, err := Apply(context.Background(), s, l, ApplyOptions{Library: lib})
	require.NoError(t, err)
	require.Len(t, elems, 2)

	img := elems[0]
	assert.Equal(t, element.KindImage, img.Kind)
	assert.Equal(t, 1, img.Page)
	assert.Equal(t, geom.Rect{X: 20, Y: 40, Width: 100, Height: 50}, img.Rect())

	txt := elems[1]
	assert.Equal(t, 0, txt.Page)
	assert.InDelta(t, 70, txt.X, 1e-9)
	assert.InDelta(t, 140, txt.Y, 1e-9)
	assert.Equal(t, 200.0, txt.Width, "default size applies")
	assert.Equal(t, element.Red, txt.Color)
	assert.Equal(t, "Approved", txt.Text)

	assert.Equal(t, engine.Idle, s.State(), "applying a layout never selects")
}

func TestApplyImageFile(t *testing.T) {
	dir := t.TempDir()
	data, err := raster.EncodePNG(image.NewNRGBA(image.Rect(0, 0, 8, 4)))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sig.png"), data, 0o600))

	s := newSession(t)
	l := &Layout{Elements: []Item{{Kind: "image", Page: 1, X: 5, Y: 6, Image: "sig.png"}}}
	require.NoError(t, l.Validate())
	elems, err := Apply(context.Background(), s, l, ApplyOptions{BaseDir: dir})
	require.NoError(t, err)
	require.Len(t, elems, 1)
	assert.Equal(t, geom.Rect{X: 5, Y: 6, Width: 150, Height: 75}, elems[0].Rect())
}

func TestApplyFailsAtomically(t *testing.T) {
	s := newSession(t)
	l := &Layout{Elements: []Item{
		{Kind: "text", Page: 1, Text: "kept?"},
		{Kind: "image", Page: 1, Library: "missing"},
	}}
	_, err := Apply(context.Background(), s, l, ApplyOptions{Library: testLibrary{}})
	require.Error(t, err)
	assert.Equal(t, 0, s.Set().Len())

	l = &Layout{Elements: []Item{{Kind: "text", Page: 3}}}
	_, err = Apply(context.Background(), s, l, ApplyOptions{})
	assert.ErrorIs(t, err, ErrInvalid)

	l = &Layout{Elements: []Item{{Kind: "image", Page: 1, Library: "x"}}}
	_, err = Apply(context.Background(), s, l, ApplyOptions{})
	assert.ErrorIs(t, err, engine.ErrNoLibrary)
}

func TestCaptureRoundTrip(t *testing.T) {
	s := newSession(t)
	l, err := Parse([]byte(yamlLayout), FormatYAML)
	require.NoError(t, err)
	lib := testLibrary{"initials": image.NewNRGBA(image.Rect(0, 0, 40, 20))}
	_, err = Apply(context.Background(), s, l, ApplyOptions{Library: lib})
	require.NoError(t, err)

	captured, err := Capture(s, UnitsDocument, func(*element.Element) string { return "initials.png" })
	require.NoError(t, err)
	require.Len(t, captured.Elements, 2)
	assert.InDelta(t, 10, captured.Elements[0].X, 1e-9)
	assert.InDelta(t, 25, captured.Elements[0].Height, 1e-9)
	assert.Equal(t, "initials.png", captured.Elements[0].Image)
	assert.Equal(t, "red", captured.Elements[1].Color)

	path := filepath.Join(t.TempDir(), "out.toml")
	require.NoError(t, Save(path, captured))
	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, captured, back)
}
