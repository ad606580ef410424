package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signpad/internal/element"
	"signpad/internal/engine"
	"signpad/internal/geom"
	"signpad/internal/raster"
)

type pages []geom.Size

func (p pages) PageSize(i int) (geom.Size, error) {
	if i < 0 || i >= len(p) {
		return geom.Size{}, fmt.Errorf("page %d out of range", i)
	}
	return p[i], nil
}

type placedImage struct {
	page int
	rect geom.Rect
	size image.Point
}

type placedText struct {
	page int
	at   geom.Point
	text string
	size float64
	rgb  RGB
}

type fakeSink struct {
	source    string
	images    []placedImage
	texts     []placedText
	finishErr error
	opts      FinishOptions
}

func (s *fakeSink) Begin(source string) (Writer, error) {
	s.source = source
	return s, nil
}

func (s *fakeSink) PlaceImage(page int, rect geom.Rect, png []byte) error {
	img, err := raster.DecodeBytes(png, "placed")
	if err != nil {
		return err
	}
	s.images = append(s.images, placedImage{page, rect, img.Bounds().Size()})
	return nil
}

func (s *fakeSink) PlaceText(page int, at geom.Point, text string, size float64, c RGB) error {
	s.texts = append(s.texts, placedText{page, at, text, size, c})
	return nil
}

func (s *fakeSink) Finish(w io.Writer, opts FinishOptions) error {
	s.opts = opts
	if _, err := io.WriteString(w, "%PDF-fake"); err != nil {
		return err
	}
	return s.finishErr
}

var fixedTime = time.Date(2026, time.March, 5, 14, 7, 9, 0, time.UTC)

func newExporter(sink Sink, opts Options) *Exporter {
	x := New(sink, opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	x.SetClock(func() time.Time { return fixedTime })
	return x
}

func imageElement(t *testing.T, s *element.Set, page int, r geom.Rect, w, h int) *element.Element {
	t.Helper()
	e, err := s.Create(element.KindImage, page, element.Placement{
		Rect:  r,
		Image: image.NewNRGBA(image.Rect(0, 0, w, h)),
	})
	require.NoError(t, err)
	return e
}

func TestBuildPlanLetterPage(t *testing.T) {
	s := element.NewSet()
	imageElement(t, s, 0, geom.Rect{X: 100, Y: 100, Width: 150, Height: 75}, 10, 5)

	plan, err := BuildPlan(s.All(), CanvasScale(pages{{Width: 612, Height: 792}}, 700), "JANE", fixedTime)
	require.NoError(t, err)
	require.Len(t, plan.Images, 1)
	r := plan.Images[0].Rect
	assert.InDelta(t, 87.43, r.X, 0.01)
	assert.InDelta(t, 87.43, r.Y, 0.01)
	assert.InDelta(t, 218.57, r.Max().X, 0.01)
	assert.InDelta(t, 153.00, r.Max().Y, 0.01)
}

func TestBuildPlanText(t *testing.T) {
	s := element.NewSet()
	e, err := s.Create(element.KindText, 0, element.Placement{Text: "Jane", Color: element.Green})
	require.NoError(t, err)

	plan, err := BuildPlan(s.All(), ConstantScale(2), "JANE", fixedTime)
	require.NoError(t, err)
	require.Len(t, plan.Texts, 1)
	tp := plan.Texts[0]
	assert.Equal(t, geom.Point{X: e.X / 2, Y: (e.Y + e.Height) / 2}, tp.At)
	assert.Equal(t, 11.0, tp.Size)
	assert.Equal(t, RGB{0, 0.5, 0}, tp.Color)
	assert.Empty(t, plan.Stamps, "text-only pages carry no stamp")

	small, err := s.Create(element.KindText, 0, element.Placement{Rect: geom.Rect{X: 1, Y: 1, Width: 30, Height: 10}})
	require.NoError(t, err)
	plan, err = BuildPlan([]*element.Element{small}, ConstantScale(2), "JANE", fixedTime)
	require.NoError(t, err)
	assert.Equal(t, float64(MinTextSize), plan.Texts[0].Size)
}

func TestBuildPlanStampOncePerImagePage(t *testing.T) {
	s := element.NewSet()
	_, err := s.Create(element.KindText, 0, element.Placement{})
	require.NoError(t, err)
	first := imageElement(t, s, 1, geom.Rect{X: 20, Y: 40, Width: 100, Height: 50}, 4, 2)
	imageElement(t, s, 1, geom.Rect{X: 300, Y: 400, Width: 100, Height: 50}, 4, 2)
	imageElement(t, s, 3, geom.Rect{X: 10, Y: 10, Width: 100, Height: 50}, 4, 2)

	plan, err := BuildPlan(s.All(), ConstantScale(2), "Jane Doe", fixedTime)
	require.NoError(t, err)
	require.Len(t, plan.Stamps, 2)
	assert.Equal(t, []int{1, 3}, plan.SignedPages())

	st := plan.Stamps[0]
	assert.Equal(t, first.ID, st.Element)
	assert.Equal(t, geom.Point{X: 10, Y: 20}, st.At)
	assert.Equal(t, "Signed by Jane Doe\nMar 05, 2026 14:07:09", st.Text)
	assert.Equal(t, float64(StampFontSize), st.Size)
	assert.Equal(t, RGB{0.4, 0.4, 0.4}, st.Color)
}

func TestBuildPlanPerPageScale(t *testing.T) {
	s := element.NewSet()
	imageElement(t, s, 0, geom.Rect{X: 70, Y: 70, Width: 70, Height: 70}, 1, 1)
	imageElement(t, s, 1, geom.Rect{X: 70, Y: 70, Width: 70, Height: 70}, 1, 1)

	plan, err := BuildPlan(s.All(), CanvasScale(pages{{Width: 700}, {Width: 350}}, 700), "J", fixedTime)
	require.NoError(t, err)
	assert.Equal(t, geom.Rect{X: 70, Y: 70, Width: 70, Height: 70}, plan.Images[0].Rect)
	assert.Equal(t, geom.Rect{X: 35, Y: 35, Width: 35, Height: 35}, plan.Images[1].Rect)

	_, err = BuildPlan(s.All(), CanvasScale(pages{{Width: 700}}, 700), "J", fixedTime)
	assert.Error(t, err)
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Jane Doe", "Jane_Doe"},
		{"JANE  DOE ", "JANE__DOE"},
		{"a/b\\c:d*e?", "abcde"},
		{"José-María_2", "José-María_2"},
		{"  lead", "__lead"},
		{"!!!", ""},
		{"Room 2²", "Room_2²"},
		{"½ share", "½_share"},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("docs", "contract_signed_by_Jane_Doe.pdf"),
		OutputPath(filepath.Join("docs", "contract.pdf"), "", "Jane Doe"))
	assert.Equal(t,
		filepath.Join("out", "a.b_signed_by_X.pdf"),
		OutputPath("/in/a.b.pdf", "out", "X!"))
}

func TestExportWritesAtomically(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "contract.pdf")
	s := element.NewSet()
	imageElement(t, s, 0, geom.Rect{X: 100, Y: 100, Width: 150, Height: 75}, 1600, 300)
	_, err := s.Create(element.KindText, 0, element.Placement{Text: "Jane"})
	require.NoError(t, err)

	sink := &fakeSink{}
	x := newExporter(sink, DefaultOptions())
	res, err := x.Export(context.Background(), Request{
		Source:      src,
		Pages:       pages{{Width: 612, Height: 792}},
		CanvasWidth: 700,
		Elements:    s.All(),
		Annotator:   "Jane Doe",
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "contract_signed_by_Jane_Doe.pdf"), res.Path)
	assert.Equal(t, []int{0}, res.SignedPages)
	assert.Equal(t, "PDF saved as: x.pdf (1 pages signed)", res.Message("x.pdf"))
	assert.Equal(t, src, sink.source)
	assert.True(t, sink.opts.Compress)

	require.Len(t, sink.images, 1)
	assert.Equal(t, image.Pt(800, 150), sink.images[0].size, "image is thumbnailed")
	require.Len(t, sink.texts, 2)
	assert.Equal(t, "Jane", sink.texts[0].text)
	assert.Contains(t, sink.texts[1].text, "Signed by Jane Doe")

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-fake", string(data))
}

func TestExportFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	s := element.NewSet()
	imageElement(t, s, 0, geom.Rect{X: 1, Y: 1, Width: 20, Height: 20}, 2, 2)

	sink := &fakeSink{finishErr: errors.New("disk full")}
	x := newExporter(sink, DefaultOptions())
	_, err := x.Export(context.Background(), Request{
		Source:      filepath.Join(dir, "a.pdf"),
		Pages:       pages{{Width: 612}},
		CanvasWidth: 700,
		Elements:    s.All(),
		Annotator:   "J",
	})
	var we *ExportWriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, filepath.Join(dir, "a_signed_by_J.pdf"), we.Path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 1, s.Len())
}

func TestExportNothing(t *testing.T) {
	x := newExporter(&fakeSink{}, DefaultOptions())
	_, err := x.Export(context.Background(), Request{Source: "a.pdf", Pages: pages{{Width: 1}}})
	assert.ErrorIs(t, err, ErrNothingToExport)
}

type stubDoc struct{}

func (stubDoc) Path() string   { return "a.pdf" }
func (stubDoc) PageCount() int { return 2 }
func (stubDoc) Close() error   { return nil }
func (stubDoc) PageSize(int) (geom.Size, error) {
	return geom.Size{Width: 612, Height: 792}, nil
}

type stubSource struct{}

func (stubSource) Open(string) (engine.Document, error) { return stubDoc{}, nil }

func TestExportZoomIndependent(t *testing.T) {
	ctx := context.Background()
	sess := engine.NewSession(engine.Options{
		Source:      stubSource{},
		CanvasWidth: 700,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, sess.OpenDocument(ctx, "a.pdf"))
	_, err := sess.AddImage(image.NewNRGBA(image.Rect(0, 0, 3, 3)))
	require.NoError(t, err)
	_, err = sess.AddText()
	require.NoError(t, err)
	require.NoError(t, sess.ConfirmEdit("Jane"))

	x := newExporter(&fakeSink{}, DefaultOptions())
	planAt := func(z float64) *Plan {
		require.NoError(t, sess.SetZoom(ctx, z))
		p, err := x.Plan(Request{
			Source:      "a.pdf",
			Pages:       sess.Document(),
			CanvasWidth: 700,
			Elements:    sess.Set().All(),
			Annotator:   "J",
		})
		require.NoError(t, err)
		return p
	}
	assert.Equal(t, planAt(1.0), planAt(2.5))
	assert.Equal(t, planAt(1.0), planAt(0.5))
}
