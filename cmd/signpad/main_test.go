package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signpad/internal/geom"
	"signpad/internal/pdfdoc"
	"signpad/internal/pdfdoc/pdftest"
)

// isolate points every data location into a temporary directory and
// captures the command output.
func isolate(t *testing.T) (dir string, out, errOut *bytes.Buffer) {
	t.Helper()
	dir = t.TempDir()
	t.Setenv("SIGNPAD_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("SIGNPAD_RASTERIZER", "blank")
	t.Setenv("SIGNPAD_NOTIFY", "false")
	t.Setenv("SIGNPAD_ANNOTATOR", "CAROL")
	t.Setenv("SIGNPAD_OUTPUT_DIR", "")
	t.Setenv("SIGNPAD_LIBRARY_PATH", "")
	t.Setenv("SIGNPAD_LOG_PATH", "")

	out, errOut = new(bytes.Buffer), new(bytes.Buffer)
	oldOut, oldErr := stdout, stderr
	stdout, stderr = out, errOut
	t.Cleanup(func() { stdout, stderr = oldOut, oldErr })
	return dir, out, errOut
}

func runCmd(t *testing.T, dir string, args ...string) int {
	t.Helper()
	args = append(args, "-config", filepath.Join(dir, "signpad.toml"))
	return run(context.Background(), args)
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 60, 30))
	for x := 0; x < 60; x++ {
		img.Set(x, 15, color.NRGBA{A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestUsage(t *testing.T) {
	_, out, errOut := isolate(t)

	assert.Equal(t, 1, run(context.Background(), nil))
	assert.Contains(t, out.String(), "USAGE:")

	assert.Equal(t, 1, run(context.Background(), []string{"frobnicate"}))
	assert.Contains(t, errOut.String(), "Unknown command: frobnicate")

	assert.Equal(t, 0, run(context.Background(), []string{"version"}))
	assert.Contains(t, out.String(), "signpad dev")
}

func TestParseArgsInterspersed(t *testing.T) {
	fs, _ := flagSet("test")
	name := fs.String("name", "", "")
	pos, err := parseArgs(fs, []string{"a.pdf", "-name", "X", "b", "-config", "c.toml"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b"}, pos)
	assert.Equal(t, "X", *name)
}

func TestInfo(t *testing.T) {
	dir, out, _ := isolate(t)
	pdf := pdftest.Write(t, dir, "two.pdf", pdftest.Letter, geom.Size{Width: 300, Height: 400})

	require.Equal(t, 0, run(context.Background(), []string{"info", pdf}))
	assert.Contains(t, out.String(), "Pages: 2")
	assert.Contains(t, out.String(), "page 1: 612.00 x 792.00 pt")
	assert.Contains(t, out.String(), "page 2: 300.00 x 400.00 pt")

	assert.Equal(t, 2, run(context.Background(), []string{"info"}))
	assert.Equal(t, 1, run(context.Background(), []string{"info", filepath.Join(dir, "missing.pdf")}))
}

func TestSignWithLayout(t *testing.T) {
	dir, out, errOut := isolate(t)
	pdf := pdftest.Write(t, dir, "contract.pdf")
	writePNG(t, filepath.Join(dir, "sig.png"))

	layoutPath := filepath.Join(dir, "sign.yaml")
	require.NoError(t, os.WriteFile(layoutPath, []byte(`units: document
elements:
  - {kind: image, page: 1, x: 400, y: 680, width: 120, height: 60, image: sig.png}
  - {kind: text, page: 1, x: 400, y: 745, text: Approved, color: blue}
`), 0o644))

	code := runCmd(t, dir, "sign", pdf, "-layout", layoutPath)
	require.Equal(t, 0, code, errOut.String())
	assert.Contains(t, out.String(), "PDF saved as: contract_signed_by_CAROL.pdf (1 pages signed)")
	assert.Contains(t, out.String(), "Images: 1  Texts: 1")

	signed := filepath.Join(dir, "contract_signed_by_CAROL.pdf")
	doc, err := pdfdoc.Open(signed)
	require.NoError(t, err)
	defer doc.Close()
	assert.Equal(t, 1, doc.PageCount())

	out.Reset()
	code = runCmd(t, dir, "sign", pdf, "-layout", layoutPath, "-name", "Dan", "-dir", filepath.Join(dir, "out"))
	require.Equal(t, 0, code, errOut.String())
	_, err = os.Stat(filepath.Join(dir, "out", "contract_signed_by_Dan.pdf"))
	assert.NoError(t, err)
}

func TestSignRequiresLayout(t *testing.T) {
	dir, _, errOut := isolate(t)
	pdf := pdftest.Write(t, dir, "contract.pdf")

	assert.Equal(t, 2, runCmd(t, dir, "sign", pdf))
	assert.Contains(t, errOut.String(), "Usage:")
}

func TestSignRejectsBadLayout(t *testing.T) {
	dir, _, errOut := isolate(t)
	pdf := pdftest.Write(t, dir, "contract.pdf")
	layoutPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(layoutPath, []byte(`{"elements":[{"kind":"text","page":3,"x":1,"y":1}]}`), 0o644))

	assert.Equal(t, 1, runCmd(t, dir, "sign", pdf, "-layout", layoutPath))
	assert.Contains(t, errOut.String(), "Error:")
	_, err := os.Stat(filepath.Join(dir, "contract_signed_by_CAROL.pdf"))
	assert.True(t, os.IsNotExist(err))
}

func TestPreview(t *testing.T) {
	dir, out, errOut := isolate(t)
	pdf := pdftest.Write(t, dir, "contract.pdf")
	layoutPath := filepath.Join(dir, "sign.toml")
	require.NoError(t, os.WriteFile(layoutPath, []byte(`units = "display"
[[elements]]
kind = "text"
page = 1
x = 20.0
y = 30.0
text = "Hi"
`), 0o644))
	png := filepath.Join(dir, "check.png")

	code := runCmd(t, dir, "preview", pdf, "-layout", layoutPath, "-zoom", "2", "-o", png)
	require.Equal(t, 0, code, errOut.String())
	assert.Contains(t, out.String(), "page 1/1 at 200%")

	f, err := os.Open(png)
	require.NoError(t, err)
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 1400, cfg.Width)
}

func TestLayoutCommand(t *testing.T) {
	dir, out, errOut := isolate(t)
	pdf := pdftest.Write(t, dir, "contract.pdf")
	layoutPath := filepath.Join(dir, "sign.yaml")
	require.NoError(t, os.WriteFile(layoutPath, []byte(`units: document
elements:
  - {kind: text, page: 1, x: 100, y: 200, text: Approved}
`), 0o644))

	code := runCmd(t, dir, "layout", pdf, "-layout", layoutPath, "-format", "json")
	require.Equal(t, 0, code, errOut.String())
	assert.Contains(t, out.String(), `"units": "document"`)
	assert.Contains(t, out.String(), `"text": "Approved"`)

	assert.Equal(t, 2, runCmd(t, dir, "layout", pdf, "-layout", layoutPath, "-units", "inches"))
}

func TestLibraryCommands(t *testing.T) {
	dir, out, errOut := isolate(t)
	sig := filepath.Join(dir, "sig.png")
	writePNG(t, sig)

	require.Equal(t, 0, runCmd(t, dir, "library", "list"), errOut.String())
	assert.Contains(t, out.String(), "No saved signatures.")

	require.Equal(t, 0, runCmd(t, dir, "library", "add", "carol", sig), errOut.String())
	assert.Contains(t, out.String(), `Saved signature "carol" (60x30)`)
	assert.Equal(t, 1, runCmd(t, dir, "library", "add", "carol", sig))
	require.Equal(t, 0, runCmd(t, dir, "library", "add", "carol", sig, "-replace"), errOut.String())

	out.Reset()
	require.Equal(t, 0, runCmd(t, dir, "library", "list"))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "carol"))
	assert.Contains(t, lines[1], "60x30")

	require.Equal(t, 0, runCmd(t, dir, "library", "verify"))
	require.Equal(t, 0, runCmd(t, dir, "library", "status"))
	assert.Contains(t, out.String(), "Schema:   version 2 of 2")

	require.Equal(t, 0, runCmd(t, dir, "library", "rm", "carol"))
	assert.Equal(t, 1, runCmd(t, dir, "library", "rm", "carol"))
	assert.Equal(t, 2, runCmd(t, dir, "library", "bogus"))
}

func TestLibraryImport(t *testing.T) {
	dir, out, errOut := isolate(t)
	legacy := filepath.Join(dir, "saved_signatures")
	require.NoError(t, os.MkdirAll(legacy, 0o755))
	writePNG(t, filepath.Join(legacy, "mine.png"))
	require.NoError(t, os.WriteFile(filepath.Join(legacy, "signatures.json"), []byte(`{
  "signature_name": "CAROL",
  "signatures": [
    {"name": "mine", "filename": "mine.png"},
    {"name": "lost", "filename": "lost.png"}
  ]
}`), 0o644))

	require.Equal(t, 0, runCmd(t, dir, "library", "import", legacy), errOut.String())
	assert.Contains(t, out.String(), "Annotator in index: CAROL")
	assert.Contains(t, out.String(), "Imported 1 signatures")
	assert.Contains(t, out.String(), "  + mine")
	assert.Contains(t, out.String(), "  - lost:")
}

func TestConfigCommand(t *testing.T) {
	dir, out, errOut := isolate(t)
	path := filepath.Join(dir, "conf", "signpad.toml")

	require.Equal(t, 0, run(context.Background(), []string{"config", "-init", path}), errOut.String())
	assert.Contains(t, errOut.String(), "Created "+path)
	assert.Contains(t, out.String(), "# signpad configuration")
	assert.Contains(t, out.String(), `name = "CAROL"`)
	_, err := os.Stat(path)
	require.NoError(t, err)

	out.Reset()
	require.Equal(t, 0, run(context.Background(), []string{"config", path}))
	assert.Contains(t, out.String(), "[canvas]")
}
