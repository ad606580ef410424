// Package pdftest builds small PDF files for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"signpad/internal/geom"
)

// Letter is the US letter page size in points.
var Letter = geom.Size{Width: 612, Height: 792}

// Build returns a document with one empty page per size. With no sizes it
// has a single letter page.
func Build(sizes ...geom.Size) []byte {
	if len(sizes) == 0 {
		sizes = []geom.Size{Letter}
	}
	n := len(sizes)
	kids := ""
	for i := range sizes {
		kids += fmt.Sprintf("%d 0 R ", 3+i)
	}
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, n),
	}
	for _, s := range sizes {
		objects = append(objects, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] /Resources << >> >>", s.Width, s.Height))
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	start := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f\r\n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n\r\n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, start)
	return b.Bytes()
}

// Write stores Build(sizes...) as name in dir and returns its path.
func Write(t testing.TB, dir, name string, sizes ...geom.Size) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, Build(sizes...), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
