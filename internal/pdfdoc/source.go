// Package pdfdoc reads PDF page geometry and writes signed copies as
// incremental updates, leaving the original bytes untouched.
package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/digitorus/pdf"

	"signpad/internal/engine"
	"signpad/internal/geom"
)

// Errors returned while reading documents.
var (
	ErrEncrypted = errors.New("pdfdoc: encrypted documents are not supported")
	ErrNoPages   = errors.New("pdfdoc: document has no pages")
	ErrPageRange = errors.New("pdfdoc: page out of range")
	ErrMalformed = errors.New("pdfdoc: malformed document")
)

// Box is a PDF rectangle in default user space.
type Box struct {
	LLX, LLY, URX, URY float64
}

// Width returns the box width.
func (b Box) Width() float64 { return b.URX - b.LLX }

// Height returns the box height.
func (b Box) Height() float64 { return b.URY - b.LLY }

// letterBox is used when a page declares no usable MediaBox.
var letterBox = Box{URX: 612, URY: 792}

// Source opens PDF files from disk.
type Source struct{}

// Open implements engine.DocumentSource.
func (Source) Open(path string) (engine.Document, error) {
	return Open(path)
}

// Document is an open PDF. The whole file is held in memory so that the
// sink can copy it verbatim.
type Document struct {
	path string
	data []byte
	r    *pdf.Reader

	mu    sync.Mutex
	boxes map[int]Box
}

// Open reads and parses the PDF at path.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, data)
}

// Parse parses an in-memory PDF. path is only used for reporting.
func Parse(path string, data []byte) (*Document, error) {
	var r *pdf.Reader
	err := guard(func() error {
		var err error
		r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return err
		}
		if !r.Trailer().Key("Encrypt").IsNull() {
			return ErrEncrypted
		}
		if r.NumPage() < 1 {
			return ErrNoPages
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("pdfdoc: parse %s: %w", path, err)
	}
	return &Document{
		path:  path,
		data:  data,
		r:     r,
		boxes: make(map[int]Box),
	}, nil
}

// guard runs fn and turns a panic from the PDF reader into an error. The
// reader panics on some malformed input.
func guard(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrMalformed, p)
		}
	}()
	return fn()
}

// Path returns the file the document was read from.
func (d *Document) Path() string {
	return d.path
}

// Bytes returns the original file content.
func (d *Document) Bytes() []byte {
	return d.data
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return d.r.NumPage()
}

// Close releases the document. The file is not kept open.
func (d *Document) Close() error {
	return nil
}

// PageSize returns the visible size of a zero-based page in points.
func (d *Document) PageSize(page int) (geom.Size, error) {
	b, err := d.PageBox(page)
	if err != nil {
		return geom.Size{}, err
	}
	return geom.Size{Width: b.Width(), Height: b.Height()}, nil
}

// PageBox returns the visible box of a zero-based page: its CropBox, or its
// MediaBox when there is none. Both are inherited through the page tree.
// /Rotate is not applied.
func (d *Document) PageBox(page int) (Box, error) {
	if page < 0 || page >= d.PageCount() {
		return Box{}, fmt.Errorf("%w: %d of %d", ErrPageRange, page, d.PageCount())
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.boxes[page]; ok {
		return b, nil
	}
	var box Box
	err := guard(func() error {
		p := d.r.Page(page + 1).V
		media, ok := readBox(inherited(p, "MediaBox"))
		if !ok {
			media = letterBox
		}
		box = media
		if crop, ok := readBox(inherited(p, "CropBox")); ok {
			box = intersect(crop, media)
		}
		return nil
	})
	if err != nil {
		return Box{}, err
	}
	d.boxes[page] = box
	return box, nil
}

func (d *Document) pageValue(page int) (pdf.Value, error) {
	if page < 0 || page >= d.PageCount() {
		return pdf.Value{}, fmt.Errorf("%w: %d of %d", ErrPageRange, page, d.PageCount())
	}
	var v pdf.Value
	err := guard(func() error {
		v = d.r.Page(page + 1).V
		if v.Kind() != pdf.Dict {
			return fmt.Errorf("page %d is not a dictionary", page+1)
		}
		return nil
	})
	return v, err
}

// inherited looks key up on the page and then on its ancestors.
func inherited(page pdf.Value, key string) pdf.Value {
	for v, depth := page, 0; v.Kind() == pdf.Dict && depth < 64; v, depth = v.Key("Parent"), depth+1 {
		if x := v.Key(key); !x.IsNull() {
			return x
		}
	}
	return pdf.Value{}
}

func readBox(v pdf.Value) (Box, bool) {
	if v.Kind() != pdf.Array || v.Len() != 4 {
		return Box{}, false
	}
	var n [4]float64
	for i := range n {
		x := v.Index(i)
		if x.Kind() != pdf.Integer && x.Kind() != pdf.Real {
			return Box{}, false
		}
		n[i] = x.Float64()
	}
	b := Box{
		LLX: min(n[0], n[2]), LLY: min(n[1], n[3]),
		URX: max(n[0], n[2]), URY: max(n[1], n[3]),
	}
	if b.Width() <= 0 || b.Height() <= 0 {
		return Box{}, false
	}
	return b, true
}

func intersect(a, b Box) Box {
	r := Box{
		LLX: max(a.LLX, b.LLX), LLY: max(a.LLY, b.LLY),
		URX: min(a.URX, b.URX), URY: min(a.URY, b.URY),
	}
	if r.Width() <= 0 || r.Height() <= 0 {
		return b
	}
	return r
}
