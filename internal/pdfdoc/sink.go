package pdfdoc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/digitorus/pdf"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"signpad/internal/export"
	"signpad/internal/geom"
	"signpad/internal/raster"
)

// Resource names added to rewritten pages.
const (
	fontResource  = "SgF0"
	imagePrefix   = "SgIm"
	lineSpacing   = 1.2
	xrefEntrySize = 20
)

// ErrFinished is returned when a Writer is used after Finish.
var ErrFinished = errors.New("pdfdoc: writer already finished")

// Sink starts exports of PDF files on disk.
type Sink struct {
	Logger *slog.Logger
}

// Begin implements export.Sink.
func (s Sink) Begin(sourcePath string) (export.Writer, error) {
	doc, err := Open(sourcePath)
	if err != nil {
		return nil, err
	}
	return NewWriter(doc, s.Logger), nil
}

type placedImage struct {
	name string
	img  image.Image
}

type pageEdit struct {
	images []placedImage
	ops    bytes.Buffer
	font   bool
}

// Writer stages images and text on pages of a document and serializes them
// as one incremental update appended to the original file.
type Writer struct {
	doc    *Document
	logger *slog.Logger
	pages  map[int]*pageEdit
	order  []int
	nimg   int
	done   bool
}

// NewWriter returns a writer for doc.
func NewWriter(doc *Document, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		doc:    doc,
		logger: logger.With("component", "pdfdoc"),
		pages:  make(map[int]*pageEdit),
	}
}

func (w *Writer) edit(page int) (*pageEdit, Box, error) {
	if w.done {
		return nil, Box{}, ErrFinished
	}
	box, err := w.doc.PageBox(page)
	if err != nil {
		return nil, Box{}, err
	}
	pe, ok := w.pages[page]
	if !ok {
		pe = &pageEdit{}
		w.pages[page] = pe
		w.order = append(w.order, page)
	}
	return pe, box, nil
}

// PlaceImage draws a PNG image filling rect, given in top-left document
// coordinates.
func (w *Writer) PlaceImage(page int, rect geom.Rect, png []byte) error {
	pe, box, err := w.edit(page)
	if err != nil {
		return err
	}
	img, err := raster.DecodeBytes(png, fmt.Sprintf("image on page %d", page+1))
	if err != nil {
		return err
	}
	w.nimg++
	name := imagePrefix + strconv.Itoa(w.nimg)
	pe.images = append(pe.images, placedImage{name: name, img: img})

	x := box.LLX + rect.X
	y := box.URY - rect.Y - rect.Height
	fmt.Fprintf(&pe.ops, "q %s 0 0 %s %s %s cm /%s Do Q\n",
		num(rect.Width), num(rect.Height), num(x), num(y), name)
	return nil
}

// PlaceText draws text in Helvetica with its first baseline at at, given in
// top-left document coordinates. Each line of text is drawn below the
// previous one.
func (w *Writer) PlaceText(page int, at geom.Point, text string, size float64, c export.RGB) error {
	pe, box, err := w.edit(page)
	if err != nil {
		return err
	}
	enc := newWinAnsiEncoder()
	ops := &pe.ops
	fmt.Fprintf(ops, "BT /%s %s Tf %s %s %s rg %s TL %s %s Td",
		fontResource, num(size), num(c.R), num(c.G), num(c.B),
		num(size*lineSpacing), num(box.LLX+at.X), num(box.URY-at.Y))
	for i, line := range strings.Split(text, "\n") {
		encoded := encodeWinAnsi(enc, line)
		if i > 0 {
			ops.WriteString(" T*")
		}
		ops.WriteByte(' ')
		writeLiteralString(ops, encoded)
		ops.WriteString(" Tj")
	}
	ops.WriteString(" ET\n")
	pe.font = true
	return nil
}

func newWinAnsiEncoder() *encoding.Encoder {
	return charmap.Windows1252.NewEncoder()
}

// encodeWinAnsi maps text to the standard font encoding. Characters the
// encoding lacks become '?'.
func encodeWinAnsi(enc *encoding.Encoder, s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, err := enc.Bytes([]byte(string(r)))
		if err != nil || len(b) != 1 {
			out = append(out, '?')
			continue
		}
		out = append(out, b[0])
	}
	return out
}

// update accumulates the objects of one incremental update.
type update struct {
	cw       *countingWriter
	compress bool
	offsets  map[uint32]int64
	gens     map[uint32]uint16
	next     uint32
}

func (u *update) alloc() uint32 {
	id := u.next
	u.next++
	return id
}

func (u *update) object(id uint32, gen uint16, body []byte) error {
	u.offsets[id] = u.cw.off
	u.gens[id] = gen
	if _, err := fmt.Fprintf(u.cw, "%d %d obj\n", id, gen); err != nil {
		return err
	}
	if _, err := u.cw.Write(body); err != nil {
		return err
	}
	_, err := io.WriteString(u.cw, "\nendobj\n")
	return err
}

// stream writes a stream object. dict holds the entries besides /Length
// and /Filter.
func (u *update) stream(id uint32, dict string, data []byte) error {
	filter := ""
	if u.compress {
		z, err := deflate(data)
		if err != nil {
			return err
		}
		data = z
		filter = " /Filter /FlateDecode"
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "<<%s /Length %d%s >>\nstream\n", dict, len(data), filter)
	b.Write(data)
	b.WriteString("\nendstream")
	return u.object(id, 0, b.Bytes())
}

// Finish writes the original document followed by the update.
func (w *Writer) Finish(out io.Writer, opts export.FinishOptions) error {
	if w.done {
		return ErrFinished
	}
	w.done = true
	return guard(func() error { return w.finish(out, opts) })
}

func (w *Writer) finish(out io.Writer, opts export.FinishOptions) error {
	data := w.doc.Bytes()
	cw := &countingWriter{w: out}
	if _, err := cw.Write(data); err != nil {
		return err
	}
	if len(data) > 0 && data[len(data)-1] != '\n' && data[len(data)-1] != '\r' {
		if _, err := io.WriteString(cw, "\n"); err != nil {
			return err
		}
	}

	r := w.doc.r
	trailer := r.Trailer()
	size := uint32(trailer.Key("Size").Int64())
	if n := uint32(r.XrefInformation.ItemCount); n > size {
		size = n
	}
	u := &update{
		cw:       cw,
		compress: opts.Compress,
		offsets:  make(map[uint32]int64),
		gens:     make(map[uint32]uint16),
		next:     size,
	}

	var fontID uint32
	for _, pe := range w.pages {
		if pe.font && fontID == 0 {
			fontID = u.alloc()
			if err := u.object(fontID, 0, []byte("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")); err != nil {
				return err
			}
		}
	}

	saveID := u.alloc()
	if err := u.stream(saveID, "", []byte("q\n")); err != nil {
		return err
	}

	for _, page := range w.order {
		if err := w.writePage(u, page, w.pages[page], saveID, fontID); err != nil {
			return fmt.Errorf("pdfdoc: page %d: %w", page+1, err)
		}
	}

	var err error
	if r.XrefInformation.Type == "stream" {
		err = w.writeXrefStream(u, trailer)
	} else {
		err = w.writeXrefTable(u, trailer)
	}
	if err != nil {
		return err
	}
	w.logger.Debug("incremental update written",
		"path", w.doc.Path(),
		"pages", len(w.order),
		"objects", len(u.offsets),
		"xref", r.XrefInformation.Type)
	return nil
}

func (w *Writer) writePage(u *update, page int, pe *pageEdit, saveID, fontID uint32) error {
	pv, err := w.doc.pageValue(page)
	if err != nil {
		return err
	}
	ptr := pv.GetPtr()
	if ptr.GetID() == 0 {
		return fmt.Errorf("page object is not indirect")
	}

	xobjects := make([]rawEntry, 0, len(pe.images))
	for _, im := range pe.images {
		id, err := w.writeImage(u, im.img)
		if err != nil {
			return err
		}
		xobjects = append(xobjects, rawEntry{key: im.name, value: fmt.Sprintf("%d 0 R", id)})
	}

	contentID := u.alloc()
	body := append([]byte("Q\nq\n"), pe.ops.Bytes()...)
	body = append(body, "Q\n"...)
	if err := u.stream(contentID, "", body); err != nil {
		return err
	}

	var fonts []rawEntry
	if pe.font {
		fonts = append(fonts, rawEntry{key: fontResource, value: fmt.Sprintf("%d 0 R", fontID)})
	}

	var b bytes.Buffer
	extra := []rawEntry{
		{key: "Contents", value: contentsArray(pv.Key("Contents"), saveID, contentID)},
		{key: "Resources", value: mergedResources(inherited(pv, "Resources"), xobjects, fonts)},
	}
	writeDictEntries(&b, pv, map[string]bool{"Contents": true, "Resources": true}, extra)
	return u.object(ptr.GetID(), ptr.GetGen(), b.Bytes())
}

// contentsArray wraps the original content streams between a save stream
// and the new content stream.
func contentsArray(orig pdf.Value, saveID, contentID uint32) string {
	var b bytes.Buffer
	b.WriteByte('[')
	writeRef(&b, saveID, 0)
	switch orig.Kind() {
	case pdf.Array:
		for i := 0; i < orig.Len(); i++ {
			if p := orig.Index(i).GetPtr(); p.GetID() != 0 {
				b.WriteByte(' ')
				writeRef(&b, p.GetID(), p.GetGen())
			}
		}
	case pdf.Stream:
		p := orig.GetPtr()
		b.WriteByte(' ')
		writeRef(&b, p.GetID(), p.GetGen())
	}
	b.WriteByte(' ')
	writeRef(&b, contentID, 0)
	b.WriteByte(']')
	return b.String()
}

// mergedResources writes a direct resource dictionary holding the page's
// effective resources plus the new XObjects and fonts.
func mergedResources(res pdf.Value, xobjects, fonts []rawEntry) string {
	var b bytes.Buffer
	skip := map[string]bool{}
	if len(xobjects) > 0 {
		skip["XObject"] = true
	}
	if len(fonts) > 0 {
		skip["Font"] = true
	}
	var extra []rawEntry
	if len(xobjects) > 0 {
		extra = append(extra, rawEntry{key: "XObject", value: mergedSubdict(res.Key("XObject"), xobjects)})
	}
	if len(fonts) > 0 {
		extra = append(extra, rawEntry{key: "Font", value: mergedSubdict(res.Key("Font"), fonts)})
	}
	if res.Kind() != pdf.Dict {
		b.WriteString("<<")
		for _, e := range extra {
			b.WriteByte(' ')
			writeName(&b, e.key)
			b.WriteByte(' ')
			b.WriteString(e.value)
		}
		b.WriteString(" >>")
		return b.String()
	}
	writeDictEntries(&b, res, skip, extra)
	return b.String()
}

func mergedSubdict(orig pdf.Value, add []rawEntry) string {
	var b bytes.Buffer
	if orig.Kind() == pdf.Dict {
		writeDictEntries(&b, orig, nil, add)
		return b.String()
	}
	b.WriteString("<<")
	for _, e := range add {
		b.WriteByte(' ')
		writeName(&b, e.key)
		b.WriteByte(' ')
		b.WriteString(e.value)
	}
	b.WriteString(" >>")
	return b.String()
}

// writeImage writes img as a DeviceRGB image XObject with an SMask when it
// has transparency.
func (w *Writer) writeImage(u *update, img image.Image) (uint32, error) {
	rgb, alpha, hasAlpha := raster.Split(img)
	bw, bh := img.Bounds().Dx(), img.Bounds().Dy()

	smask := ""
	if hasAlpha {
		maskID := u.alloc()
		dict := fmt.Sprintf(" /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 8", bw, bh)
		if err := u.stream(maskID, dict, alpha); err != nil {
			return 0, err
		}
		smask = fmt.Sprintf(" /SMask %d 0 R", maskID)
	}
	id := u.alloc()
	dict := fmt.Sprintf(" /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8%s", bw, bh, smask)
	if err := u.stream(id, dict, rgb); err != nil {
		return 0, err
	}
	return id, nil
}

// trailerEntries are the entries shared by table and stream trailers.
func (w *Writer) trailerEntries(u *update, trailer pdf.Value) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, " /Size %d", u.next)
	for _, key := range []string{"Root", "Info"} {
		v := trailer.Key(key)
		if p := v.GetPtr(); !v.IsNull() && p.GetID() != 0 {
			fmt.Fprintf(&b, " /%s ", key)
			writeRef(&b, p.GetID(), p.GetGen())
		}
	}
	if id := trailer.Key("ID"); id.Kind() == pdf.Array {
		b.WriteString(" /ID ")
		writeValue(&b, trailer, id)
	}
	fmt.Fprintf(&b, " /Prev %d", w.doc.r.XrefInformation.StartPos)
	return b.String()
}

// subsections groups sorted object numbers into runs of consecutive ones.
func subsections(ids []uint32) [][2]uint32 {
	var runs [][2]uint32
	for i := 0; i < len(ids); {
		j := i + 1
		for j < len(ids) && ids[j] == ids[j-1]+1 {
			j++
		}
		runs = append(runs, [2]uint32{ids[i], uint32(j - i)})
		i = j
	}
	return runs
}

func (u *update) sortedIDs() []uint32 {
	ids := make([]uint32, 0, len(u.offsets))
	for id := range u.offsets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (w *Writer) writeXrefTable(u *update, trailer pdf.Value) error {
	start := u.cw.off
	var b bytes.Buffer
	b.WriteString("xref\n")
	ids := u.sortedIDs()
	for _, run := range subsections(ids) {
		fmt.Fprintf(&b, "%d %d\n", run[0], run[1])
		for id := run[0]; id < run[0]+run[1]; id++ {
			entry := fmt.Sprintf("%010d %05d n\r\n", u.offsets[id], u.gens[id])
			if len(entry) != xrefEntrySize {
				return fmt.Errorf("pdfdoc: xref entry for object %d does not fit", id)
			}
			b.WriteString(entry)
		}
	}
	fmt.Fprintf(&b, "trailer\n<<%s >>\nstartxref\n%d\n%%%%EOF\n", w.trailerEntries(u, trailer), start)
	_, err := u.cw.Write(b.Bytes())
	return err
}

func (w *Writer) writeXrefStream(u *update, trailer pdf.Value) error {
	id := u.alloc()
	start := u.cw.off
	u.offsets[id] = start
	u.gens[id] = 0

	ids := u.sortedIDs()
	width := 4
	if start > 0xffffffff {
		width = 8
	}
	var data bytes.Buffer
	for _, oid := range ids {
		data.WriteByte(1)
		var off [8]byte
		binary.BigEndian.PutUint64(off[:], uint64(u.offsets[oid]))
		data.Write(off[8-width:])
		var gen [2]byte
		binary.BigEndian.PutUint16(gen[:], u.gens[oid])
		data.Write(gen[:])
	}

	var index bytes.Buffer
	for i, run := range subsections(ids) {
		if i > 0 {
			index.WriteByte(' ')
		}
		fmt.Fprintf(&index, "%d %d", run[0], run[1])
	}
	dict := fmt.Sprintf(" /Type /XRef /W [1 %d 2] /Index [%s]%s", width, index.String(), w.trailerEntries(u, trailer))
	if err := u.stream(id, dict, data.Bytes()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(u.cw, "startxref\n%d\n%%%%EOF\n", start)
	return err
}
