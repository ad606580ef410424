package pdfdoc

import (
	"bytes"
	"compress/zlib"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/digitorus/pdf"
)

// num formats a number for content streams and dictionaries. PDF has no
// exponent syntax, so the value is rounded to four decimals.
func num(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	f = math.Round(f*1e4) / 1e4
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%', '#':
		return true
	}
	return false
}

// writeName writes /name with irregular bytes escaped as #xx.
func writeName(b *bytes.Buffer, name string) {
	b.WriteByte('/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < '!' || c > '~' || isDelimiter(c) {
			fmt.Fprintf(b, "#%02X", c)
			continue
		}
		b.WriteByte(c)
	}
}

// writeHexString writes s as a hexadecimal string, which needs no escaping.
func writeHexString(b *bytes.Buffer, s string) {
	b.WriteByte('<')
	b.WriteString(hex.EncodeToString([]byte(s)))
	b.WriteByte('>')
}

// writeLiteralString writes s as a literal string for content streams.
func writeLiteralString(b *bytes.Buffer, s []byte) {
	b.WriteByte('(')
	for _, c := range s {
		switch c {
		case '(', ')', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\r':
			b.WriteString(`\r`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(')')
}

// writeRef writes an indirect reference.
func writeRef(b *bytes.Buffer, id uint32, gen uint16) {
	fmt.Fprintf(b, "%d %d R", id, gen)
}

// writeValue re-serializes a value read from the source document. A child
// that was reached through an indirect reference carries a different object
// pointer than its container and is written back as a reference.
func writeValue(b *bytes.Buffer, parent, v pdf.Value) {
	if p := v.GetPtr(); v.Kind() == pdf.Stream || (p != parent.GetPtr() && p.GetID() != 0) {
		writeRef(b, p.GetID(), p.GetGen())
		return
	}
	switch v.Kind() {
	case pdf.Null:
		b.WriteString("null")
	case pdf.Bool:
		b.WriteString(strconv.FormatBool(v.Bool()))
	case pdf.Integer:
		b.WriteString(strconv.FormatInt(v.Int64(), 10))
	case pdf.Real:
		b.WriteString(strconv.FormatFloat(v.Float64(), 'f', -1, 64))
	case pdf.String:
		writeHexString(b, v.RawString())
	case pdf.Name:
		writeName(b, v.Name())
	case pdf.Array:
		b.WriteByte('[')
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				b.WriteByte(' ')
			}
			writeValue(b, v, v.Index(i))
		}
		b.WriteByte(']')
	case pdf.Dict:
		writeDictEntries(b, v, nil, nil)
	default:
		b.WriteString("null")
	}
}

// writeDictEntries writes dict v with the keys in skip left out and the
// entries of extra (already serialized) appended.
func writeDictEntries(b *bytes.Buffer, v pdf.Value, skip map[string]bool, extra []rawEntry) {
	b.WriteString("<<")
	for _, k := range v.Keys() {
		if skip[k] {
			continue
		}
		b.WriteByte(' ')
		writeName(b, k)
		b.WriteByte(' ')
		writeValue(b, v, v.Key(k))
	}
	for _, e := range extra {
		b.WriteByte(' ')
		writeName(b, e.key)
		b.WriteByte(' ')
		b.WriteString(e.value)
	}
	b.WriteString(" >>")
}

type rawEntry struct {
	key   string
	value string
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// countingWriter tracks the absolute file offset of everything written.
type countingWriter struct {
	w   io.Writer
	off int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.off += int64(n)
	return n, err
}
