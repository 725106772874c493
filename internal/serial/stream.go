package serial

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"fortio.org/safecast"
)

// maxString bounds a single decoded string so a corrupt length cannot
// trigger a huge allocation.
const maxString = 1 << 28

// Writer is the sink of the encoder. Errors are sticky: after the first
// failure every call is a no-op and Err reports it.
type Writer interface {
	Uint8(v uint8)
	Int64(v int64)
	Float64(v float64)
	String(s string)
	Flush() error
	Err() error
}

// Reader is the source of the decoder, with the same sticky error rule.
// Short input yields ErrTruncated.
type Reader interface {
	Uint8() uint8
	Int64() int64
	Float64() float64
	String() string
	Err() error
}

// BinaryWriter writes big-endian fixed-width integers, float64 as IEEE bits
// and strings as an int64 length followed by the bytes.
type BinaryWriter struct {
	w   *bufio.Writer
	buf [8]byte
	err error
}

// NewBinaryWriter wraps w.
func NewBinaryWriter(w io.Writer) *BinaryWriter {
	return &BinaryWriter{w: bufio.NewWriter(w)}
}

func (bw *BinaryWriter) write(p []byte) {
	if bw.err != nil {
		return
	}
	_, bw.err = bw.w.Write(p)
}

func (bw *BinaryWriter) Uint8(v uint8) {
	bw.buf[0] = v
	bw.write(bw.buf[:1])
}

func (bw *BinaryWriter) Int64(v int64) {
	binary.BigEndian.PutUint64(bw.buf[:], uint64(v)) //nolint:gosec // two's complement round trip
	bw.write(bw.buf[:])
}

func (bw *BinaryWriter) Float64(v float64) {
	binary.BigEndian.PutUint64(bw.buf[:], math.Float64bits(v))
	bw.write(bw.buf[:])
}

func (bw *BinaryWriter) String(s string) {
	bw.Int64(int64(len(s)))
	if bw.err != nil {
		return
	}
	_, bw.err = bw.w.WriteString(s)
}

func (bw *BinaryWriter) Flush() error {
	if bw.err != nil {
		return bw.err
	}
	bw.err = bw.w.Flush()
	return bw.err
}

func (bw *BinaryWriter) Err() error { return bw.err }

// BinaryReader reads what BinaryWriter wrote.
type BinaryReader struct {
	r   *bufio.Reader
	buf [8]byte
	err error
}

// NewBinaryReader wraps r.
func NewBinaryReader(r io.Reader) *BinaryReader {
	return &BinaryReader{r: bufio.NewReader(r)}
}

func (br *BinaryReader) read(n int) []byte {
	if br.err != nil {
		return nil
	}
	if _, err := io.ReadFull(br.r, br.buf[:n]); err != nil {
		br.err = streamErr(err)
		return nil
	}
	return br.buf[:n]
}

func (br *BinaryReader) Uint8() uint8 {
	if b := br.read(1); b != nil {
		return b[0]
	}
	return 0
}

func (br *BinaryReader) Int64() int64 {
	if b := br.read(8); b != nil {
		return int64(binary.BigEndian.Uint64(b)) //nolint:gosec // two's complement round trip
	}
	return 0
}

func (br *BinaryReader) Float64() float64 {
	if b := br.read(8); b != nil {
		return math.Float64frombits(binary.BigEndian.Uint64(b))
	}
	return 0
}

func (br *BinaryReader) String() string {
	n := br.Int64()
	if br.err != nil {
		return ""
	}
	size, err := stringLen(n)
	if err != nil {
		br.err = err
		return ""
	}
	out := make([]byte, size)
	if _, err := io.ReadFull(br.r, out); err != nil {
		br.err = streamErr(err)
		return ""
	}
	return string(out)
}

func (br *BinaryReader) Err() error { return br.err }

// TextWriter is the debugging encoding: every value is a whitespace
// separated token; a string is its length, one space and the raw bytes.
type TextWriter struct {
	w     *bufio.Writer
	err   error
	count int
}

// NewTextWriter wraps w.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: bufio.NewWriter(w)}
}

func (tw *TextWriter) token(s string) {
	if tw.err != nil {
		return
	}
	sep := " "
	// keep lines short enough to read in a pager
	if tw.count%16 == 0 {
		sep = "\n"
	}
	if tw.count == 0 {
		sep = ""
	}
	tw.count++
	_, tw.err = tw.w.WriteString(sep + s)
}

func (tw *TextWriter) Uint8(v uint8)     { tw.token(strconv.FormatUint(uint64(v), 10)) }
func (tw *TextWriter) Int64(v int64)     { tw.token(strconv.FormatInt(v, 10)) }
func (tw *TextWriter) Float64(v float64) { tw.token(strconv.FormatFloat(v, 'g', -1, 64)) }
func (tw *TextWriter) String(s string)   { tw.token(strconv.Itoa(len(s)) + " " + s) }

func (tw *TextWriter) Flush() error {
	if tw.err != nil {
		return tw.err
	}
	if tw.count > 0 {
		_, tw.err = tw.w.WriteString("\n")
	}
	if tw.err == nil {
		tw.err = tw.w.Flush()
	}
	return tw.err
}

func (tw *TextWriter) Err() error { return tw.err }

// TextReader reads what TextWriter wrote.
type TextReader struct {
	r   *bufio.Reader
	err error
}

// NewTextReader wraps r.
func NewTextReader(r io.Reader) *TextReader {
	return &TextReader{r: bufio.NewReader(r)}
}

func isSpace(b byte) bool { return b == ' ' || b == '\n' || b == '\t' || b == '\r' }

func (tr *TextReader) token() string {
	if tr.err != nil {
		return ""
	}
	var tok []byte
	for {
		b, err := tr.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && len(tok) > 0 {
				return string(tok)
			}
			tr.err = streamErr(err)
			return ""
		}
		if isSpace(b) {
			if len(tok) > 0 {
				// String needs the separator after a length token
				_ = tr.r.UnreadByte()
				return string(tok)
			}
			continue
		}
		tok = append(tok, b)
	}
}

func (tr *TextReader) malformed(tok, what string, err error) {
	if tr.err == nil {
		tr.err = fmt.Errorf("%w: bad %s token %q: %v", ErrMalformed, what, tok, err)
	}
}

func (tr *TextReader) Uint8() uint8 {
	tok := tr.token()
	if tr.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(tok, 10, 8)
	if err != nil {
		tr.malformed(tok, "uint8", err)
	}
	return uint8(v)
}

func (tr *TextReader) Int64() int64 {
	tok := tr.token()
	if tr.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		tr.malformed(tok, "int64", err)
	}
	return v
}

func (tr *TextReader) Float64() float64 {
	tok := tr.token()
	if tr.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		tr.malformed(tok, "float64", err)
	}
	return v
}

func (tr *TextReader) String() string {
	n := tr.Int64()
	if tr.err != nil {
		return ""
	}
	size, err := stringLen(n)
	if err != nil {
		tr.err = err
		return ""
	}
	// the length is followed by exactly one separator
	if _, err := tr.r.ReadByte(); err != nil {
		tr.err = streamErr(err)
		return ""
	}
	out := make([]byte, size)
	if _, err := io.ReadFull(tr.r, out); err != nil {
		tr.err = streamErr(err)
		return ""
	}
	return string(out)
}

func (tr *TextReader) Err() error { return tr.err }

func stringLen(n int64) (int, error) {
	if n < 0 || n > maxString {
		return 0, fmt.Errorf("%w: string length %d", ErrMalformed, n)
	}
	return safecast.Conv[int](n)
}

func streamErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}
