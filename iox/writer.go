package iox

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Writer writes little-endian values to an io.Writer.
//
// Like bufio.Writer, the first error is sticky: later writes are no-ops
// and Err reports it.
type Writer struct {
	w   io.Writer
	n   int64
	err error
	buf [8]byte
}

// NewWriter creates a writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first write error, if any.
func (w *Writer) Err() error {
	return w.err
}

// Written returns the number of bytes written so far.
func (w *Writer) Written() int64 {
	return w.n
}

func (w *Writer) write(b []byte) {
	if w.err != nil {
		return
	}
	n, err := w.w.Write(b)
	w.n += int64(n)
	w.err = err
}

// U8 writes a BYTE.
func (w *Writer) U8(v uint8) {
	w.buf[0] = v
	w.write(w.buf[:1])
}

// I8 writes a signed byte.
func (w *Writer) I8(v int8) { w.U8(uint8(v)) }

// U16 writes a WORD.
func (w *Writer) U16(v uint16) {
	binary.LittleEndian.PutUint16(w.buf[:2], v)
	w.write(w.buf[:2])
}

// I16 writes a SHORT.
func (w *Writer) I16(v int16) { w.U16(uint16(v)) }

// U32 writes a DWORD.
func (w *Writer) U32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[:4], v)
	w.write(w.buf[:4])
}

// I32 writes a LONG.
func (w *Writer) I32(v int32) { w.U32(uint32(v)) }

// U64 writes a QWORD.
func (w *Writer) U64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[:8], v)
	w.write(w.buf[:8])
}

// I64 writes a LONG64.
func (w *Writer) I64(v int64) { w.U64(uint64(v)) }

// F32 writes a FLOAT.
func (w *Writer) F32(v float32) { w.U32(math.Float32bits(v)) }

// F64 writes a DOUBLE.
func (w *Writer) F64(v float64) { w.U64(math.Float64bits(v)) }

// Bytes writes b as-is.
func (w *Writer) Bytes(b []byte) {
	if len(b) == 0 {
		return
	}
	w.write(b)
}

// Zero writes n zero bytes (reserved areas).
func (w *Writer) Zero(n int) {
	for i := 0; i < n; i++ {
		w.U8(0)
	}
}

// String writes a STRING: WORD byte length, then the bytes.
func (w *Writer) String(s string) {
	if len(s) > math.MaxUint16 {
		if w.err == nil {
			w.err = fmt.Errorf("string of %d bytes exceeds WORD length", len(s))
		}
		return
	}
	w.U16(uint16(len(s)))
	w.Bytes([]byte(s))
}

// Fail records err as the writer's error unless one is already set.
// Encoders use it to reject values that have no wire form.
func (w *Writer) Fail(err error) {
	if w.err == nil {
		w.err = err
	}
}
