package iox

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// directReadLimit is the largest block Bytes allocates up front.
// Larger blocks grow as data arrives so a corrupt length cannot
// force a huge allocation on a short stream.
const directReadLimit = 64 * 1024

// Cursor reads little-endian values from a seekable byte source.
//
// A Cursor holds no position of its own; the underlying source does.
// It must not be used from more than one goroutine at a time.
//
// Read errors follow io.ReadFull: io.EOF when no byte of the value was
// available, io.ErrUnexpectedEOF when the stream ended inside it.
type Cursor struct {
	rs  io.ReadSeeker
	buf [8]byte
}

// NewCursor creates a cursor over rs.
func NewCursor(rs io.ReadSeeker) *Cursor {
	return &Cursor{rs: rs}
}

func (c *Cursor) fill(n int) ([]byte, error) {
	b := c.buf[:n]
	if _, err := io.ReadFull(c.rs, b); err != nil {
		return nil, err
	}
	return b, nil
}

// U8 reads a BYTE.
func (c *Cursor) U8() (uint8, error) {
	b, err := c.fill(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// I8 reads a signed byte.
func (c *Cursor) I8() (int8, error) {
	v, err := c.U8()
	return int8(v), err
}

// U16 reads a WORD.
func (c *Cursor) U16() (uint16, error) {
	b, err := c.fill(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// I16 reads a SHORT.
func (c *Cursor) I16() (int16, error) {
	v, err := c.U16()
	return int16(v), err
}

// U32 reads a DWORD.
func (c *Cursor) U32() (uint32, error) {
	b, err := c.fill(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// I32 reads a LONG.
func (c *Cursor) I32() (int32, error) {
	v, err := c.U32()
	return int32(v), err
}

// U64 reads a QWORD.
func (c *Cursor) U64() (uint64, error) {
	b, err := c.fill(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// I64 reads a LONG64.
func (c *Cursor) I64() (int64, error) {
	v, err := c.U64()
	return int64(v), err
}

// F32 reads a FLOAT.
func (c *Cursor) F32() (float32, error) {
	v, err := c.U32()
	return math.Float32frombits(v), err
}

// F64 reads a DOUBLE.
func (c *Cursor) F64() (float64, error) {
	v, err := c.U64()
	return math.Float64frombits(v), err
}

// Bytes reads a fixed-length block of n bytes into a new slice.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative block length %d", n)
	}
	if n == 0 {
		return []byte{}, nil
	}
	if n <= directReadLimit {
		b := make([]byte, n)
		if _, err := io.ReadFull(c.rs, b); err != nil {
			return nil, err
		}
		return b, nil
	}

	b, err := io.ReadAll(io.LimitReader(c.rs, int64(n)))
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, io.EOF
	}
	if len(b) < n {
		return nil, io.ErrUnexpectedEOF
	}
	return b, nil
}

// String reads a STRING: a WORD byte length followed by UTF-8 bytes
// with no terminator.
func (c *Cursor) String() (string, error) {
	n, err := c.U16()
	if err != nil {
		return "", err
	}
	b, err := c.Bytes(int(n))
	if err != nil {
		return "", noEOF(err)
	}
	return string(b), nil
}

// Skip moves forward n bytes. The bytes are consumed rather than seeked
// over so that a stream ending inside a skipped area reports
// io.ErrUnexpectedEOF instead of silently succeeding.
func (c *Cursor) Skip(n int64) error {
	if n <= 0 {
		return nil
	}
	copied, err := io.CopyN(io.Discard, c.rs, n)
	if err != nil {
		if errors.Is(err, io.EOF) && copied == 0 {
			return io.EOF
		}
		return noEOF(err)
	}
	return nil
}

// Offset returns the current absolute position of the source.
func (c *Cursor) Offset() (int64, error) {
	return c.rs.Seek(0, io.SeekCurrent)
}

// Seek moves the source to the absolute position offset.
func (c *Cursor) Seek(offset int64) error {
	_, err := c.rs.Seek(offset, io.SeekStart)
	return err
}

// noEOF converts a bare io.EOF into io.ErrUnexpectedEOF for reads that
// follow other reads of the same value.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
