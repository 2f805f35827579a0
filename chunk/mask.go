package chunk

import (
	"github.com/justapithecus/asechunk/iox"
	"github.com/justapithecus/asechunk/types"
)

// Mask is the deprecated 0x2016 mask chunk: a named 1-bit selection.
type Mask struct {
	X      int16
	Y      int16
	Width  uint16
	Height uint16
	Name   string
	// Bitmap is 1 bit per pixel, row-major, each row padded to a whole
	// byte; its length is MaskBitmapLen(Width, Height).
	Bitmap []byte
}

// Tag implements Payload.
func (*Mask) Tag() Tag { return TagMask }

// MaskBitmapLen returns the bitmap size of a width x height mask: each row
// is rounded up to whole bytes before multiplying by the row count.
func MaskBitmapLen(width, height uint16) int {
	return int(height) * ((int(width) + 7) / 8)
}

// At reports whether the pixel at (x, y), relative to the mask origin,
// is selected. The most significant bit of each byte is leftmost.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= int(m.Width) || y >= int(m.Height) {
		return false
	}
	stride := (int(m.Width) + 7) / 8
	i := y*stride + x/8
	if i >= len(m.Bitmap) {
		return false
	}
	return m.Bitmap[i]&(0x80>>(x%8)) != 0
}

func decodeMask(c *iox.Cursor) (*Mask, error) {
	var m Mask
	var err error

	if m.X, err = c.I16(); err != nil {
		return nil, err
	}
	if m.Y, err = c.I16(); err != nil {
		return nil, err
	}
	if m.Width, err = c.U16(); err != nil {
		return nil, err
	}
	if m.Height, err = c.U16(); err != nil {
		return nil, err
	}
	if err := c.Skip(8); err != nil {
		return nil, err
	}
	if m.Name, err = c.String(); err != nil {
		return nil, err
	}
	if m.Bitmap, err = c.Bytes(MaskBitmapLen(m.Width, m.Height)); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Mask) encode(w *iox.Writer, _ *types.Header) {
	if want := MaskBitmapLen(m.Width, m.Height); len(m.Bitmap) != want {
		w.Fail(malformed("mask bitmap has %d bytes, want %d", len(m.Bitmap), want))
		return
	}
	w.I16(m.X)
	w.I16(m.Y)
	w.U16(m.Width)
	w.U16(m.Height)
	w.Zero(8)
	w.String(m.Name)
	w.Bytes(m.Bitmap)
}
