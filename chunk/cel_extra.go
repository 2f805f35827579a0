package chunk

import (
	"github.com/justapithecus/asechunk/iox"
	"github.com/justapithecus/asechunk/types"
)

// CelExtraPreciseBounds marks the precise bounds as set.
const CelExtraPreciseBounds uint32 = 1

// CelExtra is the 0x2006 chunk: sub-pixel bounds of the preceding cel.
type CelExtra struct {
	Flags  uint32
	X      Fixed
	Y      Fixed
	Width  Fixed
	Height Fixed
}

// Tag implements Payload.
func (*CelExtra) Tag() Tag { return TagCelExtra }

func decodeCelExtra(c *iox.Cursor) (*CelExtra, error) {
	var ce CelExtra
	var err error

	if ce.Flags, err = c.U32(); err != nil {
		return nil, err
	}
	for _, dst := range []*Fixed{&ce.X, &ce.Y, &ce.Width, &ce.Height} {
		v, err := c.I32()
		if err != nil {
			return nil, err
		}
		*dst = Fixed(v)
	}
	if err := c.Skip(16); err != nil {
		return nil, err
	}
	return &ce, nil
}

func (ce *CelExtra) encode(w *iox.Writer, _ *types.Header) {
	w.U32(ce.Flags)
	w.I32(int32(ce.X))
	w.I32(int32(ce.Y))
	w.I32(int32(ce.Width))
	w.I32(int32(ce.Height))
	w.Zero(16)
}
