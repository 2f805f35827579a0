package chunk

import (
	"github.com/justapithecus/asechunk/iox"
	"github.com/justapithecus/asechunk/types"
)

// ColorProfileType selects how sprite colors are interpreted.
type ColorProfileType uint16

// Color profile types.
const (
	ColorProfileNone ColorProfileType = iota
	ColorProfileSRGB
	ColorProfileICC
)

// ColorProfileFixedGamma marks Gamma as in use.
const ColorProfileFixedGamma uint16 = 1

// ColorProfile is the 0x2007 color profile chunk.
type ColorProfile struct {
	Type  ColorProfileType
	Flags uint16
	// Gamma is 1.0 for linear; only meaningful with ColorProfileFixedGamma.
	Gamma Fixed
	// ICC holds the embedded profile when Type is ColorProfileICC.
	ICC []byte
}

// Tag implements Payload.
func (*ColorProfile) Tag() Tag { return TagColorProfile }

// UsesFixedGamma reports whether the fixed gamma flag is set.
func (cp *ColorProfile) UsesFixedGamma() bool {
	return cp.Flags&ColorProfileFixedGamma != 0
}

func decodeColorProfile(c *iox.Cursor) (*ColorProfile, error) {
	var cp ColorProfile

	typ, err := c.U16()
	if err != nil {
		return nil, err
	}
	cp.Type = ColorProfileType(typ)

	if cp.Flags, err = c.U16(); err != nil {
		return nil, err
	}
	gamma, err := c.I32()
	if err != nil {
		return nil, err
	}
	cp.Gamma = Fixed(gamma)

	if err := c.Skip(8); err != nil {
		return nil, err
	}

	if cp.Type == ColorProfileICC {
		n, err := c.U32()
		if err != nil {
			return nil, err
		}
		if cp.ICC, err = c.Bytes(int(n)); err != nil {
			return nil, err
		}
	}
	return &cp, nil
}

func (cp *ColorProfile) encode(w *iox.Writer, _ *types.Header) {
	w.U16(uint16(cp.Type))
	w.U16(cp.Flags)
	w.I32(int32(cp.Gamma))
	w.Zero(8)
	if cp.Type == ColorProfileICC {
		w.U32(uint32(len(cp.ICC)))
		w.Bytes(cp.ICC)
	}
}
