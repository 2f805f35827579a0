package chunk

import (
	"github.com/justapithecus/asechunk/iox"
	"github.com/justapithecus/asechunk/types"
)

// PaletteEntryHasName marks a palette entry that carries a name.
const PaletteEntryHasName uint16 = 1

// PaletteEntry is one color of a palette chunk.
type PaletteEntry struct {
	Flags uint16
	Color RGBA
	Name  string
}

// Palette is the 0x2019 palette chunk. It updates entries First..Last of a
// palette resized to Size entries.
type Palette struct {
	Size    uint32
	First   uint32
	Last    uint32
	Entries []PaletteEntry
}

// Tag implements Payload.
func (*Palette) Tag() Tag { return TagPalette }

func decodePalette(c *iox.Cursor) (*Palette, error) {
	var p Palette
	var err error

	if p.Size, err = c.U32(); err != nil {
		return nil, err
	}
	if p.First, err = c.U32(); err != nil {
		return nil, err
	}
	if p.Last, err = c.U32(); err != nil {
		return nil, err
	}
	if p.Last < p.First {
		return nil, malformed("palette range %d..%d is inverted", p.First, p.Last)
	}
	if err := c.Skip(8); err != nil {
		return nil, err
	}

	count := int64(p.Last) - int64(p.First) + 1
	for i := int64(0); i < count; i++ {
		var e PaletteEntry
		if e.Flags, err = c.U16(); err != nil {
			return nil, err
		}
		rgba, err := c.Bytes(4)
		if err != nil {
			return nil, err
		}
		e.Color = RGBA{R: rgba[0], G: rgba[1], B: rgba[2], A: rgba[3]}
		if e.Flags&PaletteEntryHasName != 0 {
			if e.Name, err = c.String(); err != nil {
				return nil, err
			}
		}
		p.Entries = append(p.Entries, e)
	}
	return &p, nil
}

func (p *Palette) encode(w *iox.Writer, _ *types.Header) {
	if p.Last < p.First || int64(len(p.Entries)) != int64(p.Last)-int64(p.First)+1 {
		w.Fail(malformed("palette range %d..%d does not match %d entries", p.First, p.Last, len(p.Entries)))
		return
	}
	w.U32(p.Size)
	w.U32(p.First)
	w.U32(p.Last)
	w.Zero(8)
	for _, e := range p.Entries {
		w.U16(e.Flags)
		w.U8(e.Color.R)
		w.U8(e.Color.G)
		w.U8(e.Color.B)
		w.U8(e.Color.A)
		if e.Flags&PaletteEntryHasName != 0 {
			w.String(e.Name)
		}
	}
}
