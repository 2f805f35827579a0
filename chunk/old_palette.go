package chunk

import (
	"github.com/justapithecus/asechunk/iox"
	"github.com/justapithecus/asechunk/types"
)

// PalettePacket is one run of colors in an old palette chunk.
type PalettePacket struct {
	// Skip is the number of palette entries to skip from the end of the
	// previous packet.
	Skip uint8
	// Colors holds the packet's colors. On disk a count of 0 means 256.
	Colors []RGB
}

// OldPalette4 is the 0x0004 palette chunk (channels 0-255), written by
// files predating the 0x2019 palette chunk.
type OldPalette4 struct {
	Packets []PalettePacket
}

// OldPalette11 is the 0x0011 palette chunk (channels 0-63).
type OldPalette11 struct {
	Packets []PalettePacket
}

// Tag implements Payload.
func (*OldPalette4) Tag() Tag { return TagOldPalette4 }

// Tag implements Payload.
func (*OldPalette11) Tag() Tag { return TagOldPalette11 }

// Expanded returns the packets with every 6-bit channel scaled to 8 bits.
func (p *OldPalette11) Expanded() []PalettePacket {
	out := make([]PalettePacket, len(p.Packets))
	for i, pkt := range p.Packets {
		colors := make([]RGB, len(pkt.Colors))
		for j, c := range pkt.Colors {
			colors[j] = RGB{R: scale6(c.R), G: scale6(c.G), B: scale6(c.B)}
		}
		out[i] = PalettePacket{Skip: pkt.Skip, Colors: colors}
	}
	return out
}

func scale6(v uint8) uint8 {
	v &= 0x3f
	return v<<2 | v>>4
}

func decodeOldPalette4(c *iox.Cursor) (*OldPalette4, error) {
	packets, err := readPalettePackets(c)
	if err != nil {
		return nil, err
	}
	return &OldPalette4{Packets: packets}, nil
}

func decodeOldPalette11(c *iox.Cursor) (*OldPalette11, error) {
	packets, err := readPalettePackets(c)
	if err != nil {
		return nil, err
	}
	return &OldPalette11{Packets: packets}, nil
}

func readPalettePackets(c *iox.Cursor) ([]PalettePacket, error) {
	count, err := c.U16()
	if err != nil {
		return nil, err
	}

	packets := make([]PalettePacket, 0, count)
	for i := 0; i < int(count); i++ {
		skip, err := c.U8()
		if err != nil {
			return nil, err
		}
		n, err := c.U8()
		if err != nil {
			return nil, err
		}
		colors := int(n)
		if colors == 0 {
			colors = 256
		}

		raw, err := c.Bytes(colors * 3)
		if err != nil {
			return nil, err
		}
		pkt := PalettePacket{Skip: skip, Colors: make([]RGB, colors)}
		for j := range pkt.Colors {
			pkt.Colors[j] = RGB{R: raw[j*3], G: raw[j*3+1], B: raw[j*3+2]}
		}
		packets = append(packets, pkt)
	}
	return packets, nil
}

func (p *OldPalette4) encode(w *iox.Writer, _ *types.Header) {
	writePalettePackets(w, p.Packets)
}

func (p *OldPalette11) encode(w *iox.Writer, _ *types.Header) {
	writePalettePackets(w, p.Packets)
}

func writePalettePackets(w *iox.Writer, packets []PalettePacket) {
	if len(packets) > 0xffff {
		w.Fail(malformed("%d palette packets exceed WORD count", len(packets)))
		return
	}
	w.U16(uint16(len(packets)))
	for _, pkt := range packets {
		if len(pkt.Colors) == 0 || len(pkt.Colors) > 256 {
			w.Fail(malformed("palette packet with %d colors", len(pkt.Colors)))
			return
		}
		w.U8(pkt.Skip)
		w.U8(uint8(len(pkt.Colors) % 256))
		for _, c := range pkt.Colors {
			w.U8(c.R)
			w.U8(c.G)
			w.U8(c.B)
		}
	}
}
