package chunk

import (
	"github.com/justapithecus/asechunk/iox"
	"github.com/justapithecus/asechunk/types"
)

// LoopDirection is a tag's animation direction.
type LoopDirection uint8

// Loop directions.
const (
	LoopForward LoopDirection = iota
	LoopReverse
	LoopPingPong
	LoopPingPongReverse
)

// FrameTag names a frame range.
type FrameTag struct {
	From      uint16
	To        uint16
	Direction LoopDirection
	// Repeat is the play count; 0 means unspecified (loop in the editor).
	Repeat uint16
	// Color is the deprecated tag color; user data chunks supersede it.
	Color RGB
	Name  string
}

// FrameTags is the 0x2018 tags chunk.
type FrameTags struct {
	Tags []FrameTag
}

// Tag implements Payload.
func (*FrameTags) Tag() Tag { return TagFrameTags }

func decodeFrameTags(c *iox.Cursor) (*FrameTags, error) {
	count, err := c.U16()
	if err != nil {
		return nil, err
	}
	if err := c.Skip(8); err != nil {
		return nil, err
	}

	ft := &FrameTags{Tags: make([]FrameTag, 0, count)}
	for i := 0; i < int(count); i++ {
		var tag FrameTag
		if tag.From, err = c.U16(); err != nil {
			return nil, err
		}
		if tag.To, err = c.U16(); err != nil {
			return nil, err
		}
		dir, err := c.U8()
		if err != nil {
			return nil, err
		}
		tag.Direction = LoopDirection(dir)
		if tag.Repeat, err = c.U16(); err != nil {
			return nil, err
		}
		if err := c.Skip(6); err != nil {
			return nil, err
		}
		rgb, err := c.Bytes(3)
		if err != nil {
			return nil, err
		}
		tag.Color = RGB{R: rgb[0], G: rgb[1], B: rgb[2]}
		// extra byte, always zero
		if err := c.Skip(1); err != nil {
			return nil, err
		}
		if tag.Name, err = c.String(); err != nil {
			return nil, err
		}
		ft.Tags = append(ft.Tags, tag)
	}
	return ft, nil
}

func (ft *FrameTags) encode(w *iox.Writer, _ *types.Header) {
	if len(ft.Tags) > 0xffff {
		w.Fail(malformed("%d tags exceed WORD count", len(ft.Tags)))
		return
	}
	w.U16(uint16(len(ft.Tags)))
	w.Zero(8)
	for _, tag := range ft.Tags {
		w.U16(tag.From)
		w.U16(tag.To)
		w.U8(uint8(tag.Direction))
		w.U16(tag.Repeat)
		w.Zero(6)
		w.U8(tag.Color.R)
		w.U8(tag.Color.G)
		w.U8(tag.Color.B)
		w.Zero(1)
		w.String(tag.Name)
	}
}
