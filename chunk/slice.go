package chunk

import (
	"github.com/justapithecus/asechunk/iox"
	"github.com/justapithecus/asechunk/types"
)

// Slice flag bits.
const (
	SliceNinePatch uint32 = 1 << iota
	SlicePivot
)

// SliceKey is the slice's shape from Frame onward.
type SliceKey struct {
	Frame  uint32
	X      int32
	Y      int32
	Width  uint32
	Height uint32
	// Center is the 9-patch center, relative to the slice bounds.
	// Present iff the slice has SliceNinePatch.
	Center *SliceCenter
	// Pivot is relative to the slice origin. Present iff SlicePivot.
	Pivot *Point
}

// SliceCenter is a 9-patch center rectangle.
type SliceCenter struct {
	X      int32
	Y      int32
	Width  uint32
	Height uint32
}

// Slice is the 0x2022 slice chunk.
type Slice struct {
	Flags uint32
	Name  string
	Keys  []SliceKey
}

// Tag implements Payload.
func (*Slice) Tag() Tag { return TagSlice }

func decodeSlice(c *iox.Cursor) (*Slice, error) {
	var s Slice

	count, err := c.U32()
	if err != nil {
		return nil, err
	}
	if s.Flags, err = c.U32(); err != nil {
		return nil, err
	}
	if err := c.Skip(4); err != nil {
		return nil, err
	}
	if s.Name, err = c.String(); err != nil {
		return nil, err
	}

	for i := uint32(0); i < count; i++ {
		key, err := decodeSliceKey(c, s.Flags)
		if err != nil {
			return nil, err
		}
		s.Keys = append(s.Keys, key)
	}
	return &s, nil
}

func decodeSliceKey(c *iox.Cursor, flags uint32) (SliceKey, error) {
	var k SliceKey
	var err error

	if k.Frame, err = c.U32(); err != nil {
		return k, err
	}
	if k.X, err = c.I32(); err != nil {
		return k, err
	}
	if k.Y, err = c.I32(); err != nil {
		return k, err
	}
	if k.Width, err = c.U32(); err != nil {
		return k, err
	}
	if k.Height, err = c.U32(); err != nil {
		return k, err
	}

	if flags&SliceNinePatch != 0 {
		var center SliceCenter
		if center.X, err = c.I32(); err != nil {
			return k, err
		}
		if center.Y, err = c.I32(); err != nil {
			return k, err
		}
		if center.Width, err = c.U32(); err != nil {
			return k, err
		}
		if center.Height, err = c.U32(); err != nil {
			return k, err
		}
		k.Center = &center
	}

	if flags&SlicePivot != 0 {
		var pivot Point
		if pivot.X, err = c.I32(); err != nil {
			return k, err
		}
		if pivot.Y, err = c.I32(); err != nil {
			return k, err
		}
		k.Pivot = &pivot
	}
	return k, nil
}

func (s *Slice) encode(w *iox.Writer, _ *types.Header) {
	w.U32(uint32(len(s.Keys)))
	w.U32(s.Flags)
	w.Zero(4)
	w.String(s.Name)
	for _, k := range s.Keys {
		w.U32(k.Frame)
		w.I32(k.X)
		w.I32(k.Y)
		w.U32(k.Width)
		w.U32(k.Height)
		if s.Flags&SliceNinePatch != 0 {
			if k.Center == nil {
				w.Fail(malformed("9-patch slice key for frame %d has no center", k.Frame))
				return
			}
			w.I32(k.Center.X)
			w.I32(k.Center.Y)
			w.U32(k.Center.Width)
			w.U32(k.Center.Height)
		}
		if s.Flags&SlicePivot != 0 {
			if k.Pivot == nil {
				w.Fail(malformed("pivot slice key for frame %d has no pivot", k.Frame))
				return
			}
			w.I32(k.Pivot.X)
			w.I32(k.Pivot.Y)
		}
	}
}
