package chunk

import (
	"github.com/google/uuid"

	"github.com/justapithecus/asechunk/iox"
	"github.com/justapithecus/asechunk/types"
)

// LayerFlags are the layer chunk flag bits.
type LayerFlags uint16

// Layer flag bits.
const (
	LayerVisible LayerFlags = 1 << iota
	LayerEditable
	LayerLockMovement
	LayerBackground
	LayerPreferLinkedCels
	LayerCollapsed
	LayerReference
)

// LayerType is the kind of layer.
type LayerType uint16

// Layer types.
const (
	LayerTypeNormal LayerType = iota
	LayerTypeGroup
	LayerTypeTilemap
)

// BlendMode is a layer blend mode.
type BlendMode uint16

// Blend modes in on-disk order.
const (
	BlendNormal BlendMode = iota
	BlendMultiply
	BlendScreen
	BlendOverlay
	BlendDarken
	BlendLighten
	BlendColorDodge
	BlendColorBurn
	BlendHardLight
	BlendSoftLight
	BlendDifference
	BlendExclusion
	BlendHue
	BlendSaturation
	BlendColor
	BlendLuminosity
	BlendAddition
	BlendSubtract
	BlendDivide
)

// Layer is the 0x2004 layer chunk. Layers appear in the first frame in
// stacking order; their position there is the index cels refer to.
type Layer struct {
	Flags      LayerFlags
	Type       LayerType
	ChildLevel uint16
	// DefaultWidth and DefaultHeight are ignored by readers but preserved.
	DefaultWidth  uint16
	DefaultHeight uint16
	BlendMode     BlendMode
	// Opacity is only meaningful when the header marks it valid.
	Opacity uint8
	Name    string
	// TilesetIndex is set for tilemap layers only.
	TilesetIndex uint32
	// UUID is set only when the header declares layer UUIDs.
	UUID uuid.UUID
}

// Tag implements Payload.
func (*Layer) Tag() Tag { return TagLayer }

// HasFlag reports whether f is set.
func (l *Layer) HasFlag(f LayerFlags) bool {
	return l.Flags&f != 0
}

func decodeLayer(c *iox.Cursor, h *types.Header) (*Layer, error) {
	var l Layer

	flags, err := c.U16()
	if err != nil {
		return nil, err
	}
	l.Flags = LayerFlags(flags)

	typ, err := c.U16()
	if err != nil {
		return nil, err
	}
	l.Type = LayerType(typ)

	if l.ChildLevel, err = c.U16(); err != nil {
		return nil, err
	}
	if l.DefaultWidth, err = c.U16(); err != nil {
		return nil, err
	}
	if l.DefaultHeight, err = c.U16(); err != nil {
		return nil, err
	}

	blend, err := c.U16()
	if err != nil {
		return nil, err
	}
	l.BlendMode = BlendMode(blend)

	if l.Opacity, err = c.U8(); err != nil {
		return nil, err
	}
	if err := c.Skip(3); err != nil {
		return nil, err
	}
	if l.Name, err = c.String(); err != nil {
		return nil, err
	}

	if l.Type == LayerTypeTilemap {
		if l.TilesetIndex, err = c.U32(); err != nil {
			return nil, err
		}
	}

	if h.HasFlag(types.HeaderFlagLayerUUID) {
		raw, err := c.Bytes(16)
		if err != nil {
			return nil, err
		}
		if l.UUID, err = uuid.FromBytes(raw); err != nil {
			return nil, malformed("layer uuid: %v", err)
		}
	}

	return &l, nil
}

func (l *Layer) encode(w *iox.Writer, h *types.Header) {
	w.U16(uint16(l.Flags))
	w.U16(uint16(l.Type))
	w.U16(l.ChildLevel)
	w.U16(l.DefaultWidth)
	w.U16(l.DefaultHeight)
	w.U16(uint16(l.BlendMode))
	w.U8(l.Opacity)
	w.Zero(3)
	w.String(l.Name)
	if l.Type == LayerTypeTilemap {
		w.U32(l.TilesetIndex)
	}
	if h.HasFlag(types.HeaderFlagLayerUUID) {
		w.Bytes(l.UUID[:])
	}
}
