package chunk

import (
	"bytes"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/justapithecus/asechunk/iox"
	"github.com/justapithecus/asechunk/types"
)

// User data flag bits.
const (
	UserDataHasText uint32 = 1 << iota
	UserDataHasColor
	UserDataHasProperties
)

// UserData is the 0x2020 user data chunk. It attaches to the object that
// precedes it in the stream (layer, cel, slice, tag, palette entry...);
// the attachment is resolved by the caller.
type UserData struct {
	Flags uint32
	Text  string
	Color RGBA
	// Properties is set iff Flags has UserDataHasProperties.
	Properties []PropertiesMap
}

// Tag implements Payload.
func (*UserData) Tag() Tag { return TagUserData }

// MaxPropertyDepth is how many map and vector values may nest inside one
// another in a properties block.
const MaxPropertyDepth = 64

// nestedPropertyError reports a container value nested past MaxPropertyDepth.
func nestedPropertyError() *Error {
	return malformed("properties nested deeper than %d", MaxPropertyDepth)
}

// PropertiesMap is a keyed set of properties. Key 0 holds user
// properties; other keys name an extension entry of the external files
// chunk.
type PropertiesMap struct {
	Key        uint32
	Properties []Property
}

// Property is one named, typed value.
type Property struct {
	Name  string
	Value PropertyValue
}

// PropertyType is the wire type of a property value.
type PropertyType uint16

// Property value types.
const (
	PropertyBool PropertyType = iota + 1
	PropertyInt8
	PropertyUint8
	PropertyInt16
	PropertyUint16
	PropertyInt32
	PropertyUint32
	PropertyInt64
	PropertyUint64
	PropertyFixed
	PropertyFloat
	PropertyDouble
	PropertyString
	PropertyPoint
	PropertySize
	PropertyRect
	PropertyVector
	PropertyMap
	PropertyUUID
)

// PropertyValue is a typed property value. Value holds the Go type that
// matches Type:
//
//	PropertyBool           bool
//	PropertyInt8..Uint64   int8, uint8, int16, uint16, int32, uint32, int64, uint64
//	PropertyFixed          Fixed
//	PropertyFloat/Double   float32, float64
//	PropertyString         string
//	PropertyPoint/Size     Point, Size
//	PropertyRect           Rect
//	PropertyVector         Vector
//	PropertyMap            []Property
//	PropertyUUID           uuid.UUID
type PropertyValue struct {
	Type  PropertyType
	Value any
}

// Vector is a list of property values. A zero ElemType means every item
// carries its own type on disk.
type Vector struct {
	ElemType PropertyType
	Items    []PropertyValue
}

func decodeUserData(c *iox.Cursor) (*UserData, error) {
	var ud UserData
	var err error

	if ud.Flags, err = c.U32(); err != nil {
		return nil, err
	}
	if ud.Flags&UserDataHasText != 0 {
		if ud.Text, err = c.String(); err != nil {
			return nil, err
		}
	}
	if ud.Flags&UserDataHasColor != 0 {
		rgba, err := c.Bytes(4)
		if err != nil {
			return nil, err
		}
		ud.Color = RGBA{R: rgba[0], G: rgba[1], B: rgba[2], A: rgba[3]}
	}
	if ud.Flags&UserDataHasProperties != 0 {
		if ud.Properties, err = decodePropertiesMaps(c); err != nil {
			return nil, err
		}
	}
	return &ud, nil
}

func decodePropertiesMaps(c *iox.Cursor) ([]PropertiesMap, error) {
	// The block size is recomputed on encode; decoding walks the structure.
	if _, err := c.U32(); err != nil {
		return nil, err
	}
	count, err := c.U32()
	if err != nil {
		return nil, err
	}

	var maps []PropertiesMap
	for i := uint32(0); i < count; i++ {
		var m PropertiesMap
		if m.Key, err = c.U32(); err != nil {
			return nil, err
		}
		if m.Properties, err = decodeProperties(c, 0); err != nil {
			return nil, err
		}
		maps = append(maps, m)
	}
	return maps, nil
}

// decodeProperties reads a property list whose values sit depth
// containers deep.
func decodeProperties(c *iox.Cursor, depth int) ([]Property, error) {
	count, err := c.U32()
	if err != nil {
		return nil, err
	}

	props := []Property{}
	for i := uint32(0); i < count; i++ {
		var p Property
		if p.Name, err = c.String(); err != nil {
			return nil, err
		}
		typ, err := c.U16()
		if err != nil {
			return nil, err
		}
		if p.Value, err = decodePropertyValue(c, PropertyType(typ), depth); err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, nil
}

func decodePropertyValue(c *iox.Cursor, typ PropertyType, depth int) (PropertyValue, error) {
	v := PropertyValue{Type: typ}
	var err error

	switch typ {
	case PropertyBool:
		var b uint8
		b, err = c.U8()
		v.Value = b != 0
	case PropertyInt8:
		v.Value, err = c.I8()
	case PropertyUint8:
		v.Value, err = c.U8()
	case PropertyInt16:
		v.Value, err = c.I16()
	case PropertyUint16:
		v.Value, err = c.U16()
	case PropertyInt32:
		v.Value, err = c.I32()
	case PropertyUint32:
		v.Value, err = c.U32()
	case PropertyInt64:
		v.Value, err = c.I64()
	case PropertyUint64:
		v.Value, err = c.U64()
	case PropertyFixed:
		var f int32
		f, err = c.I32()
		v.Value = Fixed(f)
	case PropertyFloat:
		v.Value, err = c.F32()
	case PropertyDouble:
		v.Value, err = c.F64()
	case PropertyString:
		v.Value, err = c.String()
	case PropertyPoint:
		v.Value, err = decodePoint(c)
	case PropertySize:
		v.Value, err = decodeSize(c)
	case PropertyRect:
		var r Rect
		if r.Origin, err = decodePoint(c); err == nil {
			r.Size, err = decodeSize(c)
		}
		v.Value = r
	case PropertyVector, PropertyMap:
		if depth >= MaxPropertyDepth {
			return v, nestedPropertyError()
		}
		if typ == PropertyVector {
			v.Value, err = decodeVector(c, depth+1)
		} else {
			v.Value, err = decodeProperties(c, depth+1)
		}
	case PropertyUUID:
		var raw []byte
		if raw, err = c.Bytes(16); err == nil {
			v.Value, err = uuid.FromBytes(raw)
		}
	default:
		return v, malformed("unknown property type %#04x", uint16(typ))
	}

	if err != nil {
		return v, err
	}
	return v, nil
}

func decodeVector(c *iox.Cursor, depth int) (Vector, error) {
	var vec Vector

	count, err := c.U32()
	if err != nil {
		return vec, err
	}
	elem, err := c.U16()
	if err != nil {
		return vec, err
	}
	vec.ElemType = PropertyType(elem)

	vec.Items = []PropertyValue{}
	for i := uint32(0); i < count; i++ {
		typ := vec.ElemType
		if typ == 0 {
			raw, err := c.U16()
			if err != nil {
				return vec, err
			}
			typ = PropertyType(raw)
		}
		item, err := decodePropertyValue(c, typ, depth)
		if err != nil {
			return vec, err
		}
		vec.Items = append(vec.Items, item)
	}
	return vec, nil
}

func decodePoint(c *iox.Cursor) (Point, error) {
	var p Point
	var err error
	if p.X, err = c.I32(); err != nil {
		return p, err
	}
	p.Y, err = c.I32()
	return p, err
}

func decodeSize(c *iox.Cursor) (Size, error) {
	var s Size
	var err error
	if s.Width, err = c.I32(); err != nil {
		return s, err
	}
	s.Height, err = c.I32()
	return s, err
}

func (ud *UserData) encode(w *iox.Writer, _ *types.Header) {
	w.U32(ud.Flags)
	if ud.Flags&UserDataHasText != 0 {
		w.String(ud.Text)
	}
	if ud.Flags&UserDataHasColor != 0 {
		w.U8(ud.Color.R)
		w.U8(ud.Color.G)
		w.U8(ud.Color.B)
		w.U8(ud.Color.A)
	}
	if ud.Flags&UserDataHasProperties != 0 {
		encodePropertiesMaps(w, ud.Properties)
	}
}

func encodePropertiesMaps(w *iox.Writer, maps []PropertiesMap) {
	var body bytes.Buffer
	bw := iox.NewWriter(&body)
	for _, m := range maps {
		bw.U32(m.Key)
		encodeProperties(bw, m.Properties, 0)
	}
	if err := bw.Err(); err != nil {
		w.Fail(err)
		return
	}

	// The block size counts itself and the map count.
	size := int64(body.Len()) + 8
	if size > math.MaxUint32 {
		w.Fail(malformed("properties block of %d bytes exceeds DWORD size", size))
		return
	}
	w.U32(uint32(size))
	w.U32(uint32(len(maps)))
	w.Bytes(body.Bytes())
}

func encodeProperties(w *iox.Writer, props []Property, depth int) {
	w.U32(uint32(len(props)))
	for _, p := range props {
		w.String(p.Name)
		w.U16(uint16(p.Value.Type))
		encodePropertyValue(w, p.Value, depth)
	}
}

func encodePropertyValue(w *iox.Writer, v PropertyValue, depth int) {
	if (v.Type == PropertyVector || v.Type == PropertyMap) && depth >= MaxPropertyDepth {
		w.Fail(nestedPropertyError())
		return
	}

	ok := true
	switch v.Type {
	case PropertyBool:
		var b bool
		if b, ok = v.Value.(bool); ok {
			if b {
				w.U8(1)
			} else {
				w.U8(0)
			}
		}
	case PropertyInt8:
		var x int8
		if x, ok = v.Value.(int8); ok {
			w.I8(x)
		}
	case PropertyUint8:
		var x uint8
		if x, ok = v.Value.(uint8); ok {
			w.U8(x)
		}
	case PropertyInt16:
		var x int16
		if x, ok = v.Value.(int16); ok {
			w.I16(x)
		}
	case PropertyUint16:
		var x uint16
		if x, ok = v.Value.(uint16); ok {
			w.U16(x)
		}
	case PropertyInt32:
		var x int32
		if x, ok = v.Value.(int32); ok {
			w.I32(x)
		}
	case PropertyUint32:
		var x uint32
		if x, ok = v.Value.(uint32); ok {
			w.U32(x)
		}
	case PropertyInt64:
		var x int64
		if x, ok = v.Value.(int64); ok {
			w.I64(x)
		}
	case PropertyUint64:
		var x uint64
		if x, ok = v.Value.(uint64); ok {
			w.U64(x)
		}
	case PropertyFixed:
		var x Fixed
		if x, ok = v.Value.(Fixed); ok {
			w.I32(int32(x))
		}
	case PropertyFloat:
		var x float32
		if x, ok = v.Value.(float32); ok {
			w.F32(x)
		}
	case PropertyDouble:
		var x float64
		if x, ok = v.Value.(float64); ok {
			w.F64(x)
		}
	case PropertyString:
		var x string
		if x, ok = v.Value.(string); ok {
			w.String(x)
		}
	case PropertyPoint:
		var x Point
		if x, ok = v.Value.(Point); ok {
			w.I32(x.X)
			w.I32(x.Y)
		}
	case PropertySize:
		var x Size
		if x, ok = v.Value.(Size); ok {
			w.I32(x.Width)
			w.I32(x.Height)
		}
	case PropertyRect:
		var x Rect
		if x, ok = v.Value.(Rect); ok {
			w.I32(x.Origin.X)
			w.I32(x.Origin.Y)
			w.I32(x.Size.Width)
			w.I32(x.Size.Height)
		}
	case PropertyVector:
		var x Vector
		if x, ok = v.Value.(Vector); ok {
			w.U32(uint32(len(x.Items)))
			w.U16(uint16(x.ElemType))
			for _, item := range x.Items {
				if x.ElemType == 0 {
					w.U16(uint16(item.Type))
				} else if item.Type != x.ElemType {
					w.Fail(malformed("vector of %#04x holds a %#04x item", uint16(x.ElemType), uint16(item.Type)))
					return
				}
				encodePropertyValue(w, item, depth+1)
			}
		}
	case PropertyMap:
		var x []Property
		if x, ok = v.Value.([]Property); ok {
			encodeProperties(w, x, depth+1)
		}
	case PropertyUUID:
		var x uuid.UUID
		if x, ok = v.Value.(uuid.UUID); ok {
			w.Bytes(x[:])
		}
	default:
		w.Fail(malformed("unknown property type %#04x", uint16(v.Type)))
		return
	}

	if !ok {
		w.Fail(fmt.Errorf("property of type %#04x holds %T", uint16(v.Type), v.Value))
	}
}
