// Package chunk decodes the chunk records of the Aseprite file format.
//
// A chunk is a tagged, length-prefixed little-endian record inside a
// frame:
//
//	offset  size      field
//	0       4         total chunk size, header included
//	4       2         chunk type tag
//	6       size-6    type-specific payload
//
// Decode reads one chunk from a cursor positioned at a chunk boundary and
// returns an Envelope whose Payload is exactly one of the twelve record
// types in this package. The set of records is closed: Payload carries an
// unexported method so no other package can add a variant.
//
// Decoding is synchronous and all-or-nothing per chunk. Cross-chunk
// references (a cel's layer index, a user data chunk's owner) are stored
// as raw integers and never resolved here.
package chunk

import (
	"fmt"

	"github.com/justapithecus/asechunk/iox"
	"github.com/justapithecus/asechunk/types"
)

// HeaderSize is the size of the common chunk header (size + tag).
const HeaderSize = 6

// Tag identifies a chunk's payload layout.
type Tag uint16

// Known chunk tags.
const (
	TagOldPalette4  Tag = 0x0004
	TagOldPalette11 Tag = 0x0011
	TagLayer        Tag = 0x2004
	TagCel          Tag = 0x2005
	TagCelExtra     Tag = 0x2006
	TagColorProfile Tag = 0x2007
	TagMask         Tag = 0x2016
	TagPath         Tag = 0x2017
	TagFrameTags    Tag = 0x2018
	TagPalette      Tag = 0x2019
	TagUserData     Tag = 0x2020
	TagSlice        Tag = 0x2022
)

var tagNames = map[Tag]string{
	TagOldPalette4:  "old_palette_4",
	TagOldPalette11: "old_palette_11",
	TagLayer:        "layer",
	TagCel:          "cel",
	TagCelExtra:     "cel_extra",
	TagColorProfile: "color_profile",
	TagMask:         "mask",
	TagPath:         "path",
	TagFrameTags:    "frame_tags",
	TagPalette:      "palette",
	TagUserData:     "user_data",
	TagSlice:        "slice",
}

// Tags returns every known tag in dispatch-table order.
func Tags() []Tag {
	return []Tag{
		TagOldPalette4, TagOldPalette11, TagLayer, TagCel, TagCelExtra, TagColorProfile,
		TagMask, TagPath, TagFrameTags, TagPalette, TagUserData, TagSlice,
	}
}

// Known reports whether t is in the dispatch table.
func (t Tag) Known() bool {
	_, ok := tagNames[t]
	return ok
}

// String returns the record name for known tags and the hex code otherwise.
func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("%#04x", uint16(t))
}

// Envelope pairs a chunk's declared size with its decoded payload.
type Envelope struct {
	// Size is the declared total chunk length, header included, exactly as
	// read from the stream. It is not re-checked against bytes consumed.
	Size uint32
	// Payload is the decoded record.
	Payload Payload
}

// Tag returns the payload's tag.
func (e *Envelope) Tag() Tag {
	return e.Payload.Tag()
}

// Payload is implemented by exactly the twelve chunk record types.
type Payload interface {
	// Tag returns the chunk tag the record is encoded under.
	Tag() Tag

	encode(w *iox.Writer, h *types.Header)
}

// Fixed is a 16.16 fixed point number.
type Fixed int32

// Float64 converts f to floating point.
func (f Fixed) Float64() float64 {
	return float64(f) / 65536
}

// FixedFromFloat converts v to 16.16 fixed point, truncating.
func FixedFromFloat(v float64) Fixed {
	return Fixed(v * 65536)
}

// Point is a LONG coordinate pair.
type Point struct {
	X int32
	Y int32
}

// Size is a LONG width/height pair.
type Size struct {
	Width  int32
	Height int32
}

// Rect is an origin and size.
type Rect struct {
	Origin Point
	Size   Size
}

// RGB is a color without alpha.
type RGB struct {
	R, G, B uint8
}

// RGBA is a color with alpha.
type RGBA struct {
	R, G, B, A uint8
}
