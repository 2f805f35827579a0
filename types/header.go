// Package types defines the file-level context shared by chunk decoders.
//
//nolint:revive // types is a common Go package naming convention
package types

import "fmt"

// Color depths (bits per pixel) a sprite header may declare.
const (
	ColorDepthIndexed   uint16 = 8
	ColorDepthGrayscale uint16 = 16
	ColorDepthRGBA      uint16 = 32
)

// HeaderFlag is a bit of the sprite header flags field.
type HeaderFlag uint32

// Header flag bits.
const (
	// HeaderFlagLayerOpacity marks layer opacity as valid.
	HeaderFlagLayerOpacity HeaderFlag = 1 << iota
	// HeaderFlagGroupOpacity marks group opacity and blend mode as valid.
	HeaderFlagGroupOpacity
	// HeaderFlagLayerUUID means every layer chunk carries a trailing UUID.
	HeaderFlagLayerUUID
)

// Header is the decoded sprite header context some chunk payloads depend on.
// It is read once by the caller and passed explicitly to every decode.
type Header struct {
	// ColorDepth is the pixel depth in bits: 8, 16 or 32.
	ColorDepth uint16
	// Flags holds the raw header flags.
	Flags uint32
}

// BytesPerPixel returns the pixel size for the header's color depth.
// Reports false for a depth the format does not define.
func (h *Header) BytesPerPixel() (int, bool) {
	if h == nil {
		return 0, false
	}
	switch h.ColorDepth {
	case ColorDepthIndexed:
		return 1, true
	case ColorDepthGrayscale:
		return 2, true
	case ColorDepthRGBA:
		return 4, true
	default:
		return 0, false
	}
}

// HasFlag reports whether flag is set. A nil header has no flags.
func (h *Header) HasFlag(flag HeaderFlag) bool {
	if h == nil {
		return false
	}
	return HeaderFlag(h.Flags)&flag != 0
}

// ColorMode names the color depth for logs.
func (h *Header) ColorMode() string {
	if h == nil {
		return "unknown"
	}
	switch h.ColorDepth {
	case ColorDepthIndexed:
		return "indexed"
	case ColorDepthGrayscale:
		return "grayscale"
	case ColorDepthRGBA:
		return "rgba"
	default:
		return fmt.Sprintf("unknown(%d)", h.ColorDepth)
	}
}
