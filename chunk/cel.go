package chunk

import (
	"encoding/binary"
	"fmt"

	"github.com/justapithecus/asechunk/iox"
	"github.com/justapithecus/asechunk/types"
)

// Fixed layout sizes of the cel chunk, excluding the chunk header.
const (
	celPrefixSize        = 16
	celImagePrefixSize   = 4
	celTilemapPrefixSize = 32
)

// CelType selects the cel content layout.
type CelType uint16

// Cel types.
const (
	CelTypeRaw CelType = iota
	CelTypeLinked
	CelTypeCompressedImage
	CelTypeCompressedTilemap
)

func (t CelType) String() string {
	switch t {
	case CelTypeRaw:
		return "raw"
	case CelTypeLinked:
		return "linked"
	case CelTypeCompressedImage:
		return "compressed_image"
	case CelTypeCompressedTilemap:
		return "compressed_tilemap"
	default:
		return fmt.Sprintf("cel_type(%d)", uint16(t))
	}
}

// Cel is the 0x2005 cel chunk: the image of one layer in one frame.
type Cel struct {
	// LayerIndex refers to the layer's position in the first frame.
	LayerIndex uint16
	X          int16
	Y          int16
	Opacity    uint8
	// ZIndex shifts the cel relative to its layer order.
	ZIndex  int16
	Content CelContent
}

// Tag implements Payload.
func (*Cel) Tag() Tag { return TagCel }

// Type returns the content's cel type.
func (c *Cel) Type() CelType {
	if c.Content == nil {
		return CelTypeRaw
	}
	return c.Content.CelType()
}

// CelContent is implemented by RawImage, LinkedCel, CompressedImage and
// CompressedTilemap.
type CelContent interface {
	CelType() CelType

	encodeContent(w *iox.Writer)
}

// RawImage holds uncompressed pixels, row by row.
type RawImage struct {
	Width  uint16
	Height uint16
	// ColorDepth is copied from the header so Pixels can be interpreted
	// without it. Zero if the header depth was unknown.
	ColorDepth uint16
	Pixels     []byte
}

// LinkedCel reuses the cel at the same layer in another frame.
type LinkedCel struct {
	FramePosition uint16
}

// CompressedImage holds zlib-compressed pixels.
type CompressedImage struct {
	Width      uint16
	Height     uint16
	ColorDepth uint16
	Data       []byte
}

// CompressedTilemap holds zlib-compressed tile references.
type CompressedTilemap struct {
	// Width and Height are in tiles.
	Width            uint16
	Height           uint16
	BitsPerTile      uint16
	TileIDMask       uint32
	XFlipMask        uint32
	YFlipMask        uint32
	DiagonalFlipMask uint32
	Data             []byte
}

// CelType implements CelContent.
func (*RawImage) CelType() CelType { return CelTypeRaw }

// CelType implements CelContent.
func (*LinkedCel) CelType() CelType { return CelTypeLinked }

// CelType implements CelContent.
func (*CompressedImage) CelType() CelType { return CelTypeCompressedImage }

// CelType implements CelContent.
func (*CompressedTilemap) CelType() CelType { return CelTypeCompressedTilemap }

// maxBytesPerPixel bounds inflation when the color depth is unknown.
const maxBytesPerPixel = 4

// Decompress inflates the pixel data. When the color depth is known the
// result must hold exactly Width*Height pixels. Otherwise it may not
// exceed Width*Height pixels of the widest depth.
func (ci *CompressedImage) Decompress() ([]byte, error) {
	h := types.Header{ColorDepth: ci.ColorDepth}
	bpp, known := h.BytesPerPixel()
	if !known {
		bpp = maxBytesPerPixel
	}
	want := int(ci.Width) * int(ci.Height) * bpp

	pixels, err := Inflate(ci.Data, want)
	if err != nil {
		return nil, err
	}
	if known && len(pixels) != want {
		return nil, fmt.Errorf("inflated %d bytes, want %d for %dx%d at %d bpp",
			len(pixels), want, ci.Width, ci.Height, ci.ColorDepth)
	}
	return pixels, nil
}

// TileRef is one decoded tilemap entry.
type TileRef struct {
	ID           uint32
	XFlip        bool
	YFlip        bool
	DiagonalFlip bool
}

// Tiles inflates the tile data and splits every entry with the chunk's
// bitmasks. Entries are row-major, Width*Height of them.
func (tm *CompressedTilemap) Tiles() ([]TileRef, error) {
	var width int
	switch tm.BitsPerTile {
	case 8:
		width = 1
	case 16:
		width = 2
	case 32:
		width = 4
	default:
		return nil, fmt.Errorf("unsupported bits per tile %d", tm.BitsPerTile)
	}

	n := int(tm.Width) * int(tm.Height)
	raw, err := Inflate(tm.Data, n*width)
	if err != nil {
		return nil, err
	}
	if len(raw) != n*width {
		return nil, fmt.Errorf("inflated %d bytes, want %d for %dx%d tiles", len(raw), n*width, tm.Width, tm.Height)
	}

	tiles := make([]TileRef, n)
	for i := range tiles {
		var v uint32
		entry := raw[i*width : (i+1)*width]
		switch width {
		case 1:
			v = uint32(entry[0])
		case 2:
			v = uint32(binary.LittleEndian.Uint16(entry))
		default:
			v = binary.LittleEndian.Uint32(entry)
		}
		tiles[i] = TileRef{
			ID:           v & tm.TileIDMask,
			XFlip:        v&tm.XFlipMask != 0,
			YFlip:        v&tm.YFlipMask != 0,
			DiagonalFlip: v&tm.DiagonalFlipMask != 0,
		}
	}
	return tiles, nil
}

func decodeCel(c *iox.Cursor, size uint32, h *types.Header) (*Cel, error) {
	var cel Cel
	var err error

	if cel.LayerIndex, err = c.U16(); err != nil {
		return nil, err
	}
	if cel.X, err = c.I16(); err != nil {
		return nil, err
	}
	if cel.Y, err = c.I16(); err != nil {
		return nil, err
	}
	if cel.Opacity, err = c.U8(); err != nil {
		return nil, err
	}
	rawType, err := c.U16()
	if err != nil {
		return nil, err
	}
	if cel.ZIndex, err = c.I16(); err != nil {
		return nil, err
	}
	if err := c.Skip(5); err != nil {
		return nil, err
	}

	switch CelType(rawType) {
	case CelTypeRaw:
		cel.Content, err = decodeRawImage(c, size, h)
	case CelTypeLinked:
		cel.Content, err = decodeLinkedCel(c)
	case CelTypeCompressedImage:
		cel.Content, err = decodeCompressedImage(c, size, h)
	case CelTypeCompressedTilemap:
		cel.Content, err = decodeCompressedTilemap(c, size)
	default:
		return nil, malformed("unknown cel type %d", rawType)
	}
	if err != nil {
		return nil, err
	}

	return &cel, nil
}

func readImageSize(c *iox.Cursor) (uint16, uint16, error) {
	w, err := c.U16()
	if err != nil {
		return 0, 0, err
	}
	h, err := c.U16()
	if err != nil {
		return 0, 0, err
	}
	return w, h, nil
}

func decodeRawImage(c *iox.Cursor, size uint32, h *types.Header) (*RawImage, error) {
	img := &RawImage{}
	var err error
	if img.Width, img.Height, err = readImageSize(c); err != nil {
		return nil, err
	}

	var n int
	if bpp, ok := h.BytesPerPixel(); ok {
		img.ColorDepth = h.ColorDepth
		n = int(img.Width) * int(img.Height) * bpp
	} else {
		// Depth unknown: the declared size is the only bound left.
		if n, err = trailingLen(size, celPrefixSize+celImagePrefixSize); err != nil {
			return nil, err
		}
	}

	if img.Pixels, err = c.Bytes(n); err != nil {
		return nil, err
	}
	return img, nil
}

func decodeLinkedCel(c *iox.Cursor) (*LinkedCel, error) {
	pos, err := c.U16()
	if err != nil {
		return nil, err
	}
	return &LinkedCel{FramePosition: pos}, nil
}

func decodeCompressedImage(c *iox.Cursor, size uint32, h *types.Header) (*CompressedImage, error) {
	n, err := trailingLen(size, celPrefixSize+celImagePrefixSize)
	if err != nil {
		return nil, err
	}

	img := &CompressedImage{}
	if h != nil {
		img.ColorDepth = h.ColorDepth
	}
	if img.Width, img.Height, err = readImageSize(c); err != nil {
		return nil, err
	}
	if img.Data, err = c.Bytes(n); err != nil {
		return nil, err
	}
	return img, nil
}

func decodeCompressedTilemap(c *iox.Cursor, size uint32) (*CompressedTilemap, error) {
	n, err := trailingLen(size, celPrefixSize+celTilemapPrefixSize)
	if err != nil {
		return nil, err
	}

	tm := &CompressedTilemap{}
	if tm.Width, tm.Height, err = readImageSize(c); err != nil {
		return nil, err
	}
	if tm.BitsPerTile, err = c.U16(); err != nil {
		return nil, err
	}
	if tm.TileIDMask, err = c.U32(); err != nil {
		return nil, err
	}
	if tm.XFlipMask, err = c.U32(); err != nil {
		return nil, err
	}
	if tm.YFlipMask, err = c.U32(); err != nil {
		return nil, err
	}
	if tm.DiagonalFlipMask, err = c.U32(); err != nil {
		return nil, err
	}
	if err := c.Skip(10); err != nil {
		return nil, err
	}
	if tm.Data, err = c.Bytes(n); err != nil {
		return nil, err
	}
	return tm, nil
}

func (cel *Cel) encode(w *iox.Writer, _ *types.Header) {
	if cel.Content == nil {
		w.Fail(malformed("cel without content"))
		return
	}
	w.U16(cel.LayerIndex)
	w.I16(cel.X)
	w.I16(cel.Y)
	w.U8(cel.Opacity)
	w.U16(uint16(cel.Content.CelType()))
	w.I16(cel.ZIndex)
	w.Zero(5)
	cel.Content.encodeContent(w)
}

func (img *RawImage) encodeContent(w *iox.Writer) {
	w.U16(img.Width)
	w.U16(img.Height)
	w.Bytes(img.Pixels)
}

func (lc *LinkedCel) encodeContent(w *iox.Writer) {
	w.U16(lc.FramePosition)
}

func (img *CompressedImage) encodeContent(w *iox.Writer) {
	w.U16(img.Width)
	w.U16(img.Height)
	w.Bytes(img.Data)
}

func (tm *CompressedTilemap) encodeContent(w *iox.Writer) {
	w.U16(tm.Width)
	w.U16(tm.Height)
	w.U16(tm.BitsPerTile)
	w.U32(tm.TileIDMask)
	w.U32(tm.XFlipMask)
	w.U32(tm.YFlipMask)
	w.U32(tm.DiagonalFlipMask)
	w.Zero(10)
	w.Bytes(tm.Data)
}
