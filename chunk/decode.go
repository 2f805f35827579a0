package chunk

import (
	"fmt"
	"io"

	"github.com/justapithecus/asechunk/iox"
	"github.com/justapithecus/asechunk/types"
)

// Decode reads one chunk from c, which must sit at a chunk boundary.
// h supplies the file-level context some payloads need.
//
// On success the cursor sits just past the bytes the payload layout
// defines. Errors:
//   - *Error with Kind=ErrorStreamRead: the source failed or ended early.
//     If it ended before the first byte, Err is io.EOF (see IsCleanEOF).
//   - *Error with Kind=ErrorUnknownChunkType: tag outside the table.
//   - *Error with Kind=ErrorMalformed: bytes cannot match the layout.
//
// No partial envelope is ever returned.
func Decode(c *iox.Cursor, h *types.Header) (*Envelope, error) {
	size, tag, err := DecodeHeader(c)
	if err != nil {
		return nil, err
	}

	payload, err := DecodePayload(c, size, tag, h)
	if err != nil {
		return nil, err
	}

	return &Envelope{Size: size, Payload: payload}, nil
}

// DecodeHeader reads the 4-byte size and 2-byte tag of the next chunk.
func DecodeHeader(c *iox.Cursor) (uint32, Tag, error) {
	size, err := c.U32()
	if err != nil {
		return 0, 0, &Error{
			Kind: ErrorStreamRead,
			Msg:  "failed to read chunk size",
			Err:  err,
		}
	}

	raw, err := c.U16()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, 0, &Error{
			Kind: ErrorStreamRead,
			Size: size,
			Msg:  "failed to read chunk type",
			Err:  err,
		}
	}

	return size, Tag(raw), nil
}

// DecodePayload decodes the payload of a chunk whose header has already
// been read. size is the declared total size from that header; the cel and
// path decoders use it to bound their trailing data.
func DecodePayload(c *iox.Cursor, size uint32, tag Tag, h *types.Header) (Payload, error) {
	var (
		payload Payload
		err     error
	)

	switch tag {
	case TagOldPalette4:
		payload, err = decodeOldPalette4(c)
	case TagOldPalette11:
		payload, err = decodeOldPalette11(c)
	case TagLayer:
		payload, err = decodeLayer(c, h)
	case TagCel:
		payload, err = decodeCel(c, size, h)
	case TagCelExtra:
		payload, err = decodeCelExtra(c)
	case TagColorProfile:
		payload, err = decodeColorProfile(c)
	case TagMask:
		payload, err = decodeMask(c)
	case TagPath:
		payload, err = decodePath(c, size)
	case TagFrameTags:
		payload, err = decodeFrameTags(c)
	case TagPalette:
		payload, err = decodePalette(c)
	case TagUserData:
		payload, err = decodeUserData(c)
	case TagSlice:
		payload, err = decodeSlice(c)
	default:
		return nil, &Error{
			Kind: ErrorUnknownChunkType,
			Tag:  tag,
			Size: size,
			Msg:  fmt.Sprintf("unknown chunk type %#04x", uint16(tag)),
		}
	}

	if err != nil {
		return nil, wrapPayloadError(tag, size, err)
	}
	return payload, nil
}

// trailingLen returns the number of bytes left in a chunk of the declared
// size after HeaderSize+prefix bytes have been read.
func trailingLen(size uint32, prefix int) (int, error) {
	n := int64(size) - HeaderSize - int64(prefix)
	if n < 0 {
		return 0, malformed("declared size %d is smaller than the %d-byte fixed layout", size, HeaderSize+prefix)
	}
	return int(n), nil
}
