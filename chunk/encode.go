package chunk

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/justapithecus/asechunk/iox"
	"github.com/justapithecus/asechunk/types"
)

// Encode writes p as a complete chunk (size, tag, payload) and returns the
// size written. It is the inverse of Decode: for any chunk Decode accepts,
// encoding the result with the same header reproduces the original bytes,
// except that reserved areas are always written as zero.
func Encode(w io.Writer, p Payload, h *types.Header) (uint32, error) {
	if p == nil {
		return 0, errors.New("encode: nil payload")
	}

	var body bytes.Buffer
	bw := iox.NewWriter(&body)
	p.encode(bw, h)
	if err := bw.Err(); err != nil {
		return 0, fmt.Errorf("encode %s: %w", p.Tag(), err)
	}

	total := int64(HeaderSize) + int64(body.Len())
	if total > math.MaxUint32 {
		return 0, fmt.Errorf("encode %s: chunk of %d bytes exceeds DWORD size", p.Tag(), total)
	}

	out := iox.NewWriter(w)
	out.U32(uint32(total))
	out.U16(uint16(p.Tag()))
	out.Bytes(body.Bytes())
	if err := out.Err(); err != nil {
		return 0, fmt.Errorf("write %s: %w", p.Tag(), err)
	}
	return uint32(total), nil
}

// EncodeEnvelope is Encode for a decoded envelope.
func EncodeEnvelope(w io.Writer, env *Envelope, h *types.Header) (uint32, error) {
	if env == nil {
		return 0, errors.New("encode: nil envelope")
	}
	return Encode(w, env.Payload, h)
}
