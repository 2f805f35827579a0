// Package ipc carries decoded chunks between processes as length-prefixed
// msgpack frames.
//
// Each frame is a 4-byte big-endian payload length followed by a msgpack
// map with a "type" discriminant. Chunk frames hold the chunk's own binary
// encoding rather than a msgpack rendering of the record, so the receiver
// re-decodes it with the same decoder and gets an identical record.
package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/asechunk/chunk"
	"github.com/justapithecus/asechunk/iox"
	"github.com/justapithecus/asechunk/types"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (16 MiB), including length prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// Frame type discriminants.
const (
	ChunkFrameType = "chunk"
	EndFrameType   = "stream_end"
)

// FrameErrorKind classifies frame errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack or chunk decoding error.
	FrameErrorDecode
	// FrameErrorWrite indicates the frame could not be written.
	FrameErrorWrite
)

// FrameError represents a frame error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the byte stream can no longer be trusted.
// Partial and oversized frames lose framing; a decode error does not.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge || e.Kind == FrameErrorWrite
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// ChunkFrame carries one decoded chunk.
type ChunkFrame struct {
	Type            string `msgpack:"type"`
	ContractVersion string `msgpack:"contract_version"`
	ReaderID        string `msgpack:"reader_id"`
	// Seq numbers chunk frames from 1 within a stream.
	Seq    int64  `msgpack:"seq"`
	Offset int64  `msgpack:"offset"`
	Tag    uint16 `msgpack:"tag"`
	// Kind is the tag's record name, for consumers that only route.
	Kind string `msgpack:"kind"`
	Size uint32 `msgpack:"size"`
	// ColorDepth and HeaderFlags are the header context Raw decodes under.
	ColorDepth  uint16 `msgpack:"color_depth"`
	HeaderFlags uint32 `msgpack:"header_flags"`
	// Raw is the complete chunk, header included.
	Raw []byte `msgpack:"raw"`
}

// EndFrame closes a stream of chunk frames.
type EndFrame struct {
	Type            string `msgpack:"type"`
	ContractVersion string `msgpack:"contract_version"`
	ReaderID        string `msgpack:"reader_id"`
	Chunks          int64  `msgpack:"chunks"`
	Skipped         int64  `msgpack:"skipped"`
	// Error is empty when the stream ended cleanly.
	Error string `msgpack:"error,omitempty"`
}

// NewChunkFrame encodes env under h into a chunk frame.
func NewChunkFrame(readerID string, seq, offset int64, env *chunk.Envelope, h *types.Header) (*ChunkFrame, error) {
	var buf bytes.Buffer
	size, err := chunk.EncodeEnvelope(&buf, env, h)
	if err != nil {
		return nil, err
	}
	if size != env.Size {
		return nil, fmt.Errorf("chunk %s re-encodes to %d bytes, declared %d", env.Tag(), size, env.Size)
	}

	f := &ChunkFrame{
		Type:            ChunkFrameType,
		ContractVersion: types.Version,
		ReaderID:        readerID,
		Seq:             seq,
		Offset:          offset,
		Tag:             uint16(env.Tag()),
		Kind:            env.Tag().String(),
		Size:            size,
		Raw:             buf.Bytes(),
	}
	if h != nil {
		f.ColorDepth = h.ColorDepth
		f.HeaderFlags = h.Flags
	}
	return f, nil
}

// Header returns the header context the frame was encoded under.
func (f *ChunkFrame) Header() *types.Header {
	return &types.Header{ColorDepth: f.ColorDepth, Flags: f.HeaderFlags}
}

// Envelope decodes Raw. The result must consume Raw exactly and agree
// with the frame's tag and size.
func (f *ChunkFrame) Envelope() (*chunk.Envelope, error) {
	r := bytes.NewReader(f.Raw)
	env, err := chunk.Decode(iox.NewCursor(r), f.Header())
	if err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode chunk", Err: err}
	}
	if uint16(env.Tag()) != f.Tag || env.Size != f.Size {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("frame declares %#04x/%d, chunk is %#04x/%d", f.Tag, f.Size, uint16(env.Tag()), env.Size),
		}
	}
	if r.Len() != 0 {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("%d trailing bytes after chunk", r.Len()),
		}
	}
	return env, nil
}

// FrameDecoder decodes length-prefixed msgpack frames from a stream.
type FrameDecoder struct {
	reader io.Reader
}

// NewFrameDecoder creates a new frame decoder.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: r}
}

// ReadFrame reads a single frame from the stream.
// Returns the raw payload bytes (msgpack-encoded).
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(d.reader, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	_, err = io.ReadFull(d.reader, payload)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	return payload, nil
}

// frameTypeProbe is used to peek at the type field without full decode.
type frameTypeProbe struct {
	Type            string `msgpack:"type"`
	ContractVersion string `msgpack:"contract_version"`
}

// DecodeFrame decodes a payload and returns either a *ChunkFrame or an
// *EndFrame, discriminated by the type field. Frames written under another
// contract version are rejected.
func DecodeFrame(payload []byte) (any, error) {
	var probe frameTypeProbe
	if err := msgpack.Unmarshal(payload, &probe); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode frame type",
			Err:  err,
		}
	}

	if probe.ContractVersion != types.Version {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("contract version %q, want %q", probe.ContractVersion, types.Version),
		}
	}

	switch probe.Type {
	case ChunkFrameType:
		return DecodeChunkFrame(payload)
	case EndFrameType:
		return DecodeEndFrame(payload)
	default:
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("unknown frame type %q", probe.Type),
		}
	}
}

// DecodeChunkFrame decodes a payload as a ChunkFrame.
func DecodeChunkFrame(payload []byte) (*ChunkFrame, error) {
	var f ChunkFrame
	if err := msgpack.Unmarshal(payload, &f); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode chunk frame",
			Err:  err,
		}
	}
	return &f, nil
}

// DecodeEndFrame decodes a payload as an EndFrame.
func DecodeEndFrame(payload []byte) (*EndFrame, error) {
	var f EndFrame
	if err := msgpack.Unmarshal(payload, &f); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode end frame",
			Err:  err,
		}
	}
	return &f, nil
}

// FrameEncoder writes length-prefixed msgpack frames.
// Not safe for concurrent use.
type FrameEncoder struct {
	writer io.Writer
}

// NewFrameEncoder creates a new frame encoder.
func NewFrameEncoder(w io.Writer) *FrameEncoder {
	return &FrameEncoder{writer: w}
}

// WriteFrame marshals v and writes it as one frame.
func (e *FrameEncoder) WriteFrame(v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return &FrameError{Kind: FrameErrorDecode, Msg: "failed to encode frame", Err: err}
	}
	if len(payload) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}

	frame := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(frame[:LengthPrefixSize], uint32(len(payload)))
	copy(frame[LengthPrefixSize:], payload)
	if _, err := e.writer.Write(frame); err != nil {
		return &FrameError{Kind: FrameErrorWrite, Msg: "failed to write frame", Err: err}
	}
	return nil
}
