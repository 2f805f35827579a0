package chunk

import (
	"errors"
	"fmt"
	"io"
)

// ErrorKind classifies chunk decoding errors.
type ErrorKind int

const (
	// ErrorStreamRead indicates the byte source failed or ended early.
	ErrorStreamRead ErrorKind = iota
	// ErrorUnknownChunkType indicates a tag outside the dispatch table.
	ErrorUnknownChunkType
	// ErrorMalformed indicates bytes that cannot match the tag's layout,
	// such as a declared size smaller than the fixed prefix.
	ErrorMalformed
	// ErrorSizeMismatch indicates the payload consumed a different number
	// of bytes than the chunk declared. Raised by callers that verify.
	ErrorSizeMismatch
	// ErrorTooLarge indicates a declared size above the caller's limit.
	ErrorTooLarge
)

var errorKindNames = map[ErrorKind]string{
	ErrorStreamRead:       "stream_read",
	ErrorUnknownChunkType: "unknown_chunk_type",
	ErrorMalformed:        "malformed",
	ErrorSizeMismatch:     "size_mismatch",
	ErrorTooLarge:         "too_large",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("error_kind(%d)", int(k))
}

// Error represents a chunk decoding error.
type Error struct {
	Kind ErrorKind
	// Tag is the chunk tag, zero if it was never read.
	Tag Tag
	// Size is the declared chunk size, zero if it was never read.
	Size uint32
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	prefix := "chunk"
	if e.Tag != 0 {
		prefix = "chunk " + e.Tag.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a chunk error anywhere in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var chunkErr *Error
	if errors.As(err, &chunkErr) {
		return chunkErr.Kind, true
	}
	return 0, false
}

// IsStreamRead returns true if err is a stream read failure.
func IsStreamRead(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == ErrorStreamRead
}

// IsUnknownChunkType returns true if err is an unknown chunk type.
func IsUnknownChunkType(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == ErrorUnknownChunkType
}

// DeclaredSize returns the declared chunk size carried by err, if the
// size field was read before the failure.
func DeclaredSize(err error) (uint32, bool) {
	var chunkErr *Error
	if errors.As(err, &chunkErr) && chunkErr.Size != 0 {
		return chunkErr.Size, true
	}
	return 0, false
}

// IsCleanEOF returns true if err is a stream read failure that happened
// before any byte of a chunk was read: the stream ended on a boundary.
func IsCleanEOF(err error) bool {
	var chunkErr *Error
	if !errors.As(err, &chunkErr) {
		return false
	}
	return chunkErr.Kind == ErrorStreamRead && chunkErr.Size == 0 && chunkErr.Err == io.EOF
}

// NewSizeMismatchError reports a chunk whose payload consumed a different
// number of bytes than declared.
func NewSizeMismatchError(tag Tag, size uint32, consumed int64) *Error {
	return &Error{
		Kind: ErrorSizeMismatch,
		Tag:  tag,
		Size: size,
		Msg:  fmt.Sprintf("declared %d bytes, consumed %d", size, consumed),
	}
}

// NewTooLargeError reports a declared size above limit.
func NewTooLargeError(tag Tag, size, limit uint32) *Error {
	return &Error{
		Kind: ErrorTooLarge,
		Tag:  tag,
		Size: size,
		Msg:  fmt.Sprintf("chunk size %d exceeds maximum %d", size, limit),
	}
}

func malformed(format string, args ...any) *Error {
	return &Error{Kind: ErrorMalformed, Msg: fmt.Sprintf(format, args...)}
}

// wrapPayloadError attaches tag and size to a decoder failure. Errors that
// are not already classified come from the cursor and become stream reads;
// a bare io.EOF inside a payload is always premature.
func wrapPayloadError(tag Tag, size uint32, err error) error {
	var chunkErr *Error
	if errors.As(err, &chunkErr) {
		if chunkErr.Tag == 0 {
			chunkErr.Tag = tag
		}
		if chunkErr.Size == 0 {
			chunkErr.Size = size
		}
		return chunkErr
	}
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return &Error{
		Kind: ErrorStreamRead,
		Tag:  tag,
		Size: size,
		Msg:  "failed to read payload",
		Err:  err,
	}
}
