// Package stream reads successive chunks from one byte source.
//
// A Reader wraps the chunk decoder with the concerns of a whole stream:
// declared-size limits, optional consumed-size verification, a failure
// policy that may skip a bad chunk by its declared size, metrics and
// logging. Decoding stays synchronous; the context is checked between
// chunks only.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/justapithecus/asechunk/chunk"
	"github.com/justapithecus/asechunk/iox"
	"github.com/justapithecus/asechunk/log"
	"github.com/justapithecus/asechunk/metrics"
	"github.com/justapithecus/asechunk/policy"
	"github.com/justapithecus/asechunk/types"
)

// ReadError classifies stream termination errors.
type ReadError struct {
	// Kind indicates why the stream stopped.
	Kind ReadErrorKind
	// Offset is the position of the chunk being read.
	Offset int64
	// Err is the underlying error.
	Err error
}

// ReadErrorKind classifies stream termination errors.
type ReadErrorKind int

const (
	// ReadErrorDecode indicates a chunk failure the policy did not skip.
	ReadErrorDecode ReadErrorKind = iota
	// ReadErrorResync indicates skipping past a failed chunk failed.
	ReadErrorResync
	// ReadErrorCanceled indicates context cancellation.
	ReadErrorCanceled
)

func (e *ReadError) Error() string {
	return fmt.Sprintf("offset %d: %v", e.Offset, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// IsDecodeError returns true if the stream stopped on a chunk failure.
func IsDecodeError(err error) bool {
	var readErr *ReadError
	if errors.As(err, &readErr) {
		return readErr.Kind == ReadErrorDecode
	}
	return false
}

// IsCanceledError returns true if the stream stopped on context cancellation.
func IsCanceledError(err error) bool {
	var readErr *ReadError
	if errors.As(err, &readErr) {
		return readErr.Kind == ReadErrorCanceled
	}
	return false
}

// Options configures a Reader. The zero value is a strict reader with no
// limits, no verification and no logging.
type Options struct {
	// Source names the byte source in logs and metrics.
	Source string
	// ID identifies the reader; a random UUID when empty.
	ID string
	// Policy decides the fate of failed chunks. Defaults to strict.
	Policy policy.Policy
	// Logger defaults to log.Nop().
	Logger *log.Logger
	// Collector receives per-chunk metrics. One is created when nil.
	Collector *metrics.Collector
	// VerifySize fails chunks whose payload did not consume exactly the
	// declared size.
	VerifySize bool
	// MaxChunkSize rejects chunks declaring more bytes. Zero means no limit.
	MaxChunkSize uint32
}

// Decoded is one successfully decoded chunk and where it started.
type Decoded struct {
	Offset int64
	chunk.Envelope
}

// Reader decodes successive chunks from one cursor.
// Not safe for concurrent use.
type Reader struct {
	cursor    *iox.Cursor
	header    *types.Header
	opts      Options
	policy    policy.Policy
	logger    *log.Logger
	collector *metrics.Collector

	started bool
	// err is sticky once the stream has ended; io.EOF on a clean end.
	err error
}

// NewReader creates a reader over rs, which must be positioned at a chunk
// boundary. h is the header context passed to every decode.
func NewReader(rs io.ReadSeeker, h *types.Header, opts Options) *Reader {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	pol := opts.Policy
	if pol == nil {
		pol = policy.NewStrictPolicy()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	collector := opts.Collector
	if collector == nil {
		collector = metrics.NewCollector(pol.Name(), opts.Source, opts.ID)
	}

	return &Reader{
		cursor:    iox.NewCursor(rs),
		header:    h,
		opts:      opts,
		policy:    pol,
		logger:    logger.With(map[string]any{"reader": opts.ID}),
		collector: collector,
	}
}

// ID returns the reader's identifier.
func (r *Reader) ID() string { return r.opts.ID }

// Metrics returns a snapshot of the reader's collector.
func (r *Reader) Metrics() metrics.Snapshot { return r.collector.Snapshot() }

// Next decodes the next chunk, skipping failed chunks the policy lets go.
// Returns:
//   - io.EOF: the stream ended cleanly on a chunk boundary
//   - *ReadError with Kind=ReadErrorDecode: a chunk failure was not skipped
//   - *ReadError with Kind=ReadErrorResync: a skip could not be completed
//   - *ReadError with Kind=ReadErrorCanceled: ctx was done
//
// Once Next returns an error it returns the same error forever.
func (r *Reader) Next(ctx context.Context) (*Decoded, error) {
	for {
		d, err := r.step(ctx)
		if err != nil {
			return nil, err
		}
		if d != nil {
			return d, nil
		}
	}
}

// ReadN reads exactly n chunks, as counted by a frame header. Skipped
// chunks count toward n but are not returned. A stream ending early
// yields io.ErrUnexpectedEOF.
func (r *Reader) ReadN(ctx context.Context, n int) ([]*Decoded, error) {
	out := make([]*Decoded, 0, n)
	for i := 0; i < n; i++ {
		d, err := r.step(ctx)
		if errors.Is(err, io.EOF) {
			return out, fmt.Errorf("expected %d chunks, stream ended after %d: %w", n, i, io.ErrUnexpectedEOF)
		}
		if err != nil {
			return out, err
		}
		if d != nil {
			out = append(out, d)
		}
	}
	return out, nil
}

// ReadAll reads until the stream ends cleanly. The chunks decoded before
// a failure are returned with it.
func (r *Reader) ReadAll(ctx context.Context) ([]*Decoded, error) {
	var out []*Decoded
	for {
		d, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, d)
	}
}

// step processes exactly one chunk. It returns (nil, nil) when the chunk
// failed and was skipped.
func (r *Reader) step(ctx context.Context) (*Decoded, error) {
	if r.err != nil {
		return nil, r.err
	}
	if !r.started {
		r.started = true
		r.collector.IncStreamStarted()
		r.logger.Debug("stream started", map[string]any{
			"policy":     r.policy.Name(),
			"color_mode": r.header.ColorMode(),
		})
	}

	offset, err := r.cursor.Offset()
	if err != nil {
		return nil, r.fail(ReadErrorDecode, 0, &chunk.Error{
			Kind: chunk.ErrorStreamRead,
			Msg:  "failed to read stream offset",
			Err:  err,
		})
	}

	select {
	case <-ctx.Done():
		r.collector.IncStreamCanceled()
		return nil, r.fail(ReadErrorCanceled, offset, ctx.Err())
	default:
	}

	env, err := r.decode(offset)
	if err == nil {
		r.collector.RecordDecoded(env.Tag().String(), int64(env.Size))
		r.logger.Debug("chunk decoded", map[string]any{
			"offset": offset,
			"tag":    env.Tag().String(),
			"size":   env.Size,
		})
		return &Decoded{Offset: offset, Envelope: *env}, nil
	}

	if chunk.IsCleanEOF(err) {
		r.finish()
		return nil, r.err
	}

	return nil, r.handleFailure(offset, err)
}

// decode reads one chunk at offset, applying the size limit and the
// consumed-size check.
func (r *Reader) decode(offset int64) (*chunk.Envelope, error) {
	size, tag, err := chunk.DecodeHeader(r.cursor)
	if err != nil {
		return nil, err
	}
	if r.opts.MaxChunkSize > 0 && size > r.opts.MaxChunkSize {
		return nil, chunk.NewTooLargeError(tag, size, r.opts.MaxChunkSize)
	}

	payload, err := chunk.DecodePayload(r.cursor, size, tag, r.header)
	if err != nil {
		return nil, err
	}

	if r.opts.VerifySize {
		end, err := r.cursor.Offset()
		if err != nil {
			return nil, &chunk.Error{Kind: chunk.ErrorStreamRead, Tag: tag, Size: size, Msg: "failed to read stream offset", Err: err}
		}
		if consumed := end - offset; consumed != int64(size) {
			return nil, chunk.NewSizeMismatchError(tag, size, consumed)
		}
	}

	return &chunk.Envelope{Size: size, Payload: payload}, nil
}

// handleFailure consults the policy and either resyncs past the chunk
// (returning nil) or ends the stream.
func (r *Reader) handleFailure(offset int64, err error) error {
	kind, _ := chunk.KindOf(err)
	r.collector.RecordError(kind.String())

	f := policy.Failure{Offset: offset, Err: err}
	size, sized := f.Size()
	action := r.policy.OnFailure(f)
	if action == policy.ActionSkip && (!sized || size < chunk.HeaderSize) {
		action = policy.ActionAbort
	}

	r.collector.RecordPolicyDecision(action == policy.ActionSkip, f.Tag().String())

	if action == policy.ActionAbort {
		r.logger.Error("chunk failed", map[string]any{
			"offset": offset,
			"kind":   kind.String(),
			"error":  err.Error(),
		})
		r.collector.IncStreamFailed()
		return r.fail(ReadErrorDecode, offset, err)
	}

	if resyncErr := r.resync(offset + int64(size)); resyncErr != nil {
		r.logger.Error("resync failed", map[string]any{
			"offset": offset,
			"target": offset + int64(size),
			"error":  resyncErr.Error(),
		})
		r.collector.IncStreamFailed()
		return r.fail(ReadErrorResync, offset, fmt.Errorf("skip %s: %w", f.Tag(), resyncErr))
	}

	r.collector.RecordSkipped(int64(size))
	r.logger.Warn("chunk skipped", map[string]any{
		"offset": offset,
		"tag":    f.Tag().String(),
		"size":   size,
		"kind":   kind.String(),
		"error":  err.Error(),
	})
	return nil
}

// resync moves the cursor to target. Forward moves consume bytes so a
// declared size running past the end of the stream is detected.
func (r *Reader) resync(target int64) error {
	cur, err := r.cursor.Offset()
	if err != nil {
		return err
	}
	if target < cur {
		return r.cursor.Seek(target)
	}
	if err := r.cursor.Skip(target - cur); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return &chunk.Error{Kind: chunk.ErrorStreamRead, Msg: "declared size runs past end of stream", Err: err}
	}
	return nil
}

func (r *Reader) finish() {
	r.err = io.EOF
	r.collector.IncStreamCompleted()

	s := r.collector.Snapshot()
	r.logger.Info("stream complete", map[string]any{
		"chunks_decoded": s.ChunksDecoded,
		"chunks_skipped": s.ChunksSkipped,
		"bytes_decoded":  s.BytesDecoded,
	})
}

func (r *Reader) fail(kind ReadErrorKind, offset int64, err error) error {
	r.err = &ReadError{Kind: kind, Offset: offset, Err: err}
	return r.err
}
