package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/justapithecus/asechunk/chunk"
	"github.com/justapithecus/asechunk/metrics"
	"github.com/justapithecus/asechunk/stream"
	"github.com/justapithecus/asechunk/types"
)

// Pump reads every chunk from r and writes it to enc as a chunk frame,
// then writes an end frame. h must be the header r decodes under. The end
// frame counts only chunks that were framed and written.
//
// A reader error is reported in the end frame and returned. A write error
// is returned without an end frame since the peer can no longer be reached.
func Pump(ctx context.Context, r *stream.Reader, h *types.Header, enc *FrameEncoder, c *metrics.Collector) (*EndFrame, error) {
	end := &EndFrame{Type: EndFrameType, ContractVersion: types.Version, ReaderID: r.ID()}

	var readErr error
	for {
		d, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			readErr = err
			break
		}

		seq := end.Chunks + 1
		f, err := NewChunkFrame(r.ID(), seq, d.Offset, &d.Envelope, h)
		if err != nil {
			readErr = fmt.Errorf("chunk at offset %d: %w", d.Offset, err)
			break
		}
		if err := enc.WriteFrame(f); err != nil {
			return nil, err
		}
		end.Chunks = seq
		c.IncIPCFramesEncoded()
	}

	end.Skipped = r.Metrics().ChunksSkipped
	if readErr != nil {
		end.Error = readErr.Error()
	}
	if err := enc.WriteFrame(end); err != nil {
		return nil, err
	}
	return end, readErr
}

// Received is one chunk decoded from a chunk frame.
type Received struct {
	Seq    int64
	Offset int64
	*chunk.Envelope
}

// Collect reads frames from dec until an end frame and returns the chunks
// they carry. A stream ending before the end frame is a partial frame error.
// Chunk frames that fail to decode are counted and returned as an error;
// frames already collected are returned with it.
func Collect(dec *FrameDecoder, c *metrics.Collector) ([]*Received, *EndFrame, error) {
	var out []*Received
	for {
		payload, err := dec.ReadFrame()
		if errors.Is(err, io.EOF) {
			return out, nil, &FrameError{Kind: FrameErrorPartial, Msg: "stream ended before end frame"}
		}
		if err != nil {
			return out, nil, err
		}

		v, err := DecodeFrame(payload)
		if err != nil {
			c.IncIPCDecodeErrors()
			return out, nil, err
		}

		switch f := v.(type) {
		case *EndFrame:
			return out, f, nil
		case *ChunkFrame:
			env, err := f.Envelope()
			if err != nil {
				c.IncIPCDecodeErrors()
				return out, nil, fmt.Errorf("frame %d: %w", f.Seq, err)
			}
			c.IncIPCFramesDecoded()
			out = append(out, &Received{Seq: f.Seq, Offset: f.Offset, Envelope: env})
		}
	}
}
