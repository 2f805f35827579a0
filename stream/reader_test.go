package stream

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/justapithecus/asechunk/chunk"
	"github.com/justapithecus/asechunk/log"
	"github.com/justapithecus/asechunk/metrics"
	"github.com/justapithecus/asechunk/policy"
	"github.com/justapithecus/asechunk/types"
)

var header = &types.Header{ColorDepth: types.ColorDepthRGBA}

func encodeChunk(t *testing.T, p chunk.Payload) []byte {
	t.Helper()
	var buf bytes.Buffer
	if _, err := chunk.Encode(&buf, p, header); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return buf.Bytes()
}

func rawChunk(tag chunk.Tag, payload []byte) []byte {
	buf := make([]byte, chunk.HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(buf)))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(tag))
	copy(buf[chunk.HeaderSize:], payload)
	return buf
}

// padded appends n bytes the payload layout does not define and grows
// the declared size to cover them.
func padded(b []byte, n int) []byte {
	out := append(append([]byte{}, b...), make([]byte, n)...)
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(out)))
	return out
}

func join(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func layer(t *testing.T, name string) []byte {
	return encodeChunk(t, &chunk.Layer{Flags: chunk.LayerVisible, Opacity: 255, Name: name})
}

func TestReader_ReadAll(t *testing.T) {
	l1 := layer(t, "bg")
	cel := encodeChunk(t, &chunk.Cel{Opacity: 255, Content: &chunk.LinkedCel{FramePosition: 0}})
	path := encodeChunk(t, &chunk.Path{Data: []byte{1, 2}})
	data := join(l1, cel, path)

	r := NewReader(bytes.NewReader(data), header, Options{Source: "test.ase"})
	got, err := r.ReadAll(t.Context())
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("decoded %d chunks, want 3", len(got))
	}

	wantOffsets := []int64{0, int64(len(l1)), int64(len(l1) + len(cel))}
	wantTags := []chunk.Tag{chunk.TagLayer, chunk.TagCel, chunk.TagPath}
	for i, d := range got {
		if d.Offset != wantOffsets[i] {
			t.Errorf("chunk %d: Offset = %d, want %d", i, d.Offset, wantOffsets[i])
		}
		if d.Tag() != wantTags[i] {
			t.Errorf("chunk %d: Tag = %s, want %s", i, d.Tag(), wantTags[i])
		}
	}
	if name := got[0].Payload.(*chunk.Layer).Name; name != "bg" {
		t.Errorf("layer name = %q, want bg", name)
	}

	// End of stream is sticky.
	if _, err := r.Next(t.Context()); !errors.Is(err, io.EOF) {
		t.Errorf("Next after end = %v, want io.EOF", err)
	}

	s := r.Metrics()
	if s.StreamsStarted != 1 || s.StreamsCompleted != 1 {
		t.Errorf("streams started/completed = %d/%d, want 1/1", s.StreamsStarted, s.StreamsCompleted)
	}
	if s.ChunksDecoded != 3 {
		t.Errorf("ChunksDecoded = %d, want 3", s.ChunksDecoded)
	}
	if s.BytesDecoded != int64(len(data)) {
		t.Errorf("BytesDecoded = %d, want %d", s.BytesDecoded, len(data))
	}
	if s.DecodedByTag["cel"] != 1 {
		t.Errorf("DecodedByTag[cel] = %d, want 1", s.DecodedByTag["cel"])
	}
	if s.Policy != policy.NameStrict || s.Source != "test.ase" || s.ReaderID != r.ID() {
		t.Errorf("dimensions = %q %q %q", s.Policy, s.Source, s.ReaderID)
	}
}

func TestReader_EmptyStream(t *testing.T) {
	r := NewReader(bytes.NewReader(nil), header, Options{})
	if _, err := r.Next(t.Context()); !errors.Is(err, io.EOF) {
		t.Fatalf("Next = %v, want io.EOF", err)
	}
}

func TestReader_StrictAbortsOnUnknown(t *testing.T) {
	unknown := rawChunk(0x2023, []byte{1, 2, 3, 4})
	data := join(layer(t, "a"), unknown, layer(t, "b"))

	r := NewReader(bytes.NewReader(data), header, Options{})
	got, err := r.ReadAll(t.Context())
	if len(got) != 1 {
		t.Errorf("decoded %d chunks before failure, want 1", len(got))
	}
	if !IsDecodeError(err) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if !chunk.IsUnknownChunkType(err) {
		t.Errorf("expected unknown chunk type in chain, got %v", err)
	}

	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected *ReadError, got %T", err)
	}
	if readErr.Offset != int64(len(layer(t, "a"))) {
		t.Errorf("Offset = %d, want %d", readErr.Offset, len(layer(t, "a")))
	}

	// Failure is sticky.
	if _, again := r.Next(t.Context()); again != err {
		t.Errorf("Next after failure = %v, want %v", again, err)
	}

	s := r.Metrics()
	if s.StreamsFailed != 1 {
		t.Errorf("StreamsFailed = %d, want 1", s.StreamsFailed)
	}
	if s.ErrorsByKind["unknown_chunk_type"] != 1 {
		t.Errorf("ErrorsByKind[unknown_chunk_type] = %d, want 1", s.ErrorsByKind["unknown_chunk_type"])
	}
	if s.PolicyAborted != 1 {
		t.Errorf("PolicyAborted = %d, want 1", s.PolicyAborted)
	}
}

func TestReader_LenientSkipsUnknown(t *testing.T) {
	unknown := rawChunk(0x2023, []byte{1, 2, 3, 4})
	data := join(layer(t, "a"), unknown, layer(t, "b"))

	var logs bytes.Buffer
	r := NewReader(bytes.NewReader(data), header, Options{
		Policy: policy.NewLenientPolicy(),
		Logger: log.NewLogger("test").WithOutput(&logs),
	})
	got, err := r.ReadAll(t.Context())
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("decoded %d chunks, want 2", len(got))
	}
	if name := got[1].Payload.(*chunk.Layer).Name; name != "b" {
		t.Errorf("second layer = %q, want b", name)
	}
	if got[1].Offset != int64(len(layer(t, "a"))+len(unknown)) {
		t.Errorf("second Offset = %d", got[1].Offset)
	}

	s := r.Metrics()
	if s.ChunksSkipped != 1 || s.BytesSkipped != int64(len(unknown)) {
		t.Errorf("skipped = %d chunks / %d bytes, want 1 / %d", s.ChunksSkipped, s.BytesSkipped, len(unknown))
	}
	if s.PolicySkipped != 1 || s.SkippedByTag["0x2023"] != 1 {
		t.Errorf("policy skipped = %d, by tag = %v", s.PolicySkipped, s.SkippedByTag)
	}
	if !strings.Contains(logs.String(), `"message":"chunk skipped"`) {
		t.Errorf("missing skip log entry in %s", logs.String())
	}
}

func TestReader_SharedPolicyCountsPerReader(t *testing.T) {
	unknown := rawChunk(0x2023, []byte{1, 2, 3})
	pol := policy.NewLenientPolicy()

	first := NewReader(bytes.NewReader(join(unknown, unknown, layer(t, "a"))), header, Options{Policy: pol})
	second := NewReader(bytes.NewReader(join(layer(t, "b"), unknown)), header, Options{Policy: pol})
	for _, r := range []*Reader{first, second} {
		if _, err := r.ReadAll(t.Context()); err != nil {
			t.Fatalf("ReadAll failed: %v", err)
		}
	}

	if got := pol.Stats().Skipped; got != 3 {
		t.Errorf("policy Skipped = %d, want 3", got)
	}
	tests := []struct {
		name string
		r    *Reader
		want int64
	}{
		{"first", first, 2},
		{"second", second, 1},
	}
	for _, tt := range tests {
		s := tt.r.Metrics()
		if s.PolicySkipped != tt.want || s.PolicyFailures != tt.want {
			t.Errorf("%s: PolicySkipped = %d, PolicyFailures = %d, want %d", tt.name, s.PolicySkipped, s.PolicyFailures, tt.want)
		}
		if s.SkippedByTag["0x2023"] != tt.want {
			t.Errorf("%s: SkippedByTag = %v, want 0x2023:%d", tt.name, s.SkippedByTag, tt.want)
		}
	}
}

func TestReader_LenientSkipsMalformed(t *testing.T) {
	// A compressed image cel declaring 24 bytes cannot hold its prefix.
	cel := encodeChunk(t, &chunk.Cel{Content: &chunk.CompressedImage{Width: 1, Height: 1, Data: []byte{0}}})
	bad := padded(cel[:24], 0)
	data := join(bad, layer(t, "after"))

	r := NewReader(bytes.NewReader(data), header, Options{Policy: policy.NewLenientPolicy()})
	got, err := r.ReadAll(t.Context())
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 1 || got[0].Tag() != chunk.TagLayer {
		t.Fatalf("got %d chunks, want the layer only", len(got))
	}
	if n := r.Metrics().ErrorsByKind["malformed"]; n != 1 {
		t.Errorf("ErrorsByKind[malformed] = %d, want 1", n)
	}
}

func TestReader_VerifySize(t *testing.T) {
	data := join(padded(layer(t, "a"), 2), layer(t, "b"))

	t.Run("strict", func(t *testing.T) {
		r := NewReader(bytes.NewReader(data), header, Options{VerifySize: true})
		_, err := r.Next(t.Context())
		if kind, ok := chunk.KindOf(err); !ok || kind != chunk.ErrorSizeMismatch {
			t.Fatalf("expected size mismatch, got %v", err)
		}
	})

	t.Run("lenient", func(t *testing.T) {
		r := NewReader(bytes.NewReader(data), header, Options{
			VerifySize: true,
			Policy:     policy.NewLenientPolicy(),
		})
		got, err := r.ReadAll(t.Context())
		if err != nil {
			t.Fatalf("ReadAll failed: %v", err)
		}
		if len(got) != 1 || got[0].Payload.(*chunk.Layer).Name != "b" {
			t.Fatalf("got %d chunks, want layer b only", len(got))
		}
	})

	t.Run("off", func(t *testing.T) {
		r := NewReader(bytes.NewReader(data), header, Options{})
		d, err := r.Next(t.Context())
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		// Without verification the declared size is reported as read.
		if d.Size != uint32(len(layer(t, "a"))+2) {
			t.Errorf("Size = %d, want %d", d.Size, len(layer(t, "a"))+2)
		}
	})
}

func TestReader_MaxChunkSize(t *testing.T) {
	big := encodeChunk(t, &chunk.Path{Data: make([]byte, 100)})
	data := join(layer(t, "a"), big, layer(t, "b"))

	for _, pol := range []policy.Policy{policy.NewStrictPolicy(), policy.NewLenientPolicy()} {
		t.Run(pol.Name(), func(t *testing.T) {
			r := NewReader(bytes.NewReader(data), header, Options{Policy: pol, MaxChunkSize: 64})
			got, err := r.ReadAll(t.Context())
			if len(got) != 1 {
				t.Errorf("decoded %d chunks, want 1", len(got))
			}
			if kind, ok := chunk.KindOf(err); !ok || kind != chunk.ErrorTooLarge {
				t.Fatalf("expected too large, got %v", err)
			}
		})
	}
}

func TestReader_TruncatedChunk(t *testing.T) {
	l := layer(t, "a")
	data := join(l, l[:len(l)-3])

	r := NewReader(bytes.NewReader(data), header, Options{Policy: policy.NewLenientPolicy()})
	got, err := r.ReadAll(t.Context())
	if len(got) != 1 {
		t.Errorf("decoded %d chunks, want 1", len(got))
	}
	if !chunk.IsStreamRead(err) {
		t.Fatalf("expected stream read error, got %v", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected io.ErrUnexpectedEOF in chain, got %v", err)
	}
}

func TestReader_SkipPastEnd(t *testing.T) {
	unknown := rawChunk(0x2023, []byte{1, 2})
	binary.LittleEndian.PutUint32(unknown[0:4], 500)

	r := NewReader(bytes.NewReader(unknown), header, Options{Policy: policy.NewLenientPolicy()})
	_, err := r.Next(t.Context())

	var readErr *ReadError
	if !errors.As(err, &readErr) || readErr.Kind != ReadErrorResync {
		t.Fatalf("expected resync error, got %v", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected io.ErrUnexpectedEOF in chain, got %v", err)
	}
}

func TestReader_ReadN(t *testing.T) {
	unknown := rawChunk(0x2023, nil)
	data := join(layer(t, "a"), unknown, layer(t, "b"), layer(t, "next frame"))

	r := NewReader(bytes.NewReader(data), header, Options{Policy: policy.NewLenientPolicy()})
	got, err := r.ReadN(t.Context(), 3)
	if err != nil {
		t.Fatalf("ReadN failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadN returned %d chunks, want 2 (one skipped)", len(got))
	}

	rest, err := r.ReadN(t.Context(), 2)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
	if len(rest) != 1 || rest[0].Payload.(*chunk.Layer).Name != "next frame" {
		t.Errorf("rest = %d chunks", len(rest))
	}
}

func TestReader_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	data := join(layer(t, "a"), layer(t, "b"))

	collector := metrics.NewCollector("strict", "s", "r")
	r := NewReader(bytes.NewReader(data), header, Options{Collector: collector, ID: "r"})
	if _, err := r.Next(ctx); err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	cancel()
	_, err := r.Next(ctx)
	if !IsCanceledError(err) {
		t.Fatalf("expected canceled error, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
	if collector.Snapshot().StreamsCanceled != 1 {
		t.Errorf("StreamsCanceled = %d, want 1", collector.Snapshot().StreamsCanceled)
	}
	if r.ID() != "r" {
		t.Errorf("ID = %q, want r", r.ID())
	}
}

func TestReader_HeaderContext(t *testing.T) {
	h := &types.Header{ColorDepth: types.ColorDepthIndexed, Flags: uint32(types.HeaderFlagLayerUUID)}
	var buf bytes.Buffer
	l := &chunk.Layer{Name: "u"}
	l.UUID[15] = 9
	if _, err := chunk.Encode(&buf, l, h); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	r := NewReader(bytes.NewReader(buf.Bytes()), h, Options{VerifySize: true})
	d, err := r.Next(t.Context())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got := d.Payload.(*chunk.Layer).UUID[15]; got != 9 {
		t.Errorf("UUID[15] = %d, want 9", got)
	}
}
