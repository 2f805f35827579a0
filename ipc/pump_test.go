package ipc

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/justapithecus/asechunk/chunk"
	"github.com/justapithecus/asechunk/metrics"
	"github.com/justapithecus/asechunk/policy"
	"github.com/justapithecus/asechunk/stream"
)

func encodeChunk(t *testing.T, p chunk.Payload) []byte {
	t.Helper()
	var buf bytes.Buffer
	if _, err := chunk.Encode(&buf, p, header); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return buf.Bytes()
}

func unknownChunk() []byte {
	buf := make([]byte, chunk.HeaderSize+3)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(buf)))
	binary.LittleEndian.PutUint16(buf[4:6], 0x2023)
	return buf
}

func TestPump_Collect(t *testing.T) {
	want := []chunk.Payload{
		&chunk.Layer{Flags: chunk.LayerVisible, Opacity: 255, Name: "bg"},
		&chunk.Cel{Opacity: 255, Content: &chunk.LinkedCel{FramePosition: 0}},
	}
	var src []byte
	src = append(src, encodeChunk(t, want[0])...)
	src = append(src, unknownChunk()...)
	src = append(src, encodeChunk(t, want[1])...)

	reader := stream.NewReader(bytes.NewReader(src), header, stream.Options{
		ID:     "pump-1",
		Policy: policy.NewLenientPolicy(),
	})
	collector := metrics.NewCollector(policy.NameLenient, "test", "pump-1")

	var wire bytes.Buffer
	end, err := Pump(context.Background(), reader, header, NewFrameEncoder(&wire), collector)
	if err != nil {
		t.Fatalf("Pump failed: %v", err)
	}
	if end.Chunks != 2 || end.Skipped != 1 || end.Error != "" {
		t.Errorf("end = %+v, want 2 chunks, 1 skipped, no error", *end)
	}

	got, gotEnd, err := Collect(NewFrameDecoder(&wire), collector)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if *gotEnd != *end {
		t.Errorf("end frame = %+v, want %+v", *gotEnd, *end)
	}
	if len(got) != len(want) {
		t.Fatalf("collected %d chunks, want %d", len(got), len(want))
	}
	wantOffsets := []int64{0, int64(len(encodeChunk(t, want[0])) + len(unknownChunk()))}
	for i := range want {
		if got[i].Seq != int64(i+1) {
			t.Errorf("chunk %d Seq = %d, want %d", i, got[i].Seq, i+1)
		}
		if got[i].Offset != wantOffsets[i] {
			t.Errorf("chunk %d Offset = %d, want %d", i, got[i].Offset, wantOffsets[i])
		}
		if !reflect.DeepEqual(got[i].Payload, want[i]) {
			t.Errorf("chunk %d = %+v, want %+v", i, got[i].Payload, want[i])
		}
	}

	snap := collector.Snapshot()
	if snap.IPCFramesEncoded != 2 {
		t.Errorf("IPCFramesEncoded = %d, want 2", snap.IPCFramesEncoded)
	}
	if snap.IPCFramesDecoded != 2 {
		t.Errorf("IPCFramesDecoded = %d, want 2", snap.IPCFramesDecoded)
	}
}

func TestPump_ReaderFailure(t *testing.T) {
	src := append(encodeChunk(t, &chunk.Layer{Name: "bg"}), unknownChunk()...)
	reader := stream.NewReader(bytes.NewReader(src), header, stream.Options{})

	var wire bytes.Buffer
	end, err := Pump(context.Background(), reader, header, NewFrameEncoder(&wire), nil)
	if !stream.IsDecodeError(err) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if end.Chunks != 1 {
		t.Errorf("Chunks = %d, want 1", end.Chunks)
	}
	if end.Error == "" {
		t.Error("end frame should carry the reader error")
	}

	got, gotEnd, err := Collect(NewFrameDecoder(&wire), nil)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("collected %d chunks, want 1", len(got))
	}
	if gotEnd.Error != end.Error {
		t.Errorf("end Error = %q, want %q", gotEnd.Error, end.Error)
	}
}

func TestCollect_MissingEndFrame(t *testing.T) {
	var wire bytes.Buffer
	f, err := NewChunkFrame("r", 1, 0, envelope(t, &chunk.Layer{Name: "bg"}), header)
	if err != nil {
		t.Fatalf("NewChunkFrame failed: %v", err)
	}
	if err := NewFrameEncoder(&wire).WriteFrame(f); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	got, end, err := Collect(NewFrameDecoder(&wire), nil)
	var frameErr *FrameError
	if !errors.As(err, &frameErr) || frameErr.Kind != FrameErrorPartial {
		t.Fatalf("expected partial FrameError, got %v", err)
	}
	if end != nil {
		t.Errorf("end = %+v, want nil", end)
	}
	if len(got) != 1 {
		t.Errorf("collected %d chunks, want 1", len(got))
	}
}

func TestCollect_CountsDecodeErrors(t *testing.T) {
	f, err := NewChunkFrame("r", 1, 0, envelope(t, &chunk.Layer{Name: "bg"}), header)
	if err != nil {
		t.Fatalf("NewChunkFrame failed: %v", err)
	}
	f.Size++

	var wire bytes.Buffer
	if err := NewFrameEncoder(&wire).WriteFrame(f); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	collector := metrics.NewCollector("", "", "")
	if _, _, err := Collect(NewFrameDecoder(&wire), collector); err == nil {
		t.Fatal("expected error")
	}
	if got := collector.Snapshot().IPCDecodeErrors; got != 1 {
		t.Errorf("IPCDecodeErrors = %d, want 1", got)
	}
}

func TestPump_UnframeableChunkNotCounted(t *testing.T) {
	padded := encodeChunk(t, &chunk.Layer{Name: "b"})
	padded = append(padded, 0, 0)
	binary.LittleEndian.PutUint32(padded[0:4], uint32(len(padded)))
	src := append(encodeChunk(t, &chunk.Layer{Name: "a"}), padded...)

	reader := stream.NewReader(bytes.NewReader(src), header, stream.Options{})
	collector := metrics.NewCollector("", "", "")

	var wire bytes.Buffer
	end, err := Pump(context.Background(), reader, header, NewFrameEncoder(&wire), collector)
	if err == nil {
		t.Fatal("expected error for a chunk whose declared size exceeds its encoding")
	}
	if end.Chunks != 1 {
		t.Errorf("Chunks = %d, want 1", end.Chunks)
	}
	if end.Error == "" {
		t.Error("end frame should carry the framing error")
	}
	if got := collector.Snapshot().IPCFramesEncoded; got != 1 {
		t.Errorf("IPCFramesEncoded = %d, want 1", got)
	}

	got, gotEnd, err := Collect(NewFrameDecoder(&wire), nil)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(got) != 1 || gotEnd.Chunks != 1 {
		t.Errorf("collected %d chunks, end Chunks = %d, want 1 and 1", len(got), gotEnd.Chunks)
	}
}
