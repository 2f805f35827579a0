package chunk

import (
	"bytes"
	"strings"
	"testing"

	"github.com/justapithecus/asechunk/iox"
	"github.com/justapithecus/asechunk/types"
)

func celChunk(typ CelType, content func(w *iox.Writer)) []byte {
	return rawChunk(TagCel, le(func(w *iox.Writer) {
		w.U16(0)
		w.I16(0)
		w.I16(0)
		w.U8(255)
		w.U16(uint16(typ))
		w.I16(0)
		w.Zero(5)
		content(w)
	}))
}

func TestCel_Raw(t *testing.T) {
	tests := []struct {
		name   string
		header *types.Header
		pixels int
	}{
		{"indexed", &types.Header{ColorDepth: types.ColorDepthIndexed}, 6},
		{"grayscale", &types.Header{ColorDepth: types.ColorDepthGrayscale}, 12},
		{"rgba", rgbaHeader, 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := celChunk(CelTypeRaw, func(w *iox.Writer) {
				w.U16(3)
				w.U16(2)
				w.Bytes(bytes.Repeat([]byte{0x5a}, tt.pixels))
			})
			env, off, err := decodeBytes(t, raw, tt.header)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if off != int64(len(raw)) {
				t.Errorf("offset = %d, want %d", off, len(raw))
			}

			cel := env.Payload.(*Cel)
			if cel.Type() != CelTypeRaw {
				t.Errorf("Type = %s, want raw", cel.Type())
			}
			img := cel.Content.(*RawImage)
			if len(img.Pixels) != tt.pixels {
				t.Errorf("len(Pixels) = %d, want %d", len(img.Pixels), tt.pixels)
			}
			if img.ColorDepth != tt.header.ColorDepth {
				t.Errorf("ColorDepth = %d, want %d", img.ColorDepth, tt.header.ColorDepth)
			}
		})
	}
}

func TestCel_RawUnknownDepthUsesDeclaredSize(t *testing.T) {
	raw := celChunk(CelTypeRaw, func(w *iox.Writer) {
		w.U16(4)
		w.U16(4)
		w.Bytes([]byte{1, 2, 3, 4, 5})
	})
	env, _, err := decodeBytes(t, raw, &types.Header{ColorDepth: 24})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	img := env.Payload.(*Cel).Content.(*RawImage)
	if !bytes.Equal(img.Pixels, []byte{1, 2, 3, 4, 5}) {
		t.Errorf("Pixels = %v", img.Pixels)
	}
	if img.ColorDepth != 0 {
		t.Errorf("ColorDepth = %d, want 0", img.ColorDepth)
	}
}

func TestCel_CompressedImage(t *testing.T) {
	pixels := bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 6)
	data, err := Deflate(pixels)
	if err != nil {
		t.Fatalf("Deflate failed: %v", err)
	}
	raw := celChunk(CelTypeCompressedImage, func(w *iox.Writer) {
		w.U16(3)
		w.U16(2)
		w.Bytes(data)
	})

	env, off, err := decodeBytes(t, raw, rgbaHeader)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if off != int64(len(raw)) {
		t.Errorf("offset = %d, want %d", off, len(raw))
	}
	img := env.Payload.(*Cel).Content.(*CompressedImage)
	if !bytes.Equal(img.Data, data) {
		t.Error("Data does not hold the compressed stream verbatim")
	}

	got, err := img.Decompress()
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if !bytes.Equal(got, pixels) {
		t.Errorf("Decompress = %x, want %x", got, pixels)
	}

	img.Width = 4
	if _, err := img.Decompress(); err == nil {
		t.Error("expected length mismatch error")
	}
}

func TestCel_CompressedImageCorrupt(t *testing.T) {
	img := &CompressedImage{Width: 1, Height: 1, ColorDepth: 32, Data: []byte{1, 2, 3}}
	if _, err := img.Decompress(); err == nil {
		t.Error("expected inflate error")
	}
}

func TestCel_InflateStopsAtExpectedSize(t *testing.T) {
	data, err := Deflate(make([]byte, 1<<20))
	if err != nil {
		t.Fatalf("Deflate failed: %v", err)
	}

	tests := []struct {
		name string
		run  func() error
	}{
		{"rgba image", func() error {
			_, err := (&CompressedImage{Width: 1, Height: 1, ColorDepth: 32, Data: data}).Decompress()
			return err
		}},
		{"unknown depth image", func() error {
			_, err := (&CompressedImage{Width: 2, Height: 2, ColorDepth: 24, Data: data}).Decompress()
			return err
		}},
		{"tilemap", func() error {
			_, err := (&CompressedTilemap{Width: 1, Height: 1, BitsPerTile: 32, Data: data}).Tiles()
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), "exceeds") {
				t.Errorf("error = %v, want inflate limit error", err)
			}
		})
	}
}

func TestInflate_Limit(t *testing.T) {
	data, err := Deflate([]byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("Deflate failed: %v", err)
	}
	if got, err := Inflate(data, 4); err != nil || !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("Inflate(limit 4) = %v, %v", got, err)
	}
	if _, err := Inflate(data, 3); err == nil {
		t.Error("expected error for output past limit")
	}
}

func TestCel_Tiles(t *testing.T) {
	tests := []struct {
		name  string
		bits  uint16
		entry func(w *iox.Writer, v uint32)
	}{
		{"8 bit", 8, func(w *iox.Writer, v uint32) { w.U8(uint8(v)) }},
		{"16 bit", 16, func(w *iox.Writer, v uint32) { w.U16(uint16(v)) }},
		{"32 bit", 32, func(w *iox.Writer, v uint32) { w.U32(v) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Deflate(le(func(w *iox.Writer) {
				tt.entry(w, 0x05)
				tt.entry(w, 0x42)
			}))
			if err != nil {
				t.Fatalf("Deflate failed: %v", err)
			}
			tm := &CompressedTilemap{
				Width:            2,
				Height:           1,
				BitsPerTile:      tt.bits,
				TileIDMask:       0x0f,
				XFlipMask:        0x40,
				YFlipMask:        0x20,
				DiagonalFlipMask: 0x10,
				Data:             data,
			}

			tiles, err := tm.Tiles()
			if err != nil {
				t.Fatalf("Tiles failed: %v", err)
			}
			want := []TileRef{
				{ID: 5},
				{ID: 2, XFlip: true},
			}
			if len(tiles) != len(want) {
				t.Fatalf("len(tiles) = %d, want %d", len(tiles), len(want))
			}
			for i := range want {
				if tiles[i] != want[i] {
					t.Errorf("tiles[%d] = %+v, want %+v", i, tiles[i], want[i])
				}
			}
		})
	}
}

func TestCel_TilesFromFixture(t *testing.T) {
	for _, fx := range fixtures(t) {
		if fx.name != "cel_compressed_tilemap" {
			continue
		}
		env, _, err := decodeBytes(t, fx.chunk, fx.header)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		tm := env.Payload.(*Cel).Content.(*CompressedTilemap)
		tiles, err := tm.Tiles()
		if err != nil {
			t.Fatalf("Tiles failed: %v", err)
		}
		if len(tiles) != 2 {
			t.Fatalf("len(tiles) = %d, want 2", len(tiles))
		}
		if tiles[0] != (TileRef{ID: 7}) {
			t.Errorf("tiles[0] = %+v", tiles[0])
		}
		if tiles[1] != (TileRef{ID: 3, XFlip: true}) {
			t.Errorf("tiles[1] = %+v", tiles[1])
		}
	}
}

func TestCel_TilesUnsupportedBits(t *testing.T) {
	data, _ := Deflate([]byte{0, 0, 0})
	tm := &CompressedTilemap{Width: 1, Height: 1, BitsPerTile: 24, Data: data}
	if _, err := tm.Tiles(); err == nil {
		t.Error("expected error for 24 bits per tile")
	}
}

func TestCel_Linked(t *testing.T) {
	raw := celChunk(CelTypeLinked, func(w *iox.Writer) { w.U16(12) })
	env, _, err := decodeBytes(t, raw, rgbaHeader)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	lc := env.Payload.(*Cel).Content.(*LinkedCel)
	if lc.FramePosition != 12 {
		t.Errorf("FramePosition = %d, want 12", lc.FramePosition)
	}
}

func TestCel_DeclaredSizeTooSmall(t *testing.T) {
	tests := []struct {
		name string
		typ  CelType
		size uint32
	}{
		{"compressed image", CelTypeCompressedImage, 25},
		{"compressed tilemap", CelTypeCompressedTilemap, 53},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := celChunk(tt.typ, func(w *iox.Writer) { w.Zero(40) })
			raw[0] = byte(tt.size)
			raw[1], raw[2], raw[3] = 0, 0, 0

			_, _, err := decodeBytes(t, raw, rgbaHeader)
			if kind, ok := KindOf(err); !ok || kind != ErrorMalformed {
				t.Fatalf("expected malformed error, got %v", err)
			}
			if size, _ := DeclaredSize(err); size != tt.size {
				t.Errorf("DeclaredSize = %d, want %d", size, tt.size)
			}
		})
	}
}

func TestCel_UnknownType(t *testing.T) {
	raw := celChunk(CelType(9), func(w *iox.Writer) { w.Zero(4) })
	_, _, err := decodeBytes(t, raw, rgbaHeader)
	if kind, ok := KindOf(err); !ok || kind != ErrorMalformed {
		t.Fatalf("expected malformed error, got %v", err)
	}
	if IsUnknownChunkType(err) {
		t.Error("unknown cel type must not read as unknown chunk type")
	}
}
