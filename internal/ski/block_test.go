package ski

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func header(code uint16, cols, rows uint32) []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint16(b[0:], code)
	binary.LittleEndian.PutUint32(b[2:], cols)
	binary.LittleEndian.PutUint32(b[6:], rows)
	return b
}

func TestDecodeBlock_RowDeltaUint8(t *testing.T) {
	data := append(header(uint16(Uint8), 2, 2), 10, 20, 5, 5)

	r, err := DecodeBlock(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g, ok := r.(*Grid[uint8])
	if !ok {
		t.Fatalf("expected *Grid[uint8], got %T", r)
	}

	want := []uint8{10, 20, 15, 25}
	for i, v := range want {
		if g.Pix[i] != v {
			t.Errorf("pixel %d: got %d, want %d", i, g.Pix[i], v)
		}
	}
}

func TestDecodeBlock_AccumulatesDownColumns(t *testing.T) {
	// Each column accumulates independently of its neighbours.
	data := append(header(uint16(Uint8), 3, 3),
		10, 20, 30,
		1, 2, 3,
		1, 1, 1,
	)

	r, err := DecodeBlock(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g := r.(*Grid[uint8])

	want := [][]uint8{{10, 20, 30}, {11, 22, 33}, {12, 23, 34}}
	for row := range want {
		for col, v := range want[row] {
			if got := g.At(row, col); got != v {
				t.Errorf("(%d,%d): got %d, want %d", row, col, got, v)
			}
		}
	}
}

func TestDecodeBlock_Uint16LittleEndian(t *testing.T) {
	data := header(uint16(Uint16), 1, 2)
	data = binary.LittleEndian.AppendUint16(data, 1000)
	data = binary.LittleEndian.AppendUint16(data, 24)

	r, err := DecodeBlock(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g := r.(*Grid[uint16])
	if g.At(0, 0) != 1000 || g.At(1, 0) != 1024 {
		t.Errorf("got %v, want [1000 1024]", g.Pix)
	}
	if r.Format() != Uint16 {
		t.Errorf("got format %v, want uint16", r.Format())
	}
}

func roundTrip[T Sample](t *testing.T, rows, cols int, values []T) {
	t.Helper()

	g := NewGrid[T](rows, cols)
	for i := range g.Pix {
		g.Pix[i] = values[i%len(values)]
	}

	var buf bytes.Buffer
	if err := EncodeBlock(&buf, g); err != nil {
		t.Fatalf("EncodeBlock failed: %v", err)
	}
	wantLen := HeaderSize + rows*cols*formatOf[T]().BytesPerSample()
	if buf.Len() != wantLen {
		t.Fatalf("encoded %d bytes, want %d", buf.Len(), wantLen)
	}

	r, err := DecodeBlock(&buf)
	if err != nil {
		t.Fatalf("DecodeBlock failed: %v", err)
	}
	got, ok := r.(*Grid[T])
	if !ok {
		t.Fatalf("decoded %T, want %T", r, g)
	}
	if got.Rows != rows || got.Cols != cols {
		t.Fatalf("decoded %d×%d, want %d×%d", got.Rows, got.Cols, rows, cols)
	}
	for i := range g.Pix {
		if got.Pix[i] != g.Pix[i] {
			t.Fatalf("pixel %d: got %v, want %v", i, got.Pix[i], g.Pix[i])
		}
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	t.Run("uint8", func(t *testing.T) { roundTrip(t, 4, 5, []uint8{0, 255, 1, 128, 7, 254}) })
	t.Run("int8", func(t *testing.T) { roundTrip(t, 4, 5, []int8{-128, 127, 0, -1, 42, 3}) })
	t.Run("uint16", func(t *testing.T) { roundTrip(t, 3, 7, []uint16{0, math.MaxUint16, 300, 2}) })
	t.Run("int16", func(t *testing.T) { roundTrip(t, 3, 7, []int16{math.MinInt16, math.MaxInt16, -5, 9}) })
	t.Run("uint32", func(t *testing.T) { roundTrip(t, 5, 2, []uint32{math.MaxUint32, 0, 70000}) })
	t.Run("int32", func(t *testing.T) { roundTrip(t, 5, 2, []int32{math.MinInt32, math.MaxInt32, -70000}) })
	t.Run("uint64", func(t *testing.T) { roundTrip(t, 2, 3, []uint64{math.MaxUint64, 0, 1 << 40}) })
	t.Run("int64", func(t *testing.T) { roundTrip(t, 2, 3, []int64{math.MinInt64, math.MaxInt64, -1 << 40}) })
	t.Run("single row", func(t *testing.T) { roundTrip(t, 1, 4, []uint16{9, 8, 7}) })
	t.Run("rows longer than the read buffer", func(t *testing.T) {
		roundTrip(t, 3, chunkSamples*2+5, []uint16{1, 500, 65000, 3})
	})
	t.Run("empty", func(t *testing.T) { roundTrip(t, 0, 0, []uint8{1}) })
}

func TestDecodeBlock_Truncated(t *testing.T) {
	// 2×2 uint16 needs 8 data bytes; only 6 are present.
	data := append(header(uint16(Uint16), 2, 2), 1, 0, 2, 0, 3, 0)

	r, err := DecodeBlock(bytes.NewReader(data))
	if err == nil {
		t.Fatal("expected error for truncated block")
	}
	if r != nil {
		t.Errorf("expected no raster, got %v", r)
	}
	if !errors.Is(err, ErrCorruptContainer) {
		t.Errorf("expected ErrCorruptContainer, got: %v", err)
	}

	var blockErr *BlockError
	if !errors.As(err, &blockErr) {
		t.Fatalf("expected *BlockError, got %T", err)
	}
	if blockErr.Offset != 16 {
		t.Errorf("got offset %d, want 16", blockErr.Offset)
	}
}

func TestDecodeBlock_HugeHeaderShortData(t *testing.T) {
	// Declares a single row of 2^32-1 uint64 samples but carries two.
	data := header(uint16(Uint64), math.MaxUint32, 1)
	data = binary.LittleEndian.AppendUint64(data, 1)
	data = binary.LittleEndian.AppendUint64(data, 2)

	r, err := DecodeBlock(bytes.NewReader(data))
	if !errors.Is(err, ErrCorruptContainer) {
		t.Fatalf("expected ErrCorruptContainer, got: %v", err)
	}
	if r != nil {
		t.Errorf("expected no raster, got %T", r)
	}
	var blockErr *BlockError
	if !errors.As(err, &blockErr) || blockErr.Offset != int64(len(data)) {
		t.Errorf("got %v, want offset %d", err, len(data))
	}
}

func TestDecodeBlock_TruncatedWithKnownSize(t *testing.T) {
	data := append(header(uint16(Uint8), 4, 4), 1, 2, 3)

	_, err := decodeBlock(bytes.NewReader(data), 2, int64(len(data)))
	if !errors.Is(err, ErrCorruptContainer) {
		t.Fatalf("expected ErrCorruptContainer, got: %v", err)
	}
	var blockErr *BlockError
	if !errors.As(err, &blockErr) || blockErr.Band != 2 {
		t.Errorf("expected BlockError for band 2, got: %v", err)
	}
}

func TestDecodeBlock_ShortHeader(t *testing.T) {
	_, err := DecodeBlock(bytes.NewReader([]byte{8, 0, 1}))
	if !errors.Is(err, ErrCorruptContainer) {
		t.Errorf("expected ErrCorruptContainer, got: %v", err)
	}
}

func TestDecodeBlock_UnsupportedFormat(t *testing.T) {
	for _, code := range []uint16{0, 1, 12, 24, 128} {
		data := append(header(code, 1, 1), 0, 0, 0, 0, 0, 0, 0, 0)
		_, err := DecodeBlock(bytes.NewReader(data))
		if !errors.Is(err, ErrUnsupportedSampleFormat) {
			t.Errorf("code %d: expected ErrUnsupportedSampleFormat, got: %v", code, err)
		}
	}
}

func TestSampleFormat(t *testing.T) {
	tests := []struct {
		format SampleFormat
		signed bool
		bits   int
		name   string
	}{
		{Uint8, false, 8, "uint8"},
		{Int8, true, 8, "int8"},
		{Uint16, false, 16, "uint16"},
		{Int16, true, 16, "int16"},
		{Uint32, false, 32, "uint32"},
		{Int32, true, 32, "int32"},
		{Uint64, false, 64, "uint64"},
		{Int64, true, 64, "int64"},
	}
	for _, tt := range tests {
		if tt.format.Signed() != tt.signed {
			t.Errorf("%v: Signed() = %v, want %v", tt.format, tt.format.Signed(), tt.signed)
		}
		if tt.format.BitDepth() != tt.bits {
			t.Errorf("%v: BitDepth() = %d, want %d", tt.format, tt.format.BitDepth(), tt.bits)
		}
		if tt.format.BytesPerSample() != tt.bits/8 {
			t.Errorf("%v: BytesPerSample() = %d, want %d", tt.format, tt.format.BytesPerSample(), tt.bits/8)
		}
		if tt.format.String() != tt.name {
			t.Errorf("String() = %q, want %q", tt.format.String(), tt.name)
		}
	}
	if SampleFormat(10).Valid() {
		t.Error("code 10 should not be valid")
	}
}
