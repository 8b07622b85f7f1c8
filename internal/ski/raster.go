// Package ski decodes SKI imagery containers: a ZIP archive holding a band
// manifest, acquisition metadata and one delta-encoded raster block per band.
package ski

import (
	"encoding/binary"
	"fmt"
)

// SampleFormat is the data-type code stored in a block header.
// The low bit marks a signed type; the code with that bit cleared is the
// bit depth.
type SampleFormat uint16

const (
	Uint8  SampleFormat = 8
	Int8   SampleFormat = 9
	Uint16 SampleFormat = 16
	Int16  SampleFormat = 17
	Uint32 SampleFormat = 32
	Int32  SampleFormat = 33
	Uint64 SampleFormat = 64
	Int64  SampleFormat = 65
)

// Valid reports whether f is one of the known data-type codes.
func (f SampleFormat) Valid() bool {
	switch f {
	case Uint8, Int8, Uint16, Int16, Uint32, Int32, Uint64, Int64:
		return true
	}
	return false
}

// Signed reports whether samples are two's complement integers.
func (f SampleFormat) Signed() bool {
	return f&1 == 1
}

// BitDepth is the sample width in bits.
func (f SampleFormat) BitDepth() int {
	return int(f &^ 1)
}

// BytesPerSample is the sample width in bytes.
func (f SampleFormat) BytesPerSample() int {
	return f.BitDepth() / 8
}

func (f SampleFormat) String() string {
	if !f.Valid() {
		return fmt.Sprintf("SampleFormat(%d)", uint16(f))
	}
	if f.Signed() {
		return fmt.Sprintf("int%d", f.BitDepth())
	}
	return fmt.Sprintf("uint%d", f.BitDepth())
}

// Sample is the set of integer types a raster block can hold.
type Sample interface {
	uint8 | uint16 | uint32 | uint64 | int8 | int16 | int32 | int64
}

// Raster is a decoded band of any sample format.
type Raster interface {
	Format() SampleFormat
	Dims() (rows, cols int)
	// Low8 returns the low 8 bits of the i-th sample in row-major order.
	Low8(i int) uint8
}

// Grid is a rows × cols raster stored in row-major order.
type Grid[T Sample] struct {
	Rows int
	Cols int
	Pix  []T
}

// NewGrid allocates a zeroed grid.
func NewGrid[T Sample](rows, cols int) *Grid[T] {
	return &Grid[T]{Rows: rows, Cols: cols, Pix: make([]T, rows*cols)}
}

// At returns the sample at row r, column c.
func (g *Grid[T]) At(r, c int) T {
	return g.Pix[r*g.Cols+c]
}

// Set stores v at row r, column c.
func (g *Grid[T]) Set(r, c int, v T) {
	g.Pix[r*g.Cols+c] = v
}

// Row returns row r as a slice sharing the grid's storage.
func (g *Grid[T]) Row(r int) []T {
	return g.Pix[r*g.Cols : (r+1)*g.Cols]
}

func (g *Grid[T]) Format() SampleFormat {
	return formatOf[T]()
}

func (g *Grid[T]) Dims() (rows, cols int) {
	return g.Rows, g.Cols
}

func (g *Grid[T]) Low8(i int) uint8 {
	return uint8(g.Pix[i])
}

func formatOf[T Sample]() SampleFormat {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return Uint8
	case int8:
		return Int8
	case uint16:
		return Uint16
	case int16:
		return Int16
	case uint32:
		return Uint32
	case int32:
		return Int32
	case uint64:
		return Uint64
	default:
		return Int64
	}
}

// sampleReader returns a little-endian decoder for one sample of T.
func sampleReader[T Sample]() func([]byte) T {
	switch formatOf[T]().BitDepth() {
	case 8:
		return func(b []byte) T { return T(b[0]) }
	case 16:
		return func(b []byte) T { return T(binary.LittleEndian.Uint16(b)) }
	case 32:
		return func(b []byte) T { return T(binary.LittleEndian.Uint32(b)) }
	default:
		return func(b []byte) T { return T(binary.LittleEndian.Uint64(b)) }
	}
}

// sampleWriter returns a little-endian encoder for one sample of T.
func sampleWriter[T Sample]() func([]byte, T) {
	switch formatOf[T]().BitDepth() {
	case 8:
		return func(b []byte, v T) { b[0] = byte(v) }
	case 16:
		return func(b []byte, v T) { binary.LittleEndian.PutUint16(b, uint16(v)) }
	case 32:
		return func(b []byte, v T) { binary.LittleEndian.PutUint32(b, uint32(v)) }
	default:
		return func(b []byte, v T) { binary.LittleEndian.PutUint64(b, uint64(v)) }
	}
}
