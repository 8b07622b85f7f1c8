package ski

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// HeaderSize is the length of the fixed block header:
// uint16 data-type code, uint32 column count, uint32 row count.
const HeaderSize = 10

// maxPrealloc caps the number of samples allocated up front, so a corrupt
// header cannot force a huge allocation before the data runs out.
const maxPrealloc = 1 << 22

// chunkSamples bounds the read buffer; long rows are read in pieces.
const chunkSamples = 1 << 14

type blockHeader struct {
	Code uint16
	Cols uint32
	Rows uint32
}

// DecodeBlock reads one raster block from r.
//
// Rows are stored as deltas: row 0 verbatim, and every later sample is the
// stored value plus the sample directly above it, in the block's own
// integer width.
func DecodeBlock(r io.Reader) (Raster, error) {
	return decodeBlock(r, -1, -1)
}

// decodeBlock decodes a block for band index band. size, when not negative,
// is the number of bytes available and lets a short block fail before any
// sample is read.
func decodeBlock(r io.Reader, band int, size int64) (Raster, error) {
	var hdr blockHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, &BlockError{Band: band, Offset: 0, Err: fmt.Errorf("%w: short header: %v", ErrCorruptContainer, err)}
	}

	format := SampleFormat(hdr.Code)
	if !format.Valid() {
		return nil, &BlockError{Band: band, Offset: 0, Err: fmt.Errorf("%w: data-type code %d", ErrUnsupportedSampleFormat, hdr.Code)}
	}

	rows, cols := int64(hdr.Rows), int64(hdr.Cols)
	bps := int64(format.BytesPerSample())
	if cols > 0 && rows > (math.MaxInt64-HeaderSize)/(cols*bps) {
		return nil, &BlockError{Band: band, Offset: 0, Err: fmt.Errorf("%w: %d×%d block overflows", ErrCorruptContainer, rows, cols)}
	}
	need := HeaderSize + rows*cols*bps
	if size >= 0 && need > size {
		return nil, &BlockError{Band: band, Offset: size, Err: fmt.Errorf("%w: %d×%d %s block needs %d bytes, have %d", ErrCorruptContainer, rows, cols, format, need, size)}
	}

	switch format {
	case Uint8:
		return decodeGrid[uint8](r, band, int(rows), int(cols))
	case Int8:
		return decodeGrid[int8](r, band, int(rows), int(cols))
	case Uint16:
		return decodeGrid[uint16](r, band, int(rows), int(cols))
	case Int16:
		return decodeGrid[int16](r, band, int(rows), int(cols))
	case Uint32:
		return decodeGrid[uint32](r, band, int(rows), int(cols))
	case Int32:
		return decodeGrid[int32](r, band, int(rows), int(cols))
	case Uint64:
		return decodeGrid[uint64](r, band, int(rows), int(cols))
	default:
		return decodeGrid[int64](r, band, int(rows), int(cols))
	}
}

func decodeGrid[T Sample](r io.Reader, band, rows, cols int) (Raster, error) {
	if cols == 0 {
		return &Grid[T]{Rows: rows, Cols: cols, Pix: []T{}}, nil
	}

	size := formatOf[T]().BytesPerSample()
	read := sampleReader[T]()

	pix := make([]T, 0, min(rows*cols, maxPrealloc))
	buf := make([]byte, min(cols, chunkSamples)*size)
	offset := int64(HeaderSize)
	for row := 0; row < rows; row++ {
		start := len(pix)
		for c := 0; c < cols; {
			chunk := buf[:min(cols-c, chunkSamples)*size]
			n, err := io.ReadFull(r, chunk)
			offset += int64(n)
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					err = fmt.Errorf("%w: row %d of %d truncated", ErrCorruptContainer, row, rows)
				} else {
					err = fmt.Errorf("%w: row %d: %v", ErrCorruptContainer, row, err)
				}
				return nil, &BlockError{Band: band, Offset: offset, Err: err}
			}
			for i := 0; i < len(chunk); i += size {
				pix = append(pix, read(chunk[i:]))
			}
			c += len(chunk) / size
		}

		if row > 0 {
			prev := pix[start-cols : start]
			cur := pix[start:]
			for c := range cur {
				cur[c] += prev[c]
			}
		}
	}

	return &Grid[T]{Rows: rows, Cols: cols, Pix: pix}, nil
}

// EncodeBlock writes g as a delta-encoded raster block, the inverse of
// DecodeBlock.
func EncodeBlock[T Sample](w io.Writer, g *Grid[T]) error {
	hdr := blockHeader{
		Code: uint16(formatOf[T]()),
		Cols: uint32(g.Cols),
		Rows: uint32(g.Rows),
	}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("failed to write block header: %w", err)
	}

	size := formatOf[T]().BytesPerSample()
	put := sampleWriter[T]()
	buf := make([]byte, g.Cols*size)
	for row := 0; row < g.Rows; row++ {
		cur := g.Row(row)
		for c, v := range cur {
			if row > 0 {
				v -= g.Pix[(row-1)*g.Cols+c]
			}
			put(buf[c*size:], v)
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row, err)
		}
	}
	return nil
}

// EncodeRaster writes any decoded raster back as a block.
func EncodeRaster(w io.Writer, r Raster) error {
	switch g := r.(type) {
	case *Grid[uint8]:
		return EncodeBlock(w, g)
	case *Grid[int8]:
		return EncodeBlock(w, g)
	case *Grid[uint16]:
		return EncodeBlock(w, g)
	case *Grid[int16]:
		return EncodeBlock(w, g)
	case *Grid[uint32]:
		return EncodeBlock(w, g)
	case *Grid[int32]:
		return EncodeBlock(w, g)
	case *Grid[uint64]:
		return EncodeBlock(w, g)
	case *Grid[int64]:
		return EncodeBlock(w, g)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedSampleFormat, r)
	}
}
