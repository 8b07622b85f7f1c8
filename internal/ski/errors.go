package ski

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptContainer is returned when an archive is missing expected
	// entries or a raster block is truncated.
	ErrCorruptContainer = errors.New("corrupt SKI container")

	// ErrUnsupportedSampleFormat is returned for a block header whose
	// data-type code is not in the lookup table.
	ErrUnsupportedSampleFormat = errors.New("unsupported sample format")

	// ErrMissingBand is returned when composition needs a channel that the
	// container does not carry.
	ErrMissingBand = errors.New("missing band")

	// ErrDimensionMismatch is returned when bands being composed differ in
	// size. It is a kind of ErrCorruptContainer.
	ErrDimensionMismatch = fmt.Errorf("%w: band dimensions differ", ErrCorruptContainer)
)

// BlockError locates a decode failure inside a container.
// Band is -1 when the block was decoded outside of a container.
type BlockError struct {
	Band   int
	Offset int64
	Err    error
}

func (e *BlockError) Error() string {
	if e.Band < 0 {
		return fmt.Sprintf("ski: block offset %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("ski: band %d offset %d: %v", e.Band, e.Offset, e.Err)
}

func (e *BlockError) Unwrap() error {
	return e.Err
}
