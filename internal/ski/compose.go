package ski

import (
	"fmt"
	"image"
	"image/color"
)

// Channel names used to pick bands for an RGB composite.
const (
	ChannelRed   = "red"
	ChannelGreen = "green"
	ChannelBlue  = "blue"
)

// Composite is a 3-channel 8-bit image with interleaved samples stored in
// blue, green, red order.
type Composite struct {
	Rows int
	Cols int
	Pix  []uint8
}

// Compose stacks the bands named blue, green and red (by first channel
// name) into a Composite. Samples are narrowed to their low 8 bits without
// rescaling, so wider bands are expected to already fit.
func Compose(bands []BandRaster) (*Composite, error) {
	blue, err := findBand(bands, ChannelBlue)
	if err != nil {
		return nil, err
	}
	green, err := findBand(bands, ChannelGreen)
	if err != nil {
		return nil, err
	}
	red, err := findBand(bands, ChannelRed)
	if err != nil {
		return nil, err
	}

	rows, cols := blue.Dims()
	for _, r := range []Raster{green, red} {
		if rr, rc := r.Dims(); rr != rows || rc != cols {
			return nil, fmt.Errorf("%w: blue is %d×%d, got %d×%d", ErrDimensionMismatch, rows, cols, rr, rc)
		}
	}

	out := &Composite{Rows: rows, Cols: cols, Pix: make([]uint8, rows*cols*3)}
	for i := 0; i < rows*cols; i++ {
		out.Pix[i*3] = blue.Low8(i)
		out.Pix[i*3+1] = green.Low8(i)
		out.Pix[i*3+2] = red.Low8(i)
	}
	return out, nil
}

func findBand(bands []BandRaster, name string) (Raster, error) {
	for _, b := range bands {
		if b.Band.Name() == name {
			return b.Raster, nil
		}
	}
	return nil, fmt.Errorf("%w: no band named %q", ErrMissingBand, name)
}

// BGR returns the samples of the pixel at column x, row y.
func (c *Composite) BGR(x, y int) (b, g, r uint8) {
	i := (y*c.Cols + x) * 3
	return c.Pix[i], c.Pix[i+1], c.Pix[i+2]
}

func (c *Composite) ColorModel() color.Model {
	return color.RGBAModel
}

func (c *Composite) Bounds() image.Rectangle {
	return image.Rect(0, 0, c.Cols, c.Rows)
}

func (c *Composite) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(c.Bounds()) {
		return color.RGBA{}
	}
	b, g, r := c.BGR(x, y)
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}
