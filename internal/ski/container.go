package ski

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/klauspost/compress/zip"

	"skctl/pkg/api"
)

const (
	// ManifestName is the archive entry declaring the ordered bands.
	ManifestName = "info.json"
	// MetadataName is the archive entry holding acquisition metadata.
	MetadataName = "meta.json"
	// BlockExt is the extension of raster block entries.
	BlockExt = ".skb"
	// ArchiveExt is the usual extension of a SKI archive file.
	ArchiveExt = ".ski"
)

var blockNamePattern = regexp.MustCompile(`^(\d{5})\.skb$`)

// BlockName returns the archive entry name of the block for band index i.
func BlockName(i int) string {
	return fmt.Sprintf("%05d%s", i, BlockExt)
}

// Manifest describes the bands of a container and the scene they came from.
type Manifest struct {
	Bands []api.Band `json:"bands"`
	// Scene is read from meta.json and is nil when the archive has none.
	Scene *api.SceneMetadata `json:"-"`
}

// BandRaster pairs a band descriptor with its decoded samples.
type BandRaster struct {
	Band   api.Band
	Raster Raster
}

// Container is an opened SKI archive. Blocks are decoded on demand.
type Container struct {
	Manifest Manifest

	blocks []*zip.File
	closer io.Closer
}

// Read opens a container held entirely in memory.
func Read(data []byte) (*Container, error) {
	return Open(bytes.NewReader(data), int64(len(data)))
}

// OpenFile opens a container on disk. The caller must Close it.
func OpenFile(path string) (*Container, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptContainer, err)
	}
	c, err := newContainer(&rc.Reader)
	if err != nil {
		rc.Close()
		return nil, err
	}
	c.closer = rc
	return c, nil
}

// Open reads the manifest of the archive in r and checks that every band it
// declares has a raster block.
func Open(r io.ReaderAt, size int64) (*Container, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptContainer, err)
	}
	return newContainer(zr)
}

func newContainer(zr *zip.Reader) (*Container, error) {
	var (
		manifest *zip.File
		meta     *zip.File
		found    = make(map[int]*zip.File)
	)
	for _, f := range zr.File {
		switch f.Name {
		case ManifestName:
			manifest = f
			continue
		case MetadataName:
			meta = f
			continue
		}
		if m := blockNamePattern.FindStringSubmatch(f.Name); m != nil {
			idx, _ := strconv.Atoi(m[1])
			found[idx] = f
		}
	}

	if manifest == nil {
		return nil, fmt.Errorf("%w: no %s entry", ErrCorruptContainer, ManifestName)
	}

	c := &Container{}
	if err := readJSON(manifest, &c.Manifest); err != nil {
		return nil, err
	}
	if meta != nil {
		var scene api.SceneMetadata
		if err := readJSON(meta, &scene); err != nil {
			return nil, err
		}
		c.Manifest.Scene = &scene
	}

	n := len(c.Manifest.Bands)
	if len(found) != n {
		return nil, fmt.Errorf("%w: manifest lists %d bands, archive holds %d blocks", ErrCorruptContainer, n, len(found))
	}
	c.blocks = make([]*zip.File, n)
	for i := 0; i < n; i++ {
		f, ok := found[i]
		if !ok {
			return nil, fmt.Errorf("%w: no block %s for band %d", ErrCorruptContainer, BlockName(i), i)
		}
		c.blocks[i] = f
	}

	return c, nil
}

func readJSON(f *zip.File, v any) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrCorruptContainer, f.Name, err)
	}
	defer rc.Close()

	if err := json.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrCorruptContainer, f.Name, err)
	}
	return nil
}

// Close releases the underlying file, if any.
func (c *Container) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// NumBands returns the number of bands declared by the manifest.
func (c *Container) NumBands() int {
	return len(c.blocks)
}

// Band decodes the raster block of band index i.
func (c *Container) Band(i int) (Raster, error) {
	if i < 0 || i >= len(c.blocks) {
		return nil, fmt.Errorf("band index %d out of range [0,%d)", i, len(c.blocks))
	}
	f := c.blocks[i]
	rc, err := f.Open()
	if err != nil {
		return nil, &BlockError{Band: i, Offset: 0, Err: fmt.Errorf("%w: open %s: %v", ErrCorruptContainer, f.Name, err)}
	}
	defer rc.Close()

	return decodeBlock(rc, i, int64(f.UncompressedSize64))
}

// Decode decodes every band in manifest order. ctx is checked between
// bands; decoding itself does no I/O beyond the archive.
func (c *Container) Decode(ctx context.Context) ([]BandRaster, error) {
	out := make([]BandRaster, 0, len(c.blocks))
	for i := range c.blocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := c.Band(i)
		if err != nil {
			return nil, err
		}
		out = append(out, BandRaster{Band: c.Manifest.Bands[i], Raster: r})
	}
	return out, nil
}

// RGB decodes the container and composes its red, green and blue bands.
func (c *Container) RGB(ctx context.Context) (*Composite, error) {
	bands, err := c.Decode(ctx)
	if err != nil {
		return nil, err
	}
	return Compose(bands)
}
