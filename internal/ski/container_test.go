package ski

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"

	"skctl/pkg/api"
)

func bands(names ...string) []api.Band {
	out := make([]api.Band, len(names))
	for i, n := range names {
		out[i] = api.Band{Names: []string{n}, BitDepth: 8}
	}
	return out
}

func filled[T Sample](rows, cols int, v T) *Grid[T] {
	g := NewGrid[T](rows, cols)
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func buildArchive(t *testing.T, m Manifest, rasters ...Raster) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteManifest(m); err != nil {
		t.Fatalf("WriteManifest failed: %v", err)
	}
	for _, r := range rasters {
		if err := w.AddBand(r); err != nil {
			t.Fatalf("AddBand failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return buf.Bytes()
}

func TestOpen_BandCountMismatch(t *testing.T) {
	data := buildArchive(t, Manifest{Bands: bands("red", "green", "blue")},
		filled[uint8](2, 2, 1),
		filled[uint8](2, 2, 2),
	)

	c, err := Read(data)
	if !errors.Is(err, ErrCorruptContainer) {
		t.Fatalf("expected ErrCorruptContainer, got: %v", err)
	}
	if c != nil {
		t.Error("expected no container on error")
	}
}

func TestOpen_MissingBlockIndex(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, _ := zw.Create(ManifestName)
	_ = json.NewEncoder(f).Encode(Manifest{Bands: bands("red", "green")})
	for _, name := range []string{BlockName(0), BlockName(5)} {
		f, _ := zw.Create(name)
		_ = EncodeBlock(f, filled[uint8](1, 1, 1))
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close failed: %v", err)
	}

	_, err := Read(buf.Bytes())
	if !errors.Is(err, ErrCorruptContainer) {
		t.Errorf("expected ErrCorruptContainer, got: %v", err)
	}
}

func TestOpen_NoManifest(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, _ := zw.Create(BlockName(0))
	_ = EncodeBlock(f, filled[uint8](1, 1, 1))
	zw.Close()

	_, err := Read(buf.Bytes())
	if !errors.Is(err, ErrCorruptContainer) {
		t.Errorf("expected ErrCorruptContainer, got: %v", err)
	}
}

func TestOpen_NotAnArchive(t *testing.T) {
	_, err := Read([]byte("definitely not a zip file"))
	if !errors.Is(err, ErrCorruptContainer) {
		t.Errorf("expected ErrCorruptContainer, got: %v", err)
	}
}

func TestContainer_DecodeInManifestOrder(t *testing.T) {
	cloud := 0.25
	scene := &api.SceneMetadata{SceneID: "scene-1", Satellite: "WV03", Datetime: "2020-01-02 10:00:00", CloudCover: &cloud}
	data := buildArchive(t, Manifest{Bands: bands("nir", "red"), Scene: scene},
		filled[uint16](2, 3, 500),
		filled[int8](2, 3, -4),
	)

	c, err := Read(data)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	defer c.Close()

	if c.NumBands() != 2 {
		t.Fatalf("got %d bands, want 2", c.NumBands())
	}
	if c.Manifest.Scene == nil || c.Manifest.Scene.SceneID != "scene-1" {
		t.Fatalf("scene metadata not read: %+v", c.Manifest.Scene)
	}
	if *c.Manifest.Scene.CloudCover != 0.25 {
		t.Errorf("got cloud cover %v, want 0.25", *c.Manifest.Scene.CloudCover)
	}

	decoded, err := c.Decode(context.Background())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded[0].Band.Name() != "nir" || decoded[1].Band.Name() != "red" {
		t.Errorf("got bands %q, %q", decoded[0].Band.Name(), decoded[1].Band.Name())
	}
	if decoded[0].Raster.Format() != Uint16 || decoded[1].Raster.Format() != Int8 {
		t.Errorf("got formats %v, %v", decoded[0].Raster.Format(), decoded[1].Raster.Format())
	}
	if got := decoded[1].Raster.(*Grid[int8]).At(1, 2); got != -4 {
		t.Errorf("got sample %d, want -4", got)
	}
}

func TestContainer_NoMetadata(t *testing.T) {
	data := buildArchive(t, Manifest{Bands: bands("red")}, filled[uint8](1, 1, 9))

	c, err := Read(data)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if c.Manifest.Scene != nil {
		t.Errorf("expected nil scene, got %+v", c.Manifest.Scene)
	}
}

func TestContainer_BandErrorCarriesIndex(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, _ := zw.Create(ManifestName)
	_ = json.NewEncoder(f).Encode(Manifest{Bands: bands("red", "green")})
	f, _ = zw.Create(BlockName(0))
	_ = EncodeBlock(f, filled[uint8](2, 2, 1))
	f, _ = zw.Create(BlockName(1))
	_, _ = f.Write(append(header(uint16(Uint8), 2, 2), 1, 2))
	zw.Close()

	c, err := Read(buf.Bytes())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	_, err = c.Decode(context.Background())
	if !errors.Is(err, ErrCorruptContainer) {
		t.Fatalf("expected ErrCorruptContainer, got: %v", err)
	}
	var blockErr *BlockError
	if !errors.As(err, &blockErr) {
		t.Fatalf("expected *BlockError, got %T", err)
	}
	if blockErr.Band != 1 {
		t.Errorf("got band %d, want 1", blockErr.Band)
	}
}

func TestContainer_BandOutOfRange(t *testing.T) {
	data := buildArchive(t, Manifest{Bands: bands("red")}, filled[uint8](1, 1, 9))
	c, err := Read(data)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if _, err := c.Band(1); err == nil {
		t.Error("expected error for band index 1")
	}
}

func TestContainer_DecodeCancelled(t *testing.T) {
	data := buildArchive(t, Manifest{Bands: bands("red")}, filled[uint8](1, 1, 9))
	c, err := Read(data)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Decode(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}

func TestOpenFile_RGB(t *testing.T) {
	data := buildArchive(t, Manifest{Bands: bands("blue", "green", "red", "nir")},
		filled[uint8](2, 2, 3),
		filled[uint8](2, 2, 2),
		filled[uint8](2, 2, 1),
		filled[uint8](2, 2, 200),
	)
	path := filepath.Join(t.TempDir(), "scene.ski")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write archive: %v", err)
	}

	c, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer c.Close()

	img, err := c.RGB(context.Background())
	if err != nil {
		t.Fatalf("RGB failed: %v", err)
	}
	b, g, r := img.BGR(1, 1)
	if b != 3 || g != 2 || r != 1 {
		t.Errorf("got BGR (%d,%d,%d), want (3,2,1)", b, g, r)
	}
}

func TestOpenFile_Missing(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "missing.ski"))
	if err == nil {
		t.Error("expected error for missing file")
	}
}
