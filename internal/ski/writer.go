package ski

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
)

// Writer builds a SKI archive. Bands must be added in manifest order.
type Writer struct {
	zw    *zip.Writer
	bands int
}

// NewWriter returns a Writer that writes the archive to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{zw: zip.NewWriter(w)}
}

// WriteManifest writes info.json and, when m.Scene is set, meta.json.
func (w *Writer) WriteManifest(m Manifest) error {
	if err := w.writeJSON(ManifestName, m); err != nil {
		return err
	}
	if m.Scene != nil {
		return w.writeJSON(MetadataName, m.Scene)
	}
	return nil
}

func (w *Writer) writeJSON(name string, v any) error {
	f, err := w.zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if err := json.NewEncoder(f).Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return nil
}

// AddBand writes the next raster block.
func (w *Writer) AddBand(r Raster) error {
	name := BlockName(w.bands)
	f, err := w.zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if err := EncodeRaster(f, r); err != nil {
		return err
	}
	w.bands++
	return nil
}

// Close finishes the archive. It does not close the underlying writer.
func (w *Writer) Close() error {
	return w.zw.Close()
}
