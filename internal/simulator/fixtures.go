package simulator

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"skctl/internal/detection"
	"skctl/internal/imagery"
	"skctl/internal/ski"
	"skctl/pkg/api"
)

const (
	scenesPerSearch = 3
	baseImageSize   = 64
	maxImageSize    = 1024
	maxTiles        = 16
	maxZoom         = maptile.Zoom(16)
)

var satellites = map[string]string{
	"gbdx": "WV03",
	"pl":   "PS2",
	"ab":   "PHR1A",
	"ee":   "Sentinel-2A",
}

func defaultBands() []api.Band {
	names := []string{"red", "green", "blue", "nir"}
	bands := make([]api.Band, len(names))
	for i, n := range names {
		bands[i] = api.Band{
			Names:                  []string{n},
			BitDepth:               12,
			GSD:                    0.5,
			PixelSizeX:             0.5,
			PixelSizeY:             -0.5,
			ApproximateResolutionX: 0.5,
			ApproximateResolutionY: 0.5,
		}
	}
	return bands
}

// generateScenes makes deterministic scenes for a search, one day apart
// starting at the requested start datetime.
func generateScenes(req api.SearchRequest) []api.SceneMetadata {
	start := time.Date(2018, 1, 1, 10, 0, 0, 0, time.UTC)
	if req.StartDatetime != "" {
		if t, err := time.Parse(imagery.DatetimeLayout, req.StartDatetime); err == nil {
			start = t
		}
	}
	var end time.Time
	if req.EndDatetime != "" {
		end, _ = time.Parse(imagery.DatetimeLayout, req.EndDatetime)
	}

	scenes := make([]api.SceneMetadata, 0, scenesPerSearch)
	for i := 0; i < scenesPerSearch; i++ {
		at := start.Add(time.Duration(i) * 24 * time.Hour)
		if !end.IsZero() && at.After(end) {
			break
		}
		name := fmt.Sprintf("%s/%s/%s", req.Provider, req.Dataset, at.Format(time.RFC3339))
		scenes = append(scenes, api.SceneMetadata{
			SceneID:   uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String(),
			Provider:  req.Provider,
			Dataset:   req.Dataset,
			Satellite: satellites[req.Provider],
			Datetime:  at.Format(imagery.DatetimeLayout),
			CRSEpsg:   32633,
			Footprint: req.Extent,
			Bands:     defaultBands(),
		})
	}
	return scenes
}

// imageSize scales the base image by the requested resolution in metres per
// pixel.
func imageSize(resolution *float64) (rows, cols int) {
	cols = baseImageSize
	if resolution != nil {
		cols = int(math.Round(baseImageSize / *resolution))
		cols = min(max(cols, 1), maxImageSize)
	}
	return max(cols*3/4, 1), cols
}

// buildArchive renders a gradient for every band of the scene.
func buildArchive(scene api.SceneMetadata, rows, cols int) ([]byte, error) {
	bands := scene.Bands
	if len(bands) == 0 {
		bands = defaultBands()
	}

	var buf bytes.Buffer
	w := ski.NewWriter(&buf)
	meta := scene
	if err := w.WriteManifest(ski.Manifest{Bands: bands, Scene: &meta}); err != nil {
		return nil, err
	}
	for i := range bands {
		g := ski.NewGrid[uint16](rows, cols)
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				g.Set(r, c, uint16((r*7+c*3+i*50)%4096))
			}
		}
		if err := w.AddBand(g); err != nil {
			return nil, fmt.Errorf("failed to write band %d: %w", i, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return buf.Bytes(), nil
}

// tilesFor covers the extent's bounding box with the highest zoom that keeps
// the tile count at or under maxTiles.
func tilesFor(g orb.Geometry) []api.Tile {
	b := g.Bound()
	for z := maxZoom; ; z-- {
		// Tile rows grow southwards.
		lo := maptile.At(orb.Point{b.Min.X(), b.Max.Y()}, z)
		hi := maptile.At(orb.Point{b.Max.X(), b.Min.Y()}, z)
		n := int(hi.X-lo.X+1) * int(hi.Y-lo.Y+1)
		if n > maxTiles && z > 0 {
			continue
		}

		tiles := make([]api.Tile, 0, n)
		for x := lo.X; x <= hi.X; x++ {
			for y := lo.Y; y <= hi.Y; y++ {
				tiles = append(tiles, api.Tile{int(z), int(x), int(y)})
			}
		}
		return tiles
	}
}

// tileFeatures returns one detection per tile: the tile outline, tagged
// with the map type.
func tileFeatures(mt detection.MapType, t api.Tile) *geojson.FeatureCollection {
	tile := maptile.New(uint32(t.X()), uint32(t.Y()), maptile.Zoom(t.Zoom()))
	f := geojson.NewFeature(tile.Bound().ToPolygon())
	f.Properties["class"] = string(mt)
	f.Properties["tile"] = fmt.Sprintf("%d/%d/%d", t.Zoom(), t.X(), t.Y())

	fc := geojson.NewFeatureCollection()
	fc.Append(f)
	return fc
}
