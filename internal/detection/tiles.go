package detection

import (
	"context"
	"fmt"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"skctl/internal/task"
	"skctl/pkg/api"
)

// AnyGeometry is the geometry id that selects every geometry of a map.
const AnyGeometry = "-"

// TileFetcher downloads the per-tile feature collections of a detection
// map.
type TileFetcher struct {
	client      *task.Client
	baseURL     string
	geometryID  string
	concurrency int
	limiter     *rate.Limiter
}

// TileOption configures a TileFetcher.
type TileOption func(*TileFetcher)

// WithBaseURL overrides the detection service base URL.
func WithBaseURL(u string) TileOption {
	return func(f *TileFetcher) { f.baseURL = baseURL(u) }
}

// WithGeometryID restricts tiles to one geometry of the map.
func WithGeometryID(id string) TileOption {
	return func(f *TileFetcher) { f.geometryID = id }
}

// WithConcurrency bounds the number of tiles fetched at once.
func WithConcurrency(n int) TileOption {
	return func(f *TileFetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithRate limits tile requests to perSecond. Zero or less disables the
// limit.
func WithRate(perSecond float64) TileOption {
	return func(f *TileFetcher) {
		if perSecond <= 0 {
			f.limiter = nil
			return
		}
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
	}
}

// NewTileFetcher returns a fetcher with 4 workers and a 10 requests/s limit.
func NewTileFetcher(c *task.Client, opts ...TileOption) *TileFetcher {
	f := &TileFetcher{
		client:      c,
		baseURL:     DefaultURL,
		geometryID:  AnyGeometry,
		concurrency: 4,
		limiter:     rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// TileURL returns the feature collection URL of one tile.
func (f *TileFetcher) TileURL(mapID string, t api.Tile) string {
	return fmt.Sprintf("%s/kraken/grid/%s/%s/%d/%d/%d/detections.geojson",
		f.baseURL, mapID, f.geometryID, t.Zoom(), t.X(), t.Y())
}

// Features fetches every tile of res and concatenates their features in
// tile order. Features on tile borders may appear more than once. The first
// failing tile cancels the rest.
func (f *TileFetcher) Features(ctx context.Context, res api.DetectionResult) (*geojson.FeatureCollection, error) {
	collected := make([]*geojson.FeatureCollection, len(res.Tiles))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, tile := range res.Tiles {
		g.Go(func() error {
			if f.limiter != nil {
				if err := f.limiter.Wait(ctx); err != nil {
					return err
				}
			}
			body, err := f.client.Get(ctx, "tile", f.TileURL(res.MapID, tile))
			if err != nil {
				return fmt.Errorf("tile %v: %w", tile, err)
			}
			fc, err := geojson.UnmarshalFeatureCollection(body)
			if err != nil {
				return fmt.Errorf("tile %v: failed to parse features: %w", tile, err)
			}
			collected[i] = fc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := geojson.NewFeatureCollection()
	for _, fc := range collected {
		out.Features = append(out.Features, fc.Features...)
	}
	return out, nil
}
