// Package detection runs object and change detection on a scene and
// collects the detected features tile by tile.
package detection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"skctl/pkg/api"
)

// DefaultURL is the production detection service.
const DefaultURL = "https://spaceknow-kraken.appspot.com"

func baseURL(u string) string {
	if u == "" {
		return DefaultURL
	}
	return strings.TrimRight(u, "/")
}

// Kraken releases a detection map of MapType for one scene.
type Kraken struct {
	BaseURL string
	SceneID string
	// Extent is a GeoJSON geometry.
	Extent  json.RawMessage
	MapType MapType
}

func (k Kraken) Kind() string { return "kraken/" + string(k.MapType) }

func (k Kraken) InitiateURL() string {
	return fmt.Sprintf("%s/kraken/release/%s/geojson/initiate", baseURL(k.BaseURL), k.MapType)
}

func (k Kraken) RetrieveURL() string {
	return fmt.Sprintf("%s/kraken/release/%s/geojson/retrieve", baseURL(k.BaseURL), k.MapType)
}

func (k Kraken) BuildRequest() (any, error) {
	if !k.MapType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMapType, k.MapType)
	}
	if k.SceneID == "" {
		return nil, errors.New("scene id is required")
	}
	if len(k.Extent) == 0 {
		return nil, errors.New("extent is required")
	}
	return api.DetectionRequest{SceneID: k.SceneID, Extent: k.Extent}, nil
}

func (k Kraken) ParseResult(ctx context.Context, body []byte) (api.DetectionResult, error) {
	var res api.DetectionResult
	if err := json.Unmarshal(body, &res); err != nil {
		return res, fmt.Errorf("failed to parse detection result: %w", err)
	}
	if res.MapID == "" {
		return res, errors.New("detection result has no map id")
	}
	return res, nil
}
