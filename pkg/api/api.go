// Package api contains shared JSON request/response structs.
// This package is shared between the CLI, the task client and the simulator.
package api

import "encoding/json"

// PipelineRequest identifies a pipeline in status and retrieve calls.
type PipelineRequest struct {
	PipelineID string `json:"pipelineId"`
}

// PipelineResponse is returned by every initiate and get-status call.
type PipelineResponse struct {
	PipelineID string `json:"pipelineId"`
	Status     string `json:"status"`
}

// SearchRequest is the body of POST /imagery/search/initiate.
type SearchRequest struct {
	Provider        string          `json:"provider"`
	Dataset         string          `json:"dataset"`
	Extent          json.RawMessage `json:"extent"`
	StartDatetime   string          `json:"startDatetime,omitempty"`
	EndDatetime     string          `json:"endDatetime,omitempty"`
	MinIntersection *float64        `json:"minIntersection,omitempty"`
}

// SearchResponse is the body of POST /imagery/search/retrieve.
type SearchResponse struct {
	Results []SceneMetadata `json:"results"`
	Cursor  *string         `json:"cursor,omitempty"`
}

// SceneMetadata describes one scene found by a search.
type SceneMetadata struct {
	SceneID          string          `json:"sceneId"`
	Provider         string          `json:"provider"`
	Dataset          string          `json:"dataset"`
	Satellite        string          `json:"satellite"`
	Datetime         string          `json:"datetime"`
	CRSEpsg          int             `json:"crsEpsg"`
	Footprint        json.RawMessage `json:"footprint,omitempty"`
	OffNadir         *float64        `json:"offNadir,omitempty"`
	SunElevation     *float64        `json:"sunElevation,omitempty"`
	SunAzimuth       *float64        `json:"sunAzimuth,omitempty"`
	SatelliteAzimuth *float64        `json:"satelliteAzimuth,omitempty"`
	CloudCover       *float64        `json:"cloudCover,omitempty"`
	AnomalousRatio   *float64        `json:"anomalousRatio,omitempty"`
	Bands            []Band          `json:"bands"`
}

// Band describes one spectral channel.
// Names[0] is the channel's primary name ("red", "nir", ...).
type Band struct {
	Names                  []string `json:"names"`
	BitDepth               int      `json:"bitDepth"`
	GSD                    float64  `json:"gsd"`
	PixelSizeX             float64  `json:"pixelSizeX"`
	PixelSizeY             float64  `json:"pixelSizeY"`
	CRSOriginX             float64  `json:"crsOriginX"`
	CRSOriginY             float64  `json:"crsOriginY"`
	ApproximateResolutionX float64  `json:"approximateResolutionX"`
	ApproximateResolutionY float64  `json:"approximateResolutionY"`
	RadianceMult           *float64 `json:"radianceMult,omitempty"`
	RadianceAdd            *float64 `json:"radianceAdd,omitempty"`
	ReflectanceMult        *float64 `json:"reflectanceMult,omitempty"`
	ReflectanceAdd         *float64 `json:"reflectanceAdd,omitempty"`
}

// Name returns the primary channel name, or "" when the band has none.
func (b Band) Name() string {
	if len(b.Names) == 0 {
		return ""
	}
	return b.Names[0]
}

// Radiance returns the radiance scale and offset, defaulting to 1 and 0.
func (b Band) Radiance() (mult, add float64) {
	return valueOr(b.RadianceMult, 1), valueOr(b.RadianceAdd, 0)
}

// Reflectance returns the reflectance scale and offset, defaulting to 1 and 0.
func (b Band) Reflectance() (mult, add float64) {
	return valueOr(b.ReflectanceMult, 1), valueOr(b.ReflectanceAdd, 0)
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// ImageRequest is the body of POST /imagery/get-image/initiate.
type ImageRequest struct {
	SceneID    string          `json:"sceneId"`
	Extent     json.RawMessage `json:"extent"`
	Resolution *float64        `json:"resolution,omitempty"`
}

// ImageResult is the body of POST /imagery/get-image/retrieve.
// URL points to a downloadable SKI archive.
type ImageResult struct {
	Meta   json.RawMessage `json:"meta,omitempty"`
	Extent json.RawMessage `json:"extent,omitempty"`
	URL    string          `json:"url"`
}

// DetectionRequest is the body of POST /kraken/release/{mapType}/geojson/initiate.
type DetectionRequest struct {
	SceneID string          `json:"sceneId"`
	Extent  json.RawMessage `json:"extent"`
}

// Tile is a (zoom, x, y) detection tile, encoded as a JSON array.
type Tile [3]int

// Zoom returns the tile zoom level.
func (t Tile) Zoom() int { return t[0] }

// X returns the tile column.
func (t Tile) X() int { return t[1] }

// Y returns the tile row.
func (t Tile) Y() int { return t[2] }

// DetectionResult is the body of POST /kraken/release/{mapType}/geojson/retrieve.
type DetectionResult struct {
	MapID string `json:"mapId"`
	Tiles []Tile `json:"tiles"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
