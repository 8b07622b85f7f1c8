// Package imagery searches the scene catalogue and extracts imagery for a
// scene as SKI containers.
package imagery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"skctl/pkg/api"
)

// DefaultURL is the production imagery service.
const DefaultURL = "https://spaceknow-imagery.appspot.com"

// DatetimeLayout is the UTC timestamp format of search time filters.
const DatetimeLayout = "2006-01-02 15:04:05"

var errNoExtent = errors.New("extent is required")

func baseURL(u string) string {
	if u == "" {
		return DefaultURL
	}
	return strings.TrimRight(u, "/")
}

// Search finds scenes of one dataset that intersect Extent.
type Search struct {
	BaseURL  string
	Provider string
	Dataset  string
	// Extent is a GeoJSON geometry.
	Extent        json.RawMessage
	StartDatetime string
	EndDatetime   string
	// MinIntersection is the minimum covered fraction of Extent, in [0,1].
	MinIntersection *float64
}

func (s Search) Kind() string        { return "search" }
func (s Search) InitiateURL() string { return baseURL(s.BaseURL) + "/imagery/search/initiate" }
func (s Search) RetrieveURL() string { return baseURL(s.BaseURL) + "/imagery/search/retrieve" }

func (s Search) BuildRequest() (any, error) {
	if err := ValidateDataset(s.Provider, s.Dataset); err != nil {
		return nil, err
	}
	if len(s.Extent) == 0 {
		return nil, errNoExtent
	}
	for _, ts := range []string{s.StartDatetime, s.EndDatetime} {
		if ts == "" {
			continue
		}
		if _, err := time.Parse(DatetimeLayout, ts); err != nil {
			return nil, fmt.Errorf("invalid datetime %q, want YYYY-MM-DD HH:MM:SS", ts)
		}
	}
	if mi := s.MinIntersection; mi != nil && (*mi < 0 || *mi > 1) {
		return nil, fmt.Errorf("minIntersection %v is outside [0,1]", *mi)
	}

	return api.SearchRequest{
		Provider:        s.Provider,
		Dataset:         s.Dataset,
		Extent:          s.Extent,
		StartDatetime:   s.StartDatetime,
		EndDatetime:     s.EndDatetime,
		MinIntersection: s.MinIntersection,
	}, nil
}

// ParseResult accepts either {"results": [...]} or a bare array.
func (s Search) ParseResult(ctx context.Context, body []byte) ([]api.SceneMetadata, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var scenes []api.SceneMetadata
		if err := json.Unmarshal(body, &scenes); err != nil {
			return nil, fmt.Errorf("failed to parse scenes: %w", err)
		}
		return scenes, nil
	}

	var resp api.SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse scenes: %w", err)
	}
	return resp.Results, nil
}
