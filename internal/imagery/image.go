package imagery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"skctl/internal/ski"
	"skctl/internal/task"
	"skctl/pkg/api"
)

// GetImage extracts the part of a scene covered by Extent.
type GetImage struct {
	BaseURL string
	SceneID string
	Extent  json.RawMessage
	// Resolution is the requested ground sample distance in metres.
	Resolution *float64
}

func (g GetImage) Kind() string        { return "get-image" }
func (g GetImage) InitiateURL() string { return baseURL(g.BaseURL) + "/imagery/get-image/initiate" }
func (g GetImage) RetrieveURL() string { return baseURL(g.BaseURL) + "/imagery/get-image/retrieve" }

func (g GetImage) BuildRequest() (any, error) {
	if g.SceneID == "" {
		return nil, errors.New("scene id is required")
	}
	if len(g.Extent) == 0 {
		return nil, errNoExtent
	}
	if g.Resolution != nil && *g.Resolution <= 0 {
		return nil, fmt.Errorf("resolution must be positive, got %v", *g.Resolution)
	}
	return api.ImageRequest{SceneID: g.SceneID, Extent: g.Extent, Resolution: g.Resolution}, nil
}

func (g GetImage) ParseResult(ctx context.Context, body []byte) (api.ImageResult, error) {
	var res api.ImageResult
	if err := json.Unmarshal(body, &res); err != nil {
		return res, fmt.Errorf("failed to parse image result: %w", err)
	}
	if res.URL == "" {
		return res, errors.New("image result has no archive url")
	}
	return res, nil
}

// Downloader fetches the SKI archives that image results point to.
type Downloader struct {
	client *task.Client
}

// NewDownloader returns a Downloader that uses c for HTTP.
func NewDownloader(c *task.Client) *Downloader {
	return &Downloader{client: c}
}

// Archive downloads the raw archive bytes of res.
func (d *Downloader) Archive(ctx context.Context, res api.ImageResult) ([]byte, error) {
	return d.client.Download(ctx, res.URL)
}

// Fetch downloads and opens the archive of res. The archive is held in
// memory, so the container needs no Close.
func (d *Downloader) Fetch(ctx context.Context, res api.ImageResult) (*ski.Container, error) {
	data, err := d.Archive(ctx, res)
	if err != nil {
		return nil, fmt.Errorf("failed to download archive: %w", err)
	}
	return ski.Read(data)
}
