// Package geo loads the GeoJSON extents that bound searches and detections.
package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrEmptyExtent is returned for a document that holds no geometry.
var ErrEmptyExtent = errors.New("extent has no geometry")

// ParseExtent reads a GeoJSON Geometry, Feature or FeatureCollection. A
// collection with several features becomes a geometry collection.
func ParseExtent(data []byte) (orb.Geometry, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("invalid GeoJSON: %w", err)
	}

	switch probe.Type {
	case "":
		return nil, errors.New("invalid GeoJSON: missing type")
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("invalid GeoJSON feature: %w", err)
		}
		return nonEmpty(f.Geometry)
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("invalid GeoJSON feature collection: %w", err)
		}
		switch len(fc.Features) {
		case 0:
			return nil, ErrEmptyExtent
		case 1:
			return nonEmpty(fc.Features[0].Geometry)
		}
		coll := make(orb.Collection, 0, len(fc.Features))
		for _, f := range fc.Features {
			if f.Geometry != nil {
				coll = append(coll, f.Geometry)
			}
		}
		return nonEmpty(coll)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("invalid GeoJSON geometry: %w", err)
		}
		return nonEmpty(g.Geometry())
	}
}

func nonEmpty(g orb.Geometry) (orb.Geometry, error) {
	if g == nil {
		return nil, ErrEmptyExtent
	}
	if c, ok := g.(orb.Collection); ok && len(c) == 0 {
		return nil, ErrEmptyExtent
	}
	return g, nil
}

// LoadExtent reads an extent from a GeoJSON file.
func LoadExtent(path string) (orb.Geometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read extent: %w", err)
	}
	g, err := ParseExtent(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Encode returns g as a GeoJSON geometry object.
func Encode(g orb.Geometry) (json.RawMessage, error) {
	data, err := json.Marshal(geojson.NewGeometry(g))
	if err != nil {
		return nil, fmt.Errorf("failed to encode extent: %w", err)
	}
	return data, nil
}

// LoadEncoded reads the extent at path and re-encodes it as a bare
// geometry, ready for a request payload.
func LoadEncoded(path string) (json.RawMessage, error) {
	g, err := LoadExtent(path)
	if err != nil {
		return nil, err
	}
	return Encode(g)
}
