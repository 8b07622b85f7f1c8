package imagery

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// ErrUnknownDataset is returned for a provider or dataset outside the
// catalogue.
var ErrUnknownDataset = errors.New("unknown imagery dataset")

// Providers and their datasets accepted by the search endpoint.
var catalogue = map[string][]string{
	"gbdx": {
		"preview-multispectral",
		"idaho-pansharpened",
		"preview-swir",
		"idaho-swir",
		"preview-panchromatic",
		"idaho-panchromatic",
	},
	"pl": {"PSOrthoTile"},
	"ab": {"spot", "pleiades"},
	"ee": {
		"COPERNICUS/S1_GRD",
		"COPERNICUS/S2",
		"LANDSAT/LC08/C01/T1",
		"LANDSAT/LE07/C01/T1",
		"MODIS/006/MOD08_M3",
		"MODIS/006/MYD08_M3",
	},
}

// Providers returns the known provider names in sorted order.
func Providers() []string {
	out := make([]string, 0, len(catalogue))
	for p := range catalogue {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Datasets returns the datasets offered by provider.
func Datasets(provider string) []string {
	return slices.Clone(catalogue[provider])
}

// ValidateDataset checks provider and dataset against the catalogue.
func ValidateDataset(provider, dataset string) error {
	datasets, ok := catalogue[provider]
	if !ok {
		return fmt.Errorf("%w: provider %q", ErrUnknownDataset, provider)
	}
	if !slices.Contains(datasets, dataset) {
		return fmt.Errorf("%w: %q is not a %s dataset", ErrUnknownDataset, dataset, provider)
	}
	return nil
}
