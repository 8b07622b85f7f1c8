package detection

import (
	"errors"
	"fmt"
	"slices"
)

// MapType is a class of objects or changes the backend can detect.
type MapType string

const (
	MapImagery     MapType = "imagery"
	MapAircraft    MapType = "aircraft"
	MapShips       MapType = "ships"
	MapWrunc       MapType = "wrunc"
	MapCars        MapType = "cars"
	MapContainers  MapType = "containers"
	MapBoats       MapType = "boats"
	MapSolarPanels MapType = "solar-panels"
	MapPools       MapType = "pools"
	MapHouses      MapType = "houses"
	MapCoal        MapType = "coal"
	MapCranes      MapType = "cranes"
	MapLithium     MapType = "lithium"
	MapCows        MapType = "cows"
	MapChange      MapType = "change"
	MapS2Change    MapType = "s2-change"
	MapSARChange   MapType = "sar-change"
	MapWruncChange MapType = "wrunc-change"
	MapEME         MapType = "eme"
	MapTrees       MapType = "trees"
	MapNDVI        MapType = "ndvi"
)

// ErrUnknownMapType is returned for a map type outside MapTypes.
var ErrUnknownMapType = errors.New("unknown map type")

var mapTypes = []MapType{
	MapImagery, MapAircraft, MapShips, MapWrunc, MapCars, MapContainers, MapBoats,
	MapSolarPanels, MapPools, MapHouses, MapCoal, MapCranes, MapLithium, MapCows,
	MapChange, MapS2Change, MapSARChange, MapWruncChange, MapEME, MapTrees, MapNDVI,
}

// MapTypes lists every supported map type.
func MapTypes() []MapType {
	return slices.Clone(mapTypes)
}

// ParseMapType validates s.
func ParseMapType(s string) (MapType, error) {
	mt := MapType(s)
	if !mt.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMapType, s)
	}
	return mt, nil
}

func (m MapType) Valid() bool {
	return slices.Contains(mapTypes, m)
}
