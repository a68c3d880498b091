package matching

import (
	"math"
	"strings"
)

type latLon struct {
	lat float64
	lon float64
}

// cityCoords is a small gazetteer covering the service area. Distance scoring
// only needs band-level accuracy, so city centroids are enough.
var cityCoords = map[string]latLon{
	"denver":            {39.7392, -104.9903},
	"aurora":            {39.7294, -104.8319},
	"lakewood":          {39.7047, -105.0814},
	"arvada":            {39.8028, -105.0875},
	"westminster":       {39.8367, -105.0372},
	"centennial":        {39.5807, -104.8772},
	"thornton":          {39.8680, -104.9719},
	"littleton":         {39.6133, -105.0166},
	"boulder":           {40.0150, -105.2705},
	"longmont":          {40.1672, -105.1019},
	"broomfield":        {39.9205, -105.0867},
	"parker":            {39.5186, -104.7614},
	"castle rock":       {39.3722, -104.8561},
	"golden":            {39.7555, -105.2211},
	"commerce city":     {39.8083, -104.9339},
	"englewood":         {39.6478, -104.9878},
	"wheat ridge":       {39.7661, -105.0772},
	"highlands ranch":   {39.5539, -104.9689},
	"greenwood village": {39.6172, -104.9508},
	"brighton":          {39.9853, -104.8205},
}

const earthRadiusMiles = 3958.8

func haversineMiles(a, b latLon) float64 {
	dLat := (b.lat - a.lat) * math.Pi / 180
	dLon := (b.lon - a.lon) * math.Pi / 180
	lat1 := a.lat * math.Pi / 180
	lat2 := b.lat * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(h))
}

// MilesBetween returns the approximate distance between two known cities.
// ok is false when either city is missing from the gazetteer; callers treat
// that as "too far" rather than guessing.
func MilesBetween(cityA, cityB string) (float64, bool) {
	a, okA := cityCoords[strings.ToLower(strings.TrimSpace(cityA))]
	b, okB := cityCoords[strings.ToLower(strings.TrimSpace(cityB))]
	if !okA || !okB {
		return 0, false
	}
	return haversineMiles(a, b), true
}
