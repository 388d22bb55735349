// Package geo holds distance and geohash helpers for problem locations.
package geo

import (
	"math"

	"mojgrad-go/internal/models"

	"github.com/mmcloughlin/geohash"
	"github.com/shopspring/decimal"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula
const EarthRadiusMeters = 6371008.8

// GeohashPrecision is the number of characters stored with each problem
const GeohashPrecision = 10

// DefaultLocation is used when a reporter has no known position
var DefaultLocation = models.GeoPoint{Lat: 44.787197, Lng: 20.457273}

// DistanceMeters returns the great-circle distance between a and b
func DistanceMeters(a, b models.GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// FormatDistance renders a distance for notifications: anything under
// 100 m is "manje od 100m", otherwise whole meters.
func FormatDistance(meters float64) string {
	if meters < 100 {
		return "manje od 100m"
	}
	return decimal.NewFromFloat(meters).Round(0).String() + "m"
}

// Valid reports whether p is a usable WGS84 coordinate
func Valid(p models.GeoPoint) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180 &&
		!math.IsNaN(p.Lat) && !math.IsNaN(p.Lng)
}

// Hash encodes p at the stored precision
func Hash(p models.GeoPoint) string {
	return geohash.EncodeWithPrecision(p.Lat, p.Lng, GeohashPrecision)
}

// metersPerDegree is the length of one degree of latitude
const metersPerDegree = EarthRadiusMeters * math.Pi / 180

// cellSides returns the north-south and east-west extent in meters of a
// geohash cell at precision, with the east-west side measured at lat.
func cellSides(precision int, lat float64) (float64, float64) {
	bits := 5 * precision
	lngBits := (bits + 1) / 2
	latBits := bits / 2

	latDeg := 180 / math.Exp2(float64(latBits))
	lngDeg := 360 / math.Exp2(float64(lngBits))
	return latDeg * metersPerDegree, lngDeg * metersPerDegree * math.Cos(lat*math.Pi/180)
}

// NearbyPrefixes returns geohash prefixes whose cells cover every point
// within radius of center: the center cell plus its eight neighbours at the
// finest precision whose cell is at least radius tall and wide. Width is
// taken at the latitude of the circle's pole-ward edge, where cells are
// narrowest.
func NearbyPrefixes(center models.GeoPoint, radiusMeters float64) []string {
	edgeLat := math.Min(math.Abs(center.Lat)+radiusMeters/metersPerDegree, 89.9)

	precision := 1
	for p := GeohashPrecision; p >= 1; p-- {
		latSide, lngSide := cellSides(p, edgeLat)
		if math.Min(latSide, lngSide) >= radiusMeters {
			precision = p
			break
		}
	}

	hash := geohash.EncodeWithPrecision(center.Lat, center.Lng, uint(precision))
	prefixes := append([]string{hash}, geohash.Neighbors(hash)...)

	seen := make(map[string]bool, len(prefixes))
	unique := prefixes[:0]
	for _, p := range prefixes {
		if !seen[p] {
			seen[p] = true
			unique = append(unique, p)
		}
	}
	return unique
}
