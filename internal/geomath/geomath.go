// Package geomath provides great-circle distance and bearing on a spherical
// earth. Inputs are decimal degrees.
package geomath

import (
	"errors"
	"math"
)

const (
	// EarthRadiusMiles is the mean earth radius in statute miles.
	EarthRadiusMiles = 3959.0
	// EarthRadiusKm is the mean earth radius in kilometers.
	EarthRadiusKm = 6371.0
)

// ErrCoincidentPoints is returned by InitialBearing when both points are the
// same location and no heading exists.
var ErrCoincidentPoints = errors.New("bearing undefined for coincident points")

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DistanceTo returns the great-circle distance to other using radius.
func (c Coordinates) DistanceTo(other Coordinates, radius float64) float64 {
	return GreatCircleDistance(c.Lat, c.Lon, other.Lat, other.Lon, radius)
}

// BearingTo returns the initial bearing from c towards other.
func (c Coordinates) BearingTo(other Coordinates) (float64, error) {
	return InitialBearing(c.Lat, c.Lon, other.Lat, other.Lon)
}

// RadiusForUnit maps a distance unit name ("mi" or "km") to an earth radius.
func RadiusForUnit(unit string) (float64, bool) {
	switch unit {
	case "mi":
		return EarthRadiusMiles, true
	case "km":
		return EarthRadiusKm, true
	}
	return 0, false
}

// GreatCircleDistance returns the haversine distance between two points.
// The result is in the units of radius.
func GreatCircleDistance(lat1, lon1, lat2, lon2, radius float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// Rounding can push a a hair past 1 for antipodal points.
	a = math.Min(1, math.Max(0, a))
	return radius * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// InitialBearing returns the forward azimuth from point 1 to point 2 in
// degrees, normalized to [0, 360).
func InitialBearing(lat1, lon1, lat2, lon2 float64) (float64, error) {
	if coincident(lat1, lon1, lat2, lon2) {
		return 0, ErrCoincidentPoints
	}
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dLambda := toRadians(lon2 - lon1)

	x := math.Sin(dLambda) * math.Cos(phi2)
	y := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	return NormalizeDegrees(toDegrees(math.Atan2(x, y))), nil
}

// NormalizeDegrees maps any angle into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// coincident reports whether two coordinates name the same place. Every
// longitude at a pole is the same point.
func coincident(lat1, lon1, lat2, lon2 float64) bool {
	if lat1 != lat2 {
		return false
	}
	if math.Abs(lat1) == 90 {
		return true
	}
	return normalizeLon(lon1) == normalizeLon(lon2)
}

func normalizeLon(lon float64) float64 {
	lon = NormalizeDegrees(lon + 180)
	return lon - 180
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
