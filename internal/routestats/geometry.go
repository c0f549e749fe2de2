package routestats

import (
	"math"

	"github.com/kjstillabower/flight-route-analytics/internal/geomath"
	"github.com/kjstillabower/flight-route-analytics/internal/models"
)

// RouteGeometry compares the great-circle length of a route with the
// distance recorded on its flights.
type RouteGeometry struct {
	Origin          string                   `json:"origin"`
	Dest            string                   `json:"dest"`
	ComputedMiles   float64                  `json:"computedMiles"`
	ComputedKm      float64                  `json:"computedKm"`
	Bearing         models.Optional[float64] `json:"bearing"`
	RecordedMiles   models.Optional[float64] `json:"recordedMiles"`
	DifferenceMiles models.Optional[float64] `json:"differenceMiles"`
}

// CompareDistance computes the route's distance and initial bearing and sets
// them against the mean recorded distance of flights. Bearing is unknown for
// coincident airports; the recorded fields are unknown with no flights.
func CompareDistance(origin, dest models.Airport, flights []models.Flight) RouteGeometry {
	from := geomath.Coordinates{Lat: origin.Lat, Lon: origin.Lon}
	to := geomath.Coordinates{Lat: dest.Lat, Lon: dest.Lon}

	g := RouteGeometry{
		Origin:        origin.Code,
		Dest:          dest.Code,
		ComputedMiles: from.DistanceTo(to, geomath.EarthRadiusMiles),
		ComputedKm:    from.DistanceTo(to, geomath.EarthRadiusKm),
	}
	if b, err := from.BearingTo(to); err == nil {
		g.Bearing = models.Some(b)
	}

	var recorded mean
	for _, f := range flights {
		if f.Distance > 0 {
			recorded.add(f.Distance)
		}
	}
	if r, ok := recorded.value().Get(); ok {
		g.RecordedMiles = models.Some(r)
		g.DifferenceMiles = models.Some(math.Abs(g.ComputedMiles - r))
	}
	return g
}
