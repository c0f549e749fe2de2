// Package wind relates a route's heading to the wind observed at departure.
package wind

import (
	"errors"
	"math"
	"time"

	"github.com/kjstillabower/flight-route-analytics/internal/geomath"
	"github.com/kjstillabower/flight-route-analytics/internal/models"
	"github.com/kjstillabower/flight-route-analytics/internal/routestats"
	"github.com/kjstillabower/flight-route-analytics/internal/timenorm"
)

// DefaultTolerance is the widest gap allowed between departure and the
// weather observation used for it.
const DefaultTolerance = 30 * time.Minute

// SkipReason explains why a flight produced no AlignmentRecord. The empty
// value means the flight was not skipped.
type SkipReason string

const (
	SkipNone                SkipReason = ""
	SkipUnknownDeparture    SkipReason = "unknown_departure"
	SkipNoObservation       SkipReason = "no_observation"
	SkipUnknownWind         SkipReason = "unknown_wind"
	SkipCoincidentEndpoints SkipReason = "coincident_endpoints"
)

// AlignmentRecord is one flight's wind alignment. Alignment is positive for a
// tailwind component and negative for a headwind component.
type AlignmentRecord struct {
	Carrier      string                   `json:"carrier"`
	FlightNumber int                      `json:"flight"`
	Tailnum      string                   `json:"tailnum"`
	Departure    time.Time                `json:"departure"`
	ObservedAt   time.Time                `json:"observedAt"`
	Bearing      float64                  `json:"bearing"`
	WindSpeed    float64                  `json:"windSpeed"`
	WindDir      float64                  `json:"windDir"`
	Alignment    float64                  `json:"alignment"`
	AirTime      models.Optional[float64] `json:"airTime"`
	ArrDelay     models.Optional[float64] `json:"arrDelay"`
}

// WindAlignment projects the wind vector onto the heading:
// windSpeed * cos(windDir - bearing).
func WindAlignment(bearingDeg, windSpeed, windDirDeg float64) float64 {
	return windSpeed * math.Cos((windDirDeg-bearingDeg)*math.Pi/180)
}

// PerFlightAlignment computes the alignment for one flight departing origin
// towards dest. It never fails; a flight that cannot be scored is returned
// with a SkipReason.
func PerFlightAlignment(f models.Flight, origin, dest geomath.Coordinates, lookup WeatherLookup, tolerance time.Duration) (AlignmentRecord, SkipReason) {
	bearing, err := origin.BearingTo(dest)
	if errors.Is(err, geomath.ErrCoincidentPoints) {
		return AlignmentRecord{}, SkipCoincidentEndpoints
	}
	departure, ok := timenorm.ToAbsoluteTimestamp(models.Some(f.Date), timenorm.ClockOrUnknown(f.DepTime)).Get()
	if !ok {
		return AlignmentRecord{}, SkipUnknownDeparture
	}
	obs, ok := lookup.Nearest(f.Origin, departure, tolerance)
	if !ok {
		return AlignmentRecord{}, SkipNoObservation
	}
	speed, okSpeed := obs.WindSpeed.Get()
	dir, okDir := obs.WindDir.Get()
	if !okSpeed || !okDir {
		return AlignmentRecord{}, SkipUnknownWind
	}
	return AlignmentRecord{
		Carrier:      f.Carrier,
		FlightNumber: f.FlightNumber,
		Tailnum:      f.Tailnum,
		Departure:    departure,
		ObservedAt:   obs.Time(),
		Bearing:      bearing,
		WindSpeed:    speed,
		WindDir:      dir,
		Alignment:    WindAlignment(bearing, speed, dir),
		AirTime:      f.AirTime,
		ArrDelay:     routestats.ArrivalDelay(f),
	}, SkipNone
}

// Report is the alignment of every scorable flight on a route plus a count
// of skipped flights by reason.
type Report struct {
	Records []AlignmentRecord  `json:"records"`
	Skipped map[SkipReason]int `json:"skipped"`
	Summary Summary            `json:"summary"`
}

// Analyze runs PerFlightAlignment over flights and summarizes the result.
func Analyze(flights []models.Flight, origin, dest geomath.Coordinates, lookup WeatherLookup, tolerance time.Duration) Report {
	r := Report{Records: []AlignmentRecord{}, Skipped: map[SkipReason]int{}}
	for _, f := range flights {
		rec, skip := PerFlightAlignment(f, origin, dest, lookup, tolerance)
		if skip != SkipNone {
			r.Skipped[skip]++
			continue
		}
		r.Records = append(r.Records, rec)
	}
	r.Summary = Summarize(r.Records)
	return r
}
