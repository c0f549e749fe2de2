// Package store is the data access facade over the flights dataset. The
// analytics engine reads plain models through the Store interface and never
// sees SQL.
package store

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kjstillabower/flight-route-analytics/internal/models"
	"github.com/kjstillabower/flight-route-analytics/internal/observability"
)

// ErrNotFound is returned when a keyed lookup matches no row.
var ErrNotFound = errors.New("not found")

// WeatherQuery selects observations at one origin on one date, optionally
// narrowed to one hour.
type WeatherQuery struct {
	Origin string
	Date   models.Date
	Hour   models.Optional[int]
}

// Store is the read facade plus the single write path for plane speeds.
// Implementations must be safe for concurrent readers.
type Store interface {
	Airport(ctx context.Context, code string) (models.Airport, error)
	Airports(ctx context.Context, codes []string) (map[string]models.Airport, error)
	FlightsByRoute(ctx context.Context, origin, dest string) ([]models.Flight, error)
	FlightsByRouteOnDate(ctx context.Context, origin, dest string, date models.Date) ([]models.Flight, error)
	FlightsFromOriginOnDate(ctx context.Context, origin string, date models.Date) ([]models.Flight, error)
	FlightsFromOrigin(ctx context.Context, origin string, limit int) ([]models.Flight, error)
	Weather(ctx context.Context, q WeatherQuery) ([]models.WeatherObservation, error)
	PlanesByTailnum(ctx context.Context, tailnums []string) ([]models.Plane, error)

	// EachFlightWithAirTime streams flights with a positive air time and
	// distance in batches of at most batchSize. A non-nil error from fn stops
	// the scan and is returned.
	EachFlightWithAirTime(ctx context.Context, batchSize int, fn func([]models.Flight) error) error

	// EachFlight streams every flight in batches of at most batchSize.
	EachFlight(ctx context.Context, batchSize int, fn func([]models.Flight) error) error

	// EachWeather streams every weather observation in batches of at most
	// batchSize.
	EachWeather(ctx context.Context, batchSize int, fn func([]models.WeatherObservation) error) error

	// UpdatePlaneSpeeds writes every speed in one transaction and returns the
	// number of plane rows updated. Tail numbers with no plane row are ignored.
	UpdatePlaneSpeeds(ctx context.Context, speeds map[string]float64) (int64, error)
}

// Query names used as the storeQueryDurationSeconds label.
const (
	queryAirport         = "airport"
	queryAirports        = "airports"
	queryFlightsByRoute  = "flights_by_route"
	queryFlightsByOrigin = "flights_by_origin"
	queryWeather         = "weather"
	queryPlanes          = "planes"
	queryFlightScan      = "flight_scan"
	queryWeatherScan     = "weather_scan"
	queryUpdateSpeeds    = "update_speeds"
)

func observeQuery(query string) *prometheus.Timer {
	return prometheus.NewTimer(observability.StoreQueryDuration.WithLabelValues(query))
}
