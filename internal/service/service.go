// Package service answers analytics queries. It validates input, loads rows
// through the store, runs the engine packages and caches encoded results.
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/flight-route-analytics/internal/cache"
	"github.com/kjstillabower/flight-route-analytics/internal/geomath"
	"github.com/kjstillabower/flight-route-analytics/internal/models"
	"github.com/kjstillabower/flight-route-analytics/internal/observability"
	"github.com/kjstillabower/flight-route-analytics/internal/routestats"
	"github.com/kjstillabower/flight-route-analytics/internal/store"
	"github.com/kjstillabower/flight-route-analytics/internal/timenorm"
	"github.com/kjstillabower/flight-route-analytics/internal/validation"
	"github.com/kjstillabower/flight-route-analytics/internal/wind"
)

// Operation names used for cache keys and metric labels.
const (
	opCarrierStats   = "carrier_stats"
	opPlaneTypes     = "plane_types"
	opGeometry       = "geometry"
	opWind           = "wind"
	opLocalArrivals  = "local_arrivals"
	opDestinations   = "destinations"
	opAirportSummary = "airport_summary"
	opHourlyDelays   = "hourly_delays"
	opConsistency    = "consistency"
	opPlane          = "plane"
	opSpeedRecompute = "speed_recompute"

	opTopDestinations = "top_destinations"
	opOverview        = "dataset_overview"
	opOriginDelays    = "origin_delays"
	opFastestModels   = "fastest_models"
	opTopRoutes       = "top_routes"
	opWindDelays      = "wind_delays"
)

// Options tunes an AnalyticsService. Zero values fall back to defaults.
type Options struct {
	CacheTTL         time.Duration
	WeatherTolerance time.Duration
	DistanceUnit     string // "mi" or "km"
	RowLimit         int
	SpeedBatchSize   int // also pages the dataset-wide scans
	// ComputeTimeout bounds one shared computation, independent of the
	// requests waiting on it.
	ComputeTimeout time.Duration
	// HubOrigins are the origins TopRoutes ranks when the caller names none.
	HubOrigins []string
}

// AnalyticsService orchestrates analytics queries using cache-aside with
// request coalescing. Plane speed recompute is the only writer; it excludes
// plane reads for its whole run and bumps the cache generation on success.
type AnalyticsService struct {
	store     store.Store
	cache     cache.Cache
	localizer *timenorm.Localizer
	opts      Options
	base      *zap.Logger

	radius     float64
	group      singleflight.Group
	speedMu    sync.RWMutex
	generation atomic.Uint64
}

// NewAnalyticsService creates an AnalyticsService. A nil cache disables
// caching; a nil localizer gets a default one.
func NewAnalyticsService(st store.Store, c cache.Cache, localizer *timenorm.Localizer, logger *zap.Logger, opts Options) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		c = cache.NopCache{}
	}
	if localizer == nil {
		localizer, _ = timenorm.NewLocalizer(0, logger)
	}
	if opts.WeatherTolerance <= 0 {
		opts.WeatherTolerance = wind.DefaultTolerance
	}
	radius, ok := geomath.RadiusForUnit(opts.DistanceUnit)
	if !ok {
		opts.DistanceUnit = "mi"
		radius = geomath.EarthRadiusMiles
	}
	if opts.RowLimit <= 0 {
		opts.RowLimit = 1000
	}
	if opts.SpeedBatchSize <= 0 {
		opts.SpeedBatchSize = 5000
	}
	if opts.ComputeTimeout <= 0 {
		opts.ComputeTimeout = 30 * time.Second
	}
	if len(opts.HubOrigins) == 0 {
		opts.HubOrigins = []string{"EWR", "JFK", "LGA"}
	}
	return &AnalyticsService{
		store:     st,
		cache:     c,
		localizer: localizer,
		opts:      opts,
		base:      logger,
		radius:    radius,
	}
}

func (s *AnalyticsService) log(ctx context.Context) *zap.Logger {
	if l := observability.LoggerFrom(ctx); l != nil {
		return l
	}
	return s.base
}

// CacheGeneration returns the current cache key generation.
func (s *AnalyticsService) CacheGeneration() uint64 {
	return s.generation.Load()
}

// CarrierStats groups the flights on a route by carrier.
func (s *AnalyticsService) CarrierStats(ctx context.Context, origin, dest string) (map[string]routestats.CarrierStats, error) {
	origin, dest, err := validation.ValidateRoute(origin, dest)
	if err != nil {
		return nil, err
	}
	observability.RecordAnalyticsQuery(opCarrierStats, origin)
	return cached(ctx, s, opCarrierStats, origin+"-"+dest, func(ctx context.Context) (map[string]routestats.CarrierStats, error) {
		flights, err := s.store.FlightsByRoute(ctx, origin, dest)
		if err != nil {
			return nil, fmt.Errorf("carrier stats %s-%s: %w", origin, dest, err)
		}
		return routestats.ComputeCarrierStats(flights), nil
	})
}

// PlaneTypeUsage counts the flights on a route per aircraft type. Flights
// whose tail number has no plane row are excluded and counted.
func (s *AnalyticsService) PlaneTypeUsage(ctx context.Context, origin, dest string) ([]routestats.TypeUsage, error) {
	origin, dest, err := validation.ValidateRoute(origin, dest)
	if err != nil {
		return nil, err
	}
	observability.RecordAnalyticsQuery(opPlaneTypes, origin)
	return cached(ctx, s, opPlaneTypes, origin+"-"+dest, func(ctx context.Context) ([]routestats.TypeUsage, error) {
		flights, err := s.store.FlightsByRoute(ctx, origin, dest)
		if err != nil {
			return nil, fmt.Errorf("plane types %s-%s: %w", origin, dest, err)
		}
		planes, err := s.store.PlanesByTailnum(ctx, uniqueTailnums(flights))
		if err != nil {
			return nil, fmt.Errorf("plane types %s-%s: %w", origin, dest, err)
		}
		byTail := make(map[string]models.Plane, len(planes))
		for _, p := range planes {
			byTail[p.Tailnum] = p
		}
		observability.RecordExcludedRows(opPlaneTypes, "unmatched_tailnum", routestats.UnmatchedFlights(flights, byTail))
		return routestats.ComputePlaneTypeUsage(flights, byTail), nil
	})
}

// GeometryResult is a route's geometry with the distance in the configured
// unit.
type GeometryResult struct {
	Geometry routestats.RouteGeometry `json:"geometry"`
	Unit     string                   `json:"unit"`
	Distance float64                  `json:"distance"`
}

// Geometry computes a route's great-circle distance and bearing and checks
// them against the distance recorded on its flights. Both airports must
// exist.
func (s *AnalyticsService) Geometry(ctx context.Context, origin, dest string) (GeometryResult, error) {
	origin, dest, err := validation.ValidateRoute(origin, dest)
	if err != nil {
		return GeometryResult{}, err
	}
	observability.RecordAnalyticsQuery(opGeometry, origin)
	return cached(ctx, s, opGeometry, origin+"-"+dest, func(ctx context.Context) (GeometryResult, error) {
		airports, err := s.requireAirports(ctx, origin, dest)
		if err != nil {
			return GeometryResult{}, err
		}
		flights, err := s.store.FlightsByRoute(ctx, origin, dest)
		if err != nil {
			return GeometryResult{}, fmt.Errorf("geometry %s-%s: %w", origin, dest, err)
		}
		from, to := airports[origin], airports[dest]
		return GeometryResult{
			Geometry: routestats.CompareDistance(from, to, flights),
			Unit:     s.opts.DistanceUnit,
			Distance: geomath.GreatCircleDistance(from.Lat, from.Lon, to.Lat, to.Lon, s.radius),
		}, nil
	})
}

// Wind scores every flight on a route and date against the wind observed at
// the origin nearest its departure.
func (s *AnalyticsService) Wind(ctx context.Context, origin, dest, date string) (wind.Report, error) {
	origin, dest, err := validation.ValidateRoute(origin, dest)
	if err != nil {
		return wind.Report{}, err
	}
	day, err := validation.ValidateDate(date)
	if err != nil {
		return wind.Report{}, err
	}
	observability.RecordAnalyticsQuery(opWind, origin)
	report, err := cached(ctx, s, opWind, origin+"-"+dest+":"+day.String(), func(ctx context.Context) (wind.Report, error) {
		airports, err := s.requireAirports(ctx, origin, dest)
		if err != nil {
			return wind.Report{}, err
		}
		flights, err := s.store.FlightsByRouteOnDate(ctx, origin, dest, day)
		if err != nil {
			return wind.Report{}, fmt.Errorf("wind %s-%s: %w", origin, dest, err)
		}
		observations, err := s.weatherAround(ctx, origin, day)
		if err != nil {
			return wind.Report{}, fmt.Errorf("wind %s-%s: %w", origin, dest, err)
		}
		from := geomath.Coordinates{Lat: airports[origin].Lat, Lon: airports[origin].Lon}
		to := geomath.Coordinates{Lat: airports[dest].Lat, Lon: airports[dest].Lon}
		r := wind.Analyze(flights, from, to, wind.NewObservationIndex(observations), s.opts.WeatherTolerance)
		for reason, n := range r.Skipped {
			observability.RecordExcludedRows(opWind, string(reason), n)
		}
		return r, nil
	})
	if err != nil {
		return wind.Report{}, err
	}
	for i := range report.Records {
		report.Records[i].Departure = report.Records[i].Departure.UTC()
		report.Records[i].ObservedAt = report.Records[i].ObservedAt.UTC()
	}
	return report, nil
}

// weatherAround loads the observations for day plus the last hour of the
// day before and the first hour of the day after, so departures near
// midnight can match across the boundary.
func (s *AnalyticsService) weatherAround(ctx context.Context, origin string, day models.Date) ([]models.WeatherObservation, error) {
	queries := []store.WeatherQuery{
		{Origin: origin, Date: day.AddDays(-1), Hour: models.Some(23)},
		{Origin: origin, Date: day},
		{Origin: origin, Date: day.AddDays(1), Hour: models.Some(0)},
	}
	var out []models.WeatherObservation
	for _, q := range queries {
		obs, err := s.store.Weather(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, obs...)
	}
	return out, nil
}

// LocalArrival is one flight's scheduled arrival read as an origin wall
// clock and shifted to the destination's zone.
type LocalArrival struct {
	Carrier          string                     `json:"carrier"`
	FlightNumber     int                        `json:"flight"`
	Tailnum          string                     `json:"tailnum"`
	ScheduledArrival models.Optional[time.Time] `json:"scheduledArrival"`
	LocalArrival     models.Optional[time.Time] `json:"localArrival"`
	OffsetHours      models.Optional[float64]   `json:"offsetHours"`
}

// ArrivalsReport lists local arrival times for a route on one date.
// OffsetHours is the zone difference at noon origin time.
type ArrivalsReport struct {
	Origin      string                   `json:"origin"`
	Dest        string                   `json:"dest"`
	Date        models.Date              `json:"date"`
	OffsetHours models.Optional[float64] `json:"offsetHours"`
	Arrivals    []LocalArrival           `json:"arrivals"`
}

// LocalArrivals shifts each flight's scheduled arrival from the origin's
// zone to the destination's. Arrivals are unknown when either zone does not
// resolve or the scheduled time does not decode.
func (s *AnalyticsService) LocalArrivals(ctx context.Context, origin, dest, date string) (ArrivalsReport, error) {
	origin, dest, err := validation.ValidateRoute(origin, dest)
	if err != nil {
		return ArrivalsReport{}, err
	}
	day, err := validation.ValidateDate(date)
	if err != nil {
		return ArrivalsReport{}, err
	}
	observability.RecordAnalyticsQuery(opLocalArrivals, origin)
	report, err := cached(ctx, s, opLocalArrivals, origin+"-"+dest+":"+day.String(), func(ctx context.Context) (ArrivalsReport, error) {
		airports, err := s.requireAirports(ctx, origin, dest)
		if err != nil {
			return ArrivalsReport{}, err
		}
		flights, err := s.store.FlightsByRouteOnDate(ctx, origin, dest, day)
		if err != nil {
			return ArrivalsReport{}, fmt.Errorf("local arrivals %s-%s: %w", origin, dest, err)
		}
		fromTz, toTz := airports[origin].Timezone, airports[dest].Timezone

		r := ArrivalsReport{Origin: origin, Dest: dest, Date: day, Arrivals: make([]LocalArrival, 0, len(flights))}
		if d, ok := s.localizer.OffsetDifference(day, fromTz, toTz).Get(); ok {
			r.OffsetHours = models.Some(d.Hours())
		}
		unknown := 0
		for _, f := range flights {
			sched := timenorm.ToAbsoluteTimestamp(models.Some(f.Date), timenorm.ClockOrUnknown(f.SchedArrTime))
			a := LocalArrival{
				Carrier:          f.Carrier,
				FlightNumber:     f.FlightNumber,
				Tailnum:          f.Tailnum,
				ScheduledArrival: sched,
				LocalArrival:     s.localizer.LocalizeAcrossTimezones(sched, fromTz, toTz),
			}
			if at, ok := a.LocalArrival.Get(); ok {
				a.OffsetHours = models.Some(at.Sub(sched.Value).Hours())
			} else {
				unknown++
			}
			r.Arrivals = append(r.Arrivals, a)
		}
		observability.RecordExcludedRows(opLocalArrivals, "unknown_arrival", unknown)
		return r, nil
	})
	if err != nil {
		return ArrivalsReport{}, err
	}
	for i := range report.Arrivals {
		a := &report.Arrivals[i]
		if a.ScheduledArrival.Valid {
			a.ScheduledArrival.Value = a.ScheduledArrival.Value.UTC()
		}
		if a.LocalArrival.Valid {
			a.LocalArrival.Value = a.LocalArrival.Value.UTC()
		}
	}
	return report, nil
}

// DestinationStats counts one origin's flights per destination on a date.
// It returns routestats.ErrEmptyResult when the origin had no flights.
func (s *AnalyticsService) DestinationStats(ctx context.Context, origin, date string) (routestats.DestinationStats, error) {
	origin, day, err := validateOriginDate(origin, date)
	if err != nil {
		return routestats.DestinationStats{}, err
	}
	observability.RecordAnalyticsQuery(opDestinations, origin)
	return cached(ctx, s, opDestinations, origin+":"+day.String(), func(ctx context.Context) (routestats.DestinationStats, error) {
		flights, err := s.store.FlightsFromOriginOnDate(ctx, origin, day)
		if err != nil {
			return routestats.DestinationStats{}, fmt.Errorf("destinations %s: %w", origin, err)
		}
		stats, err := routestats.ComputeDestinationStats(flights)
		if err != nil {
			return routestats.DestinationStats{}, fmt.Errorf("destinations %s on %s: %w", origin, day, err)
		}
		return stats, nil
	})
}

// AirportSummary describes air time, distance and delays of up to RowLimit
// flights from origin.
func (s *AnalyticsService) AirportSummary(ctx context.Context, origin string) (routestats.FlightSummary, error) {
	origin, err := validation.ValidateAirportCode(origin)
	if err != nil {
		return routestats.FlightSummary{}, err
	}
	observability.RecordAnalyticsQuery(opAirportSummary, origin)
	return cached(ctx, s, opAirportSummary, origin, func(ctx context.Context) (routestats.FlightSummary, error) {
		flights, err := s.store.FlightsFromOrigin(ctx, origin, s.opts.RowLimit)
		if err != nil {
			return routestats.FlightSummary{}, fmt.Errorf("airport summary %s: %w", origin, err)
		}
		if len(flights) == 0 {
			return routestats.FlightSummary{}, fmt.Errorf("airport summary %s: %w", origin, routestats.ErrEmptyResult)
		}
		return routestats.DescribeFlights(flights), nil
	})
}

// HourlyDelays is the mean departure delay by scheduled hour for one origin
// and date.
func (s *AnalyticsService) HourlyDelays(ctx context.Context, origin, date string) ([]routestats.HourlyDelay, error) {
	origin, day, err := validateOriginDate(origin, date)
	if err != nil {
		return nil, err
	}
	observability.RecordAnalyticsQuery(opHourlyDelays, origin)
	return cached(ctx, s, opHourlyDelays, origin+":"+day.String(), func(ctx context.Context) ([]routestats.HourlyDelay, error) {
		flights, err := s.store.FlightsFromOriginOnDate(ctx, origin, day)
		if err != nil {
			return nil, fmt.Errorf("hourly delays %s: %w", origin, err)
		}
		if len(flights) == 0 {
			return nil, fmt.Errorf("hourly delays %s on %s: %w", origin, day, routestats.ErrEmptyResult)
		}
		hours := routestats.DelayByHour(flights)
		if hours == nil {
			hours = []routestats.HourlyDelay{}
		}
		return hours, nil
	})
}

// ScheduleConsistency flags flights from origin on date whose air time does
// not fit between their zone-corrected departure and arrival.
func (s *AnalyticsService) ScheduleConsistency(ctx context.Context, origin, date string) (routestats.ConsistencyReport, error) {
	origin, day, err := validateOriginDate(origin, date)
	if err != nil {
		return routestats.ConsistencyReport{}, err
	}
	observability.RecordAnalyticsQuery(opConsistency, origin)
	return cached(ctx, s, opConsistency, origin+":"+day.String(), func(ctx context.Context) (routestats.ConsistencyReport, error) {
		flights, err := s.store.FlightsFromOriginOnDate(ctx, origin, day)
		if err != nil {
			return routestats.ConsistencyReport{}, fmt.Errorf("consistency %s: %w", origin, err)
		}
		if len(flights) == 0 {
			return routestats.ConsistencyReport{}, fmt.Errorf("consistency %s on %s: %w", origin, day, routestats.ErrEmptyResult)
		}
		codes := []string{origin}
		for _, f := range flights {
			codes = append(codes, f.Dest)
		}
		airports, err := s.store.Airports(ctx, dedupe(codes))
		if err != nil {
			return routestats.ConsistencyReport{}, fmt.Errorf("consistency %s: %w", origin, err)
		}
		zones := make(map[string]string, len(airports))
		for code, a := range airports {
			zones[code] = a.Timezone
		}
		report := routestats.CheckConsistency(flights, zones, s.localizer, routestats.DefaultConsistencyTolerance)
		observability.RecordExcludedRows(opConsistency, "missing_data", report.Skipped)
		observability.RecordExcludedRows(opConsistency, "unmatched_airport", report.UnmatchedAirports)
		return report, nil
	})
}

// Plane returns one airframe. It waits for any running speed recompute so
// the speed it reports is never half written.
func (s *AnalyticsService) Plane(ctx context.Context, tailnum string) (models.Plane, error) {
	tail, err := validation.ValidateTailnum(tailnum)
	if err != nil {
		return models.Plane{}, err
	}
	observability.AnalyticsQueriesTotal.WithLabelValues(opPlane).Inc()

	s.speedMu.RLock()
	defer s.speedMu.RUnlock()
	planes, err := s.store.PlanesByTailnum(ctx, []string{tail})
	if err != nil {
		return models.Plane{}, fmt.Errorf("plane %s: %w", tail, err)
	}
	if len(planes) == 0 {
		return models.Plane{}, fmt.Errorf("plane %s: %w", tail, store.ErrNotFound)
	}
	return planes[0], nil
}

// RecomputeResult reports a finished plane speed recompute.
type RecomputeResult struct {
	Planes         int    `json:"planes"`
	Updated        int64  `json:"updated"`
	SkippedFlights int    `json:"skippedFlights"`
	Generation     uint64 `json:"cacheGeneration"`
}

// RecomputePlaneSpeeds derives every plane's mean speed from the flights
// table and writes all of them in one transaction. Plane reads block until
// it finishes. On success the cache generation moves forward so no cached
// aggregate computed before the write is served again.
func (s *AnalyticsService) RecomputePlaneSpeeds(ctx context.Context) (RecomputeResult, error) {
	logger := s.log(ctx)
	timer := prometheus.NewTimer(observability.PlaneSpeedRecomputeDuration)
	defer timer.ObserveDuration()
	observability.AnalyticsQueriesTotal.WithLabelValues(opSpeedRecompute).Inc()

	s.speedMu.Lock()
	defer s.speedMu.Unlock()

	acc := routestats.NewSpeedAccumulator()
	err := s.store.EachFlightWithAirTime(ctx, s.opts.SpeedBatchSize, func(batch []models.Flight) error {
		for _, f := range batch {
			acc.Add(f)
		}
		return ctx.Err()
	})
	if err != nil {
		observability.PlaneSpeedRecomputeTotal.WithLabelValues("error").Inc()
		logger.Error("plane speed recompute failed", zap.String("stage", "scan"), zap.Error(err))
		return RecomputeResult{}, fmt.Errorf("recompute plane speeds: %w", err)
	}

	speeds := acc.Speeds()
	updated, err := s.store.UpdatePlaneSpeeds(ctx, speeds)
	if err != nil {
		observability.PlaneSpeedRecomputeTotal.WithLabelValues("error").Inc()
		logger.Error("plane speed recompute failed", zap.String("stage", "update"), zap.Error(err))
		return RecomputeResult{}, fmt.Errorf("recompute plane speeds: %w", err)
	}
	gen := s.generation.Add(1)
	observability.PlaneSpeedRecomputeTotal.WithLabelValues("success").Inc()
	observability.RecordExcludedRows(opSpeedRecompute, "invalid_air_time", acc.Skipped())

	logger.Info("plane speeds recomputed",
		zap.Int("planes", len(speeds)),
		zap.Int64("updated", updated),
		zap.Int("skipped_flights", acc.Skipped()),
		zap.Uint64("cache_generation", gen))
	return RecomputeResult{
		Planes:         len(speeds),
		Updated:        updated,
		SkippedFlights: acc.Skipped(),
		Generation:     gen,
	}, nil
}

// WarmRoute fills the cache for a route's carrier, plane type and geometry
// aggregates. It implements cache.RouteFetcher.
func (s *AnalyticsService) WarmRoute(ctx context.Context, origin, dest string) error {
	if _, err := s.CarrierStats(ctx, origin, dest); err != nil {
		return err
	}
	if _, err := s.PlaneTypeUsage(ctx, origin, dest); err != nil {
		return err
	}
	_, err := s.Geometry(ctx, origin, dest)
	return err
}

// requireAirports loads every code and fails with store.ErrNotFound naming
// the first missing one.
func (s *AnalyticsService) requireAirports(ctx context.Context, codes ...string) (map[string]models.Airport, error) {
	found, err := s.store.Airports(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("load airports: %w", err)
	}
	for _, c := range codes {
		if _, ok := found[c]; !ok {
			return nil, fmt.Errorf("airport %s: %w", c, store.ErrNotFound)
		}
	}
	return found, nil
}

func validateOriginDate(origin, date string) (string, models.Date, error) {
	o, err := validation.ValidateAirportCode(origin)
	if err != nil {
		return "", models.Date{}, err
	}
	d, err := validation.ValidateDate(date)
	if err != nil {
		return "", models.Date{}, err
	}
	return o, d, nil
}

func uniqueTailnums(flights []models.Flight) []string {
	tails := make([]string, 0, len(flights))
	for _, f := range flights {
		if f.Tailnum != "" {
			tails = append(tails, f.Tailnum)
		}
	}
	return dedupe(tails)
}

// dedupe returns the distinct values of in, sorted.
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
