package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kjstillabower/flight-route-analytics/internal/models"
	"github.com/kjstillabower/flight-route-analytics/internal/observability"
	"github.com/kjstillabower/flight-route-analytics/internal/routestats"
	"github.com/kjstillabower/flight-route-analytics/internal/validation"
)

// Default and maximum result sizes for the ranked dataset queries.
const (
	defaultTopDestinations = 5
	defaultFastestModels   = 20
	defaultTopRoutes       = 50
	maxRankedResults       = 500
)

// TopDestinations ranks every destination served from origin over the whole
// dataset and returns at most limit of them. An empty limit means five.
// The origin must exist in the airports table.
func (s *AnalyticsService) TopDestinations(ctx context.Context, origin, limit string) ([]routestats.DestinationCount, error) {
	origin, err := validation.ValidateAirportCode(origin)
	if err != nil {
		return nil, err
	}
	n, err := validation.ValidateLimit(limit, defaultTopDestinations, maxRankedResults)
	if err != nil {
		return nil, err
	}
	observability.RecordAnalyticsQuery(opTopDestinations, origin)
	all, err := cached(ctx, s, opTopDestinations, origin, func(ctx context.Context) ([]routestats.DestinationCount, error) {
		if _, err := s.store.Airport(ctx, origin); err != nil {
			return nil, fmt.Errorf("top destinations %s: %w", origin, err)
		}
		flights, err := s.store.FlightsFromOrigin(ctx, origin, 0)
		if err != nil {
			return nil, fmt.Errorf("top destinations %s: %w", origin, err)
		}
		if len(flights) == 0 {
			return nil, fmt.Errorf("top destinations %s: %w", origin, routestats.ErrEmptyResult)
		}
		return routestats.TopDestinations(flights, -1), nil
	})
	if err != nil {
		return nil, err
	}
	return firstN(all, n), nil
}

// DatasetOverview counts every flight by day, origin and carrier and
// describes air time and distance.
func (s *AnalyticsService) DatasetOverview(ctx context.Context) (routestats.DatasetOverview, error) {
	observability.AnalyticsQueriesTotal.WithLabelValues(opOverview).Inc()
	return cached(ctx, s, opOverview, "all", func(ctx context.Context) (routestats.DatasetOverview, error) {
		acc := routestats.NewOverviewAccumulator()
		err := s.store.EachFlight(ctx, s.opts.SpeedBatchSize, func(batch []models.Flight) error {
			for _, f := range batch {
				acc.Add(f)
			}
			return nil
		})
		if err != nil {
			return routestats.DatasetOverview{}, fmt.Errorf("dataset overview: %w", err)
		}
		o := acc.Overview()
		if o.Flights == 0 {
			return routestats.DatasetOverview{}, fmt.Errorf("dataset overview: %w", routestats.ErrEmptyResult)
		}
		return o, nil
	})
}

// OriginDelays ranks origins by mean arrival delay, worst first.
func (s *AnalyticsService) OriginDelays(ctx context.Context) ([]routestats.OriginDelay, error) {
	observability.AnalyticsQueriesTotal.WithLabelValues(opOriginDelays).Inc()
	return cached(ctx, s, opOriginDelays, "all", func(ctx context.Context) ([]routestats.OriginDelay, error) {
		ranker := routestats.NewOriginDelayRanker()
		err := s.store.EachFlight(ctx, s.opts.SpeedBatchSize, func(batch []models.Flight) error {
			for _, f := range batch {
				ranker.Add(f)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("origin delays: %w", err)
		}
		observability.RecordExcludedRows(opOriginDelays, "unknown_arr_delay", ranker.Skipped())
		ranking := ranker.Ranking()
		if len(ranking) == 0 {
			return nil, fmt.Errorf("origin delays: %w", routestats.ErrEmptyResult)
		}
		return ranking, nil
	})
}

// FastestModels ranks plane models by mean ground speed over their flights
// and returns at most limit of them. An empty limit means twenty.
func (s *AnalyticsService) FastestModels(ctx context.Context, limit string) ([]routestats.ModelSpeed, error) {
	n, err := validation.ValidateLimit(limit, defaultFastestModels, maxRankedResults)
	if err != nil {
		return nil, err
	}
	observability.AnalyticsQueriesTotal.WithLabelValues(opFastestModels).Inc()
	all, err := cached(ctx, s, opFastestModels, "all", func(ctx context.Context) ([]routestats.ModelSpeed, error) {
		acc := routestats.NewSpeedAccumulator()
		err := s.store.EachFlightWithAirTime(ctx, s.opts.SpeedBatchSize, func(batch []models.Flight) error {
			for _, f := range batch {
				acc.Add(f)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("fastest models: %w", err)
		}
		planes, err := s.store.PlanesByTailnum(ctx, acc.Tailnums())
		if err != nil {
			return nil, fmt.Errorf("fastest models: %w", err)
		}
		byTail := make(map[string]models.Plane, len(planes))
		for _, p := range planes {
			byTail[p.Tailnum] = p
		}
		ranked, unmatched := acc.ByModel(byTail, -1)
		observability.RecordExcludedRows(opFastestModels, "invalid_air_time", acc.Skipped())
		observability.RecordExcludedRows(opFastestModels, "unmatched_tailnum", unmatched)
		if len(ranked) == 0 {
			return nil, fmt.Errorf("fastest models: %w", routestats.ErrEmptyResult)
		}
		return ranked, nil
	})
	if err != nil {
		return nil, err
	}
	return firstN(all, n), nil
}

// TopRoutes ranks the routes leaving origins by flight count. origins is a
// comma separated list; empty means the configured hub origins. An empty
// limit means fifty.
func (s *AnalyticsService) TopRoutes(ctx context.Context, origins, limit string) ([]routestats.RouteCount, error) {
	codes, err := validation.ValidateAirportCodes(origins)
	if err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		codes = s.opts.HubOrigins
	}
	n, err := validation.ValidateLimit(limit, defaultTopRoutes, maxRankedResults)
	if err != nil {
		return nil, err
	}
	for _, c := range codes {
		observability.RecordAnalyticsQuery(opTopRoutes, c)
	}
	key := strings.Join(codes, ",")
	all, err := cached(ctx, s, opTopRoutes, key, func(ctx context.Context) ([]routestats.RouteCount, error) {
		counter := routestats.NewRouteCounter(codes)
		for _, origin := range codes {
			flights, err := s.store.FlightsFromOrigin(ctx, origin, 0)
			if err != nil {
				return nil, fmt.Errorf("top routes %s: %w", origin, err)
			}
			for _, f := range flights {
				counter.Add(f)
			}
		}
		routes := counter.Top(-1)
		if len(routes) == 0 {
			return nil, fmt.Errorf("top routes %s: %w", key, routestats.ErrEmptyResult)
		}
		return routes, nil
	})
	if err != nil {
		return nil, err
	}
	return firstN(all, n), nil
}

// WindDelays relates mean arrival delay to the wind speed observed at the
// origin on the day of departure.
func (s *AnalyticsService) WindDelays(ctx context.Context) ([]routestats.WindDelay, error) {
	observability.AnalyticsQueriesTotal.WithLabelValues(opWindDelays).Inc()
	return cached(ctx, s, opWindDelays, "all", func(ctx context.Context) ([]routestats.WindDelay, error) {
		acc := routestats.NewWindDelayAccumulator()
		err := s.store.EachWeather(ctx, s.opts.SpeedBatchSize, func(batch []models.WeatherObservation) error {
			for _, w := range batch {
				acc.AddObservation(w)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("wind delays: %w", err)
		}
		err = s.store.EachFlight(ctx, s.opts.SpeedBatchSize, func(batch []models.Flight) error {
			for _, f := range batch {
				acc.AddFlight(f)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("wind delays: %w", err)
		}
		observability.RecordExcludedRows(opWindDelays, "no_delay_or_weather", acc.Skipped())
		curve := acc.Curve()
		if len(curve) == 0 {
			return nil, fmt.Errorf("wind delays: %w", routestats.ErrEmptyResult)
		}
		return curve, nil
	})
}

func firstN[T any](all []T, n int) []T {
	if n < len(all) {
		return all[:n]
	}
	return all
}
