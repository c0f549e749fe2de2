package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kjstillabower/flight-route-analytics/internal/observability"
)

// defaultWarmConcurrency bounds parallel store scans during warming.
const defaultWarmConcurrency = 4

// RouteFetcher is implemented by the service layer to compute and cache the
// aggregates of one route. Used by RouteWarmer to avoid a circular dependency
// on the service package.
type RouteFetcher interface {
	WarmRoute(ctx context.Context, origin, dest string) error
}

// Route is an origin/destination pair.
type Route struct {
	Origin string
	Dest   string
}

func (r Route) String() string {
	return r.Origin + "-" + r.Dest
}

// ParseRoutes parses "ORIGIN-DEST" entries. Malformed entries are returned
// as one error and skipped.
func ParseRoutes(specs []string) ([]Route, error) {
	var routes []Route
	var errs []error
	for _, s := range specs {
		origin, dest, ok := strings.Cut(strings.TrimSpace(s), "-")
		origin, dest = strings.ToUpper(strings.TrimSpace(origin)), strings.ToUpper(strings.TrimSpace(dest))
		if !ok || origin == "" || dest == "" {
			errs = append(errs, fmt.Errorf("route %q: want ORIGIN-DEST", s))
			continue
		}
		routes = append(routes, Route{Origin: origin, Dest: dest})
	}
	return routes, errors.Join(errs...)
}

// RouteWarmer warms the cache by prefetching aggregates for a list of routes.
type RouteWarmer struct {
	fetcher     RouteFetcher
	logger      *zap.Logger
	concurrency int
}

// NewRouteWarmer creates a RouteWarmer that uses the given fetcher and logger.
func NewRouteWarmer(fetcher RouteFetcher, logger *zap.Logger) *RouteWarmer {
	return &RouteWarmer{fetcher: fetcher, logger: logger, concurrency: defaultWarmConcurrency}
}

// Warm fetches every route with bounded concurrency and populates the cache via the fetcher.
// A failing route does not stop the others. Returns an error if any route failed (aggregated).
func (w *RouteWarmer) Warm(ctx context.Context, routes []Route) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	if w.logger != nil {
		w.logger.Info("warming cache", zap.Int("routes", len(routes)))
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, r := range routes {
		r := r
		g.Go(func() error {
			if err := w.fetcher.WarmRoute(gctx, r.Origin, r.Dest); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("warm %s: %w", r, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	if w.logger != nil {
		w.logger.Info("cache warming complete", zap.Int("routes", len(routes)), zap.Int("errors", len(errs)), zap.Float64("duration_seconds", duration))
	}
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("cache warming: %w", errors.Join(errs...))
	}
	return nil
}

// WarmPeriodic runs an initial Warm, then refreshes at the given interval until ctx is done.
func (w *RouteWarmer) WarmPeriodic(ctx context.Context, routes []Route, interval time.Duration) error {
	if err := w.Warm(ctx, routes); err != nil && w.logger != nil {
		w.logger.Warn("initial cache warm failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx, routes); err != nil && w.logger != nil {
				w.logger.Warn("periodic cache warm failed", zap.Error(err))
			}
		}
	}
}
