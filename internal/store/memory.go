package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kjstillabower/flight-route-analytics/internal/models"
)

// MemoryStore is a slice-backed Store for tests and small fixtures.
type MemoryStore struct {
	mu       sync.RWMutex
	airports map[string]models.Airport
	flights  []models.Flight
	weather  []models.WeatherObservation
	planes   map[string]models.Plane
}

// NewMemoryStore copies the given rows into a new store.
func NewMemoryStore(airports []models.Airport, flights []models.Flight, weather []models.WeatherObservation, planes []models.Plane) *MemoryStore {
	s := &MemoryStore{
		airports: make(map[string]models.Airport, len(airports)),
		flights:  append([]models.Flight(nil), flights...),
		weather:  append([]models.WeatherObservation(nil), weather...),
		planes:   make(map[string]models.Plane, len(planes)),
	}
	for _, a := range airports {
		s.airports[a.Code] = a
	}
	for _, p := range planes {
		s.planes[p.Tailnum] = p
	}
	return s
}

func (s *MemoryStore) Airport(ctx context.Context, code string) (models.Airport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.airports[code]
	if !ok {
		return models.Airport{}, fmt.Errorf("airport %s: %w", code, ErrNotFound)
	}
	return a, nil
}

func (s *MemoryStore) Airports(ctx context.Context, codes []string) (map[string]models.Airport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.Airport, len(codes))
	for _, c := range codes {
		if a, ok := s.airports[c]; ok {
			out[c] = a
		}
	}
	return out, nil
}

func (s *MemoryStore) FlightsByRoute(ctx context.Context, origin, dest string) ([]models.Flight, error) {
	return s.filterFlights(ctx, 0, func(f models.Flight) bool {
		return f.Origin == origin && f.Dest == dest
	})
}

func (s *MemoryStore) FlightsByRouteOnDate(ctx context.Context, origin, dest string, date models.Date) ([]models.Flight, error) {
	return s.filterFlights(ctx, 0, func(f models.Flight) bool {
		return f.Origin == origin && f.Dest == dest && f.Date == date
	})
}

func (s *MemoryStore) FlightsFromOriginOnDate(ctx context.Context, origin string, date models.Date) ([]models.Flight, error) {
	return s.filterFlights(ctx, 0, func(f models.Flight) bool {
		return f.Origin == origin && f.Date == date
	})
}

func (s *MemoryStore) FlightsFromOrigin(ctx context.Context, origin string, limit int) ([]models.Flight, error) {
	return s.filterFlights(ctx, limit, func(f models.Flight) bool {
		return f.Origin == origin
	})
}

func (s *MemoryStore) filterFlights(ctx context.Context, limit int, keep func(models.Flight) bool) ([]models.Flight, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Flight
	for _, f := range s.flights {
		if !keep(f) {
			continue
		}
		out = append(out, f)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Weather(ctx context.Context, q WeatherQuery) ([]models.WeatherObservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.WeatherObservation
	for _, w := range s.weather {
		if w.Origin != q.Origin || w.Date != q.Date {
			continue
		}
		if h, ok := q.Hour.Get(); ok && w.Hour != h {
			continue
		}
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out, nil
}

func (s *MemoryStore) PlanesByTailnum(ctx context.Context, tailnums []string) ([]models.Plane, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Plane
	for _, t := range tailnums {
		if p, ok := s.planes[t]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tailnum < out[j].Tailnum })
	return out, nil
}

func (s *MemoryStore) EachFlightWithAirTime(ctx context.Context, batchSize int, fn func([]models.Flight) error) error {
	s.mu.RLock()
	var eligible []models.Flight
	for _, f := range s.flights {
		if at, ok := f.AirTime.Get(); ok && at > 0 && f.Distance > 0 {
			eligible = append(eligible, f)
		}
	}
	s.mu.RUnlock()
	return eachBatch(ctx, eligible, batchSize, fn)
}

func (s *MemoryStore) EachFlight(ctx context.Context, batchSize int, fn func([]models.Flight) error) error {
	s.mu.RLock()
	all := append([]models.Flight(nil), s.flights...)
	s.mu.RUnlock()
	return eachBatch(ctx, all, batchSize, fn)
}

func (s *MemoryStore) EachWeather(ctx context.Context, batchSize int, fn func([]models.WeatherObservation) error) error {
	s.mu.RLock()
	all := append([]models.WeatherObservation(nil), s.weather...)
	s.mu.RUnlock()
	return eachBatch(ctx, all, batchSize, fn)
}

func eachBatch[T any](ctx context.Context, rows []T, batchSize int, fn func([]T) error) error {
	if batchSize <= 0 {
		batchSize = 5000
	}
	for start := 0; start < len(rows); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+batchSize, len(rows))
		if err := fn(rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) UpdatePlaneSpeeds(ctx context.Context, speeds map[string]float64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for tail, speed := range speeds {
		p, ok := s.planes[tail]
		if !ok {
			continue
		}
		p.Speed = models.Some(speed)
		s.planes[tail] = p
		n++
	}
	return n, nil
}
