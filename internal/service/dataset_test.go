package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kjstillabower/flight-route-analytics/internal/cache"
	"github.com/kjstillabower/flight-route-analytics/internal/models"
	"github.com/kjstillabower/flight-route-analytics/internal/observability"
	"github.com/kjstillabower/flight-route-analytics/internal/routestats"
	"github.com/kjstillabower/flight-route-analytics/internal/store"
	"github.com/kjstillabower/flight-route-analytics/internal/validation"
)

func TestTopDestinations(t *testing.T) {
	svc := newTestService(fixtureStore(), nil, Options{})

	got, err := svc.TopDestinations(context.Background(), "jfk", "")
	if err != nil {
		t.Fatalf("TopDestinations() error = %v", err)
	}
	want := []routestats.DestinationCount{{Dest: "LAX", Count: 4}, {Dest: "BOS", Count: 1}}
	if len(got) != len(want) {
		t.Fatalf("TopDestinations() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("TopDestinations()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	top, err := svc.TopDestinations(context.Background(), "JFK", "1")
	if err != nil || len(top) != 1 || top[0].Dest != "LAX" {
		t.Errorf("TopDestinations(limit 1) = %+v, %v; want LAX only", top, err)
	}
}

// TestTopDestinations_LimitAppliedAfterCache verifies a cached ranking is
// sliced per caller rather than cached per limit.
func TestTopDestinations_LimitAppliedAfterCache(t *testing.T) {
	c := cache.NewInMemoryCache()
	svc := newTestService(fixtureStore(), c, Options{})

	if _, err := svc.TopDestinations(context.Background(), "JFK", "1"); err != nil {
		t.Fatalf("TopDestinations() error = %v", err)
	}
	got, err := svc.TopDestinations(context.Background(), "JFK", "5")
	if err != nil {
		t.Fatalf("TopDestinations() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("TopDestinations(limit 5) after cached limit 1 = %+v, want 2 entries", got)
	}
	if c.Len() != 1 {
		t.Errorf("cache entries = %d, want 1", c.Len())
	}
}

func TestTopDestinations_Errors(t *testing.T) {
	svc := newTestService(fixtureStore(), nil, Options{})
	tests := []struct {
		name          string
		origin, limit string
		want          error
	}{
		{"unknown airport", "SFO", "", store.ErrNotFound},
		{"no departures", "LAX", "", routestats.ErrEmptyResult},
		{"bad origin", "J1", "", validation.ErrInvalidAirportCode},
		{"bad limit", "JFK", "zero", validation.ErrInvalidLimit},
		{"limit too large", "JFK", "501", validation.ErrInvalidLimit},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.TopDestinations(context.Background(), tc.origin, tc.limit)
			if !errors.Is(err, tc.want) {
				t.Fatalf("TopDestinations(%q, %q) error = %v, want %v", tc.origin, tc.limit, err, tc.want)
			}
		})
	}
}

func TestDatasetOverview(t *testing.T) {
	svc := newTestService(fixtureStore(), nil, Options{SpeedBatchSize: 2})

	got, err := svc.DatasetOverview(context.Background())
	if err != nil {
		t.Fatalf("DatasetOverview() error = %v", err)
	}
	if got.Flights != 5 || got.Days != 1 {
		t.Errorf("Flights/Days = %d/%d, want 5/1", got.Flights, got.Days)
	}
	if v, ok := got.MeanFlightsPerDay.Get(); !ok || v != 5 {
		t.Errorf("MeanFlightsPerDay = %v (known %v), want 5", v, ok)
	}
	if len(got.ByOrigin) != 1 || got.ByOrigin[0] != (routestats.KeyCount{Key: "JFK", Count: 5}) {
		t.Errorf("ByOrigin = %+v, want JFK 5", got.ByOrigin)
	}
	wantCarriers := []routestats.KeyCount{{Key: "AA", Count: 2}, {Key: "B6", Count: 2}, {Key: "DL", Count: 1}}
	if len(got.ByCarrier) != len(wantCarriers) {
		t.Fatalf("ByCarrier = %+v, want %+v", got.ByCarrier, wantCarriers)
	}
	for i := range wantCarriers {
		if got.ByCarrier[i] != wantCarriers[i] {
			t.Errorf("ByCarrier[%d] = %+v, want %+v", i, got.ByCarrier[i], wantCarriers[i])
		}
	}
	if v, _ := got.Distance.Max.Get(); v != 2475 {
		t.Errorf("Distance.Max = %v, want 2475", v)
	}
}

func TestDatasetOverview_EmptyDataset(t *testing.T) {
	svc := newTestService(store.NewMemoryStore(nil, nil, nil, nil), nil, Options{})
	if _, err := svc.DatasetOverview(context.Background()); !errors.Is(err, routestats.ErrEmptyResult) {
		t.Fatalf("DatasetOverview() error = %v, want ErrEmptyResult", err)
	}
}

func TestOriginDelays(t *testing.T) {
	svc := newTestService(fixtureStore(), nil, Options{})
	excluded := observability.RowsExcludedTotal.WithLabelValues(opOriginDelays, "unknown_arr_delay")
	before := testutil.ToFloat64(excluded)

	got, err := svc.OriginDelays(context.Background())
	if err != nil {
		t.Fatalf("OriginDelays() error = %v", err)
	}
	if len(got) != 1 || got[0].Origin != "JFK" || got[0].Flights != 4 {
		t.Fatalf("OriginDelays() = %+v, want JFK over 4 flights", got)
	}
	if got[0].MeanArrDelay != -27.5 {
		t.Errorf("MeanArrDelay = %v, want -27.5", got[0].MeanArrDelay)
	}
	if d := testutil.ToFloat64(excluded) - before; d != 1 {
		t.Errorf("unknown_arr_delay delta = %v, want 1", d)
	}
}

func TestFastestModels(t *testing.T) {
	svc := newTestService(fixtureStore(), nil, Options{})

	got, err := svc.FastestModels(context.Background(), "")
	if err != nil {
		t.Fatalf("FastestModels() error = %v", err)
	}
	want := []struct {
		model   string
		flights int
		speed   float64
	}{
		{"A321-231", 1, 450},
		{"757-232", 1, 2475 / (340.0 / 60)},
		{"172N", 2, (450 + 280.5) / 2},
	}
	if len(got) != len(want) {
		t.Fatalf("FastestModels() = %+v, want %d models", got, len(want))
	}
	for i, w := range want {
		if got[i].Model != w.model || got[i].Flights != w.flights || math.Abs(got[i].MeanSpeed-w.speed) > 1e-9 {
			t.Errorf("FastestModels()[%d] = %+v, want %s over %d at %v", i, got[i], w.model, w.flights, w.speed)
		}
	}

	top, err := svc.FastestModels(context.Background(), "2")
	if err != nil || len(top) != 2 {
		t.Errorf("FastestModels(limit 2) = %+v, %v; want 2 models", top, err)
	}
}

func TestTopRoutes(t *testing.T) {
	svc := newTestService(fixtureStore(), nil, Options{})

	got, err := svc.TopRoutes(context.Background(), "", "")
	if err != nil {
		t.Fatalf("TopRoutes() error = %v", err)
	}
	want := []routestats.RouteCount{
		{Origin: "JFK", Dest: "LAX", Flights: 4},
		{Origin: "JFK", Dest: "BOS", Flights: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("TopRoutes() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("TopRoutes()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	if _, err := svc.TopRoutes(context.Background(), "lga,ewr", ""); !errors.Is(err, routestats.ErrEmptyResult) {
		t.Errorf("TopRoutes(LGA,EWR) error = %v, want ErrEmptyResult", err)
	}
	if _, err := svc.TopRoutes(context.Background(), "JFK,XX", ""); !errors.Is(err, validation.ErrInvalidAirportCode) {
		t.Errorf("TopRoutes(JFK,XX) error = %v, want ErrInvalidAirportCode", err)
	}
}

func TestTopRoutes_ConfiguredHubs(t *testing.T) {
	svc := newTestService(fixtureStore(), nil, Options{HubOrigins: []string{"LGA"}})
	if _, err := svc.TopRoutes(context.Background(), "", ""); !errors.Is(err, routestats.ErrEmptyResult) {
		t.Fatalf("TopRoutes() with LGA hub error = %v, want ErrEmptyResult", err)
	}
}

func TestWindDelays(t *testing.T) {
	svc := newTestService(fixtureStore(), nil, Options{})

	got, err := svc.WindDelays(context.Background())
	if err != nil {
		t.Fatalf("WindDelays() error = %v", err)
	}
	want := []routestats.WindDelay{
		{WindSpeed: 10, Pairs: 4, MeanArrDelay: -27.5},
		{WindSpeed: 20, Pairs: 4, MeanArrDelay: -27.5},
	}
	if len(got) != len(want) {
		t.Fatalf("WindDelays() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("WindDelays()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestWindDelays_NoWeather(t *testing.T) {
	flights := []models.Flight{testFlight("AA", 1, "N1", "LAX", 900, 900, 1200, 1200, 330, 2475)}
	svc := newTestService(store.NewMemoryStore(nil, flights, nil, nil), nil, Options{})
	if _, err := svc.WindDelays(context.Background()); !errors.Is(err, routestats.ErrEmptyResult) {
		t.Fatalf("WindDelays() error = %v, want ErrEmptyResult", err)
	}
}
