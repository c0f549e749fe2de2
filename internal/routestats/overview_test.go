package routestats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/flight-route-analytics/internal/models"
)

var nextDay = models.NewDate(2023, 1, 16)

func delayed(origin, dest string, date models.Date, arrDelay float64) models.Flight {
	f := flight("AA", origin, dest)
	f.Date = date
	f.ArrDelay = models.Some(arrDelay)
	return f
}

func TestOverviewAccumulator(t *testing.T) {
	f1 := flight("AA", "JFK", "LAX")
	f1.AirTime, f1.Distance = models.Some(300.0), 2475
	f2 := flight("DL", "JFK", "LAX")
	f2.Distance = 2475
	f3 := flight("AA", "LGA", "ATL")
	f3.Date, f3.AirTime, f3.Distance = nextDay, models.Some(120.0), 762

	acc := NewOverviewAccumulator()
	for _, f := range []models.Flight{f1, f2, f3} {
		acc.Add(f)
	}
	o := acc.Overview()

	assert.Equal(t, 3, o.Flights)
	assert.Equal(t, 2, o.Days)
	assert.Equal(t, models.Some(1.5), o.MeanFlightsPerDay)
	assert.Equal(t, Range{Mean: models.Some(210.0), Min: models.Some(120.0), Max: models.Some(300.0)}, o.AirTime)
	assert.InDelta(t, 1904, o.Distance.Mean.Value, 1e-9)
	assert.Equal(t, []KeyCount{{"JFK", 2}, {"LGA", 1}}, o.ByOrigin)
	assert.Equal(t, []KeyCount{{"AA", 2}, {"DL", 1}}, o.ByCarrier)
}

func TestOverviewAccumulator_Empty(t *testing.T) {
	o := NewOverviewAccumulator().Overview()
	assert.Zero(t, o.Flights)
	assert.False(t, o.MeanFlightsPerDay.Valid)
	assert.False(t, o.AirTime.Mean.Valid)
	assert.Empty(t, o.ByOrigin)
}

func TestOriginDelayRanker(t *testing.T) {
	r := NewOriginDelayRanker()
	r.Add(delayed("JFK", "LAX", testDate, 10))
	r.Add(delayed("JFK", "BOS", testDate, 20))
	r.Add(delayed("LGA", "ATL", testDate, 30))
	r.Add(flight("AA", "EWR", "ORD"))

	assert.Equal(t, []OriginDelay{
		{Origin: "LGA", Flights: 1, MeanArrDelay: 30},
		{Origin: "JFK", Flights: 2, MeanArrDelay: 15},
	}, r.Ranking())
	assert.Equal(t, 1, r.Skipped())
}

func TestRouteCounter(t *testing.T) {
	c := NewRouteCounter([]string{"JFK", "LGA"})
	for _, f := range []models.Flight{
		flight("AA", "JFK", "LAX"),
		flight("DL", "JFK", "LAX"),
		flight("B6", "JFK", "BOS"),
		flight("DL", "LGA", "ATL"),
		flight("UA", "EWR", "ORD"),
	} {
		c.Add(f)
	}

	assert.Equal(t, []RouteCount{
		{Origin: "JFK", Dest: "LAX", Flights: 2},
		{Origin: "JFK", Dest: "BOS", Flights: 1},
	}, c.Top(2))
	assert.Len(t, c.Top(10), 3)
}

func TestWindDelayAccumulator(t *testing.T) {
	acc := NewWindDelayAccumulator()
	acc.AddObservation(models.WeatherObservation{Origin: "JFK", Date: testDate, Hour: 8, WindSpeed: models.Some(10.0)})
	acc.AddObservation(models.WeatherObservation{Origin: "JFK", Date: testDate, Hour: 9, WindSpeed: models.Some(20.0)})
	acc.AddObservation(models.WeatherObservation{Origin: "JFK", Date: testDate, Hour: 10})
	acc.AddObservation(models.WeatherObservation{Origin: "LGA", Date: testDate, Hour: 8, WindSpeed: models.Some(10.0)})

	acc.AddFlight(delayed("JFK", "LAX", testDate, 30))
	acc.AddFlight(delayed("LGA", "ATL", testDate, 10))
	acc.AddFlight(delayed("JFK", "LAX", nextDay, 5))
	acc.AddFlight(flight("AA", "JFK", "BOS"))

	assert.Equal(t, []WindDelay{
		{WindSpeed: 10, Pairs: 2, MeanArrDelay: 20},
		{WindSpeed: 20, Pairs: 1, MeanArrDelay: 30},
	}, acc.Curve())
	assert.Equal(t, 2, acc.Skipped())
}

func TestSpeedAccumulator_ByModel(t *testing.T) {
	hop := func(tail string, distance float64) models.Flight {
		f := flight("AA", "JFK", "BOS")
		f.Tailnum, f.Distance, f.AirTime = tail, distance, models.Some(60.0)
		return f
	}
	acc := NewSpeedAccumulator()
	for _, f := range []models.Flight{hop("N1", 600), hop("N1", 300), hop("N2", 500), hop("N3", 400)} {
		require.True(t, acc.Add(f))
	}
	planes := map[string]models.Plane{
		"N1": {Tailnum: "N1", Model: "A320-232"},
		"N2": {Tailnum: "N2", Model: "737-824"},
	}

	got, unmatched := acc.ByModel(planes, 10)
	assert.Equal(t, []ModelSpeed{
		{Model: "737-824", Flights: 1, MeanSpeed: 500},
		{Model: "A320-232", Flights: 2, MeanSpeed: 450},
	}, got)
	assert.Equal(t, 1, unmatched)
	assert.Equal(t, []string{"N1", "N2", "N3"}, acc.Tailnums())

	top, _ := acc.ByModel(planes, 1)
	assert.Len(t, top, 1)
}
