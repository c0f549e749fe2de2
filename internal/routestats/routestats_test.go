package routestats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/flight-route-analytics/internal/models"
	"github.com/kjstillabower/flight-route-analytics/internal/timenorm"
)

var testDate = models.NewDate(2023, 1, 15)

func flight(carrier, origin, dest string) models.Flight {
	return models.Flight{Date: testDate, Carrier: carrier, Origin: origin, Dest: dest}
}

func TestComputeCarrierStats(t *testing.T) {
	aa1 := flight("AA", "JFK", "LAX")
	aa1.DepDelay = models.Some(10.0)
	aa1.DepTime = models.Some(905)
	aa2 := flight("AA", "JFK", "LAX")
	aa2.DepDelay = models.Some(20.0)
	aa2.DepTime = models.Some(1730)
	dl := flight("DL", "JFK", "LAX")

	stats := ComputeCarrierStats([]models.Flight{aa1, aa2, dl})
	require.Len(t, stats, 2)

	aa := stats["AA"]
	assert.Equal(t, 2, aa.Count)
	assert.Equal(t, models.Some(15.0), aa.MeanDepDelay)
	assert.False(t, aa.MeanArrDelay.Valid)
	assert.Equal(t, models.Some(timenorm.ClockTime{Hour: 9, Minute: 5}), aa.EarliestDep)
	assert.Equal(t, models.Some(timenorm.ClockTime{Hour: 17, Minute: 30}), aa.LatestDep)

	d := stats["DL"]
	assert.Equal(t, 1, d.Count)
	assert.False(t, d.MeanDepDelay.Valid, "DL has no known delay")
	assert.False(t, d.EarliestDep.Valid)
}

func TestComputeCarrierStats_Empty(t *testing.T) {
	assert.Empty(t, ComputeCarrierStats(nil))
}

func TestComputeCarrierStats_CountsSumToInput(t *testing.T) {
	var flights []models.Flight
	for i, c := range []string{"AA", "B6", "AA", "UA", "B6", "AA"} {
		f := flight(c, "JFK", "LAX")
		f.FlightNumber = i
		flights = append(flights, f)
	}
	total := 0
	for _, s := range ComputeCarrierStats(flights) {
		total += s.Count
	}
	assert.Equal(t, len(flights), total)
}

func TestDepartureDelay_Derived(t *testing.T) {
	f := flight("AA", "JFK", "LAX")
	f.SchedDepTime = models.Some(2350)
	f.DepTime = models.Some(15)
	assert.Equal(t, models.Some(25.0), DepartureDelay(f))

	f.DepDelay = models.Some(-3.0)
	assert.Equal(t, models.Some(-3.0), DepartureDelay(f), "stored delay wins")

	f.DepDelay = models.None[float64]()
	f.DepTime = models.Some(2460)
	assert.False(t, DepartureDelay(f).Valid, "undecodable actual time")
}

func TestComputeDestinationStats(t *testing.T) {
	var flights []models.Flight
	for _, d := range []string{"LAX", "ORD", "LAX", "BOS", "ORD", "LAX", "ORD"} {
		flights = append(flights, flight("AA", "JFK", d))
	}

	stats, err := ComputeDestinationStats(flights)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Total)
	assert.Equal(t, 3, stats.UniqueDestinations)
	assert.Equal(t, DestinationCount{Dest: "LAX", Count: 3}, stats.TopDestination)
	assert.Equal(t, DestinationCount{Dest: "BOS", Count: 1}, stats.LeastDestination)
	assert.Equal(t, 1, stats.MinPerDestination)
	assert.InDelta(t, 7.0/3.0, stats.MeanPerDestination, 1e-9)
	assert.Equal(t, 3.0, stats.MedianPerDestination)
	assert.Equal(t, []DestinationCount{{"LAX", 3}, {"ORD", 3}, {"BOS", 1}}, stats.Destinations)
}

func TestComputeDestinationStats_EvenMedian(t *testing.T) {
	var flights []models.Flight
	for _, d := range []string{"ATL", "ATL", "MIA", "SFO", "SFO", "SFO", "SFO", "DEN"} {
		flights = append(flights, flight("AA", "JFK", d))
	}
	stats, err := ComputeDestinationStats(flights)
	require.NoError(t, err)
	// counts 1, 1, 2, 4
	assert.Equal(t, 1.5, stats.MedianPerDestination)
	assert.Equal(t, DestinationCount{Dest: "DEN", Count: 1}, stats.LeastDestination)
}

func TestComputeDestinationStats_Empty(t *testing.T) {
	_, err := ComputeDestinationStats(nil)
	assert.ErrorIs(t, err, ErrEmptyResult)
	assert.Nil(t, TopDestinations(nil, 5))
}

func TestTopDestinations(t *testing.T) {
	var flights []models.Flight
	for _, d := range []string{"A", "B", "B", "C", "C", "C"} {
		flights = append(flights, flight("AA", "JFK", d))
	}
	top := TopDestinations(flights, 2)
	assert.Equal(t, []DestinationCount{{"C", 3}, {"B", 2}}, top)
	assert.Len(t, TopDestinations(flights, 10), 3)
	assert.Len(t, TopDestinations(flights, -1), 3)
}

func TestComputePlaneTypeUsage(t *testing.T) {
	planes := map[string]models.Plane{
		"N1": {Tailnum: "N1", Type: "Fixed wing multi engine"},
		"N2": {Tailnum: "N2", Type: "Fixed wing multi engine"},
		"N3": {Tailnum: "N3", Type: "Rotorcraft"},
	}
	var flights []models.Flight
	for _, tail := range []string{"N1", "N2", "N1", "N3", "N9", ""} {
		f := flight("AA", "JFK", "LAX")
		f.Tailnum = tail
		flights = append(flights, f)
	}

	usage := ComputePlaneTypeUsage(flights, planes)
	assert.Equal(t, []TypeUsage{
		{Type: "Fixed wing multi engine", Count: 3},
		{Type: "Rotorcraft", Count: 1},
	}, usage)
	assert.Equal(t, 2, UnmatchedFlights(flights, planes))

	assert.Empty(t, ComputePlaneTypeUsage(flights, nil))
}

func TestSpeedAccumulator(t *testing.T) {
	acc := NewSpeedAccumulator()
	mk := func(tail string, dist float64, air models.Optional[float64]) models.Flight {
		f := flight("AA", "JFK", "LAX")
		f.Tailnum = tail
		f.Distance = dist
		f.AirTime = air
		return f
	}
	assert.True(t, acc.Add(mk("N1", 500, models.Some(60.0))))
	assert.True(t, acc.Add(mk("N1", 300, models.Some(30.0))))
	assert.True(t, acc.Add(mk("N2", 1000, models.Some(120.0))))
	assert.False(t, acc.Add(mk("N2", 1000, models.Some(0.0))))
	assert.False(t, acc.Add(mk("N3", 1000, models.None[float64]())))
	assert.False(t, acc.Add(mk("N3", 0, models.Some(60.0))))
	assert.False(t, acc.Add(mk("", 100, models.Some(60.0))))

	speeds := acc.Speeds()
	require.Len(t, speeds, 2)
	assert.InDelta(t, 550.0, speeds["N1"], 1e-9)
	assert.InDelta(t, 500.0, speeds["N2"], 1e-9)
	assert.Equal(t, 4, acc.Skipped())
}

func TestDescribe(t *testing.T) {
	d := Describe([]float64{4, 1, 3, 2})
	assert.Equal(t, 4, d.Count)
	assert.Equal(t, models.Some(2.5), d.Mean)
	assert.InDelta(t, 1.2909944, d.Std.Value, 1e-6)
	assert.Equal(t, models.Some(1.0), d.Min)
	assert.Equal(t, models.Some(1.75), d.P25)
	assert.Equal(t, models.Some(2.5), d.Median)
	assert.Equal(t, models.Some(3.25), d.P75)
	assert.Equal(t, models.Some(4.0), d.Max)

	single := Describe([]float64{7})
	assert.Equal(t, models.Some(7.0), single.Median)
	assert.False(t, single.Std.Valid)

	empty := Describe(nil)
	assert.Equal(t, 0, empty.Count)
	assert.False(t, empty.Mean.Valid)
}

func TestDescribeFlights(t *testing.T) {
	a := flight("AA", "JFK", "LAX")
	a.AirTime = models.Some(300.0)
	a.Distance = 2475
	b := flight("AA", "JFK", "BOS")
	b.Distance = 187
	b.DepDelay = models.Some(12.0)

	s := DescribeFlights([]models.Flight{a, b})
	assert.Equal(t, 2, s.Flights)
	assert.Equal(t, 1, s.AirTime.Count)
	assert.Equal(t, 2, s.Distance.Count)
	assert.Equal(t, models.Some(1331.0), s.Distance.Mean)
	assert.Equal(t, 1, s.DepDelay.Count)
	assert.Equal(t, 0, s.ArrDelay.Count)
}

func TestDelayByHour(t *testing.T) {
	mk := func(sched int, delay float64) models.Flight {
		f := flight("AA", "JFK", "LAX")
		f.SchedDepTime = models.Some(sched)
		f.DepDelay = models.Some(delay)
		return f
	}
	unknown := flight("AA", "JFK", "LAX")
	flights := []models.Flight{mk(605, 10), mk(659, 20), mk(1400, -4), unknown}

	got := DelayByHour(flights)
	assert.Equal(t, []HourlyDelay{
		{Hour: 6, Flights: 2, MeanDepDelay: models.Some(15.0)},
		{Hour: 14, Flights: 1, MeanDepDelay: models.Some(-4.0)},
	}, got)
	assert.Empty(t, DelayByHour(nil))
}

func TestCompareDistance(t *testing.T) {
	jfk := models.Airport{Code: "JFK", Lat: 40.6398, Lon: -73.7789}
	lax := models.Airport{Code: "LAX", Lat: 33.9425, Lon: -118.4081}
	f := flight("AA", "JFK", "LAX")
	f.Distance = 2475

	g := CompareDistance(jfk, lax, []models.Flight{f})
	assert.InDelta(t, 2470, g.ComputedMiles, 5)
	assert.InDelta(t, 3975, g.ComputedKm, 10)
	require.True(t, g.Bearing.Valid)
	assert.InDelta(t, 274, g.Bearing.Value, 2)
	assert.Equal(t, models.Some(2475.0), g.RecordedMiles)
	assert.Less(t, g.DifferenceMiles.Value, 10.0)

	same := CompareDistance(jfk, jfk, nil)
	assert.Equal(t, 0.0, same.ComputedMiles)
	assert.False(t, same.Bearing.Valid)
	assert.False(t, same.RecordedMiles.Valid)
}

func TestCheckConsistency(t *testing.T) {
	loc, err := timenorm.NewLocalizer(8, zap.NewNop())
	require.NoError(t, err)
	zones := map[string]string{
		"JFK": "America/New_York",
		"LAX": "America/Los_Angeles",
		"XXX": "",
	}
	mk := func(dest string, dep, arr int, air float64) models.Flight {
		f := flight("AA", "JFK", dest)
		f.DepTime = models.Some(dep)
		f.ArrTime = models.Some(arr)
		f.AirTime = models.Some(air)
		return f
	}

	ok := mk("LAX", 900, 1200, 330)        // 6h elapsed in LA terms
	tooLong := mk("LAX", 900, 1100, 330)   // 5h elapsed
	overnight := mk("LAX", 2200, 100, 330) // 22:00 ET = 19:00 PT, 6h
	bad := mk("LAX", 2460, 1200, 330)
	noZone := mk("XXX", 900, 1200, 60)
	noAir := flight("AA", "JFK", "LAX")

	report := CheckConsistency(
		[]models.Flight{ok, tooLong, overnight, bad, noZone, noAir},
		zones, loc, DefaultConsistencyTolerance,
	)
	assert.Equal(t, 4, report.Checked)
	assert.Equal(t, 2, report.Skipped)
	require.Len(t, report.Issues, 2)
	assert.Equal(t, ReasonAirTimeExceedsElapsed, report.Issues[0].Reason)
	assert.Equal(t, models.Some(300.0), report.Issues[0].ElapsedMinutes)
	assert.Equal(t, ReasonUndecodableTime, report.Issues[1].Reason)

	// Same flight within tolerance is not flagged.
	within := mk("LAX", 900, 1100, 304)
	assert.Empty(t, CheckConsistency([]models.Flight{within}, zones, loc, 5*time.Minute).Issues)
}

// TestCheckConsistency_DestinationWithoutAirportRow verifies a destination
// missing from the airports table is an unmatched join, not an unknown zone.
func TestCheckConsistency_DestinationWithoutAirportRow(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	loc, err := timenorm.NewLocalizer(8, zap.New(core))
	require.NoError(t, err)
	zones := map[string]string{"JFK": "America/New_York", "LAX": "America/Los_Angeles"}

	orphan := flight("AA", "JFK", "ZZZ")
	orphan.DepTime = models.Some(900)
	orphan.ArrTime = models.Some(1200)
	orphan.AirTime = models.Some(120.0)
	known := flight("AA", "JFK", "LAX")
	known.DepTime = models.Some(900)
	known.ArrTime = models.Some(1200)
	known.AirTime = models.Some(330.0)

	report := CheckConsistency([]models.Flight{orphan, known}, zones, loc, DefaultConsistencyTolerance)
	assert.Equal(t, 1, report.UnmatchedAirports)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 1, report.Checked)
	assert.Empty(t, report.Issues)
	assert.Zero(t, logs.FilterMessage("unknown timezone; dependent values marked unknown").Len(),
		"missing airport row must not be reported as an unknown timezone")
}
