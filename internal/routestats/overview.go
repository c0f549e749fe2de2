package routestats

import (
	"math"
	"sort"

	"github.com/kjstillabower/flight-route-analytics/internal/models"
)

// KeyCount is a flight count for one origin, carrier or similar key.
type KeyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Range is the mean, minimum and maximum of the known values of a column.
type Range struct {
	Mean models.Optional[float64] `json:"mean"`
	Min  models.Optional[float64] `json:"min"`
	Max  models.Optional[float64] `json:"max"`
}

type rangeAcc struct {
	m        mean
	min, max float64
}

func (r *rangeAcc) add(v float64) {
	if r.m.n == 0 {
		r.min, r.max = v, v
	} else {
		r.min = math.Min(r.min, v)
		r.max = math.Max(r.max, v)
	}
	r.m.add(v)
}

func (r rangeAcc) value() Range {
	if r.m.n == 0 {
		return Range{}
	}
	return Range{Mean: r.m.value(), Min: models.Some(r.min), Max: models.Some(r.max)}
}

// DatasetOverview summarizes every flight in the dataset.
type DatasetOverview struct {
	Flights           int                      `json:"flights"`
	Days              int                      `json:"days"`
	MeanFlightsPerDay models.Optional[float64] `json:"meanFlightsPerDay"`
	AirTime           Range                    `json:"airTime"`
	Distance          Range                    `json:"distance"`
	ByOrigin          []KeyCount               `json:"byOrigin"`
	ByCarrier         []KeyCount               `json:"byCarrier"`
}

// OverviewAccumulator builds a DatasetOverview from flights streamed in any
// order.
type OverviewAccumulator struct {
	flights   int
	days      map[models.Date]struct{}
	airTime   rangeAcc
	distance  rangeAcc
	byOrigin  map[string]int
	byCarrier map[string]int
}

// NewOverviewAccumulator returns an empty accumulator.
func NewOverviewAccumulator() *OverviewAccumulator {
	return &OverviewAccumulator{
		days:      make(map[models.Date]struct{}),
		byOrigin:  make(map[string]int),
		byCarrier: make(map[string]int),
	}
}

// Add folds one flight into the overview. Unknown air times are left out of
// the air time range only.
func (a *OverviewAccumulator) Add(f models.Flight) {
	a.flights++
	a.days[f.Date] = struct{}{}
	if v, ok := f.AirTime.Get(); ok {
		a.airTime.add(v)
	}
	a.distance.add(f.Distance)
	a.byOrigin[f.Origin]++
	a.byCarrier[f.Carrier]++
}

// Overview returns the summary so far. Mean flights per day counts only
// days that had at least one flight.
func (a *OverviewAccumulator) Overview() DatasetOverview {
	o := DatasetOverview{
		Flights:   a.flights,
		Days:      len(a.days),
		AirTime:   a.airTime.value(),
		Distance:  a.distance.value(),
		ByOrigin:  rankCounts(a.byOrigin),
		ByCarrier: rankCounts(a.byCarrier),
	}
	if o.Days > 0 {
		o.MeanFlightsPerDay = models.Some(float64(o.Flights) / float64(o.Days))
	}
	return o
}

// rankCounts orders counts descending, ties by key.
func rankCounts(counts map[string]int) []KeyCount {
	out := make([]KeyCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, KeyCount{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// OriginDelay is the mean arrival delay of flights leaving one origin.
type OriginDelay struct {
	Origin       string  `json:"origin"`
	Flights      int     `json:"flights"`
	MeanArrDelay float64 `json:"meanArrDelay"`
}

// OriginDelayRanker ranks origins by mean arrival delay.
type OriginDelayRanker struct {
	byOrigin map[string]*mean
	skipped  int
}

// NewOriginDelayRanker returns an empty ranker.
func NewOriginDelayRanker() *OriginDelayRanker {
	return &OriginDelayRanker{byOrigin: make(map[string]*mean)}
}

// Add folds one flight in. Flights whose arrival delay is unknown and
// cannot be derived are skipped.
func (r *OriginDelayRanker) Add(f models.Flight) {
	d, ok := ArrivalDelay(f).Get()
	if !ok {
		r.skipped++
		return
	}
	m, ok := r.byOrigin[f.Origin]
	if !ok {
		m = &mean{}
		r.byOrigin[f.Origin] = m
	}
	m.add(d)
}

// Skipped returns how many flights had no usable arrival delay.
func (r *OriginDelayRanker) Skipped() int {
	return r.skipped
}

// Ranking returns origins by mean arrival delay, worst first, ties by code.
func (r *OriginDelayRanker) Ranking() []OriginDelay {
	out := make([]OriginDelay, 0, len(r.byOrigin))
	for origin, m := range r.byOrigin {
		out = append(out, OriginDelay{Origin: origin, Flights: m.n, MeanArrDelay: m.sum / float64(m.n)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanArrDelay != out[j].MeanArrDelay {
			return out[i].MeanArrDelay > out[j].MeanArrDelay
		}
		return out[i].Origin < out[j].Origin
	})
	return out
}

// RouteCount is the number of flights on one origin/destination pair.
type RouteCount struct {
	Origin  string `json:"origin"`
	Dest    string `json:"dest"`
	Flights int    `json:"flights"`
}

// RouteCounter counts flights per route for a fixed set of origins.
type RouteCounter struct {
	origins map[string]struct{}
	counts  map[[2]string]int
}

// NewRouteCounter counts routes leaving any of origins.
func NewRouteCounter(origins []string) *RouteCounter {
	c := &RouteCounter{origins: make(map[string]struct{}, len(origins)), counts: make(map[[2]string]int)}
	for _, o := range origins {
		c.origins[o] = struct{}{}
	}
	return c
}

// Add counts f when it leaves one of the counter's origins.
func (c *RouteCounter) Add(f models.Flight) {
	if _, ok := c.origins[f.Origin]; !ok {
		return
	}
	c.counts[[2]string{f.Origin, f.Dest}]++
}

// Top returns at most n routes by flight count, ties by origin then
// destination.
func (c *RouteCounter) Top(n int) []RouteCount {
	out := make([]RouteCount, 0, len(c.counts))
	for k, v := range c.counts {
		out = append(out, RouteCount{Origin: k[0], Dest: k[1], Flights: v})
	}
	sort.Slice(out, func(i, j int) bool {
		switch {
		case out[i].Flights != out[j].Flights:
			return out[i].Flights > out[j].Flights
		case out[i].Origin != out[j].Origin:
			return out[i].Origin < out[j].Origin
		default:
			return out[i].Dest < out[j].Dest
		}
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// WindDelay is the mean arrival delay over flight/observation pairs sharing
// one wind speed.
type WindDelay struct {
	WindSpeed    float64 `json:"windSpeed"`
	Pairs        int     `json:"pairs"`
	MeanArrDelay float64 `json:"meanArrDelay"`
}

type originDay struct {
	origin string
	date   models.Date
}

// WindDelayAccumulator relates arrival delay to the wind observed at the
// origin on the day of departure. Every observation of that day pairs with
// the flight, so a day with more readings weighs more. All observations
// must be added before the first flight.
type WindDelayAccumulator struct {
	winds   map[originDay][]float64
	buckets map[float64]*mean
	skipped int
}

// NewWindDelayAccumulator returns an empty accumulator.
func NewWindDelayAccumulator() *WindDelayAccumulator {
	return &WindDelayAccumulator{
		winds:   make(map[originDay][]float64),
		buckets: make(map[float64]*mean),
	}
}

// AddObservation records one reading. Readings without a wind speed are
// ignored.
func (a *WindDelayAccumulator) AddObservation(w models.WeatherObservation) {
	speed, ok := w.WindSpeed.Get()
	if !ok {
		return
	}
	k := originDay{w.Origin, w.Date}
	a.winds[k] = append(a.winds[k], speed)
}

// AddFlight pairs f with every reading at its origin on its date. Flights
// with no usable arrival delay or no reading that day are skipped.
func (a *WindDelayAccumulator) AddFlight(f models.Flight) {
	d, ok := ArrivalDelay(f).Get()
	speeds := a.winds[originDay{f.Origin, f.Date}]
	if !ok || len(speeds) == 0 {
		a.skipped++
		return
	}
	for _, s := range speeds {
		m, ok := a.buckets[s]
		if !ok {
			m = &mean{}
			a.buckets[s] = m
		}
		m.add(d)
	}
}

// Skipped returns how many flights were left out.
func (a *WindDelayAccumulator) Skipped() int {
	return a.skipped
}

// Curve returns one point per observed wind speed, ascending.
func (a *WindDelayAccumulator) Curve() []WindDelay {
	out := make([]WindDelay, 0, len(a.buckets))
	for s, m := range a.buckets {
		out = append(out, WindDelay{WindSpeed: s, Pairs: m.n, MeanArrDelay: m.sum / float64(m.n)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WindSpeed < out[j].WindSpeed })
	return out
}
