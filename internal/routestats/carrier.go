// Package routestats aggregates flight records into route, carrier,
// destination and airframe statistics. Every function is pure: it takes the
// rows it needs and returns plain values with unknowns made explicit.
package routestats

import (
	"errors"

	"github.com/kjstillabower/flight-route-analytics/internal/models"
	"github.com/kjstillabower/flight-route-analytics/internal/timenorm"
)

// ErrEmptyResult is returned when an aggregate has no rows to summarize.
var ErrEmptyResult = errors.New("no rows to summarize")

// CarrierStats summarizes one carrier's flights on a route. Delay means
// exclude unknown delays and are unknown when no flight had a known delay.
type CarrierStats struct {
	Carrier      string                              `json:"carrier"`
	Count        int                                 `json:"count"`
	MeanDepDelay models.Optional[float64]            `json:"meanDepDelay"`
	MeanArrDelay models.Optional[float64]            `json:"meanArrDelay"`
	EarliestDep  models.Optional[timenorm.ClockTime] `json:"earliestDep"`
	LatestDep    models.Optional[timenorm.ClockTime] `json:"latestDep"`
}

// ComputeCarrierStats groups flights by carrier. An empty input yields an
// empty map.
func ComputeCarrierStats(flights []models.Flight) map[string]CarrierStats {
	type acc struct {
		count            int
		dep, arr         mean
		earliest, latest models.Optional[timenorm.ClockTime]
	}
	groups := make(map[string]*acc)
	for _, f := range flights {
		a, ok := groups[f.Carrier]
		if !ok {
			a = &acc{}
			groups[f.Carrier] = a
		}
		a.count++
		a.dep.addOptional(DepartureDelay(f))
		a.arr.addOptional(ArrivalDelay(f))
		if c, ok := timenorm.ClockOrUnknown(f.DepTime).Get(); ok {
			if e, known := a.earliest.Get(); !known || c.Minutes() < e.Minutes() {
				a.earliest = models.Some(c)
			}
			if l, known := a.latest.Get(); !known || c.Minutes() > l.Minutes() {
				a.latest = models.Some(c)
			}
		}
	}

	out := make(map[string]CarrierStats, len(groups))
	for carrier, a := range groups {
		out[carrier] = CarrierStats{
			Carrier:      carrier,
			Count:        a.count,
			MeanDepDelay: a.dep.value(),
			MeanArrDelay: a.arr.value(),
			EarliestDep:  a.earliest,
			LatestDep:    a.latest,
		}
	}
	return out
}

// DepartureDelay returns the stored departure delay, or derives it from the
// scheduled and actual departure times when both decode.
func DepartureDelay(f models.Flight) models.Optional[float64] {
	return resolveDelay(f.DepDelay, f.SchedDepTime, f.DepTime)
}

// ArrivalDelay is DepartureDelay for arrivals.
func ArrivalDelay(f models.Flight) models.Optional[float64] {
	return resolveDelay(f.ArrDelay, f.SchedArrTime, f.ArrTime)
}

func resolveDelay(stored models.Optional[float64], sched, actual models.Optional[int]) models.Optional[float64] {
	if stored.Valid {
		return stored
	}
	s, ok := timenorm.ClockOrUnknown(sched).Get()
	if !ok {
		return models.None[float64]()
	}
	a, ok := timenorm.ClockOrUnknown(actual).Get()
	if !ok {
		return models.None[float64]()
	}
	return models.Some(float64(timenorm.DelayMinutes(s, a)))
}

// mean accumulates a running mean over known values.
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) {
	m.sum += v
	m.n++
}

func (m *mean) addOptional(v models.Optional[float64]) {
	if x, ok := v.Get(); ok {
		m.add(x)
	}
}

func (m mean) value() models.Optional[float64] {
	if m.n == 0 {
		return models.None[float64]()
	}
	return models.Some(m.sum / float64(m.n))
}
