package routestats

import (
	"sort"

	"github.com/kjstillabower/flight-route-analytics/internal/models"
)

// SpeedAccumulator collects per-tail-number average ground speed in miles
// per hour from flights streamed in any order.
type SpeedAccumulator struct {
	speeds  map[string]*mean
	skipped int
}

// NewSpeedAccumulator returns an empty accumulator.
func NewSpeedAccumulator() *SpeedAccumulator {
	return &SpeedAccumulator{speeds: make(map[string]*mean)}
}

// Add folds one flight into the averages. Flights with no tail number, a
// non-positive distance or an unknown or non-positive air time are skipped
// and Add reports false.
func (a *SpeedAccumulator) Add(f models.Flight) bool {
	airTime, ok := f.AirTime.Get()
	if f.Tailnum == "" || !ok || airTime <= 0 || f.Distance <= 0 {
		a.skipped++
		return false
	}
	m, ok := a.speeds[f.Tailnum]
	if !ok {
		m = &mean{}
		a.speeds[f.Tailnum] = m
	}
	m.add(f.Distance / (airTime / 60))
	return true
}

// Skipped returns how many flights Add rejected.
func (a *SpeedAccumulator) Skipped() int {
	return a.skipped
}

// Speeds returns the mean speed per tail number.
func (a *SpeedAccumulator) Speeds() map[string]float64 {
	out := make(map[string]float64, len(a.speeds))
	for tail, m := range a.speeds {
		out[tail] = m.sum / float64(m.n)
	}
	return out
}

// Tailnums returns every tail number with at least one accepted flight,
// sorted.
func (a *SpeedAccumulator) Tailnums() []string {
	out := make([]string, 0, len(a.speeds))
	for tail := range a.speeds {
		out = append(out, tail)
	}
	sort.Strings(out)
	return out
}

// ModelSpeed is the mean ground speed over every flight flown by one plane
// model.
type ModelSpeed struct {
	Model     string  `json:"model"`
	Flights   int     `json:"flights"`
	MeanSpeed float64 `json:"meanSpeed"`
}

// ByModel regroups the accumulated flights by the model of their plane and
// returns at most n models, fastest first, ties by model name. Each flight
// weighs the same regardless of which airframe flew it. The second result
// counts flights whose tail number has no plane row or no model.
func (a *SpeedAccumulator) ByModel(planes map[string]models.Plane, n int) ([]ModelSpeed, int) {
	byModel := make(map[string]*mean)
	unmatched := 0
	for tail, m := range a.speeds {
		p, ok := planes[tail]
		if !ok || p.Model == "" {
			unmatched += m.n
			continue
		}
		agg, ok := byModel[p.Model]
		if !ok {
			agg = &mean{}
			byModel[p.Model] = agg
		}
		agg.sum += m.sum
		agg.n += m.n
	}
	out := make([]ModelSpeed, 0, len(byModel))
	for model, m := range byModel {
		out = append(out, ModelSpeed{Model: model, Flights: m.n, MeanSpeed: m.sum / float64(m.n)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanSpeed != out[j].MeanSpeed {
			return out[i].MeanSpeed > out[j].MeanSpeed
		}
		return out[i].Model < out[j].Model
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out, unmatched
}
