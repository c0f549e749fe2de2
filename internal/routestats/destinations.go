package routestats

import (
	"sort"

	"github.com/kjstillabower/flight-route-analytics/internal/models"
)

// DestinationCount is the number of flights to one destination.
type DestinationCount struct {
	Dest  string `json:"dest"`
	Count int    `json:"count"`
}

// DestinationStats summarizes one origin's flights on one day.
type DestinationStats struct {
	Total                int                `json:"total"`
	UniqueDestinations   int                `json:"uniqueDestinations"`
	TopDestination       DestinationCount   `json:"topDestination"`
	LeastDestination     DestinationCount   `json:"leastDestination"`
	MeanPerDestination   float64            `json:"meanPerDestination"`
	MinPerDestination    int                `json:"minPerDestination"`
	MedianPerDestination float64            `json:"medianPerDestination"`
	Destinations         []DestinationCount `json:"destinations"` // count desc, code asc
}

// ComputeDestinationStats counts flights per destination. Ties for the top
// and the least visited destination go to the lexicographically smallest
// code. It returns ErrEmptyResult when flights is empty.
func ComputeDestinationStats(flights []models.Flight) (DestinationStats, error) {
	if len(flights) == 0 {
		return DestinationStats{}, ErrEmptyResult
	}
	counts := make(map[string]int)
	for _, f := range flights {
		counts[f.Dest]++
	}
	dests := make([]DestinationCount, 0, len(counts))
	for d, n := range counts {
		dests = append(dests, DestinationCount{Dest: d, Count: n})
	}
	sort.Slice(dests, func(i, j int) bool {
		if dests[i].Count != dests[j].Count {
			return dests[i].Count > dests[j].Count
		}
		return dests[i].Dest < dests[j].Dest
	})

	least := dests[len(dests)-1]
	for _, d := range dests {
		if d.Count == least.Count && d.Dest < least.Dest {
			least = d
		}
	}

	values := make([]float64, len(dests))
	for i, d := range dests {
		values[i] = float64(d.Count)
	}
	sort.Float64s(values)

	return DestinationStats{
		Total:                len(flights),
		UniqueDestinations:   len(dests),
		TopDestination:       dests[0],
		LeastDestination:     least,
		MeanPerDestination:   float64(len(flights)) / float64(len(dests)),
		MinPerDestination:    least.Count,
		MedianPerDestination: quantileSorted(values, 0.5),
		Destinations:         dests,
	}, nil
}

// TopDestinations returns at most n destinations by flight count. A
// negative n returns every destination.
func TopDestinations(flights []models.Flight, n int) []DestinationCount {
	stats, err := ComputeDestinationStats(flights)
	if err != nil {
		return nil
	}
	if n >= 0 && n < len(stats.Destinations) {
		return stats.Destinations[:n]
	}
	return stats.Destinations
}
