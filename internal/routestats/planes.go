package routestats

import (
	"sort"

	"github.com/kjstillabower/flight-route-analytics/internal/models"
)

// TypeUsage is the number of flights flown by one aircraft type.
type TypeUsage struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// ComputePlaneTypeUsage joins flights to planes on tail number and counts
// flights per aircraft type. Flights whose tail number has no plane record
// are excluded. The result is ordered by count descending, then type.
func ComputePlaneTypeUsage(flights []models.Flight, planes map[string]models.Plane) []TypeUsage {
	counts := make(map[string]int)
	for _, f := range flights {
		if f.Tailnum == "" {
			continue
		}
		p, ok := planes[f.Tailnum]
		if !ok {
			continue
		}
		counts[p.Type]++
	}
	out := make([]TypeUsage, 0, len(counts))
	for t, n := range counts {
		out = append(out, TypeUsage{Type: t, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// UnmatchedFlights counts flights that ComputePlaneTypeUsage would exclude.
func UnmatchedFlights(flights []models.Flight, planes map[string]models.Plane) int {
	n := 0
	for _, f := range flights {
		if _, ok := planes[f.Tailnum]; f.Tailnum == "" || !ok {
			n++
		}
	}
	return n
}
