package wind

import "github.com/kjstillabower/flight-route-analytics/internal/models"

// Group aggregates flights sharing the sign of their alignment.
type Group struct {
	Flights      int                      `json:"flights"`
	MeanAirTime  models.Optional[float64] `json:"meanAirTime"`
	MeanArrDelay models.Optional[float64] `json:"meanArrDelay"`
}

// Summary contrasts tailwind flights with headwind flights. Flights with an
// alignment of exactly zero are counted as crosswind.
type Summary struct {
	Tailwind  Group `json:"tailwind"`
	Headwind  Group `json:"headwind"`
	Crosswind Group `json:"crosswind"`
}

type groupAcc struct {
	flights       int
	airSum, delay float64
	airN, delayN  int
}

func (g *groupAcc) add(r AlignmentRecord) {
	g.flights++
	if v, ok := r.AirTime.Get(); ok {
		g.airSum += v
		g.airN++
	}
	if v, ok := r.ArrDelay.Get(); ok {
		g.delay += v
		g.delayN++
	}
}

func (g groupAcc) group() Group {
	out := Group{Flights: g.flights}
	if g.airN > 0 {
		out.MeanAirTime = models.Some(g.airSum / float64(g.airN))
	}
	if g.delayN > 0 {
		out.MeanArrDelay = models.Some(g.delay / float64(g.delayN))
	}
	return out
}

// Summarize computes mean air time and arrival delay per alignment sign.
// Unknown air times and delays are excluded from the means.
func Summarize(records []AlignmentRecord) Summary {
	var tail, head, cross groupAcc
	for _, r := range records {
		switch {
		case r.Alignment > 0:
			tail.add(r)
		case r.Alignment < 0:
			head.add(r)
		default:
			cross.add(r)
		}
	}
	return Summary{Tailwind: tail.group(), Headwind: head.group(), Crosswind: cross.group()}
}
