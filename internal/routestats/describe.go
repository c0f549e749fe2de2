package routestats

import (
	"math"
	"sort"

	"github.com/kjstillabower/flight-route-analytics/internal/models"
	"github.com/kjstillabower/flight-route-analytics/internal/timenorm"
)

// Distribution is a descriptive summary of a sample. Every statistic is
// unknown for an empty sample; Std is also unknown for a single value.
type Distribution struct {
	Count  int                      `json:"count"`
	Mean   models.Optional[float64] `json:"mean"`
	Std    models.Optional[float64] `json:"std"`
	Min    models.Optional[float64] `json:"min"`
	P25    models.Optional[float64] `json:"p25"`
	Median models.Optional[float64] `json:"median"`
	P75    models.Optional[float64] `json:"p75"`
	Max    models.Optional[float64] `json:"max"`
}

// Describe summarizes values. Quantiles interpolate linearly between
// closest ranks and Std is the sample standard deviation.
func Describe(values []float64) Distribution {
	d := Distribution{Count: len(values)}
	if len(values) == 0 {
		return d
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	avg := sum / float64(len(sorted))
	d.Mean = models.Some(avg)
	if len(sorted) > 1 {
		var sq float64
		for _, v := range sorted {
			sq += (v - avg) * (v - avg)
		}
		d.Std = models.Some(math.Sqrt(sq / float64(len(sorted)-1)))
	}
	d.Min = models.Some(sorted[0])
	d.P25 = models.Some(quantileSorted(sorted, 0.25))
	d.Median = models.Some(quantileSorted(sorted, 0.5))
	d.P75 = models.Some(quantileSorted(sorted, 0.75))
	d.Max = models.Some(sorted[len(sorted)-1])
	return d
}

// quantileSorted assumes sorted is ascending and non-empty.
func quantileSorted(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// FlightSummary describes an origin's flights.
type FlightSummary struct {
	Flights  int          `json:"flights"`
	AirTime  Distribution `json:"airTime"`
	Distance Distribution `json:"distance"`
	DepDelay Distribution `json:"depDelay"`
	ArrDelay Distribution `json:"arrDelay"`
}

// DescribeFlights summarizes air time, distance and delays. Unknown values
// are left out of each distribution.
func DescribeFlights(flights []models.Flight) FlightSummary {
	var airTime, distance, dep, arr []float64
	for _, f := range flights {
		if v, ok := f.AirTime.Get(); ok {
			airTime = append(airTime, v)
		}
		distance = append(distance, f.Distance)
		if v, ok := DepartureDelay(f).Get(); ok {
			dep = append(dep, v)
		}
		if v, ok := ArrivalDelay(f).Get(); ok {
			arr = append(arr, v)
		}
	}
	return FlightSummary{
		Flights:  len(flights),
		AirTime:  Describe(airTime),
		Distance: Describe(distance),
		DepDelay: Describe(dep),
		ArrDelay: Describe(arr),
	}
}

// HourlyDelay is the mean departure delay for flights scheduled to leave
// within one hour of the day.
type HourlyDelay struct {
	Hour         int                      `json:"hour"`
	Flights      int                      `json:"flights"`
	MeanDepDelay models.Optional[float64] `json:"meanDepDelay"`
}

// DelayByHour buckets flights by scheduled departure hour. Flights with an
// unknown scheduled departure are left out. Only hours with flights appear,
// in ascending order.
func DelayByHour(flights []models.Flight) []HourlyDelay {
	var buckets [24]struct {
		flights int
		delay   mean
	}
	for _, f := range flights {
		c, ok := timenorm.ClockOrUnknown(f.SchedDepTime).Get()
		if !ok {
			continue
		}
		b := &buckets[c.Hour]
		b.flights++
		b.delay.addOptional(DepartureDelay(f))
	}
	var out []HourlyDelay
	for h, b := range buckets {
		if b.flights == 0 {
			continue
		}
		out = append(out, HourlyDelay{Hour: h, Flights: b.flights, MeanDepDelay: b.delay.value()})
	}
	return out
}
