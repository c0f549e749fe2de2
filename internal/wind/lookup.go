package wind

import (
	"sort"
	"time"

	"github.com/kjstillabower/flight-route-analytics/internal/models"
)

// WeatherLookup finds the observation at origin closest to at.
type WeatherLookup interface {
	Nearest(origin string, at time.Time, tolerance time.Duration) (models.WeatherObservation, bool)
}

// ObservationIndex is a WeatherLookup over an in-memory set of observations.
type ObservationIndex struct {
	byOrigin map[string][]models.WeatherObservation
}

// NewObservationIndex indexes observations by origin in time order.
func NewObservationIndex(observations []models.WeatherObservation) *ObservationIndex {
	ix := &ObservationIndex{byOrigin: make(map[string][]models.WeatherObservation)}
	for _, o := range observations {
		ix.byOrigin[o.Origin] = append(ix.byOrigin[o.Origin], o)
	}
	for _, obs := range ix.byOrigin {
		sort.SliceStable(obs, func(i, j int) bool {
			return obs[i].Time().Before(obs[j].Time())
		})
	}
	return ix
}

// Nearest returns the observation closest in time to at, within tolerance
// inclusive. When two observations are equally close the earlier wins.
func (ix *ObservationIndex) Nearest(origin string, at time.Time, tolerance time.Duration) (models.WeatherObservation, bool) {
	obs := ix.byOrigin[origin]
	if len(obs) == 0 {
		return models.WeatherObservation{}, false
	}
	// First observation at or after at.
	i := sort.Search(len(obs), func(i int) bool {
		return !obs[i].Time().Before(at)
	})

	best := -1
	var bestGap time.Duration
	if i > 0 {
		best = i - 1
		bestGap = at.Sub(obs[i-1].Time())
	}
	if i < len(obs) {
		gap := obs[i].Time().Sub(at)
		if best < 0 || gap < bestGap {
			best = i
			bestGap = gap
		}
	}
	if best < 0 || bestGap > tolerance {
		return models.WeatherObservation{}, false
	}
	return obs[best], true
}
