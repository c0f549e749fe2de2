package routestats

import (
	"time"

	"github.com/kjstillabower/flight-route-analytics/internal/models"
	"github.com/kjstillabower/flight-route-analytics/internal/timenorm"
)

// Reasons attached to a ConsistencyIssue.
const (
	ReasonAirTimeExceedsElapsed = "air_time_exceeds_elapsed"
	ReasonUndecodableTime       = "undecodable_time"
)

// DefaultConsistencyTolerance is the slack allowed between air time and the
// zone-corrected gate-to-gate time.
const DefaultConsistencyTolerance = 5 * time.Minute

// ConsistencyIssue flags one flight whose recorded times contradict each
// other.
type ConsistencyIssue struct {
	Carrier        string                   `json:"carrier"`
	FlightNumber   int                      `json:"flight"`
	Origin         string                   `json:"origin"`
	Dest           string                   `json:"dest"`
	Reason         string                   `json:"reason"`
	AirTime        models.Optional[float64] `json:"airTime"`
	ElapsedMinutes models.Optional[float64] `json:"elapsedMinutes"`
}

// ConsistencyReport is the outcome of CheckConsistency.
type ConsistencyReport struct {
	Checked int `json:"checked"`
	Skipped int `json:"skipped"`
	// UnmatchedAirports counts flights whose origin or destination has no
	// airport row. They are not part of Skipped.
	UnmatchedAirports int                `json:"unmatchedAirports"`
	Issues            []ConsistencyIssue `json:"issues"`
}

// CheckConsistency compares each flight's air time with the elapsed time
// between departure and arrival after correcting for the time zone change.
// zones maps airport code to IANA zone name. Flights with a recorded time
// that does not decode are flagged; flights missing a time, an air time or a
// resolvable zone are skipped. Flights touching an airport absent from zones
// are counted as unmatched and never reach the zone lookup.
func CheckConsistency(flights []models.Flight, zones map[string]string, loc *timenorm.Localizer, tolerance time.Duration) ConsistencyReport {
	report := ConsistencyReport{Issues: []ConsistencyIssue{}}
	for _, f := range flights {
		_, originKnown := zones[f.Origin]
		_, destKnown := zones[f.Dest]
		if !originKnown || !destKnown {
			report.UnmatchedAirports++
			continue
		}
		issue := ConsistencyIssue{
			Carrier:      f.Carrier,
			FlightNumber: f.FlightNumber,
			Origin:       f.Origin,
			Dest:         f.Dest,
			AirTime:      f.AirTime,
		}
		dep, depErr := timenorm.DecodeClockTime(f.DepTime)
		arr, arrErr := timenorm.DecodeClockTime(f.ArrTime)
		if depErr != nil || arrErr != nil {
			issue.Reason = ReasonUndecodableTime
			report.Issues = append(report.Issues, issue)
			report.Checked++
			continue
		}
		airTime, ok := f.AirTime.Get()
		if !ok || !dep.Valid || !arr.Valid {
			report.Skipped++
			continue
		}

		depAtOrigin := timenorm.ToAbsoluteTimestamp(models.Some(f.Date), dep)
		depAtDest, ok := loc.LocalizeAcrossTimezones(depAtOrigin, zones[f.Origin], zones[f.Dest]).Get()
		if !ok {
			report.Skipped++
			continue
		}
		arrival := f.Date.Midnight(time.UTC).Add(time.Duration(arr.Value.Minutes()) * time.Minute)
		// Arrival clock is on the destination's calendar; roll forward past
		// the localized departure when it reads earlier.
		for arrival.Before(depAtDest) {
			arrival = arrival.Add(24 * time.Hour)
		}
		for arrival.Sub(depAtDest) >= 24*time.Hour {
			arrival = arrival.Add(-24 * time.Hour)
		}
		elapsed := arrival.Sub(depAtDest).Minutes()
		report.Checked++
		if airTime > elapsed+tolerance.Minutes() {
			issue.Reason = ReasonAirTimeExceedsElapsed
			issue.ElapsedMinutes = models.Some(elapsed)
			report.Issues = append(report.Issues, issue)
		}
	}
	return report
}
