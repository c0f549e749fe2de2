// Package timenorm turns the dataset's HHMM clock integers and civil dates into
// timestamps and shifts wall-clock times between airport time zones.
package timenorm

import (
	"errors"
	"fmt"
	"time"

	"github.com/kjstillabower/flight-route-analytics/internal/models"
)

// ErrInvalidTimeEncoding is returned for HHMM values whose hour exceeds 23 or
// whose minute exceeds 59.
var ErrInvalidTimeEncoding = errors.New("invalid HHMM time encoding")

// ClockTime is a decoded time of day.
type ClockTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Minutes returns minutes since midnight.
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

// HHMM re-encodes the clock time as the dataset stores it.
func (c ClockTime) HHMM() int {
	return c.Hour*100 + c.Minute
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// DecodeHHMM decodes a known HHMM integer.
func DecodeHHMM(raw int) (ClockTime, error) {
	if raw < 0 {
		return ClockTime{}, fmt.Errorf("%w: %d", ErrInvalidTimeEncoding, raw)
	}
	c := ClockTime{Hour: raw / 100, Minute: raw % 100}
	if c.Hour > 23 || c.Minute > 59 {
		return ClockTime{}, fmt.Errorf("%w: %d", ErrInvalidTimeEncoding, raw)
	}
	return c, nil
}

// DecodeClockTime decodes a nullable HHMM value. Null decodes to unknown with
// no error; a malformed value returns unknown and ErrInvalidTimeEncoding, which
// callers treat as a per-field flag rather than a failure.
func DecodeClockTime(raw models.Optional[int]) (models.Optional[ClockTime], error) {
	v, ok := raw.Get()
	if !ok {
		return models.None[ClockTime](), nil
	}
	c, err := DecodeHHMM(v)
	if err != nil {
		return models.None[ClockTime](), err
	}
	return models.Some(c), nil
}

// ClockOrUnknown decodes raw and folds any decoding error into unknown.
func ClockOrUnknown(raw models.Optional[int]) models.Optional[ClockTime] {
	c, _ := DecodeClockTime(raw)
	return c
}

// ToAbsoluteTimestamp combines a civil date and a clock time into a wall-clock
// timestamp anchored in UTC. Unknown inputs propagate.
func ToAbsoluteTimestamp(date models.Optional[models.Date], clock models.Optional[ClockTime]) models.Optional[time.Time] {
	d, ok := date.Get()
	if !ok || !d.IsValid() {
		return models.None[time.Time]()
	}
	c, ok := clock.Get()
	if !ok {
		return models.None[time.Time]()
	}
	return models.Some(time.Date(d.Year, time.Month(d.Month), d.Day, c.Hour, c.Minute, 0, 0, time.UTC))
}

// DelayMinutes returns actual minus scheduled in minutes. A difference below
// minus twelve hours is read as an actual time past midnight.
func DelayMinutes(scheduled, actual ClockTime) int {
	diff := actual.Minutes() - scheduled.Minutes()
	if diff < -12*60 {
		diff += 24 * 60
	}
	return diff
}
