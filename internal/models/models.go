package models

import (
	"fmt"
	"time"
)

// Date is a civil calendar date with no time zone attached.
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// NewDate builds a Date from its parts without validation.
func NewDate(year, month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, nil
}

// IsValid reports whether the date names a real calendar day.
func (d Date) IsValid() bool {
	if d.Month < 1 || d.Month > 12 || d.Day < 1 {
		return false
	}
	t := d.Midnight(time.UTC)
	return t.Year() == d.Year && int(t.Month()) == d.Month && t.Day() == d.Day
}

// Midnight returns the start of the day in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, loc)
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	t := d.Midnight(time.UTC).AddDate(0, 0, n)
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Airport is immutable reference data keyed by FAA code.
type Airport struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Altitude float64 `json:"altitude"`
	Timezone string  `json:"timezone"` // IANA name, empty when not recorded
}

// Flight is one row of the flights table. Clock times are raw HHMM integers;
// decode them with timenorm before use.
type Flight struct {
	Date         Date              `json:"date"`
	Origin       string            `json:"origin"`
	Dest         string            `json:"dest"`
	Carrier      string            `json:"carrier"`
	FlightNumber int               `json:"flight"`
	Tailnum      string            `json:"tailnum"`
	SchedDepTime Optional[int]     `json:"schedDepTime"`
	DepTime      Optional[int]     `json:"depTime"`
	SchedArrTime Optional[int]     `json:"schedArrTime"`
	ArrTime      Optional[int]     `json:"arrTime"`
	DepDelay     Optional[float64] `json:"depDelay"` // minutes
	ArrDelay     Optional[float64] `json:"arrDelay"` // minutes
	AirTime      Optional[float64] `json:"airTime"`  // minutes
	Distance     float64           `json:"distance"` // statute miles
}

// WeatherObservation is an hourly observation at an origin airport.
// Date and Hour are wall-clock values at the origin.
type WeatherObservation struct {
	Origin    string            `json:"origin"`
	Date      Date              `json:"date"`
	Hour      int               `json:"hour"`
	Temp      Optional[float64] `json:"temp"`
	WindDir   Optional[float64] `json:"windDir"`
	WindSpeed Optional[float64] `json:"windSpeed"`
	Precip    Optional[float64] `json:"precip"`
}

// Time returns the observation's wall-clock instant, anchored in UTC.
func (w WeatherObservation) Time() time.Time {
	return w.Date.Midnight(time.UTC).Add(time.Duration(w.Hour) * time.Hour)
}

// Plane is an airframe keyed by tail number. Speed is derived by the batch
// recompute and is unknown until then.
type Plane struct {
	Tailnum      string            `json:"tailnum"`
	Year         Optional[int]     `json:"year"`
	Type         string            `json:"type"`
	Manufacturer string            `json:"manufacturer"`
	Model        string            `json:"model"`
	Speed        Optional[float64] `json:"speed"` // mph
}
