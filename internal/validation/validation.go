package validation

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kjstillabower/flight-route-analytics/internal/models"
)

// ErrInvalidAirportCode is returned when a code is not three letters or digits.
var ErrInvalidAirportCode = errors.New("airport code must be 3 letters or digits")

// ErrSameEndpoints is returned when a route's origin and destination match.
var ErrSameEndpoints = errors.New("origin and destination must differ")

// ErrInvalidDate is returned when a date is not a real YYYY-MM-DD calendar day.
var ErrInvalidDate = errors.New("date must be YYYY-MM-DD")

// ErrInvalidTailnum is returned when a tail number is empty or malformed.
var ErrInvalidTailnum = errors.New("tail number must be 2-10 letters or digits")

// ValidateAirportCode trims and upper-cases input and checks it is a
// three character FAA code.
func ValidateAirportCode(input string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(input))
	if len(s) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidAirportCode, input)
	}
	for _, c := range s {
		if !isAlnum(c) {
			return "", fmt.Errorf("%w: %q", ErrInvalidAirportCode, input)
		}
	}
	return s, nil
}

// ValidateRoute validates both codes and rejects a route that starts and
// ends at the same airport.
func ValidateRoute(origin, dest string) (string, string, error) {
	o, err := ValidateAirportCode(origin)
	if err != nil {
		return "", "", err
	}
	d, err := ValidateAirportCode(dest)
	if err != nil {
		return "", "", err
	}
	if o == d {
		return "", "", ErrSameEndpoints
	}
	return o, d, nil
}

// ValidateDate parses a YYYY-MM-DD date. Empty input is an error.
func ValidateDate(input string) (models.Date, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return models.Date{}, fmt.Errorf("%w: missing", ErrInvalidDate)
	}
	d, err := models.ParseDate(s)
	if err != nil || !d.IsValid() {
		return models.Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, input)
	}
	return d, nil
}

// ValidateTailnum trims and upper-cases a tail number.
func ValidateTailnum(input string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(input))
	if len(s) < 2 || len(s) > 10 {
		return "", ErrInvalidTailnum
	}
	for _, c := range s {
		if !isAlnum(c) {
			return "", ErrInvalidTailnum
		}
	}
	return s, nil
}

// ErrInvalidLimit is returned when a result limit is not a positive integer
// within the allowed maximum.
var ErrInvalidLimit = errors.New("limit must be a positive integer")

// ValidateLimit parses an optional result limit. Empty input yields def.
func ValidateLimit(input string, def, max int) (int, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > max {
		return 0, fmt.Errorf("%w: %q (max %d)", ErrInvalidLimit, input, max)
	}
	return n, nil
}

// ValidateAirportCodes validates a comma separated list of codes and
// returns them upper-cased, sorted and without duplicates. Empty input
// yields nil.
func ValidateAirportCodes(input string) ([]string, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(input, ",") {
		code, err := ValidateAirportCode(part)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	sort.Strings(out)
	return out, nil
}

// isAlnum reports ASCII letters and digits only; codes are never localized.
func isAlnum(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
