package timenorm

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	_ "time/tzdata" // zone database for hosts without /usr/share/zoneinfo

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/kjstillabower/flight-route-analytics/internal/models"
	"github.com/kjstillabower/flight-route-analytics/internal/observability"
)

// ErrUnknownTimezone is returned when a zone name cannot be resolved.
var ErrUnknownTimezone = errors.New("unknown timezone")

const defaultZoneCacheSize = 128

// Localizer resolves IANA zone names and converts wall-clock times between
// them. It is safe for concurrent use. Unresolvable names are logged once each.
type Localizer struct {
	zones  *lru.Cache[string, *time.Location]
	logger *zap.Logger

	mu       sync.Mutex
	reported map[string]struct{}
}

// NewLocalizer returns a Localizer keeping up to cacheSize resolved zones.
// logger may be nil.
func NewLocalizer(cacheSize int, logger *zap.Logger) (*Localizer, error) {
	if cacheSize <= 0 {
		cacheSize = defaultZoneCacheSize
	}
	zones, err := lru.New[string, *time.Location](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("zone cache: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Localizer{
		zones:    zones,
		logger:   logger,
		reported: make(map[string]struct{}),
	}, nil
}

// Location resolves a zone name. Empty names and "Local" are rejected since
// they do not identify an airport's zone.
func (l *Localizer) Location(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if loc, ok := l.zones.Get(name); ok {
		return loc, nil
	}
	if l.isReported(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, name)
	}
	if name == "" || name == "Local" {
		l.report(name, nil)
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		l.report(name, err)
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, name)
	}
	l.zones.Add(name, loc)
	return loc, nil
}

// LocalizeAcrossTimezones reads ts as a wall clock in originTz and returns the
// wall clock at the same instant in destTz. Daylight saving is applied for the
// instant itself. Unknown input or an unresolvable zone yields unknown.
func (l *Localizer) LocalizeAcrossTimezones(ts models.Optional[time.Time], originTz, destTz string) models.Optional[time.Time] {
	t, ok := ts.Get()
	if !ok {
		return models.None[time.Time]()
	}
	from, err := l.Location(originTz)
	if err != nil {
		return models.None[time.Time]()
	}
	to, err := l.Location(destTz)
	if err != nil {
		return models.None[time.Time]()
	}
	at := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), from).In(to)
	return models.Some(time.Date(at.Year(), at.Month(), at.Day(), at.Hour(), at.Minute(), at.Second(), at.Nanosecond(), time.UTC))
}

// OffsetDifference returns destination UTC offset minus origin UTC offset at
// noon origin time on date.
func (l *Localizer) OffsetDifference(date models.Date, originTz, destTz string) models.Optional[time.Duration] {
	noon := models.Some(date.Midnight(time.UTC).Add(12 * time.Hour))
	shifted, ok := l.LocalizeAcrossTimezones(noon, originTz, destTz).Get()
	if !ok {
		return models.None[time.Duration]()
	}
	return models.Some(shifted.Sub(noon.Value))
}

func (l *Localizer) isReported(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.reported[name]
	return ok
}

func (l *Localizer) report(name string, cause error) {
	l.mu.Lock()
	_, seen := l.reported[name]
	l.reported[name] = struct{}{}
	l.mu.Unlock()
	if seen {
		return
	}
	observability.UnknownTimezonesTotal.Inc()
	fields := []zap.Field{zap.String("timezone", name)}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	l.logger.Warn("unknown timezone; dependent values marked unknown", fields...)
}
