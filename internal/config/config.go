package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/flight-route-analytics/internal/geomath"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	TestingMode bool

	ServerPort string

	DatabasePath string

	RequestTimeout time.Duration

	WeatherTolerance  time.Duration
	DistanceUnit      string // "mi" or "km"
	RowLimit          int
	SpeedBatchSize    int
	TimezoneCacheSize int
	ComputeTimeout    time.Duration
	HubOrigins        []string

	CacheTTL     time.Duration
	CacheBackend string // "in_memory", "memcached" or "none"

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RateLimitRPS   int
	RateLimitBurst int

	HealthWindow         time.Duration
	OverloadThresholdPct int
	DegradedErrorPct     int

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	WarmRoutes   []string
	WarmInterval time.Duration

	TrackedOrigins []string
}

type fileConfig struct {
	TestingMode *bool `yaml:"testing_mode"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Analytics struct {
		WeatherTolerance  string   `yaml:"weather_tolerance"`
		DistanceUnit      string   `yaml:"distance_unit"`
		RowLimit          int      `yaml:"row_limit"`
		SpeedBatchSize    int      `yaml:"speed_batch_size"`
		TimezoneCacheSize int      `yaml:"timezone_cache_size"`
		ComputeTimeout    string   `yaml:"compute_timeout"`
		HubOrigins        []string `yaml:"hub_origins"`
	} `yaml:"analytics"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Health struct {
		Window               string `yaml:"window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
		DegradedErrorPct     int    `yaml:"degraded_error_pct"`
	} `yaml:"health"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Warm struct {
		Routes   []string `yaml:"routes"`
		Interval string   `yaml:"interval"`
	} `yaml:"warm"`

	Metrics struct {
		TrackedOrigins []string `yaml:"tracked_origins"`
	} `yaml:"metrics"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev).
// DATABASE_PATH, CACHE_BACKEND and MEMCACHED_ADDRS override the file. Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{
		TestingMode: false,
	}
	if fc.TestingMode != nil {
		cfg.TestingMode = *fc.TestingMode
	}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.DatabasePath = strings.TrimSpace(os.Getenv("DATABASE_PATH"))
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = strings.TrimSpace(fc.Database.Path)
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "flights_database.db"
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)

	cfg.WeatherTolerance = parseDuration(fc.Analytics.WeatherTolerance, 30*time.Minute)
	cfg.DistanceUnit = strings.TrimSpace(strings.ToLower(fc.Analytics.DistanceUnit))
	if cfg.DistanceUnit == "" {
		cfg.DistanceUnit = "mi"
	}
	cfg.RowLimit = fc.Analytics.RowLimit
	if cfg.RowLimit <= 0 {
		cfg.RowLimit = 1000
	}
	cfg.SpeedBatchSize = fc.Analytics.SpeedBatchSize
	if cfg.SpeedBatchSize <= 0 {
		cfg.SpeedBatchSize = 5000
	}
	cfg.TimezoneCacheSize = fc.Analytics.TimezoneCacheSize
	if cfg.TimezoneCacheSize <= 0 {
		cfg.TimezoneCacheSize = 128
	}

	cfg.ComputeTimeout = parseDuration(fc.Analytics.ComputeTimeout, 30*time.Second)
	for _, o := range fc.Analytics.HubOrigins {
		cfg.HubOrigins = append(cfg.HubOrigins, strings.ToUpper(strings.TrimSpace(o)))
	}
	if len(cfg.HubOrigins) == 0 {
		cfg.HubOrigins = []string{"EWR", "JFK", "LGA"}
	}

	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 10*time.Minute)
	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.HealthWindow = parseDuration(fc.Health.Window, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Health.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.WarmRoutes = fc.Warm.Routes
	cfg.WarmInterval = parseDurationOrZero(fc.Warm.Interval, 0)
	cfg.TrackedOrigins = fc.Metrics.TrackedOrigins

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
// Used for parsing duration fields from YAML config with safe fallback to defaults.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
// Rejects unknown enum values, malformed hub origins, health thresholds above
// 100 and a negative warm interval.
func validate(cfg *Config) error {
	switch cfg.CacheBackend {
	case "in_memory", "memcached", "none":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory, memcached or none, got %q", cfg.CacheBackend)
	}
	if _, ok := geomath.RadiusForUnit(cfg.DistanceUnit); !ok {
		return fmt.Errorf("analytics.distance_unit must be mi or km, got %q", cfg.DistanceUnit)
	}
	for _, o := range cfg.HubOrigins {
		if len(o) != 3 {
			return fmt.Errorf("analytics.hub_origins must hold three character airport codes, got %q", o)
		}
	}
	if cfg.OverloadThresholdPct > 100 || cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("health thresholds must be at most 100, got overload %d and degraded %d", cfg.OverloadThresholdPct, cfg.DegradedErrorPct)
	}
	if cfg.WarmInterval < 0 {
		return fmt.Errorf("warm.interval must not be negative, got %s", cfg.WarmInterval)
	}
	return nil
}
