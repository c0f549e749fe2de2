package http

import (
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/flight-route-analytics/internal/observability"
)

// RouterConfig selects the optional parts of the router.
type RouterConfig struct {
	Limiter        *rate.Limiter // nil disables rate limiting
	RequestTimeout time.Duration
	TestingMode    bool
}

// NewRouter wires every endpoint with the correlation ID, metrics and drain
// middleware. Analytics queries are rate limited and bounded by
// RequestTimeout; the speed recompute is rate limited only, since it scans
// the whole flights table.
func NewRouter(h *Handler, logger *zap.Logger, cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.Use(DrainMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler()).Methods("GET")

	admin := router.PathPrefix("/planes/speeds").Subrouter()
	admin.Use(RateLimitMiddleware(cfg.Limiter))
	admin.HandleFunc("/recompute", h.PostRecomputeSpeeds).Methods("POST")

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	api := router.NewRoute().Subrouter()
	api.Use(RateLimitMiddleware(cfg.Limiter))
	api.Use(TimeoutMiddleware(timeout))
	api.HandleFunc("/routes/{origin}/{dest}/carriers", h.GetCarriers).Methods("GET")
	api.HandleFunc("/routes/{origin}/{dest}/plane-types", h.GetPlaneTypes).Methods("GET")
	api.HandleFunc("/routes/{origin}/{dest}/geometry", h.GetGeometry).Methods("GET")
	api.HandleFunc("/routes/{origin}/{dest}/wind", h.GetWind).Methods("GET")
	api.HandleFunc("/routes/{origin}/{dest}/arrivals", h.GetArrivals).Methods("GET")
	api.HandleFunc("/airports/{origin}/destinations", h.GetDestinations).Methods("GET")
	api.HandleFunc("/airports/{origin}/summary", h.GetAirportSummary).Methods("GET")
	api.HandleFunc("/airports/{origin}/delays/hourly", h.GetHourlyDelays).Methods("GET")
	api.HandleFunc("/airports/{origin}/consistency", h.GetConsistency).Methods("GET")
	api.HandleFunc("/airports/{origin}/top-destinations", h.GetTopDestinations).Methods("GET")
	api.HandleFunc("/planes/{tailnum}", h.GetPlane).Methods("GET")

	// Dataset-wide rankings.
	api.HandleFunc("/overview", h.GetOverview).Methods("GET")
	api.HandleFunc("/airports/delays", h.GetOriginDelays).Methods("GET")
	api.HandleFunc("/planes/models/fastest", h.GetFastestModels).Methods("GET")
	api.HandleFunc("/routes/top", h.GetTopRoutes).Methods("GET")
	api.HandleFunc("/weather/wind-delays", h.GetWindDelays).Methods("GET")

	if cfg.TestingMode {
		logger.Warn("Testing mode enabled; /test endpoint exposed")
		router.HandleFunc("/test", h.GetTestStatus).Methods("GET")
		router.HandleFunc("/test/{action}", h.PostTestAction).Methods("POST")
	}
	return router
}
