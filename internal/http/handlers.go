package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/iancoleman/orderedmap"
	"go.uber.org/zap"

	"github.com/kjstillabower/flight-route-analytics/internal/lifecycle"
	"github.com/kjstillabower/flight-route-analytics/internal/observability"
	"github.com/kjstillabower/flight-route-analytics/internal/routestats"
	"github.com/kjstillabower/flight-route-analytics/internal/service"
	"github.com/kjstillabower/flight-route-analytics/internal/store"
	"github.com/kjstillabower/flight-route-analytics/internal/traffic"
	"github.com/kjstillabower/flight-route-analytics/internal/validation"
)

// HealthConfig holds thresholds and dependency checks for the health handler.
type HealthConfig struct {
	Window               time.Duration
	OverloadThresholdPct int
	DegradedErrorPct     int
	RateLimitRPS         int
	RateLimitBurst       int // 0 when rate limiter disabled
	StartTime            time.Time
	// StorePing, when set, checks that the database answers.
	StorePing func(ctx context.Context) error
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	analytics        *service.AnalyticsService
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(analytics *service.AnalyticsService, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		analytics:    analytics,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetCarriers handles GET /routes/{origin}/{dest}/carriers.
func (h *Handler) GetCarriers(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	stats, err := h.analytics.CarrierStats(r.Context(), vars["origin"], vars["dest"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeResult(w, map[string]interface{}{
		"carriers": stats,
	})
}

// GetPlaneTypes handles GET /routes/{origin}/{dest}/plane-types. Types are
// rendered as a JSON object ordered by flight count.
func (h *Handler) GetPlaneTypes(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	usage, err := h.analytics.PlaneTypeUsage(r.Context(), vars["origin"], vars["dest"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	types := orderedmap.New()
	for _, u := range usage {
		types.Set(u.Type, u.Count)
	}
	writeResult(w, map[string]interface{}{
		"planeTypes": types,
	})
}

// GetGeometry handles GET /routes/{origin}/{dest}/geometry.
func (h *Handler) GetGeometry(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	geometry, err := h.analytics.Geometry(r.Context(), vars["origin"], vars["dest"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeResult(w, geometry)
}

// GetWind handles GET /routes/{origin}/{dest}/wind?date=YYYY-MM-DD.
func (h *Handler) GetWind(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	report, err := h.analytics.Wind(r.Context(), vars["origin"], vars["dest"], r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeResult(w, report)
}

// GetArrivals handles GET /routes/{origin}/{dest}/arrivals?date=YYYY-MM-DD.
func (h *Handler) GetArrivals(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	report, err := h.analytics.LocalArrivals(r.Context(), vars["origin"], vars["dest"], r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeResult(w, report)
}

// GetDestinations handles GET /airports/{origin}/destinations?date=YYYY-MM-DD.
func (h *Handler) GetDestinations(w http.ResponseWriter, r *http.Request) {
	stats, err := h.analytics.DestinationStats(r.Context(), mux.Vars(r)["origin"], r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeResult(w, stats)
}

// GetAirportSummary handles GET /airports/{origin}/summary.
func (h *Handler) GetAirportSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.analytics.AirportSummary(r.Context(), mux.Vars(r)["origin"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeResult(w, summary)
}

// GetHourlyDelays handles GET /airports/{origin}/delays/hourly?date=YYYY-MM-DD.
func (h *Handler) GetHourlyDelays(w http.ResponseWriter, r *http.Request) {
	hours, err := h.analytics.HourlyDelays(r.Context(), mux.Vars(r)["origin"], r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeResult(w, map[string]interface{}{
		"hours": hours,
	})
}

// GetConsistency handles GET /airports/{origin}/consistency?date=YYYY-MM-DD.
func (h *Handler) GetConsistency(w http.ResponseWriter, r *http.Request) {
	report, err := h.analytics.ScheduleConsistency(r.Context(), mux.Vars(r)["origin"], r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeResult(w, report)
}

// GetPlane handles GET /planes/{tailnum}.
func (h *Handler) GetPlane(w http.ResponseWriter, r *http.Request) {
	plane, err := h.analytics.Plane(r.Context(), mux.Vars(r)["tailnum"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeResult(w, plane)
}

// PostRecomputeSpeeds handles POST /planes/speeds/recompute.
func (h *Handler) PostRecomputeSpeeds(w http.ResponseWriter, r *http.Request) {
	result, err := h.analytics.RecomputePlaneSpeeds(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeResult(w, result)
}

// GetTopDestinations handles GET /airports/{origin}/top-destinations?limit=N.
func (h *Handler) GetTopDestinations(w http.ResponseWriter, r *http.Request) {
	dests, err := h.analytics.TopDestinations(r.Context(), mux.Vars(r)["origin"], r.URL.Query().Get("limit"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeResult(w, map[string]interface{}{
		"destinations": dests,
	})
}

// GetOverview handles GET /overview.
func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.analytics.DatasetOverview(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeResult(w, overview)
}

// GetOriginDelays handles GET /airports/delays.
func (h *Handler) GetOriginDelays(w http.ResponseWriter, r *http.Request) {
	origins, err := h.analytics.OriginDelays(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeResult(w, map[string]interface{}{
		"origins": origins,
	})
}

// GetFastestModels handles GET /planes/models/fastest?limit=N.
func (h *Handler) GetFastestModels(w http.ResponseWriter, r *http.Request) {
	ranked, err := h.analytics.FastestModels(r.Context(), r.URL.Query().Get("limit"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeResult(w, map[string]interface{}{
		"models": ranked,
	})
}

// GetTopRoutes handles GET /routes/top?origins=EWR,JFK&limit=N.
func (h *Handler) GetTopRoutes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	routes, err := h.analytics.TopRoutes(r.Context(), q.Get("origins"), q.Get("limit"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeResult(w, map[string]interface{}{
		"routes": routes,
	})
}

// GetWindDelays handles GET /weather/wind-delays.
func (h *Handler) GetWindDelays(w http.ResponseWriter, r *http.Request) {
	curve, err := h.analytics.WindDelays(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeResult(w, map[string]interface{}{
		"points": curve,
	})
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	if h.healthConfig != nil && h.healthConfig.StorePing != nil {
		checks["database"] = checkStatus(h.healthConfig.StorePing(r.Context()))
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		checks["cache"] = checkStatus(h.healthConfig.CachePing())
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "flight-route-analytics",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if since := lifecycle.DrainingSince(); !since.IsZero() {
		resp["drainingSince"] = since.Format(time.RFC3339)
	}
	if h.healthConfig != nil && !h.healthConfig.StartTime.IsZero() {
		resp["uptime"] = time.Since(h.healthConfig.StartTime).Round(time.Second).String()
	}
	writeJSON(w, result.statusCode, resp)
}

func checkStatus(err error) string {
	if err != nil {
		return "unhealthy"
	}
	return "healthy"
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > database unreachable > overloaded > degraded > healthy.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if h.healthConfig.StorePing != nil {
		if err := h.healthConfig.StorePing(ctx); err != nil {
			return healthResult{"degraded", http.StatusServiceUnavailable, "database_unreachable"}
		}
	}
	window := h.healthConfig.Window
	if window <= 0 {
		window = time.Minute
	}
	// Overloaded when traffic in the window exceeds the configured share of
	// what the rate limiter admits.
	if h.healthConfig.RateLimitRPS > 0 && h.healthConfig.OverloadThresholdPct > 0 {
		threshold := float64(h.healthConfig.RateLimitRPS) * window.Seconds() * float64(h.healthConfig.OverloadThresholdPct) / 100
		if float64(traffic.RequestCount(window)) > threshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	if h.healthConfig.DegradedErrorPct > 0 {
		failed, total := traffic.ErrorRate(window)
		if total > 0 && float64(failed)*100/float64(total) >= float64(h.healthConfig.DegradedErrorPct) {
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
// Sets Content-Type header to application/json and encodes the provided value.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeResult writes a 200 response and records a served request.
func writeResult(w http.ResponseWriter, v interface{}) {
	traffic.Record(traffic.Served)
	writeJSON(w, http.StatusOK, v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// statusClientClosedRequest is written when the caller went away before the
// result was ready. The client never reads it; it keeps metrics and logs
// apart from server failures.
const statusClientClosedRequest = 499

// writeServiceError maps an analytics error to a status and error code.
// Invalid input is 400, missing rows are 404, a caller that gave up is 499
// and anything else is a server failure that counts against the health
// error rate. Abandoned requests are not counted in the health window.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classifyError(err)
	switch {
	case status == statusClientClosedRequest:
	case status >= http.StatusInternalServerError:
		traffic.Record(traffic.Failed)
	default:
		traffic.Record(traffic.Served)
	}
	writeError(w, r, status, code, message)

	logger := observability.LoggerFrom(r.Context())
	if logger == nil {
		return
	}
	if status >= http.StatusInternalServerError {
		logger.Error("analytics request failed", zap.Int("status", status), zap.Error(err))
	} else {
		logger.Debug("analytics request rejected", zap.Int("status", status), zap.Error(err))
	}
}

func classifyError(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, validation.ErrInvalidAirportCode):
		return http.StatusBadRequest, "INVALID_AIRPORT", err.Error()
	case errors.Is(err, validation.ErrSameEndpoints):
		return http.StatusBadRequest, "INVALID_ROUTE", err.Error()
	case errors.Is(err, validation.ErrInvalidDate):
		return http.StatusBadRequest, "INVALID_DATE", err.Error()
	case errors.Is(err, validation.ErrInvalidTailnum):
		return http.StatusBadRequest, "INVALID_TAILNUM", err.Error()
	case errors.Is(err, validation.ErrInvalidLimit):
		return http.StatusBadRequest, "INVALID_LIMIT", err.Error()
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", err.Error()
	case errors.Is(err, routestats.ErrEmptyResult):
		return http.StatusNotFound, "NO_DATA", err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT", "Request timed out"
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "CANCELLED", "Request cancelled"
	default:
		return http.StatusInternalServerError, "INTERNAL", "Unable to compute analytics"
	}
}

// GetTestStatus handles GET /test. Returns the traffic window the health
// check is reading.
func (h *Handler) GetTestStatus(w http.ResponseWriter, r *http.Request) {
	window := time.Minute
	cfg := make(map[string]interface{})
	if h.healthConfig != nil {
		if h.healthConfig.Window > 0 {
			window = h.healthConfig.Window
		}
		cfg["rate_limit_rps"] = h.healthConfig.RateLimitRPS
		cfg["rate_limit_burst"] = h.healthConfig.RateLimitBurst
		cfg["overload_threshold_pct"] = h.healthConfig.OverloadThresholdPct
		cfg["degraded_error_pct"] = h.healthConfig.DegradedErrorPct
	}
	failed, _ := traffic.ErrorRate(window)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_requests_in_window":  traffic.RequestCount(window),
		"denied_requests_in_window": traffic.Count(traffic.Denied, window),
		"errors_in_window":          failed,
		"window_length":             window.String(),
		"cache_generation":          h.analytics.CacheGeneration(),
		"state":                     h.computeHealthStatus(r.Context()).status,
		"config":                    cfg,
	})
}

// PostTestAction handles POST /test/{action} for reset and shutdown.
func (h *Handler) PostTestAction(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	switch action {
	case "reset":
		traffic.Reset()
		lifecycle.SetShuttingDown(false)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"action":  "reset",
			"message": "Traffic window and shutdown flag cleared",
		})
	case "shutdown":
		lifecycle.SetShuttingDown(true)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"action":  "shutdown",
			"message": "Shutting-down flag set",
		})
	default:
		writeError(w, r, http.StatusNotFound, "UNKNOWN_ACTION", "unknown test action: "+action)
	}
}
