package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"udip-dashboard/internal/errors"
	"udip-dashboard/internal/observability"
	"udip-dashboard/internal/services"
)

const (
	cacheMaxAge     = "public, max-age=300"
	defaultForecast = 30
	maxLimit        = 500
)

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

func (h *APIHandlers) writeCached(w http.ResponseWriter, r *http.Request, data any) {
	if !h.analytics.Ready() {
		h.writeError(w, r, errors.ServiceUnavailable("analytics not ready"))
		return
	}

	headers := map[string]string{
		"Cache-Control": cacheMaxAge,
	}

	errors.WriteSuccessWithHeaders(w, data, headers)
}

func (h *APIHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.BadRequestWrap(err, key+" must be an integer")
	}
	if v < lo || v > hi {
		return 0, errors.Validation(key+" out of range").WithDetails("%s must be between %d and %d, got %d", key, lo, hi, v)
	}
	return v, nil
}

func (h *APIHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	h.writeCached(w, r, h.analytics.KPIs())
}

func (h *APIHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	h.writeCached(w, r, h.analytics.Summary())
}

func (h *APIHandlers) HandleRouteRisks(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "limit", -1, 1, maxLimit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCached(w, r, h.analytics.RouteRisks(n))
}

func (h *APIHandlers) HandleMachineHealth(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "limit", -1, 1, maxLimit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCached(w, r, h.analytics.MachineHealth(n))
}

func (h *APIHandlers) HandleMaintenance(w http.ResponseWriter, r *http.Request) {
	h.writeCached(w, r, h.analytics.MaintenanceSchedule())
}

func (h *APIHandlers) HandlePricing(w http.ResponseWriter, r *http.Request) {
	h.writeCached(w, r, h.analytics.Pricing())
}

func (h *APIHandlers) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.writeCached(w, r, h.analytics.Metrics())
}

func (h *APIHandlers) HandleForecastProducts(w http.ResponseWriter, r *http.Request) {
	h.writeCached(w, r, h.analytics.ForecastProducts())
}

func (h *APIHandlers) HandleForecast(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", defaultForecast, services.MinForecastDays, services.MaxForecastDays)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	fc, err := h.analytics.Forecast(r.PathValue("product"), days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	errors.WriteSuccess(w, fc)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {

	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}
	if !h.analytics.Ready() {
		healthData["status"] = "loading"
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {

	stats := h.analytics.Stats()

	errors.WriteSuccess(w, stats)
}
