package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/starfederation/datastar-go/datastar"

	"udip-dashboard/internal/services"
)

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

// forecastSignals are the dashboard inputs of the forecast panel.
type forecastSignals struct {
	Product string `json:"product"`
	Days    int    `json:"days"`
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) notReady(sse *datastar.ServerSentEventGenerator) bool {
	if h.analytics.Ready() {
		return false
	}
	sse.PatchElements(`<div id="status-content" class="status">Analytics are still loading...</div>`)
	return true
}

func (h *SSEHandlers) patchTemplate(sse *datastar.ServerSentEventGenerator, name string, html string, err error) {
	if err != nil {
		h.logger.Error("render fragment", "fragment", name, "error", err)
		return
	}
	sse.PatchElements(html)
}

func (h *SSEHandlers) patchKPIs(sse *datastar.ServerSentEventGenerator) {
	html, err := render(kpiTemplate, h.analytics.KPIs())
	h.patchTemplate(sse, "kpis", html, err)

	html, err = renderAlerts(h.analytics.Summary())
	h.patchTemplate(sse, "alerts", html, err)
}

func (h *SSEHandlers) patchRoutes(sse *datastar.ServerSentEventGenerator) {
	html, err := renderRouteTable(h.analytics.RouteRisks(maxRoutes))
	h.patchTemplate(sse, "routes", html, err)
}

func (h *SSEHandlers) patchMachines(sse *datastar.ServerSentEventGenerator) {
	html, err := renderMachineTable(h.analytics.MachineHealth(maxMachines))
	h.patchTemplate(sse, "machines", html, err)

	html, err = render(maintenanceTemplate, h.analytics.MaintenanceSchedule())
	h.patchTemplate(sse, "maintenance", html, err)
}

func (h *SSEHandlers) patchPricing(sse *datastar.ServerSentEventGenerator) {
	html, err := render(pricingTableTemplate, h.analytics.Pricing())
	h.patchTemplate(sse, "pricing", html, err)
}

func (h *SSEHandlers) patchStatus(sse *datastar.ServerSentEventGenerator) {
	html, err := render(metricsTemplate, h.analytics.Metrics())
	h.patchTemplate(sse, "metrics", html, err)

	html, err = render(failuresTemplate, h.analytics.Snapshot().Failures)
	h.patchTemplate(sse, "failures", html, err)
}

func (h *SSEHandlers) chartSignals() ([]byte, error) {
	s := h.analytics.Summary()
	return json.Marshal(map[string]any{
		"monthlyData":  s.MonthlyRevenue,
		"productsData": s.TopProducts,
		"segmentData":  s.SegmentRevenue,
		"regionData":   s.RegionOrders,
		"carbonData":   s.CarbonByCategory,
		"oilData":      s.Economy.OilPrices,
		"delayData":    s.DelayHistogram,
		"riskData":     s.MachinesByRisk,
	})
}

func (h *SSEHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	if h.notReady(sse) {
		return
	}

	h.patchKPIs(sse)

	flush(w)
}

func (h *SSEHandlers) HandleRoutes(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	if h.notReady(sse) {
		return
	}

	h.patchRoutes(sse)

	flush(w)
}

func (h *SSEHandlers) HandleMachines(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	if h.notReady(sse) {
		return
	}

	h.patchMachines(sse)

	flush(w)
}

func (h *SSEHandlers) HandlePricing(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	if h.notReady(sse) {
		return
	}

	h.patchPricing(sse)

	flush(w)
}

func (h *SSEHandlers) HandleCharts(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	if h.notReady(sse) {
		return
	}

	jsonData, err := h.chartSignals()
	if err != nil {
		h.logger.Error("marshal chart data", "error", err)
		return
	}
	sse.PatchSignals(jsonData)

	flush(w)
}

func (h *SSEHandlers) HandleForecast(w http.ResponseWriter, r *http.Request) {
	signals := forecastSignals{Days: defaultForecast}
	if err := datastar.ReadSignals(r, &signals); err != nil {
		h.logger.Warn("read forecast signals", "error", err)
	}

	sse := datastar.NewSSE(w, r)
	if h.notReady(sse) {
		return
	}

	if signals.Product == "" {
		if products := h.analytics.ForecastProducts(); len(products) > 0 {
			signals.Product = products[0]
		}
	}

	fc, err := h.analytics.Forecast(signals.Product, signals.Days)
	if err != nil {
		h.logger.Warn("forecast request failed", "product", signals.Product, "days", signals.Days, "error", err)
		html, rerr := render(forecastErrorTemplate, err.Error())
		h.patchTemplate(sse, "forecast", html, rerr)
		return
	}

	jsonData, err := json.Marshal(map[string]any{
		"forecastData": fc,
	})
	if err != nil {
		h.logger.Error("marshal forecast data", "error", err)
		return
	}
	sse.PatchSignals(jsonData)
	sse.PatchElements(`<div id="forecast-content"></div>`)

	flush(w)
}

func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	if h.notReady(sse) {
		return
	}

	h.patchKPIs(sse)
	h.patchRoutes(sse)
	h.patchMachines(sse)
	h.patchPricing(sse)
	h.patchStatus(sse)

	// Send all chart signals in one call
	allSignals, err := h.chartSignals()
	if err != nil {
		h.logger.Error("marshal all signals data", "error", err)
		return
	}
	sse.PatchSignals(allSignals)

	flush(w)
}
