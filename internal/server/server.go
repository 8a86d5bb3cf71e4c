// Package server routes dashboard requests and runs the HTTP listener with
// graceful shutdown.
package server

import (
	"log/slog"
	"net/http"

	"udip-dashboard/internal/handlers"
	"udip-dashboard/internal/services"
)

// TemplateHandlers are the page handlers supplied by the binary.
type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

type Server struct {
	mux *http.ServeMux
}

type route struct {
	pattern string
	handler http.HandlerFunc
}

func NewServer(analytics *services.Analytics, logger *slog.Logger, pages *TemplateHandlers) *Server {
	api := handlers.NewAPIHandlers(analytics, logger)
	sse := handlers.NewSSEHandlers(analytics, logger)

	routes := []route{
		{"GET /{$}", pages.Dashboard},
		{"GET /health", api.HandleHealth},
		{"GET /admin/stats", api.HandleStats},

		{"GET /api/kpis", api.HandleKPIs},
		{"GET /api/summary", api.HandleSummary},
		{"GET /api/routes", api.HandleRouteRisks},
		{"GET /api/machines", api.HandleMachineHealth},
		{"GET /api/maintenance", api.HandleMaintenance},
		{"GET /api/pricing", api.HandlePricing},
		{"GET /api/metrics", api.HandleMetrics},
		{"GET /api/forecast", api.HandleForecastProducts},
		{"GET /api/forecast/{product}", api.HandleForecast},

		// Datastar streams patch the dashboard in place.
		{"GET /sse/kpis", sse.HandleKPIs},
		{"GET /sse/routes", sse.HandleRoutes},
		{"GET /sse/machines", sse.HandleMachines},
		{"GET /sse/pricing", sse.HandlePricing},
		{"GET /sse/charts", sse.HandleCharts},
		{"GET /sse/forecast", sse.HandleForecast},
		{"GET /sse/refresh-all", sse.HandleRefreshAll},
	}

	mux := http.NewServeMux()
	for _, rt := range routes {
		mux.HandleFunc(rt.pattern, rt.handler)
	}
	return &Server{mux: mux}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
