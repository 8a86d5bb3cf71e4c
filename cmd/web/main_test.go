package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"udip-dashboard/internal/config"
	"udip-dashboard/internal/dataset"
	"udip-dashboard/internal/services"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

func smallOptions(seed uint64) dataset.GenerateOptions {
	opts := dataset.DefaultGenerateOptions(seed)
	opts.Days = 45
	opts.OrdersPerDay = 15
	opts.ShipmentsPerDay = 8
	opts.Customers = 80
	opts.Routes = 8
	opts.Machines = 4
	opts.SensorHours = 240
	return opts
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	cfg.Data.Dir = t.TempDir()
	cfg.Data.CacheDir = t.TempDir()
	cfg.Pipeline.ForestTrees = 6
	cfg.Pipeline.ForestDepth = 6
	cfg.Pipeline.Workers = 2
	cfg.Security.EnableRateLimit = false
	return cfg
}

// newTestHandler runs the pipeline over a small synthetic dataset and returns
// the fully wrapped handler.
func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	syntheticOptions = smallOptions
	t.Cleanup(func() { syntheticOptions = dataset.DefaultGenerateOptions })

	cfg := testConfig(t)
	analytics := services.NewAnalytics(cfg.Pipeline, cfg.Data.CacheDir, testLogger)
	if err := loadData(context.Background(), cfg, analytics, testLogger); err != nil {
		t.Fatalf("loadData() error = %v", err)
	}
	return newHandler(cfg, analytics, testLogger)
}

// Integration tests for HTTP routes
func TestServer_Routes(t *testing.T) {
	handler := newTestHandler(t)

	tests := []struct {
		path           string
		expectedStatus int
		contentType    string
	}{
		{"/", http.StatusOK, "text/html"},
		{"/health", http.StatusOK, "application/json"},
		{"/admin/stats", http.StatusOK, "application/json"},
		{"/api/kpis", http.StatusOK, "application/json"},
		{"/api/summary", http.StatusOK, "application/json"},
		{"/api/routes?limit=5", http.StatusOK, "application/json"},
		{"/api/machines", http.StatusOK, "application/json"},
		{"/api/maintenance", http.StatusOK, "application/json"},
		{"/api/pricing", http.StatusOK, "application/json"},
		{"/api/metrics", http.StatusOK, "application/json"},
		{"/api/forecast", http.StatusOK, "application/json"},
		{"/api/forecast/P001?days=7", http.StatusOK, "application/json"},
		{"/api/forecast/P001?days=91", http.StatusBadRequest, "application/json"},
		{"/sse/refresh-all", http.StatusOK, "text/event-stream"},
		{"/sse/forecast", http.StatusOK, "text/event-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", tt.path, nil)

			handler.ServeHTTP(w, r)

			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.expectedStatus)
			}

			ct := w.Header().Get("Content-Type")
			if !strings.Contains(ct, tt.contentType) {
				t.Errorf("content-type = %q, want %q", ct, tt.contentType)
			}

			if w.Header().Get("X-Request-ID") == "" {
				t.Error("every response should carry a request id")
			}

			// Validate JSON responses
			if tt.contentType == "application/json" {
				var result any
				if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
					t.Errorf("invalid json: %v", err)
				}
			}
		})
	}
}

// Test JSON API responses
func TestServer_PricingResponse(t *testing.T) {
	handler := newTestHandler(t)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/pricing", nil))

	var response struct {
		Success bool `json:"success"`
		Data    []struct {
			ProductID        string  `json:"product_id"`
			CurrentPrice     float64 `json:"current_price"`
			RecommendedPrice float64 `json:"recommended_price"`
			Cost             float64 `json:"cost"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}

	if !response.Success || len(response.Data) == 0 {
		t.Fatalf("unexpected pricing response: %+v", response)
	}
	for _, rec := range response.Data {
		if rec.ProductID == "" {
			t.Error("recommendation without product id")
		}
		if rec.RecommendedPrice < rec.Cost*1.2-1e-9 {
			t.Errorf("%s: price %.2f below margin floor of cost %.2f", rec.ProductID, rec.RecommendedPrice, rec.Cost)
		}
	}
}

// Test error handling for invalid methods
func TestServer_ErrorHandling(t *testing.T) {
	handler := newTestHandler(t)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{"POST", "/api/kpis", http.StatusMethodNotAllowed},
		{"PUT", "/", http.StatusMethodNotAllowed},
		{"DELETE", "/health", http.StatusMethodNotAllowed},
		{"PATCH", "/api/pricing", http.StatusMethodNotAllowed},
		{"GET", "/api/forecast/P999", http.StatusNotFound},
		{"GET", "/api/routes?limit=-1", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(tt.method, tt.path, nil)

			handler.ServeHTTP(w, r)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

// Test dashboard template rendering
func TestDashboardTemplate(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/", nil)

	handleDashboard(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	expectedComponents := []string{
		"Unified Data Intelligence Platform",
		"Executive KPIs",
		"Route Risk",
		"Machine Health",
		"Demand Forecast",
		"Pricing Recommendations",
	}

	for _, component := range expectedComponents {
		if !strings.Contains(body, component) {
			t.Errorf("dashboard should contain '%s'", component)
		}
	}
}

func TestLoadData(t *testing.T) {
	t.Run("synthetic disabled", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Data.Synthetic = false
		analytics := services.NewAnalytics(cfg.Pipeline, cfg.Data.CacheDir, testLogger)

		if err := loadData(context.Background(), cfg, analytics, testLogger); err == nil {
			t.Error("expected error without data")
		}
		if analytics.Ready() {
			t.Error("analytics should not be ready")
		}
	})

	t.Run("csv directory", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Data.Synthetic = false
		if err := dataset.WriteCSV(cfg.Data.Dir, dataset.Generate(smallOptions(3))); err != nil {
			t.Fatal(err)
		}
		analytics := services.NewAnalytics(cfg.Pipeline, cfg.Data.CacheDir, testLogger)

		if err := loadData(context.Background(), cfg, analytics, testLogger); err != nil {
			t.Fatalf("loadData() error = %v", err)
		}
		if !analytics.Ready() {
			t.Error("analytics should be ready after loading CSVs")
		}
	})
}

func TestBuildSinks(t *testing.T) {
	sinks, err := buildSinks(config.ExportConfig{}, testLogger)
	if err != nil || len(sinks) != 0 {
		t.Errorf("buildSinks() = %v, %v; want no sinks", sinks, err)
	}

	sinks, err = buildSinks(config.ExportConfig{InfluxURL: "http://127.0.0.1:1", InfluxOrg: "o", InfluxBucket: "b"}, testLogger)
	if err != nil || len(sinks) != 1 {
		t.Fatalf("buildSinks() = %v, %v; want influx sink", sinks, err)
	}
	if err := sinks.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
