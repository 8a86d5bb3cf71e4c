package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"udip-dashboard/internal/config"
	"udip-dashboard/internal/services"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			ShutdownTimeout: 2 * time.Second,
		},
	}
}

func TestServer_RoutesRegistered(t *testing.T) {
	analytics := services.NewAnalytics(config.DefaultPipeline(), t.TempDir(), testLogger)
	dashboard := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}
	srv := NewServer(analytics, testLogger, &TemplateHandlers{Dashboard: dashboard})

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/admin/stats", http.StatusOK},
		{http.MethodGet, "/api/kpis", http.StatusServiceUnavailable},
		{http.MethodGet, "/api/forecast/P001", http.StatusServiceUnavailable},
		{http.MethodGet, "/sse/refresh-all", http.StatusOK},
		{http.MethodGet, "/missing", http.StatusNotFound},
		{http.MethodPost, "/api/kpis", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestGracefulServer_ShutdownRunsHooksInOrder(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	httpServer := &http.Server{Handler: http.NotFoundHandler()}
	gs := NewGracefulServer(httpServer, testLogger, testConfig())

	var order []string
	gs.RegisterShutdownHook("sinks", func(ctx context.Context) error {
		order = append(order, "sinks")
		return nil
	})
	gs.RegisterShutdownHook("cache", func(ctx context.Context) error {
		order = append(order, "cache")
		return errors.New("disk full")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("server not reachable: %v", err)
	}
	resp.Body.Close()

	cancel()

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "shutdown hook cache failed: disk full") {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	if strings.Join(order, ",") != "sinks,cache" {
		t.Errorf("hook order = %v", order)
	}
}

func TestGracefulServer_ServeReturnsListenerErrors(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ln.Close()

	gs := NewGracefulServer(&http.Server{}, testLogger, testConfig())
	if err := gs.Serve(context.Background(), ln); err == nil {
		t.Error("expected error from closed listener")
	}
}
