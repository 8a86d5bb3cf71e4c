package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"log/slog"
	"strings"
	"testing"

	"udip-dashboard/internal/dataset"
)

var testLogger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

func TestRun_WritesLoadableDataset(t *testing.T) {
	dir := t.TempDir()
	args := []string{
		"-out", dir, "-seed", "7", "-days", "10",
		"-orders-per-day", "5", "-shipments-per-day", "3",
		"-customers", "20", "-routes", "4", "-machines", "2", "-sensor-hours", "48",
	}

	var stderr bytes.Buffer
	if err := run(args, &stderr, testLogger); err != nil {
		t.Fatalf("run() error = %v, stderr = %s", err, stderr.String())
	}

	loader := dataset.NewLoader(dir, 2, testLogger)
	if !loader.Available() {
		t.Fatal("generated directory should contain every table")
	}
	ds, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(ds.Routes) != 4 || len(ds.Machines) != 2 || len(ds.Sensors) != 2*48 {
		t.Errorf("routes=%d machines=%d sensors=%d", len(ds.Routes), len(ds.Machines), len(ds.Sensors))
	}
}

func TestRun_InvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad start", []string{"-out", t.TempDir(), "-start", "01/02/2024"}, "invalid -start"},
		{"zero days", []string{"-out", t.TempDir(), "-days", "0"}, "must be positive"},
		{"unknown flag", []string{"-bogus"}, "flag provided but not defined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			err := run(tt.args, &stderr, testLogger)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("run() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestRun_Help(t *testing.T) {
	var stderr bytes.Buffer
	err := run([]string{"-h"}, &stderr, testLogger)
	if !errors.Is(err, flag.ErrHelp) {
		t.Errorf("run(-h) error = %v", err)
	}
	if !strings.Contains(stderr.String(), "-sensor-hours") {
		t.Error("usage should list flags")
	}
}
