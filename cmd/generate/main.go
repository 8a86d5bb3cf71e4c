package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"udip-dashboard/internal/config"
	"udip-dashboard/internal/dataset"
	"udip-dashboard/internal/observability"
)

func main() {
	logger := observability.NewLogger(config.LoggerConfig{Level: "info", Format: "text"})
	err := run(os.Args[1:], os.Stderr, logger)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		logger.Error("generate failed", "error", err)
		os.Exit(1)
	}
}

// run parses args and writes a seeded synthetic dataset as CSV files.
func run(args []string, stderr io.Writer, logger *slog.Logger) error {
	defaults := dataset.DefaultGenerateOptions(42)

	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.String("out", "data/raw", "Directory to write the CSV tables to")
	seed := fs.Uint64("seed", 42, "Random seed")
	start := fs.String("start", defaults.Start.Format(time.DateOnly), "First order date (YYYY-MM-DD)")
	days := fs.Int("days", defaults.Days, "Number of days of orders and shipments")
	orders := fs.Float64("orders-per-day", defaults.OrdersPerDay, "Mean orders per day")
	shipments := fs.Float64("shipments-per-day", defaults.ShipmentsPerDay, "Mean shipments per day")
	products := fs.Int("products", defaults.Products, "Number of products")
	customers := fs.Int("customers", defaults.Customers, "Number of customers")
	routes := fs.Int("routes", defaults.Routes, "Number of routes")
	machines := fs.Int("machines", defaults.Machines, "Number of machines")
	hours := fs.Int("sensor-hours", defaults.SensorHours, "Hourly sensor readings per machine")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: generate [flags]\n\nWrites orders, products, customers, competitor_pricing, external_economy,\nroutes, shipments, machines and machine_sensors CSV files.\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	startDate, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	if *days < 1 || *products < 1 || *customers < 1 || *routes < 1 || *machines < 1 || *hours < 1 {
		return fmt.Errorf("days, products, customers, routes, machines and sensor-hours must be positive")
	}

	opts := dataset.GenerateOptions{
		Seed:            *seed,
		Start:           startDate,
		Days:            *days,
		OrdersPerDay:    *orders,
		ShipmentsPerDay: *shipments,
		Products:        *products,
		Customers:       *customers,
		Routes:          *routes,
		Machines:        *machines,
		SensorHours:     *hours,
	}

	began := time.Now()
	ds := dataset.Generate(opts)
	if err := dataset.WriteCSV(*out, ds); err != nil {
		return err
	}

	logger.Info("synthetic dataset written",
		"dir", *out,
		"seed", *seed,
		"orders", len(ds.Orders),
		"shipments", len(ds.Shipments),
		"sensor_readings", len(ds.Sensors),
		"duration", time.Since(began),
	)
	return nil
}
