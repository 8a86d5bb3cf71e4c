// Package dataset supplies the raw tables the analytics pipelines run on,
// either loaded from a directory of CSV files or generated synthetically.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "udip-dashboard/internal/errors"
	"udip-dashboard/internal/models"
	"udip-dashboard/internal/observability"
)

// Dataset holds every raw table. Skipped counts unparseable rows per table.
type Dataset struct {
	Orders      []models.Order
	Products    []models.Product
	Customers   []models.Customer
	Competitors []models.CompetitorPrice
	Economy     []models.EconomyIndex
	Routes      []models.Route
	Shipments   []models.Shipment
	Machines    []models.Machine
	Sensors     []models.SensorReading
	Skipped     map[string]int
}

// Rows is the total number of loaded rows across tables.
func (d *Dataset) Rows() int {
	return len(d.Orders) + len(d.Products) + len(d.Customers) + len(d.Competitors) +
		len(d.Economy) + len(d.Routes) + len(d.Shipments) + len(d.Machines) + len(d.Sensors)
}

var (
	ordersTable = tableSpec{"orders", "orders.csv",
		[]string{"order_id", "order_date", "product_id", "quantity", "price"}}
	productsTable = tableSpec{"products", "products.csv",
		[]string{"product_id", "category", "base_price", "cost"}}
	customersTable = tableSpec{"customers", "customers.csv",
		[]string{"customer_id", "churn_flag"}}
	competitorsTable = tableSpec{"competitor_pricing", "competitor_pricing.csv",
		[]string{"product_id", "competitor_price"}}
	economyTable = tableSpec{"external_economy", "external_economy.csv",
		[]string{"date", "oil_price", "market_index"}}
	routesTable = tableSpec{"routes", "routes.csv",
		[]string{"route_id", "distance_km", "avg_time_mins"}}
	shipmentsTable = tableSpec{"shipments", "shipments.csv",
		[]string{"shipment_id", "route_id", "planned_departure"}}
	machinesTable = tableSpec{"machines", "machines.csv",
		[]string{"machine_id"}}
	sensorsTable = tableSpec{"machine_sensors", "machine_sensors.csv",
		[]string{"machine_id", "timestamp", "temperature", "vibration", "load_percent", "fault_flag"}}
)

var tables = []tableSpec{
	ordersTable, productsTable, customersTable, competitorsTable, economyTable,
	routesTable, shipmentsTable, machinesTable, sensorsTable,
}

func parseOrder(r *row) models.Order {
	return models.Order{
		OrderID:    r.id("order_id"),
		CustomerID: r.str("customer_id"),
		OrderDate:  r.time("order_date"),
		ProductID:  r.id("product_id"),
		Quantity:   r.int("quantity"),
		Price:      r.float("price"),
		Channel:    r.str("channel"),
		Status:     r.str("status"),
	}
}

func parseProduct(r *row) models.Product {
	return models.Product{
		ProductID:       r.id("product_id"),
		Category:        r.str("category"),
		BasePrice:       r.float("base_price"),
		Cost:            r.float("cost"),
		CarbonPerUnitKg: r.optFloat("carbon_footprint_per_unit"),
	}
}

func parseCustomer(r *row) models.Customer {
	return models.Customer{
		CustomerID:    r.id("customer_id"),
		Segment:       r.str("segment"),
		Region:        r.str("region"),
		SignupDate:    r.optTime("signup_date"),
		Churned:       r.bool("churn_flag"),
		LifetimeValue: r.optFloat("lifetime_value"),
	}
}

func parseCompetitor(r *row) models.CompetitorPrice {
	return models.CompetitorPrice{
		Date:           r.optTime("date"),
		ProductID:      r.id("product_id"),
		CompetitorName: r.str("competitor_name"),
		Price:          r.float("competitor_price"),
	}
}

func parseEconomy(r *row) models.EconomyIndex {
	return models.EconomyIndex{
		Date:           r.time("date"),
		OilPrice:       r.float("oil_price"),
		FXRate:         r.optFloat("fx_rate"),
		MarketIndex:    r.float("market_index"),
		SentimentScore: r.optFloat("sentiment_score"),
	}
}

func parseRoute(r *row) models.Route {
	return models.Route{
		RouteID:     r.id("route_id"),
		Origin:      r.str("origin"),
		Destination: r.str("destination"),
		DistanceKM:  r.float("distance_km"),
		AvgTimeMins: r.float("avg_time_mins"),
	}
}

// parseShipment falls back to the arrival timestamps when the file carries
// no delay_minutes value.
func parseShipment(r *row) models.Shipment {
	s := models.Shipment{
		ShipmentID:       r.id("shipment_id"),
		RouteID:          r.id("route_id"),
		VehicleID:        r.str("vehicle_id"),
		PlannedDeparture: r.time("planned_departure"),
		ActualDeparture:  r.optTime("actual_departure"),
		PlannedArrival:   r.optTime("planned_arrival"),
		ActualArrival:    r.optTime("actual_arrival"),
		FuelUsedLitres:   r.optFloat("fuel_used_litres"),
	}
	switch {
	case r.has("delay_minutes"):
		s.DelayMinutes = r.float("delay_minutes")
	case !s.PlannedArrival.IsZero() && !s.ActualArrival.IsZero():
		s.DelayMinutes = s.ArrivalDelay()
	default:
		r.fail("delay_minutes", errors.New("no delay and no arrival timestamps"))
	}
	return s
}

func parseMachine(r *row) models.Machine {
	return models.Machine{
		MachineID:           r.id("machine_id"),
		LocationID:          r.str("location_id"),
		Type:                r.str("type"),
		InstallDate:         r.optTime("install_date"),
		LastMaintenanceDate: r.optTime("last_maintenance_date"),
		Status:              r.str("status"),
	}
}

func parseSensor(r *row) models.SensorReading {
	return models.SensorReading{
		MachineID:   r.id("machine_id"),
		Timestamp:   r.time("timestamp"),
		Temperature: r.float("temperature"),
		Vibration:   r.float("vibration"),
		LoadPercent: r.float("load_percent"),
		FaultFlag:   r.int("fault_flag"),
	}
}

type Loader struct {
	dir     string
	workers int
	logger  *slog.Logger
}

func NewLoader(dir string, workers int, logger *slog.Logger) *Loader {
	return &Loader{
		dir:     dir,
		workers: max(workers, 1),
		logger:  observability.Component(logger, "dataset_loader"),
	}
}

func (l *Loader) Dir() string { return l.dir }

// Available reports whether the directory holds every table file.
func (l *Loader) Available() bool {
	for _, t := range tables {
		if _, err := os.Stat(filepath.Join(l.dir, t.file)); err != nil {
			return false
		}
	}
	return true
}

// ModTime returns the most recent modification time of the table files.
func (l *Loader) ModTime() (time.Time, error) {
	var latest time.Time
	for _, t := range tables {
		info, err := os.Stat(filepath.Join(l.dir, t.file))
		if err != nil {
			return time.Time{}, err
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	return latest, nil
}

// Load reads every table concurrently.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	start := time.Now()
	ds := &Dataset{}
	skipped := make([]int, len(tables))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ds.Orders, skipped[0], err = loadTable(ctx, l, ordersTable, parseOrder)
		return err
	})
	g.Go(func() (err error) {
		ds.Products, skipped[1], err = loadTable(ctx, l, productsTable, parseProduct)
		return err
	})
	g.Go(func() (err error) {
		ds.Customers, skipped[2], err = loadTable(ctx, l, customersTable, parseCustomer)
		return err
	})
	g.Go(func() (err error) {
		ds.Competitors, skipped[3], err = loadTable(ctx, l, competitorsTable, parseCompetitor)
		return err
	})
	g.Go(func() (err error) {
		ds.Economy, skipped[4], err = loadTable(ctx, l, economyTable, parseEconomy)
		return err
	})
	g.Go(func() (err error) {
		ds.Routes, skipped[5], err = loadTable(ctx, l, routesTable, parseRoute)
		return err
	})
	g.Go(func() (err error) {
		ds.Shipments, skipped[6], err = loadTable(ctx, l, shipmentsTable, parseShipment)
		return err
	})
	g.Go(func() (err error) {
		ds.Machines, skipped[7], err = loadTable(ctx, l, machinesTable, parseMachine)
		return err
	})
	g.Go(func() (err error) {
		ds.Sensors, skipped[8], err = loadTable(ctx, l, sensorsTable, parseSensor)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ds.Skipped = make(map[string]int, len(tables))
	for i, t := range tables {
		ds.Skipped[t.name] = skipped[i]
		if skipped[i] > 0 {
			l.logger.Warn("skipped unparseable rows", "table", t.name, "rows", skipped[i])
		}
	}

	l.logger.Info("dataset loaded",
		"dir", l.dir,
		"rows", ds.Rows(),
		"duration", time.Since(start),
	)
	return ds, nil
}

func loadTable[T any](ctx context.Context, l *Loader, spec tableSpec, parse func(*row) T) ([]T, int, error) {
	path := filepath.Join(l.dir, spec.file)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, apperrors.MissingData(fmt.Sprintf("%s table not found", spec.name)).WithDetails("%s", path)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rows, skipped, err := parseTable(ctx, f, spec, l.workers, parse)
	if err != nil {
		return nil, skipped, fmt.Errorf("load %s: %w", spec.file, err)
	}
	l.logger.Debug("table loaded", "table", spec.name, "rows", len(rows), "skipped", skipped)
	return rows, skipped, nil
}
