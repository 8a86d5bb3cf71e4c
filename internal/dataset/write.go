package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05"
)

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timestampLayout)
}

func formatFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// WriteCSV writes every table of ds into dir using the file names Load reads.
func WriteCSV(dir string, ds *Dataset) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	writes := []struct {
		spec   tableSpec
		header []string
		rows   func(yield func([]string))
	}{
		{ordersTable, []string{"order_id", "customer_id", "order_date", "product_id", "quantity", "price", "channel", "status"},
			func(yield func([]string)) {
				for _, o := range ds.Orders {
					yield([]string{o.OrderID, o.CustomerID, formatDate(o.OrderDate), o.ProductID,
						strconv.Itoa(o.Quantity), formatFloat(o.Price), o.Channel, o.Status})
				}
			}},
		{productsTable, []string{"product_id", "category", "base_price", "cost", "carbon_footprint_per_unit"},
			func(yield func([]string)) {
				for _, p := range ds.Products {
					yield([]string{p.ProductID, p.Category, formatFloat(p.BasePrice), formatFloat(p.Cost),
						formatFloat(p.CarbonPerUnitKg)})
				}
			}},
		{customersTable, []string{"customer_id", "segment", "region", "signup_date", "churn_flag", "lifetime_value"},
			func(yield func([]string)) {
				for _, c := range ds.Customers {
					yield([]string{c.CustomerID, c.Segment, c.Region, formatDate(c.SignupDate),
						formatFlag(c.Churned), formatFloat(c.LifetimeValue)})
				}
			}},
		{competitorsTable, []string{"date", "product_id", "competitor_name", "competitor_price"},
			func(yield func([]string)) {
				for _, c := range ds.Competitors {
					yield([]string{formatDate(c.Date), c.ProductID, c.CompetitorName, formatFloat(c.Price)})
				}
			}},
		{economyTable, []string{"date", "oil_price", "fx_rate", "market_index", "sentiment_score"},
			func(yield func([]string)) {
				for _, e := range ds.Economy {
					yield([]string{formatDate(e.Date), formatFloat(e.OilPrice), formatFloat(e.FXRate),
						formatFloat(e.MarketIndex), formatFloat(e.SentimentScore)})
				}
			}},
		{routesTable, []string{"route_id", "origin", "destination", "distance_km", "avg_time_mins"},
			func(yield func([]string)) {
				for _, r := range ds.Routes {
					yield([]string{r.RouteID, r.Origin, r.Destination, formatFloat(r.DistanceKM), formatFloat(r.AvgTimeMins)})
				}
			}},
		{shipmentsTable, []string{"shipment_id", "route_id", "vehicle_id", "planned_departure", "actual_departure",
			"planned_arrival", "actual_arrival", "fuel_used_litres", "delay_minutes"},
			func(yield func([]string)) {
				for _, s := range ds.Shipments {
					yield([]string{s.ShipmentID, s.RouteID, s.VehicleID,
						formatTimestamp(s.PlannedDeparture), formatTimestamp(s.ActualDeparture),
						formatTimestamp(s.PlannedArrival), formatTimestamp(s.ActualArrival),
						formatFloat(s.FuelUsedLitres), formatFloat(s.DelayMinutes)})
				}
			}},
		{machinesTable, []string{"machine_id", "location_id", "type", "install_date", "last_maintenance_date", "status"},
			func(yield func([]string)) {
				for _, m := range ds.Machines {
					yield([]string{m.MachineID, m.LocationID, m.Type, formatDate(m.InstallDate),
						formatDate(m.LastMaintenanceDate), m.Status})
				}
			}},
		{sensorsTable, []string{"machine_id", "timestamp", "temperature", "vibration", "load_percent", "fault_flag"},
			func(yield func([]string)) {
				for _, s := range ds.Sensors {
					yield([]string{s.MachineID, formatTimestamp(s.Timestamp), formatFloat(s.Temperature),
						formatFloat(s.Vibration), formatFloat(s.LoadPercent), strconv.Itoa(s.FaultFlag)})
				}
			}},
	}

	for _, w := range writes {
		if err := writeTable(filepath.Join(dir, w.spec.file), w.header, w.rows); err != nil {
			return fmt.Errorf("write %s: %w", w.spec.name, err)
		}
	}
	return nil
}

func writeTable(path string, header []string, rows func(yield func([]string))) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	var werr error
	rows(func(rec []string) {
		if werr == nil {
			werr = w.Write(rec)
		}
	})
	if werr != nil {
		return werr
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
