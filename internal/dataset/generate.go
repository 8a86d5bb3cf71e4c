package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"udip-dashboard/internal/models"
)

// GenerateOptions sizes the synthetic dataset. Distributions follow the
// demo generator: Poisson daily volumes, uniform prices and a fault flag set
// when a machine runs both hot and rough.
type GenerateOptions struct {
	Seed            uint64
	Start           time.Time
	Days            int
	OrdersPerDay    float64
	ShipmentsPerDay float64
	Products        int
	Customers       int
	Routes          int
	Machines        int
	// SensorHours is the length of each machine's hourly history, ending on
	// the last generated day.
	SensorHours int
}

func DefaultGenerateOptions(seed uint64) GenerateOptions {
	return GenerateOptions{
		Seed:            seed,
		Start:           time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Days:            731,
		OrdersPerDay:    50,
		ShipmentsPerDay: 20,
		Products:        20,
		Customers:       1000,
		Routes:          50,
		Machines:        30,
		SensorHours:     720,
	}
}

var (
	categories  = []string{"Electronics", "Clothing", "Home", "Sports"}
	segments    = []string{"Premium", "Standard", "Budget"}
	regions     = []string{"North", "South", "East", "West"}
	channels    = []string{"Online", "Store", "Mobile"}
	machineKind = []string{"CNC", "Press", "Conveyor", "Robot"}
	competitors = []string{"CompA", "CompB", "CompC"}
	cities      = []string{
		"Leeds", "Bristol", "Glasgow", "Cardiff", "Belfast", "York", "Derby", "Hull",
		"Exeter", "Dundee", "Norwich", "Oxford", "Bath", "Preston", "Carlisle", "Swansea",
	}
)

type generator struct {
	rng *rand.Rand
}

func (g generator) uniform(lo, hi float64) float64 { return lo + g.rng.Float64()*(hi-lo) }

func (g generator) normal(mean, std float64) float64 { return mean + g.rng.NormFloat64()*std }

func (g generator) pick(options []string) string { return options[g.rng.IntN(len(options))] }

// chance returns true with probability p.
func (g generator) chance(p float64) bool { return g.rng.Float64() < p }

// poisson draws by inversion; adequate for the small rates used here.
func (g generator) poisson(lambda float64) int {
	l, k, p := math.Exp(-lambda), 0, 1.0
	for {
		p *= g.rng.Float64()
		if p <= l {
			return k
		}
		k++
	}
}

func cents(v float64) float64 { return math.Round(v*100) / 100 }

// Generate builds a seeded synthetic dataset. The same options always yield
// the same tables.
func Generate(opts GenerateOptions) *Dataset {
	g := generator{rng: rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))}
	start := opts.Start.UTC().Truncate(24 * time.Hour)
	end := start.AddDate(0, 0, opts.Days-1)
	ds := &Dataset{Skipped: map[string]int{}}

	for i := range opts.Products {
		ds.Products = append(ds.Products, models.Product{
			ProductID:       fmt.Sprintf("P%03d", i+1),
			Category:        g.pick(categories),
			BasePrice:       cents(g.uniform(20, 500)),
			Cost:            cents(g.uniform(10, 300)),
			CarbonPerUnitKg: cents(g.uniform(0.5, 5)),
		})
	}

	for i := range opts.Customers {
		ds.Customers = append(ds.Customers, models.Customer{
			CustomerID:    strconv.Itoa(i + 1),
			Segment:       g.pick(segments),
			Region:        g.pick(regions),
			SignupDate:    end.AddDate(0, 0, -g.rng.IntN(3*365)),
			Churned:       g.chance(0.15),
			LifetimeValue: cents(g.uniform(100, 10000)),
		})
	}

	for i := range opts.Routes {
		ds.Routes = append(ds.Routes, models.Route{
			RouteID:     fmt.Sprintf("R%03d", i+1),
			Origin:      g.pick(cities),
			Destination: g.pick(cities),
			DistanceKM:  cents(g.uniform(50, 1000)),
			AvgTimeMins: float64(60 + g.rng.IntN(540)),
		})
	}

	for i := range opts.Machines {
		ds.Machines = append(ds.Machines, models.Machine{
			MachineID:           fmt.Sprintf("M%03d", i+1),
			LocationID:          fmt.Sprintf("L%02d", 1+g.rng.IntN(5)),
			Type:                g.pick(machineKind),
			InstallDate:         end.AddDate(-1-g.rng.IntN(4), 0, -g.rng.IntN(365)),
			LastMaintenanceDate: end.AddDate(0, 0, -g.rng.IntN(180)),
			Status:              g.weighted([]string{"Active", "Maintenance", "Idle"}, []float64{0.8, 0.1, 0.1}),
		})
	}

	orderID, shipmentID := 1, 1
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		for range g.poisson(opts.OrdersPerDay) {
			if len(ds.Products) == 0 {
				break
			}
			p := ds.Products[g.rng.IntN(len(ds.Products))]
			ds.Orders = append(ds.Orders, models.Order{
				OrderID:    strconv.Itoa(orderID),
				CustomerID: strconv.Itoa(1 + g.rng.IntN(max(opts.Customers, 1))),
				OrderDate:  day,
				ProductID:  p.ProductID,
				Quantity:   1 + g.rng.IntN(9),
				Price:      p.BasePrice * g.uniform(0.9, 1.1),
				Channel:    g.pick(channels),
				Status:     g.weighted([]string{"Completed", "Pending", "Cancelled"}, []float64{0.85, 0.1, 0.05}),
			})
			orderID++
		}

		for range g.poisson(opts.ShipmentsPerDay) {
			if len(ds.Routes) == 0 {
				break
			}
			r := ds.Routes[g.rng.IntN(len(ds.Routes))]
			planned := day.Add(time.Duration(g.rng.IntN(24)) * time.Hour)
			delay := max(0, math.Trunc(g.normal(15, 30)))
			travel := time.Duration(r.AvgTimeMins) * time.Minute
			ds.Shipments = append(ds.Shipments, models.Shipment{
				ShipmentID:       strconv.Itoa(shipmentID),
				RouteID:          r.RouteID,
				VehicleID:        fmt.Sprintf("V%03d", 1+g.rng.IntN(50)),
				PlannedDeparture: planned,
				ActualDeparture:  planned.Add(time.Duration(g.rng.IntN(40)-10) * time.Minute),
				PlannedArrival:   planned.Add(travel),
				ActualArrival:    planned.Add(travel + time.Duration(delay)*time.Minute),
				FuelUsedLitres:   r.DistanceKM / 10 * g.uniform(0.9, 1.1),
				DelayMinutes:     delay,
			})
			shipmentID++
		}

		ds.Economy = append(ds.Economy, g.economy(day, ds.Economy))

		if int(day.Sub(start).Hours()/24)%7 == 0 {
			for _, p := range ds.Products[:min(10, len(ds.Products))] {
				ds.Competitors = append(ds.Competitors, models.CompetitorPrice{
					Date:           day,
					ProductID:      p.ProductID,
					CompetitorName: g.pick(competitors),
					Price:          p.BasePrice * g.uniform(0.85, 1.15),
				})
			}
		}
	}

	sensorStart := end.Add(24*time.Hour - time.Duration(opts.SensorHours)*time.Hour)
	for _, m := range ds.Machines {
		for h := range opts.SensorHours {
			temp := g.uniform(60, 80)
			vib := g.uniform(0.5, 2)
			fault := 0
			if temp > 75 && vib > 1.8 {
				fault = 1
			}
			ds.Sensors = append(ds.Sensors, models.SensorReading{
				MachineID:   m.MachineID,
				Timestamp:   sensorStart.Add(time.Duration(h) * time.Hour),
				Temperature: g.normal(temp, 2),
				Vibration:   g.normal(vib, 0.2),
				LoadPercent: g.uniform(40, 95),
				FaultFlag:   fault,
			})
		}
	}
	return ds
}

// economy continues random walks from the previous day's values.
func (g generator) economy(day time.Time, history []models.EconomyIndex) models.EconomyIndex {
	prev := models.EconomyIndex{OilPrice: 70, FXRate: 1.1, MarketIndex: 3000}
	if len(history) > 0 {
		prev = history[len(history)-1]
	}
	return models.EconomyIndex{
		Date:           day,
		OilPrice:       prev.OilPrice + g.normal(0, 2),
		FXRate:         prev.FXRate + g.normal(0, 0.01),
		MarketIndex:    prev.MarketIndex + g.normal(0, 50),
		SentimentScore: g.uniform(-1, 1),
	}
}

func (g generator) weighted(options []string, weights []float64) string {
	x := g.rng.Float64()
	for i, w := range weights {
		if x < w {
			return options[i]
		}
		x -= w
	}
	return options[len(options)-1]
}
