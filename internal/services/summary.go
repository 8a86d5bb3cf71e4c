package services

import (
	"cmp"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"udip-dashboard/internal/dataset"
	"udip-dashboard/internal/maintenance"
	"udip-dashboard/internal/models"
)

const (
	alertCount = 3
	delayBins  = 50
)

// Summary holds the descriptive dashboard tables that need no model.
type Summary struct {
	KPIs             models.KPIs               `json:"kpis"`
	MonthlyRevenue   []models.MonthlyRevenue   `json:"monthly_revenue"`
	TopProducts      []models.ProductRevenue   `json:"top_products"`
	SegmentRevenue   []models.SegmentRevenue   `json:"segment_revenue"`
	RegionOrders     []models.RegionOrders     `json:"region_orders"`
	CarbonByCategory []models.CategoryCarbon   `json:"carbon_by_category"`
	Economy          models.EconomySnapshot    `json:"economy"`
	DelayedShipments []models.ShipmentDelay    `json:"delayed_shipments"`
	FaultRates       []models.MachineFaultRate `json:"fault_rates"`
	DelayHistogram   []models.DelayBucket      `json:"delay_histogram"`
	// MachinesByRisk is filled from the failure stage's health report.
	MachinesByRisk []models.RiskCategoryCount `json:"machines_by_risk"`
	// UnmatchedOrders counts orders whose customer or product is unknown.
	UnmatchedOrders int `json:"unmatched_orders"`
}

func summarize(ds *dataset.Dataset, topProducts int) Summary {
	customers := make(map[string]models.Customer, len(ds.Customers))
	for _, c := range ds.Customers {
		customers[c.CustomerID] = c
	}
	products := make(map[string]models.Product, len(ds.Products))
	for _, p := range ds.Products {
		products[p.ProductID] = p
	}

	revenue := make([]float64, len(ds.Orders))
	monthly := make(map[string]float64)
	byProduct := make(map[string]float64)
	bySegment := make(map[string]float64)
	byRegion := make(map[string]int)
	carbon := make(map[string]float64)
	unmatched := 0

	for i, o := range ds.Orders {
		revenue[i] = o.Revenue()
		monthly[o.OrderDate.Format("2006-01")] += revenue[i]
		byProduct[o.ProductID] += revenue[i]

		c, okC := customers[o.CustomerID]
		if okC {
			bySegment[c.Segment] += revenue[i]
			byRegion[c.Region]++
		}
		p, okP := products[o.ProductID]
		if okP {
			carbon[p.Category] += float64(o.Quantity) * p.CarbonPerUnitKg
		}
		if !okC || !okP {
			unmatched++
		}
	}

	s := Summary{
		KPIs: models.KPIs{
			TotalRevenue: floats.Sum(revenue),
			TotalOrders:  len(ds.Orders),
		},
		UnmatchedOrders: unmatched,
	}

	if len(ds.Customers) > 0 {
		churned := 0
		for _, c := range ds.Customers {
			if c.Churned {
				churned++
			}
		}
		s.KPIs.ChurnRatePct = 100 * float64(churned) / float64(len(ds.Customers))
	}
	if len(ds.Shipments) > 0 {
		delays := make([]float64, len(ds.Shipments))
		for i, sh := range ds.Shipments {
			delays[i] = sh.DelayMinutes
		}
		s.KPIs.AvgDelayMinutes = stat.Mean(delays, nil)
	}

	for month, v := range monthly {
		s.MonthlyRevenue = append(s.MonthlyRevenue, models.MonthlyRevenue{Month: month, Revenue: v})
	}
	slices.SortFunc(s.MonthlyRevenue, func(a, b models.MonthlyRevenue) int { return cmp.Compare(a.Month, b.Month) })

	for id, v := range byProduct {
		s.TopProducts = append(s.TopProducts, models.ProductRevenue{ProductID: id, Revenue: v})
	}
	slices.SortFunc(s.TopProducts, func(a, b models.ProductRevenue) int {
		if c := cmp.Compare(b.Revenue, a.Revenue); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	s.TopProducts = limit(s.TopProducts, topProducts)

	for seg, v := range bySegment {
		s.SegmentRevenue = append(s.SegmentRevenue, models.SegmentRevenue{Segment: seg, Revenue: v})
	}
	slices.SortFunc(s.SegmentRevenue, func(a, b models.SegmentRevenue) int { return cmp.Compare(b.Revenue, a.Revenue) })

	for region, n := range byRegion {
		s.RegionOrders = append(s.RegionOrders, models.RegionOrders{Region: region, Orders: n})
	}
	slices.SortFunc(s.RegionOrders, func(a, b models.RegionOrders) int { return cmp.Compare(a.Region, b.Region) })

	for cat, v := range carbon {
		s.CarbonByCategory = append(s.CarbonByCategory, models.CategoryCarbon{Category: cat, TotalCarbon: v})
	}
	slices.SortFunc(s.CarbonByCategory, func(a, b models.CategoryCarbon) int { return cmp.Compare(b.TotalCarbon, a.TotalCarbon) })

	s.Economy = economySnapshot(ds.Economy)
	s.DelayedShipments = mostDelayed(ds.Shipments, alertCount)
	s.FaultRates = maintenance.FaultRates(ds.Sensors, alertCount)
	s.DelayHistogram = delayHistogram(ds.Shipments, delayBins)
	return s
}

// delayHistogram splits [min, max] delay into equal-width buckets.
func delayHistogram(shipments []models.Shipment, bins int) []models.DelayBucket {
	if len(shipments) == 0 || bins < 1 {
		return nil
	}
	delays := make([]float64, len(shipments))
	for i, sh := range shipments {
		delays[i] = sh.DelayMinutes
	}
	lo, hi := floats.Min(delays), floats.Max(delays)
	if hi == lo {
		return []models.DelayBucket{{FromMinutes: lo, ToMinutes: hi, Shipments: len(delays)}}
	}

	width := (hi - lo) / float64(bins)
	out := make([]models.DelayBucket, bins)
	for i := range out {
		out[i].FromMinutes = lo + float64(i)*width
		out[i].ToMinutes = lo + float64(i+1)*width
	}
	out[bins-1].ToMinutes = hi
	for _, d := range delays {
		i := min(int((d-lo)/width), bins-1)
		out[i].Shipments++
	}
	return out
}

// machinesByRisk counts machines per risk category, Low to High.
func machinesByRisk(health []models.MachineHealth) []models.RiskCategoryCount {
	out := []models.RiskCategoryCount{
		{Category: models.RiskLow},
		{Category: models.RiskMedium},
		{Category: models.RiskHigh},
	}
	for _, h := range health {
		for i := range out {
			if out[i].Category == h.RiskCategory {
				out[i].Machines++
			}
		}
	}
	return out
}

func economySnapshot(rows []models.EconomyIndex) models.EconomySnapshot {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b models.EconomyIndex) int { return a.Date.Compare(b.Date) })

	var snap models.EconomySnapshot
	for _, e := range sorted {
		snap.OilPrices = append(snap.OilPrices, models.EconomyPoint{Date: e.Date, Value: e.OilPrice})
	}
	if n := len(sorted); n > 0 {
		snap.LatestOilPrice = sorted[n-1].OilPrice
		snap.LatestMarketIndex = sorted[n-1].MarketIndex
	}
	return snap
}

func mostDelayed(shipments []models.Shipment, n int) []models.ShipmentDelay {
	out := make([]models.ShipmentDelay, len(shipments))
	for i, s := range shipments {
		out[i] = models.ShipmentDelay{ShipmentID: s.ShipmentID, RouteID: s.RouteID, DelayMinutes: s.DelayMinutes}
	}
	slices.SortStableFunc(out, func(a, b models.ShipmentDelay) int { return cmp.Compare(b.DelayMinutes, a.DelayMinutes) })
	return limit(out, n)
}

func limit[T any](rows []T, n int) []T {
	if n >= 0 && len(rows) > n {
		return rows[:n]
	}
	return rows
}
