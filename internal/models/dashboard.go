package models

import "time"

type KPIs struct {
	TotalRevenue    float64 `json:"total_revenue"`
	TotalOrders     int     `json:"total_orders"`
	ChurnRatePct    float64 `json:"churn_rate_pct"`
	AvgDelayMinutes float64 `json:"avg_delay_minutes"`
}

type MonthlyRevenue struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
}

type ProductRevenue struct {
	ProductID string  `json:"product_id"`
	Revenue   float64 `json:"revenue"`
}

type SegmentRevenue struct {
	Segment string  `json:"segment"`
	Revenue float64 `json:"revenue"`
}

type RegionOrders struct {
	Region string `json:"region"`
	Orders int    `json:"orders"`
}

type CategoryCarbon struct {
	Category    string  `json:"category"`
	TotalCarbon float64 `json:"total_carbon"`
}

type ShipmentDelay struct {
	ShipmentID   string  `json:"shipment_id"`
	RouteID      string  `json:"route_id"`
	DelayMinutes float64 `json:"delay_minutes"`
}

type EconomySnapshot struct {
	LatestOilPrice    float64        `json:"latest_oil_price"`
	LatestMarketIndex float64        `json:"latest_market_index"`
	OilPrices         []EconomyPoint `json:"oil_prices"`
}

type EconomyPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

type ModelMetrics struct {
	Delay   DelayMetrics   `json:"delay"`
	Failure FailureMetrics `json:"failure"`
}

// DelayBucket counts shipments with a delay in [FromMinutes, ToMinutes). The
// last bucket of a histogram also holds delays equal to its upper edge.
type DelayBucket struct {
	FromMinutes float64 `json:"from_minutes"`
	ToMinutes   float64 `json:"to_minutes"`
	Shipments   int     `json:"shipments"`
}

type RiskCategoryCount struct {
	Category RiskCategory `json:"category"`
	Machines int          `json:"machines"`
}
