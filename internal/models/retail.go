package models

import "time"

type Order struct {
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	OrderDate  time.Time `json:"order_date"`
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity"`
	Price      float64   `json:"price"`
	Channel    string    `json:"channel"`
	Status     string    `json:"status"`
}

// Revenue is price × quantity.
func (o Order) Revenue() float64 {
	return o.Price * float64(o.Quantity)
}

type Product struct {
	ProductID       string  `json:"product_id"`
	Category        string  `json:"category"`
	BasePrice       float64 `json:"base_price"`
	Cost            float64 `json:"cost"`
	CarbonPerUnitKg float64 `json:"carbon_footprint_per_unit"`
}

type Customer struct {
	CustomerID    string    `json:"customer_id"`
	Segment       string    `json:"segment"`
	Region        string    `json:"region"`
	SignupDate    time.Time `json:"signup_date"`
	Churned       bool      `json:"churn_flag"`
	LifetimeValue float64   `json:"lifetime_value"`
}

type CompetitorPrice struct {
	Date           time.Time `json:"date"`
	ProductID      string    `json:"product_id"`
	CompetitorName string    `json:"competitor_name"`
	Price          float64   `json:"competitor_price"`
}

type EconomyIndex struct {
	Date           time.Time `json:"date"`
	OilPrice       float64   `json:"oil_price"`
	FXRate         float64   `json:"fx_rate"`
	MarketIndex    float64   `json:"market_index"`
	SentimentScore float64   `json:"sentiment_score"`
}

// Forecast is one future period of a demand curve. Lower <= Point <= Upper.
type Forecast struct {
	Date  time.Time `json:"date"`
	Point float64   `json:"point_estimate"`
	Lower float64   `json:"lower_bound"`
	Upper float64   `json:"upper_bound"`
}

type DailyQuantity struct {
	Date     time.Time `json:"date"`
	Quantity float64   `json:"quantity"`
}

type PricingRecommendation struct {
	ProductID              string  `json:"product_id"`
	Category               string  `json:"category"`
	CurrentPrice           float64 `json:"current_price"`
	RecommendedPrice       float64 `json:"recommended_price"`
	CompetitorAvgPrice     float64 `json:"competitor_avg_price"`
	ForecastDemand         float64 `json:"forecast_demand_30d"`
	ExpectedRevenueGainPct float64 `json:"expected_revenue_gain_pct"`
	Cost                   float64 `json:"cost"`
}
