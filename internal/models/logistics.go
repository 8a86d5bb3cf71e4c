package models

import "time"

type Route struct {
	RouteID     string  `json:"route_id"`
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	DistanceKM  float64 `json:"distance_km"`
	AvgTimeMins float64 `json:"avg_time_mins"`
}

type Shipment struct {
	ShipmentID       string    `json:"shipment_id"`
	RouteID          string    `json:"route_id"`
	VehicleID        string    `json:"vehicle_id"`
	PlannedDeparture time.Time `json:"planned_departure"`
	ActualDeparture  time.Time `json:"actual_departure"`
	PlannedArrival   time.Time `json:"planned_arrival"`
	ActualArrival    time.Time `json:"actual_arrival"`
	FuelUsedLitres   float64   `json:"fuel_used_litres"`
	DelayMinutes     float64   `json:"delay_minutes"`
}

// ArrivalDelay derives the delay from the arrival timestamps, floored at zero.
func (s Shipment) ArrivalDelay() float64 {
	if s.ActualArrival.IsZero() || s.PlannedArrival.IsZero() {
		return 0
	}
	return max(0, s.ActualArrival.Sub(s.PlannedArrival).Minutes())
}

type RouteRecommendation string

const (
	RecommendAvoid   RouteRecommendation = "Avoid"
	RecommendMonitor RouteRecommendation = "Monitor"
	RecommendOptimal RouteRecommendation = "Optimal"
)

// Label is the wording shown on the dashboard.
func (r RouteRecommendation) Label() string {
	switch r {
	case RecommendAvoid:
		return "High Risk - Avoid"
	case RecommendMonitor:
		return "Medium Risk - Monitor"
	default:
		return "Low Risk - Optimal"
	}
}

type DelayPrediction struct {
	RouteID        string  `json:"route_id"`
	HourOfDay      int     `json:"hour_of_day"`
	DayOfWeek      int     `json:"day_of_week"`
	PredictedDelay float64 `json:"predicted_delay"`
}

type RouteRisk struct {
	RouteID        string              `json:"route_id"`
	Origin         string              `json:"origin"`
	Destination    string              `json:"destination"`
	DistanceKM     float64             `json:"distance_km"`
	PredictedDelay float64             `json:"predicted_delay"`
	RiskScore      int                 `json:"risk_score"`
	Recommendation RouteRecommendation `json:"recommendation"`
}

type DelayMetrics struct {
	MAE       float64 `json:"mae"`
	R2        float64 `json:"r2"`
	TrainRows int     `json:"train_rows"`
	TestRows  int     `json:"test_rows"`
}
