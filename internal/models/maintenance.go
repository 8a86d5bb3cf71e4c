package models

import "time"

type Machine struct {
	MachineID           string    `json:"machine_id"`
	LocationID          string    `json:"location_id"`
	Type                string    `json:"type"`
	InstallDate         time.Time `json:"install_date"`
	LastMaintenanceDate time.Time `json:"last_maintenance_date"`
	Status              string    `json:"status"`
}

// SensorReading carries FaultFlag as ground truth for training only.
type SensorReading struct {
	MachineID   string    `json:"machine_id"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Vibration   float64   `json:"vibration"`
	LoadPercent float64   `json:"load_percent"`
	FaultFlag   int       `json:"fault_flag"`
}

type RiskCategory string

const (
	RiskLow    RiskCategory = "Low"
	RiskMedium RiskCategory = "Medium"
	RiskHigh   RiskCategory = "High"
)

type MachineHealth struct {
	MachineID          string       `json:"machine_id"`
	Type               string       `json:"type"`
	LocationID         string       `json:"location_id"`
	FailureProbability float64      `json:"failure_probability"`
	RiskScore          int          `json:"risk_score"`
	RiskCategory       RiskCategory `json:"risk_category"`
	Temperature        float64      `json:"temperature"`
	Vibration          float64      `json:"vibration"`
	RecommendedAction  string       `json:"recommended_action"`
}

type MaintenanceTask struct {
	MachineID         string `json:"machine_id"`
	Type              string `json:"type"`
	LocationID        string `json:"location_id"`
	RiskScore         int    `json:"risk_score"`
	Priority          string `json:"priority"`
	RecommendedAction string `json:"recommended_action"`
}

type FailureMetrics struct {
	Accuracy  float64 `json:"accuracy"`
	TrainRows int     `json:"train_rows"`
	TestRows  int     `json:"test_rows"`
}

type MachineFaultRate struct {
	MachineID string  `json:"machine_id"`
	FaultRate float64 `json:"fault_rate"`
}
