// Package maintenance predicts machine faults from rolling sensor statistics
// and turns the predictions into a health report and maintenance schedule.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	apperrors "udip-dashboard/internal/errors"
	"udip-dashboard/internal/features"
	"udip-dashboard/internal/ml"
	"udip-dashboard/internal/models"
	"udip-dashboard/internal/observability"
)

type FailureOptions struct {
	TestFraction float64
	Seed         uint64
	Window       int
}

func DefaultFailureOptions(seed uint64) FailureOptions {
	return FailureOptions{
		TestFraction: 0.2,
		Seed:         seed,
		Window:       features.DefaultWindow,
	}
}

type FailurePredictor struct {
	classifier ml.Classifier
	opts       FailureOptions
	logger     *slog.Logger
}

func NewFailurePredictor(classifier ml.Classifier, opts FailureOptions, logger *slog.Logger) *FailurePredictor {
	return &FailurePredictor{
		classifier: classifier,
		opts:       opts,
		logger:     observability.Component(logger, "failure_predictor"),
	}
}

// FailureModel is a fitted fault classifier together with the sensor
// features it was fitted on.
type FailureModel struct {
	model    ml.ClassificationModel
	sensors  features.SensorSet
	machines []models.Machine

	Metrics models.FailureMetrics
	Dropped features.DropReport
}

// Fit builds rolling sensor features, keeps the rows whose statistics are
// defined, holds out a stratified test split and reports held-out accuracy.
func (p *FailurePredictor) Fit(ctx context.Context, readings []models.SensorReading, machines []models.Machine) (*FailureModel, error) {
	set, err := features.BuildSensorFeatures(readings, machines, p.opts.Window)
	if err != nil {
		return nil, fmt.Errorf("build sensor features: %w", err)
	}

	rows := set.Complete()
	X := make([][]float64, len(rows))
	labels := make([]int, len(rows))
	for i, r := range rows {
		X[i] = r.Vector()
		labels[i] = r.FaultFlag
	}

	faults := 0
	for _, l := range labels {
		faults += l
	}
	if faults == 0 || faults == len(labels) {
		return nil, apperrors.ModelFit("fault labels contain a single class").
			WithDetails("%d of %d complete rows are faults", faults, len(labels))
	}

	train, test, err := ml.StratifiedSplit(labels, p.opts.TestFraction, p.opts.Seed)
	if err != nil {
		return nil, fmt.Errorf("split sensor rows: %w", err)
	}

	model, err := p.classifier.Fit(ctx, ml.Rows(X, train), ml.Pick(labels, train))
	if err != nil {
		return nil, fmt.Errorf("fit failure model: %w", err)
	}

	fm := &FailureModel{
		model:    model,
		sensors:  set,
		machines: machines,
		Metrics: models.FailureMetrics{
			Accuracy:  ml.Accuracy(ml.Pick(labels, test), model.Predict(ml.Rows(X, test))),
			TrainRows: len(train),
			TestRows:  len(test),
		},
		Dropped: set.Dropped,
	}

	p.logger.Info("failure model fitted",
		"accuracy", fm.Metrics.Accuracy,
		"train_rows", len(train),
		"test_rows", len(test),
		"incomplete_rows", len(set.Rows)-len(rows),
		"dropped_unmatched", set.Dropped.Unmatched,
		"dropped_invalid", set.Dropped.Invalid,
	)
	return fm, nil
}

// Probabilities returns the fault probability of each feature row.
func (m *FailureModel) Probabilities(rows []features.SensorFeatures) []float64 {
	X := make([][]float64, len(rows))
	for i, r := range rows {
		X[i] = r.Vector()
	}
	return m.model.PredictProba(X)
}

// Health scores the most recent reading of every machine the model was fitted
// on.
func (m *FailureModel) Health() []models.MachineHealth {
	return m.HealthOf(m.sensors.Latest(), m.machines)
}

// HealthOf scores the given latest-reading rows and joins machine attributes.
// Output is sorted by descending risk score, ties keeping machine order.
func (m *FailureModel) HealthOf(latest []features.SensorFeatures, machines []models.Machine) []models.MachineHealth {
	byID := make(map[string]models.Machine, len(machines))
	for _, mc := range machines {
		if _, dup := byID[mc.MachineID]; !dup {
			byID[mc.MachineID] = mc
		}
	}

	probs := m.Probabilities(latest)
	out := make([]models.MachineHealth, len(latest))
	for i, r := range latest {
		score := RiskScore(probs[i])
		category := Categorize(score)
		mc := byID[r.MachineID]
		out[i] = models.MachineHealth{
			MachineID:          r.MachineID,
			Type:               mc.Type,
			LocationID:         mc.LocationID,
			FailureProbability: probs[i],
			RiskScore:          score,
			RiskCategory:       category,
			Temperature:        r.Temperature,
			Vibration:          r.Vibration,
			RecommendedAction:  Action(category),
		}
	}
	sortByRisk(out)
	return out
}

// RiskScore maps a probability onto 0..100.
func RiskScore(probability float64) int {
	if math.IsNaN(probability) {
		return 0
	}
	return int(math.Round(100 * min(max(probability, 0), 1)))
}

// Categorize bins a risk score with closed-right bounds: (0,30] Low,
// (30,60] Medium, (60,100] High. A score of 0 is Low.
func Categorize(score int) models.RiskCategory {
	switch {
	case score > 60:
		return models.RiskHigh
	case score > 30:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

func Action(category models.RiskCategory) string {
	switch category {
	case models.RiskHigh:
		return "Immediate maintenance required"
	case models.RiskMedium:
		return "Schedule inspection within 7 days"
	default:
		return "Continue monitoring"
	}
}
