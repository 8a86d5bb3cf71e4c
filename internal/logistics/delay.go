// Package logistics predicts shipment delays and ranks routes by delay risk.
package logistics

import (
	"context"
	"fmt"
	"log/slog"

	"udip-dashboard/internal/features"
	"udip-dashboard/internal/ml"
	"udip-dashboard/internal/models"
	"udip-dashboard/internal/observability"
)

// The evaluation grid is a fixed mid-week sample of departure hours. It is
// not derived from real future shipments and is not guaranteed to be
// representative of them.
var EvaluationHours = []int{8, 14, 18}

const (
	EvaluationDayOfWeek = 2
	// DefaultRouteAvgDelay is the route_avg_delay fed for every grid row.
	DefaultRouteAvgDelay = 15.0
)

type DelayOptions struct {
	TestFraction float64
	Seed         uint64
	// ClampNegative floors predictions at zero minutes.
	ClampNegative    bool
	FallbackAvgDelay float64
	// RouteHistoryOnGrid feeds each route's fitted mean delay to the grid
	// instead of FallbackAvgDelay. Routes absent from training still use
	// the fallback.
	RouteHistoryOnGrid bool
}

func DefaultDelayOptions(seed uint64) DelayOptions {
	return DelayOptions{
		TestFraction:     0.2,
		Seed:             seed,
		ClampNegative:    true,
		FallbackAvgDelay: DefaultRouteAvgDelay,
	}
}

type DelayPredictor struct {
	regressor ml.Regressor
	opts      DelayOptions
	logger    *slog.Logger
}

func NewDelayPredictor(regressor ml.Regressor, opts DelayOptions, logger *slog.Logger) *DelayPredictor {
	return &DelayPredictor{
		regressor: regressor,
		opts:      opts,
		logger:    observability.Component(logger, "delay_predictor"),
	}
}

// DelayModel is a fitted delay regressor plus the route history it was fitted on.
type DelayModel struct {
	model    ml.RegressionModel
	routeAvg map[string]float64
	opts     DelayOptions

	Metrics models.DelayMetrics
	Dropped features.DropReport
}

// Fit builds shipment features, holds out a seeded test split, fits the
// regressor on the rest and reports MAE and R² on the held-out rows.
func (p *DelayPredictor) Fit(ctx context.Context, shipments []models.Shipment, routes []models.Route) (*DelayModel, error) {
	set, err := features.BuildShipmentFeatures(shipments, routes)
	if err != nil {
		return nil, fmt.Errorf("build shipment features: %w", err)
	}

	X := make([][]float64, len(set.Rows))
	y := make([]float64, len(set.Rows))
	for i, r := range set.Rows {
		X[i] = r.Vector()
		y[i] = r.DelayMinutes
	}

	train, test, err := ml.TrainTestSplit(len(X), p.opts.TestFraction, p.opts.Seed)
	if err != nil {
		return nil, fmt.Errorf("split shipments: %w", err)
	}

	model, err := p.regressor.Fit(ctx, ml.Rows(X, train), ml.Pick(y, train))
	if err != nil {
		return nil, fmt.Errorf("fit delay model: %w", err)
	}

	actual := ml.Pick(y, test)
	predicted := model.Predict(ml.Rows(X, test))

	dm := &DelayModel{
		model:    model,
		routeAvg: set.RouteAvgDelay,
		opts:     p.opts,
		Metrics: models.DelayMetrics{
			MAE:       ml.MeanAbsoluteError(actual, predicted),
			R2:        ml.R2Score(actual, predicted),
			TrainRows: len(train),
			TestRows:  len(test),
		},
		Dropped: set.Dropped,
	}

	p.logger.Info("delay model fitted",
		"mae", dm.Metrics.MAE,
		"r2", dm.Metrics.R2,
		"train_rows", len(train),
		"test_rows", len(test),
		"dropped_unmatched", set.Dropped.Unmatched,
		"dropped_invalid", set.Dropped.Invalid,
	)
	return dm, nil
}

// Predict scores feature rows, applying the negative-delay clamp if enabled.
func (m *DelayModel) Predict(rows []features.ShipmentFeatures) []float64 {
	X := make([][]float64, len(rows))
	for i, r := range rows {
		X[i] = r.Vector()
	}
	out := m.model.Predict(X)
	if m.opts.ClampNegative {
		for i := range out {
			out[i] = max(out[i], 0)
		}
	}
	return out
}

// RouteAvgDelay is the route_avg_delay used on the evaluation grid. It is
// FallbackAvgDelay unless RouteHistoryOnGrid is set and the route had
// training shipments.
func (m *DelayModel) RouteAvgDelay(routeID string) float64 {
	if !m.opts.RouteHistoryOnGrid {
		return m.opts.FallbackAvgDelay
	}
	if v, ok := m.routeAvg[routeID]; ok {
		return v
	}
	return m.opts.FallbackAvgDelay
}

// PredictGrid scores every valid route at each evaluation hour on a weekday.
// Output follows route order, then hour order.
func (m *DelayModel) PredictGrid(routes []models.Route) []models.DelayPrediction {
	var rows []features.ShipmentFeatures
	seen := make(map[string]bool)
	valid := features.RouteIndex(routes)

	for _, r := range routes {
		if _, ok := valid[r.RouteID]; !ok || seen[r.RouteID] {
			continue
		}
		seen[r.RouteID] = true
		for _, h := range EvaluationHours {
			rows = append(rows, features.ShipmentFeatures{
				RouteID:       r.RouteID,
				DistanceKM:    r.DistanceKM,
				AvgTimeMins:   r.AvgTimeMins,
				HourOfDay:     h,
				DayOfWeek:     EvaluationDayOfWeek,
				IsWeekend:     features.IsWeekend(EvaluationDayOfWeek),
				RouteAvgDelay: m.RouteAvgDelay(r.RouteID),
			})
		}
	}

	delays := m.Predict(rows)
	out := make([]models.DelayPrediction, len(rows))
	for i, r := range rows {
		out[i] = models.DelayPrediction{
			RouteID:        r.RouteID,
			HourOfDay:      r.HourOfDay,
			DayOfWeek:      r.DayOfWeek,
			PredictedDelay: delays[i],
		}
	}
	return out
}
