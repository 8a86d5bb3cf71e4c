package logistics

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"udip-dashboard/internal/ml"
	"udip-dashboard/internal/models"
)

var quietLogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

func testRegressor(seed uint64) ml.Regressor {
	opts := ml.DefaultForestOptions(seed)
	opts.Trees = 20
	return ml.NewRandomForestRegressor(opts)
}

func syntheticShipments(routes []models.Route, n int) []models.Shipment {
	rng := ml.NewRand(3)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Shipment, n)
	for i := range out {
		r := routes[i%len(routes)]
		dep := start.AddDate(0, 0, i).Add(time.Duration(rng.IntN(24)) * time.Hour)
		delay := r.DistanceKM/20 + float64(rng.IntN(10))
		if dep.Hour() >= 16 {
			delay += 30
		}
		out[i] = models.Shipment{
			ShipmentID:       fmt.Sprintf("S%04d", i),
			RouteID:          r.RouteID,
			PlannedDeparture: dep,
			DelayMinutes:     delay,
		}
	}
	return out
}

var threeRoutes = []models.Route{
	{RouteID: "R001", Origin: "Leeds", Destination: "York", DistanceKM: 100, AvgTimeMins: 90},
	{RouteID: "R002", Origin: "Bath", Destination: "Bristol", DistanceKM: 400, AvgTimeMins: 300},
	{RouteID: "R003", Origin: "Hull", Destination: "Goole", DistanceKM: 800, AvgTimeMins: 500},
}

func TestRecommend_Boundaries(t *testing.T) {
	tests := []struct {
		score int
		want  models.RouteRecommendation
	}{
		{100, models.RecommendAvoid},
		{71, models.RecommendAvoid},
		{70, models.RecommendMonitor},
		{41, models.RecommendMonitor},
		{40, models.RecommendOptimal},
		{0, models.RecommendOptimal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Recommend(tt.score), "score %d", tt.score)
	}
}

func TestRiskScores(t *testing.T) {
	assert.Equal(t, []int{50, 100, 0}, RiskScores([]float64{5, 10, 0}))
	assert.Equal(t, []int{0, 0}, RiskScores([]float64{0, 0}), "all-zero delays must not divide by zero")
	assert.Equal(t, []int{0, 100}, RiskScores([]float64{-3, 6}), "negative delays score 0")
	assert.Empty(t, RiskScores(nil))
}

func TestRecommendRoutes_AggregatesAndRanks(t *testing.T) {
	preds := []models.DelayPrediction{
		{RouteID: "R001", PredictedDelay: 10},
		{RouteID: "R001", PredictedDelay: 30},
		{RouteID: "R002", PredictedDelay: 40},
		{RouteID: "R003", PredictedDelay: 20},
		{RouteID: "R004", PredictedDelay: 20},
		{RouteID: "R404", PredictedDelay: 99},
	}
	routes := append(threeRoutes, models.Route{RouteID: "R004", DistanceKM: 1, AvgTimeMins: 1})

	risks, dropped := RecommendRoutes(preds, routes, 0)
	assert.Equal(t, 1, dropped)
	require.Len(t, risks, 4)

	assert.Equal(t, "R002", risks[0].RouteID)
	assert.Equal(t, 100, risks[0].RiskScore)
	assert.Equal(t, models.RecommendAvoid, risks[0].Recommendation)
	assert.Equal(t, "Bristol", risks[0].Destination)

	// R001, R003 and R004 all average 20 → 50; ties keep first-seen order.
	assert.Equal(t, []string{"R001", "R003", "R004"}, []string{risks[1].RouteID, risks[2].RouteID, risks[3].RouteID})
	assert.Equal(t, 50, risks[1].RiskScore)
	assert.Equal(t, models.RecommendMonitor, risks[1].Recommendation)
	assert.InDelta(t, 20, risks[1].PredictedDelay, 1e-9)

	top, _ := RecommendRoutes(preds, routes, 2)
	assert.Len(t, top, 2)
}

func TestRecommendRoutes_AllZero(t *testing.T) {
	risks, _ := RecommendRoutes([]models.DelayPrediction{
		{RouteID: "R001"}, {RouteID: "R002"},
	}, nil, 10)
	require.Len(t, risks, 2)
	for _, r := range risks {
		assert.Equal(t, 0, r.RiskScore)
		assert.Equal(t, models.RecommendOptimal, r.Recommendation)
	}
}

func TestDelayPredictor_FitAndPredictGrid(t *testing.T) {
	shipments := syntheticShipments(threeRoutes, 300)
	p := NewDelayPredictor(testRegressor(42), DefaultDelayOptions(42), quietLogger)

	model, err := p.Fit(context.Background(), shipments, threeRoutes)
	require.NoError(t, err)
	assert.Equal(t, 240, model.Metrics.TrainRows)
	assert.Equal(t, 60, model.Metrics.TestRows)
	assert.Greater(t, model.Metrics.R2, 0.5)

	grid := model.PredictGrid(threeRoutes)
	require.Len(t, grid, len(threeRoutes)*len(EvaluationHours))
	for _, g := range grid {
		assert.GreaterOrEqual(t, g.PredictedDelay, 0.0)
		assert.Equal(t, EvaluationDayOfWeek, g.DayOfWeek)
	}
	assert.Equal(t, 8, grid[0].HourOfDay)
	assert.Equal(t, 18, grid[2].HourOfDay)

	risks, dropped := RecommendRoutes(grid, threeRoutes, 10)
	assert.Zero(t, dropped)
	require.Len(t, risks, 3)
	assert.Equal(t, "R003", risks[0].RouteID, "longest route carries the largest delay")
	assert.Equal(t, 100, risks[0].RiskScore)
}

func TestDelayPredictor_Idempotent(t *testing.T) {
	shipments := syntheticShipments(threeRoutes, 120)
	ctx := context.Background()

	a, err := NewDelayPredictor(testRegressor(42), DefaultDelayOptions(42), quietLogger).Fit(ctx, shipments, threeRoutes)
	require.NoError(t, err)
	b, err := NewDelayPredictor(testRegressor(42), DefaultDelayOptions(42), quietLogger).Fit(ctx, shipments, threeRoutes)
	require.NoError(t, err)

	assert.Equal(t, a.Metrics, b.Metrics)
	assert.Equal(t, a.PredictGrid(threeRoutes), b.PredictGrid(threeRoutes))
}

func TestDelayModel_FallbackAvgDelay(t *testing.T) {
	p := NewDelayPredictor(testRegressor(1), DefaultDelayOptions(1), quietLogger)
	model, err := p.Fit(context.Background(), syntheticShipments(threeRoutes[:1], 20), threeRoutes[:1])
	require.NoError(t, err)

	assert.Equal(t, DefaultRouteAvgDelay, model.RouteAvgDelay("R999"))
	assert.Equal(t, DefaultRouteAvgDelay, model.RouteAvgDelay("R001"), "grid ignores route history by default")
	for _, p := range model.PredictGrid(threeRoutes[:1]) {
		assert.Equal(t, EvaluationDayOfWeek, p.DayOfWeek)
	}
}

func TestDelayModel_RouteHistoryOnGrid(t *testing.T) {
	opts := DefaultDelayOptions(1)
	opts.RouteHistoryOnGrid = true
	p := NewDelayPredictor(testRegressor(1), opts, quietLogger)
	model, err := p.Fit(context.Background(), syntheticShipments(threeRoutes[:1], 20), threeRoutes[:1])
	require.NoError(t, err)

	assert.Equal(t, DefaultRouteAvgDelay, model.RouteAvgDelay("R999"), "unseen routes fall back")
	assert.NotEqual(t, DefaultRouteAvgDelay, model.RouteAvgDelay("R001"))
}

func TestSingleLateShipmentScenario(t *testing.T) {
	// Twenty shipments on one route, nineteen on time and one 100 minutes late.
	wednesday := time.Date(2024, 1, 3, 14, 0, 0, 0, time.UTC)
	var preds []models.DelayPrediction
	for i := range 20 {
		delay := 0.0
		if i == 19 {
			delay = 100
		}
		preds = append(preds, models.DelayPrediction{
			RouteID:        "R001",
			HourOfDay:      wednesday.Hour(),
			DayOfWeek:      EvaluationDayOfWeek,
			PredictedDelay: delay,
		})
	}

	risks, _ := RecommendRoutes(preds, nil, 10)
	require.Len(t, risks, 1)
	assert.InDelta(t, 5, risks[0].PredictedDelay, 1e-9)
	assert.Equal(t, 100, risks[0].RiskScore)
	assert.Equal(t, models.RecommendAvoid, risks[0].Recommendation)

	preds = append(preds, models.DelayPrediction{RouteID: "R002", PredictedDelay: 2.5})
	risks, _ = RecommendRoutes(preds, nil, 10)
	require.Len(t, risks, 2)
	assert.Equal(t, 100, risks[0].RiskScore)
	assert.Equal(t, 50, risks[1].RiskScore, "other routes scale proportionally")
}

func TestSingleLateShipmentScenario_FitAndPredictGrid(t *testing.T) {
	// Every departure is a Wednesday at 08:00, the evaluation grid's weekday
	// and first hour. A late shipment on any other weekday can be split away
	// by day_of_week and would not reach the grid's predictions.
	const n = 20
	opts := DefaultDelayOptions(7)
	train, _, err := ml.TrainTestSplit(n, opts.TestFraction, opts.Seed)
	require.NoError(t, err)
	late := train[0]

	first := time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)
	shipments := make([]models.Shipment, n)
	for i := range shipments {
		delay := 0.0
		if i == late {
			delay = 100
		}
		shipments[i] = models.Shipment{
			ShipmentID:       fmt.Sprintf("S%02d", i),
			RouteID:          "R001",
			PlannedDeparture: first.AddDate(0, 0, 7*i),
			DelayMinutes:     delay,
		}
	}

	model, err := NewDelayPredictor(testRegressor(7), opts, quietLogger).Fit(context.Background(), shipments, threeRoutes[:1])
	require.NoError(t, err)

	preds := model.PredictGrid(threeRoutes[:1])
	require.Len(t, preds, len(EvaluationHours))
	for _, p := range preds {
		assert.Greater(t, p.PredictedDelay, 0.0)
	}

	risks, _ := RecommendRoutes(preds, threeRoutes[:1], 10)
	require.Len(t, risks, 1)
	assert.Equal(t, 100, risks[0].RiskScore)
	assert.Equal(t, models.RecommendAvoid, risks[0].Recommendation)
}
