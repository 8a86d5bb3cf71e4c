package export

import (
	"context"
	"fmt"
	"log/slog"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"udip-dashboard/internal/config"
	"udip-dashboard/internal/observability"
)

// InfluxSink writes report rows as points stamped with the report time.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	logger   *slog.Logger
}

func NewInfluxSink(cfg config.ExportConfig, logger *slog.Logger) *InfluxSink {
	client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		logger:   observability.Component(logger, "influx_sink"),
	}
}

func (s *InfluxSink) Publish(ctx context.Context, report Report) error {
	points := Points(report)
	if len(points) == 0 {
		return nil
	}
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write %d points: %w", len(points), err)
	}
	s.logger.Debug("report written", "run_id", report.RunID, "points", len(points))
	return nil
}

func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

// Points converts a report into route_risk, machine_health and
// pricing_recommendation measurements.
func Points(report Report) []*write.Point {
	ts := report.GeneratedAt
	points := make([]*write.Point, 0, len(report.RouteRisks)+len(report.MachineHealth)+len(report.Pricing))

	for _, r := range report.RouteRisks {
		points = append(points, write.NewPoint(
			"route_risk",
			map[string]string{
				"route_id":       r.RouteID,
				"recommendation": string(r.Recommendation),
			},
			map[string]any{
				"predicted_delay": r.PredictedDelay,
				"risk_score":      r.RiskScore,
				"distance_km":     r.DistanceKM,
			},
			ts,
		))
	}

	for _, h := range report.MachineHealth {
		points = append(points, write.NewPoint(
			"machine_health",
			map[string]string{
				"machine_id":    h.MachineID,
				"type":          h.Type,
				"location_id":   h.LocationID,
				"risk_category": string(h.RiskCategory),
			},
			map[string]any{
				"failure_probability": h.FailureProbability,
				"risk_score":          h.RiskScore,
				"temperature":         h.Temperature,
				"vibration":           h.Vibration,
			},
			ts,
		))
	}

	for _, p := range report.Pricing {
		points = append(points, write.NewPoint(
			"pricing_recommendation",
			map[string]string{
				"product_id": p.ProductID,
				"category":   p.Category,
			},
			map[string]any{
				"current_price":             p.CurrentPrice,
				"recommended_price":         p.RecommendedPrice,
				"competitor_avg_price":      p.CompetitorAvgPrice,
				"forecast_demand":           p.ForecastDemand,
				"expected_revenue_gain_pct": p.ExpectedRevenueGainPct,
			},
			ts,
		))
	}
	return points
}
