// Package export publishes pipeline results to external systems: report
// tables to InfluxDB as points and high-risk alerts to Kafka.
package export

import (
	"context"
	"errors"
	"time"

	"udip-dashboard/internal/models"
)

// Report is the output of one pipeline run.
type Report struct {
	RunID         string
	GeneratedAt   time.Time
	RouteRisks    []models.RouteRisk
	MachineHealth []models.MachineHealth
	Pricing       []models.PricingRecommendation
}

type Sink interface {
	Publish(ctx context.Context, report Report) error
	Close() error
}

// Sinks publishes to every sink, continuing past failures.
type Sinks []Sink

func (s Sinks) Publish(ctx context.Context, report Report) error {
	var errs []error
	for _, sink := range s {
		if err := sink.Publish(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s Sinks) Close() error {
	var errs []error
	for _, sink := range s {
		errs = append(errs, sink.Close())
	}
	return errors.Join(errs...)
}
