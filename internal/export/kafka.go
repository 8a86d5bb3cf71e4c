package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shopify/sarama"

	"udip-dashboard/internal/models"
	"udip-dashboard/internal/observability"
)

type AlertKind string

const (
	AlertRoute   AlertKind = "route"
	AlertMachine AlertKind = "machine"
)

// Alert is the Kafka message body for one high-risk route or machine.
type Alert struct {
	RunID       string    `json:"run_id"`
	Kind        AlertKind `json:"kind"`
	ID          string    `json:"id"`
	RiskScore   int       `json:"risk_score"`
	Action      string    `json:"action"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Alerts selects the Avoid routes and High risk machines of a report.
func Alerts(report Report) []Alert {
	var out []Alert
	for _, r := range report.RouteRisks {
		if r.Recommendation != models.RecommendAvoid {
			continue
		}
		out = append(out, Alert{
			RunID:       report.RunID,
			Kind:        AlertRoute,
			ID:          r.RouteID,
			RiskScore:   r.RiskScore,
			Action:      r.Recommendation.Label(),
			GeneratedAt: report.GeneratedAt,
		})
	}
	for _, h := range report.MachineHealth {
		if h.RiskCategory != models.RiskHigh {
			continue
		}
		out = append(out, Alert{
			RunID:       report.RunID,
			Kind:        AlertMachine,
			ID:          h.MachineID,
			RiskScore:   h.RiskScore,
			Action:      h.RecommendedAction,
			GeneratedAt: report.GeneratedAt,
		})
	}
	return out
}

// KafkaSink publishes alerts keyed by route or machine id.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

func ProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = "udip-dashboard"
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	return cfg
}

func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) (*KafkaSink, error) {
	producer, err := sarama.NewSyncProducer(brokers, ProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaSinkWithProducer(producer, topic, logger), nil
}

func NewKafkaSinkWithProducer(producer sarama.SyncProducer, topic string, logger *slog.Logger) *KafkaSink {
	return &KafkaSink{
		producer: producer,
		topic:    topic,
		logger:   observability.Component(logger, "kafka_sink"),
	}
}

func (s *KafkaSink) Publish(ctx context.Context, report Report) error {
	alerts := Alerts(report)
	for _, a := range alerts {
		if err := ctx.Err(); err != nil {
			return err
		}
		body, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode alert %s: %w", a.ID, err)
		}
		partition, offset, err := s.producer.SendMessage(&sarama.ProducerMessage{
			Topic: s.topic,
			Key:   sarama.StringEncoder(a.ID),
			Value: sarama.ByteEncoder(body),
		})
		if err != nil {
			return fmt.Errorf("publish %s alert %s: %w", a.Kind, a.ID, err)
		}
		s.logger.Debug("alert published", "kind", a.Kind, "id", a.ID, "partition", partition, "offset", offset)
	}
	if len(alerts) > 0 {
		s.logger.Info("alerts published", "run_id", report.RunID, "count", len(alerts))
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
