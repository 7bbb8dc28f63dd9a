package publish

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"amuguard/internal/config"
	"amuguard/internal/model"
)

// KafkaPublisher forwards created alerts to a topic for downstream
// consumers (dashboards, notification services). Disabled unless brokers
// and a topic are configured.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewKafka(cfg config.KafkaConfig, logger *slog.Logger) *KafkaPublisher {
	if !cfg.Enabled {
		if logger != nil {
			logger.Info("kafka publisher disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("kafka publisher enabled", "brokers", cfg.Brokers, "topic", cfg.Topic)
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.Topic,
			Balancer: &kafka.LeastBytes{},
		},
		logger: logger,
	}
}

func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func (p *KafkaPublisher) PublishAMUAlert(ctx context.Context, alert model.AMUAlert) error {
	return p.publish(ctx, "amu_alert", alert.FarmID, alert)
}

func (p *KafkaPublisher) PublishDiseaseAlert(ctx context.Context, alert model.DiseaseAlert) error {
	return p.publish(ctx, "disease_alert", alert.FarmID, alert)
}

func (p *KafkaPublisher) publish(ctx context.Context, kind, farmID string, payload any) error {
	if p == nil || p.writer == nil {
		return nil
	}
	value, err := json.Marshal(map[string]any{"kind": kind, "alert": payload})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(farmID),
		Value: value,
	})
}
