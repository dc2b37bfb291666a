package repository

import (
	"context"
	"strconv"

	"NetflowWatch/internal/domain/models"
	"NetflowWatch/internal/domain/repository"
	pkgkafka "NetflowWatch/pkg/kafka"
)

// producer is the subset of pkg/kafka.Producer used here.
type producer interface {
	Publish(ctx context.Context, topic string, messages ...pkgkafka.Message) error
	Close() error
}

// KafkaAlertPublisher publishes alerts as JSON keyed by alert id. The key keeps
// redeliveries of one alert on one partition.
type KafkaAlertPublisher struct {
	producer producer
	topic    string
}

// NewKafkaAlertPublisher creates Kafka publisher.
func NewKafkaAlertPublisher(p producer, topic string) *KafkaAlertPublisher {
	return &KafkaAlertPublisher{producer: p, topic: topic}
}

var _ repository.AlertPublisher = (*KafkaAlertPublisher)(nil)

func (p *KafkaAlertPublisher) PublishAlert(ctx context.Context, alert models.Alert) error {
	return p.producer.Publish(ctx, p.topic, pkgkafka.Message{
		Key:   []byte(alert.ID),
		Value: models.NewAlertView(alert),
		Headers: map[string]string{
			"schema":    models.AlertSchema,
			"run_id":    alert.RunID,
			"anomalies": strconv.Itoa(len(alert.Anomalies)),
		},
	})
}

func (p *KafkaAlertPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
