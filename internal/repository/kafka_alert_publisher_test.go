package repository

import (
	"context"
	"strings"
	"testing"

	"NetflowWatch/internal/domain/models"
	pkgkafka "NetflowWatch/pkg/kafka"
)

type fakeProducer struct {
	topic string
	msgs  []pkgkafka.Message
}

func (f *fakeProducer) Publish(ctx context.Context, topic string, messages ...pkgkafka.Message) error {
	f.topic = topic
	f.msgs = append(f.msgs, messages...)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func TestKafkaAlertPublisher(t *testing.T) {
	fp := &fakeProducer{}
	p := NewKafkaAlertPublisher(fp, "netflow.alerts")
	if err := p.PublishAlert(context.Background(), sampleAlert()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if fp.topic != "netflow.alerts" || len(fp.msgs) != 1 || string(fp.msgs[0].Key) != "a1" {
		t.Fatalf("topic %s msgs %+v", fp.topic, fp.msgs)
	}
	if h := fp.msgs[0].Headers; h["schema"] != models.AlertSchema || h["anomalies"] != "1" {
		t.Fatalf("headers %v", h)
	}
	v, ok := fp.msgs[0].Value.(models.AlertView)
	if !ok {
		t.Fatalf("value type %T", fp.value)
	}
	if len(v.Anomalies) != 1 || v.Anomalies[0].Date != "2025-05-07" || v.Anomalies[0].Polarity != models.PolarityHigh {
		t.Fatalf("payload %+v", v)
	}
}

func TestNetflowSchemaUsesDatabase(t *testing.T) {
	for _, stmt := range NetflowSchema("netflow") {
		if !strings.Contains(stmt, "netflow") {
			t.Fatalf("statement without database: %s", stmt)
		}
	}
}
