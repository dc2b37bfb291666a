package kafka

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// clientMetrics is shared by every producer and consumer in the process.
type clientMetrics struct {
	published   *prometheus.CounterVec
	publishedB  *prometheus.CounterVec
	publishTime *prometheus.HistogramVec
	handled     *prometheus.CounterVec
	handleTime  *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metrics     *clientMetrics
)

func sharedMetrics() *clientMetrics {
	metricsOnce.Do(func() {
		metrics = &clientMetrics{
			published: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "netflowwatch_kafka_producer_messages_total",
				Help: "Messages published per topic, compression and result",
			}, []string{"topic", "compression", "result"}),
			publishedB: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "netflowwatch_kafka_producer_bytes_total",
				Help: "Payload bytes published",
			}, []string{"topic", "compression"}),
			publishTime: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name: "netflowwatch_kafka_producer_publish_seconds",
				Help: "Time spent in one Publish call",
			}, []string{"topic"}),
			handled: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "netflowwatch_kafka_consumer_messages_total",
				Help: "Messages handled per topic and result",
			}, []string{"topic", "result"}),
			handleTime: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name: "netflowwatch_kafka_consumer_handle_seconds",
				Help: "Handling time per message, retries included",
			}, []string{"topic"}),
		}
	})
	return metrics
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *clientMetrics) observePublish(topic, comp string, n int, bytes int64, took time.Duration, err error) {
	m.published.WithLabelValues(topic, comp, resultLabel(err)).Add(float64(n))
	m.publishedB.WithLabelValues(topic, comp).Add(float64(bytes))
	m.publishTime.WithLabelValues(topic).Observe(took.Seconds())
}

func (m *clientMetrics) observeHandle(topic string, took time.Duration, err error) {
	m.handled.WithLabelValues(topic, resultLabel(err)).Inc()
	m.handleTime.WithLabelValues(topic).Observe(took.Seconds())
}
