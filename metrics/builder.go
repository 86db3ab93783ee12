// Package metrics exposes Prometheus metrics for the bridge's pipelines.
package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

func NewPrometheusMetricsBuilder(prometheusRegistry *prometheus.Registry, namespace string, subsystem string) PrometheusMetricsBuilder {
	return PrometheusMetricsBuilder{
		Namespace:          namespace,
		Subsystem:          subsystem,
		PrometheusRegistry: prometheusRegistry,
	}
}

// PrometheusMetricsBuilder registers the bridge's metrics and builds the
// pipeline middleware recording them.
type PrometheusMetricsBuilder struct {
	PrometheusRegistry *prometheus.Registry

	Namespace string
	Subsystem string
}

// NewPipelineMiddleware returns a middleware recording per-message counters
// and processing times, labeled with the terminal result.
func (b PrometheusMetricsBuilder) NewPipelineMiddleware() PipelineMetricsMiddleware {
	var err error
	m := PipelineMetricsMiddleware{}

	m.messagesProcessedTotal, err = b.registerCounterVec(prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: b.Namespace,
			Subsystem: b.Subsystem,
			Name:      "messages_processed_total",
			Help:      "The total number of messages processed by the pipeline",
		},
		pipelineLabelKeys,
	))
	if err != nil {
		panic(errors.Wrap(err, "could not register messages processed metric"))
	}

	m.processingTimeSeconds, err = b.registerHistogramVec(prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: b.Namespace,
			Subsystem: b.Subsystem,
			Name:      "processing_time_seconds",
			Help:      "The total time of a message's trip through the pipeline in seconds",
			Buckets:   processingTimeBuckets,
		},
		pipelineLabelKeys,
	))
	if err != nil {
		panic(errors.Wrap(err, "could not register processing time metric"))
	}

	return m
}

func (b PrometheusMetricsBuilder) register(c prometheus.Collector) (prometheus.Collector, error) {
	err := b.PrometheusRegistry.Register(c)
	if err == nil {
		return c, nil
	}

	if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
		return are.ExistingCollector, nil
	}

	return nil, err
}

func (b PrometheusMetricsBuilder) registerCounterVec(c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	col, err := b.register(c)
	if err != nil {
		return nil, err
	}
	return col.(*prometheus.CounterVec), nil
}

func (b PrometheusMetricsBuilder) registerHistogramVec(h *prometheus.HistogramVec) (*prometheus.HistogramVec, error) {
	col, err := b.register(h)
	if err != nil {
		return nil, err
	}
	return col.(*prometheus.HistogramVec), nil
}
