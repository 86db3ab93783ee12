package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nisfeb/mqtt-rest-bridge/message"
	"github.com/nisfeb/mqtt-rest-bridge/pipeline"
)

const labelResult = "result"

var (
	pipelineLabelKeys = []string{labelResult}

	// processingTimeBuckets are one order of magnitude smaller than the
	// default buckets because a trip through the pipeline is dominated by a
	// single HTTP round trip.
	processingTimeBuckets = []float64{
		0.0005,
		0.001,
		0.0025,
		0.005,
		0.01,
		0.025,
		0.05,
		0.1,
		0.25,
		0.5,
		1,
	}
)

// PipelineMetricsMiddleware captures Prometheus metrics per processed message.
type PipelineMetricsMiddleware struct {
	messagesProcessedTotal *prometheus.CounterVec
	processingTimeSeconds  *prometheus.HistogramVec
}

// Middleware returns the middleware ready to be added to a pipeline. It is
// intended to sit near the outside of the chain so that the observed result
// matches the pipeline's terminal result.
func (m PipelineMetricsMiddleware) Middleware(next pipeline.HandlerFunc) pipeline.HandlerFunc {
	return func(ctx *pipeline.Context, msg *message.Message) (result pipeline.Result, err error) {
		now := time.Now()

		defer func() {
			observed := result
			if err != nil {
				observed = pipeline.ResultDropped
			}
			labels := prometheus.Labels{labelResult: observed.String()}

			m.messagesProcessedTotal.With(labels).Inc()
			m.processingTimeSeconds.With(labels).Observe(time.Since(now).Seconds())
		}()

		return next(ctx, msg)
	}
}
