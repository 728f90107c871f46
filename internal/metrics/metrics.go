package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rendis/flowreader/internal/store"
)

// ResultOK labels reads that returned a workflow.
const ResultOK = "ok"

// ReadMetrics records diagram reads as Prometheus metrics. It implements
// store.ReadRecorder so it can sit next to the read log.
type ReadMetrics struct {
	reads *prometheus.CounterVec
	tasks prometheus.Histogram
}

// New creates ReadMetrics and registers them with reg.
func New(reg prometheus.Registerer) *ReadMetrics {
	m := &ReadMetrics{
		reads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowreader_reads_total",
				Help: "Diagram reads by result: ok or the error code",
			},
			[]string{"result"},
		),
		tasks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "flowreader_read_tasks",
			Help:    "Number of tasks in successfully read diagrams",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),
	}
	reg.MustRegister(m.reads, m.tasks)
	return m
}

// AppendRead counts a read.
func (m *ReadMetrics) AppendRead(_ context.Context, rec *store.ReadRecord) error {
	if rec.Failed() {
		result := rec.ErrorCode
		if result == "" {
			result = "unknown"
		}
		m.reads.WithLabelValues(result).Inc()
		return nil
	}
	m.reads.WithLabelValues(ResultOK).Inc()
	m.tasks.Observe(float64(rec.TaskCount))
	return nil
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

var _ store.ReadRecorder = (*ReadMetrics)(nil)
