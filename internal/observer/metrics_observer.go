package observer

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsObserver exports classification events as Prometheus metrics
type MetricsObserver struct {
	classifications *prometheus.CounterVec
	failures        *prometheus.CounterVec
	scores          prometheus.Histogram
	duration        prometheus.Histogram
}

// NewMetricsObserver creates the collectors and registers them with reg
func NewMetricsObserver(reg prometheus.Registerer) (*MetricsObserver, error) {
	o := &MetricsObserver{
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blur_classifications_total",
			Help: "Completed blur classifications by verdict.",
		}, []string{"verdict"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blur_classification_failures_total",
			Help: "Classification requests that produced no verdict, by reason.",
		}, []string{"reason"}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blur_score",
			Help:    "Variance of the Laplacian edge map.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 16),
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blur_processing_seconds",
			Help:    "End-to-end classification time.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{o.classifications, o.failures, o.scores, o.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// OnEvent handles classification events by updating metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event ClassificationEvent) {
	switch event.EventType {
	case ClassificationCompleted:
		o.classifications.WithLabelValues(event.Verdict).Inc()
		o.scores.Observe(event.Score)
		o.duration.Observe(event.ProcessingTime.Seconds())
	case ClassificationFailed:
		reason := event.Reason
		if reason == "" {
			reason = "unknown"
		}
		o.failures.WithLabelValues(reason).Inc()
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}
