package service

import (
	"fmt"
	"time"

	"artifact-stamper/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineObserver captures telemetry for pipeline runs.
type PipelineObserver interface {
	RecordRun(variant domain.Variant, duration time.Duration, err error)
	RecordFailure(kind string, stage domain.Stage)
	RecordStored(sizeBytes int)
}

// PrometheusObserver exports pipeline metrics to Prometheus.
type PrometheusObserver struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	storedBytes prometheus.Counter
}

// NewPrometheusObserver registers run, failure, latency and byte metrics.
// Registering twice against the same registerer reuses the existing
// collectors.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "artifact_pipeline"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	observer := &PrometheusObserver{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by variant and outcome.",
		}, []string{"variant", "outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Pipeline failures by error kind and stage.",
		}, []string{"kind", "stage"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "duration_seconds",
			Help:      "End-to-end latency of pipeline runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"variant"}),
		storedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stored_bytes_total",
			Help:      "Cumulative payload size written to the blob store.",
		}),
	}

	if err := register(reg, &observer.runs); err != nil {
		return nil, err
	}
	if err := register(reg, &observer.failures); err != nil {
		return nil, err
	}
	if err := register(reg, &observer.duration); err != nil {
		return nil, err
	}
	if err := register(reg, &observer.storedBytes); err != nil {
		return nil, err
	}
	return observer, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, collector *C) error {
	if err := reg.Register(*collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				*collector = existing
				return nil
			}
		}
		return fmt.Errorf("register pipeline metric: %w", err)
	}
	return nil
}

// RecordRun tracks one finished run
func (o *PrometheusObserver) RecordRun(variant domain.Variant, duration time.Duration, err error) {
	if o == nil {
		return
	}
	outcome := "recorded"
	if err != nil {
		outcome = "failed"
	}
	o.runs.WithLabelValues(string(variant), outcome).Inc()
	o.duration.WithLabelValues(string(variant)).Observe(duration.Seconds())
}

func (o *PrometheusObserver) RecordFailure(kind string, stage domain.Stage) {
	if o == nil {
		return
	}
	o.failures.WithLabelValues(kind, string(stage)).Inc()
}

func (o *PrometheusObserver) RecordStored(sizeBytes int) {
	if o == nil {
		return
	}
	o.storedBytes.Add(float64(sizeBytes))
}

type nopObserver struct{}

func (nopObserver) RecordRun(domain.Variant, time.Duration, error) {}

func (nopObserver) RecordFailure(string, domain.Stage) {}

func (nopObserver) RecordStored(int) {}
