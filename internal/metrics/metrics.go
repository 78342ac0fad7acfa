// Package metrics holds the prometheus collectors for the save pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Flush outcome labels.
const (
	ResultOK       = "ok"
	ResultFallback = "fallback"
	ResultError    = "error"
	ResultSkipped  = "skipped"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	SaveRequests  prometheus.Counter
	Flushes       *prometheus.CounterVec
	FlushDuration *prometheus.HistogramVec
	SnapshotBytes prometheus.Gauge
}

// New creates the collectors and registers them with reg when reg is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SaveRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "othings",
			Subsystem: "scheduler",
			Name:      "save_requests_total",
			Help:      "Mutation-triggered save requests.",
		}),
		Flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "othings",
			Subsystem: "storage",
			Name:      "flushes_total",
			Help:      "Snapshot flushes by target and result.",
		}, []string{"target", "result"}),
		FlushDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "othings",
			Subsystem: "storage",
			Name:      "flush_duration_seconds",
			Help:      "Time spent writing a snapshot.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"target"}),
		SnapshotBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "othings",
			Subsystem: "storage",
			Name:      "snapshot_bytes",
			Help:      "Size of the last flushed engine image.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.SaveRequests, m.Flushes, m.FlushDuration, m.SnapshotBytes)
	}
	return m
}

// SaveRequested counts one save request.
func (m *Metrics) SaveRequested() {
	if m == nil {
		return
	}
	m.SaveRequests.Inc()
}

// Flushed records one flush attempt against target.
func (m *Metrics) Flushed(target, result string, took time.Duration, size int) {
	if m == nil {
		return
	}
	m.Flushes.WithLabelValues(target, result).Inc()
	if result == ResultSkipped {
		return
	}
	m.FlushDuration.WithLabelValues(target).Observe(took.Seconds())
	if result != ResultError {
		m.SnapshotBytes.Set(float64(size))
	}
}
