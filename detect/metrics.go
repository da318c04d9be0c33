// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package detect

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts pipeline outcomes. A nil *Metrics records nothing.
type Metrics struct {
	lines        *prometheus.CounterVec
	computations *prometheus.CounterVec
	alerts       *prometheus.CounterVec
	duration     prometheus.Histogram
}

// NewMetrics registers the pipeline collectors with registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := Metrics{
		lines: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_lines_total",
				Help: "Number of input records by outcome",
			},
			[]string{"outcome"},
		),
		computations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_similarity_computations_total",
				Help: "Number of encrypted similarity computations by signature and outcome",
			},
			[]string{"signature", "outcome"},
		),
		alerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_alerts_total",
				Help: "Number of similarity scores above the alert threshold",
			},
			[]string{"signature"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sentinel_detection_duration_seconds",
				Help:    "Time to score one record against the whole catalog",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			},
		),
	}

	registerer.MustRegister(m.lines)
	registerer.MustRegister(m.computations)
	registerer.MustRegister(m.alerts)
	registerer.MustRegister(m.duration)

	return &m
}

func (m *Metrics) line(outcome string) {
	if m == nil {
		return
	}
	m.lines.WithLabelValues(outcome).Inc()
}

func (m *Metrics) computation(signature, outcome string) {
	if m == nil {
		return
	}
	m.computations.WithLabelValues(signature, outcome).Inc()
}

func (m *Metrics) alert(signature string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(signature).Inc()
}

func (m *Metrics) observe(start time.Time) {
	if m == nil {
		return
	}
	m.duration.Observe(time.Since(start).Seconds())
}
