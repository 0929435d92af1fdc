/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package metrics exposes the orchestrator's internal counters and
// gauges (C14) on a private prometheus.Registry — never the global
// default registry, and never wired to an HTTP handler by this
// package, so collecting metrics stays read-only and does not become a
// second, accidental control plane alongside the file-based one.
package metrics

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles the orchestrator's metric collectors together with
// the private registry they're registered against.
type Registry struct {
	reg *prometheus.Registry

	WorkersBusy           prometheus.Gauge
	QueuePendingDepth     prometheus.Gauge
	JobsCompletedTotal    prometheus.Counter
	JobsFailedTotal       prometheus.Counter
	DeviceUpgradeDuration prometheus.Histogram
}

// New builds a Registry with all collectors registered.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		WorkersBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "panupgrade_workers_busy",
			Help: "Number of worker pool slots currently running a job.",
		}),
		QueuePendingDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "panupgrade_queue_pending_depth",
			Help: "Number of submitted jobs waiting in the worker pool queue for a free worker.",
		}),
		JobsCompletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "panupgrade_jobs_completed_total",
			Help: "Total number of jobs that reached a successful terminal state.",
		}),
		JobsFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "panupgrade_jobs_failed_total",
			Help: "Total number of jobs that reached the failed terminal state.",
		}),
		DeviceUpgradeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "panupgrade_device_upgrade_duration_seconds",
			Help:    "Wall-clock duration of a single device's upgrade job, start to terminal state.",
			Buckets: prometheus.ExponentialBuckets(30, 2, 12),
		}),
	}

	reg.MustRegister(
		r.WorkersBusy,
		r.QueuePendingDepth,
		r.JobsCompletedTotal,
		r.JobsFailedTotal,
		r.DeviceUpgradeDuration,
	)
	return r
}

// Gather returns the current metric families; callers that opt into an
// HTTP /metrics surface (outside this package) render these themselves.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	return r.reg.Gather()
}
