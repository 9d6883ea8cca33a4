// Package metrics exports run results as Prometheus metrics in the
// node-exporter textfile format.
//
// process-torrents is run from cron or a timer rather than as a daemon, so
// metrics are gauges describing the last run, collected in a registry of
// their own and written to a file the node exporter picks up.
package metrics

import (
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	perrors "github.com/mrmachine/transmission-process-torrents/pkg/errors"
	"github.com/mrmachine/transmission-process-torrents/pkg/reconcile"
)

const (
	// Namespace for all process-torrents metrics
	namespace = "process_torrents"
)

// Run holds the metrics of one run.
type Run struct {
	registry *prometheus.Registry

	// Actions counts actions taken in the last run, by kind
	Actions *prometheus.GaugeVec

	// Items is the number of items the client reported
	Items prometheus.Gauge

	// Warnings is the number of merge warnings
	Warnings prometheus.Gauge

	// Success is 1 when the last run completed without a fatal error
	Success prometheus.Gauge

	// DryRun is 1 when the last run was a dry run
	DryRun prometheus.Gauge

	// Duration of the last run in seconds
	Duration prometheus.Gauge

	// Timestamp of the end of the last run
	Timestamp prometheus.Gauge
}

// NewRun creates the metrics for a run in a fresh registry.
func NewRun() *Run {
	m := &Run{
		registry: prometheus.NewRegistry(),
		Actions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "actions",
				Help:      "Number of actions taken in the last run",
			},
			[]string{"kind"},
		),
		Items: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "items",
			Help:      "Number of torrents reported by Transmission in the last run",
		}),
		Warnings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "merge_warnings",
			Help:      "Number of hard link merge warnings in the last run",
		}),
		Success: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "Whether the last run completed without a fatal error",
		}),
		DryRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_dry_run",
			Help:      "Whether the last run was a dry run",
		}),
		Duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the last run in seconds",
		}),
		Timestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}

	m.registry.MustRegister(
		m.Actions,
		m.Items,
		m.Warnings,
		m.Success,
		m.DryRun,
		m.Duration,
		m.Timestamp,
	)
	return m
}

// Registry returns the registry holding the run's metrics.
func (m *Run) Registry() *prometheus.Registry {
	return m.registry
}

// Record sets the metrics from a run summary. runErr is the run's fatal
// error, if any.
func (m *Run) Record(sum *reconcile.Summary, runErr error) {
	for _, kind := range reconcile.ActionKinds {
		m.Actions.WithLabelValues(string(kind)).Set(float64(sum.Count(kind)))
	}
	m.Items.Set(float64(sum.Items))
	m.Warnings.Set(float64(sum.Warnings()))
	m.Success.Set(boolValue(runErr == nil))
	m.DryRun.Set(boolValue(sum.DryRun))
	m.Duration.Set(sum.Duration().Seconds())
	if !sum.Finished.IsZero() {
		m.Timestamp.Set(float64(sum.Finished.UnixNano()) / 1e9)
	}
}

// WriteTextfile writes the metrics to path, replacing it atomically.
func (m *Run) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return perrors.Wrapf(err, perrors.ErrFileAccess, "cannot create metrics directory for %s", path)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return perrors.Wrapf(err, perrors.ErrFileAccess, "cannot write metrics to %s", path)
	}
	return nil
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
