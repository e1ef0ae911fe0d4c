// Package metrics collects per-run Prometheus metrics for a sync run and can
// export them in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "regsync"

// Metrics holds the collectors for one run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	plugins       *prometheus.CounterVec
	downloadBytes prometheus.Counter
	indexEntries  prometheus.Gauge
	indexRecorded prometheus.Gauge
	lastRun       prometheus.Gauge
	runDuration   prometheus.Gauge
}

// New creates Metrics backed by a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		plugins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugins_total",
			Help:      "Plugins processed in the last run by outcome.",
		}, []string{"outcome"}),
		downloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_download_bytes_total",
			Help:      "Bytes downloaded for artifact hashing in the last run.",
		}),
		indexEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_entries",
			Help:      "Entries written to the plugin index.",
		}),
		indexRecorded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_recorded",
			Help:      "1 if the last run recorded an index change.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
	}
	m.registry.MustRegister(m.plugins, m.downloadBytes, m.indexEntries, m.indexRecorded, m.lastRun, m.runDuration)
	return m
}

// ObservePlugin counts one plugin with the given outcome.
func (m *Metrics) ObservePlugin(outcome string) {
	if m == nil {
		return
	}
	m.plugins.WithLabelValues(outcome).Inc()
}

// ObserveDownload adds n downloaded bytes.
func (m *Metrics) ObserveDownload(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.downloadBytes.Add(float64(n))
}

// ObserveIndex records the index size and whether a change was recorded.
func (m *Metrics) ObserveIndex(entries int, recorded bool) {
	if m == nil {
		return
	}
	m.indexEntries.Set(float64(entries))
	if recorded {
		m.indexRecorded.Set(1)
	} else {
		m.indexRecorded.Set(0)
	}
}

// ObserveRun records the finish time and duration of a run that began at start.
func (m *Metrics) ObserveRun(start, end time.Time) {
	if m == nil {
		return
	}
	m.lastRun.Set(float64(end.Unix()))
	m.runDuration.Set(end.Sub(start).Seconds())
}

// Gatherer exposes the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
