// Package metrics provides Prometheus counters for extraction and spatial queries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is a bundle of counters registered on a private registry, so
// several scanners (and tests) never collide on the default registerer.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	HandlesTracked  prometheus.Counter
	HandlesReleased prometheus.Counter
	ReleaseFailures prometheus.Counter

	// RecordsExtracted is labelled by classification.
	RecordsExtracted *prometheus.CounterVec

	// NodeFaults is labelled by the native operation that failed.
	NodeFaults *prometheus.CounterVec

	OcclusionSamples prometheus.Counter
	OcclusionHits    prometheus.Counter
}

// New creates the counter bundle on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		HandlesTracked: f.NewCounter(prometheus.CounterOpts{
			Name: "cadbom_handles_tracked_total",
			Help: "Total number of native handles registered for scoped release",
		}),
		HandlesReleased: f.NewCounter(prometheus.CounterOpts{
			Name: "cadbom_handles_released_total",
			Help: "Total number of native handles released by the tracker",
		}),
		ReleaseFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "cadbom_handle_release_failures_total",
			Help: "Total number of native release calls that returned an error",
		}),
		RecordsExtracted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cadbom_records_extracted_total",
			Help: "Total number of extracted BOM records",
		}, []string{"classification"}),
		NodeFaults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cadbom_node_faults_total",
			Help: "Total number of recovered node-level native faults",
		}, []string{"op"}),
		OcclusionSamples: f.NewCounter(prometheus.CounterOpts{
			Name: "cadbom_occlusion_samples_total",
			Help: "Total number of ray sample points queried",
		}),
		OcclusionHits: f.NewCounter(prometheus.CounterOpts{
			Name: "cadbom_occlusion_hits_accepted_total",
			Help: "Total number of distinct occluders accepted",
		}),
	}
}

func (m *Metrics) Tracked() {
	if m != nil {
		m.HandlesTracked.Inc()
	}
}

func (m *Metrics) Released(err error) {
	if m == nil {
		return
	}
	m.HandlesReleased.Inc()
	if err != nil {
		m.ReleaseFailures.Inc()
	}
}

func (m *Metrics) Record(classification string) {
	if m != nil {
		m.RecordsExtracted.WithLabelValues(classification).Inc()
	}
}

func (m *Metrics) Fault(op string) {
	if m != nil {
		m.NodeFaults.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) Sample() {
	if m != nil {
		m.OcclusionSamples.Inc()
	}
}

func (m *Metrics) Occluder() {
	if m != nil {
		m.OcclusionHits.Inc()
	}
}

// WriteTextfile writes all counters in the Prometheus text format, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
