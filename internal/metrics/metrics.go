// Package metrics exposes pairing and vault counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the pairing and vault services report to.
type Recorder interface {
	RecordResolution(kind string)
	RecordPairConflict()
	RecordMemoryStored()
	RecordMemoryOpened()
	RecordOpenFailure(reason string)
}

// Collector records to Prometheus.
type Collector struct {
	resolutions  *prometheus.CounterVec
	conflicts    prometheus.Counter
	stored       prometheus.Counter
	opened       prometheus.Counter
	openFailures *prometheus.CounterVec
}

// NewCollector builds a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pairvault_scan_resolutions_total",
			Help: "Token scans by pairing outcome.",
		}, []string{"resolution"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pairvault_pair_conflicts_total",
			Help: "Lost races on a conditional pair write.",
		}),
		stored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pairvault_memories_stored_total",
			Help: "Sealed memories persisted.",
		}),
		opened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pairvault_memories_opened_total",
			Help: "Memories successfully decrypted on a device.",
		}),
		openFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pairvault_memory_open_failures_total",
			Help: "Failed memory opens by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(c.resolutions, c.conflicts, c.stored, c.opened, c.openFailures)
	return c
}

func (c *Collector) RecordResolution(kind string) { c.resolutions.WithLabelValues(kind).Inc() }
func (c *Collector) RecordPairConflict()          { c.conflicts.Inc() }
func (c *Collector) RecordMemoryStored()          { c.stored.Inc() }
func (c *Collector) RecordMemoryOpened()          { c.opened.Inc() }
func (c *Collector) RecordOpenFailure(reason string) {
	c.openFailures.WithLabelValues(reason).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordResolution(string)  {}
func (Nop) RecordPairConflict()      {}
func (Nop) RecordMemoryStored()      {}
func (Nop) RecordMemoryOpened()      {}
func (Nop) RecordOpenFailure(string) {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
