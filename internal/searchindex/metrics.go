package searchindex

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reload outcomes reported by the reloads counter.
const (
	ReloadLoaded    = "loaded"
	ReloadUnchanged = "unchanged"
	ReloadFailed    = "failed"
)

// Metrics holds the Prometheus collectors of the index service.
type Metrics struct {
	Queries *prometheus.CounterVec
	Reloads *prometheus.CounterVec
	Records prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Queries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sitesearch",
			Name:      "queries_total",
			Help:      "Search queries served, by search mode.",
		}, []string{"mode"}),
		Reloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sitesearch",
			Name:      "reloads_total",
			Help:      "Search index payload reloads, by outcome.",
		}, []string{"outcome"}),
		Records: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "sitesearch",
			Name:      "records",
			Help:      "Page records in the current search index.",
		}),
	}
}
