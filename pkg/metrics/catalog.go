package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CatalogMetrics records catalog reload and listener activity.
type CatalogMetrics struct {
	reloadDuration *prometheus.HistogramVec
	listenerEvents *prometheus.CounterVec
	staleDiscards  *prometheus.CounterVec
	prunedImages   prometheus.Counter
}

// NewCatalogMetrics registers the catalog metrics on the provided registerer.
func NewCatalogMetrics(reg prometheus.Registerer) *CatalogMetrics {
	if reg == nil {
		return &CatalogMetrics{}
	}
	reloadDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_reload_duration_seconds",
		Help:    "Duration of catalog merges per region.",
		Buckets: prometheus.DefBuckets,
	}, []string{"region"})
	listenerEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_listener_events",
		Help: "Document listener events applied to the catalog.",
	}, []string{"region", "type"})
	staleDiscards := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_stale_discards",
		Help: "Listener updates discarded because the region changed.",
	}, []string{"region"})
	prunedImages := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_pruned_images",
		Help: "Image URLs removed after failing a reachability check.",
	})
	reg.MustRegister(reloadDuration, listenerEvents, staleDiscards, prunedImages)
	return &CatalogMetrics{
		reloadDuration: reloadDuration,
		listenerEvents: listenerEvents,
		staleDiscards:  staleDiscards,
		prunedImages:   prunedImages,
	}
}

// ObserveReload records the duration of one region merge.
func (c *CatalogMetrics) ObserveReload(region string, duration time.Duration) {
	if c == nil || c.reloadDuration == nil {
		return
	}
	c.reloadDuration.WithLabelValues(normalizeLabel(region)).Observe(duration.Seconds())
}

// IncListenerEvent counts one applied listener event.
func (c *CatalogMetrics) IncListenerEvent(region, eventType string) {
	if c == nil || c.listenerEvents == nil {
		return
	}
	c.listenerEvents.WithLabelValues(normalizeLabel(region), normalizeLabel(eventType)).Inc()
}

// IncStaleDiscard counts one update thrown away after a region switch.
func (c *CatalogMetrics) IncStaleDiscard(region string) {
	if c == nil || c.staleDiscards == nil {
		return
	}
	c.staleDiscards.WithLabelValues(normalizeLabel(region)).Inc()
}

// IncPrunedImage counts one dead image link dropped from a store.
func (c *CatalogMetrics) IncPrunedImage() {
	if c == nil || c.prunedImages == nil {
		return
	}
	c.prunedImages.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
