// Package prommetrics exports facetgo metrics to Prometheus.
package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/facetgo"
)

// Namespace prefixes every metric name.
const Namespace = "facetgo"

var _ facetgo.MetricsCollector = (*Collector)(nil)

// Collector implements facetgo.MetricsCollector with Prometheus histograms
// and counters labelled by index.
type Collector struct {
	buildLatency  *prometheus.HistogramVec
	facetsBuilt   *prometheus.GaugeVec
	searchLatency *prometheus.HistogramVec
	searchHits    *prometheus.HistogramVec
	storeLatency  *prometheus.HistogramVec
}

// New creates a Collector and registers its metrics with reg.
// It panics if a metric is already registered, like prometheus.MustRegister.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		buildLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of facet builds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"index", "status"}),
		facetsBuilt: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "facets",
			Help:      "Number of facets published by the last successful build.",
		}, []string{"index"}),
		searchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of faceted searches.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"index", "status"}),
		searchHits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "search_hits",
			Help:      "Hits returned per faceted search.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000},
		}, []string{"index"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "store_duration_seconds",
			Help:      "Duration of facet persist, publish and load operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"index", "op", "status"}),
	}

	reg.MustRegister(c.buildLatency, c.facetsBuilt, c.searchLatency, c.searchHits, c.storeLatency)
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordBuild implements facetgo.MetricsCollector.
func (c *Collector) RecordBuild(index string, facets int, duration time.Duration, err error) {
	c.buildLatency.WithLabelValues(index, status(err)).Observe(duration.Seconds())
	if err == nil {
		c.facetsBuilt.WithLabelValues(index).Set(float64(facets))
	}
}

// RecordSearch implements facetgo.MetricsCollector.
func (c *Collector) RecordSearch(index string, hits int, duration time.Duration, err error) {
	c.searchLatency.WithLabelValues(index, status(err)).Observe(duration.Seconds())
	if err == nil {
		c.searchHits.WithLabelValues(index).Observe(float64(hits))
	}
}

// RecordStore implements facetgo.MetricsCollector.
func (c *Collector) RecordStore(index, op string, duration time.Duration, err error) {
	c.storeLatency.WithLabelValues(index, op, status(err)).Observe(duration.Seconds())
}
