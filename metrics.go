package facetgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; package
// prommetrics provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordBuild is called after each facet build of an index.
	// facets is the number of facets built, err is nil if successful.
	RecordBuild(index string, facets int, duration time.Duration, err error)

	// RecordSearch is called after each faceted search.
	// hits is the number of hits returned.
	RecordSearch(index string, hits int, duration time.Duration, err error)

	// RecordStore is called after facets of an index were persisted,
	// published or loaded. op names the operation.
	RecordStore(index, op string, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(string, int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordSearch(string, int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordStore(string, string, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount       atomic.Int64
	BuildErrors      atomic.Int64
	BuildTotalNanos  atomic.Int64
	FacetsBuilt      atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
	StoreCount       atomic.Int64
	StoreErrors      atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(_ string, facets int, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
		return
	}
	b.FacetsBuilt.Add(int64(facets))
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ string, _ int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordStore implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStore(_, _ string, _ time.Duration, err error) {
	b.StoreCount.Add(1)
	if err != nil {
		b.StoreErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BuildCount:     b.BuildCount.Load(),
		BuildErrors:    b.BuildErrors.Load(),
		BuildAvgNanos:  avg(b.BuildTotalNanos.Load(), b.BuildCount.Load()),
		FacetsBuilt:    b.FacetsBuilt.Load(),
		SearchCount:    b.SearchCount.Load(),
		SearchErrors:   b.SearchErrors.Load(),
		SearchAvgNanos: avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		StoreCount:     b.StoreCount.Load(),
		StoreErrors:    b.StoreErrors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount     int64
	BuildErrors    int64
	BuildAvgNanos  int64
	FacetsBuilt    int64
	SearchCount    int64
	SearchErrors   int64
	SearchAvgNanos int64
	StoreCount     int64
	StoreErrors    int64
}
