package facetgo

import (
	"log/slog"

	"github.com/hupe1980/facetgo/blobstore"
	"github.com/hupe1980/facetgo/docset"
	"github.com/hupe1980/facetgo/facet"
	"github.com/hupe1980/facetgo/resource"
)

type options struct {
	storeDir         string
	compression      docset.Compression
	mirror           blobstore.BlobStore
	mirrorPrefix     string
	controller       *resource.Controller
	buildWorkers     int
	termWorkers      int
	matcherOpts      []facet.MatcherOption
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures a Manager.
type Option func(*options)

// WithStoreDir persists every build below dir as
// <dir>/<index>/<generation>/<facet>.facet and enables LoadFacets from it.
func WithStoreDir(dir string) Option {
	return func(o *options) {
		o.storeDir = dir
	}
}

// WithCompression sets the compression of persisted document sets.
// Default: docset.CompressionNone.
func WithCompression(c docset.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithMirror publishes every build to store below prefix, write-once.
// Without a store dir, LoadFacets reads from the mirror.
//
// Example with S3:
//
//	bucket, _ := s3.New(ctx, "facets", s3.WithRegion("eu-central-1"))
//	m := facetgo.New(facetgo.WithMirror(bucket, "prod"))
func WithMirror(store blobstore.BlobStore, prefix string) Option {
	return func(o *options) {
		o.mirror = store
		o.mirrorPrefix = prefix
	}
}

// WithResourceController shares build slots and an IO budget with every
// other component using rc.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithBuildWorkers sets how many facet definitions of one index are built
// concurrently.
func WithBuildWorkers(n int) Option {
	return func(o *options) {
		o.buildWorkers = n
	}
}

// WithTermWorkers sets how many terms of one definition are read concurrently.
func WithTermWorkers(n int) Option {
	return func(o *options) {
		o.termWorkers = n
	}
}

// WithRefinedCounts makes refined searches count facet values against the
// refined match set instead of the unrefined one.
func WithRefinedCounts() Option {
	return func(o *options) {
		o.matcherOpts = append(o.matcherOpts, facet.WithRefinedCounts())
	}
}

// WithParallelThreshold sets the number of facet values above which counting
// is spread over workers.
func WithParallelThreshold(n int) Option {
	return func(o *options) {
		o.matcherOpts = append(o.matcherOpts, facet.WithParallelThreshold(n))
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &facetgo.BasicMetricsCollector{}
//	m := facetgo.New(facetgo.WithMetricsCollector(metrics))
//	// ... build and search ...
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, Avg latency: %dns\n", stats.SearchCount, stats.SearchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := facetgo.NewJSONLogger(slog.LevelInfo)
//	m := facetgo.New(facetgo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		compression:      docset.CompressionNone,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
