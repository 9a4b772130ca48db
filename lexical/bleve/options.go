package bleve

import (
	"log/slog"
	"runtime"
)

// DefaultBatchSize is the number of documents committed per bleve batch.
const DefaultBatchSize = 100

type options struct {
	keywordFields []string
	batchSize     int
	workers       int
	logger        *slog.Logger
}

// Option configures an Index.
type Option func(*options)

// WithKeywordFields maps fields to the keyword analyzer so every value is
// indexed as a single term. Facet fields should be keyword fields.
//
// The mapping is fixed when the index is created; it is ignored when an
// existing on-disk index is opened.
func WithKeywordFields(fields ...string) Option {
	return func(o *options) {
		o.keywordFields = append(o.keywordFields, fields...)
	}
}

// WithBatchSize sets the number of documents per bleve batch.
// Default: DefaultBatchSize.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithWorkers sets how many batches are committed concurrently.
// Default: runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		batchSize: DefaultBatchSize,
		workers:   runtime.GOMAXPROCS(0),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}
