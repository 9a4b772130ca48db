package memory

import (
	"log/slog"
	"runtime"
)

// DefaultBatchSize is the number of documents analyzed by one worker task.
const DefaultBatchSize = 256

type options struct {
	workers   int
	batchSize int
	logger    *slog.Logger
}

// Option configures an Index.
type Option func(*options)

// WithWorkers sets how many batches are analyzed concurrently.
// Default: runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithBatchSize sets the number of documents per analysis batch.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
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
		workers:   runtime.GOMAXPROCS(0),
		batchSize: DefaultBatchSize,
		logger:    discardLogger,
	}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}
