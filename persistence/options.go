package persistence

import (
	"log/slog"

	"github.com/hupe1980/facetgo/docset"
	"github.com/hupe1980/facetgo/resource"
)

type options struct {
	compression docset.Compression
	controller  *resource.Controller
	logger      *slog.Logger
}

// Option configures a Store or a Publisher.
type Option func(*options)

// WithCompression sets the compression applied to serialized document sets.
// Default: docset.CompressionNone.
func WithCompression(c docset.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithController rate-limits file IO through rc.
func WithController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
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
		compression: docset.CompressionNone,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}
