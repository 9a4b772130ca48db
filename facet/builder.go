package facet

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/facetgo/docset"
	"github.com/hupe1980/facetgo/resource"
)

// IndexReader is the read capability a build needs from the search engine.
//
// Document ids are dense and lie in [0, MaxDocumentID()).
type IndexReader interface {
	// EnumerateTerms returns the distinct terms of field in the engine's order.
	EnumerateTerms(ctx context.Context, field string) ([]string, error)
	// DocumentsForTerm returns the ids of the documents carrying term in field.
	DocumentsForTerm(ctx context.Context, field, term string) ([]uint32, error)
	// MaxDocumentID returns the exclusive upper bound of document ids.
	MaxDocumentID() uint32
}

type builderOptions struct {
	buildWorkers int
	termWorkers  int
	controller   *resource.Controller
	logger       *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*builderOptions)

// WithBuildWorkers sets how many definitions are built concurrently.
// Default: runtime.GOMAXPROCS(0).
func WithBuildWorkers(n int) BuilderOption {
	return func(o *builderOptions) {
		if n > 0 {
			o.buildWorkers = n
		}
	}
}

// WithTermWorkers sets how many terms of one definition are materialized
// concurrently. Default: 1.
func WithTermWorkers(n int) BuilderOption {
	return func(o *builderOptions) {
		if n > 0 {
			o.termWorkers = n
		}
	}
}

// WithController bounds build slots across every builder sharing rc.
func WithController(rc *resource.Controller) BuilderOption {
	return func(o *builderOptions) {
		o.controller = rc
	}
}

// WithBuilderLogger sets the logger used for build progress.
func WithBuilderLogger(l *slog.Logger) BuilderOption {
	return func(o *builderOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Builder creates facets from one open index reader.
// It never modifies the index.
type Builder struct {
	reader IndexReader
	opts   builderOptions
}

// NewBuilder creates a builder over reader.
func NewBuilder(reader IndexReader, optFns ...BuilderOption) *Builder {
	opts := builderOptions{
		buildWorkers: runtime.GOMAXPROCS(0),
		termWorkers:  1,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Builder{reader: reader, opts: opts}
}

// CreateFacets builds one facet per definition, in definition order.
//
// Every definition is validated before any work starts. If any definition
// fails, the whole batch is discarded and only the error is returned.
func (b *Builder) CreateFacets(ctx context.Context, defs []Definition) ([]*Facet, error) {
	if b.reader == nil {
		return nil, argError("reader", "nil index reader")
	}
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
	}

	universe := b.reader.MaxDocumentID()
	out := make([]*Facet, len(defs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.buildWorkers)

	for i, def := range defs {
		g.Go(func() error {
			if err := b.opts.controller.AcquireBuild(gctx); err != nil {
				return err
			}
			defer b.opts.controller.ReleaseBuild()

			f, err := b.buildFacet(gctx, def, universe)
			if err != nil {
				return err
			}
			out[i] = f
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		b.opts.logger.Warn("facet build aborted", "definitions", len(defs), "error", err)
		return nil, err
	}

	return out, nil
}

func (b *Builder) buildFacet(ctx context.Context, def Definition, universe uint32) (*Facet, error) {
	terms, err := b.reader.EnumerateTerms(ctx, def.Field)
	if err != nil {
		return nil, &IndexAccessError{Field: def.Field, Err: err}
	}

	values := make([]Value, len(terms))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.termWorkers)

	for j, term := range terms {
		g.Go(func() error {
			ids, err := b.reader.DocumentsForTerm(gctx, def.Field, term)
			if err != nil {
				return &IndexAccessError{Field: def.Field, Term: term, Err: err}
			}

			set, err := docset.FromSlice(universe, ids)
			if err != nil {
				return &IndexAccessError{Field: def.Field, Term: term, Err: err}
			}
			set.Optimize()

			values[j] = Value{Raw: term, Docs: set}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	f, err := New(def, values)
	if err != nil {
		return nil, &IndexAccessError{Field: def.Field, Err: err}
	}

	b.opts.logger.Debug("facet built", "facet", def.UniqueName, "field", def.Field, "values", len(values))
	return f, nil
}
