package facetgo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unique"

	"github.com/hupe1980/facetgo/docset"
	"github.com/hupe1980/facetgo/facet"
	"github.com/hupe1980/facetgo/lexical"
	"github.com/hupe1980/facetgo/persistence"
)

// IndexDefinition registers a search index and the facets built from it.
type IndexDefinition struct {
	// Name identifies the index. It is also a directory name below the store dir.
	Name string
	// Index is the search engine. The Manager closes it on Close.
	Index lexical.Index
	// Definitions lists the facets to build.
	Definitions []facet.Definition
	// Documents, when set, supplies the documents a rebuild indexes after
	// resetting Index. When nil, a rebuild reads Index as it is.
	Documents func(ctx context.Context) ([]lexical.Document, error)
}

type registration struct {
	def     IndexDefinition
	buildMu sync.Mutex
	current atomic.Pointer[published]

	// engineMu is held for writing while the engine is reset and reindexed,
	// and for reading by searches.
	engineMu sync.RWMutex
}

type published struct {
	facets     []*facet.Facet
	generation uint64
}

// Manager keeps the facets of registered indexes and answers faceted
// searches against them.
//
// Builds of one index are serialized; builds of different indexes and all
// searches may run concurrently. A build publishes its facets only after
// they were persisted and mirrored. A build that reindexes documents
// withdraws the previous generation before the engine is reset, so from
// then on searches fail with ErrFacetsNotBuilt until the new generation is
// published. Facets are never counted against a numbering they were not
// built from.
type Manager struct {
	mu     sync.RWMutex
	regs   map[unique.Handle[string]]*registration
	order  []string
	closed bool

	matcher   *facet.Matcher
	store     *persistence.Store
	publisher *persistence.Publisher
	opts      options
}

// New creates a Manager without registrations.
func New(optFns ...Option) *Manager {
	opts := applyOptions(optFns)

	popts := []persistence.Option{
		persistence.WithCompression(opts.compression),
		persistence.WithController(opts.controller),
		persistence.WithLogger(opts.logger.Logger),
	}

	m := &Manager{
		regs:    make(map[unique.Handle[string]]*registration),
		matcher: facet.NewMatcher(opts.matcherOpts...),
		store:   persistence.NewStore(popts...),
		opts:    opts,
	}
	if opts.mirror != nil {
		m.publisher = persistence.NewPublisher(opts.mirror, popts...)
	}
	return m
}

func validateName(name string) error {
	switch {
	case name == "":
		return &facet.ArgumentError{Name: "name", Reason: "empty index name"}
	case name == "." || name == "..":
		return &facet.ArgumentError{Name: "name", Reason: fmt.Sprintf("invalid index name %q", name)}
	case strings.ContainsAny(name, `/\`):
		return &facet.ArgumentError{Name: "name", Reason: fmt.Sprintf("index name %q contains a path separator", name)}
	}
	return nil
}

// Register adds an index. Names are unique; facet unique names are unique
// within one index.
func (m *Manager) Register(def IndexDefinition) error {
	if err := validateName(def.Name); err != nil {
		return err
	}
	if def.Index == nil {
		return &facet.ArgumentError{Name: "index", Reason: fmt.Sprintf("index %q has no engine", def.Name)}
	}

	seen := make(map[string]struct{}, len(def.Definitions))
	for _, d := range def.Definitions {
		if err := d.Validate(); err != nil {
			return err
		}
		if _, dup := seen[d.UniqueName]; dup {
			return &facet.ArgumentError{
				Name:   "definition",
				Reason: fmt.Sprintf("index %q defines facet %q twice", def.Name, d.UniqueName),
			}
		}
		seen[d.UniqueName] = struct{}{}
	}
	def.Definitions = slices.Clone(def.Definitions)

	key := unique.Make(def.Name)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, ok := m.regs[key]; ok {
		return &facet.ArgumentError{Name: "name", Reason: fmt.Sprintf("index %q already registered", def.Name)}
	}

	m.regs[key] = &registration{def: def}
	m.order = append(m.order, def.Name)
	return nil
}

// Registered returns the registered index names in registration order.
func (m *Manager) Registered() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order)
}

func (m *Manager) lookup(name string) (*registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	reg, ok := m.regs[unique.Make(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrIndexNotFound, name)
	}
	return reg, nil
}

func (m *Manager) currentFacets(name string) (*registration, *published, error) {
	reg, err := m.lookup(name)
	if err != nil {
		return nil, nil, err
	}
	p := reg.current.Load()
	if p == nil {
		return nil, nil, fmt.Errorf("%w: %q", ErrFacetsNotBuilt, name)
	}
	return reg, p, nil
}

// Facets returns the published facets of an index in definition order.
func (m *Manager) Facets(name string) ([]*facet.Facet, error) {
	_, p, err := m.currentFacets(name)
	if err != nil {
		return nil, err
	}
	return slices.Clone(p.facets), nil
}

// Generation returns the generation of the published facets of an index.
func (m *Manager) Generation(name string) (uint64, error) {
	_, p, err := m.currentFacets(name)
	if err != nil {
		return 0, err
	}
	return p.generation, nil
}

// CreateIndexes rebuilds every registered index in registration order and
// returns how many succeeded. It stops at the first failure.
func (m *Manager) CreateIndexes(ctx context.Context) (int, error) {
	m.mu.RLock()
	names := slices.Clone(m.order)
	closed := m.closed
	m.mu.RUnlock()

	if closed {
		return 0, ErrClosed
	}

	built := 0
	for _, name := range names {
		if err := m.CreateIndex(ctx, name); err != nil {
			return built, err
		}
		built++
	}
	return built, nil
}

// CreateIndex rebuilds the facets of one index: reindex when the definition
// supplies documents, build through a scoped reader, persist, mirror, then
// publish.
//
// When the definition supplies Documents, the previous facets are withdrawn
// before the engine is reset and stay withdrawn if a later step fails.
// Without Documents the engine is untouched and a failed rebuild keeps the
// previous facets published.
func (m *Manager) CreateIndex(ctx context.Context, name string) (err error) {
	reg, err := m.lookup(name)
	if err != nil {
		return err
	}

	reg.buildMu.Lock()
	defer reg.buildMu.Unlock()

	start := time.Now()
	var facets []*facet.Facet
	defer func() {
		m.opts.metricsCollector.RecordBuild(name, len(facets), time.Since(start), err)
		m.opts.logger.LogBuild(ctx, name, len(facets), time.Since(start), err)
	}()

	facets, err = m.build(ctx, reg)
	if err != nil {
		return indexError(name, "build", err)
	}

	gen, err := m.nextGeneration(ctx, name)
	if err != nil {
		return indexError(name, "build", err)
	}
	if err := m.persist(ctx, name, gen, facets); err != nil {
		return indexError(name, "persist", err)
	}
	if err := m.publish(ctx, name, gen, facets); err != nil {
		return indexError(name, "publish", err)
	}

	reg.current.Store(&published{facets: facets, generation: gen})
	return nil
}

func (m *Manager) build(ctx context.Context, reg *registration) ([]*facet.Facet, error) {
	def := reg.def

	if def.Documents != nil {
		docs, err := def.Documents(ctx)
		if err != nil {
			return nil, fmt.Errorf("load documents: %w", err)
		}
		if err := m.reindex(ctx, reg, docs); err != nil {
			return nil, err
		}
	}

	builderOpts := []facet.BuilderOption{
		facet.WithBuildWorkers(m.opts.buildWorkers),
		facet.WithTermWorkers(m.opts.termWorkers),
		facet.WithController(m.opts.controller),
		facet.WithBuilderLogger(m.opts.logger.WithIndex(def.Name).Logger),
	}

	var facets []*facet.Facet
	err := lexical.WithReader(ctx, def.Index, func(r lexical.Reader) error {
		var err error
		facets, err = facet.NewBuilder(r, builderOpts...).CreateFacets(ctx, def.Definitions)
		return err
	})
	if err != nil {
		return nil, err
	}
	return facets, nil
}

// reindex replaces the engine's documents. It waits for running searches
// and unpublishes the current facets, whose document numbering the reset
// invalidates.
func (m *Manager) reindex(ctx context.Context, reg *registration, docs []lexical.Document) error {
	reg.engineMu.Lock()
	defer reg.engineMu.Unlock()

	if reg.current.Swap(nil) != nil {
		m.opts.logger.InfoContext(ctx, "facets withdrawn for reindex", "index", reg.def.Name)
	}

	if err := reg.def.Index.Reset(ctx); err != nil {
		return fmt.Errorf("reset index: %w", err)
	}
	if err := reg.def.Index.IndexDocuments(ctx, docs); err != nil {
		return fmt.Errorf("index documents: %w", err)
	}
	return nil
}

// persist writes a generation into a staging directory and renames it into
// place once every facet is saved.
func (m *Manager) persist(ctx context.Context, name string, gen uint64, facets []*facet.Facet) (err error) {
	if m.opts.storeDir == "" {
		return nil
	}

	final := filepath.Join(m.localRoot(name), generationName(gen))
	staging := final + partialSuffix

	start := time.Now()
	defer func() {
		m.opts.metricsCollector.RecordStore(name, "persist", time.Since(start), err)
		m.opts.logger.LogStore(ctx, "persist", name, final, err)
	}()

	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create generation: %w", err)
	}

	for _, f := range facets {
		if _, err := m.store.Save(ctx, f, staging); err != nil {
			_ = os.RemoveAll(staging)
			return err
		}
	}

	if err := os.Rename(staging, final); err != nil {
		_ = os.RemoveAll(staging)
		return fmt.Errorf("publish generation: %w", err)
	}
	return nil
}

func (m *Manager) publish(ctx context.Context, name string, gen uint64, facets []*facet.Facet) (err error) {
	if m.publisher == nil {
		return nil
	}

	prefix := path.Join(m.mirrorRoot(name), generationName(gen))

	start := time.Now()
	defer func() {
		m.opts.metricsCollector.RecordStore(name, "publish", time.Since(start), err)
		m.opts.logger.LogStore(ctx, "publish", name, prefix, err)
	}()

	for _, f := range facets {
		if _, err := m.publisher.Publish(ctx, f, prefix); err != nil {
			return err
		}
	}
	return m.publisher.Commit(ctx, prefix)
}

// LoadFacets publishes the latest persisted generation of an index instead
// of rebuilding it. The store dir is preferred over the mirror.
//
// The facets must cover every definition and fit the engine's current
// document count; otherwise LoadFacets fails with ErrStaleFacets.
func (m *Manager) LoadFacets(ctx context.Context, name string) (err error) {
	reg, err := m.lookup(name)
	if err != nil {
		return err
	}

	reg.buildMu.Lock()
	defer reg.buildMu.Unlock()

	var (
		facets   []*facet.Facet
		gen      uint64
		location string
	)

	start := time.Now()
	defer func() {
		m.opts.metricsCollector.RecordStore(name, "load", time.Since(start), err)
		m.opts.logger.LogStore(ctx, "load", name, location, err)
	}()

	switch {
	case m.opts.storeDir != "":
		var ok bool
		gen, ok, err = latestLocal(m.localRoot(name))
		if err != nil {
			return indexError(name, "load", err)
		}
		if !ok {
			return fmt.Errorf("%w: %q has no persisted generation", ErrFacetsNotBuilt, name)
		}
		location = filepath.Join(m.localRoot(name), generationName(gen))
		facets, err = m.store.LoadDir(ctx, location)
	case m.publisher != nil:
		var ok bool
		gen, ok, err = m.latestCommitted(ctx, name)
		if err != nil {
			return indexError(name, "load", err)
		}
		if !ok {
			return fmt.Errorf("%w: %q has no published generation", ErrFacetsNotBuilt, name)
		}
		location = path.Join(m.mirrorRoot(name), generationName(gen))
		facets, err = m.publisher.FetchAll(ctx, location)
	default:
		return &facet.ArgumentError{Name: "store", Reason: "no store dir or mirror configured"}
	}
	if err != nil {
		return indexError(name, "load", err)
	}

	ordered, err := arrange(reg.def.Definitions, facets)
	if err != nil {
		return indexError(name, "load", err)
	}

	// Opening a reader pins the numbering the loaded facets are counted in.
	err = lexical.WithReader(ctx, reg.def.Index, func(r lexical.Reader) error {
		return checkUniverse(ordered, r.MaxDocumentID())
	})
	if err != nil {
		return indexError(name, "load", err)
	}

	reg.current.Store(&published{facets: ordered, generation: gen})
	return nil
}

// arrange orders loaded facets like defs and checks they were built from the
// same fields.
func arrange(defs []facet.Definition, loaded []*facet.Facet) ([]*facet.Facet, error) {
	byName := make(map[string]*facet.Facet, len(loaded))
	for _, f := range loaded {
		byName[f.UniqueName] = f
	}

	out := make([]*facet.Facet, len(defs))
	for i, d := range defs {
		f, ok := byName[d.UniqueName]
		if !ok {
			return nil, fmt.Errorf("%w: facet %q missing", ErrStaleFacets, d.UniqueName)
		}
		if f.Field != d.Field {
			return nil, fmt.Errorf("%w: facet %q was built from field %q, want %q", ErrStaleFacets, d.UniqueName, f.Field, d.Field)
		}
		out[i] = f
	}
	return out, nil
}

func checkUniverse(facets []*facet.Facet, maxDoc uint32) error {
	for _, f := range facets {
		if f.Len() == 0 {
			continue
		}
		if u := f.Values[0].Docs.Universe(); u != maxDoc {
			return fmt.Errorf("%w: facet %q covers %d documents, index has %d", ErrStaleFacets, f.UniqueName, u, maxDoc)
		}
	}
	return nil
}

// SearchWithFacets runs query on an index and counts every facet value over
// the matches. At most one refinement is supported; with one, hits and Total
// are limited to documents carrying the refined value.
func (m *Manager) SearchWithFacets(ctx context.Context, name, query string, limit int, refinements ...facet.Refinement) (res *facet.SearchResult, err error) {
	start := time.Now()
	defer func() {
		hits := 0
		if res != nil {
			hits = len(res.Hits)
		}
		m.opts.metricsCollector.RecordSearch(name, hits, time.Since(start), err)
		m.opts.logger.LogSearch(ctx, name, query, hits, err)
	}()

	if len(refinements) > 1 {
		return nil, &facet.ArgumentError{
			Name:   "refinements",
			Reason: fmt.Sprintf("at most one refinement is supported, got %d", len(refinements)),
		}
	}
	if limit < 0 {
		return nil, &facet.ArgumentError{Name: "limit", Reason: "negative limit"}
	}

	reg, err := m.lookup(name)
	if err != nil {
		return nil, err
	}

	reg.engineMu.RLock()
	defer reg.engineMu.RUnlock()

	p := reg.current.Load()
	if p == nil {
		return nil, fmt.Errorf("%w: %q", ErrFacetsNotBuilt, name)
	}

	if len(refinements) == 0 {
		lr, err := reg.def.Index.Search(ctx, query, limit, nil)
		if err != nil {
			return nil, indexError(name, "search", err)
		}
		return &facet.SearchResult{
			Hits:   lr.Hits,
			Total:  lr.Total,
			Facets: m.matcher.GetAllMatches(p.facets, lr.Matches),
		}, nil
	}

	ref := refinements[0]

	within, err := refinementSet(p.facets, ref)
	if err != nil {
		return nil, err
	}

	lr, err := reg.def.Index.Search(ctx, query, limit, within)
	if err != nil {
		return nil, indexError(name, "search", err)
	}

	matches, _, err := m.matcher.GetRefinedMatches(p.facets, lr.Matches, ref)
	if err != nil {
		return nil, err
	}

	return &facet.SearchResult{Hits: lr.Hits, Total: lr.Total, Facets: matches}, nil
}

func refinementSet(facets []*facet.Facet, ref facet.Refinement) (*docset.Set, error) {
	for _, f := range facets {
		if f.ID != ref.FacetID {
			continue
		}
		if set, ok := f.Lookup(ref.Value); ok {
			return set, nil
		}
		return docset.New(0), nil
	}
	return nil, &facet.ArgumentError{Name: "refinement", Reason: fmt.Sprintf("unknown facet %q", ref.FacetID)}
}

// Close closes every registered index. Builds in flight finish first.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true

	regs := make([]*registration, 0, len(m.order))
	for _, name := range m.order {
		regs = append(regs, m.regs[unique.Make(name)])
	}
	m.mu.Unlock()

	var errs []error
	for _, reg := range regs {
		reg.buildMu.Lock()
		if err := reg.def.Index.Close(); err != nil {
			errs = append(errs, indexError(reg.def.Name, "close", err))
		}
		reg.buildMu.Unlock()
	}
	return errors.Join(errs...)
}
