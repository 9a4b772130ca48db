package bleve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/facetgo/docset"
	"github.com/hupe1980/facetgo/facet"
	"github.com/hupe1980/facetgo/lexical"
)

// Index adapts a bleve index to lexical.Index.
//
// Bleve numbers documents internally per snapshot. OpenReader derives a dense
// numbering from the snapshot it opens and keeps it for Search.
type Index struct {
	mu      sync.RWMutex
	idx     bleve.Index
	path    string
	mapping mapping.IndexMapping
	closed  bool
	epoch   uint64

	pinned    map[string]uint32 // external id -> dense id
	pinnedIDs []string          // dense id -> external id
	universe  uint32

	opts options
}

// Ensure Index implements lexical.Index
var _ lexical.Index = (*Index)(nil)

// New opens the bleve index at path, creating it if it does not exist.
// An empty path creates an in-memory index.
func New(path string, optFns ...Option) (*Index, error) {
	opts := applyOptions(optFns)
	m := buildMapping(opts.keywordFields)

	idx, err := open(path, m)
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}

	return &Index{
		idx:     idx,
		path:    path,
		mapping: m,
		pinned:  map[string]uint32{},
		opts:    opts,
	}, nil
}

func buildMapping(keywordFields []string) *mapping.IndexMappingImpl {
	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(lexical.TextField, bleve.NewTextFieldMapping())
	for _, f := range keywordFields {
		doc.AddFieldMappingsAt(f, bleve.NewKeywordFieldMapping())
	}

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

func open(path string, m mapping.IndexMapping) (bleve.Index, error) {
	if path == "" {
		return bleve.NewMemOnly(m)
	}

	idx, err := bleve.Open(path)
	if err == nil {
		return idx, nil
	}
	if !errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		return nil, err
	}
	return bleve.New(path, m)
}

func body(d lexical.Document) map[string]any {
	out := make(map[string]any, len(d.Fields)+1)
	if d.Text != "" {
		out[lexical.TextField] = d.Text
	}
	for name, values := range d.Fields {
		out[name] = values
	}
	return out
}

// IndexDocuments commits docs in batches on a bounded worker pool. When docs
// repeats an ID the last copy wins.
func (i *Index) IndexDocuments(ctx context.Context, docs []lexical.Document) error {
	last := make(map[string]int, len(docs))
	for j, d := range docs {
		if err := d.Validate(); err != nil {
			return err
		}
		last[d.ID] = j
	}

	unique := make([]lexical.Document, 0, len(last))
	for j, d := range docs {
		if last[d.ID] == j {
			unique = append(unique, d)
		}
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.closed {
		return lexical.ErrClosed
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.opts.workers)

	for start := 0; start < len(unique); start += i.opts.batchSize {
		chunk := unique[start:min(start+i.opts.batchSize, len(unique))]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			batch := i.idx.NewBatch()
			for _, d := range chunk {
				if err := batch.Index(d.ID, body(d)); err != nil {
					return fmt.Errorf("index document %q: %w", d.ID, err)
				}
			}
			if err := i.idx.Batch(batch); err != nil {
				return fmt.Errorf("commit batch: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	i.opts.logger.Debug("documents indexed", "count", len(unique), "path", i.path)
	return nil
}

// Reset drops every document by recreating the index. Readers opened before
// fail with lexical.ErrStaleReader.
func (i *Index) Reset(_ context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return lexical.ErrClosed
	}

	if err := i.idx.Close(); err != nil {
		return fmt.Errorf("close bleve index: %w", err)
	}
	if i.path != "" {
		if err := os.RemoveAll(i.path); err != nil {
			return fmt.Errorf("remove bleve index: %w", err)
		}
	}

	idx, err := open(i.path, i.mapping)
	if err != nil {
		i.closed = true
		return fmt.Errorf("recreate bleve index: %w", err)
	}

	i.idx = idx
	i.epoch++
	i.pinned = map[string]uint32{}
	i.pinnedIDs = nil
	i.universe = 0
	return nil
}

// DocCount returns the number of indexed documents.
func (i *Index) DocCount() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.closed {
		return 0, lexical.ErrClosed
	}
	return i.idx.DocCount()
}

// Search runs q as a bleve query string; the empty query matches all
// documents.
//
// Matches covers the documents in the numbering pinned by the last
// OpenReader. Hits may include later documents unless within is set.
//
// Matches are collected by an unscored pass over the query's searcher;
// only the page of at most limit hits is scored and sorted.
func (i *Index) Search(ctx context.Context, q string, limit int, within *docset.Set) (*lexical.Result, error) {
	if limit < 0 {
		return nil, &facet.ArgumentError{Name: "limit", Reason: "negative limit"}
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.closed {
		return nil, lexical.ErrClosed
	}

	var bq query.Query
	if strings.TrimSpace(q) == "" {
		bq = bleve.NewMatchAllQuery()
	} else {
		bq = bleve.NewQueryStringQuery(q)
	}

	res := &lexical.Result{
		Hits:    []facet.Hit{},
		Matches: docset.New(i.universe),
	}

	total, err := i.collectMatches(ctx, bq, within, res.Matches)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}
	res.Total = total

	if limit == 0 || total == 0 {
		return res, nil
	}

	page := bq
	if within != nil {
		ids := make([]string, 0, within.Cardinality())
		for dense := range within.Iterator() {
			if int(dense) < len(i.pinnedIDs) {
				ids = append(ids, i.pinnedIDs[dense])
			}
		}
		// A zero boost keeps the restriction out of the score.
		restrict := bleve.NewDocIDQuery(ids)
		restrict.SetBoost(0)
		page = bleve.NewConjunctionQuery(bq, restrict)
	}

	sr, err := i.idx.SearchInContext(ctx, bleve.NewSearchRequestOptions(page, limit, 0, false))
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}

	res.Hits = make([]facet.Hit, 0, len(sr.Hits))
	for _, hit := range sr.Hits {
		res.Hits = append(res.Hits, facet.Hit{ID: hit.ID, Score: hit.Score})
	}
	return res, nil
}

// collectMatches adds every pinned match of bq to matches and returns the
// number of matches eligible as hits.
func (i *Index) collectMatches(ctx context.Context, bq query.Query, within, matches *docset.Set) (uint64, error) {
	adv, err := i.idx.Advanced()
	if err != nil {
		return 0, fmt.Errorf("advanced index: %w", err)
	}
	ir, err := adv.Reader()
	if err != nil {
		return 0, fmt.Errorf("open index reader: %w", err)
	}
	defer ir.Close()

	s, err := bq.Searcher(ctx, ir, i.idx.Mapping(), search.SearcherOptions{Score: "none"})
	if err != nil {
		return 0, err
	}
	defer s.Close()

	sctx := &search.SearchContext{
		DocumentMatchPool: search.NewDocumentMatchPool(s.DocumentMatchPoolSize(), 0),
	}

	var total uint64
	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}

		dm, err := s.Next(sctx)
		if err != nil {
			return 0, err
		}
		if dm == nil {
			break
		}

		ext, err := ir.ExternalID(dm.IndexInternalID)
		sctx.DocumentMatchPool.Put(dm)
		if err != nil {
			return 0, fmt.Errorf("resolve document id: %w", err)
		}

		dense, ok := i.pinned[ext]
		if ok {
			_ = matches.Add(dense)
		}
		if within != nil && (!ok || !within.Contains(dense)) {
			continue
		}
		total++
	}
	return total, nil
}

// Close closes the underlying bleve index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil
	}
	i.closed = true
	return i.idx.Close()
}
