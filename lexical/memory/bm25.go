package memory

import (
	"cmp"
	"context"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/facetgo/lexical"
)

const (
	k1 = 1.2
	b  = 0.75
)

type posting struct {
	doc   uint32
	count uint32
}

// docTerms records what a document contributed so a replacement can undo it.
type docTerms struct {
	text   map[string]uint32
	fields map[string][]string
}

// Index is an in-memory inverted index with BM25 scoring.
//
// Document ids are assigned densely in indexing order. Replacing a document
// keeps its id.
type Index struct {
	mu     sync.RWMutex
	closed bool
	epoch  uint64

	ids         []string
	byID        map[string]uint32
	docs        []docTerms
	docLengths  []uint32
	totalLength int64

	text   map[string][]posting
	fields map[string]map[string][]posting

	pinned    uint32
	hasPinned bool

	opts options
}

// New creates an empty index.
func New(optFns ...Option) *Index {
	opts := applyOptions(optFns)

	idx := &Index{opts: opts}
	idx.resetLocked()
	return idx
}

// Ensure Index implements lexical.Index
var _ lexical.Index = (*Index)(nil)

func (idx *Index) resetLocked() {
	idx.ids = nil
	idx.byID = make(map[string]uint32)
	idx.docs = nil
	idx.docLengths = nil
	idx.totalLength = 0
	idx.text = make(map[string][]posting)
	idx.fields = make(map[string]map[string][]posting)
	idx.pinned = 0
	idx.hasPinned = false
}

// tokenize lowercases text and splits it at every rune that is neither a
// letter nor a number.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

type analyzed struct {
	id     string
	length uint32
	terms  docTerms
}

func analyze(d lexical.Document) analyzed {
	tokens := tokenize(d.Text)

	tf := make(map[string]uint32, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}

	fields := make(map[string][]string, len(d.Fields))
	for name, values := range d.Fields {
		uniq := slices.Clone(values)
		slices.Sort(uniq)
		fields[name] = slices.Compact(uniq)
	}

	return analyzed{
		id:     d.ID,
		length: uint32(len(tokens)),
		terms:  docTerms{text: tf, fields: fields},
	}
}

// IndexDocuments analyzes docs in batches on a bounded worker pool and then
// applies them in input order.
func (idx *Index) IndexDocuments(ctx context.Context, docs []lexical.Document) error {
	for _, d := range docs {
		if err := d.Validate(); err != nil {
			return err
		}
	}

	out := make([]analyzed, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.opts.workers)

	for start := 0; start < len(docs); start += idx.opts.batchSize {
		end := min(start+idx.opts.batchSize, len(docs))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				out[i] = analyze(docs[i])
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return lexical.ErrClosed
	}

	for _, a := range out {
		idx.addLocked(a)
	}

	idx.opts.logger.Debug("documents indexed", "count", len(docs), "total", len(idx.ids))
	return nil
}

func (idx *Index) addLocked(a analyzed) {
	id, exists := idx.byID[a.id]
	if exists {
		idx.removeLocked(id)
	} else {
		id = uint32(len(idx.ids))
		idx.ids = append(idx.ids, a.id)
		idx.byID[a.id] = id
		idx.docs = append(idx.docs, docTerms{})
		idx.docLengths = append(idx.docLengths, 0)
	}

	idx.docs[id] = a.terms
	idx.docLengths[id] = a.length
	idx.totalLength += int64(a.length)

	for t, count := range a.terms.text {
		idx.text[t] = insertPosting(idx.text[t], posting{doc: id, count: count})
	}

	for name, values := range a.terms.fields {
		terms := idx.fields[name]
		if terms == nil {
			terms = make(map[string][]posting)
			idx.fields[name] = terms
		}
		for _, v := range values {
			terms[v] = insertPosting(terms[v], posting{doc: id, count: 1})
		}
	}
}

func (idx *Index) removeLocked(id uint32) {
	old := idx.docs[id]

	for t := range old.text {
		if ps := removePosting(idx.text[t], id); len(ps) > 0 {
			idx.text[t] = ps
		} else {
			delete(idx.text, t)
		}
	}

	for name, values := range old.fields {
		terms := idx.fields[name]
		for _, v := range values {
			if ps := removePosting(terms[v], id); len(ps) > 0 {
				terms[v] = ps
			} else {
				delete(terms, v)
			}
		}
	}

	idx.totalLength -= int64(idx.docLengths[id])
	idx.docLengths[id] = 0
	idx.docs[id] = docTerms{}
}

func comparePosting(p posting, doc uint32) int {
	return cmp.Compare(p.doc, doc)
}

// insertPosting keeps postings sorted by document id.
func insertPosting(ps []posting, p posting) []posting {
	i, found := slices.BinarySearchFunc(ps, p.doc, comparePosting)
	if found {
		ps[i] = p
		return ps
	}
	return slices.Insert(ps, i, p)
}

func removePosting(ps []posting, doc uint32) []posting {
	i, found := slices.BinarySearchFunc(ps, doc, comparePosting)
	if !found {
		return ps
	}
	return slices.Delete(ps, i, i+1)
}

// Reset drops every document. Readers opened before fail with
// lexical.ErrStaleReader.
func (idx *Index) Reset(_ context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return lexical.ErrClosed
	}

	idx.resetLocked()
	idx.epoch++
	return nil
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.ids)
}

func (idx *Index) computeIDF(df int) float64 {
	// IDF = log(1 + (N - n + 0.5) / (n + 0.5))
	N := float64(len(idx.ids))
	n := float64(df)
	return math.Log(1 + (N-n+0.5)/(n+0.5))
}

// Close releases the index. Further calls fail with lexical.ErrClosed.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.closed = true
	idx.resetLocked()
	return nil
}

var discardLogger = slog.New(slog.DiscardHandler)
