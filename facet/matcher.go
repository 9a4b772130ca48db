package facet

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/facetgo/docset"
)

// CountMode selects the base set refinement counts are computed against.
type CountMode int

const (
	// CountUnrefined counts against the query's full matching set.
	CountUnrefined CountMode = iota
	// CountRefined counts against the query matches narrowed by the refinement.
	CountRefined
)

func (m CountMode) String() string {
	switch m {
	case CountUnrefined:
		return "unrefined"
	case CountRefined:
		return "refined"
	default:
		return "unknown"
	}
}

// DefaultParallelThreshold is the number of values above which matching is
// split across workers.
const DefaultParallelThreshold = 4096

type matcherOptions struct {
	parallelThreshold int
	workers           int
	countMode         CountMode
}

// MatcherOption configures a Matcher.
type MatcherOption func(*matcherOptions)

// WithParallelThreshold sets the value count above which matching runs in parallel.
func WithParallelThreshold(n int) MatcherOption {
	return func(o *matcherOptions) {
		if n > 0 {
			o.parallelThreshold = n
		}
	}
}

// WithMatchWorkers sets the number of parallel matching workers.
// Default: runtime.GOMAXPROCS(0).
func WithMatchWorkers(n int) MatcherOption {
	return func(o *matcherOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithRefinedCounts makes GetRefinedMatches count against the refined set.
func WithRefinedCounts() MatcherOption {
	return func(o *matcherOptions) {
		o.countMode = CountRefined
	}
}

// Matcher computes facet value distributions for query results.
// A Matcher holds no per-query state and is safe for concurrent use.
type Matcher struct {
	opts matcherOptions
}

// NewMatcher creates a matcher.
func NewMatcher(optFns ...MatcherOption) *Matcher {
	opts := matcherOptions{
		parallelThreshold: DefaultParallelThreshold,
		workers:           runtime.GOMAXPROCS(0),
		countMode:         CountUnrefined,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Matcher{opts: opts}
}

// CountMode returns the mode GetRefinedMatches uses.
func (m *Matcher) CountMode() CountMode { return m.opts.countMode }

// GetAllMatches returns one Match per (facet, value) in facet order, then value
// order. Count is the size of queryMatches AND the value's set.
//
// Neither queryMatches nor the facets are modified. A nil or empty
// queryMatches yields zero counts. Nil facets are skipped.
func (m *Matcher) GetAllMatches(facets []*Facet, queryMatches *docset.Set) []Match {
	total := 0
	for _, f := range facets {
		if f != nil {
			total += len(f.Values)
		}
	}

	out := make([]Match, total)
	sets := make([]*docset.Set, total)

	k := 0
	for _, f := range facets {
		if f == nil {
			continue
		}
		for _, v := range f.Values {
			out[k] = Match{FacetID: f.ID, Value: v.Raw}
			sets[k] = v.Docs
			k++
		}
	}

	if queryMatches.IsEmpty() {
		return out
	}

	if total <= m.opts.parallelThreshold || m.opts.workers <= 1 {
		countRange(out, sets, queryMatches)
		return out
	}

	chunk := (total + m.opts.workers - 1) / m.opts.workers

	var g errgroup.Group
	g.SetLimit(m.opts.workers)

	for lo := 0; lo < total; lo += chunk {
		hi := min(lo+chunk, total)
		g.Go(func() error {
			countRange(out[lo:hi], sets[lo:hi], queryMatches)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func countRange(out []Match, sets []*docset.Set, q *docset.Set) {
	for i, s := range sets {
		out[i].Count = q.AndCardinality(s)
	}
}

// GetRefinedMatches narrows queryMatches to the documents carrying the
// refinement's value.
//
// bound is queryMatches AND the refinement set; callers use it to limit the
// hits they return. An unknown value gives an empty bound. The counts are
// computed according to the matcher's CountMode.
func (m *Matcher) GetRefinedMatches(facets []*Facet, queryMatches *docset.Set, ref Refinement) ([]Match, *docset.Set, error) {
	var target *Facet
	for _, f := range facets {
		if f != nil && f.ID == ref.FacetID {
			target = f
			break
		}
	}
	if target == nil {
		return nil, nil, argError("refinement", "unknown facet %q", ref.FacetID)
	}

	var bound *docset.Set
	if set, ok := target.Lookup(ref.Value); ok {
		bound = queryMatches.And(set)
	} else {
		bound = docset.New(queryMatches.Universe())
	}

	base := queryMatches
	if m.opts.countMode == CountRefined {
		base = bound
	}

	return m.GetAllMatches(facets, base), bound, nil
}
