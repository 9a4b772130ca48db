package facet

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/facetgo/docset"
)

func buildColor(t *testing.T) []*Facet {
	t.Helper()
	facets, err := NewBuilder(colorReader()).CreateFacets(context.Background(), []Definition{colorDef})
	require.NoError(t, err)
	return facets
}

func querySet(t *testing.T, universe uint32, ids ...uint32) *docset.Set {
	t.Helper()
	s, err := docset.FromSlice(universe, ids)
	require.NoError(t, err)
	return s
}

func TestMatcher_GetAllMatches(t *testing.T) {
	facets := buildColor(t)
	q := querySet(t, 8, 1, 2, 3)

	got := NewMatcher().GetAllMatches(facets, q)
	assert.Equal(t, []Match{
		{FacetID: "color", Value: "red", Count: 2},
		{FacetID: "color", Value: "blue", Count: 1},
	}, got)

	// Neither the query nor the facets changed.
	assert.Equal(t, []uint32{1, 2, 3}, q.ToSlice())
	assert.Equal(t, []uint32{1, 3, 5}, facets[0].Values[0].Docs.ToSlice())
}

func TestMatcher_Idempotent(t *testing.T) {
	facets := buildColor(t)
	q := querySet(t, 8, 1, 2, 3, 4)
	m := NewMatcher()

	assert.Equal(t, m.GetAllMatches(facets, q), m.GetAllMatches(facets, q))
}

func TestMatcher_EmptyQuery(t *testing.T) {
	facets := buildColor(t)

	for _, q := range []*docset.Set{nil, docset.New(8)} {
		got := NewMatcher().GetAllMatches(facets, q)
		require.Len(t, got, 2)
		for _, m := range got {
			assert.Zero(t, m.Count)
		}
	}
}

func TestMatcher_SkipsNilFacets(t *testing.T) {
	facets := append([]*Facet{nil}, buildColor(t)...)
	facets = append(facets, nil)
	q := querySet(t, 8, 1, 2, 3)
	m := NewMatcher()

	assert.Equal(t, []Match{
		{FacetID: "color", Value: "red", Count: 2},
		{FacetID: "color", Value: "blue", Count: 1},
	}, m.GetAllMatches(facets, q))

	got, bound, err := m.GetRefinedMatches(facets, q, Refinement{FacetID: "color", Value: "blue"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, []uint32{2}, bound.ToSlice())

	_, _, err = m.GetRefinedMatches([]*Facet{nil}, q, Refinement{FacetID: "color", Value: "red"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMatcher_FacetOrderPreserved(t *testing.T) {
	r := colorReader().add("size", "s", 1).add("size", "m", 2, 3)
	facets, err := NewBuilder(r).CreateFacets(context.Background(), []Definition{
		{UniqueName: "size", Field: "size"},
		colorDef,
	})
	require.NoError(t, err)

	got := NewMatcher().GetAllMatches(facets, querySet(t, 8, 1, 2, 3))
	assert.Equal(t, []Match{
		{FacetID: "size", Value: "s", Count: 1},
		{FacetID: "size", Value: "m", Count: 2},
		{FacetID: "color", Value: "red", Count: 2},
		{FacetID: "color", Value: "blue", Count: 1},
	}, got)
}

func TestMatcher_ParallelMatchesSequential(t *testing.T) {
	const universe = 10_000
	r := newFakeReader(universe)
	for v := 0; v < 300; v++ {
		var ids []uint32
		for d := v; d < universe; d += v + 1 {
			ids = append(ids, uint32(d))
		}
		r.add("n", fmt.Sprintf("%d", v), ids...)
	}
	facets, err := NewBuilder(r, WithTermWorkers(4)).CreateFacets(context.Background(), []Definition{{UniqueName: "n", Field: "n"}})
	require.NoError(t, err)

	q := docset.New(universe)
	for d := uint32(0); d < universe; d += 3 {
		require.NoError(t, q.Add(d))
	}

	seq := NewMatcher(WithParallelThreshold(1 << 20)).GetAllMatches(facets, q)
	par := NewMatcher(WithParallelThreshold(16), WithMatchWorkers(7)).GetAllMatches(facets, q)
	assert.Equal(t, seq, par)

	for i, m := range seq {
		assert.Equal(t, facets[0].Values[i].Docs.AndCardinality(q), m.Count)
	}
}

func TestMatcher_GetRefinedMatches(t *testing.T) {
	r := colorReader().add("size", "s", 1, 2).add("size", "l", 3, 4, 5)
	facets, err := NewBuilder(r).CreateFacets(context.Background(), []Definition{
		colorDef,
		{UniqueName: "size", Field: "size"},
	})
	require.NoError(t, err)
	q := querySet(t, 8, 1, 2, 3, 4)
	ref := Refinement{FacetID: "color", Value: "red"}

	t.Run("unrefined_counts", func(t *testing.T) {
		m := NewMatcher()
		assert.Equal(t, CountUnrefined, m.CountMode())

		got, bound, err := m.GetRefinedMatches(facets, q, ref)
		require.NoError(t, err)
		assert.Equal(t, []uint32{1, 3}, bound.ToSlice())
		assert.Equal(t, m.GetAllMatches(facets, q), got)
		assert.Equal(t, []uint32{1, 2, 3, 4}, q.ToSlice())
	})

	t.Run("refined_counts", func(t *testing.T) {
		m := NewMatcher(WithRefinedCounts())

		got, bound, err := m.GetRefinedMatches(facets, q, ref)
		require.NoError(t, err)
		assert.Equal(t, []uint32{1, 3}, bound.ToSlice())
		assert.Equal(t, []Match{
			{FacetID: "color", Value: "red", Count: 2},
			{FacetID: "color", Value: "blue", Count: 0},
			{FacetID: "size", Value: "s", Count: 1},
			{FacetID: "size", Value: "l", Count: 1},
		}, got)
	})

	t.Run("unknown_value", func(t *testing.T) {
		_, bound, err := NewMatcher().GetRefinedMatches(facets, q, Refinement{FacetID: "color", Value: "green"})
		require.NoError(t, err)
		assert.True(t, bound.IsEmpty())
		assert.Equal(t, uint32(8), bound.Universe())
	})

	t.Run("unknown_facet", func(t *testing.T) {
		_, _, err := NewMatcher().GetRefinedMatches(facets, q, Refinement{FacetID: "shape", Value: "round"})
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}
