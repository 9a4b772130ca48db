package bleve

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/facetgo/docset"
	"github.com/hupe1980/facetgo/facet"
	"github.com/hupe1980/facetgo/lexical"
)

func catalog() []lexical.Document {
	return []lexical.Document{
		{ID: "d0", Text: "plain cotton shirt", Fields: map[string][]string{"color": {"white"}}},
		{ID: "d1", Text: "red wool sweater", Fields: map[string][]string{"color": {"red"}, "size": {"m"}}},
		{ID: "d2", Text: "blue wool scarf", Fields: map[string][]string{"color": {"blue"}}},
		{ID: "d3", Text: "red cotton shirt", Fields: map[string][]string{"color": {"red"}, "size": {"s", "m"}}},
		{ID: "d4", Text: "blue denim jacket", Fields: map[string][]string{"color": {"blue"}}},
		{ID: "d5", Text: "red silk tie", Fields: map[string][]string{"color": {"Dark Red"}}},
	}
}

func newCatalog(t *testing.T, path string) *Index {
	t.Helper()
	idx, err := New(path, WithKeywordFields("color", "size"), WithBatchSize(2), WithWorkers(3))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	require.NoError(t, idx.IndexDocuments(context.Background(), catalog()))
	return idx
}

func hitIDs(hits []facet.Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids
}

func TestIndex_KeywordTerms(t *testing.T) {
	ctx := context.Background()
	idx := newCatalog(t, "")

	err := lexical.WithReader(ctx, idx, func(r lexical.Reader) error {
		assert.Equal(t, uint32(6), r.MaxDocumentID())

		terms, err := r.EnumerateTerms(ctx, "color")
		require.NoError(t, err)
		assert.Equal(t, []string{"Dark Red", "blue", "red", "white"}, terms)

		terms, err = r.EnumerateTerms(ctx, "size")
		require.NoError(t, err)
		assert.Equal(t, []string{"m", "s"}, terms)

		ids, err := r.DocumentsForTerm(ctx, "size", "m")
		require.NoError(t, err)
		assert.Len(t, ids, 2)

		ids, err = r.DocumentsForTerm(ctx, "color", "purple")
		require.NoError(t, err)
		assert.Empty(t, ids)
		return nil
	})
	require.NoError(t, err)
}

func TestIndex_NumberingMatchesSearch(t *testing.T) {
	ctx := context.Background()
	idx := newCatalog(t, "")

	var red []uint32
	err := lexical.WithReader(ctx, idx, func(r lexical.Reader) error {
		var err error
		red, err = r.DocumentsForTerm(ctx, "color", "red")
		return err
	})
	require.NoError(t, err)

	res, err := idx.Search(ctx, "color:red", 10, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"d1", "d3"}, hitIDs(res.Hits))
	assert.ElementsMatch(t, red, res.Matches.ToSlice())
	assert.Equal(t, uint32(6), res.Matches.Universe())
}

func TestIndex_SearchTextAndLimit(t *testing.T) {
	ctx := context.Background()
	idx := newCatalog(t, "")
	r, err := idx.OpenReader(ctx)
	require.NoError(t, err)
	defer r.Close()

	res, err := idx.Search(ctx, "wool", 10, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"d1", "d2"}, hitIDs(res.Hits))
	assert.Equal(t, uint64(2), res.Total)

	res, err = idx.Search(ctx, "", 4, nil)
	require.NoError(t, err)
	assert.Len(t, res.Hits, 4)
	assert.Equal(t, uint64(6), res.Total)
	assert.Equal(t, uint64(6), res.Matches.Cardinality())

	_, err = idx.Search(ctx, "wool", -1, nil)
	assert.ErrorIs(t, err, facet.ErrInvalidArgument)
}

func TestIndex_SearchWithin(t *testing.T) {
	ctx := context.Background()
	idx := newCatalog(t, "")

	var blue []uint32
	err := lexical.WithReader(ctx, idx, func(r lexical.Reader) error {
		var err error
		blue, err = r.DocumentsForTerm(ctx, "color", "blue")
		return err
	})
	require.NoError(t, err)

	within, err := docset.FromSlice(6, blue)
	require.NoError(t, err)

	res, err := idx.Search(ctx, "wool", 10, within)
	require.NoError(t, err)
	assert.Equal(t, []string{"d2"}, hitIDs(res.Hits))
	assert.Equal(t, uint64(1), res.Total)
	assert.Equal(t, uint64(2), res.Matches.Cardinality())
}

func TestIndex_SearchPageWithin(t *testing.T) {
	ctx := context.Background()
	idx := newCatalog(t, "")

	var red []uint32
	err := lexical.WithReader(ctx, idx, func(r lexical.Reader) error {
		var err error
		red, err = r.DocumentsForTerm(ctx, "color", "red")
		return err
	})
	require.NoError(t, err)

	all, err := idx.Search(ctx, "shirt sweater", 10, nil)
	require.NoError(t, err)
	require.Len(t, all.Hits, 3)

	var bestRed string
	for _, h := range all.Hits {
		if h.ID == "d1" || h.ID == "d3" {
			bestRed = h.ID
			break
		}
	}

	within, err := docset.FromSlice(6, red)
	require.NoError(t, err)

	res, err := idx.Search(ctx, "shirt sweater", 1, within)
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, uint64(2), res.Total)
	assert.Equal(t, uint64(3), res.Matches.Cardinality())
	assert.Equal(t, bestRed, res.Hits[0].ID)

	res, err = idx.Search(ctx, "shirt sweater", 0, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.Equal(t, uint64(3), res.Total)
}

func TestIndex_FacetsEndToEnd(t *testing.T) {
	ctx := context.Background()
	idx := newCatalog(t, "")

	var facets []*facet.Facet
	err := lexical.WithReader(ctx, idx, func(r lexical.Reader) error {
		var err error
		facets, err = facet.NewBuilder(r).CreateFacets(ctx, []facet.Definition{
			{UniqueName: "color", Field: "color", DisplayName: "Color"},
		})
		return err
	})
	require.NoError(t, err)

	res, err := idx.Search(ctx, "wool shirt", 10, nil)
	require.NoError(t, err)

	counts := map[string]uint64{}
	for _, m := range facet.NewMatcher().GetAllMatches(facets, res.Matches) {
		counts[m.Value] = m.Count
	}
	// d0 white, d1 red, d2 blue, d3 red.
	assert.Equal(t, map[string]uint64{"Dark Red": 0, "blue": 1, "red": 2, "white": 1}, counts)
}

func TestIndex_ReplaceAndReset(t *testing.T) {
	ctx := context.Background()
	idx := newCatalog(t, "")

	require.NoError(t, idx.IndexDocuments(ctx, []lexical.Document{
		{ID: "d1", Fields: map[string][]string{"color": {"green"}}},
		{ID: "d1", Fields: map[string][]string{"color": {"white"}}},
	}))

	n, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(6), n)

	res, err := idx.Search(ctx, "color:white", 10, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"d0", "d1"}, hitIDs(res.Hits))

	r, err := idx.OpenReader(ctx)
	require.NoError(t, err)

	require.NoError(t, idx.Reset(ctx))
	n, err = idx.DocCount()
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = r.EnumerateTerms(ctx, "color")
	assert.ErrorIs(t, err, lexical.ErrStaleReader)
	_ = r.Close()
}

func TestIndex_OnDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.bleve")

	idx, err := New(path, WithKeywordFields("color"))
	require.NoError(t, err)
	require.NoError(t, idx.IndexDocuments(ctx, catalog()))
	require.NoError(t, idx.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(6), n)

	err = lexical.WithReader(ctx, reopened, func(r lexical.Reader) error {
		terms, err := r.EnumerateTerms(ctx, "color")
		require.NoError(t, err)
		assert.Contains(t, terms, "Dark Red")
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, reopened.Reset(ctx))
	n, err = reopened.DocCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIndex_Closed(t *testing.T) {
	ctx := context.Background()
	idx, err := New("")
	require.NoError(t, err)
	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())

	_, err = idx.OpenReader(ctx)
	assert.ErrorIs(t, err, lexical.ErrClosed)
	_, err = idx.Search(ctx, "", 1, nil)
	assert.ErrorIs(t, err, lexical.ErrClosed)
	assert.ErrorIs(t, idx.IndexDocuments(ctx, catalog()), lexical.ErrClosed)
}

func TestIndex_InvalidDocument(t *testing.T) {
	idx, err := New("")
	require.NoError(t, err)
	defer idx.Close()

	err = idx.IndexDocuments(context.Background(), []lexical.Document{{ID: ""}})
	assert.ErrorIs(t, err, lexical.ErrInvalidDocument)
}
