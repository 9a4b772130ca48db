package facetgo

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/facetgo/blobstore"
	"github.com/hupe1980/facetgo/docset"
	"github.com/hupe1980/facetgo/facet"
	"github.com/hupe1980/facetgo/lexical"
	"github.com/hupe1980/facetgo/lexical/bleve"
	"github.com/hupe1980/facetgo/lexical/memory"
)

// Query "alpha" matches {1,2,3}; red is {1,3,5}, blue is {2,4}.
func shopDocs() []lexical.Document {
	return []lexical.Document{
		{ID: "d0", Text: "omega"},
		{ID: "d1", Text: "alpha", Fields: map[string][]string{"color": {"red"}, "size": {"s"}}},
		{ID: "d2", Text: "alpha", Fields: map[string][]string{"color": {"blue"}, "size": {"s"}}},
		{ID: "d3", Text: "alpha", Fields: map[string][]string{"color": {"red"}, "size": {"l"}}},
		{ID: "d4", Text: "omega", Fields: map[string][]string{"color": {"blue"}}},
		{ID: "d5", Text: "omega", Fields: map[string][]string{"color": {"red"}}},
	}
}

func shopDefinitions() []facet.Definition {
	return []facet.Definition{
		{UniqueName: "color", Field: "color", DisplayName: "Color"},
		{UniqueName: "size", Field: "size", DisplayName: "Size"},
	}
}

func loadShop(context.Context) ([]lexical.Document, error) { return shopDocs(), nil }

func shopDefinition(idx lexical.Index) IndexDefinition {
	return IndexDefinition{
		Name:        "shop",
		Index:       idx,
		Definitions: shopDefinitions(),
		Documents:   loadShop,
	}
}

func counts(matches []facet.Match) map[string]uint64 {
	out := make(map[string]uint64, len(matches))
	for _, m := range matches {
		out[string(m.FacetID)+"="+m.Value] = m.Count
	}
	return out
}

func hitIDs(hits []facet.Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids
}

func newShop(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m := New(opts...)
	t.Cleanup(func() { _ = m.Close() })

	require.NoError(t, m.Register(shopDefinition(memory.New())))
	n, err := m.CreateIndexes(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	return m
}

func TestManager_Register(t *testing.T) {
	m := New()
	defer m.Close()

	tests := []struct {
		name string
		def  IndexDefinition
	}{
		{"empty_name", IndexDefinition{Index: memory.New()}},
		{"dot", IndexDefinition{Name: "..", Index: memory.New()}},
		{"separator", IndexDefinition{Name: "a/b", Index: memory.New()}},
		{"no_engine", IndexDefinition{Name: "a"}},
		{"invalid_definition", IndexDefinition{Name: "a", Index: memory.New(), Definitions: []facet.Definition{{UniqueName: "x|y", Field: "f"}}}},
		{"duplicate_facet", IndexDefinition{Name: "a", Index: memory.New(), Definitions: []facet.Definition{
			{UniqueName: "c", Field: "color"}, {UniqueName: "c", Field: "colour"},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, m.Register(tt.def), ErrInvalidArgument)
		})
	}

	require.NoError(t, m.Register(IndexDefinition{Name: "b", Index: memory.New()}))
	require.NoError(t, m.Register(IndexDefinition{Name: "a", Index: memory.New()}))
	assert.ErrorIs(t, m.Register(IndexDefinition{Name: "a", Index: memory.New()}), ErrInvalidArgument)
	assert.Equal(t, []string{"b", "a"}, m.Registered())
}

func TestManager_NotFoundAndNotBuilt(t *testing.T) {
	ctx := context.Background()
	m := New()
	defer m.Close()
	require.NoError(t, m.Register(shopDefinition(memory.New())))

	_, err := m.Facets("nope")
	assert.ErrorIs(t, err, ErrIndexNotFound)

	_, err = m.Facets("shop")
	assert.ErrorIs(t, err, ErrFacetsNotBuilt)

	_, err = m.SearchWithFacets(ctx, "shop", "alpha", 10)
	assert.ErrorIs(t, err, ErrFacetsNotBuilt)

	assert.ErrorIs(t, m.CreateIndex(ctx, "nope"), ErrIndexNotFound)
}

func TestManager_SearchWithFacets(t *testing.T) {
	ctx := context.Background()
	m := newShop(t)

	res, err := m.SearchWithFacets(ctx, "shop", "alpha", 10)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"d1", "d2", "d3"}, hitIDs(res.Hits))
	assert.Equal(t, uint64(3), res.Total)
	assert.Equal(t, map[string]uint64{
		"color=blue": 1,
		"color=red":  2,
		"size=l":     1,
		"size=s":     2,
	}, counts(res.Facets))

	// Facet order, then value order.
	require.Len(t, res.Facets, 4)
	assert.Equal(t, facet.ID("color"), res.Facets[0].FacetID)
	assert.Equal(t, facet.ID("size"), res.Facets[3].FacetID)

	facets, err := m.Facets("shop")
	require.NoError(t, err)
	assert.Len(t, facets, 2)
}

func TestManager_SearchNoMatches(t *testing.T) {
	m := newShop(t)

	res, err := m.SearchWithFacets(context.Background(), "shop", "nothing", 10)
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	for _, f := range res.Facets {
		assert.Zero(t, f.Count)
	}
}

func TestManager_Refinement(t *testing.T) {
	ctx := context.Background()
	red := facet.Refinement{FacetID: "color", Value: "red"}

	t.Run("unrefined_counts", func(t *testing.T) {
		m := newShop(t)

		res, err := m.SearchWithFacets(ctx, "shop", "alpha", 10, red)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"d1", "d3"}, hitIDs(res.Hits))
		assert.Equal(t, uint64(2), res.Total)
		assert.Equal(t, uint64(1), counts(res.Facets)["color=blue"])
		assert.Equal(t, uint64(2), counts(res.Facets)["color=red"])
	})

	t.Run("refined_counts", func(t *testing.T) {
		m := newShop(t, WithRefinedCounts())

		res, err := m.SearchWithFacets(ctx, "shop", "alpha", 10, red)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"d1", "d3"}, hitIDs(res.Hits))
		assert.Equal(t, map[string]uint64{
			"color=blue": 0,
			"color=red":  2,
			"size=l":     1,
			"size=s":     1,
		}, counts(res.Facets))
	})

	t.Run("unknown_value", func(t *testing.T) {
		m := newShop(t)

		res, err := m.SearchWithFacets(ctx, "shop", "alpha", 10, facet.Refinement{FacetID: "color", Value: "green"})
		require.NoError(t, err)
		assert.Empty(t, res.Hits)
		assert.Zero(t, res.Total)
	})

	t.Run("invalid", func(t *testing.T) {
		m := newShop(t)

		_, err := m.SearchWithFacets(ctx, "shop", "alpha", 10, facet.Refinement{FacetID: "brand", Value: "x"})
		assert.ErrorIs(t, err, ErrInvalidArgument)

		_, err = m.SearchWithFacets(ctx, "shop", "alpha", 10, red, red)
		assert.ErrorIs(t, err, ErrInvalidArgument)

		_, err = m.SearchWithFacets(ctx, "shop", "alpha", -1)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestManager_PersistAndReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	m := newShop(t, WithStoreDir(dir), WithCompression(docset.CompressionZSTD))
	require.NoError(t, m.CreateIndex(ctx, "shop"))

	gen, err := m.Generation("shop")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), gen)

	for _, g := range []string{"00000001", "00000002"} {
		_, err := os.Stat(filepath.Join(dir, "shop", g, "color.facet"))
		require.NoError(t, err, g)
	}

	want, err := m.SearchWithFacets(ctx, "shop", "alpha", 10)
	require.NoError(t, err)

	idx := memory.New()
	require.NoError(t, idx.IndexDocuments(ctx, shopDocs()))

	reloaded := New(WithStoreDir(dir))
	defer reloaded.Close()
	require.NoError(t, reloaded.Register(IndexDefinition{Name: "shop", Index: idx, Definitions: shopDefinitions()}))
	require.NoError(t, reloaded.LoadFacets(ctx, "shop"))

	gen, err = reloaded.Generation("shop")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), gen)

	got, err := reloaded.SearchWithFacets(ctx, "shop", "alpha", 10)
	require.NoError(t, err)
	assert.Equal(t, want.Facets, got.Facets)
	assert.Equal(t, want.Total, got.Total)
}

func TestManager_BlevePersistAndReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "shop.bleve")

	idx, err := bleve.New(indexPath, bleve.WithKeywordFields("color", "size"))
	require.NoError(t, err)

	m := New(WithStoreDir(filepath.Join(dir, "facets")))
	require.NoError(t, m.Register(shopDefinition(idx)))
	_, err = m.CreateIndexes(ctx)
	require.NoError(t, err)

	want, err := m.SearchWithFacets(ctx, "shop", "alpha", 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), counts(want.Facets)["color=red"])
	assert.Equal(t, uint64(1), counts(want.Facets)["color=blue"])
	require.NoError(t, m.Close())

	reopened, err := bleve.New(indexPath)
	require.NoError(t, err)

	reloaded := New(WithStoreDir(filepath.Join(dir, "facets")))
	defer reloaded.Close()
	require.NoError(t, reloaded.Register(IndexDefinition{Name: "shop", Index: reopened, Definitions: shopDefinitions()}))
	require.NoError(t, reloaded.LoadFacets(ctx, "shop"))

	got, err := reloaded.SearchWithFacets(ctx, "shop", "alpha", 10)
	require.NoError(t, err)
	assert.Equal(t, want.Facets, got.Facets)
	assert.ElementsMatch(t, hitIDs(want.Hits), hitIDs(got.Hits))
}

func TestManager_Mirror(t *testing.T) {
	ctx := context.Background()
	mirror := blobstore.NewMemoryStore()

	newShop(t, WithMirror(mirror, "prod"))

	names, err := mirror.List(ctx, "prod/shop/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"prod/shop/00000001/COMMIT",
		"prod/shop/00000001/color.facet",
		"prod/shop/00000001/size.facet",
	}, names)

	// An uncommitted later generation is ignored.
	require.NoError(t, mirror.Put(ctx, "prod/shop/00000002/color.facet", []byte("garbage")))

	idx := memory.New()
	require.NoError(t, idx.IndexDocuments(ctx, shopDocs()))

	reloaded := New(WithMirror(mirror, "prod"))
	defer reloaded.Close()
	require.NoError(t, reloaded.Register(IndexDefinition{Name: "shop", Index: idx, Definitions: shopDefinitions()}))
	require.NoError(t, reloaded.LoadFacets(ctx, "shop"))

	gen, err := reloaded.Generation("shop")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)

	// The next build skips past the uncommitted generation.
	require.NoError(t, reloaded.CreateIndex(ctx, "shop"))
	gen, err = reloaded.Generation("shop")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), gen)
}

func TestManager_LoadFacetsFailures(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	newShop(t, WithStoreDir(dir))

	t.Run("no_store", func(t *testing.T) {
		m := New()
		defer m.Close()
		require.NoError(t, m.Register(IndexDefinition{Name: "shop", Index: memory.New()}))
		assert.ErrorIs(t, m.LoadFacets(ctx, "shop"), ErrInvalidArgument)
	})

	t.Run("no_generation", func(t *testing.T) {
		m := New(WithStoreDir(t.TempDir()))
		defer m.Close()
		require.NoError(t, m.Register(IndexDefinition{Name: "shop", Index: memory.New()}))
		assert.ErrorIs(t, m.LoadFacets(ctx, "shop"), ErrFacetsNotBuilt)
	})

	t.Run("document_count_changed", func(t *testing.T) {
		idx := memory.New()
		require.NoError(t, idx.IndexDocuments(ctx, shopDocs()[:4]))

		m := New(WithStoreDir(dir))
		defer m.Close()
		require.NoError(t, m.Register(IndexDefinition{Name: "shop", Index: idx, Definitions: shopDefinitions()}))
		assert.ErrorIs(t, m.LoadFacets(ctx, "shop"), ErrStaleFacets)

		_, err := m.Facets("shop")
		assert.ErrorIs(t, err, ErrFacetsNotBuilt)
	})

	t.Run("definition_missing", func(t *testing.T) {
		idx := memory.New()
		require.NoError(t, idx.IndexDocuments(ctx, shopDocs()))

		m := New(WithStoreDir(dir))
		defer m.Close()
		require.NoError(t, m.Register(IndexDefinition{Name: "shop", Index: idx, Definitions: []facet.Definition{
			{UniqueName: "brand", Field: "brand"},
		}}))
		assert.ErrorIs(t, m.LoadFacets(ctx, "shop"), ErrStaleFacets)
	})

	t.Run("corrupt_file", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(root, "shop", "00000001"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, "shop", "00000001", "color.facet"), []byte("bad\n"), 0o644))

		m := New(WithStoreDir(root))
		defer m.Close()
		require.NoError(t, m.Register(IndexDefinition{Name: "shop", Index: memory.New(), Definitions: shopDefinitions()}))
		assert.ErrorIs(t, m.LoadFacets(ctx, "shop"), ErrCorruptFacet)
	})
}

func TestManager_FailedBuildKeepsPreviousFacets(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}

	fail := false
	boom := errors.New("source unavailable")

	m := New(WithMetricsCollector(metrics))
	defer m.Close()
	require.NoError(t, m.Register(IndexDefinition{
		Name:        "shop",
		Index:       memory.New(),
		Definitions: shopDefinitions(),
		Documents: func(ctx context.Context) ([]lexical.Document, error) {
			if fail {
				return nil, boom
			}
			return shopDocs(), nil
		},
	}))

	require.NoError(t, m.CreateIndex(ctx, "shop"))

	fail = true
	err := m.CreateIndex(ctx, "shop")
	require.ErrorIs(t, err, boom)

	var ie *IndexError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "shop", ie.Name)
	assert.Equal(t, "build", ie.Op)

	gen, err := m.Generation("shop")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)

	res, err := m.SearchWithFacets(ctx, "shop", "alpha", 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), counts(res.Facets)["color=red"])

	stats := metrics.GetStats()
	assert.Equal(t, int64(2), stats.BuildCount)
	assert.Equal(t, int64(1), stats.BuildErrors)
	assert.Equal(t, int64(2), stats.FacetsBuilt)
	assert.Equal(t, int64(1), stats.SearchCount)
}

func reversedShopDocs() []lexical.Document {
	docs := shopDocs()
	slices.Reverse(docs)
	return docs
}

var alphaCounts = map[string]uint64{"color=blue": 1, "color=red": 2, "size=l": 1, "size=s": 2}

var errMirrorDown = errors.New("mirror unavailable")

type flakyMirror struct {
	*blobstore.MemoryStore
	down atomic.Bool
}

func (f *flakyMirror) Put(ctx context.Context, name string, data []byte) error {
	if f.down.Load() {
		return errMirrorDown
	}
	return f.MemoryStore.Put(ctx, name, data)
}

func (f *flakyMirror) PutIfAbsent(ctx context.Context, name string, data []byte) error {
	if f.down.Load() {
		return errMirrorDown
	}
	return f.MemoryStore.PutIfAbsent(ctx, name, data)
}

func TestManager_FailedReindexWithdrawsFacets(t *testing.T) {
	ctx := context.Background()
	mirror := &flakyMirror{MemoryStore: blobstore.NewMemoryStore()}

	var reversed atomic.Bool
	m := New(WithMirror(mirror, "prod"))
	defer m.Close()
	require.NoError(t, m.Register(IndexDefinition{
		Name:        "shop",
		Index:       memory.New(),
		Definitions: shopDefinitions(),
		Documents: func(context.Context) ([]lexical.Document, error) {
			if reversed.Load() {
				return reversedShopDocs(), nil
			}
			return shopDocs(), nil
		},
	}))

	require.NoError(t, m.CreateIndex(ctx, "shop"))
	res, err := m.SearchWithFacets(ctx, "shop", "alpha", 10)
	require.NoError(t, err)
	assert.Equal(t, alphaCounts, counts(res.Facets))

	// The engine is renumbered before the mirror refuses the new generation.
	reversed.Store(true)
	mirror.down.Store(true)

	err = m.CreateIndex(ctx, "shop")
	require.ErrorIs(t, err, errMirrorDown)
	var ie *IndexError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "publish", ie.Op)

	_, err = m.SearchWithFacets(ctx, "shop", "alpha", 10)
	require.ErrorIs(t, err, ErrFacetsNotBuilt)
	_, err = m.Generation("shop")
	require.ErrorIs(t, err, ErrFacetsNotBuilt)

	mirror.down.Store(false)
	require.NoError(t, m.CreateIndex(ctx, "shop"))

	res, err = m.SearchWithFacets(ctx, "shop", "alpha", 10)
	require.NoError(t, err)
	assert.Equal(t, alphaCounts, counts(res.Facets))
	assert.Equal(t, uint64(3), res.Total)
}

func TestManager_ConcurrentSearchDuringRebuild(t *testing.T) {
	ctx := context.Background()

	var rebuilds atomic.Int64
	m := New(WithStoreDir(t.TempDir()))
	defer m.Close()
	require.NoError(t, m.Register(IndexDefinition{
		Name:        "shop",
		Index:       memory.New(),
		Definitions: shopDefinitions(),
		Documents: func(context.Context) ([]lexical.Document, error) {
			if rebuilds.Add(1)%2 == 0 {
				return reversedShopDocs(), nil
			}
			return shopDocs(), nil
		},
	}))
	require.NoError(t, m.CreateIndex(ctx, "shop"))

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	var served atomic.Int64

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				res, err := m.SearchWithFacets(ctx, "shop", "alpha", 5)
				if errors.Is(err, ErrFacetsNotBuilt) {
					continue
				}
				if err != nil {
					errs <- err
					return
				}
				served.Add(1)
				if got := counts(res.Facets); !maps.Equal(alphaCounts, got) {
					errs <- fmt.Errorf("counts %v, want %v", got, alphaCounts)
					return
				}
			}
		}()
	}
	for range 4 {
		require.NoError(t, m.CreateIndex(ctx, "shop"))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}

	gen, err := m.Generation("shop")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), gen)

	res, err := m.SearchWithFacets(ctx, "shop", "alpha", 5)
	require.NoError(t, err)
	assert.Equal(t, alphaCounts, counts(res.Facets))
	t.Logf("%d searches answered during rebuilds", served.Load())
}

func TestManager_Close(t *testing.T) {
	ctx := context.Background()
	m := New()
	require.NoError(t, m.Register(shopDefinition(memory.New())))

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	assert.ErrorIs(t, m.CreateIndex(ctx, "shop"), ErrClosed)
	assert.ErrorIs(t, m.Register(IndexDefinition{Name: "x", Index: memory.New()}), ErrClosed)
	_, err := m.CreateIndexes(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = m.SearchWithFacets(ctx, "shop", "", 1)
	assert.ErrorIs(t, err, ErrClosed)
}
