package persistence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/hupe1980/facetgo/blobstore"
	"github.com/hupe1980/facetgo/facet"
	"github.com/hupe1980/facetgo/resource"
)

// CommitMarker is the blob Commit writes below a completed prefix.
const CommitMarker = "COMMIT"

// Publisher mirrors facet files to a blob store.
//
// Publication is write-once. Stores implementing blobstore.WriteOnce refuse
// overwrites atomically; for other stores the existence check and the write
// are two steps, so concurrent publishers of one name must coordinate
// externally (see s3.DDBGuardStore).
type Publisher struct {
	store blobstore.BlobStore
	opts  options
}

// NewPublisher creates a publisher over store.
func NewPublisher(store blobstore.BlobStore, optFns ...Option) *Publisher {
	return &Publisher{store: store, opts: applyOptions(optFns)}
}

// Publish uploads f as <prefix>/<UniqueName>.facet and returns the blob name.
func (p *Publisher) Publish(ctx context.Context, f *facet.Facet, prefix string) (string, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, f, p.opts.compression); err != nil {
		return "", err
	}

	name := path.Join(prefix, FileName(f.UniqueName))

	if err := p.opts.controller.AcquireIO(ctx, buf.Len()); err != nil {
		return "", err
	}

	if err := p.put(ctx, name, buf.Bytes()); err != nil {
		if errors.Is(err, blobstore.ErrExists) {
			return "", &facet.DuplicateFacetError{Path: name, Err: err}
		}
		return "", fmt.Errorf("publish facet %s: %w", name, err)
	}

	p.opts.logger.Debug("facet published", "facet", f.UniqueName, "blob", name, "bytes", buf.Len())
	return name, nil
}

func (p *Publisher) put(ctx context.Context, name string, data []byte) error {
	if wo, ok := p.store.(blobstore.WriteOnce); ok {
		return wo.PutIfAbsent(ctx, name, data)
	}

	exists, err := blobstore.Exists(ctx, p.store, name)
	if err != nil {
		return err
	}
	if exists {
		return blobstore.ErrExists
	}
	return p.store.Put(ctx, name, data)
}

// Commit marks every facet below prefix as published. Readers should only
// fetch committed prefixes. Committing twice fails with
// *facet.DuplicateFacetError.
func (p *Publisher) Commit(ctx context.Context, prefix string) error {
	name := path.Join(prefix, CommitMarker)

	if err := p.put(ctx, name, []byte{}); err != nil {
		if errors.Is(err, blobstore.ErrExists) {
			return &facet.DuplicateFacetError{Path: name, Err: err}
		}
		return fmt.Errorf("commit %s: %w", prefix, err)
	}
	return nil
}

// Committed reports whether prefix was committed.
func (p *Publisher) Committed(ctx context.Context, prefix string) (bool, error) {
	return blobstore.Exists(ctx, p.store, path.Join(prefix, CommitMarker))
}

// Fetch downloads and decodes the facet blob name.
func (p *Publisher) Fetch(ctx context.Context, name string) (*facet.Facet, error) {
	blob, err := p.store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open facet blob %s: %w", name, err)
	}
	defer blob.Close()

	data, err := blobstore.ReadAll(ctx, blob)
	if err != nil {
		return nil, fmt.Errorf("read facet blob %s: %w", name, err)
	}

	r := resource.NewRateLimitedReader(ctx, bytes.NewReader(data), p.opts.controller)
	f, err := Decode(r)
	if err != nil {
		return nil, withPath(err, name)
	}
	return f, nil
}

// FetchAll fetches every facet blob directly below prefix, in name order.
func (p *Publisher) FetchAll(ctx context.Context, prefix string) ([]*facet.Facet, error) {
	dir := strings.TrimSuffix(prefix, "/") + "/"
	if prefix == "" {
		dir = ""
	}

	names, err := p.store.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("list facet blobs: %w", err)
	}

	var facets []*facet.Facet
	for _, name := range names {
		rest := strings.TrimPrefix(name, dir)
		if strings.Contains(rest, "/") || !strings.HasSuffix(rest, Extension) {
			continue
		}
		f, err := p.Fetch(ctx, name)
		if err != nil {
			return nil, err
		}
		facets = append(facets, f)
	}
	return facets, nil
}

// Generations returns the generation directories below prefix in ascending
// order. A generation is the first path element after prefix.
func (p *Publisher) Generations(ctx context.Context, prefix string) ([]string, error) {
	dir := strings.TrimSuffix(prefix, "/") + "/"

	names, err := p.store.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("list facet blobs: %w", err)
	}

	var gens []string
	for _, name := range names {
		rest := strings.TrimPrefix(name, dir)
		gen, _, ok := strings.Cut(rest, "/")
		if !ok {
			continue
		}
		if len(gens) == 0 || gens[len(gens)-1] != gen {
			gens = append(gens, gen)
		}
	}
	return gens, nil
}
