package persistence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/facetgo/facet"
	"github.com/hupe1980/facetgo/internal/mmap"
	"github.com/hupe1980/facetgo/resource"
)

// Store saves and loads facet files on the local file system.
// Saves of distinct facets may run concurrently.
type Store struct {
	opts options
}

// NewStore creates a store.
func NewStore(optFns ...Option) *Store {
	return &Store{opts: applyOptions(optFns)}
}

// Save writes f to dir/<UniqueName>.facet and returns the path.
//
// dir is created if missing. If the file already exists Save fails with
// *facet.DuplicateFacetError and leaves it untouched. A file that cannot be
// written completely is removed.
func (s *Store) Save(ctx context.Context, f *facet.Facet, dir string) (string, error) {
	if dir == "" {
		return "", &facet.ArgumentError{Name: "path", Reason: "empty destination directory"}
	}

	var buf bytes.Buffer
	if err := Encode(&buf, f, s.opts.compression); err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create facet directory: %w", err)
	}

	path := filepath.Join(dir, FileName(f.UniqueName))

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", &facet.DuplicateFacetError{Path: path, Err: err}
		}
		return "", fmt.Errorf("create facet file: %w", err)
	}

	if err := writeAndSync(ctx, file, buf.Bytes(), s.opts.controller); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write facet %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close facet %s: %w", path, err)
	}

	s.opts.logger.Debug("facet saved", "facet", f.UniqueName, "path", path, "bytes", buf.Len())
	return path, nil
}

func writeAndSync(ctx context.Context, file *os.File, data []byte, rc *resource.Controller) error {
	w := resource.NewRateLimitedWriter(ctx, file, rc)
	if _, err := w.Write(data); err != nil {
		return err
	}
	return file.Sync()
}

// Load reads the facet file at path.
// Malformed content fails with *facet.CorruptFacetError carrying the path.
func (s *Store) Load(ctx context.Context, path string) (*facet.Facet, error) {
	if path == "" {
		return nil, &facet.ArgumentError{Name: "path", Reason: "empty facet path"}
	}

	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open facet: %w", err)
	}
	defer m.Close()

	_ = m.Advise(mmap.AccessSequential)

	r := resource.NewRateLimitedReader(ctx, bytes.NewReader(m.Bytes()), s.opts.controller)

	f, err := Decode(r)
	if err != nil {
		return nil, withPath(err, path)
	}

	s.opts.logger.Debug("facet loaded", "facet", f.UniqueName, "path", path, "values", len(f.Values))
	return f, nil
}

// LoadDir loads every *.facet file in dir, in file name order.
func (s *Store) LoadDir(ctx context.Context, dir string) ([]*facet.Facet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read facet directory: %w", err)
	}

	var facets []*facet.Facet
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Extension) {
			continue
		}
		f, err := s.Load(ctx, filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		facets = append(facets, f)
	}
	return facets, nil
}

func withPath(err error, path string) error {
	var cfe *facet.CorruptFacetError
	if errors.As(err, &cfe) {
		cp := *cfe
		cp.Path = path
		return &cp
	}
	return fmt.Errorf("load facet %s: %w", path, err)
}
