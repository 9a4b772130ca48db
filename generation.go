package facetgo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// partialSuffix marks a local generation that is still being written.
const partialSuffix = ".partial"

func generationName(gen uint64) string {
	return fmt.Sprintf("%08d", gen)
}

func parseGeneration(name string) (uint64, bool) {
	if name == "" || strings.TrimLeft(name, "0123456789") != "" {
		return 0, false
	}
	gen, err := strconv.ParseUint(name, 10, 64)
	if err != nil || gen == 0 {
		return 0, false
	}
	return gen, true
}

// latestLocal returns the highest complete generation below root.
func latestLocal(root string) (uint64, bool, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read generations: %w", err)
	}

	var latest uint64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if gen, ok := parseGeneration(e.Name()); ok {
			latest = max(latest, gen)
		}
	}
	return latest, latest > 0, nil
}

func (m *Manager) localRoot(name string) string {
	return filepath.Join(m.opts.storeDir, name)
}

func (m *Manager) mirrorRoot(name string) string {
	return path.Join(m.opts.mirrorPrefix, name)
}

// remoteGenerations returns the parsed generations below the mirror root in
// ascending order, committed or not.
func (m *Manager) remoteGenerations(ctx context.Context, name string) ([]uint64, error) {
	names, err := m.publisher.Generations(ctx, m.mirrorRoot(name))
	if err != nil {
		return nil, err
	}

	gens := make([]uint64, 0, len(names))
	for _, n := range names {
		if gen, ok := parseGeneration(n); ok {
			gens = append(gens, gen)
		}
	}
	slices.Sort(gens)
	return gens, nil
}

// latestCommitted returns the highest committed generation on the mirror.
func (m *Manager) latestCommitted(ctx context.Context, name string) (uint64, bool, error) {
	gens, err := m.remoteGenerations(ctx, name)
	if err != nil {
		return 0, false, err
	}

	for _, gen := range slices.Backward(gens) {
		ok, err := m.publisher.Committed(ctx, path.Join(m.mirrorRoot(name), generationName(gen)))
		if err != nil {
			return 0, false, err
		}
		if ok {
			return gen, true, nil
		}
	}
	return 0, false, nil
}

// nextGeneration returns a generation unused both locally and on the mirror,
// so write-once saves never collide with an earlier build.
func (m *Manager) nextGeneration(ctx context.Context, name string) (uint64, error) {
	var latest uint64

	if m.opts.storeDir != "" {
		entries, err := os.ReadDir(m.localRoot(name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("read generations: %w", err)
		}
		for _, e := range entries {
			if gen, ok := parseGeneration(strings.TrimSuffix(e.Name(), partialSuffix)); ok {
				latest = max(latest, gen)
			}
		}
	}

	if m.publisher != nil {
		gens, err := m.remoteGenerations(ctx, name)
		if err != nil {
			return 0, err
		}
		if len(gens) > 0 {
			latest = max(latest, gens[len(gens)-1])
		}
	}

	return latest + 1, nil
}
