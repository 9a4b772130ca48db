// Command facetctl builds, inspects and serves faceted bleve indexes.
//
//	facetctl -config facetctl.yaml build
//	facetctl -config facetctl.yaml search -index products -q shirt -refine color=red
//	facetctl inspect data/facets/products/00000001/color.facet
//	facetctl -config facetctl.yaml serve
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hupe1980/facetgo"
	"github.com/hupe1980/facetgo/facet"
	"github.com/hupe1980/facetgo/persistence"
	"github.com/hupe1980/facetgo/prommetrics"
)

var errUsage = errors.New("usage: facetctl [-config FILE] build|search|inspect|serve [flags]")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "facetctl: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("facetctl", flag.ContinueOnError)
	configPath := fs.String("config", "facetctl.yaml", "path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	if cmd == "inspect" {
		return runInspect(ctx, rest, stdout)
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}

	switch cmd {
	case "build":
		return runBuild(ctx, cfg, logger, stdout)
	case "search":
		return runSearch(ctx, cfg, logger, rest, stdout)
	case "serve":
		return runServe(ctx, cfg, logger)
	default:
		return fmt.Errorf("unknown command %q\n%w", cmd, errUsage)
	}
}

func runBuild(ctx context.Context, cfg *Config, logger *facetgo.Logger, stdout io.Writer) error {
	m, err := openManager(ctx, cfg, logger, nil, true)
	if err != nil {
		return err
	}
	defer m.Close()

	start := time.Now()
	n, err := m.CreateIndexes(ctx)
	if err != nil {
		return err
	}

	for _, name := range m.Registered() {
		gen, _ := m.Generation(name)
		facets, _ := m.Facets(name)
		fmt.Fprintf(stdout, "%s\tgeneration %d\t%d facets\n", name, gen, len(facets))
	}
	logger.Info("build complete", "indexes", n, "duration", time.Since(start))
	return nil
}

// refineFlags collects repeated -refine flags.
type refineFlags []facet.Refinement

func (r *refineFlags) String() string {
	parts := make([]string, len(*r))
	for i, ref := range *r {
		parts[i] = string(ref.FacetID) + "=" + ref.Value
	}
	return strings.Join(parts, ",")
}

func (r *refineFlags) Set(v string) error {
	ref, err := parseRefinement(v)
	if err != nil {
		return err
	}
	*r = append(*r, ref)
	return nil
}

func runSearch(ctx context.Context, cfg *Config, logger *facetgo.Logger, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	name := fs.String("index", "", "index name")
	query := fs.String("q", "", "query; empty matches every document")
	limit := fs.Int("limit", cfg.Search.DefaultLimit, "maximum number of hits")
	var refinements refineFlags
	fs.Var(&refinements, "refine", "facet=value refinement")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *name == "" {
		if len(cfg.Indexes) != 1 {
			return errors.New("search: -index is required")
		}
		*name = cfg.Indexes[0].Name
	}

	m, err := openManager(ctx, cfg, logger, nil, false)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.LoadFacets(ctx, *name); err != nil {
		return err
	}

	res, err := m.SearchWithFacets(ctx, *name, *query, *limit, refinements...)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func runInspect(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New("inspect: no facet files given")
	}

	store := persistence.NewStore()
	for _, path := range args {
		f, err := store.Load(ctx, path)
		if err != nil {
			return err
		}

		var universe uint32
		if f.Len() > 0 {
			universe = f.Values[0].Docs.Universe()
		}
		fmt.Fprintf(stdout, "%s (field %s, %q): %d values, %d documents\n", f.UniqueName, f.Field, f.DisplayName, f.Len(), universe)
		for _, v := range f.Values {
			fmt.Fprintf(stdout, "  %s\t%d\n", v.Raw, v.Docs.Cardinality())
		}
	}
	return nil
}

func runServe(ctx context.Context, cfg *Config, logger *facetgo.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m, err := openManager(ctx, cfg, logger, prommetrics.New(registry), true)
	if err != nil {
		return err
	}
	defer m.Close()

	for _, ic := range cfg.Indexes {
		err := m.LoadFacets(ctx, ic.Name)
		if err == nil {
			continue
		}
		if ic.Source == "" || !(errors.Is(err, facetgo.ErrFacetsNotBuilt) || errors.Is(err, facetgo.ErrStaleFacets)) {
			logger.Warn("facets unavailable", "index", ic.Name, "error", err)
			continue
		}
		logger.Info("rebuilding facets", "index", ic.Name, "reason", err)
		if err := m.CreateIndex(ctx, ic.Name); err != nil {
			logger.Error("rebuild failed", "index", ic.Name, "error", err)
		}
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      newHandler(m, cfg.Search, registry, logger.Logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("facet service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	logger.Info("facet service stopped")
	return nil
}
