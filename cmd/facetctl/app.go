package main

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/facetgo"
	"github.com/hupe1980/facetgo/blobstore"
	miniostore "github.com/hupe1980/facetgo/blobstore/minio"
	s3store "github.com/hupe1980/facetgo/blobstore/s3"
	"github.com/hupe1980/facetgo/docset"
	"github.com/hupe1980/facetgo/lexical"
	"github.com/hupe1980/facetgo/lexical/bleve"
	"github.com/hupe1980/facetgo/resource"
)

func newLogger(cfg LoggingConfig) (*facetgo.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Format == "json" {
		return facetgo.NewJSONLogger(level), nil
	}
	return facetgo.NewTextLogger(level), nil
}

// openMirror returns the configured mirror store, or nil when mirroring is
// disabled.
func openMirror(ctx context.Context, cfg MirrorConfig) (blobstore.BlobStore, error) {
	switch cfg.Kind {
	case "":
		return nil, nil
	case "local":
		return blobstore.NewLocalStore(cfg.Dir), nil
	case "s3":
		var opts []s3store.Option
		if cfg.Region != "" {
			opts = append(opts, s3store.WithRegion(cfg.Region))
		}
		if cfg.Endpoint != "" {
			opts = append(opts, s3store.WithEndpoint(cfg.Endpoint))
		}
		if cfg.PathStyle {
			opts = append(opts, s3store.WithPathStyle())
		}

		store, err := s3store.New(ctx, cfg.Bucket, opts...)
		if err != nil {
			return nil, err
		}
		if cfg.DDBTable == "" {
			return store, nil
		}

		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}

		owner, _ := os.Hostname()
		namespace := "s3://" + cfg.Bucket
		return s3store.NewDDBGuardStore(store, dynamodb.NewFromConfig(awsCfg), cfg.DDBTable, namespace, owner), nil
	case "minio":
		client, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("create minio client: %w", err)
		}
		return miniostore.NewStore(client, cfg.Bucket, ""), nil
	default:
		return nil, fmt.Errorf("unknown mirror kind %q", cfg.Kind)
	}
}

// managerOptions translates the config into Manager options.
func managerOptions(cfg *Config, mirror blobstore.BlobStore, logger *facetgo.Logger, mc facetgo.MetricsCollector) ([]facetgo.Option, error) {
	compression, err := docset.ParseCompression(cfg.Store.Compression)
	if err != nil {
		return nil, err
	}

	opts := []facetgo.Option{
		facetgo.WithStoreDir(cfg.Store.Dir),
		facetgo.WithCompression(compression),
		facetgo.WithBuildWorkers(cfg.Build.Workers),
		facetgo.WithTermWorkers(cfg.Build.TermWorkers),
		facetgo.WithLogger(logger),
	}
	if mirror != nil {
		opts = append(opts, facetgo.WithMirror(mirror, cfg.Mirror.Prefix))
	}
	if cfg.Build.IOBytesPerSecond > 0 {
		opts = append(opts, facetgo.WithResourceController(resource.NewController(resource.Config{
			MaxBuildWorkers:    int64(max(cfg.Build.Workers, 1)),
			IOLimitBytesPerSec: cfg.Build.IOBytesPerSecond,
		})))
	}
	if cfg.Search.RefinedCounts {
		opts = append(opts, facetgo.WithRefinedCounts())
	}
	if cfg.Search.ParallelThreshold > 0 {
		opts = append(opts, facetgo.WithParallelThreshold(cfg.Search.ParallelThreshold))
	}
	if mc != nil {
		opts = append(opts, facetgo.WithMetricsCollector(mc))
	}
	return opts, nil
}

// openManager opens the bleve index of every configured index and registers
// it. With withSources, rebuilds reindex each index from its source file.
func openManager(ctx context.Context, cfg *Config, logger *facetgo.Logger, mc facetgo.MetricsCollector, withSources bool) (*facetgo.Manager, error) {
	mirror, err := openMirror(ctx, cfg.Mirror)
	if err != nil {
		return nil, err
	}

	opts, err := managerOptions(cfg, mirror, logger, mc)
	if err != nil {
		return nil, err
	}
	m := facetgo.New(opts...)

	for _, ic := range cfg.Indexes {
		idx, err := bleve.New(ic.Path,
			bleve.WithKeywordFields(ic.Keywords()...),
			bleve.WithWorkers(cfg.Build.Workers),
			bleve.WithLogger(logger.WithIndex(ic.Name).Logger),
		)
		if err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("open index %q: %w", ic.Name, err)
		}

		def := facetgo.IndexDefinition{
			Name:        ic.Name,
			Index:       idx,
			Definitions: ic.Definitions(),
		}
		if withSources && ic.Source != "" {
			source := ic.Source
			def.Documents = func(ctx context.Context) ([]lexical.Document, error) {
				return readDocumentsFile(ctx, source)
			}
		}

		if err := m.Register(def); err != nil {
			_ = idx.Close()
			_ = m.Close()
			return nil, err
		}
	}
	return m, nil
}
