package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/facetgo/docset"
	"github.com/hupe1980/facetgo/facet"
)

// Config is the facetctl configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Store   StoreConfig   `yaml:"store"`
	Mirror  MirrorConfig  `yaml:"mirror"`
	Build   BuildConfig   `yaml:"build"`
	Search  SearchConfig  `yaml:"search"`
	Indexes []IndexConfig `yaml:"indexes"`
}

// ServerConfig holds HTTP server settings for serve.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// LoggingConfig controls log level and output format ("json" or "text").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StoreConfig locates persisted facet generations on local disk.
type StoreConfig struct {
	Dir         string `yaml:"dir"`
	Compression string `yaml:"compression"`
}

// MirrorConfig configures the remote copy of published facets.
// Kind is one of "", "local", "s3" or "minio"; empty disables mirroring.
type MirrorConfig struct {
	Kind      string `yaml:"kind"`
	Dir       string `yaml:"dir"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"pathStyle"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	UseSSL    bool   `yaml:"useSSL"`
	// DDBTable enables DynamoDB claims for exactly-once publication on s3.
	DDBTable string `yaml:"ddbTable"`
}

// BuildConfig bounds facet builds.
type BuildConfig struct {
	Workers          int   `yaml:"workers"`
	TermWorkers      int   `yaml:"termWorkers"`
	IOBytesPerSecond int64 `yaml:"ioBytesPerSecond"`
}

// SearchConfig controls query limits and counting.
type SearchConfig struct {
	DefaultLimit      int  `yaml:"defaultLimit"`
	MaxLimit          int  `yaml:"maxLimit"`
	RefinedCounts     bool `yaml:"refinedCounts"`
	ParallelThreshold int  `yaml:"parallelThreshold"`
}

// IndexConfig describes one bleve index and its facets.
type IndexConfig struct {
	Name string `yaml:"name"`
	// Path is the on-disk bleve index.
	Path string `yaml:"path"`
	// Source is a JSON-lines document file read by build.
	Source        string        `yaml:"source"`
	KeywordFields []string      `yaml:"keywordFields"`
	Facets        []FacetConfig `yaml:"facets"`
}

// FacetConfig declares one facet of an index.
type FacetConfig struct {
	UniqueName  string `yaml:"uniqueName"`
	Field       string `yaml:"field"`
	DisplayName string `yaml:"displayName"`
}

// Definitions converts the facet configs.
func (ic IndexConfig) Definitions() []facet.Definition {
	defs := make([]facet.Definition, len(ic.Facets))
	for i, f := range ic.Facets {
		defs[i] = facet.Definition{UniqueName: f.UniqueName, Field: f.Field, DisplayName: f.DisplayName}
		if defs[i].DisplayName == "" {
			defs[i].DisplayName = f.UniqueName
		}
	}
	return defs
}

// Keywords returns the fields bleve indexes as exact terms: every facet
// field plus KeywordFields.
func (ic IndexConfig) Keywords() []string {
	fields := slices.Clone(ic.KeywordFields)
	for _, f := range ic.Facets {
		if !slices.Contains(fields, f.Field) {
			fields = append(fields, f.Field)
		}
	}
	return fields
}

// LoadConfig reads a YAML config file (if provided) and applies environment
// variable overrides on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			Dir:         "data/facets",
			Compression: "zstd",
		},
		Build: BuildConfig{
			Workers:     4,
			TermWorkers: 4,
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			MaxLimit:     100,
		},
	}
}

// applyEnvOverrides reads FACETGO_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FACETGO_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FACETGO_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FACETGO_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("FACETGO_STORE_DIR"); v != "" {
		cfg.Store.Dir = v
	}
	if v := os.Getenv("FACETGO_STORE_COMPRESSION"); v != "" {
		cfg.Store.Compression = v
	}
	if v := os.Getenv("FACETGO_MIRROR_KIND"); v != "" {
		cfg.Mirror.Kind = v
	}
	if v := os.Getenv("FACETGO_MIRROR_DIR"); v != "" {
		cfg.Mirror.Dir = v
	}
	if v := os.Getenv("FACETGO_MIRROR_BUCKET"); v != "" {
		cfg.Mirror.Bucket = v
	}
	if v := os.Getenv("FACETGO_MIRROR_PREFIX"); v != "" {
		cfg.Mirror.Prefix = v
	}
	if v := os.Getenv("FACETGO_MIRROR_REGION"); v != "" {
		cfg.Mirror.Region = v
	}
	if v := os.Getenv("FACETGO_MIRROR_ENDPOINT"); v != "" {
		cfg.Mirror.Endpoint = v
	}
	if v := os.Getenv("FACETGO_MIRROR_ACCESS_KEY"); v != "" {
		cfg.Mirror.AccessKey = v
	}
	if v := os.Getenv("FACETGO_MIRROR_SECRET_KEY"); v != "" {
		cfg.Mirror.SecretKey = v
	}
	if v := os.Getenv("FACETGO_MIRROR_DDB_TABLE"); v != "" {
		cfg.Mirror.DDBTable = v
	}
	if v := os.Getenv("FACETGO_SEARCH_REFINED_COUNTS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Search.RefinedCounts = b
		}
	}
}

// Validate checks the configuration for values the commands cannot use.
func (c *Config) Validate() error {
	var errs []error

	if _, err := docset.ParseCompression(c.Store.Compression); err != nil {
		errs = append(errs, fmt.Errorf("store.compression: %w", err))
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}

	switch c.Mirror.Kind {
	case "":
	case "local":
		if c.Mirror.Dir == "" {
			errs = append(errs, errors.New("mirror.dir is required for a local mirror"))
		}
	case "s3", "minio":
		if c.Mirror.Bucket == "" {
			errs = append(errs, fmt.Errorf("mirror.bucket is required for a %s mirror", c.Mirror.Kind))
		}
		if c.Mirror.Kind == "minio" && c.Mirror.Endpoint == "" {
			errs = append(errs, errors.New("mirror.endpoint is required for a minio mirror"))
		}
	default:
		errs = append(errs, fmt.Errorf("mirror.kind: unknown kind %q", c.Mirror.Kind))
	}

	if c.Search.DefaultLimit < 0 || c.Search.MaxLimit < c.Search.DefaultLimit {
		errs = append(errs, fmt.Errorf("search: need 0 <= defaultLimit <= maxLimit, got %d and %d", c.Search.DefaultLimit, c.Search.MaxLimit))
	}

	seen := make(map[string]struct{}, len(c.Indexes))
	for i, ic := range c.Indexes {
		if ic.Name == "" {
			errs = append(errs, fmt.Errorf("indexes[%d]: name is required", i))
			continue
		}
		if _, dup := seen[ic.Name]; dup {
			errs = append(errs, fmt.Errorf("indexes[%d]: duplicate name %q", i, ic.Name))
		}
		seen[ic.Name] = struct{}{}
		if ic.Path == "" {
			errs = append(errs, fmt.Errorf("index %q: path is required", ic.Name))
		}
		for _, d := range ic.Definitions() {
			if err := d.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("index %q: %w", ic.Name, err))
			}
		}
	}

	return errors.Join(errs...)
}

// Index returns the config of the named index.
func (c *Config) Index(name string) (IndexConfig, bool) {
	for _, ic := range c.Indexes {
		if ic.Name == name {
			return ic, true
		}
	}
	return IndexConfig{}, false
}

func parseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if level == "" {
		return slog.LevelInfo, nil
	}
	err := l.UnmarshalText([]byte(level))
	return l, err
}
