// Package config loads pipeline settings from YAML with ATLAS_* environment
// overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rna3dhub/motifatlas/internal/cluster"
	"github.com/rna3dhub/motifatlas/internal/storage"
	"github.com/rna3dhub/motifatlas/internal/storage/postgres"
)

// DefaultCutoff is the discrepancy above which two loops never match.
const DefaultCutoff = 0.5

// Config is the complete pipeline configuration.
type Config struct {
	Search   SearchConfig         `yaml:"search"`
	Cluster  ClusterConfig        `yaml:"cluster"`
	Workers  WorkersConfig        `yaml:"workers"`
	Release  ReleaseConfig        `yaml:"release"`
	Database DatabaseConfig       `yaml:"database"`
	Events   EventRetentionConfig `yaml:"events"`
}

// SearchConfig parameterizes the pairwise geometric search.
type SearchConfig struct {
	// Cutoff is the discrepancy cutoff handed to every query
	Cutoff float64 `yaml:"discrepancy_cutoff"`
	// MaxCandidates stops one search after this many candidates, 0 for no limit
	MaxCandidates int `yaml:"max_candidates"`
}

// ClusterConfig selects the clustering algorithm.
type ClusterConfig struct {
	Method    string  `yaml:"method"`
	Score     string  `yaml:"clique_score"`
	Ratio     float64 `yaml:"clique_ratio"`
	Linkage   string  `yaml:"linkage"`
	Threshold float64 `yaml:"linkage_threshold"`
}

// WorkersConfig controls the all-against-all fan-out.
type WorkersConfig struct {
	// Jobs is the number of batches run concurrently
	Jobs int `yaml:"jobs"`
	// MaxRetries is how often a failed batch is relaunched
	MaxRetries int `yaml:"max_retries"`
	// Backoff is the minimum spacing between relaunches, e.g. "2s"
	Backoff string `yaml:"backoff"`
	// CacheDir holds the per-PDB result files
	CacheDir string `yaml:"cache_dir"`
}

// ReleaseConfig controls release creation.
type ReleaseConfig struct {
	// OutputDir receives the CSV files
	OutputDir string `yaml:"output_dir"`
	// StopOnFailure aborts the run on the first failed stage
	StopOnFailure bool `yaml:"stop_on_failure"`
	// Seed seeds handle generation, 0 for a time based seed
	Seed int64 `yaml:"seed"`
}

// DatabaseConfig selects the release store.
type DatabaseConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

// Default returns the built-in configuration.
func Default() *Config {
	opts := cluster.DefaultOptions()
	return &Config{
		Search: SearchConfig{Cutoff: DefaultCutoff},
		Cluster: ClusterConfig{
			Method:    string(opts.Method),
			Score:     string(opts.Score),
			Ratio:     opts.Ratio,
			Linkage:   string(opts.Linkage),
			Threshold: opts.Threshold,
		},
		Workers: WorkersConfig{
			Jobs:       4,
			MaxRetries: 3,
			Backoff:    "1s",
			CacheDir:   ".atlas/cache",
		},
		Release: ReleaseConfig{
			OutputDir:     "release",
			StopOnFailure: true,
		},
		Database: DatabaseConfig{
			Backend: storage.BackendSQLite,
			Path:    storage.DefaultPath,
		},
		Events: DefaultEventRetentionConfig(),
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from ATLAS_* environment variables:
//   - ATLAS_DISCREPANCY_CUTOFF, ATLAS_MAX_CANDIDATES
//   - ATLAS_CLUSTER_METHOD, ATLAS_CLIQUE_SCORE, ATLAS_CLIQUE_RATIO
//   - ATLAS_LINKAGE, ATLAS_LINKAGE_THRESHOLD
//   - ATLAS_JOBS, ATLAS_MAX_RETRIES, ATLAS_BACKOFF, ATLAS_CACHE_DIR
//   - ATLAS_OUTPUT_DIR, ATLAS_STOP_ON_FAILURE, ATLAS_SEED
//   - ATLAS_DB_BACKEND, ATLAS_DB_PATH, ATLAS_DB_DSN
//   - ATLAS_EVENT_* (see EventRetentionConfig)
func (c *Config) ApplyEnv() error {
	steps := []func() error{
		func() error { return parseEnvFloat("ATLAS_DISCREPANCY_CUTOFF", &c.Search.Cutoff) },
		func() error { return parseEnvInt("ATLAS_MAX_CANDIDATES", &c.Search.MaxCandidates) },
		func() error { return parseEnvString("ATLAS_CLUSTER_METHOD", &c.Cluster.Method) },
		func() error { return parseEnvString("ATLAS_CLIQUE_SCORE", &c.Cluster.Score) },
		func() error { return parseEnvFloat("ATLAS_CLIQUE_RATIO", &c.Cluster.Ratio) },
		func() error { return parseEnvString("ATLAS_LINKAGE", &c.Cluster.Linkage) },
		func() error { return parseEnvFloat("ATLAS_LINKAGE_THRESHOLD", &c.Cluster.Threshold) },
		func() error { return parseEnvInt("ATLAS_JOBS", &c.Workers.Jobs) },
		func() error { return parseEnvInt("ATLAS_MAX_RETRIES", &c.Workers.MaxRetries) },
		func() error { return parseEnvString("ATLAS_BACKOFF", &c.Workers.Backoff) },
		func() error { return parseEnvString("ATLAS_CACHE_DIR", &c.Workers.CacheDir) },
		func() error { return parseEnvString("ATLAS_OUTPUT_DIR", &c.Release.OutputDir) },
		func() error { return parseEnvBool("ATLAS_STOP_ON_FAILURE", &c.Release.StopOnFailure) },
		func() error { return parseEnvInt64("ATLAS_SEED", &c.Release.Seed) },
		func() error { return parseEnvString("ATLAS_DB_BACKEND", &c.Database.Backend) },
		func() error { return parseEnvString("ATLAS_DB_PATH", &c.Database.Path) },
		func() error { return parseEnvString("ATLAS_DB_DSN", &c.Database.DSN) },
		c.Events.applyEnv,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks if the configuration has valid values
func (c *Config) Validate() error {
	if c.Search.Cutoff <= 0 {
		return fmt.Errorf("discrepancy_cutoff must be positive (got %g)", c.Search.Cutoff)
	}
	if c.Search.MaxCandidates < 0 {
		return fmt.Errorf("max_candidates cannot be negative (got %d)", c.Search.MaxCandidates)
	}
	if err := c.ClusterOptions().Validate(); err != nil {
		return err
	}
	if c.Workers.Jobs < 1 || c.Workers.Jobs > 256 {
		return fmt.Errorf("jobs must be between 1 and 256 (got %d)", c.Workers.Jobs)
	}
	if c.Workers.MaxRetries < 0 || c.Workers.MaxRetries > 10 {
		return fmt.Errorf("max_retries must be between 0 and 10 (got %d)", c.Workers.MaxRetries)
	}
	if _, err := c.BackoffDuration(); err != nil {
		return err
	}
	switch c.Database.Backend {
	case storage.BackendSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for the sqlite backend")
		}
	case storage.BackendPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("database backend must be %q or %q (got %q)",
			storage.BackendSQLite, storage.BackendPostgres, c.Database.Backend)
	}
	return c.Events.Validate()
}

// ClusterOptions converts the cluster section.
func (c *Config) ClusterOptions() cluster.Options {
	return cluster.Options{
		Method:    cluster.Method(c.Cluster.Method),
		Score:     cluster.CliqueScore(c.Cluster.Score),
		Ratio:     c.Cluster.Ratio,
		Linkage:   cluster.Linkage(c.Cluster.Linkage),
		Threshold: c.Cluster.Threshold,
	}
}

// BackoffDuration parses Workers.Backoff.
func (c *Config) BackoffDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Workers.Backoff)
	if err != nil {
		return 0, fmt.Errorf("invalid backoff %q: %w", c.Workers.Backoff, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("backoff cannot be negative (got %s)", d)
	}
	return d, nil
}

// StorageConfig converts the database section.
func (c *Config) StorageConfig() *storage.Config {
	sc := &storage.Config{Backend: c.Database.Backend, Path: c.Database.Path}
	if c.Database.Backend == storage.BackendPostgres {
		pg := postgres.DefaultConfig()
		pg.DSN = c.Database.DSN
		if c.Database.MaxConns > 0 {
			pg.MaxConns = c.Database.MaxConns
		}
		sc.Postgres = pg
	}
	return sc
}
