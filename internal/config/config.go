package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type ProjectConfig struct {
	Project   string         `yaml:"project"`
	Version   int            `yaml:"version"`
	Store     StoreConfig    `yaml:"store"`
	Snapshots SnapshotConfig `yaml:"snapshots"`
	Log       LogConfig      `yaml:"log"`
	Import    ImportConfig   `yaml:"import"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type SnapshotConfig struct {
	Driver    string `yaml:"driver"`
	Root      string `yaml:"root"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
	Compress  bool   `yaml:"compress"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type ImportConfig struct {
	Paths   []string `yaml:"paths"`
	Exclude []string `yaml:"exclude"`
}

// envOverrides are applied on top of the file so deployments can point the
// same project at another database or bucket.
type envOverrides struct {
	StoreDriver    string `env:"STORYGRAPH_STORE_DRIVER"`
	StoreDSN       string `env:"STORYGRAPH_STORE_DSN"`
	LogLevel       string `env:"STORYGRAPH_LOG_LEVEL"`
	SnapshotDriver string `env:"STORYGRAPH_SNAPSHOT_DRIVER"`
	SnapshotBucket string `env:"STORYGRAPH_SNAPSHOT_BUCKET"`
	SnapshotRoot   string `env:"STORYGRAPH_SNAPSHOT_ROOT"`
}

func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}
	applyDefaults(&cfg)

	if err := validateProjectConfig(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	return &cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func applyEnv(cfg *ProjectConfig) error {
	var o envOverrides
	if err := ParseEnv(&o); err != nil {
		return err
	}
	if o.StoreDriver != "" {
		cfg.Store.Driver = o.StoreDriver
	}
	if o.StoreDSN != "" {
		cfg.Store.DSN = o.StoreDSN
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.SnapshotDriver != "" {
		cfg.Snapshots.Driver = o.SnapshotDriver
	}
	if o.SnapshotBucket != "" {
		cfg.Snapshots.Bucket = o.SnapshotBucket
	}
	if o.SnapshotRoot != "" {
		cfg.Snapshots.Root = o.SnapshotRoot
	}
	return nil
}

func applyDefaults(cfg *ProjectConfig) {
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverSQLite
	}
	if cfg.Snapshots.Driver == "" {
		cfg.Snapshots.Driver = "fs"
	}
	if cfg.Snapshots.Driver == "fs" && cfg.Snapshots.Root == "" {
		cfg.Snapshots.Root = "snapshots"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func validateProjectConfig(cfg *ProjectConfig) error {
	if strings.TrimSpace(cfg.Project) == "" {
		return fmt.Errorf("project name is required")
	}
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version: %d", cfg.Version)
	}

	switch strings.ToLower(cfg.Store.Driver) {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if strings.TrimSpace(cfg.Store.DSN) == "" {
		return fmt.Errorf("store dsn is required")
	}

	switch strings.ToLower(cfg.Snapshots.Driver) {
	case "fs":
	case "s3":
		if strings.TrimSpace(cfg.Snapshots.Bucket) == "" {
			return fmt.Errorf("snapshot bucket is required for s3")
		}
	default:
		return fmt.Errorf("unsupported snapshot driver: %s", cfg.Snapshots.Driver)
	}

	for i, p := range cfg.Import.Paths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("import path %d is empty", i)
		}
	}

	return nil
}
