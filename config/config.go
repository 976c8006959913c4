package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	ConfigDir      = ".mnemo"
	ConfigFileName = "config.yaml"
	IndexFileName  = "index.gob"
)

type Config struct {
	Version   int             `yaml:"version"`
	Project   ProjectConfig   `yaml:"project"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Store     StoreConfig     `yaml:"store"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Watch     WatchConfig     `yaml:"watch"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Search    SearchConfig    `yaml:"search"`
	External  []ExternalSet   `yaml:"external,omitempty"`
}

// ProjectConfig names the tenant. Branch is detected from git when
// possible; this value is the fallback outside a git repo or on a
// detached HEAD.
type ProjectConfig struct {
	Name   string `yaml:"name"`
	Branch string `yaml:"branch,omitempty"`
}

type EmbedderConfig struct {
	Provider   string `yaml:"provider"` // openai | hash
	Model      string `yaml:"model"`
	Endpoint   string `yaml:"endpoint,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
	Dimensions *int   `yaml:"dimensions,omitempty"`
}

// GetDimensions returns the configured dimensions or the provider default.
func (e *EmbedderConfig) GetDimensions() int {
	if e.Dimensions != nil {
		return *e.Dimensions
	}
	switch e.Provider {
	case "openai":
		return 1536
	default:
		return 256
	}
}

type StoreConfig struct {
	Backend  string         `yaml:"backend"` // gob | postgres
	Postgres PostgresConfig `yaml:"postgres,omitempty"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type ChunkingConfig struct {
	// ThresholdLines is the line count above which a document is split
	// into chunks. Documents at or below the threshold keep a single
	// document-level embedding only.
	ThresholdLines int `yaml:"threshold_lines"`
}

type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms"`
	Workers    int `yaml:"workers"`
}

type ReconcileConfig struct {
	Include     []string `yaml:"include"`
	Exclude     []string `yaml:"exclude"`
	IntervalSec int      `yaml:"interval_sec"` // 0 disables periodic runs
}

type SearchConfig struct {
	Limit int `yaml:"limit"`
	// MinScore is a pointer so an explicit 0 survives default backfill.
	MinScore *float32 `yaml:"min_score,omitempty"`
}

// GetMinScore returns the configured cutoff or the default.
func (s *SearchConfig) GetMinScore() float32 {
	if s.MinScore != nil {
		return *s.MinScore
	}
	return defaultMinScore
}

const defaultMinScore float32 = 0.3

// ExternalSet is a read-only secondary document tree reconciled into the
// store under its own tenant scope. The source files are never written.
type ExternalSet struct {
	Name    string   `yaml:"name"`
	Root    string   `yaml:"root"`
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Project: ProjectConfig{
			Branch: "main",
		},
		Embedder: EmbedderConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
			Endpoint: "https://api.openai.com/v1",
		},
		Store: StoreConfig{
			Backend: "gob",
		},
		Chunking: ChunkingConfig{
			ThresholdLines: 500,
		},
		Watch: WatchConfig{
			DebounceMs: 500,
			Workers:    4,
		},
		Reconcile: ReconcileConfig{
			Include: []string{"**/*.md"},
			Exclude: []string{
				".git",
				".mnemo",
				"node_modules",
				"vendor",
			},
			IntervalSec: 0,
		},
		Search: SearchConfig{
			Limit: 10,
		},
	}
}

func GetConfigDir(projectRoot string) string {
	return filepath.Join(projectRoot, ConfigDir)
}

func GetConfigPath(projectRoot string) string {
	return filepath.Join(GetConfigDir(projectRoot), ConfigFileName)
}

func GetIndexPath(projectRoot string) string {
	return filepath.Join(GetConfigDir(projectRoot), IndexFileName)
}

func Load(projectRoot string) (*Config, error) {
	configPath := GetConfigPath(projectRoot)

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in missing values so older config files keep working.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Project.Branch == "" {
		c.Project.Branch = defaults.Project.Branch
	}

	if c.Embedder.Provider == "" {
		c.Embedder.Provider = defaults.Embedder.Provider
	}
	if c.Embedder.Endpoint == "" && c.Embedder.Provider == "openai" {
		c.Embedder.Endpoint = defaults.Embedder.Endpoint
	}
	if c.Embedder.Model == "" && c.Embedder.Provider == "openai" {
		c.Embedder.Model = defaults.Embedder.Model
	}

	if c.Store.Backend == "" {
		c.Store.Backend = defaults.Store.Backend
	}

	if c.Chunking.ThresholdLines == 0 {
		c.Chunking.ThresholdLines = defaults.Chunking.ThresholdLines
	}

	if c.Watch.DebounceMs == 0 {
		c.Watch.DebounceMs = defaults.Watch.DebounceMs
	}
	if c.Watch.Workers <= 0 {
		c.Watch.Workers = defaults.Watch.Workers
	}

	if len(c.Reconcile.Include) == 0 {
		c.Reconcile.Include = defaults.Reconcile.Include
	}
	if len(c.Reconcile.Exclude) == 0 {
		c.Reconcile.Exclude = defaults.Reconcile.Exclude
	}

	if c.Search.Limit <= 0 {
		c.Search.Limit = defaults.Search.Limit
	}
}

func (c *Config) Save(projectRoot string) error {
	configDir := GetConfigDir(projectRoot)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := GetConfigPath(projectRoot)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func Exists(projectRoot string) bool {
	_, err := os.Stat(GetConfigPath(projectRoot))
	return err == nil
}

// FindProjectRoot walks up from the working directory until a .mnemo/
// directory is found.
func FindProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	cwd, err = filepath.EvalSymlinks(cwd)
	if err != nil {
		return "", fmt.Errorf("failed to resolve symlinks: %w", err)
	}

	dir := cwd
	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("no mnemo project found (run 'mnemo init' first)")
}
