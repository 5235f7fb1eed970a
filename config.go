package sudocache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config describes how the cache and its backing stores are wired.
type Config struct {
	Store   StoreConfig   `json:"store" yaml:"store"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// StoreConfig selects and parameterizes the record store backend.
type StoreConfig struct {
	// Backend is one of "memory", "sqlite", "redis".
	Backend string `json:"backend" yaml:"backend"`
	// Subtree the rules are cached under; defaults to RuleSubtree.
	Subtree string `json:"subtree" yaml:"subtree"`

	SQLiteDSN string `json:"sqlite_dsn" yaml:"sqlite_dsn"`

	RedisAddr     string `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `json:"redis_password" yaml:"redis_password"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db"`

	// Identity lookup cache (ristretto); disabled unless
	// RistrettoNumCounter is set.
	IdentityCacheTTL    int64 `json:"identity_cache_ttl_ms" yaml:"identity_cache_ttl_ms"`
	RistrettoNumCounter int64 `json:"ristretto_num_counter" yaml:"ristretto_num_counter"`
	RistrettoMaxCost    int64 `json:"ristretto_max_cost" yaml:"ristretto_max_cost"`
	RistrettoBuffer     int64 `json:"ristretto_buffer" yaml:"ristretto_buffer"`
}

// LoggingConfig selects the logger implementation.
type LoggingConfig struct {
	// Driver is one of "phuslu", "slog", "none".
	Driver string `json:"driver" yaml:"driver"`
}

// DefaultConfig returns an in-memory configuration suitable for tests
// and single-process use.
func DefaultConfig() *Config {
	return &Config{
		Store:   StoreConfig{Backend: "memory", Subtree: RuleSubtree},
		Logging: LoggingConfig{Driver: "phuslu"},
	}
}

// Validate checks that the configuration is complete enough to open.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "", "memory":
	case "sqlite":
		if c.Store.SQLiteDSN == "" {
			return fmt.Errorf("config: sqlite backend requires sqlite_dsn")
		}
	case "redis":
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("config: redis backend requires redis_addr")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.Store.RistrettoNumCounter > 0 && c.Store.RistrettoMaxCost <= 0 {
		return fmt.Errorf("config: ristretto_max_cost must be set with ristretto_num_counter")
	}
	return nil
}

// ConfigLoader loads configuration from the supported formats.
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads a config file, picking the format by extension.
func (l *ConfigLoader) LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return l.LoadYAML(data)
	case ".json":
		return l.LoadJSON(data)
	default:
		return nil, fmt.Errorf("config: unsupported file extension on %s", path)
	}
}

// ToYAML exports the config to YAML.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ToJSON exports the config to JSON.
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
