package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the matchdex service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Store    StoreConfig    `yaml:"store"`
	Retry    RetryConfig    `yaml:"retry"`
	Index    IndexConfig    `yaml:"index"`
	Search   SearchConfig   `yaml:"search"`
	Resolver ResolverConfig `yaml:"resolver"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// StoreConfig holds document-store connection settings.
type StoreConfig struct {
	Driver           string `yaml:"driver"` // elastic, opensearch (default: elastic)
	Addr             string `yaml:"addr"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	MinHealth        string `yaml:"min_health"` // green, yellow (default: yellow)
	TimeoutSec       int    `yaml:"timeout_sec"`
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
	InsecureTLS      bool   `yaml:"insecure_tls"`
	CAFile           string `yaml:"ca_file"`
}

// RetryPolicyConfig holds one retry policy's bounds.
type RetryPolicyConfig struct {
	MaxAttempts    int `yaml:"max_attempts"`
	MinIntervalSec int `yaml:"min_interval_sec"`
	MaxIntervalSec int `yaml:"max_interval_sec"`
}

// RetryConfig holds the retry policies for data operations and flushes.
type RetryConfig struct {
	Data  RetryPolicyConfig `yaml:"data"`
	Flush RetryPolicyConfig `yaml:"flush"`
}

// IndexConfig holds index lifecycle settings.
type IndexConfig struct {
	// SettingsFile overrides the embedded index settings template.
	SettingsFile string `yaml:"settings_file"`
	// CredentialsFile supplies values for credential placeholders in the
	// settings template.
	CredentialsFile string `yaml:"credentials_file"`
	ForceMerge      bool   `yaml:"force_merge"`
}

// SearchConfig holds query windowing settings.
type SearchConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	// MaxPageSize caps direct windowing; 0 means detect from the store.
	MaxPageSize       int `yaml:"max_page_size"`
	ScrollKeepAlive   int `yaml:"scroll_keep_alive_sec"`
	FacetSampleSize   int `yaml:"facet_sample_size"`
	HighlightMaxChars int `yaml:"highlight_max_chars"`
}

// ResolverConfig holds entity-resolution settings.
type ResolverConfig struct {
	MaxResults int     `yaml:"max_results"`
	MinScore   float64 `yaml:"min_score"`
}

// CacheConfig holds the redaction cache settings.
type CacheConfig struct {
	RedactionSize   int `yaml:"redaction_size"`
	RedactionTTLSec int `yaml:"redaction_ttl_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "elastic"
	}
	if c.Store.MinHealth == "" {
		c.Store.MinHealth = "yellow"
	}
	if c.Store.TimeoutSec <= 0 {
		c.Store.TimeoutSec = 30
	}
	if c.Store.ReadinessTimeout <= 0 {
		c.Store.ReadinessTimeout = 60
	}
	if c.Retry.Data.MaxAttempts <= 0 {
		c.Retry.Data.MaxAttempts = 3
	}
	if c.Retry.Data.MinIntervalSec <= 0 {
		c.Retry.Data.MinIntervalSec = 10
	}
	if c.Retry.Data.MaxIntervalSec <= 0 {
		c.Retry.Data.MaxIntervalSec = 60
	}
	if c.Retry.Flush.MaxAttempts <= 0 {
		c.Retry.Flush.MaxAttempts = 3
	}
	if c.Retry.Flush.MinIntervalSec <= 0 {
		c.Retry.Flush.MinIntervalSec = 5
	}
	if c.Retry.Flush.MaxIntervalSec <= 0 {
		c.Retry.Flush.MaxIntervalSec = 30
	}
	if c.Search.DefaultPageSize <= 0 {
		c.Search.DefaultPageSize = 20
	}
	if c.Search.ScrollKeepAlive <= 0 {
		c.Search.ScrollKeepAlive = 60
	}
	if c.Search.FacetSampleSize <= 0 {
		c.Search.FacetSampleSize = 10000
	}
	if c.Resolver.MaxResults <= 0 {
		c.Resolver.MaxResults = 10
	}
	if c.Cache.RedactionSize <= 0 {
		c.Cache.RedactionSize = 10000
	}
	if c.Cache.RedactionTTLSec <= 0 {
		c.Cache.RedactionTTLSec = 300
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Store.Addr == "" {
		return fmt.Errorf("store.addr is required")
	}
	switch c.Store.Driver {
	case "elastic", "opensearch":
		// ok
	default:
		return fmt.Errorf("store.driver must be \"elastic\" or \"opensearch\", got %q", c.Store.Driver)
	}
	switch c.Store.MinHealth {
	case "green", "yellow":
		// ok
	default:
		return fmt.Errorf("store.min_health must be \"green\" or \"yellow\", got %q", c.Store.MinHealth)
	}
	if c.Resolver.MinScore < 0 {
		return fmt.Errorf("resolver.min_score must not be negative, got %v", c.Resolver.MinScore)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
