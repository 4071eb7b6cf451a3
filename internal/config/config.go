package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full tool configuration. Values are resolved in order:
// built-in defaults, then the optional YAML file, then environment variables.
type Config struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`

	Provider string `yaml:"provider"` // anthropic | gemini | openai
	Model    string `yaml:"model"`

	RequestsPerMinute int `yaml:"requests_per_minute"`
	TokensPerMinute   int `yaml:"tokens_per_minute"`

	MaxRetries  int `yaml:"max_retries"`
	BaseWaitSec int `yaml:"base_wait_sec"`
	MaxWaitSec  int `yaml:"max_wait_sec"`

	Parallel      int    `yaml:"parallel"`
	CacheSize     int    `yaml:"cache_size"`
	UsageLedger   string `yaml:"usage_ledger"`
	UsageStoreDSN string `yaml:"usage_store_dsn"`

	Artifact ArtifactConfig `yaml:"artifact"`
}

// ArtifactConfig configures the optional S3/minio artifact store.
type ArtifactConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Load reads configuration. A .env file is applied to the process environment
// first (missing file is fine); path names an optional YAML config file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:               "local",
		Provider:          "anthropic",
		RequestsPerMinute: 3,
		TokensPerMinute:   16000,
		MaxRetries:        5,
		BaseWaitSec:       5,
		MaxWaitSec:        120,
		Parallel:          3,
		CacheSize:         128,
		UsageLedger:       "out/usage.json",
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if cfg.RequestsPerMinute <= 0 {
		return nil, fmt.Errorf("requests_per_minute must be positive, got %d", cfg.RequestsPerMinute)
	}
	if cfg.TokensPerMinute <= 0 {
		return nil, fmt.Errorf("tokens_per_minute must be positive, got %d", cfg.TokensPerMinute)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must not be negative, got %d", cfg.MaxRetries)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("APP_ENV")); v != "" {
		c.Env = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("FORGE_PROVIDER")); v != "" {
		c.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("FORGE_MODEL")); v != "" {
		c.Model = v
	}
	if v, ok := readEnvInt("FORGE_RPM"); ok {
		c.RequestsPerMinute = v
	}
	if v, ok := readEnvInt("FORGE_TPM"); ok {
		c.TokensPerMinute = v
	}
	if v, ok := readEnvInt("FORGE_MAX_RETRIES"); ok {
		c.MaxRetries = v
	}
	if v, ok := readEnvInt("FORGE_BASE_WAIT_SEC"); ok {
		c.BaseWaitSec = v
	}
	if v, ok := readEnvInt("FORGE_MAX_WAIT_SEC"); ok {
		c.MaxWaitSec = v
	}
	if v, ok := readEnvInt("FORGE_PARALLEL"); ok {
		c.Parallel = v
	}
	if v := strings.TrimSpace(os.Getenv("FORGE_USAGE_PG_DSN")); v != "" {
		c.UsageStoreDSN = v
	}

	if v := strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT")); v != "" {
		c.Artifact.Enabled = true
		c.Artifact.Endpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("ARTIFACT_S3_REGION")); v != "" {
		c.Artifact.Region = v
	}
	if v := strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")); v != "" {
		c.Artifact.AccessKey = v
	}
	if v := strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")); v != "" {
		c.Artifact.SecretKey = v
	}
	if v := strings.TrimSpace(os.Getenv("ARTIFACT_S3_BUCKET")); v != "" {
		c.Artifact.Bucket = v
	}
	if v := strings.TrimSpace(os.Getenv("ARTIFACT_S3_USE_SSL")); v != "" {
		c.Artifact.UseSSL = strings.EqualFold(v, "true") || v == "1"
	}
}

func readEnvInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// BaseWait returns the retry base wait as a duration.
func (c *Config) BaseWait() time.Duration { return time.Duration(c.BaseWaitSec) * time.Second }

// MaxWait returns the retry wait cap as a duration.
func (c *Config) MaxWait() time.Duration { return time.Duration(c.MaxWaitSec) * time.Second }
