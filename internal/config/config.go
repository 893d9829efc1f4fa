// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AIConfig struct {
	OpenAIKey        string        `yaml:"openai_key"`
	OpenAIModel      string        `yaml:"openai_model"`
	GeminiKey        string        `yaml:"gemini_key"`
	GeminiURL        string        `yaml:"gemini_url"`
	GeminiModel      string        `yaml:"gemini_model"`
	AnthropicKey     string        `yaml:"anthropic_key"`
	AnthropicBaseURL string        `yaml:"anthropic_base_url"`
	AnthropicModel   string        `yaml:"anthropic_model"`
	ConcurrentLimit  int           `yaml:"concurrent_limit"` // max concurrent provider calls
	CallTimeout      time.Duration `yaml:"call_timeout"`     // per provider call
}

type QuotaConfig struct {
	LockTTL time.Duration `yaml:"lock_ttl"` // per-account lock around check/commit
}

type BatchConfig struct {
	ItemDelay time.Duration `yaml:"item_delay"` // throttle between keywords
	Workers   int           `yaml:"workers"`    // concurrent jobs across accounts
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type MetricsConfig struct {
	Port int `yaml:"port"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Quota    QuotaConfig    `yaml:"quota"`
	Batch    BatchConfig    `yaml:"batch"`
	Auth     AuthConfig     `yaml:"auth"`
	Metrics  MetricsConfig  `yaml:"metrics"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.AI.CallTimeout <= 0 {
		cfg.AI.CallTimeout = 45 * time.Second
	}
	if cfg.AI.OpenAIModel == "" {
		cfg.AI.OpenAIModel = "gpt-4o-mini"
	}
	if cfg.AI.GeminiModel == "" {
		cfg.AI.GeminiModel = "gemini-2.0-flash"
	}
	if cfg.AI.AnthropicModel == "" {
		cfg.AI.AnthropicModel = "claude-3-5-sonnet-20241022"
	}
	if cfg.AI.AnthropicBaseURL == "" {
		cfg.AI.AnthropicBaseURL = "https://api.anthropic.com/v1"
	}
	if cfg.Quota.LockTTL <= 0 {
		cfg.Quota.LockTTL = 10 * time.Second
	}
	if cfg.Batch.ItemDelay <= 0 {
		cfg.Batch.ItemDelay = 2 * time.Second
	}
	if cfg.Batch.Workers <= 0 {
		cfg.Batch.Workers = 4
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Auth.JWTSecret == "" && !dev {
		return nil, errors.New("auth.jwt_secret is required outside dev mode")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
