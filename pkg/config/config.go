package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig
	SQLite       SQLiteConfig
	Redis        RedisConfig
	Cache        CacheConfig
	Orchestrator OrchestratorConfig
	Providers    []ProviderConfig
	Payload      PayloadConfig
	RateLimit    RateLimitConfig
	Logging      LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
	Environment  string
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

type CacheConfig struct {
	// Backend is one of sqlite, redis or memory.
	Backend                string
	RetentionDays          int
	CleanupIntervalMinutes int
}

type OrchestratorConfig struct {
	MaxRetries        int
	RetryDelayMs      int
	MaxBackoffMs      int
	BackoffMultiplier float64
}

type ProviderConfig struct {
	Name      string
	Kind      string
	BaseURL   string
	APIKey    string
	APIKeyEnv string
	Models    []ModelConfig
}

type ModelConfig struct {
	Name            string
	TimeoutSec      int
	MaxTokens       int
	Temperature     float32
	TopP            float32
	CostPer1KTokens float64
}

type PayloadConfig struct {
	Dir         string
	PromptsFile string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/keyfindings")

	viper.SetEnvPrefix("KEYFINDINGS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the settings the engine cannot run without.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Orchestrator.MaxRetries < 1 {
		return fmt.Errorf("orchestrator.maxRetries must be at least 1, got %d", c.Orchestrator.MaxRetries)
	}
	if c.Cache.RetentionDays < 1 {
		return fmt.Errorf("cache.retentionDays must be at least 1, got %d", c.Cache.RetentionDays)
	}
	if c.Cache.CleanupIntervalMinutes < 1 {
		return fmt.Errorf("cache.cleanupIntervalMinutes must be at least 1, got %d", c.Cache.CleanupIntervalMinutes)
	}
	for _, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider without name")
		}
		for _, m := range p.Models {
			if m.TimeoutSec <= 0 || m.MaxTokens <= 0 {
				return fmt.Errorf("model %s/%s: timeoutSec and maxTokens must be positive", p.Name, m.Name)
			}
		}
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 180)
	viper.SetDefault("server.bodyLimit", 1048576)
	viper.SetDefault("server.environment", "production")

	viper.SetDefault("sqlite.path", "./data/keyfindings.db")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.prefix", "keyfindings")

	viper.SetDefault("cache.backend", "sqlite")
	viper.SetDefault("cache.retentionDays", 30)
	viper.SetDefault("cache.cleanupIntervalMinutes", 360)

	viper.SetDefault("orchestrator.maxRetries", 3)
	viper.SetDefault("orchestrator.retryDelayMs", 2000)
	viper.SetDefault("orchestrator.maxBackoffMs", 10000)
	viper.SetDefault("orchestrator.backoffMultiplier", 2.0)

	viper.SetDefault("payload.dir", "./data/payloads")
	viper.SetDefault("payload.promptsFile", "")

	viper.SetDefault("rateLimit.requestsPerMinute", 30)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
