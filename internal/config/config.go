package config

import (
	"fmt"
	"time"

	"mailclassifier/pkg/config"
)

// WorkerConfig email.received 消费者配置
type WorkerConfig struct {
	Queue           string `yaml:"queue"`
	MaxRetries      int64  `yaml:"max_retries"`
	DedupTTLSeconds int    `yaml:"dedup_ttl_seconds"`
}

type Config struct {
	DB      config.DBConfig      `yaml:"db"`
	MQ      config.MQConfig      `yaml:"mq"`
	Redis   config.RedisConfig   `yaml:"redis"`
	Server  config.ServerConfig  `yaml:"server"`
	Gateway config.GatewayConfig `yaml:"gateway"`
	Cache   config.CacheConfig   `yaml:"cache"`
	Otel    config.OtelConfig    `yaml:"otel"`
	Worker  WorkerConfig         `yaml:"worker"`
}

// Load reads config/<CONFIG_ENV>.yaml on top of config/base.yaml, then applies env overrides.
func Load() (*Config, error) {
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")
	return LoadFrom(env, configDir)
}

func LoadFrom(env, configDir string) (*Config, error) {
	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var cfg Config
	if err := config.Decode(cfgMap, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// 环境变量覆盖（优先级最高）
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideGatewayFromEnv(&cfg.Gateway)
	config.OverrideOtelFromEnv(&cfg.Otel)

	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Worker.Queue == "" {
		cfg.Worker.Queue = "email.received.classify.q"
	}
	if cfg.Otel.ServiceName == "" {
		cfg.Otel.ServiceName = "mail-classifier"
	}
	return &cfg, nil
}

// CacheTTL returns the verdict cache TTL, defaulting to 24h.
func (c *Config) CacheTTL() time.Duration {
	if c.Cache.TTLSeconds <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// DedupTTL returns how long a processed message id is remembered, defaulting to 1h.
func (c *Config) DedupTTL() time.Duration {
	if c.Worker.DedupTTLSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(c.Worker.DedupTTLSeconds) * time.Second
}
