package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers
const (
	StoreDriverMongo  = "mongo"
	StoreDriverMemory = "memory"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Store     StoreConfig     `mapstructure:"store"`
	MongoDB   MongoDBConfig   `mapstructure:"mongodb"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RabbitMQ  RabbitMQConfig  `mapstructure:"rabbitmq"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Channel   ChannelConfig   `mapstructure:"channel"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig selects the event store backend
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

// MongoDBConfig holds MongoDB configuration
type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// RedisConfig holds the credential cache configuration. An empty Addr
// disables the cache.
type RedisConfig struct {
	Addr          string        `mapstructure:"addr"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	CredentialTTL time.Duration `mapstructure:"credential_ttl"`
}

// Enabled reports whether a Redis address was configured
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// RabbitMQConfig holds RabbitMQ configuration. An empty URL disables the
// domain event consumer.
type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
	Queue    string `mapstructure:"queue"`
}

// SchedulerConfig holds scheduled message dispatcher configuration
type SchedulerConfig struct {
	Spec string `mapstructure:"spec"`
}

// WebhookConfig holds outbound webhook delivery configuration
type WebhookConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	Workers   int           `mapstructure:"workers"`
	QueueSize int           `mapstructure:"queue_size"`
	UserAgent string        `mapstructure:"user_agent"`
}

// ChannelConfig holds the WhatsApp bridge configuration
type ChannelConfig struct {
	BridgeURL string        `mapstructure:"bridge_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// RateLimitConfig holds per-team API rate limits
type RateLimitConfig struct {
	PerTeam float64 `mapstructure:"per_team"`
	Burst   int     `mapstructure:"burst"`
}

// LoadConfig loads configuration from defaults, an optional .env file and
// environment variables (SERVER_PORT, MONGODB_URI, WEBHOOK_WORKERS, ...)
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8084")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("store.driver", StoreDriverMongo)

	v.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("mongodb.database", "whatsapp_automation")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.credential_ttl", 5*time.Minute)

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "whatsapp.events")
	v.SetDefault("rabbitmq.queue", "webhook_fanout")

	v.SetDefault("scheduler.spec", "* * * * *")

	v.SetDefault("webhook.timeout", 10*time.Second)
	v.SetDefault("webhook.workers", 8)
	v.SetDefault("webhook.queue_size", 1000)
	v.SetDefault("webhook.user_agent", "WhatsApp-Automation-Webhooks/1.0")

	v.SetDefault("channel.bridge_url", "http://localhost:3001/api/whatsapp")
	v.SetDefault("channel.timeout", 30*time.Second)

	v.SetDefault("ratelimit.per_team", 100.0)
	v.SetDefault("ratelimit.burst", 200)
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverMongo, StoreDriverMemory:
	default:
		return fmt.Errorf("unsupported store driver: %q", c.Store.Driver)
	}
	if c.Scheduler.Spec == "" {
		return fmt.Errorf("scheduler spec must not be empty")
	}
	if c.Webhook.Workers <= 0 {
		return fmt.Errorf("webhook workers must be > 0")
	}
	if c.Webhook.QueueSize <= 0 {
		return fmt.Errorf("webhook queue size must be > 0")
	}
	if c.Webhook.Timeout <= 0 {
		return fmt.Errorf("webhook timeout must be > 0")
	}
	if c.RateLimit.PerTeam <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate limit values must be > 0")
	}
	return nil
}
