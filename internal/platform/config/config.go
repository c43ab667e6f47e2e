// Package config loads service configuration from environment variables so
// main stays lean.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures everything the server needs to wire itself. Empty optional
// backends (Postgres, Redis, Kafka) select the in-memory fallbacks, which
// keeps dev runs dependency-free.
type Config struct {
	Addr           string `env:"CUSTOS_ADDR" envDefault:":8080"`
	AdminTokenHash string `env:"CUSTOS_ADMIN_TOKEN_HASH"`
	JWTSigningKey  string `env:"CUSTOS_JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`

	PostgresDSN string `env:"CUSTOS_POSTGRES_DSN"`

	HTTP  HTTPConfig  `envPrefix:"CUSTOS_HTTP_"`
	Redis RedisConfig `envPrefix:"CUSTOS_REDIS_"`
	Kafka KafkaConfig `envPrefix:"CUSTOS_KAFKA_"`

	OTelEndpoint string `env:"CUSTOS_OTEL_ENDPOINT"`
}

// HTTPConfig tunes the server's connection timeouts.
type HTTPConfig struct {
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" envDefault:"2m"`
}

// RedisConfig configures the content-store backend.
type RedisConfig struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
}

// KafkaConfig configures the durable-ledger backend.
type KafkaConfig struct {
	Brokers       []string      `env:"BROKERS"`
	Topic         string        `env:"TOPIC" envDefault:"custos.ledger"`
	CommitTimeout time.Duration `env:"COMMIT_TIMEOUT" envDefault:"5s"`
	MaxRetries    int           `env:"MAX_RETRIES" envDefault:"3"`
	RetryBackoff  time.Duration `env:"RETRY_BACKOFF" envDefault:"100ms"`
}

// FromEnv parses the full configuration from the environment.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
