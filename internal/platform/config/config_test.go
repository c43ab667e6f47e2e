package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Run("defaults keep optional backends off", func(t *testing.T) {
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Addr)
		assert.Empty(t, cfg.PostgresDSN)
		assert.Empty(t, cfg.Redis.URL)
		assert.Empty(t, cfg.Kafka.Brokers)
		assert.Equal(t, "custos.ledger", cfg.Kafka.Topic)
		assert.Empty(t, cfg.AdminTokenHash)
		assert.Equal(t, 10*time.Second, cfg.HTTP.ReadTimeout)
		assert.Equal(t, 2*time.Minute, cfg.HTTP.IdleTimeout)
	})

	t.Run("reads prefixed backend settings", func(t *testing.T) {
		t.Setenv("CUSTOS_ADDR", ":9090")
		t.Setenv("CUSTOS_POSTGRES_DSN", "postgres://localhost/custos")
		t.Setenv("CUSTOS_REDIS_URL", "redis://localhost:6379/0")
		t.Setenv("CUSTOS_REDIS_POOL_SIZE", "25")
		t.Setenv("CUSTOS_KAFKA_BROKERS", "broker-1:9092,broker-2:9092")
		t.Setenv("CUSTOS_KAFKA_COMMIT_TIMEOUT", "2s")
		t.Setenv("CUSTOS_HTTP_WRITE_TIMEOUT", "45s")

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, ":9090", cfg.Addr)
		assert.Equal(t, "postgres://localhost/custos", cfg.PostgresDSN)
		assert.Equal(t, 25, cfg.Redis.PoolSize)
		assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
		assert.Equal(t, 2*time.Second, cfg.Kafka.CommitTimeout)
		assert.Equal(t, 45*time.Second, cfg.HTTP.WriteTimeout)
	})
}
