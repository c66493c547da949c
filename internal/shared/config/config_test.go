package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "8084", cfg.Server.Port)
	assert.Equal(t, StoreDriverMongo, cfg.Store.Driver)
	assert.Equal(t, "* * * * *", cfg.Scheduler.Spec)
	assert.Equal(t, 10*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, 8, cfg.Webhook.Workers)
	assert.Equal(t, 1000, cfg.Webhook.QueueSize)
	assert.Equal(t, "whatsapp.events", cfg.RabbitMQ.Exchange)
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("WEBHOOK_TIMEOUT", "3s")
	t.Setenv("WEBHOOK_WORKERS", "2")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("SCHEDULER_SPEC", "@every 10s")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.Equal(t, 3*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, 2, cfg.Webhook.Workers)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "@every 10s", cfg.Scheduler.Spec)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown store driver", "STORE_DRIVER", "postgres"},
		{"zero workers", "WEBHOOK_WORKERS", "0"},
		{"zero queue", "WEBHOOK_QUEUE_SIZE", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := load(viper.New())
			assert.Error(t, err)
		})
	}
}
