package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("OPERATOR_ID", "1000")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "florist")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "florist")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(1000), cfg.OperatorID)
	assert.Equal(t, SessionBackendMemory, cfg.SessionBackend)
	assert.Equal(t, time.Hour, cfg.ProductCacheTTL)
	assert.Equal(t, "reports", cfg.ReportsDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, "florist.orders", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "host=localhost port=5432 user=florist password=secret dbname=florist sslmode=disable", cfg.Database.DSN())
}

func TestLoadKafkaBrokers(t *testing.T) {
	setRequired(t)
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadRequiresToken(t *testing.T) {
	setRequired(t)
	t.Setenv("TELEGRAM_TOKEN", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory backend", Config{OperatorID: 1, SessionBackend: SessionBackendMemory}, false},
		{"redis backend", Config{OperatorID: 1, SessionBackend: SessionBackendRedis, Redis: Redis{Addr: "localhost:6379"}}, false},
		{"redis without address", Config{OperatorID: 1, SessionBackend: SessionBackendRedis}, true},
		{"unknown backend", Config{OperatorID: 1, SessionBackend: "etcd"}, true},
		{"no operator", Config{SessionBackend: SessionBackendMemory}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
