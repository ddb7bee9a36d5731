package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("KAFKA_BROKERS", "")
	cfg := Load()

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Redis.ClaimHold)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Len(t, cfg.Kafka.Topics.All(), 5)
	assert.Empty(t, cfg.Admin.Email, "admin identity has no built-in default")
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("CLAIM_HOLD_SECONDS", "5")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("ADMIN_EMAIL", "admin@example.com")
	t.Setenv("PUBLIC_BASE_URL", "https://rifas.example.com/")
	t.Setenv("JWT_TTL_MINUTES", "not-a-number")

	cfg := Load()

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Redis.ClaimHold)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "admin@example.com", cfg.Admin.Email)
	assert.Equal(t, "https://rifas.example.com", cfg.Assets.PublicBaseURL)
	assert.Equal(t, 120*time.Minute, cfg.Admin.TokenTTL)
}
