package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envOf(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.Database.UsePostgres())
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.Database.TxMaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Database.TxTimeout)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "contact-events", cfg.Kafka.Topic)
	assert.Equal(t, 256, cfg.Audit.Buffer)
	assert.Equal(t, 120, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"CONTACTLINK_ADDR":    ":9090",
		"DATABASE_URL":        "postgres://u:p@db/contacts",
		"KAFKA_BROKERS":       "k1:9092, k2:9092,,",
		"RATE_LIMIT_WINDOW":   "30s",
		"RATE_LIMIT_DISABLED": "true",
		"LOG_FORMAT":          "TEXT",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.True(t, cfg.Database.UsePostgres())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.True(t, cfg.RateLimit.Disabled)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestFromEnv_ReportsEveryBadValue(t *testing.T) {
	_, err := FromEnv(envOf(map[string]string{
		"TX_MAX_ATTEMPTS":     "many",
		"RATE_LIMIT_WINDOW":   "soon",
		"RATE_LIMIT_DISABLED": "maybe",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TX_MAX_ATTEMPTS")
	assert.Contains(t, err.Error(), "RATE_LIMIT_WINDOW")
	assert.Contains(t, err.Error(), "RATE_LIMIT_DISABLED")
}

func TestFromEnv_Validation(t *testing.T) {
	_, err := FromEnv(envOf(map[string]string{"RATE_LIMIT_REQUESTS": "0"}))
	assert.ErrorContains(t, err, "RATE_LIMIT_REQUESTS must be positive")

	_, err = FromEnv(envOf(map[string]string{"LOG_FORMAT": "xml"}))
	assert.ErrorContains(t, err, "LOG_FORMAT")
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("KAFKA_TOPIC=from-dotenv\nCONTACTLINK_ADDR=:7000\n"), 0o600))
	t.Setenv("CONTACTLINK_ADDR", ":6000")
	t.Setenv("KAFKA_TOPIC", "")
	require.NoError(t, os.Unsetenv("KAFKA_TOPIC"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Kafka.Topic)
	assert.Equal(t, ":6000", cfg.Server.Addr, "existing variables win over .env")

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err, "a missing .env is not an error")
}
