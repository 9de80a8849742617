package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DriverMySQL, cfg.Database.Driver)
	assert.Equal(t, MQDriverNone, cfg.MQ.Driver)
	assert.Equal(t, 8, cfg.Business.BatchConcurrency)
	assert.Equal(t, 30*time.Second, cfg.Business.BatchLockTTL())
	assert.Equal(t, time.Minute, cfg.Redis.ListCacheTTL())
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  driver: postgres
  host: db.internal
  port: 5432
redis:
  enabled: true
  list_cache_ttl_seconds: 15
mq:
  driver: kafka
  kafka:
    brokers: ["k1:9092", "k2:9092"]
business:
  batch_concurrency: 4
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Redis.ListCacheTTL())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.MQ.Kafka.Brokers)
	assert.Equal(t, 4, cfg.Business.BatchConcurrency)
	// 未配置的键仍取默认值
	assert.Equal(t, "bill_payment_recorded", cfg.MQ.Topic.PaymentRecorded)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "database:\n  host: from-file\n")
	t.Setenv("BILLS_DATABASE_HOST", "from-env")
	t.Setenv("BILLS_SERVER_PORT", "7000")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Database.Host)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: sqlite\n")
	_, err := LoadConfig(path)
	assert.Error(t, err)

	path = writeConfig(t, "mq:\n  driver: nats\n")
	_, err = LoadConfig(path)
	assert.Error(t, err)
}
