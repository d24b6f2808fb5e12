package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir mirrors testing.T.Chdir (Go 1.24+): it changes the working
// directory and restores the original one when the test finishes.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.True(t, cfg.Storage.CatalogCache)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.True(t, cfg.App.IsDevelopment())
	assert.Equal(t, []string{SinkLog}, cfg.Events.Sinks)
	assert.Equal(t, 10*time.Second, cfg.Events.WebhookTimeout)
	assert.Equal(t, 30, cfg.Jobs.ExpiringWindowDays)
	assert.Empty(t, cfg.Auth.JWTSecret)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STORAGE_DRIVER", "Postgres")
	t.Setenv("STORAGE_DSN", "postgres://stock@localhost/stock")
	t.Setenv("EVENTS_SINKS", "log, outbox ,kafka")
	t.Setenv("EVENTS_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("JOBS_RECONCILE_INTERVAL", "90s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, []string{"log", "outbox", "kafka"}, cfg.Events.Sinks)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.KafkaBrokers)
	assert.Equal(t, 90*time.Second, cfg.Jobs.ReconcileInterval)
	assert.True(t, cfg.Events.Has(SinkOutbox))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"memory ok", func(*Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "sqlite" }, "unknown storage driver"},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = DriverPostgres }, "storage.dsn"},
		{"outbox on memory", func(c *Config) { c.Events.Sinks = []string{SinkOutbox} }, "postgres storage driver"},
		{"webhook without url", func(c *Config) { c.Events.Sinks = []string{SinkWebhook} }, "webhook_url"},
		{"kafka without brokers", func(c *Config) { c.Events.Sinks = []string{SinkKafka} }, "kafka_brokers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Storage: StorageConfig{Driver: DriverMemory}}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
