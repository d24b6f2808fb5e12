// Package config loads service settings from the environment, an optional
// .env file and an optional config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config groups every section of the service configuration.
type Config struct {
	App     AppConfig
	Storage StorageConfig
	Events  EventsConfig
	Auth    AuthConfig
	Jobs    JobsConfig
	Outbox  OutboxConfig
}

// AppConfig holds process-level settings.
type AppConfig struct {
	Env      string // development, staging, production
	Port     int
	LogLevel string
}

// IsDevelopment reports whether the console log encoder should be used.
func (c AppConfig) IsDevelopment() bool { return c.Env == "development" }

// Addr returns the HTTP listen address.
func (c AppConfig) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// StorageConfig selects and sizes the storage driver. FixturesPath seeds
// the collaborator catalogs of the memory driver from a JSON file.
type StorageConfig struct {
	Driver       string
	DSN          string
	MaxConns     int32
	MinConns     int32
	FixturesPath string
	// CatalogCache caches catalog lookups of the postgres driver
	CatalogCache bool
}

// Event sinks.
const (
	SinkLog     = "log"
	SinkWebhook = "webhook"
	SinkKafka   = "kafka"
	SinkOutbox  = "outbox"
	SinkAudit   = "audit"
)

// EventsConfig configures the dispatcher and its sinks.
type EventsConfig struct {
	Sinks          []string
	BufferSize     int
	Workers        int
	WebhookURL     string
	WebhookTimeout time.Duration
	KafkaBrokers   []string
	KafkaTopic     string
}

// Has reports whether sink is enabled.
func (c EventsConfig) Has(sink string) bool {
	for _, s := range c.Sinks {
		if s == sink {
			return true
		}
	}
	return false
}

// AuthConfig configures bearer-token checks. An empty secret disables them.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// JobsConfig configures the periodic jobs of the server.
type JobsConfig struct {
	ExpiryScanInterval time.Duration
	ExpiringWindowDays int
	ReconcileInterval  time.Duration
}

// OutboxConfig configures the worker's relay.
type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxRetries   int
}

// Load reads the configuration. Environment variables use the upper-cased
// key with dots replaced by underscores (storage.dsn -> STORAGE_DSN).
func Load() (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("stockcore")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Env:      v.GetString("app.env"),
			Port:     v.GetInt("app.port"),
			LogLevel: v.GetString("app.log_level"),
		},
		Storage: StorageConfig{
			Driver:   strings.ToLower(v.GetString("storage.driver")),
			DSN:      v.GetString("storage.dsn"),
			MaxConns: v.GetInt32("storage.max_conns"),
			MinConns: v.GetInt32("storage.min_conns"),

			FixturesPath: v.GetString("storage.fixtures"),
			CatalogCache: v.GetBool("storage.catalog_cache"),
		},
		Events: EventsConfig{
			Sinks:          list(v.GetString("events.sinks")),
			BufferSize:     v.GetInt("events.buffer_size"),
			Workers:        v.GetInt("events.workers"),
			WebhookURL:     v.GetString("events.webhook_url"),
			WebhookTimeout: v.GetDuration("events.webhook_timeout"),
			KafkaBrokers:   list(v.GetString("events.kafka_brokers")),
			KafkaTopic:     v.GetString("events.kafka_topic"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
			Issuer:    v.GetString("auth.issuer"),
		},
		Jobs: JobsConfig{
			ExpiryScanInterval: v.GetDuration("jobs.expiry_scan_interval"),
			ExpiringWindowDays: v.GetInt("jobs.expiring_window_days"),
			ReconcileInterval:  v.GetDuration("jobs.reconcile_interval"),
		},
		Outbox: OutboxConfig{
			PollInterval: v.GetDuration("outbox.poll_interval"),
			BatchSize:    v.GetInt("outbox.batch_size"),
			MaxRetries:   v.GetInt("outbox.max_retries"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.log_level", "info")

	v.SetDefault("storage.driver", DriverMemory)
	v.SetDefault("storage.max_conns", 25)
	v.SetDefault("storage.min_conns", 2)
	v.SetDefault("storage.catalog_cache", true)

	v.SetDefault("events.sinks", SinkLog)
	v.SetDefault("events.buffer_size", 1024)
	v.SetDefault("events.workers", 4)
	v.SetDefault("events.webhook_timeout", 10*time.Second)
	v.SetDefault("events.kafka_topic", "stockcore.events")

	v.SetDefault("auth.issuer", "stockcore")

	v.SetDefault("jobs.expiry_scan_interval", time.Hour)
	v.SetDefault("jobs.expiring_window_days", 30)
	v.SetDefault("jobs.reconcile_interval", 15*time.Minute)

	v.SetDefault("outbox.poll_interval", 2*time.Second)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.max_retries", 5)
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
		if c.Events.Has(SinkOutbox) || c.Events.Has(SinkAudit) {
			return errors.New("config: outbox and audit sinks need the postgres storage driver")
		}
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return errors.New("config: storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Events.Has(SinkWebhook) && c.Events.WebhookURL == "" {
		return errors.New("config: events.webhook_url is required for the webhook sink")
	}
	if c.Events.Has(SinkKafka) && len(c.Events.KafkaBrokers) == 0 {
		return errors.New("config: events.kafka_brokers is required for the kafka sink")
	}
	return nil
}

// list splits a comma-separated value, dropping blanks.
func list(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
