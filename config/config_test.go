package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Service:   ServiceConfig{Name: "user-service", Port: "8080", Env: "development"},
		Tracing:   TracingConfig{Enabled: true, Endpoint: "localhost:4318", SampleRate: 0.5},
		Profiling: ProfilingConfig{Enabled: false},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
		Metrics:   MetricsConfig{Enabled: true, Path: "/metrics"},
		Store: StoreConfig{
			Driver:      StoreDriverMongo,
			URI:         "mongodb://localhost:27017",
			Database:    "user-service",
			Collection:  "users",
			MaxPoolSize: 10,
		},
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	t.Setenv("STORE_DRIVER", "")

	cfg := Load()

	assert.Equal(t, "user-service", cfg.Service.Name)
	assert.Equal(t, "8080", cfg.Service.Port)
	assert.Equal(t, StoreDriverMongo, cfg.Store.Driver)
	assert.Equal(t, "users", cfg.Store.Collection)
	assert.Equal(t, 10*time.Second, cfg.Store.ConnectTimeout)
	assert.Equal(t, uint64(100), cfg.Store.MaxPoolSize)
	assert.Equal(t, 10*time.Second, cfg.GetShutdownTimeoutDuration())
	assert.Equal(t, 5*time.Second, cfg.GetReadinessDrainDelayDuration())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SERVICE_NAME", "users")
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("MONGO_DATABASE", "rust-server")
	t.Setenv("MONGO_CONNECT_TIMEOUT", "3s")
	t.Setenv("MONGO_MAX_POOL_SIZE", "7")
	t.Setenv("TRACING_ENABLED", "no")
	t.Setenv("READINESS_DRAIN_DELAY", "2m")

	cfg := Load()

	assert.Equal(t, "users", cfg.Service.Name)
	assert.Equal(t, "users", cfg.Tracing.ServiceName)
	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.Equal(t, "mongodb://db:27017", cfg.Store.URI)
	assert.Equal(t, "rust-server", cfg.Store.Database)
	assert.Equal(t, 3*time.Second, cfg.Store.ConnectTimeout)
	assert.Equal(t, uint64(7), cfg.Store.MaxPoolSize)
	assert.False(t, cfg.Tracing.Enabled)
	// over the 30s cap, falls back to default
	assert.Equal(t, 5, cfg.ReadinessDrainDelay)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "memory store needs no uri", mutate: func(c *Config) {
			c.Store.Driver = StoreDriverMemory
			c.Store.URI = ""
		}},
		{name: "missing uri", mutate: func(c *Config) { c.Store.URI = "" }, wantErr: "MONGO_URI is required"},
		{name: "bad uri scheme", mutate: func(c *Config) { c.Store.URI = "postgres://x" }, wantErr: "MONGO_URI must start with"},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "redis" }, wantErr: "STORE_DRIVER must be one of"},
		{name: "empty collection", mutate: func(c *Config) { c.Store.Collection = "" }, wantErr: "MONGO_COLLECTION"},
		{name: "bad port", mutate: func(c *Config) { c.Service.Port = "http" }, wantErr: "PORT must be a valid number"},
		{name: "bad sample rate", mutate: func(c *Config) { c.Tracing.SampleRate = 2 }, wantErr: "OTEL_SAMPLE_RATE"},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "trace" }, wantErr: "LOG_LEVEL"},
		{name: "unknown service", mutate: func(c *Config) { c.Service.Name = "unknown" }, wantErr: "SERVICE_NAME"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Service.Port = ""
	cfg.Store.URI = ""

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "MONGO_URI")
}
