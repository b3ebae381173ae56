package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		cleanup  func()
		wantErr  bool
		validate func(*testing.T, *Config)
	}{
		{
			name: "load default config",
			setup: func() {
				viper.Reset()
				setTestDefaults()
			},
			cleanup: func() {
				viper.Reset()
			},
			wantErr: false,
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "ws://localhost:8080/ocpp", cfg.Fleet.CSMSURL)
				assert.Equal(t, 1, cfg.Fleet.DefaultConnectors)
				assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
				assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
			},
		},
		{
			name: "load config with environment variables",
			setup: func() {
				viper.Reset()
				setTestDefaults()
				os.Setenv("FLEET_CSMS_URL", "ws://csms.example.com/ocpp")
				os.Setenv("REDIS_ADDR", "redis:6379")
				viper.AutomaticEnv()
				viper.BindEnv("fleet.csms_url", "FLEET_CSMS_URL")
				viper.BindEnv("redis.addr", "REDIS_ADDR")
			},
			cleanup: func() {
				os.Unsetenv("FLEET_CSMS_URL")
				os.Unsetenv("REDIS_ADDR")
				viper.Reset()
			},
			wantErr: false,
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "ws://csms.example.com/ocpp", cfg.Fleet.CSMSURL)
				assert.Equal(t, "redis:6379", cfg.Redis.Addr)
			},
		},
		{
			name: "load config with custom values",
			setup: func() {
				viper.Reset()
				setTestDefaults()
				viper.Set("fleet.default_connectors", 4)
				viper.Set("transport.queue_depth", 512)
				viper.Set("ocpp.heartbeat_interval", "600s")
			},
			cleanup: func() {
				viper.Reset()
			},
			wantErr: false,
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 4, cfg.Fleet.DefaultConnectors)
				assert.Equal(t, 512, cfg.Transport.QueueDepth)
				assert.Equal(t, 600*time.Second, cfg.OCPP.HeartbeatInterval)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.cleanup()

			cfg, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
			tt.validate(t, cfg)
		})
	}
}

func TestConfig_GetMetricsAddr(t *testing.T) {
	cfg := &Config{
		Monitoring: MonitoringConfig{
			MetricsAddr: ":9090",
		},
	}

	addr := cfg.GetMetricsAddr()
	assert.Equal(t, ":9090", addr)
}

func TestConfig_GetHealthCheckAddr(t *testing.T) {
	cfg := &Config{
		Monitoring: MonitoringConfig{
			HealthCheckPort: 8081,
		},
	}

	addr := cfg.GetHealthCheckAddr()
	assert.Equal(t, ":8081", addr)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		validate func(*testing.T, *Config)
	}{
		{
			name: "validate fleet config",
			setup: func() {
				viper.Reset()
				setTestDefaults()
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.NotEmpty(t, cfg.Fleet.CSMSURL)
				assert.Greater(t, cfg.Fleet.DefaultConnectors, 0)
			},
		},
		{
			name: "validate redis config",
			setup: func() {
				viper.Reset()
				setTestDefaults()
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.NotEmpty(t, cfg.Redis.Addr)
				assert.GreaterOrEqual(t, cfg.Redis.DB, 0)
				assert.Greater(t, cfg.Redis.PoolSize, 0)
			},
		},
		{
			name: "validate kafka config",
			setup: func() {
				viper.Reset()
				setTestDefaults()
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.NotEmpty(t, cfg.Kafka.Brokers)
				assert.NotEmpty(t, cfg.Kafka.EventsTopic)
			},
		},
		{
			name: "validate transport config",
			setup: func() {
				viper.Reset()
				setTestDefaults()
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Greater(t, cfg.Transport.QueueDepth, 0)
				assert.Greater(t, cfg.Transport.BackoffMax, cfg.Transport.BackoffInitial)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer viper.Reset()

			cfg, err := Load()
			require.NoError(t, err)
			tt.validate(t, cfg)
		})
	}
}

func setTestDefaults() {
	viper.SetDefault("fleet.csms_url", "ws://localhost:8080/ocpp")
	viper.SetDefault("fleet.default_connectors", 1)
	viper.SetDefault("fleet.enable_heartbeats", true)
	viper.SetDefault("fleet.enable_meter_values", true)

	viper.SetDefault("transport.handshake_timeout", "10s")
	viper.SetDefault("transport.write_timeout", "10s")
	viper.SetDefault("transport.read_timeout", "60s")
	viper.SetDefault("transport.max_message_size", 1048576)
	viper.SetDefault("transport.queue_depth", 256)
	viper.SetDefault("transport.backoff_initial", "1s")
	viper.SetDefault("transport.backoff_max", "30s")
	viper.SetDefault("transport.backoff_jitter", 0.2)

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 100)
	viper.SetDefault("redis.min_idle_conns", 10)
	viper.SetDefault("redis.dial_timeout", "5s")
	viper.SetDefault("redis.read_timeout", "3s")
	viper.SetDefault("redis.write_timeout", "3s")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.events_topic", "fleetsim-tnr-events")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.output", "stdout")

	viper.SetDefault("monitoring.metrics_addr", ":9090")
	viper.SetDefault("monitoring.health_check_port", 8081)
	viper.SetDefault("monitoring.pprof_enabled", false)

	viper.SetDefault("ocpp.supported_versions", []string{"1.6"})
	viper.SetDefault("ocpp.heartbeat_interval", "300s")
	viper.SetDefault("ocpp.connection_timeout", "60s")
	viper.SetDefault("ocpp.message_timeout", "30s")

	viper.SetDefault("security.tls_enabled", false)
	viper.SetDefault("security.insecure_skip_verify", false)
	viper.SetDefault("security.default_bearer_token", "")
}
