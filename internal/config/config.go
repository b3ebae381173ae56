// Package config layers the fleet simulator's environment configuration
// (spec.md §6): default files, environment-profile overlays, then
// environment variables, unmarshalled into a typed Config via viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level process configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	PodID      string           `mapstructure:"pod_id"`
	Fleet      FleetConfig      `mapstructure:"fleet"`
	Transport  TransportConfig  `mapstructure:"transport"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	OCPP       OCPPConfig       `mapstructure:"ocpp"`
	Security   SecurityConfig   `mapstructure:"security"`
}

// AppConfig carries process identity.
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Profile string `mapstructure:"profile"`
}

// FleetConfig is the "Environment configuration" surface of spec.md §6:
// feature flags, the CSMS URL (overridable per profile or environment), and
// the number of default simulated connectors. Default intervals live in
// OCPPConfig.
type FleetConfig struct {
	CSMSURL              string `mapstructure:"csms_url"`
	DefaultConnectors    int    `mapstructure:"default_connectors"`
	EnableHeartbeats     bool   `mapstructure:"enable_heartbeats"`
	EnableMeterValues    bool   `mapstructure:"enable_meter_values"`
	VehicleCatalogueFile string `mapstructure:"vehicle_catalogue_file"`
}

// TransportConfig mirrors internal/transport.Config's tunables, so the
// reconnect/backpressure policy of spec.md §4.2 is environment-configurable
// without touching code.
type TransportConfig struct {
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	MaxMessageSize   int64         `mapstructure:"max_message_size"`
	QueueDepth       int           `mapstructure:"queue_depth"`
	BackoffInitial   time.Duration `mapstructure:"backoff_initial"`
	BackoffMax       time.Duration `mapstructure:"backoff_max"`
	BackoffJitter    float64       `mapstructure:"backoff_jitter"`
}

// RedisConfig configures the persistence adapter's backing store.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// KafkaConfig configures the TNR recorder's Kafka sink.
type KafkaConfig struct {
	Brokers        []string       `mapstructure:"brokers"`
	EventsTopic    string         `mapstructure:"events_topic"`
	Producer       ProducerConfig `mapstructure:"producer"`
}

// ProducerConfig holds producer settings for the TNR sink. NewKafkaSink does
// not read them: it applies its own fixed sarama settings.
type ProducerConfig struct {
	RetryMax       int           `mapstructure:"retry_max"`
	ReturnSuccess  bool          `mapstructure:"return_successes"`
	FlushFrequency time.Duration `mapstructure:"flush_frequency"`
}

// LogConfig configures internal/logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
	Async  bool   `mapstructure:"async"`
}

// MonitoringConfig configures the Prometheus exposition endpoint.
type MonitoringConfig struct {
	MetricsAddr     string `mapstructure:"metrics_addr"`
	HealthCheckPort int    `mapstructure:"health_check_port"`
	PprofEnabled    bool   `mapstructure:"pprof_enabled"`
}

// OCPPConfig carries the protocol-level defaults a session template falls
// back to when not overridden per-session.
type OCPPConfig struct {
	SupportedVersions         []string      `mapstructure:"supported_versions"`
	HeartbeatInterval         time.Duration `mapstructure:"heartbeat_interval"`
	MeterValueInterval        time.Duration `mapstructure:"meter_value_interval"`
	ClockAlignedDataInterval  time.Duration `mapstructure:"clock_aligned_data_interval"`
	ConnectionTimeout         time.Duration `mapstructure:"connection_timeout"`
	MessageTimeout            time.Duration `mapstructure:"message_timeout"`
}

// SecurityConfig covers the bearer-token-only authentication spec.md §1
// allows, plus TLS to the CSMS.
type SecurityConfig struct {
	TLSEnabled         bool   `mapstructure:"tls_enabled"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
	DefaultBearerToken string `mapstructure:"default_bearer_token"`
}

// Load builds a Config from defaults, an optional application.yaml / an
// environment-profile overlay, then environment-variable overrides, in
// that ascending priority order.
func Load() (*Config, error) {
	setDefaults()

	profile := getProfile()
	fmt.Printf("Loading configuration for profile: %s\n", profile)

	if err := loadConfigFile("application"); err != nil {
		fmt.Printf("Warning: Could not load default config file: %v\n", err)
	}
	if profile != "" {
		configName := fmt.Sprintf("application-%s", profile)
		if err := loadConfigFile(configName); err != nil {
			fmt.Printf("Warning: Could not load profile config file %s: %v\n", configName, err)
		}
	}

	setupEnvironmentVariables()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.App.Profile = profile

	return &cfg, nil
}

func getProfile() string {
	if profile := os.Getenv("APP_PROFILE"); profile != "" {
		return profile
	}
	if profile := viper.GetString("app.profile"); profile != "" {
		return profile
	}
	return "local"
}

func loadConfigFile(configName string) error {
	viper.SetConfigName(configName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")
	return viper.MergeInConfig()
}

func setupEnvironmentVariables() {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.BindEnv("redis.addr", "REDIS_ADDR")
	viper.BindEnv("fleet.csms_url", "FLEET_CSMS_URL")
	viper.BindEnv("log.level", "LOG_LEVEL")
	viper.BindEnv("monitoring.health_check_port", "MONITORING_HEALTH_CHECK_PORT")
	viper.BindEnv("app.profile", "APP_PROFILE")

	if kafkaBrokers := os.Getenv("KAFKA_BROKERS"); kafkaBrokers != "" {
		brokers := strings.Split(kafkaBrokers, ",")
		for i, broker := range brokers {
			brokers[i] = strings.TrimSpace(broker)
		}
		viper.Set("kafka.brokers", brokers)
	}
}

func setDefaults() {
	viper.SetDefault("app.name", "fleet-simulator")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.profile", "local")

	viper.SetDefault("fleet.csms_url", "ws://localhost:8080/ocpp")
	viper.SetDefault("fleet.default_connectors", 1)
	viper.SetDefault("fleet.enable_heartbeats", true)
	viper.SetDefault("fleet.enable_meter_values", true)
	viper.SetDefault("fleet.vehicle_catalogue_file", "configs/vehicles.yaml")

	viper.SetDefault("transport.handshake_timeout", "10s")
	viper.SetDefault("transport.write_timeout", "10s")
	viper.SetDefault("transport.read_timeout", "60s")
	viper.SetDefault("transport.max_message_size", 1048576) // 1MB
	viper.SetDefault("transport.queue_depth", 256)
	viper.SetDefault("transport.backoff_initial", "1s")
	viper.SetDefault("transport.backoff_max", "30s")
	viper.SetDefault("transport.backoff_jitter", 0.2)

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 50)
	viper.SetDefault("redis.min_idle_conns", 5)
	viper.SetDefault("redis.dial_timeout", "5s")
	viper.SetDefault("redis.read_timeout", "3s")
	viper.SetDefault("redis.write_timeout", "3s")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.events_topic", "fleetsim-tnr-events")
	viper.SetDefault("kafka.producer.retry_max", 3)
	viper.SetDefault("kafka.producer.return_successes", true)
	viper.SetDefault("kafka.producer.flush_frequency", "500ms")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.output", "stdout")

	viper.SetDefault("monitoring.metrics_addr", ":9090")
	viper.SetDefault("monitoring.health_check_port", 8081)
	viper.SetDefault("monitoring.pprof_enabled", false)

	viper.SetDefault("ocpp.supported_versions", []string{"1.6"})
	viper.SetDefault("ocpp.heartbeat_interval", "300s")
	viper.SetDefault("ocpp.meter_value_interval", "60s")
	viper.SetDefault("ocpp.clock_aligned_data_interval", "900s")
	viper.SetDefault("ocpp.connection_timeout", "60s")
	viper.SetDefault("ocpp.message_timeout", "30s")

	viper.SetDefault("security.tls_enabled", false)
	viper.SetDefault("security.insecure_skip_verify", false)
	viper.SetDefault("security.default_bearer_token", "")
}

// GetMetricsAddr returns the Prometheus exposition listen address.
func (c *Config) GetMetricsAddr() string {
	return c.Monitoring.MetricsAddr
}

// GetHealthCheckAddr returns the health-check listen address.
func (c *Config) GetHealthCheckAddr() string {
	return fmt.Sprintf(":%d", c.Monitoring.HealthCheckPort)
}

func (c *Config) IsProduction() bool {
	return c.App.Profile == "prod"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Profile == "dev"
}

func (c *Config) IsTest() bool {
	return c.App.Profile == "test" || c.App.Profile == "local"
}
