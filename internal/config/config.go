package config

import (
	"bytes"
	_ "embed"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	StoreID  string         `mapstructure:"store_id"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Central  CentralConfig  `mapstructure:"central"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
	Health   HealthConfig   `mapstructure:"health"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	HTTP     HTTPConfig     `mapstructure:"http"`
}

// ---- Leaf structs ----

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite3 | mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type CentralConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	HealthURL      string        `mapstructure:"health_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxHTTPRetries int           `mapstructure:"max_http_retries"`
	BackoffBase    time.Duration `mapstructure:"backoff_base"`
	Breaker        BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	FailThreshold int           `mapstructure:"fail_threshold"`
	OpenFor       time.Duration `mapstructure:"open_for"`
}

type SyncConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	BatchSize        int           `mapstructure:"batch_size"`
	MaxRetryAttempts int           `mapstructure:"max_retry_attempts"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
}

type CleanupConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	RetentionDays int           `mapstructure:"retention_days"`
}

type HealthConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	PendingThreshold  int  `mapstructure:"pending_threshold"`
	FailuresThreshold int  `mapstructure:"failures_threshold"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies
// env overrides (POSSYNC_*). Absent optional settings keep the documented
// defaults from defaults.yaml.
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (POSSYNC_*)
	v.SetEnvPrefix("POSSYNC")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
