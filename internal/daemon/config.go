// Package daemon wires the battery engine to its sinks and surfaces, and
// owns configuration.
package daemon

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/batfi/batfi/internal/estimator"
	"github.com/batfi/batfi/internal/infra/mqtt"
	"github.com/batfi/batfi/internal/infra/sysfs"
)

// Config holds all daemon configuration.
type Config struct {
	Battery   BatteryConfig    `toml:"battery"`
	Estimator estimator.Params `toml:"estimator"`
	Store     StoreConfig      `toml:"store"`
	API       APIConfig        `toml:"api"`
	MQTT      MQTTConfig       `toml:"mqtt"`
	Telemetry TelemetryConfig  `toml:"telemetry"`
	Logging   LoggingConfig    `toml:"logging"`
}

// BatteryConfig selects the device and the poll cadence.
type BatteryConfig struct {
	Name       string `toml:"name"` // empty = first battery found
	SysfsRoot  string `toml:"sysfs_root"`
	Interval   string `toml:"interval"`
	Duration   string `toml:"duration"` // "0s" = run until interrupted
	Format     string `toml:"format"`   // human, json, yaml
	Fahrenheit bool   `toml:"fahrenheit"`
}

// StoreConfig controls the SQLite history.
type StoreConfig struct {
	Enabled   bool   `toml:"enabled"`
	Dir       string `toml:"dir"`
	Retention string `toml:"retention"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// MQTTConfig controls snapshot publishing.
type MQTTConfig struct {
	Enabled  bool   `toml:"enabled"`
	Broker   string `toml:"broker"`
	ClientID string `toml:"client_id"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Topic    string `toml:"topic"`
	QoS      int    `toml:"qos"`
	Retained bool   `toml:"retained"`
}

// TelemetryConfig controls metrics export.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"` // info, debug
	File  string `toml:"file"`  // empty = stderr
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	homeDir := batfiHome()
	return Config{
		Battery: BatteryConfig{
			SysfsRoot: sysfs.DefaultRoot,
			Interval:  "2s",
			Duration:  "0s",
			Format:    "human",
		},
		Estimator: estimator.DefaultParams(),
		Store: StoreConfig{
			Enabled:   true,
			Dir:       homeDir,
			Retention: "720h",
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8731,
		},
		MQTT: MQTTConfig{
			Broker: "tcp://localhost:1883",
			Topic:  mqtt.DefaultTopic,
			QoS:    1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFrom reads the given file, then applies .env and BATFI_*
// environment overrides. A missing file is not an error.
func LoadConfigFrom(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("stat config: %w", err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

// SaveConfig writes the config to path.
func SaveConfig(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// PollInterval parses Battery.Interval; non-positive or invalid values
// fall back to two seconds.
func (c Config) PollInterval() time.Duration {
	d := parseDuration(c.Battery.Interval, 2*time.Second)
	if d <= 0 {
		return 2 * time.Second
	}
	return d
}

// RunDuration parses Battery.Duration. Zero means no limit.
func (c Config) RunDuration() time.Duration {
	d := parseDuration(c.Battery.Duration, 0)
	if d < 0 {
		return 0
	}
	return d
}

// RetentionPeriod parses Store.Retention. Zero disables pruning.
func (c Config) RetentionPeriod() time.Duration {
	return parseDuration(c.Store.Retention, 0)
}

// OpenOutput returns the log destination: the configured file, opened for
// append, or stderr. The returned close func is always non-nil.
func (c LoggingConfig) OpenOutput() (io.Writer, func() error, error) {
	if c.File == "" {
		return os.Stderr, func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(c.File), 0700); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, f.Close, nil
}

// Debug reports whether debug logging is on.
func (c Config) Debug() bool {
	return c.Logging.Level == "debug"
}

// ─── Environment ────────────────────────────────────────────────────────────

func applyEnv(cfg *Config) {
	cfg.Battery.Name = getEnv("BATFI_BATTERY", cfg.Battery.Name)
	cfg.Battery.SysfsRoot = getEnv("BATFI_SYSFS_ROOT", cfg.Battery.SysfsRoot)
	cfg.Battery.Interval = getEnv("BATFI_INTERVAL", cfg.Battery.Interval)
	cfg.Battery.Duration = getEnv("BATFI_DURATION", cfg.Battery.Duration)
	cfg.Battery.Format = getEnv("BATFI_FORMAT", cfg.Battery.Format)
	cfg.Battery.Fahrenheit = getEnvBool("BATFI_FAHRENHEIT", cfg.Battery.Fahrenheit)

	cfg.Store.Enabled = getEnvBool("BATFI_STORE_ENABLED", cfg.Store.Enabled)
	cfg.Store.Dir = getEnv("BATFI_STORE_DIR", cfg.Store.Dir)

	cfg.API.Host = getEnv("BATFI_API_HOST", cfg.API.Host)
	cfg.API.Port = getEnvInt("BATFI_API_PORT", cfg.API.Port)

	cfg.MQTT.Enabled = getEnvBool("BATFI_MQTT_ENABLED", cfg.MQTT.Enabled)
	cfg.MQTT.Broker = getEnv("BATFI_MQTT_BROKER", cfg.MQTT.Broker)
	cfg.MQTT.Username = getEnv("BATFI_MQTT_USERNAME", cfg.MQTT.Username)
	cfg.MQTT.Password = getEnv("BATFI_MQTT_PASSWORD", cfg.MQTT.Password)
	cfg.MQTT.Topic = getEnv("BATFI_MQTT_TOPIC", cfg.MQTT.Topic)

	cfg.Telemetry.Prometheus = getEnvBool("BATFI_PROMETHEUS", cfg.Telemetry.Prometheus)
	cfg.Logging.Level = getEnv("BATFI_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.File = getEnv("BATFI_LOG_FILE", cfg.Logging.File)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// ─── Paths ──────────────────────────────────────────────────────────────────

// batfiHome returns the batfi data directory.
func batfiHome() string {
	if env := os.Getenv("BATFI_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".batfi")
}

// ConfigPath is the default config file location.
func ConfigPath() string {
	return filepath.Join(batfiHome(), "config.toml")
}
