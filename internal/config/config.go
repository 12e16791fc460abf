// Package config handles termfw configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order: the current
// directory, the container convention, then /etc.
func DefaultSearchPaths() []string {
	return []string{
		"config.yaml",
		"/config/config.yaml",
		"/etc/termfw/config.yaml",
	}
}

// FindConfig locates a config file. If explicit is non-empty, it must
// exist. Otherwise, searches DefaultSearchPaths and returns the first
// that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all termfw configuration: the fleet-deployment knobs that
// the runtime's hardware-facing operations treat as fixed constants, but
// which a fielded device wants tunable per deployment.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	IMU       IMUConfig       `yaml:"imu"`
	MQTT      MQTTConfig      `yaml:"mqtt_mirror"`
	LogLevel  string          `yaml:"log_level"`
}

// ServerConfig holds the SDUI server connection.
type ServerConfig struct {
	WSURL string `yaml:"ws_url"`
}

// TelemetryConfig holds heartbeat timing.
type TelemetryConfig struct {
	Period       time.Duration `yaml:"period"`
	InitialDelay time.Duration `yaml:"initial_delay"`
}

// IMUConfig holds shake-detection tuning.
type IMUConfig struct {
	ShakeThresholdMS2 float64 `yaml:"shake_threshold_ms2"`
	CooldownSamples   int     `yaml:"cooldown_samples"`
}

// MQTTConfig holds the optional telemetry-mirror broker connection.
// Disabled by default; when enabled, the heartbeat already published to
// the server over WebSocket is additionally mirrored to this broker for
// fleet dashboards.
type MQTTConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BrokerURL string `yaml:"broker_url"`
	ClientID  string `yaml:"client_id"`
}

// Load reads configuration from a YAML file, applies defaults for any
// unset fields, and validates the result. After Load returns
// successfully, all fields are usable without additional checks.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// applyDefaults fills in zero-value fields with sensible fleet-wide
// defaults. Called automatically by Load and Default.
func (c *Config) applyDefaults() {
	if c.Server.WSURL == "" {
		c.Server.WSURL = "ws://localhost:8080/ws"
	}
	if c.Telemetry.Period == 0 {
		c.Telemetry.Period = 30 * time.Second
	}
	if c.Telemetry.InitialDelay == 0 {
		c.Telemetry.InitialDelay = 5 * time.Second
	}
	if c.IMU.ShakeThresholdMS2 == 0 {
		c.IMU.ShakeThresholdMS2 = 14.7
	}
	if c.IMU.CooldownSamples == 0 {
		c.IMU.CooldownSamples = 10
	}
	if c.MQTT.Enabled && c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "termfw"
	}
}

// Validate checks that the configuration is internally consistent. It
// runs after applyDefaults, so it can assume defaults are populated.
func (c *Config) Validate() error {
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	if c.Telemetry.Period <= 0 {
		return fmt.Errorf("telemetry.period must be positive, got %s", c.Telemetry.Period)
	}
	if c.IMU.CooldownSamples < 0 {
		return fmt.Errorf("imu.cooldown_samples must be non-negative, got %d", c.IMU.CooldownSamples)
	}
	if c.MQTT.Enabled && c.MQTT.BrokerURL == "" {
		return fmt.Errorf("mqtt_mirror.broker_url is required when mqtt_mirror.enabled is true")
	}
	return nil
}

// Default returns a configuration suitable for local development against
// the simulated platform. All defaults are already applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// ConfigPath returns the absolute form of path, for log messages.
func ConfigPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
