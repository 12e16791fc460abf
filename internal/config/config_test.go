package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultAppliesAllDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Server.WSURL == "" {
		t.Error("Server.WSURL not defaulted")
	}
	if cfg.Telemetry.Period != 30*time.Second {
		t.Errorf("Telemetry.Period = %s, want 30s", cfg.Telemetry.Period)
	}
	if cfg.Telemetry.InitialDelay != 5*time.Second {
		t.Errorf("Telemetry.InitialDelay = %s, want 5s", cfg.Telemetry.InitialDelay)
	}
	if cfg.IMU.ShakeThresholdMS2 != 14.7 {
		t.Errorf("IMU.ShakeThresholdMS2 = %v, want 14.7", cfg.IMU.ShakeThresholdMS2)
	}
	if cfg.IMU.CooldownSamples != 10 {
		t.Errorf("IMU.CooldownSamples = %d, want 10", cfg.IMU.CooldownSamples)
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  ws_url: "ws://device.local/ws"
telemetry:
  period: 10s
log_level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.WSURL != "ws://device.local/ws" {
		t.Errorf("Server.WSURL = %q", cfg.Server.WSURL)
	}
	if cfg.Telemetry.Period != 10*time.Second {
		t.Errorf("Telemetry.Period = %s, want 10s", cfg.Telemetry.Period)
	}
	// Unset field still gets a default.
	if cfg.Telemetry.InitialDelay != 5*time.Second {
		t.Errorf("Telemetry.InitialDelay = %s, want default 5s", cfg.Telemetry.InitialDelay)
	}
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "very-loud"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted an unknown log level")
	}
}

func TestValidateRequiresBrokerURLWhenMQTTEnabled(t *testing.T) {
	cfg := Default()
	cfg.MQTT.Enabled = true
	cfg.MQTT.BrokerURL = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted mqtt_mirror.enabled without a broker_url")
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]bool{
		"trace": true, "debug": true, "info": true, "": true,
		"warn": true, "warning": true, "error": true, "loud": false,
	}
	for s, wantOK := range cases {
		_, err := ParseLogLevel(s)
		if (err == nil) != wantOK {
			t.Errorf("ParseLogLevel(%q) error = %v, want ok=%v", s, err, wantOK)
		}
	}
}
