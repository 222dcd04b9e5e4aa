package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Sensor.MoistureThreshold != 30 {
		t.Errorf("threshold: got %v, want 30", cfg.Sensor.MoistureThreshold)
	}
	if got := cfg.Pump.PulseOn(); got != 312500*time.Microsecond {
		t.Errorf("pulse on: got %v, want 312.5ms", got)
	}
	if got := cfg.Pump.PulseTotal(); got != 15*time.Second {
		t.Errorf("pulse total: got %v, want 15s", got)
	}
	if got := cfg.System.Cooldown(); got != 24*time.Hour {
		t.Errorf("cooldown: got %v, want 24h", got)
	}
	if got := cfg.System.Tick(); got != time.Second {
		t.Errorf("tick: got %v, want 1s", got)
	}
	if got := cfg.Pump.PostWaterWait(); got != 30*time.Second {
		t.Errorf("post-water wait: got %v, want 30s", got)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Sensor.MoistureThreshold != 30 {
		t.Errorf("threshold: got %v, want default 30", cfg.Sensor.MoistureThreshold)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	body := `{
		"sensor": {"moisture_threshold": 25},
		"system": {"watering_cooldown_hours": 12, "watering_schedule": {"monday": ["07:30"]}},
		"http": {"addr": ":9090"}
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sensor.MoistureThreshold != 25 {
		t.Errorf("threshold: got %v, want 25", cfg.Sensor.MoistureThreshold)
	}
	if cfg.System.Cooldown() != 12*time.Hour {
		t.Errorf("cooldown: got %v, want 12h", cfg.System.Cooldown())
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("http addr: got %q, want :9090", cfg.HTTP.Addr)
	}
	// Untouched sections keep their defaults.
	if cfg.Pump.PulseTotal() != 15*time.Second {
		t.Errorf("pulse total: got %v, want default 15s", cfg.Pump.PulseTotal())
	}
	if len(cfg.System.WateringSchedule["monday"]) != 1 {
		t.Errorf("schedule: got %v", cfg.System.WateringSchedule)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed file should error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BONSAI_MQTT_HOST", "broker.local")
	t.Setenv("BONSAI_MQTT_PORT", "8883")
	t.Setenv("BONSAI_PLANT", "ficus")
	t.Setenv("BONSAI_MOISTURE_THRESHOLD", "27,5")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MQTT.Host != "broker.local" {
		t.Errorf("mqtt host: got %q", cfg.MQTT.Host)
	}
	if cfg.MQTT.Port != 8883 {
		t.Errorf("mqtt port: got %d", cfg.MQTT.Port)
	}
	if cfg.System.Plant != "ficus" {
		t.Errorf("plant: got %q", cfg.System.Plant)
	}
	// Comma decimal separators are tolerated.
	if cfg.Sensor.MoistureThreshold != 27.5 {
		t.Errorf("threshold: got %v, want 27.5", cfg.Sensor.MoistureThreshold)
	}
}

func TestEnvBadValuesIgnored(t *testing.T) {
	t.Setenv("BONSAI_MQTT_PORT", "not-a-port")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MQTT.Port != 1883 {
		t.Errorf("mqtt port: got %d, want default 1883", cfg.MQTT.Port)
	}
}
