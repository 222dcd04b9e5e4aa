// Package config loads the controller settings: defaults, overlaid by an
// optional JSON settings file, overlaid by environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type SensorConfig struct {
	Source            string  `json:"source"` // "mqtt" or "sim"
	MoistureThreshold float64 `json:"moisture_threshold"`
	WarnIntervalSec   float64 `json:"sensor_warning_interval"`
	MaxReadingAgeSec  float64 `json:"max_reading_age"`
	Topic             string  `json:"topic"`
	Channel           int     `json:"channel"`
}

type PumpConfig struct {
	GPIOChip         string  `json:"gpio_chip"`
	GPIOPin          int     `json:"gpio_pin"`
	InitialRunSec    float64 `json:"initial_run_duration"`
	PulseOnSec       float64 `json:"pulse_on_time"`
	PulseOffSec      float64 `json:"pulse_off_time"`
	PulseDurationSec float64 `json:"pulse_duration"`
	PostWaterWaitSec float64 `json:"post_water_wait"`
}

type SystemConfig struct {
	Plant            string              `json:"plant"`
	TickSec          float64             `json:"refresh_interval_sec"`
	CooldownHours    float64             `json:"watering_cooldown_hours"`
	RecomputeTicks   int                 `json:"threshold_recompute_ticks"`
	WateringSchedule map[string][]string `json:"watering_schedule"`
}

type MQTTConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	ClientID string `json:"client_id"`
}

type InfluxConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Token   string `json:"token"`
	Org     string `json:"org"`
	Bucket  string `json:"bucket"`
}

type HTTPConfig struct {
	Addr string `json:"addr"`
}

type Config struct {
	Sensor SensorConfig `json:"sensor"`
	Pump   PumpConfig   `json:"pump"`
	System SystemConfig `json:"system"`
	MQTT   MQTTConfig   `json:"mqtt"`
	Influx InfluxConfig `json:"influx"`
	HTTP   HTTPConfig   `json:"http"`
}

func Default() Config {
	return Config{
		Sensor: SensorConfig{
			Source:            "sim",
			MoistureThreshold: 30,
			WarnIntervalSec:   60,
			MaxReadingAgeSec:  30,
			Topic:             "sensor/moisture/#",
		},
		Pump: PumpConfig{
			GPIOChip:         "gpiochip0",
			GPIOPin:          18,
			InitialRunSec:    1.0,
			PulseOnSec:       0.3125,
			PulseOffSec:      0.3125,
			PulseDurationSec: 15.0,
			PostWaterWaitSec: 30,
		},
		System: SystemConfig{
			Plant:          "bonsai",
			TickSec:        1,
			CooldownHours:  24,
			RecomputeTicks: 60,
		},
		MQTT: MQTTConfig{
			Host:     "localhost",
			Port:     1883,
			User:     "guest",
			Password: "guest",
		},
		Influx: InfluxConfig{
			URL:    "http://localhost:8086",
			Org:    "bonsailab",
			Bucket: "bonsai",
		},
		HTTP: HTTPConfig{Addr: ":8080"},
	}
}

// Load reads path if it exists and applies env overrides. A missing file is
// not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// defaults
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := json.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.MQTT.Host = env("BONSAI_MQTT_HOST", cfg.MQTT.Host)
	cfg.MQTT.Port = envInt("BONSAI_MQTT_PORT", cfg.MQTT.Port)
	cfg.MQTT.User = env("BONSAI_MQTT_USER", cfg.MQTT.User)
	cfg.MQTT.Password = env("BONSAI_MQTT_PASSWORD", cfg.MQTT.Password)
	cfg.Influx.URL = env("BONSAI_INFLUX_URL", cfg.Influx.URL)
	cfg.Influx.Token = env("BONSAI_INFLUX_TOKEN", cfg.Influx.Token)
	cfg.Influx.Org = env("BONSAI_INFLUX_ORG", cfg.Influx.Org)
	cfg.Influx.Bucket = env("BONSAI_INFLUX_BUCKET", cfg.Influx.Bucket)
	cfg.HTTP.Addr = env("BONSAI_HTTP_ADDR", cfg.HTTP.Addr)
	cfg.System.Plant = env("BONSAI_PLANT", cfg.System.Plant)
	cfg.Sensor.MoistureThreshold = envFloat("BONSAI_MOISTURE_THRESHOLD", cfg.Sensor.MoistureThreshold)
}

func (c SensorConfig) WarnInterval() time.Duration {
	return secs(c.WarnIntervalSec)
}
func (c SensorConfig) MaxReadingAge() time.Duration {
	return secs(c.MaxReadingAgeSec)
}
func (c PumpConfig) InitialRun() time.Duration  { return secs(c.InitialRunSec) }
func (c PumpConfig) PulseOn() time.Duration     { return secs(c.PulseOnSec) }
func (c PumpConfig) PulseOff() time.Duration    { return secs(c.PulseOffSec) }
func (c PumpConfig) PulseTotal() time.Duration  { return secs(c.PulseDurationSec) }
func (c PumpConfig) PostWaterWait() time.Duration {
	return secs(c.PostWaterWaitSec)
}
func (c SystemConfig) Tick() time.Duration { return secs(c.TickSec) }
func (c SystemConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownHours * float64(time.Hour))
}

func secs(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64); err == nil {
			return f
		}
	}
	return def
}
