package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/bonsailab/bonsaictl/internal/model"
)

type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxStore persists readings and events to InfluxDB and serves the
// windowed history queries the threshold estimator needs.
type InfluxStore struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
	query  api.QueryAPI
	bucket string
	plant  string
}

func NewInfluxStore(cfg InfluxConfig, plant string) (*InfluxStore, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx config incomplete")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxStore{
		client: client,
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		query:  client.QueryAPI(cfg.Org),
		bucket: cfg.Bucket,
		plant:  plant,
	}, nil
}

func (s *InfluxStore) LogMoistureReading(ctx context.Context, r model.MoistureReading) error {
	point := influxdb2.NewPoint("moisture_reading",
		map[string]string{
			"plant":   s.plant,
			"channel": strconv.Itoa(r.Channel),
		},
		map[string]interface{}{
			"percent":   r.Percent,
			"raw_value": r.Raw,
		},
		r.Timestamp)
	return s.write.WritePoint(ctx, point)
}

func (s *InfluxStore) LogWateringEvent(ctx context.Context, e model.WateringEvent) error {
	fields := map[string]interface{}{
		"duration_seconds": e.DurationSec,
		"notes":            e.Notes,
	}
	if e.TriggerMoisture != nil {
		fields["trigger_moisture"] = *e.TriggerMoisture
	}
	point := influxdb2.NewPoint("watering_event",
		map[string]string{
			"plant":      s.plant,
			"event_type": string(e.Type),
		},
		fields,
		e.Timestamp)
	return s.write.WritePoint(ctx, point)
}

func (s *InfluxStore) LogSystemEvent(ctx context.Context, e model.SystemEvent) error {
	point := influxdb2.NewPoint("system_event",
		map[string]string{
			"plant":    s.plant,
			"category": e.Category,
			"severity": string(e.Severity),
		},
		map[string]interface{}{
			"message": e.Message,
		},
		e.Timestamp)
	return s.write.WritePoint(ctx, point)
}

func (s *InfluxStore) MoistureHistory(ctx context.Context, window time.Duration) ([]model.MoistureReading, error) {
	flux := fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%ds)
  |> filter(fn: (r) => r._measurement == "moisture_reading" and r.plant == %q)
  |> filter(fn: (r) => r._field == "percent")
  |> keep(columns: ["_time","_value","channel"])
  |> sort(columns: ["_time"])
`, s.bucket, int(window.Seconds()), s.plant)

	res, err := s.query.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("moisture history query: %w", err)
	}
	defer res.Close()

	var out []model.MoistureReading
	for res.Next() {
		rec := res.Record()
		r := model.MoistureReading{Timestamp: rec.Time(), Percent: toFloat(rec.Value())}
		if v, ok := rec.ValueByKey("channel").(string); ok {
			if ch, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				r.Channel = ch
			}
		}
		out = append(out, r)
	}
	if res.Err() != nil {
		return out, fmt.Errorf("moisture history iterate: %w", res.Err())
	}
	return out, nil
}

func (s *InfluxStore) WateringHistory(ctx context.Context, window time.Duration) ([]model.WateringEvent, error) {
	flux := fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%ds)
  |> filter(fn: (r) => r._measurement == "watering_event" and r.plant == %q)
  |> filter(fn: (r) => r._field == "duration_seconds")
  |> keep(columns: ["_time","_value","event_type"])
  |> sort(columns: ["_time"])
`, s.bucket, int(window.Seconds()), s.plant)

	res, err := s.query.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("watering history query: %w", err)
	}
	defer res.Close()

	var out []model.WateringEvent
	for res.Next() {
		rec := res.Record()
		e := model.WateringEvent{Timestamp: rec.Time(), DurationSec: toFloat(rec.Value())}
		if v, ok := rec.ValueByKey("event_type").(string); ok {
			e.Type = model.WateringTrigger(v)
		}
		out = append(out, e)
	}
	if res.Err() != nil {
		return out, fmt.Errorf("watering history iterate: %w", res.Err())
	}
	return out, nil
}

// Ready is a light dependency check for the readiness endpoint.
func (s *InfluxStore) Ready() bool {
	return s.client != nil
}

func (s *InfluxStore) Close() {
	s.client.Close()
}

func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
	}
	return 0
}
