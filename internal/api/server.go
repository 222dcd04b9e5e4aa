// Package api exposes the controller over HTTP: status snapshot, health,
// readiness, Prometheus metrics, manual watering and schedule management.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bonsailab/bonsaictl/internal/automation"
	"github.com/bonsailab/bonsaictl/internal/storage"
)

// Engine is the controller surface the HTTP layer consumes.
type Engine interface {
	Status() automation.Status
	ManualWater(ctx context.Context, duration time.Duration, pulse bool) error
	SetSchedule(entries map[string][]string) error
	ResetCooldown()
}

// Deps carries the optional dependencies the health and summary endpoints
// report on.
type Deps struct {
	MQTT     mqtt.Client          // nil when running without a broker
	StoreOK  func() bool          // nil means always ok
	Memory   *storage.MemoryStore // nil when Influx-backed; disables /summary
	Registry *prometheus.Registry
}

func NewMux(eng Engine, deps Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		type status struct {
			Status        string `json:"status"`
			Running       bool   `json:"running"`
			MQTTConnected bool   `json:"mqtt_connected"`
			StoreOK       bool   `json:"store_ok"`
		}
		st := status{
			Running:       eng.Status().Running,
			MQTTConnected: deps.MQTT == nil || deps.MQTT.IsConnectionOpen(),
			StoreOK:       deps.StoreOK == nil || deps.StoreOK(),
		}
		switch {
		case st.Running && st.MQTTConnected && st.StoreOK:
			st.Status = "ok"
		case st.Running:
			st.Status = "degraded"
		default:
			st.Status = "down"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(st)
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ready := eng.Status().Running &&
			(deps.MQTT == nil || deps.MQTT.IsConnectionOpen()) &&
			(deps.StoreOK == nil || deps.StoreOK())
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"ready": ready})
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(eng.Status())
	})

	// POST /water?seconds=2.5&pulse=true
	mux.HandleFunc("/water", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var duration time.Duration
		if s := r.URL.Query().Get("seconds"); s != "" {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil || f <= 0 || f > 300 {
				http.Error(w, "invalid seconds", http.StatusBadRequest)
				return
			}
			duration = time.Duration(f * float64(time.Second))
		}
		pulse := r.URL.Query().Get("pulse") != "false"

		err := eng.ManualWater(r.Context(), duration, pulse)
		switch {
		case errors.Is(err, automation.ErrWateringInProgress):
			http.Error(w, err.Error(), http.StatusConflict)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})

	mux.HandleFunc("/schedule", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(eng.Status().Schedule)
		case http.MethodPut, http.MethodPost:
			var entries map[string][]string
			if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
				http.Error(w, "invalid schedule body", http.StatusBadRequest)
				return
			}
			if err := eng.SetSchedule(entries); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/cooldown/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		eng.ResetCooldown()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})

	// GET /summary?date=2026-08-29 — memory store only.
	mux.HandleFunc("/summary", func(w http.ResponseWriter, r *http.Request) {
		if deps.Memory == nil {
			http.Error(w, "summary unavailable for this store", http.StatusNotImplemented)
			return
		}
		day := time.Now()
		if s := r.URL.Query().Get("date"); s != "" {
			d, err := time.Parse("2006-01-02", s)
			if err != nil {
				http.Error(w, "invalid date", http.StatusBadRequest)
				return
			}
			day = d
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(deps.Memory.DailySummary(day))
	})

	if deps.Registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	return mux
}
