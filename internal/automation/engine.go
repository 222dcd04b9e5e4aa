package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bonsailab/bonsaictl/internal/model"
)

// ErrWateringInProgress is returned when a watering request arrives while an
// actuation sequence is already in flight. Requests are rejected, not
// queued; see DESIGN.md.
var ErrWateringInProgress = errors.New("automation: watering already in progress")

// Config carries the control-loop tuning. Zero values fall back to the
// defaults below.
type Config struct {
	MoistureThreshold  float64       // initial adaptive threshold seed
	SensorWarnInterval time.Duration // min gap between SENSOR_WARNING events
	InitialRunDuration time.Duration // continuous pump run at cycle start
	PulseOnTime        time.Duration
	PulseOffTime       time.Duration
	PulseDuration      time.Duration // total pulsed-delivery time
	SettleDelay        time.Duration // pause between initial run and pulsing
	PostWaterWait      time.Duration // pause after a cycle before resuming
	Cooldown           time.Duration
	TickInterval       time.Duration
	RecomputeTicks     int // threshold recompute cadence, in ticks
	StopTimeout        time.Duration
}

func (c *Config) applyDefaults() {
	if c.MoistureThreshold <= 0 {
		c.MoistureThreshold = 30
	}
	if c.SensorWarnInterval <= 0 {
		c.SensorWarnInterval = 60 * time.Second
	}
	if c.InitialRunDuration <= 0 {
		c.InitialRunDuration = time.Second
	}
	if c.PulseOnTime <= 0 {
		c.PulseOnTime = 312500 * time.Microsecond
	}
	if c.PulseOffTime <= 0 {
		c.PulseOffTime = 312500 * time.Microsecond
	}
	if c.PulseDuration <= 0 {
		c.PulseDuration = 15 * time.Second
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 500 * time.Millisecond
	}
	if c.PostWaterWait <= 0 {
		c.PostWaterWait = 30 * time.Second
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 24 * time.Hour
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.RecomputeTicks <= 0 {
		c.RecomputeTicks = 60
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 5 * time.Second
	}
}

type StateCallback func(old, new model.PlantState)
type MoistureCallback func(percent float64)

// Status is a consistent snapshot of the engine's runtime state.
type Status struct {
	Running           bool                `json:"running"`
	State             model.PlantState    `json:"current_state"`
	LastMoisture      *float64            `json:"last_moisture"`
	AdaptiveThreshold float64             `json:"adaptive_threshold"`
	LowReadings       int                 `json:"consecutive_low_readings"`
	Actuating         bool                `json:"automation_active"`
	CanWater          bool                `json:"can_water"`
	Schedule          map[string][]string `json:"schedule"`
	PumpRuntimeSec    float64             `json:"pump_runtime_seconds"`
}

// Engine owns the control loop: it polls the sensor, classifies the plant
// state, decides on watering and drives the pump. All runtime state is
// mutated by the loop goroutine only; readers get snapshots via Status.
type Engine struct {
	cfg      Config
	sensor   MoistureSensor
	pump     PumpActuator
	store    HistoryStore
	cooldown *CooldownGuard
	schedule *ScheduleTable

	mu             sync.Mutex
	running        bool
	state          model.PlantState
	lastMoisture   *float64
	threshold      float64
	lowStreak      int
	actuating      bool
	lastSensorWarn time.Time
	stateCbs       []StateCallback
	moistCbs       []MoistureCallback

	now    func() time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

func New(sensor MoistureSensor, pump PumpActuator, store HistoryStore, cfg Config) *Engine {
	cfg.applyDefaults()
	return &Engine{
		cfg:      cfg,
		sensor:   sensor,
		pump:     pump,
		store:    store,
		cooldown: NewCooldownGuard(cfg.Cooldown),
		schedule: NewScheduleTable(),
		state:    model.StateHealthy,
		threshold: func() float64 {
			if cfg.MoistureThreshold < ThresholdMin {
				return ThresholdMin
			}
			if cfg.MoistureThreshold > ThresholdMax {
				return ThresholdMax
			}
			return cfg.MoistureThreshold
		}(),
		now: time.Now,
	}
}

// AddStateCallback registers an observer invoked on every state transition,
// synchronously on the loop goroutine. Observer panics are caught and
// logged, never allowed to abort the loop.
func (e *Engine) AddStateCallback(cb StateCallback) {
	e.mu.Lock()
	e.stateCbs = append(e.stateCbs, cb)
	e.mu.Unlock()
}

// AddMoistureCallback registers an observer invoked on every tick with a
// valid reading.
func (e *Engine) AddMoistureCallback(cb MoistureCallback) {
	e.mu.Lock()
	e.moistCbs = append(e.moistCbs, cb)
	e.mu.Unlock()
}

// Start spawns the control loop. No-op if already running.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.mu.Unlock()

	e.logEvent(ctx, "AUTOMATION", "automation started", model.SeverityInfo)
	go e.run(ctx)
}

// Stop signals the loop to exit and waits up to the configured timeout.
// Safe to call from any goroutine, including mid-actuation: the sequence
// observes the cancellation at its next step boundary and turns the pump
// off before returning.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(e.cfg.StopTimeout):
		log.Printf("engine: control loop did not stop within %s", e.cfg.StopTimeout)
	}
	if err := e.pump.TurnOff(); err != nil {
		log.Printf("engine: pump off on stop: %v", err)
	}
	e.logEvent(context.Background(), "AUTOMATION", "automation stopped", model.SeverityInfo)
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	var n uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n++
			e.runCycle(ctx, n)
		}
	}
}

// runCycle executes one control-loop iteration. Failures are contained
// here: a bad iteration logs AUTOMATION_ERROR and the loop keeps ticking.
func (e *Engine) runCycle(ctx context.Context, n uint64) {
	defer func() {
		if r := recover(); r != nil {
			e.logEvent(ctx, "AUTOMATION_ERROR",
				fmt.Sprintf("automation loop error: %v", r), model.SeverityError)
		}
	}()

	reading, err := e.sensor.ReadMoisture()
	if err != nil {
		e.handleSensorError(ctx)
	} else {
		e.observeReading(ctx, reading, n)
	}

	e.evaluateWatering(ctx)
	e.checkSchedule(ctx)

	if err == nil {
		if serr := e.store.LogMoistureReading(ctx, reading); serr != nil {
			log.Printf("engine: moisture write failed: %v", serr)
		}
	}
}

func (e *Engine) observeReading(ctx context.Context, r model.MoistureReading, n uint64) {
	if n%uint64(e.cfg.RecomputeTicks) == 0 {
		e.recomputeThreshold(ctx)
	}

	canWater := e.cooldown.CanWater()

	e.mu.Lock()
	pct := r.Percent
	e.lastMoisture = &pct
	newState, streak := Classify(r.Percent, e.threshold, canWater, e.lowStreak)
	e.lowStreak = streak
	old := e.state
	e.state = newState
	stateCbs := append([]StateCallback(nil), e.stateCbs...)
	moistCbs := append([]MoistureCallback(nil), e.moistCbs...)
	e.mu.Unlock()

	if newState != old {
		e.notifyStateChange(ctx, old, newState, stateCbs)
	}
	for _, cb := range moistCbs {
		invokeMoistureCb(cb, r.Percent)
	}
}

func (e *Engine) handleSensorError(ctx context.Context) {
	now := e.now()

	e.mu.Lock()
	old := e.state
	// One warning per outage, rate-limited across outages so a flapping
	// probe cannot flood the event log.
	warn := old != model.StateSensorError && now.Sub(e.lastSensorWarn) >= e.cfg.SensorWarnInterval
	if warn {
		e.lastSensorWarn = now
	}
	e.state = model.StateSensorError
	stateCbs := append([]StateCallback(nil), e.stateCbs...)
	e.mu.Unlock()

	if warn {
		e.logEvent(ctx, "SENSOR_WARNING", "moisture sensor not responding", model.SeverityWarning)
	}
	if old != model.StateSensorError {
		e.notifyStateChange(ctx, old, model.StateSensorError, stateCbs)
	}
}

func (e *Engine) recomputeThreshold(ctx context.Context) {
	history, err := e.store.MoistureHistory(ctx, 24*time.Hour)
	if err != nil {
		log.Printf("engine: moisture history query failed: %v", err)
		return
	}
	waterings, err := e.store.WateringHistory(ctx, 7*24*time.Hour)
	if err != nil {
		log.Printf("engine: watering history query failed: %v", err)
		return
	}

	e.mu.Lock()
	current := e.threshold
	e.mu.Unlock()

	next, changed := RecomputeThreshold(current, history, waterings)
	if !changed {
		return
	}
	e.mu.Lock()
	e.threshold = next
	e.mu.Unlock()
	e.logEvent(ctx, "THRESHOLD_UPDATE",
		fmt.Sprintf("adaptive threshold updated to %.1f%%", next), model.SeverityInfo)
}

// evaluateWatering runs the moisture-driven decision. Skipped entirely while
// an actuation is in flight, which keeps at most one sequence running.
func (e *Engine) evaluateWatering(ctx context.Context) {
	e.mu.Lock()
	if e.actuating {
		e.mu.Unlock()
		return
	}
	state, streak := e.state, e.lowStreak
	e.mu.Unlock()

	switch {
	case state == model.StateCritical && e.cooldown.CanWater():
		e.executeWatering(ctx, model.TriggerEmergency, 1.5)
	case state == model.StateNeedsWater && e.cooldown.CanWater() && streak >= 3:
		// The streak debounce keeps a single noisy low reading from
		// triggering the pump.
		e.executeWatering(ctx, model.TriggerMoistureLow, 1.0)
	}
}

func (e *Engine) checkSchedule(ctx context.Context) {
	if e.schedule.Due(e.now()) {
		if err := e.executeWatering(ctx, model.TriggerScheduled, 1.0); err != nil {
			log.Printf("engine: scheduled watering skipped: %v", err)
		}
	}
}

// executeWatering runs the full actuation sequence: initial timed run,
// settle, pulsed delivery, event record, cooldown mark, post-water wait.
// The actuating guard and low-readings counter are always cleared on exit,
// success or not.
func (e *Engine) executeWatering(ctx context.Context, trigger model.WateringTrigger, multiplier float64) error {
	if !e.beginActuation() {
		if trigger == model.TriggerEmergency {
			e.logEvent(ctx, "WATERING_SKIPPED",
				"emergency watering skipped, actuation already in flight", model.SeverityWarning)
		}
		return ErrWateringInProgress
	}
	defer e.endActuation()

	e.mu.Lock()
	streak := e.lowStreak
	triggerMoisture := e.lastMoisture
	e.mu.Unlock()

	initial := time.Duration(float64(e.cfg.InitialRunDuration) * multiplier)
	pulseTotal := time.Duration(float64(e.cfg.PulseDuration) * multiplier)

	e.logEvent(ctx, "WATERING_START",
		fmt.Sprintf("starting %s watering (pulse %.1fs)", trigger, pulseTotal.Seconds()),
		model.SeverityInfo)

	if err := e.pump.RunTimed(ctx, initial); err != nil {
		return e.failWatering(ctx, trigger, err)
	}
	if err := sleepCtx(ctx, e.cfg.SettleDelay); err != nil {
		return e.failWatering(ctx, trigger, err)
	}
	if err := e.pump.Pulse(ctx, e.cfg.PulseOnTime, e.cfg.PulseOffTime, pulseTotal); err != nil {
		return e.failWatering(ctx, trigger, err)
	}

	evt := model.WateringEvent{
		Timestamp:       e.now(),
		TriggerMoisture: triggerMoisture,
		DurationSec:     (initial + pulseTotal).Seconds(),
		Type:            trigger,
		Notes:           fmt.Sprintf("consecutive low readings: %d", streak),
	}
	if err := e.store.LogWateringEvent(ctx, evt); err != nil {
		// Water was delivered; the cooldown still has to start.
		log.Printf("engine: watering event write failed: %v", err)
	}
	e.cooldown.MarkWatered()

	e.logEvent(ctx, "WATERING_COMPLETE",
		fmt.Sprintf("watering complete, settling for %s", e.cfg.PostWaterWait),
		model.SeverityInfo)
	_ = sleepCtx(ctx, e.cfg.PostWaterWait)
	return nil
}

func (e *Engine) failWatering(ctx context.Context, trigger model.WateringTrigger, err error) error {
	if offErr := e.pump.TurnOff(); offErr != nil {
		log.Printf("engine: pump off after failure: %v", offErr)
	}
	e.logEvent(ctx, "WATERING_ERROR",
		fmt.Sprintf("%s watering failed: %v", trigger, err), model.SeverityError)
	return err
}

// ManualWater waters now, bypassing cooldown and state checks but not the
// single-in-flight invariant: while any actuation runs, the request is
// rejected with ErrWateringInProgress.
func (e *Engine) ManualWater(ctx context.Context, duration time.Duration, pulse bool) error {
	if duration <= 0 {
		duration = e.cfg.InitialRunDuration
	}
	if !e.beginActuation() {
		return ErrWateringInProgress
	}
	defer e.endActuation()

	e.mu.Lock()
	triggerMoisture := e.lastMoisture
	e.mu.Unlock()

	e.logEvent(ctx, "WATERING_START",
		fmt.Sprintf("starting manual watering (%.1fs, pulse=%t)", duration.Seconds(), pulse),
		model.SeverityInfo)

	var err error
	if pulse {
		err = e.pump.Pulse(ctx, e.cfg.PulseOnTime, e.cfg.PulseOffTime, duration)
	} else {
		err = e.pump.RunTimed(ctx, duration)
	}
	if err != nil {
		return e.failWatering(ctx, model.TriggerManual, err)
	}

	evt := model.WateringEvent{
		Timestamp:       e.now(),
		TriggerMoisture: triggerMoisture,
		DurationSec:     duration.Seconds(),
		Type:            model.TriggerManual,
		Notes:           "manual watering request",
	}
	if serr := e.store.LogWateringEvent(ctx, evt); serr != nil {
		log.Printf("engine: watering event write failed: %v", serr)
	}
	e.cooldown.MarkWatered()
	e.logEvent(ctx, "WATERING_COMPLETE", "manual watering complete", model.SeverityInfo)
	return nil
}

// SetSchedule validates and installs a new watering schedule.
func (e *Engine) SetSchedule(entries map[string][]string) error {
	if err := e.schedule.Set(entries); err != nil {
		return err
	}
	b, _ := json.Marshal(entries)
	e.logEvent(context.Background(), "SCHEDULE_UPDATE",
		fmt.Sprintf("watering schedule updated: %s", b), model.SeverityInfo)
	return nil
}

// ResetCooldown is the operator override that makes watering immediately
// possible again. Logged distinctly from normal cooldown expiry.
func (e *Engine) ResetCooldown() {
	e.cooldown.Reset()
	e.logEvent(context.Background(), "COOLDOWN_RESET", "watering cooldown manually reset", model.SeverityWarning)
}

// Status returns a consistent snapshot without blocking the control loop.
func (e *Engine) Status() Status {
	canWater := e.cooldown.CanWater()
	schedule := e.schedule.Snapshot()
	runtime := e.pump.RuntimeSeconds()

	e.mu.Lock()
	defer e.mu.Unlock()
	var last *float64
	if e.lastMoisture != nil {
		v := *e.lastMoisture
		last = &v
	}
	return Status{
		Running:           e.running,
		State:             e.state,
		LastMoisture:      last,
		AdaptiveThreshold: e.threshold,
		LowReadings:       e.lowStreak,
		Actuating:         e.actuating,
		CanWater:          canWater,
		Schedule:          schedule,
		PumpRuntimeSec:    runtime,
	}
}

func (e *Engine) beginActuation() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.actuating {
		return false
	}
	e.actuating = true
	return true
}

func (e *Engine) endActuation() {
	e.mu.Lock()
	e.actuating = false
	e.lowStreak = 0
	e.mu.Unlock()
}

func (e *Engine) notifyStateChange(ctx context.Context, old, new model.PlantState, cbs []StateCallback) {
	e.logEvent(ctx, "STATE_CHANGE",
		fmt.Sprintf("plant state changed from %s to %s", old, new), model.SeverityInfo)
	for _, cb := range cbs {
		invokeStateCb(cb, old, new)
	}
}

// Observer failures are isolated per invocation so one broken callback
// cannot stop the others or the loop.
func invokeStateCb(cb StateCallback, old, new model.PlantState) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: state callback error: %v", r)
		}
	}()
	cb(old, new)
}

func invokeMoistureCb(cb MoistureCallback, pct float64) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: moisture callback error: %v", r)
		}
	}()
	cb(pct)
}

func (e *Engine) logEvent(ctx context.Context, category, message string, sev model.Severity) {
	log.Printf("engine: [%s] %s", category, message)
	evt := model.SystemEvent{Timestamp: e.now(), Category: category, Message: message, Severity: sev}
	if err := e.store.LogSystemEvent(ctx, evt); err != nil {
		log.Printf("engine: system event write failed: %v", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
