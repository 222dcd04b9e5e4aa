// Package pump drives the water pump relay. The pulse sequencing here is
// safety-critical: exactly one sequence may drive the output at a time, and
// the output is deasserted on every exit path, including cancellation.
package pump

import (
	"context"
	"errors"
	"log"
	"math"
	"sync"
	"time"
)

// ErrAlreadyPulsing is returned when a pulse sequence is requested while one
// is active. Re-entrant requests are rejected, not restarted.
var ErrAlreadyPulsing = errors.New("pump: pulse sequence already active")

var errPulseStopped = errors.New("pump: pulse stopped")

// Driver abstracts the relay output line.
type Driver interface {
	Set(on bool) error
	Close() error
}

// Pump tracks relay state, accumulates total runtime and serializes pulse
// sequences. Runtime statistics may be read concurrently with actuation.
type Pump struct {
	drv Driver

	mu        sync.Mutex
	on        bool
	startedAt time.Time
	total     time.Duration
	pulsing   bool
	pulseStop chan struct{}

	now func() time.Time
}

func New(drv Driver) *Pump {
	return &Pump{drv: drv, now: time.Now}
}

// TurnOn asserts the output. Idempotent.
func (p *Pump) TurnOn() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.on {
		return nil
	}
	if err := p.drv.Set(true); err != nil {
		return err
	}
	p.on = true
	p.startedAt = p.now()
	return nil
}

// TurnOff deasserts the output and accumulates runtime. Idempotent.
func (p *Pump) TurnOff() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.on {
		return nil
	}
	if err := p.drv.Set(false); err != nil {
		return err
	}
	p.total += p.now().Sub(p.startedAt)
	p.on = false
	return nil
}

// RunTimed asserts the output for d, blocking until the time elapses or ctx
// is cancelled. The output is deasserted before returning either way.
func (p *Pump) RunTimed(ctx context.Context, d time.Duration) error {
	if err := p.TurnOn(); err != nil {
		return err
	}
	var runErr error
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		runErr = ctx.Err()
	}
	if err := p.TurnOff(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Pulse alternates the output on/off, beginning with an on-phase, until the
// cumulative elapsed time reaches total. Blocks for the whole sequence.
// Returns ErrAlreadyPulsing if a sequence is active. Ends early without
// error when StopPulsing is called; ends with ctx.Err() on cancellation.
// The output is always deasserted on return.
func (p *Pump) Pulse(ctx context.Context, on, off, total time.Duration) error {
	stop, err := p.acquirePulse()
	if err != nil {
		return err
	}
	defer p.releasePulse()
	return p.pulse(ctx, stop, on, off, total)
}

// StartPulsing runs the same sequence on its own goroutine, for callers
// that cannot block. Errors after start are logged.
func (p *Pump) StartPulsing(on, off, total time.Duration) error {
	stop, err := p.acquirePulse()
	if err != nil {
		return err
	}
	go func() {
		defer p.releasePulse()
		if err := p.pulse(context.Background(), stop, on, off, total); err != nil {
			log.Printf("pump: pulse error: %v", err)
		}
	}()
	return nil
}

// StopPulsing deasserts the output immediately and terminates any active
// pulse sequence. Worst-case latency is one on-phase interval.
func (p *Pump) StopPulsing() {
	p.mu.Lock()
	if p.pulseStop != nil {
		close(p.pulseStop)
		p.pulseStop = nil
	}
	p.mu.Unlock()
	if err := p.TurnOff(); err != nil {
		log.Printf("pump: off on stop: %v", err)
	}
}

// IsRunning reports whether the output is asserted or a pulse sequence is
// active.
func (p *Pump) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.on || p.pulsing
}

// RuntimeSeconds returns the cumulative asserted time, including the
// current run.
func (p *Pump) RuntimeSeconds() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := p.total
	if p.on {
		total += p.now().Sub(p.startedAt)
	}
	return math.Round(total.Seconds()*100) / 100
}

// Close deasserts the output and releases the driver.
func (p *Pump) Close() error {
	p.StopPulsing()
	return p.drv.Close()
}

func (p *Pump) acquirePulse() (chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pulsing {
		return nil, ErrAlreadyPulsing
	}
	p.pulsing = true
	stop := make(chan struct{})
	p.pulseStop = stop
	return stop, nil
}

func (p *Pump) releasePulse() {
	p.mu.Lock()
	p.pulsing = false
	p.pulseStop = nil
	p.mu.Unlock()
}

func (p *Pump) pulse(ctx context.Context, stop <-chan struct{}, on, off, total time.Duration) error {
	// Whatever happens below, the relay must end deasserted.
	defer func() {
		if err := p.TurnOff(); err != nil {
			log.Printf("pump: off at pulse end: %v", err)
		}
	}()

	deadline := p.now().Add(total)
	for p.now().Before(deadline) {
		if err := p.TurnOn(); err != nil {
			return err
		}
		err := waitPhase(ctx, stop, on)
		if offErr := p.TurnOff(); offErr != nil && err == nil {
			err = offErr
		}
		if err == errPulseStopped {
			return nil
		}
		if err != nil {
			return err
		}
		if !p.now().Before(deadline) {
			break
		}
		switch err := waitPhase(ctx, stop, off); err {
		case nil:
		case errPulseStopped:
			return nil
		default:
			return err
		}
	}
	return nil
}

func waitPhase(ctx context.Context, stop <-chan struct{}, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-stop:
		return errPulseStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
