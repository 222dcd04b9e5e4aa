package automation

import (
	"sync"
	"time"
)

// CooldownGuard enforces the minimum time between watering cycles.
// MarkWatered must be called only after an actuation sequence completed
// successfully, so a failed cycle does not start the cooldown.
type CooldownGuard struct {
	mu       sync.Mutex
	last     time.Time
	cooldown time.Duration
	now      func() time.Time
}

func NewCooldownGuard(cooldown time.Duration) *CooldownGuard {
	return &CooldownGuard{cooldown: cooldown, now: time.Now}
}

// CanWater reports whether the cooldown has expired. True when never watered.
func (g *CooldownGuard) CanWater() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.last.IsZero() {
		return true
	}
	return g.now().Sub(g.last) > g.cooldown
}

func (g *CooldownGuard) MarkWatered() {
	g.mu.Lock()
	g.last = g.now()
	g.mu.Unlock()
}

// SecondsSinceLast returns the elapsed time since the last watering.
// Display use only; the control path goes through CanWater.
func (g *CooldownGuard) SecondsSinceLast() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.last.IsZero() {
		return g.now().Sub(time.Time{}).Seconds()
	}
	return g.now().Sub(g.last).Seconds()
}

// Reset clears the last-watered timestamp so CanWater returns true
// immediately. Operator override; callers log it separately from normal
// cooldown expiry.
func (g *CooldownGuard) Reset() {
	g.mu.Lock()
	g.last = time.Time{}
	g.mu.Unlock()
}
