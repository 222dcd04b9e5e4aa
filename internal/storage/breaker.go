package storage

import (
	"context"
	"log"
	"time"

	"github.com/sony/gobreaker"

	"github.com/bonsailab/bonsaictl/internal/automation"
	"github.com/bonsailab/bonsaictl/internal/model"
)

// BreakerStore wraps a HistoryStore with a circuit breaker so a failing
// backend fails fast instead of stalling every control-loop tick on a
// timeout.
type BreakerStore struct {
	inner automation.HistoryStore
	cb    *gobreaker.CircuitBreaker
}

func NewBreakerStore(inner automation.HistoryStore, name string) *BreakerStore {
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("storage: breaker %s: %s -> %s", name, from, to)
		},
	}
	return &BreakerStore{inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *BreakerStore) LogMoistureReading(ctx context.Context, r model.MoistureReading) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.LogMoistureReading(ctx, r)
	})
	return err
}

func (b *BreakerStore) LogWateringEvent(ctx context.Context, e model.WateringEvent) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.LogWateringEvent(ctx, e)
	})
	return err
}

func (b *BreakerStore) LogSystemEvent(ctx context.Context, e model.SystemEvent) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.LogSystemEvent(ctx, e)
	})
	return err
}

func (b *BreakerStore) MoistureHistory(ctx context.Context, window time.Duration) ([]model.MoistureReading, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.MoistureHistory(ctx, window)
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.MoistureReading), nil
}

func (b *BreakerStore) WateringHistory(ctx context.Context, window time.Duration) ([]model.WateringEvent, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.WateringHistory(ctx, window)
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.WateringEvent), nil
}
