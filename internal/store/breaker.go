package store

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/carelogic/go-hde/pkg/circuitbreaker"
)

// BreakerStore routes store access through a circuit breaker. While the
// breaker is open, reads degrade to an empty collection so a tick still
// publishes a best-effort view; writes fail fast and are retried by the
// next tick.
type BreakerStore struct {
	inner  Store
	cb     *circuitbreaker.CircuitBreaker
	logger *zap.Logger
}

// WithBreaker wraps inner with cb.
func WithBreaker(inner Store, cb *circuitbreaker.CircuitBreaker, logger *zap.Logger) *BreakerStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BreakerStore{inner: inner, cb: cb, logger: logger}
}

// Read reads through the breaker, degrading to empty on an open circuit.
func (b *BreakerStore) Read(ctx context.Context, collection string) ([]json.RawMessage, error) {
	result, err := b.cb.ExecuteWithFallback(ctx,
		func() (interface{}, error) {
			return b.inner.Read(ctx, collection)
		},
		func(err error) (interface{}, error) {
			b.logger.Warn("store read degraded to empty",
				zap.String("collection", collection),
				zap.Error(err))
			return []json.RawMessage(nil), nil
		})
	if err != nil {
		return nil, err
	}
	records, _ := result.([]json.RawMessage)
	return records, nil
}

// Write writes through the breaker. Open-circuit rejections surface as
// errors; the caller's derivation is idempotent and retries next tick.
func (b *BreakerStore) Write(ctx context.Context, collection string, records []json.RawMessage) error {
	_, err := b.cb.Execute(ctx, func() (interface{}, error) {
		return nil, b.inner.Write(ctx, collection, records)
	})
	return err
}
