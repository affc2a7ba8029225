// Package worker consumes ledger-change broadcasts and marks the local
// snapshot cache stale, so other devices' commits become visible on the next
// query instead of waiting for the cache TTL.
package worker

import (
	"context"
	"log/slog"

	"kalori/internal/amqp"
)

// Invalidator is the slice of the ledger engine the worker needs.
type Invalidator interface {
	Invalidate(userID string)
}

// Consumer is the slice of the AMQP client the worker needs.
type Consumer interface {
	ConsumeLedgerChanged(ctx context.Context, handler func(*amqp.LedgerChangedMessage) error) error
}

// InvalidationWorker bridges change notifications to cache invalidation.
type InvalidationWorker struct {
	consumer Consumer
	engine   Invalidator
}

func NewInvalidationWorker(consumer Consumer, engine Invalidator) *InvalidationWorker {
	return &InvalidationWorker{consumer: consumer, engine: engine}
}

// Run consumes until the context is canceled. It returns the consume error;
// the caller decides whether to reconnect.
func (w *InvalidationWorker) Run(ctx context.Context) error {
	return w.consumer.ConsumeLedgerChanged(ctx, func(msg *amqp.LedgerChangedMessage) error {
		w.engine.Invalidate(msg.UserID)
		slog.DebugContext(ctx, "Invalidated cached ledger",
			"user_id", msg.UserID,
			"version", msg.Version,
			"origin", msg.Origin)
		return nil
	})
}
