package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/trustvibe/escrow-service/internal/ports"
)

// OutboxWorker drains the transactional outbox into the event publisher.
// Escrow writes (state changes, executed outcomes, reliability updates)
// enqueue in the same store transaction as the rows they describe; this loop
// is the only component that talks to the broker.
type OutboxWorker struct {
	logger     *slog.Logger
	outbox     ports.OutboxRepository
	publisher  ports.EventPublisher
	interval   time.Duration
	batchSize  int
	claimTTL   time.Duration
	maxRetries int
}

// NewOutboxWorker constructs the drain loop. Non-positive tuning values fall
// back to defaults.
func NewOutboxWorker(
	logger *slog.Logger,
	outbox ports.OutboxRepository,
	publisher ports.EventPublisher,
	interval time.Duration,
	batchSize int,
	claimTTL time.Duration,
	maxRetries int,
) *OutboxWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if claimTTL <= 0 {
		claimTTL = 30 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &OutboxWorker{
		logger:     logger,
		outbox:     outbox,
		publisher:  publisher,
		interval:   interval,
		batchSize:  batchSize,
		claimTTL:   claimTTL,
		maxRetries: maxRetries,
	}
}

// Run drains on a fixed cadence until the context is cancelled. The first
// pass happens immediately so a restarted worker catches up without waiting
// out an interval.
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.ProcessOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "outbox drain failed",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "outbox_drain",
				"outcome", "failure",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type deliveryStatus int

const (
	deliveryPublished deliveryStatus = iota
	deliveryRetried
	deliveryDeadLettered
)

// ProcessOnce claims one batch under a fresh token and delivers it. Exposed
// so callers can drain the outbox deterministically outside the loop.
func (w *OutboxWorker) ProcessOnce(ctx context.Context) error {
	token := uuid.NewString()
	batch, err := w.outbox.ClaimUnpublished(ctx, w.batchSize, token, time.Now().UTC().Add(w.claimTTL))
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	var published, retried, dead int
	for _, rec := range batch {
		switch w.deliver(ctx, token, rec) {
		case deliveryPublished:
			published++
		case deliveryRetried:
			retried++
		case deliveryDeadLettered:
			dead++
		}
	}

	w.logger.InfoContext(ctx, "outbox batch drained",
		"module", "events.outbox_worker",
		"layer", "adapter",
		"operation", "outbox_drain",
		"outcome", "success",
		"claimed_count", len(batch),
		"published_count", published,
		"retried_count", retried,
		"dead_lettered_count", dead,
	)
	return nil
}

// deliver publishes one claimed record and settles its outbox row. Mark
// failures are swallowed: the claim TTL returns the row to the pool.
func (w *OutboxWorker) deliver(ctx context.Context, token string, rec ports.OutboxRecord) deliveryStatus {
	now := time.Now().UTC()
	if rec.RetryCount >= w.maxRetries {
		_ = w.outbox.MarkDeadLettered(ctx, rec.OutboxID, token, "retry budget exhausted", now)
		return deliveryDeadLettered
	}

	err := w.publisher.Publish(ctx, rec.EventType, rec.Payload, rec.PartitionKey)
	if err == nil {
		_ = w.outbox.MarkPublished(ctx, rec.OutboxID, token, now)
		return deliveryPublished
	}

	if rec.RetryCount+1 >= w.maxRetries {
		w.logger.ErrorContext(ctx, "outbox record dead-lettered",
			"module", "events.outbox_worker",
			"layer", "adapter",
			"operation", "publish_event",
			"outcome", "failure",
			"outbox_id", rec.OutboxID,
			"event_type", rec.EventType,
			"retry_count", rec.RetryCount+1,
			"error", err,
		)
		_ = w.outbox.MarkDeadLettered(ctx, rec.OutboxID, token, err.Error(), now)
		return deliveryDeadLettered
	}

	w.logger.WarnContext(ctx, "outbox publish failed, retry scheduled",
		"module", "events.outbox_worker",
		"layer", "adapter",
		"operation", "publish_event",
		"outcome", "failure",
		"outbox_id", rec.OutboxID,
		"event_type", rec.EventType,
		"retry_count", rec.RetryCount+1,
		"error", err,
	)
	_ = w.outbox.MarkFailed(ctx, rec.OutboxID, token, err.Error(), now)
	return deliveryRetried
}
