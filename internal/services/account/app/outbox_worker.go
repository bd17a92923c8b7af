package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/ledger/internal/services/account/domain/event"
	"github.com/louisbranch/ledger/internal/services/account/observability"
	storagesqlite "github.com/louisbranch/ledger/internal/services/account/storage/sqlite"
)

const (
	defaultOutboxWorkerInterval = 2 * time.Second
	defaultOutboxWorkerBatch    = 64
)

type outboxProcessor interface {
	ProcessProjectionApplyOutbox(context.Context, time.Time, int, func(context.Context, event.Event) error) (int, error)
	GetProjectionApplyOutboxSummary(context.Context) (storagesqlite.ProjectionApplyOutboxSummary, error)
}

// OutboxWorkerConfig controls the projection outbox loop.
type OutboxWorkerConfig struct {
	Interval time.Duration
	Batch    int
}

func (c OutboxWorkerConfig) normalized() OutboxWorkerConfig {
	if c.Interval <= 0 {
		c.Interval = defaultOutboxWorkerInterval
	}
	if c.Batch <= 0 {
		c.Batch = defaultOutboxWorkerBatch
	}
	return c
}

// OutboxWorker drains projection-apply outbox rows left behind by commands
// whose inline projection did not complete.
type OutboxWorker struct {
	store   outboxProcessor
	apply   func(context.Context, event.Event) error
	config  OutboxWorkerConfig
	metrics *observability.Metrics
	now     func() time.Time

	lastDead int
}

// NewOutboxWorker builds a worker that applies due rows through apply.
func NewOutboxWorker(store outboxProcessor, apply func(context.Context, event.Event) error, cfg OutboxWorkerConfig, metrics *observability.Metrics) *OutboxWorker {
	return &OutboxWorker{
		store:   store,
		apply:   apply,
		config:  cfg.normalized(),
		metrics: metrics,
		now:     time.Now,
	}
}

// Run processes the outbox once, then on every tick until ctx ends.
func (w *OutboxWorker) Run(ctx context.Context) error {
	if w == nil || w.store == nil || w.apply == nil {
		return fmt.Errorf("outbox worker is not configured")
	}
	w.tick(ctx)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *OutboxWorker) tick(ctx context.Context) {
	if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
		log.Printf("projection outbox pass failed: %v", err)
	}
}

// RunOnce processes one batch of due rows and refreshes the queue gauges.
func (w *OutboxWorker) RunOnce(ctx context.Context) (int, error) {
	if w == nil || w.store == nil || w.apply == nil {
		return 0, fmt.Errorf("outbox worker is not configured")
	}
	processed, err := w.store.ProcessProjectionApplyOutbox(ctx, w.now().UTC(), w.config.Batch, w.countingApply())
	w.metrics.OutboxProcessed(processed)
	if err != nil {
		return processed, fmt.Errorf("process projection outbox: %w", err)
	}

	summary, err := w.store.GetProjectionApplyOutboxSummary(ctx)
	if err != nil {
		return processed, fmt.Errorf("summarize projection outbox: %w", err)
	}
	w.metrics.OutboxRows(summary.PendingCount+summary.FailedCount, summary.ProcessingCount, summary.DeadCount)
	if summary.DeadCount > w.lastDead {
		log.Printf("projection outbox has %d dead rows (was %d); requeue with accountctl outbox requeue", summary.DeadCount, w.lastDead)
	}
	w.lastDead = summary.DeadCount
	return processed, nil
}

func (w *OutboxWorker) countingApply() func(context.Context, event.Event) error {
	return func(ctx context.Context, evt event.Event) error {
		if err := w.apply(ctx, evt); err != nil {
			w.metrics.ProjectionApplied(observability.ApplyOutbox, observability.OutcomeError)
			log.Printf("projection outbox apply %s/%d (%s): %v", evt.AccountID, evt.Seq, evt.Type, err)
			return err
		}
		w.metrics.ProjectionApplied(observability.ApplyOutbox, observability.OutcomeAccepted)
		return nil
	}
}
