// Package engine implements the synchronization core: it selects bounded
// batches of pending records, delivers them to the central inventory service
// and commits the outcome transactionally with the attempt.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jfarhadi/pos-sync/internal/delivery"
	"github.com/jfarhadi/pos-sync/internal/metrics"
	"github.com/jfarhadi/pos-sync/internal/model"
	"github.com/jfarhadi/pos-sync/internal/repository"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Deliverer is the single-call delivery abstraction. Its internal
// retry/backoff/breaker policy is opaque to the engine.
type Deliverer interface {
	Deliver(ctx context.Context, p model.SyncPayload) delivery.Outcome
}

// Notifier publishes best-effort "record synced" events. Implementations
// must never fail the sync; errors are theirs to log and swallow.
type Notifier interface {
	RecordSynced(ctx context.Context, rec model.Record)
}

// Result is the outcome of synchronizing one batch of one kind.
type Result struct {
	Synced int
	Failed int
	Errors []string
}

func (r Result) merge(o Result) Result {
	return Result{
		Synced: r.Synced + o.Synced,
		Failed: r.Failed + o.Failed,
		Errors: append(r.Errors, o.Errors...),
	}
}

// CycleResult aggregates one full cycle: transactions first, then inventory.
type CycleResult struct {
	Result
	Duration time.Duration
}

// OK reports cycle success: zero failures across both kinds.
func (c CycleResult) OK() bool { return c.Failed == 0 }

type Engine struct {
	db       *sqlx.DB
	records  repository.RecordsRepository
	retries  repository.RetryLogRepository
	snaps    repository.SnapshotsRepository
	deliver  Deliverer
	notifier Notifier
	log      *zap.Logger

	storeID     string
	maxAttempts int
	batchSize   int
	retryDelay  time.Duration
}

func New(
	db *sqlx.DB,
	records repository.RecordsRepository,
	retries repository.RetryLogRepository,
	snaps repository.SnapshotsRepository,
	deliver Deliverer,
	notifier Notifier,
	storeID string,
	maxAttempts, batchSize int,
	retryDelay time.Duration,
	log *zap.Logger,
) *Engine {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	if retryDelay <= 0 {
		retryDelay = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Engine{
		db:          db,
		records:     records,
		retries:     retries,
		snaps:       snaps,
		deliver:     deliver,
		notifier:    notifier,
		log:         log,
		storeID:     storeID,
		maxAttempts: maxAttempts,
		batchSize:   batchSize,
		retryDelay:  retryDelay,
	}
}

// SyncBatch selects up to batchSize pending records of one kind, oldest
// first, and delivers them sequentially. Per-record failures land in the
// Result; the returned error is reserved for orchestration failures
// (store unreachable and the like).
func (e *Engine) SyncBatch(ctx context.Context, kind model.RecordKind) (Result, error) {
	var res Result

	recs, err := e.records.SelectPending(ctx, kind, e.maxAttempts, e.batchSize)
	if err != nil {
		return res, fmt.Errorf("select pending %s: %w", kind, err)
	}

	for _, rec := range recs {
		if ctx.Err() != nil {
			break
		}
		if cause, err := e.syncOne(ctx, rec); err != nil {
			return res, err
		} else if cause == "" {
			res.Synced++
		} else {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s %s: %s", kind, rec.ID, cause))
		}
	}

	return res, nil
}

// syncOne runs the attempt protocol for a single record:
//  1. bump sync_attempts in its own committed transaction, so the retry
//     budget survives a crash before delivery,
//  2. deliver,
//  3. persist the interpretation: synced flags on success, or error string
//     plus a retry_log row in one transaction on failure.
//
// Returns ("", nil) on success, (cause, nil) on a delivery failure, and a
// non-nil error only when the store itself misbehaves.
func (e *Engine) syncOne(ctx context.Context, rec model.Record) (string, error) {
	now := time.Now().UTC()
	if err := e.records.MarkAttempt(ctx, nil, rec.Kind, rec.ID, now); err != nil {
		return "", fmt.Errorf("mark attempt %s %s: %w", rec.Kind, rec.ID, err)
	}
	rec.SyncAttempts++ // local view of the committed bump

	out := e.deliver.Deliver(ctx, rec.Payload())

	if out.Delivered {
		if err := e.records.MarkSynced(ctx, nil, rec.Kind, rec.ID, time.Now().UTC()); err != nil {
			return "", fmt.Errorf("mark synced %s %s: %w", rec.Kind, rec.ID, err)
		}
		metrics.RecordsTotal.WithLabelValues("synced", rec.Kind.String()).Inc()
		if e.notifier != nil {
			e.notifier.RecordSynced(ctx, rec)
		}
		return "", nil
	}

	if err := e.recordFailure(ctx, rec, out); err != nil {
		return "", err
	}
	metrics.RecordsTotal.WithLabelValues("failed", rec.Kind.String()).Inc()
	e.log.Warn("delivery failed",
		zap.String("kind", rec.Kind.String()),
		zap.String("id", rec.ID),
		zap.Int("attempt", rec.SyncAttempts),
		zap.Int("status", out.StatusCode),
		zap.Bool("breaker_open", out.BreakerOpen),
		zap.String("cause", out.Cause),
	)
	return out.Cause, nil
}

// recordFailure writes last_sync_error and the ledger row atomically. A crash
// must never leave one without the other.
func (e *Engine) recordFailure(ctx context.Context, rec model.Record, out delivery.Outcome) error {
	shouldRetry := rec.SyncAttempts < e.maxAttempts
	entry := model.RetryLogEntry{
		EntityKind:    rec.Kind,
		EntityID:      rec.ID,
		StoreID:       rec.StoreID,
		AttemptNumber: rec.SyncAttempts,
		ErrorMessage:  out.Cause,
		ShouldRetry:   shouldRetry,
		CreatedAt:     time.Now().UTC(),
	}
	if out.StatusCode != 0 {
		sc := out.StatusCode
		entry.StatusCode = &sc
	}
	if shouldRetry {
		next := time.Now().UTC().Add(e.retryDelay)
		entry.NextRetryTime = &next
	}

	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin failure tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := e.records.MarkFailed(ctx, tx, rec.Kind, rec.ID, out.Cause); err != nil {
		return fmt.Errorf("mark failed %s %s: %w", rec.Kind, rec.ID, err)
	}
	if err := e.retries.Insert(ctx, tx, entry); err != nil {
		return fmt.Errorf("insert retry log %s %s: %w", rec.Kind, rec.ID, err)
	}

	return tx.Commit()
}

// SyncAll runs one full cycle: transaction-kind records first, then
// inventory updates, then one status snapshot row. Cycle success requires
// zero failures across both kinds.
func (e *Engine) SyncAll(ctx context.Context) (CycleResult, error) {
	start := time.Now()

	txRes, txErr := e.SyncBatch(ctx, model.KindTransaction)
	invRes, invErr := e.SyncBatch(ctx, model.KindInventory)

	cycle := CycleResult{
		Result:   txRes.merge(invRes),
		Duration: time.Since(start),
	}
	metrics.CycleDuration.Observe(cycle.Duration.Seconds())

	orchErr := errors.Join(txErr, invErr)

	status := model.CycleRunning
	if cycle.Failed > 0 || orchErr != nil {
		status = model.CycleError
	}

	pendingTx := e.samplePending(ctx, model.KindTransaction)
	pendingInv := e.samplePending(ctx, model.KindInventory)

	snap := model.StatusSnapshot{
		SyncedCount:         cycle.Synced,
		FailedCount:         cycle.Failed,
		DurationMs:          cycle.Duration.Milliseconds(),
		Status:              status,
		PendingTransactions: pendingTx,
		PendingInventory:    pendingInv,
		CreatedAt:           time.Now().UTC(),
	}
	if err := e.snaps.Insert(ctx, snap); err != nil {
		orchErr = errors.Join(orchErr, fmt.Errorf("insert status snapshot: %w", err))
	}

	return cycle, orchErr
}

// samplePending reads the pending count for the cycle snapshot and metrics;
// a failed read logs and reports zero rather than failing the cycle.
func (e *Engine) samplePending(ctx context.Context, kind model.RecordKind) int {
	n, err := e.records.CountPending(ctx, kind, e.maxAttempts)
	if err != nil {
		e.log.Warn("count pending failed", zap.String("kind", kind.String()), zap.Error(err))
		return 0
	}
	metrics.PendingRecords.WithLabelValues(kind.String()).Set(float64(n))
	return n
}
