// Package worker drives the sync engine on a fixed interval and keeps the
// process alive through cycle failures. Graceful degradation is the defining
// property: nothing below the cycle boundary may kill the loop.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jfarhadi/pos-sync/internal/db"
	"github.com/jfarhadi/pos-sync/internal/engine"
	"github.com/jfarhadi/pos-sync/internal/model"
	"github.com/jfarhadi/pos-sync/internal/repository"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// CycleRunner runs one full synchronization cycle.
type CycleRunner interface {
	SyncAll(ctx context.Context) (engine.CycleResult, error)
}

// Prober checks remote reachability without affecting delivery policy state.
type Prober interface {
	Probe(ctx context.Context) error
}

// Loop owns the scheduling state (last cleanup time, running totals) as
// explicit fields, so isolated instances can run side by side in tests.
type Loop struct {
	// Dependencies
	DB        *sqlx.DB
	Engine    CycleRunner
	Records   repository.RecordsRepository
	Retries   repository.RetryLogRepository
	Snapshots repository.SnapshotsRepository
	Prober    Prober
	Log       *zap.Logger

	// Behavior
	Driver           string // record-store driver, for schema preparation
	Interval         time.Duration
	CleanupInterval  time.Duration
	RetentionDays    int
	MaxRetryAttempts int
	HealthEnabled    bool

	mu          sync.Mutex
	state       State
	lastCleanup time.Time
	totalSynced int64
	totalFailed int64
}

// New builds a loop with sane defaults.
func New(
	dbx *sqlx.DB,
	eng CycleRunner,
	records repository.RecordsRepository,
	retries repository.RetryLogRepository,
	snaps repository.SnapshotsRepository,
	prober Prober,
	log *zap.Logger,
) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{
		DB:               dbx,
		Engine:           eng,
		Records:          records,
		Retries:          retries,
		Snapshots:        snaps,
		Prober:           prober,
		Log:              log,
		Driver:           "sqlite3",
		Interval:         10 * time.Second,
		CleanupInterval:  24 * time.Hour,
		RetentionDays:    30,
		MaxRetryAttempts: 3,
		HealthEnabled:    true,
		state:            StateStopped,
	}
}

func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Totals returns the running synced/failed counters since Run started.
func (l *Loop) Totals() (synced, failed int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalSynced, l.totalFailed
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
	l.Log.Info("worker state", zap.String("state", string(s)))
}

// Run blocks until ctx is cancelled. Store preparation is the only fatal
// path; after that every cycle failure is contained and the loop continues.
// An in-flight cycle finishes naturally on shutdown; no new cycle starts
// once cancellation is observed.
func (l *Loop) Run(ctx context.Context) error {
	l.setState(StateStarting)
	if err := l.prepare(ctx); err != nil {
		l.setState(StateStopped)
		return fmt.Errorf("prepare record store: %w", err)
	}

	l.mu.Lock()
	l.lastCleanup = time.Now()
	l.totalSynced, l.totalFailed = 0, 0
	l.mu.Unlock()
	l.setState(StateRunning)

	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()

	l.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			l.setState(StateStopping)
			l.setState(StateStopped)
			return nil
		case <-ticker.C:
			l.runCycle(ctx)
		}
	}
}

// prepare confirms store connectivity and applies the idempotent schema.
func (l *Loop) prepare(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := l.DB.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if err := db.Migrate(l.DB, l.Driver); err != nil {
		return err
	}
	return nil
}

// runCycle runs one cycle plus its cleanup and health sub-steps. All
// failures, panics included, stay inside this call.
func (l *Loop) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.Log.Error("sync cycle panicked", zap.Any("panic", r))
		}
	}()

	res, err := l.Engine.SyncAll(ctx)
	l.mu.Lock()
	l.totalSynced += int64(res.Synced)
	l.totalFailed += int64(res.Failed)
	l.mu.Unlock()

	if err != nil {
		l.Log.Error("sync cycle failed",
			zap.Int("synced", res.Synced),
			zap.Int("failed", res.Failed),
			zap.Duration("duration", res.Duration),
			zap.Error(err),
		)
	} else {
		l.Log.Info("sync cycle complete",
			zap.Int("synced", res.Synced),
			zap.Int("failed", res.Failed),
			zap.Duration("duration", res.Duration),
			zap.Bool("ok", res.OK()),
		)
	}

	l.maybeCleanup(ctx)

	if l.HealthEnabled {
		l.healthCheck(ctx)
	}
}

// maybeCleanup deletes retry-ledger and snapshot history beyond the
// retention horizon. Pending records are never touched.
func (l *Loop) maybeCleanup(ctx context.Context) {
	l.mu.Lock()
	due := time.Since(l.lastCleanup) >= l.CleanupInterval
	l.mu.Unlock()
	if !due {
		return
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -l.RetentionDays)

	retries, err := l.Retries.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		l.Log.Error("retry log cleanup failed", zap.Error(err))
		return
	}
	snaps, err := l.Snapshots.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		l.Log.Error("snapshot cleanup failed", zap.Error(err))
		return
	}

	l.mu.Lock()
	l.lastCleanup = time.Now()
	l.mu.Unlock()

	l.Log.Info("retention cleanup complete",
		zap.Time("cutoff", cutoff),
		zap.Int64("retry_rows", retries),
		zap.Int64("snapshot_rows", snaps),
	)
}

// healthCheck probes the remote endpoint and logs pending backlog. Purely
// advisory; outcomes never alter scheduling or retry behavior.
func (l *Loop) healthCheck(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if l.Prober != nil {
		if err := l.Prober.Probe(probeCtx); err != nil {
			l.Log.Warn("remote health probe failed", zap.Error(err))
		}
	}

	pendingTx, err := l.Records.CountPending(ctx, model.KindTransaction, l.MaxRetryAttempts)
	if err != nil {
		l.Log.Warn("pending count failed", zap.Error(err))
		return
	}
	pendingInv, err := l.Records.CountPending(ctx, model.KindInventory, l.MaxRetryAttempts)
	if err != nil {
		l.Log.Warn("pending count failed", zap.Error(err))
		return
	}

	l.Log.Info("pending backlog",
		zap.Int("transactions", pendingTx),
		zap.Int("inventory_updates", pendingInv),
	)
}
