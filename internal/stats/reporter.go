// Package stats derives point-in-time health from the record store and the
// retry ledger. Everything here is read-only and advisory: the verdict never
// blocks or alters the engine's own retry logic.
package stats

import (
	"context"
	"time"

	"github.com/jfarhadi/pos-sync/internal/model"
	"github.com/jfarhadi/pos-sync/internal/repository"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type Verdict string

const (
	Healthy   Verdict = "healthy"
	Degraded  Verdict = "degraded"
	Unhealthy Verdict = "unhealthy"
)

// Report is a point-in-time rollup for health-check consumers.
type Report struct {
	Verdict               Verdict    `json:"status"`
	PendingTransactions   int        `json:"pending_transactions"`
	PendingInventory      int        `json:"pending_inventory"`
	ExhaustedTransactions int        `json:"exhausted_transactions"`
	ExhaustedInventory    int        `json:"exhausted_inventory"`
	FailuresToday         int        `json:"failures_today"`
	LastCycleAt           *time.Time `json:"last_cycle_at,omitempty"`
	LastSuccessAt         *time.Time `json:"last_success_at,omitempty"`
}

type Reporter struct {
	db      *sqlx.DB
	records repository.RecordsRepository
	retries repository.RetryLogRepository
	snaps   repository.SnapshotsRepository
	log     *zap.Logger

	maxAttempts       int
	pendingThreshold  int
	failuresThreshold int
}

func New(
	dbx *sqlx.DB,
	records repository.RecordsRepository,
	retries repository.RetryLogRepository,
	snaps repository.SnapshotsRepository,
	maxAttempts, pendingThreshold, failuresThreshold int,
	log *zap.Logger,
) *Reporter {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reporter{
		db:                dbx,
		records:           records,
		retries:           retries,
		snaps:             snaps,
		log:               log,
		maxAttempts:       maxAttempts,
		pendingThreshold:  pendingThreshold,
		failuresThreshold: failuresThreshold,
	}
}

// Report computes the current rollup. A failing store connectivity check, or
// any failing store read, yields Unhealthy regardless of counts; thresholds
// only distinguish Healthy from Degraded.
func (r *Reporter) Report(ctx context.Context) Report {
	rep := Report{Verdict: Unhealthy}

	if err := r.db.PingContext(ctx); err != nil {
		r.log.Warn("record store ping failed", zap.Error(err))
		return rep
	}

	var err error
	if rep.PendingTransactions, err = r.records.CountPending(ctx, model.KindTransaction, r.maxAttempts); err != nil {
		r.log.Warn("stats read failed", zap.Error(err))
		return rep
	}
	if rep.PendingInventory, err = r.records.CountPending(ctx, model.KindInventory, r.maxAttempts); err != nil {
		r.log.Warn("stats read failed", zap.Error(err))
		return rep
	}
	if rep.ExhaustedTransactions, err = r.records.CountExhausted(ctx, model.KindTransaction, r.maxAttempts); err != nil {
		r.log.Warn("stats read failed", zap.Error(err))
		return rep
	}
	if rep.ExhaustedInventory, err = r.records.CountExhausted(ctx, model.KindInventory, r.maxAttempts); err != nil {
		r.log.Warn("stats read failed", zap.Error(err))
		return rep
	}

	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	if rep.FailuresToday, err = r.retries.CountSince(ctx, midnight); err != nil {
		r.log.Warn("stats read failed", zap.Error(err))
		return rep
	}

	if last, err := r.snaps.Latest(ctx); err != nil {
		r.log.Warn("stats read failed", zap.Error(err))
		return rep
	} else if last != nil {
		t := last.CreatedAt
		rep.LastCycleAt = &t
	}
	if ok, err := r.snaps.LatestSuccessful(ctx); err != nil {
		r.log.Warn("stats read failed", zap.Error(err))
		return rep
	} else if ok != nil {
		t := ok.CreatedAt
		rep.LastSuccessAt = &t
	}

	rep.Verdict = Healthy
	pending := rep.PendingTransactions + rep.PendingInventory
	if (r.pendingThreshold > 0 && pending > r.pendingThreshold) ||
		(r.failuresThreshold > 0 && rep.FailuresToday > r.failuresThreshold) {
		rep.Verdict = Degraded
	}
	return rep
}
