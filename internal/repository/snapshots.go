package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jfarhadi/pos-sync/internal/model"
	"github.com/jmoiron/sqlx"
)

// SnapshotsRepository persists one status row per synchronization cycle.
type SnapshotsRepository interface {
	Insert(ctx context.Context, s model.StatusSnapshot) error
	// Latest returns the most recent snapshot, nil when none exist.
	Latest(ctx context.Context) (*model.StatusSnapshot, error)
	// LatestSuccessful returns the most recent zero-failure cycle, nil when
	// none exist.
	LatestSuccessful(ctx context.Context) (*model.StatusSnapshot, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type SnapshotsRepositoryImpl struct {
	db *sqlx.DB
}

func NewSnapshotsRepository(db *sqlx.DB) *SnapshotsRepositoryImpl {
	return &SnapshotsRepositoryImpl{db: db}
}

func (r *SnapshotsRepositoryImpl) Insert(ctx context.Context, s model.StatusSnapshot) error {
	const q = `
		INSERT INTO status_snapshots
		    (synced_count, failed_count, duration_ms, status,
		     pending_transactions, pending_inventory, created_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, ?)
	`
	created := s.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		s.SyncedCount, s.FailedCount, s.DurationMs, s.Status.String(),
		s.PendingTransactions, s.PendingInventory, created.UTC(),
	)
	return err
}

func (r *SnapshotsRepositoryImpl) Latest(ctx context.Context) (*model.StatusSnapshot, error) {
	return r.latestWhere(ctx, ``)
}

func (r *SnapshotsRepositoryImpl) LatestSuccessful(ctx context.Context) (*model.StatusSnapshot, error) {
	return r.latestWhere(ctx, `WHERE status = 'running'`)
}

func (r *SnapshotsRepositoryImpl) latestWhere(ctx context.Context, where string) (*model.StatusSnapshot, error) {
	var s model.StatusSnapshot
	q := `SELECT * FROM status_snapshots ` + where + ` ORDER BY created_at DESC, id DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &s, q); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SnapshotsRepositoryImpl) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM status_snapshots WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
