package repository

import (
	"context"
	"time"

	"github.com/jfarhadi/pos-sync/internal/model"
	"github.com/jmoiron/sqlx"
)

// RetryLogRepository persists the append-only audit of failed delivery
// attempts. Rows are immutable; DeleteOlderThan is retention cleanup only.
type RetryLogRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, e model.RetryLogEntry) error
	// CountSince counts failed attempts recorded at or after the given time.
	CountSince(ctx context.Context, since time.Time) (int, error)
	// CountByEntity counts attempts logged for one record.
	CountByEntity(ctx context.Context, kind model.RecordKind, id string) (int, error)
	ListByEntity(ctx context.Context, kind model.RecordKind, id string) ([]model.RetryLogEntry, error)
	ListRecent(ctx context.Context, limit, offset int) ([]model.RetryLogEntry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type RetryLogRepositoryImpl struct {
	db *sqlx.DB
}

func NewRetryLogRepository(db *sqlx.DB) *RetryLogRepositoryImpl {
	return &RetryLogRepositoryImpl{db: db}
}

func (r *RetryLogRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

func (r *RetryLogRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, e model.RetryLogEntry) error {
	const q = `
		INSERT INTO retry_log
		    (entity_kind, entity_id, store_id, attempt_number, error_message,
		     status_code, should_retry, next_retry_time, created_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q,
			e.EntityKind.String(), e.EntityID, e.StoreID, e.AttemptNumber,
			e.ErrorMessage, e.StatusCode, e.ShouldRetry, e.NextRetryTime,
			created.UTC(),
		)
		return err
	})
}

func (r *RetryLogRepositoryImpl) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM retry_log WHERE created_at >= ?`, since.UTC())
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *RetryLogRepositoryImpl) CountByEntity(ctx context.Context, kind model.RecordKind, id string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM retry_log WHERE entity_kind = ? AND entity_id = ?`,
		kind.String(), id)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *RetryLogRepositoryImpl) ListByEntity(ctx context.Context, kind model.RecordKind, id string) ([]model.RetryLogEntry, error) {
	var out []model.RetryLogEntry
	err := r.db.SelectContext(ctx, &out, `
		SELECT * FROM retry_log
		WHERE entity_kind = ? AND entity_id = ?
		ORDER BY attempt_number ASC
	`, kind.String(), id)
	return out, err
}

func (r *RetryLogRepositoryImpl) ListRecent(ctx context.Context, limit, offset int) ([]model.RetryLogEntry, error) {
	var out []model.RetryLogEntry
	err := r.db.SelectContext(ctx, &out, `
		SELECT * FROM retry_log
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	return out, err
}

func (r *RetryLogRepositoryImpl) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM retry_log WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
