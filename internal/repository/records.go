package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jfarhadi/pos-sync/internal/model"
	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a record id does not exist in its table.
var ErrNotFound = errors.New("record not found")

// RecordsRepository defines persistence for pending POS records. Both record
// tables share the same column layout, so one implementation serves both
// kinds; the kind only picks the table. Record rows are never deleted.
type RecordsRepository interface {
	// Insert writes a new pending record (synced=0, sync_attempts=0).
	Insert(ctx context.Context, tx *sqlx.Tx, rec model.Record) error
	// Get fetches one record by id. Returns ErrNotFound when absent.
	Get(ctx context.Context, kind model.RecordKind, id string) (model.Record, error)
	// SelectPending returns up to limit unsynced records that still have
	// retry budget, oldest first.
	SelectPending(ctx context.Context, kind model.RecordKind, maxAttempts, limit int) ([]model.Record, error)
	// MarkAttempt bumps sync_attempts and stamps last_sync_attempt. Committed
	// before the outbound call so a crash never under-counts the budget.
	MarkAttempt(ctx context.Context, tx *sqlx.Tx, kind model.RecordKind, id string, now time.Time) error
	// MarkSynced flips synced, sets synced_at and clears last_sync_error.
	// The WHERE guard keeps the transition monotonic.
	MarkSynced(ctx context.Context, tx *sqlx.Tx, kind model.RecordKind, id string, now time.Time) error
	// MarkFailed records the latest failure cause. Callers pair it with a
	// retry_log insert inside the same transaction.
	MarkFailed(ctx context.Context, tx *sqlx.Tx, kind model.RecordKind, id string, cause string) error
	CountPending(ctx context.Context, kind model.RecordKind, maxAttempts int) (int, error)
	CountExhausted(ctx context.Context, kind model.RecordKind, maxAttempts int) (int, error)
}

type RecordsRepositoryImpl struct {
	db *sqlx.DB
}

func NewRecordsRepository(db *sqlx.DB) *RecordsRepositoryImpl {
	return &RecordsRepositoryImpl{db: db}
}

// table maps a record kind to its backing table. Kinds are a closed set, so
// the Sprintf below never sees external input.
func table(kind model.RecordKind) string {
	if kind == model.KindInventory {
		return "inventory_updates"
	}
	return "transactions"
}

// withTx runs fn in the provided tx, or starts a new transaction when tx is nil.
func (r *RecordsRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
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

func (r *RecordsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, rec model.Record) error {
	q := fmt.Sprintf(`
		INSERT INTO %s
		    (id, store_id, product_id, event_type, quantity, unit_price, total,
		     event_time, created_at, synced, sync_attempts)
		VALUES
		    (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0)
	`, table(rec.Kind))
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q,
			rec.ID, rec.StoreID, rec.ProductID, rec.Type.String(),
			rec.Quantity, rec.UnitPrice, rec.Total,
			rec.EventTime.UTC(), rec.CreatedAt.UTC(),
		)
		return err
	})
}

func (r *RecordsRepositoryImpl) Get(ctx context.Context, kind model.RecordKind, id string) (model.Record, error) {
	var rec model.Record
	q := fmt.Sprintf(`SELECT * FROM %s WHERE id = ?`, table(kind))
	if err := r.db.GetContext(ctx, &rec, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Record{}, ErrNotFound
		}
		return model.Record{}, err
	}
	rec.Kind = kind
	return rec, nil
}

func (r *RecordsRepositoryImpl) SelectPending(ctx context.Context, kind model.RecordKind, maxAttempts, limit int) ([]model.Record, error) {
	q := fmt.Sprintf(`
		SELECT * FROM %s
		WHERE synced = 0 AND sync_attempts < ?
		ORDER BY created_at ASC
		LIMIT ?
	`, table(kind))

	var recs []model.Record
	if err := r.db.SelectContext(ctx, &recs, q, maxAttempts, limit); err != nil {
		return nil, err
	}
	for i := range recs {
		recs[i].Kind = kind
	}
	return recs, nil
}

func (r *RecordsRepositoryImpl) MarkAttempt(ctx context.Context, tx *sqlx.Tx, kind model.RecordKind, id string, now time.Time) error {
	q := fmt.Sprintf(`
		UPDATE %s
		SET sync_attempts = sync_attempts + 1, last_sync_attempt = ?
		WHERE id = ?
	`, table(kind))
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, now.UTC(), id)
		return err
	})
}

func (r *RecordsRepositoryImpl) MarkSynced(ctx context.Context, tx *sqlx.Tx, kind model.RecordKind, id string, now time.Time) error {
	q := fmt.Sprintf(`
		UPDATE %s
		SET synced = 1, synced_at = ?, last_sync_error = NULL
		WHERE id = ? AND synced = 0
	`, table(kind))
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, now.UTC(), id)
		return err
	})
}

func (r *RecordsRepositoryImpl) MarkFailed(ctx context.Context, tx *sqlx.Tx, kind model.RecordKind, id string, cause string) error {
	q := fmt.Sprintf(`
		UPDATE %s
		SET last_sync_error = ?
		WHERE id = ? AND synced = 0
	`, table(kind))
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, cause, id)
		return err
	})
}

func (r *RecordsRepositoryImpl) CountPending(ctx context.Context, kind model.RecordKind, maxAttempts int) (int, error) {
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE synced = 0 AND sync_attempts < ?`, table(kind))
	var n int
	if err := r.db.GetContext(ctx, &n, q, maxAttempts); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *RecordsRepositoryImpl) CountExhausted(ctx context.Context, kind model.RecordKind, maxAttempts int) (int, error) {
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE synced = 0 AND sync_attempts >= ?`, table(kind))
	var n int
	if err := r.db.GetContext(ctx, &n, q, maxAttempts); err != nil {
		return 0, err
	}
	return n, nil
}
