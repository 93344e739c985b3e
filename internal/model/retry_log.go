package model

import "time"

// RetryLogEntry is the immutable audit row written for every failed delivery
// attempt. Rows are never mutated; retention cleanup is the only deleter.
type RetryLogEntry struct {
	ID            int64      `db:"id"`
	EntityKind    RecordKind `db:"entity_kind"`
	EntityID      string     `db:"entity_id"`
	StoreID       string     `db:"store_id"`
	AttemptNumber int        `db:"attempt_number"`
	ErrorMessage  string     `db:"error_message"`
	StatusCode    *int       `db:"status_code"`
	ShouldRetry   bool       `db:"should_retry"`
	NextRetryTime *time.Time `db:"next_retry_time"`
	CreatedAt     time.Time  `db:"created_at"`
}
