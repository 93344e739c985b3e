package model

import "time"

type CycleStatus string

const (
	CycleRunning CycleStatus = "running"
	CycleError   CycleStatus = "error"
)

func (s CycleStatus) String() string { return string(s) }

// StatusSnapshot is the per-cycle rollup written at the end of every
// synchronization cycle. Append-only; read for trend and health reporting.
type StatusSnapshot struct {
	ID                  int64       `db:"id"`
	SyncedCount         int         `db:"synced_count"`
	FailedCount         int         `db:"failed_count"`
	DurationMs          int64       `db:"duration_ms"`
	Status              CycleStatus `db:"status"`
	PendingTransactions int         `db:"pending_transactions"`
	PendingInventory    int         `db:"pending_inventory"`
	CreatedAt           time.Time   `db:"created_at"`
}
