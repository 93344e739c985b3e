package model

import (
	"strings"
	"time"
)

// RecordKind selects the backing table for a pending record. Sync logic is
// written once over Record; the kind matters only at the storage and
// selection boundaries.
type RecordKind string

const (
	KindTransaction RecordKind = "transaction"
	KindInventory   RecordKind = "inventory"
)

func (k RecordKind) String() string { return string(k) }

func (k RecordKind) Valid() bool {
	return k == KindTransaction || k == KindInventory
}

type EventType string

const (
	EventSale       EventType = "sale"
	EventReturn     EventType = "return"
	EventAdjustment EventType = "adjustment"
	EventRestock    EventType = "restock"
	EventDamage     EventType = "damage"
)

func (t EventType) String() string { return string(t) }

func (t EventType) Valid() bool {
	switch t {
	case EventSale, EventReturn, EventAdjustment, EventRestock, EventDamage:
		return true
	default:
		return false
	}
}

// ParseEventType normalizes input. Returns (value, true) if valid.
func ParseEventType(s string) (EventType, bool) {
	t := EventType(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t, true
	}
	return "", false
}

// SyncState is the per-record sync metadata. Only the sync engine mutates it.
// Synced moves false->true exactly once and never back; SyncedAt is set at
// that moment and LastSyncError cleared.
type SyncState struct {
	Synced          bool       `db:"synced"`
	SyncAttempts    int        `db:"sync_attempts"`
	LastSyncAttempt *time.Time `db:"last_sync_attempt"`
	LastSyncError   *string    `db:"last_sync_error"`
	SyncedAt        *time.Time `db:"synced_at"`
}

// Record is one locally captured POS event awaiting delivery to the central
// inventory service. Quantity is signed for inventory deltas; money fields
// are integer minor units and stay zero for pure inventory adjustments.
type Record struct {
	ID        string     `db:"id"`
	Kind      RecordKind `db:"-"`
	StoreID   string     `db:"store_id"`
	ProductID string     `db:"product_id"`
	Type      EventType  `db:"event_type"`
	Quantity  int64      `db:"quantity"`
	UnitPrice int64      `db:"unit_price"`
	Total     int64      `db:"total"`
	EventTime time.Time  `db:"event_time"`
	CreatedAt time.Time  `db:"created_at"`

	SyncState
}

// Exhausted reports whether the record burned its whole retry budget without
// ever being delivered. Exhausted records are skipped by selection but kept
// for inspection.
func (r Record) Exhausted(maxAttempts int) bool {
	return !r.Synced && r.SyncAttempts >= maxAttempts
}
