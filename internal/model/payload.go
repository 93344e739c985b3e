package model

import "time"

// SyncPayload is the JSON body the central inventory service ingests.
type SyncPayload struct {
	StoreID   string    `json:"storeId"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	ProductID string    `json:"productId"`
	Quantity  int64     `json:"quantity"`
	Price     int64     `json:"price"`
}

// Payload serializes the record into the central service's wire shape.
// Price carries the transaction total; inventory deltas report zero.
func (r Record) Payload() SyncPayload {
	p := SyncPayload{
		StoreID:   r.StoreID,
		Type:      r.Type.String(),
		Timestamp: r.EventTime,
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
	}
	if r.Kind == KindTransaction {
		p.Price = r.Total
	}
	return p
}

// SyncedEvent is published (best effort) after a record is confirmed
// delivered. A failed publish never fails the sync itself.
type SyncedEvent struct {
	ID       string     `json:"id"`
	StoreID  string     `json:"store_id"`
	Kind     RecordKind `json:"kind"`
	Type     EventType  `json:"type"`
	SyncedAt time.Time  `json:"synced_at"`
}
