// Package notify publishes "record synced" events to Kafka. Publishing is a
// side effect of synchronization, never a correctness requirement: failures
// are logged and swallowed.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jfarhadi/pos-sync/internal/model"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer is a thin wrapper around a kafka-go Writer. A nil *Producer is
// valid and does nothing, so callers can wire it unconditionally.
type Producer struct {
	w   *kafka.Writer
	log *zap.Logger
}

// NewProducer returns nil when no brokers are configured.
func NewProducer(brokers []string, topic string, log *zap.Logger) *Producer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}

	return &Producer{w: w, log: log}
}

func (p *Producer) RecordSynced(ctx context.Context, rec model.Record) {
	if p == nil {
		return
	}

	syncedAt := time.Now().UTC()
	if rec.SyncedAt != nil {
		syncedAt = *rec.SyncedAt
	}
	ev := model.SyncedEvent{
		ID:       rec.ID,
		StoreID:  rec.StoreID,
		Kind:     rec.Kind,
		Type:     rec.Type,
		SyncedAt: syncedAt,
	}

	b, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("marshal synced event failed", zap.String("id", rec.ID), zap.Error(err))
		return
	}

	if err := p.w.WriteMessages(ctx, kafka.Message{Key: []byte(rec.ID), Value: b}); err != nil {
		p.log.Warn("synced notification publish failed", zap.String("id", rec.ID), zap.Error(err))
	}
}

func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.w.Close()
}
