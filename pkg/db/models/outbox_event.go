package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/zazmarga/online-cinema/pkg/enums"
)

// OutboxEvent is an append-only event drained by the outbox publisher.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:varchar(64);not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:varchar(32);not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt     time.Time                 `gorm:"column:created_at;not null"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
}
