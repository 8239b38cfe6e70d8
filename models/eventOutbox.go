package models

import (
	"context"
	"time"

	"github.com/venturelab/accelerator_backend/config"
	"github.com/venturelab/accelerator_backend/utils"
	"gorm.io/gorm"
)

// DomainEventRecord is a transactional outbox row. Engines append events in
// the same transaction as the state change; the dispatcher publishes them
// after commit. At-least-once delivery, consumers dedupe on id.
type DomainEventRecord struct {
	ID               int        `gorm:"primary_key;index:idx_event_dispatch,priority:2" json:"id"`
	EventType        EventType  `gorm:"size:50;not null;index" json:"event_type"`
	SubjectId        string     `gorm:"size:64;index;not null" json:"subject_id"`
	Payload          []byte     `gorm:"type:blob" json:"payload"`
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_event_dispatch,priority:1" json:"publish_status"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_event_dispatch,priority:3" json:"next_attempt_at"`
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// EnqueueDomainEvent stores an event in the outbox inside the caller's
// transaction. payload must already be serialized.
func EnqueueDomainEvent(tx *gorm.DB, eventType EventType, subjectId string, payload []byte) error {

	correlationId, _ := utils.GetCorrelationIdFromContext(tx.Statement.Context)
	record := DomainEventRecord{
		EventType:     eventType,
		SubjectId:     subjectId,
		Payload:       payload,
		PublishStatus: string(OutboxPublishStatusPending),
		CorrelationId: correlationId,
	}
	return tx.Create(&record).Error
}

// GetDomainEvents lists outbox rows for a subject, oldest first (admin read).
func GetDomainEvents(ctx context.Context, subjectId string) ([]*DomainEventRecord, error) {

	db := config.GetDB()
	var results []*DomainEventRecord
	if err := db.WithContext(ctx).
		Where("subject_id = ?", subjectId).
		Order("id").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
