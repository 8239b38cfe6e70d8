// Package workflow runs the background side of the platform: the outbox
// dispatcher that moves domain events from the database to Pub/Sub.
package workflow

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/venturelab/accelerator_backend/config"
	"github.com/venturelab/accelerator_backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventDispatcher publishes pending outbox rows. Claims use SKIP LOCKED so
// multiple dispatchers can run side by side; a crashed dispatcher's rows are
// reclaimed after LockTimeout. Delivery is at-least-once.
type EventDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewEventDispatcher(db *gorm.DB, logger *logrus.Logger) *EventDispatcher {
	return &EventDispatcher{
		DB:             db,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
	}
}

// localOnly means no topic is configured: events are logged and marked
// published so local/dev runs never accumulate a backlog.
func (d *EventDispatcher) localOnly() bool {
	return strings.TrimSpace(config.DomainEventTopic()) == ""
}

func ShouldRunEventDispatcher() bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv("EVENT_DISPATCHER")))
	return val != "false"
}

func (d *EventDispatcher) Run(ctx context.Context) {
	if d == nil || d.DB == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.dispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

func (d *EventDispatcher) dispatchOnce(ctx context.Context) {
	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)

	var claimed []models.DomainEventRecord
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Eligible:
		// - PENDING / FAILED and ready to retry
		// - PROCESSING with a stale lock (dispatcher crashed mid-batch)
		q := tx.
			Where(`
				(
					publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					publish_status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`,
				[]string{string(models.OutboxPublishStatusPending), string(models.OutboxPublishStatusFailed)}, now,
				string(models.OutboxPublishStatusProcessing), staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		for i := range claimed {
			// poison rows go terminal
			if d.MaxAttempts > 0 && claimed[i].PublishAttempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts)
				claimed[i].PublishStatus = string(models.OutboxPublishStatusDead)
				if err := tx.Model(&models.DomainEventRecord{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"publish_status":     string(models.OutboxPublishStatusDead),
					"last_publish_error": &msg,
					"next_attempt_at":    nil,
					"locked_at":          nil,
					"locked_by":          nil,
				}).Error; err != nil {
					return err
				}
				continue
			}

			claimed[i].PublishStatus = string(models.OutboxPublishStatusProcessing)
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &d.DispatcherID
			claimed[i].PublishAttempts = claimed[i].PublishAttempts + 1
			if err := tx.Model(&models.DomainEventRecord{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"publish_status":     claimed[i].PublishStatus,
				"locked_at":          claimed[i].LockedAt,
				"locked_by":          claimed[i].LockedBy,
				"publish_attempts":   gorm.Expr("publish_attempts + 1"),
				"last_publish_error": nil,
				"next_attempt_at":    nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil || len(claimed) == 0 {
		return
	}

	for _, rec := range claimed {
		if rec.PublishStatus == string(models.OutboxPublishStatusDead) {
			continue
		}

		if d.localOnly() {
			if d.Logger != nil {
				d.Logger.WithFields(logrus.Fields{
					"field":      "EventDispatcher",
					"event_type": rec.EventType,
					"subject_id": rec.SubjectId,
					"record_id":  rec.ID,
				}).Info("domain event (local delivery)")
			}
			d.markPublished(ctx, rec.ID, nil, now)
			continue
		}

		attrs := map[string]string{
			"event_type":     string(rec.EventType),
			"subject_id":     rec.SubjectId,
			"correlation_id": rec.CorrelationId,
		}
		msgId, pubErr := config.PublishDomainEvent(ctx, rec.Payload, attrs)
		if pubErr != nil {
			d.markPublishFailed(ctx, rec.ID, pubErr, rec.PublishAttempts)
			continue
		}
		d.markPublished(ctx, rec.ID, &msgId, now)
	}
}

func (d *EventDispatcher) markPublished(ctx context.Context, recordId int, msgId *string, now time.Time) {
	db := d.DB.WithContext(ctx)
	_ = db.Model(&models.DomainEventRecord{}).
		Where("id = ?", recordId).
		Updates(map[string]interface{}{
			"publish_status":     string(models.OutboxPublishStatusPublished),
			"published_at":       &now,
			"pub_sub_message_id": msgId,
			"locked_at":          nil,
			"locked_by":          nil,
			"next_attempt_at":    nil,
		}).Error
}

func (d *EventDispatcher) markPublishFailed(ctx context.Context, recordId int, err error, attempt int) {
	db := d.DB.WithContext(ctx)
	now := time.Now().UTC()
	msg := err.Error()

	if d.MaxAttempts > 0 && attempt >= d.MaxAttempts {
		_ = db.Model(&models.DomainEventRecord{}).
			Where("id = ?", recordId).
			Updates(map[string]interface{}{
				"publish_status":     string(models.OutboxPublishStatusDead),
				"last_publish_error": &msg,
				"next_attempt_at":    nil,
				"locked_at":          nil,
				"locked_by":          nil,
			}).Error

		if d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"field":     "EventDispatcher",
				"record_id": recordId,
				"attempt":   attempt,
			}).Error("event publish moved to DEAD after max attempts: " + msg)
		}
		return
	}

	backoff := d.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > time.Minute*10 {
			backoff = time.Minute * 10
			break
		}
	}
	next := now.Add(backoff)
	_ = db.Model(&models.DomainEventRecord{}).
		Where("id = ?", recordId).
		Updates(map[string]interface{}{
			"publish_status":     string(models.OutboxPublishStatusFailed),
			"last_publish_error": &msg,
			"next_attempt_at":    &next,
			"locked_at":          nil,
			"locked_by":          nil,
		}).Error

	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":           "EventDispatcher",
			"record_id":       recordId,
			"attempt":         attempt,
			"next_attempt_at": next.Format(time.RFC3339Nano),
		}).Error("event publish failed: " + msg)
	}
}
