// Package events is the emission port the engines publish domain events
// through. The production sink writes transactional-outbox rows that the
// dispatcher later publishes to Pub/Sub; tests use the memory sink.
package events

import (
	"context"
	"sync"

	"github.com/venturelab/accelerator_backend/config"
	"github.com/venturelab/accelerator_backend/models"
	"github.com/venturelab/accelerator_backend/utils"
)

type Sink interface {
	Emit(ctx context.Context, eventType models.EventType, subjectId string, payload interface{}) error
}

// OutboxSink persists events as outbox rows; delivery happens asynchronously.
type OutboxSink struct{}

func NewOutboxSink() *OutboxSink {
	return &OutboxSink{}
}

func (s *OutboxSink) Emit(ctx context.Context, eventType models.EventType, subjectId string, payload interface{}) error {

	data, err := utils.MarshalToJSON(payload)
	if err != nil {
		return err
	}
	db := config.GetDB()
	return models.EnqueueDomainEvent(db.WithContext(ctx), eventType, subjectId, []byte(data))
}

// RecordedEvent is what the memory sink captures.
type RecordedEvent struct {
	EventType models.EventType
	SubjectId string
	Payload   interface{}
}

// MemorySink collects events in order for assertions.
type MemorySink struct {
	mu     sync.Mutex
	Events []RecordedEvent
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Emit(ctx context.Context, eventType models.EventType, subjectId string, payload interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, RecordedEvent{EventType: eventType, SubjectId: subjectId, Payload: payload})
	return nil
}

// Types returns the emitted event types in order.
func (s *MemorySink) Types() []models.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]models.EventType, 0, len(s.Events))
	for _, e := range s.Events {
		types = append(types, e.EventType)
	}
	return types
}
