package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"suggest_server/core/domain"
	"suggest_server/core/port/out"
)

// EventSink writes audit events to a Mongo collection. Callers treat
// writes as best-effort, a failed insert is logged upstream and
// dropped.
type EventSink struct {
	collection *mongo.Collection
}

func NewEventSink(client *mongo.Client, database string) *EventSink {
	return &EventSink{
		collection: client.Database(database).Collection("suggestion_events"),
	}
}

func (s *EventSink) Log(ctx context.Context, event *domain.EventLog) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.collection.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("insert event %s: %w", event.EventType, err)
	}
	return nil
}

var _ out.EventSink = (*EventSink)(nil)
