package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lomoval/calendar/internal/storage"
	log "github.com/sirupsen/logrus"
)

type Kind string

const (
	KindCreated  Kind = "created"
	KindUpdated  Kind = "updated"
	KindDeleted  Kind = "deleted"
	KindReminder Kind = "reminder"
)

// Message is broadcast to the sessions of OwnerID.
type Message struct {
	Kind         Kind           `json:"kind"`
	OwnerID      string         `json:"ownerId"`
	EventID      string         `json:"eventId"`
	OccurrenceID string         `json:"occurrenceId,omitempty"`
	Title        string         `json:"title,omitempty"`
	Time         time.Time      `json:"time"`
	Event        *storage.Event `json:"event,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

type Publisher interface {
	Publish(body []byte) error
}

// QueueNotifier publishes messages as JSON.
type QueueNotifier struct {
	publisher Publisher
}

func NewQueueNotifier(publisher Publisher) *QueueNotifier {
	return &QueueNotifier{publisher: publisher}
}

func (n *QueueNotifier) Notify(_ context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := n.publisher.Publish(data); err != nil {
		return fmt.Errorf("failed to publish %s message for %q: %w", msg.Kind, msg.EventID, err)
	}
	return nil
}

// LogNotifier only logs messages, it is used when no broker is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, msg Message) error {
	log.WithField("kind", msg.Kind).WithField("owner", msg.OwnerID).WithField("event", msg.EventID).
		Info("event notification")
	return nil
}

func Decode(body []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to parse message: %w", err)
	}
	return msg, nil
}
