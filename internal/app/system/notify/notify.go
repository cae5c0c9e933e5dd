// Package notify delivers workflow events to an external notification
// backend. Delivery is fire-and-forget: workflow operations publish after
// their transaction commits and never see a delivery failure.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event types.
const (
	EventRequestSubmitted  = "request.submitted"
	EventRequestApproved   = "request.approved"
	EventRequestRejected   = "request.rejected"
	EventRequestCancelled  = "request.cancelled"
	EventDocumentUploaded  = "document.uploaded"
	EventDocumentAccepted  = "document.accepted"
	EventDocumentRejected  = "document.rejected"
	EventOfferingDeleted   = "offering.deleted"
	EventRequestAutoReject = "request.auto_rejected"
)

// Event is one notification. Recipients lists the actors that should hear
// about it; Data carries ids and reasons as strings.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	OccurredAt time.Time         `json:"occurred_at"`
	Recipients []string          `json:"recipients"`
	Data       map[string]string `json:"data,omitempty"`
}

// NewEvent stamps a new event with a random id and the current time.
func NewEvent(typ string, recipients ...primitive.ObjectID) Event {
	ev := Event{
		ID:         uuid.NewString(),
		Type:       typ,
		OccurredAt: time.Now().UTC(),
		Data:       map[string]string{},
	}
	for _, r := range recipients {
		ev.Recipients = append(ev.Recipients, r.Hex())
	}
	return ev
}

// With sets a data field and returns the event for chaining.
func (e Event) With(key, value string) Event {
	if e.Data == nil {
		e.Data = map[string]string{}
	}
	e.Data[key] = value
	return e
}

// Notifier delivers one event to a backend.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Publisher accepts events without blocking the caller.
type Publisher interface {
	Publish(ev Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
func (Nop) Publish(Event)                       {}
