package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType names a committed core mutation.
type EventType string

const (
	EventProjectStatusChanged EventType = "project.status_changed"
	EventProjectHoursChanged  EventType = "project.hours_changed"
	EventProjectExpired       EventType = "project.expired"
	EventRequestCreated       EventType = "request.created"
	EventRequestAssigned      EventType = "request.assigned"
	EventRequestStatusChanged EventType = "request.status_changed"
	EventDiscussionOpened     EventType = "discussion.opened"
	EventDiscussionReviewed   EventType = "discussion.reviewed"
)

// Event is published after the transaction that produced it commits.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       EventType      `json:"event_type"`
	EntityID   uuid.UUID      `json:"entity_id"`
	ProjectID  *uuid.UUID     `json:"project_id,omitempty"`
	ActorID    uuid.UUID      `json:"actor_id"`
	ActorName  string         `json:"actor_name"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Publisher delivers events to one downstream channel.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
