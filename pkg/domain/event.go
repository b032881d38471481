package domain

import "time"

// EventType identifies a lifecycle notification
type EventType string

const (
	EventTypeInstanceCreated EventType = "instance.created"
	EventTypeInstanceUpdated EventType = "instance.updated"
	EventTypeInstanceDeleted EventType = "instance.deleted"
	EventTypeInstanceFailed  EventType = "instance.failed"
	EventTypeNodeCreated     EventType = "node.created"
	EventTypeNodeUpdated     EventType = "node.updated"
	EventTypeNodeDeleted     EventType = "node.deleted"
	EventTypeSpecCreated     EventType = "spec.created"
	EventTypeSpecUpdated     EventType = "spec.updated"
	EventTypeSpecDeleted     EventType = "spec.deleted"
	EventTypeProfileCreated  EventType = "profile.created"
	EventTypeProfileUpdated  EventType = "profile.updated"
	EventTypeProfileDeleted  EventType = "profile.deleted"
)

// TopicChainEvents is the event bus topic for lifecycle notifications
const TopicChainEvents = "chain.events"

// Event is a lifecycle notification published after a request completes
type Event struct {
	ID         string                 `json:"id"`
	Type       EventType              `json:"type"`
	ResourceID string                 `json:"resource_id"`
	TenantID   string                 `json:"tenant_id,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Data       map[string]interface{} `json:"data,omitempty"`
}
