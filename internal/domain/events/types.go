// Package events defines all event types published by repod.
package events

import (
	"encoding/json"
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// File events
	EventTypeFileChanged EventType = "file_changed"
	EventTypeFileRenamed EventType = "file_renamed"

	// Repository state events
	EventTypeRepoStateChanged    EventType = "repo_state_changed"
	EventTypeBranchChanged       EventType = "branch_changed"
	EventTypeRemotesChanged      EventType = "remotes_changed"
	EventTypeUntrackedChanged    EventType = "untracked_changed"
	EventTypeStatusChanged       EventType = "status_changed"
	EventTypeRepoRegistered      EventType = "repo_registered"
	EventTypeRepoUnregistered    EventType = "repo_unregistered"
	EventTypeFetchCompleted      EventType = "fetch_completed"
	EventTypeUpdateCompleted     EventType = "update_completed"
	EventTypeOperationCompleted  EventType = "operation_completed"

	// Connection events
	EventTypeHeartbeat EventType = "heartbeat"
	EventTypeError     EventType = "error"
)

// Event is the base interface for all events.
type Event interface {
	// Type returns the event type.
	Type() EventType

	// Timestamp returns when the event occurred.
	Timestamp() time.Time

	// ToJSON serializes the event to JSON.
	ToJSON() ([]byte, error)

	// GetRepoID returns the repository ID the event belongs to (may be empty).
	GetRepoID() string
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType EventType   `json:"event"`
	EventTime time.Time   `json:"timestamp"`
	RepoID    string      `json:"repo_id,omitempty"`
	Payload   interface{} `json:"payload"`
	RequestID string      `json:"request_id,omitempty"`
}

// Type returns the event type.
func (e *BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e *BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// ToJSON serializes the event to JSON.
func (e *BaseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// GetRepoID returns the repository ID.
func (e *BaseEvent) GetRepoID() string {
	return e.RepoID
}

// SetRepoID sets the repository context for an event.
func (e *BaseEvent) SetRepoID(repoID string) {
	e.RepoID = repoID
}

// NewEvent creates a new base event with the given type and payload.
func NewEvent(eventType EventType, payload interface{}) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		EventTime: time.Now().UTC(),
		Payload:   payload,
	}
}

// NewRepoEvent creates a new event scoped to a repository.
func NewRepoEvent(eventType EventType, repoID string, payload interface{}) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		EventTime: time.Now().UTC(),
		RepoID:    repoID,
		Payload:   payload,
	}
}

// HeartbeatPayload is the payload for heartbeat events.
type HeartbeatPayload struct {
	Seq           int64 `json:"seq"`
	Repos         int   `json:"repos"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// NewHeartbeatEvent creates a new heartbeat event.
func NewHeartbeatEvent(seq int64, repos int, uptimeSeconds int64) *BaseEvent {
	return NewEvent(EventTypeHeartbeat, HeartbeatPayload{
		Seq:           seq,
		Repos:         repos,
		UptimeSeconds: uptimeSeconds,
	})
}

// ErrorPayload is the payload for error events.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorEvent creates a new error event.
func NewErrorEvent(code, message string) *BaseEvent {
	return NewEvent(EventTypeError, ErrorPayload{Code: code, Message: message})
}
