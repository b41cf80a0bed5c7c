// Package events defines event types and structures for pipeline lifecycle
// notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/publion/publion/pkg/models"
)

type EventType string

// Topic carries every pipeline lifecycle event.
const Topic = "publion.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent    EventType = "execution.started"
	ExecutionSuspendedEvent  EventType = "execution.suspended"
	ExecutionResumedEvent    EventType = "execution.resumed"
	ExecutionCompletedEvent  EventType = "execution.completed"
	ExecutionTerminatedEvent EventType = "execution.terminated"

	StageFinishedEvent EventType = "execution.stage.finished"

	PostPublishedEvent     EventType = "post.published"
	PostPublishFailedEvent EventType = "post.publish_failed"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	ExecutionID string         `json:"execution_id"`
	UserID      string         `json:"user_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, executionID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		ExecutionID: executionID,
		Metadata:    make(map[string]any),
	}
}

// ExecutionStarted is emitted when a fresh run enters the graph.
type ExecutionStarted struct {
	BaseEvent

	URL string `json:"url"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

// ExecutionSuspended is emitted when a run parks on an interrupt.
type ExecutionSuspended struct {
	BaseEvent

	Stage         string               `json:"stage"`
	InterruptType models.InterruptType `json:"interrupt_type"`
}

func (e ExecutionSuspended) GetType() EventType {
	return ExecutionSuspendedEvent
}

// ExecutionResumed is emitted when a suspended run re-enters the graph.
type ExecutionResumed struct {
	BaseEvent

	Stage      string `json:"stage"`
	Rehydrated bool   `json:"rehydrated"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}

// ExecutionCompleted is emitted when a run reaches the end of the graph
// without terminating.
type ExecutionCompleted struct {
	BaseEvent

	Duration time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

// ExecutionTerminated is emitted on any terminal stop short of completion,
// whether by rejection, an error, a timeout, or startup recovery.
type ExecutionTerminated struct {
	BaseEvent

	Reason string `json:"reason"`
}

func (e ExecutionTerminated) GetType() EventType {
	return ExecutionTerminatedEvent
}

// StageFinished is emitted at every stage-boundary checkpoint.
type StageFinished struct {
	BaseEvent

	Stage      string `json:"stage"`
	DurationMs int64  `json:"duration_ms"`
}

func (e StageFinished) GetType() EventType {
	return StageFinishedEvent
}

// PostPublished is emitted once per successful platform publish.
type PostPublished struct {
	BaseEvent

	Provider models.Provider `json:"provider"`
	PostID   string          `json:"post_id"`
}

func (e PostPublished) GetType() EventType {
	return PostPublishedEvent
}

// PostPublishFailed is emitted when one platform publish fails. The sibling
// platform proceeds independently.
type PostPublishFailed struct {
	BaseEvent

	Provider models.Provider `json:"provider"`
	Error    string          `json:"error"`
}

func (e PostPublishFailed) GetType() EventType {
	return PostPublishFailedEvent
}
