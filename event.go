package xroute

import "time"

// EventType enumerates pipeline and router lifecycle events for observers.
type EventType string

const (
	EventStageStart  EventType = "stage_start"
	EventStageDone   EventType = "stage_done"
	EventFiltered    EventType = "message_filtered"
	EventFailed      EventType = "message_failed"
	EventDelivered   EventType = "message_delivered"
	EventReceived    EventType = "message_received"
	EventPublishDone EventType = "publish_done"
	EventError       EventType = "error"
)

// Event carries telemetry for observers. Operation is zero for events that
// are not tied to one stage.
type Event struct {
	Type      EventType
	Route     string
	Operation OperationType
	Topic     string
	MessageID string
	Reason    string
	Duration  time.Duration
	Err       error

	// attached for async dispatch
	observers []Observer
}
