package events

// EventType defines the type of event
type EventType string

const (
	// Group events
	EventTypeGroupCreated EventType = "group.created"
	EventTypeGroupUpdated EventType = "group.updated"

	// Run events
	EventTypeRunStarted   EventType = "run.started"
	EventTypeRunCompleted EventType = "run.completed"
	EventTypeRunFailed    EventType = "run.failed"
)
