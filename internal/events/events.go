// Package events provides an event system for dispatcher progress notifications.
package events

import "time"

// EventType represents the type of event
type EventType string

const (
	// EventWorkerStarted is emitted when a worker has been launched
	EventWorkerStarted EventType = "worker_started"
	// EventTaskAssigned is emitted when a task is sent to an idle worker
	EventTaskAssigned EventType = "task_assigned"
	// EventResultReceived is emitted when a worker's result has been collected
	EventResultReceived EventType = "result_received"
	// EventProtocolError is emitted when a result message could not be parsed
	EventProtocolError EventType = "protocol_error"
	// EventWorkerExited is emitted when a worker has been reaped
	EventWorkerExited EventType = "worker_exited"
	// EventRunCompleted is emitted once every task has a result
	EventRunCompleted EventType = "run_completed"
)

// Event represents a dispatcher event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	Worker    int       `json:"worker"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	Task      string `json:"task,omitempty"`
	Value     *int   `json:"value,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
	Completed int    `json:"completed,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewWorkerStartedEvent creates a worker started event
func NewWorkerStartedEvent(runID string, worker int) Event {
	return Event{
		Type:      EventWorkerStarted,
		Timestamp: time.Now(),
		RunID:     runID,
		Worker:    worker,
	}
}

// NewTaskAssignedEvent creates a task assigned event
func NewTaskAssignedEvent(runID string, worker int, task string) Event {
	return Event{
		Type:      EventTaskAssigned,
		Timestamp: time.Now(),
		RunID:     runID,
		Worker:    worker,
		Data: EventData{
			Task: task,
		},
	}
}

// NewResultReceivedEvent creates a result received event
func NewResultReceivedEvent(runID string, worker int, task string, value int, latency time.Duration) Event {
	return Event{
		Type:      EventResultReceived,
		Timestamp: time.Now(),
		RunID:     runID,
		Worker:    worker,
		Data: EventData{
			Task:      task,
			Value:     &value,
			LatencyMs: latency.Milliseconds(),
		},
	}
}

// NewProtocolErrorEvent creates a protocol error event
func NewProtocolErrorEvent(runID string, worker int, err error) Event {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	return Event{
		Type:      EventProtocolError,
		Timestamp: time.Now(),
		RunID:     runID,
		Worker:    worker,
		Data: EventData{
			Error: errMsg,
		},
	}
}

// NewWorkerExitedEvent creates a worker exited event
func NewWorkerExitedEvent(runID string, worker int, completed int) Event {
	return Event{
		Type:      EventWorkerExited,
		Timestamp: time.Now(),
		RunID:     runID,
		Worker:    worker,
		Data: EventData{
			Completed: completed,
		},
	}
}

// NewRunCompletedEvent creates a run completed event
func NewRunCompletedEvent(runID string, completed int) Event {
	return Event{
		Type:      EventRunCompleted,
		Timestamp: time.Now(),
		RunID:     runID,
		Worker:    -1,
		Data: EventData{
			Completed: completed,
		},
	}
}
