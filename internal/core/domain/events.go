package domain

import "time"

// EventKind names an observational notification. Events are emitted after a
// transition commits and are never inputs to the state machine.
type EventKind string

const (
	EventTaskRegistered         EventKind = "task-registered"
	EventModelRegistered        EventKind = "model-registered"
	EventNodeRegistered         EventKind = "node-registered"
	EventStakeUpdated           EventKind = "stake-updated"
	EventExecutionRequested     EventKind = "execution-requested"
	EventNodeSelectionRequested EventKind = "node-selection-requested"
	EventTaskAssigned           EventKind = "task-assigned"
	EventTaskStarted            EventKind = "task-started"
	EventTaskCompleted          EventKind = "task-completed"
	EventTaskFailed             EventKind = "task-failed"
	EventTaskBeginRequested     EventKind = "task-begin-requested"
	EventModelOutputReady       EventKind = "model-output-ready"
	EventExecutionCompleted     EventKind = "execution-completed"
	EventExecutionCanceled      EventKind = "execution-canceled"
	EventVerificationCompleted  EventKind = "verification-completed"
)

// Event is a fire-and-forget notification. Only the fields relevant to its kind are set.
type Event struct {
	ID          string                `json:"id"`
	Kind        EventKind             `json:"kind"`
	At          time.Time             `json:"at"`
	ExecutionID ExecutionID           `json:"execution_id,omitempty"`
	ModelID     ModelID               `json:"model_id,omitempty"`
	TaskID      TaskID                `json:"task_id,omitempty"`
	TaskIndex   *uint64               `json:"task_index,omitempty"`
	Node        Identity              `json:"node,omitempty"`
	Requestor   Identity              `json:"requestor,omitempty"`
	Amount      uint64                `json:"amount,omitempty"`
	Outputs     []string              `json:"outputs,omitempty"`
	Match       *bool                 `json:"match,omitempty"`
	Reason      string                `json:"reason,omitempty"`
	Tasks       []TaskExecutionStatus `json:"tasks,omitempty"`
}

// Index returns a pointer suitable for Event.TaskIndex.
func Index(i int) *uint64 {
	v := uint64(i)
	return &v
}
