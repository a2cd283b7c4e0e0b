package domain

import (
	"time"

	"go.trai.ch/zerr"
)

// ExecutionStatus is the overall status of an execution.
type ExecutionStatus uint8

const (
	// ExecutionRequested is the status of a freshly created execution.
	ExecutionRequested ExecutionStatus = iota
	// ExecutionInProgress is set once every task has been assigned.
	ExecutionInProgress
	// ExecutionCompleted is set when every task has completed.
	ExecutionCompleted
	// ExecutionCanceled is set by the requestor.
	ExecutionCanceled
	// ExecutionFailed is reserved for operators abandoning an execution.
	ExecutionFailed
)

var executionStatusNames = [...]string{
	ExecutionRequested:  "requested",
	ExecutionInProgress: "in_progress",
	ExecutionCompleted:  "completed",
	ExecutionCanceled:   "canceled",
	ExecutionFailed:     "failed",
}

func (s ExecutionStatus) String() string {
	if int(s) < len(executionStatusNames) {
		return executionStatusNames[s]
	}
	return "unknown"
}

// MarshalText encodes the status by name.
func (s ExecutionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *ExecutionStatus) UnmarshalText(b []byte) error {
	for i, name := range executionStatusNames {
		if name == string(b) {
			*s = ExecutionStatus(i)
			return nil
		}
	}
	return zerr.With(zerr.New("unknown execution status"), "status", string(b))
}

// AcceptsTransitions reports whether task records of the execution may still change.
func (s ExecutionStatus) AcceptsTransitions() bool {
	switch s {
	case ExecutionRequested, ExecutionInProgress:
		return true
	case ExecutionCompleted, ExecutionCanceled, ExecutionFailed:
		return false
	}
	return false
}

// TaskState is the lifecycle state of one task execution record.
type TaskState uint8

const (
	// TaskPending is the initial state; no node is assigned.
	TaskPending TaskState = iota
	// TaskAssigned means a node was chosen by a scheduler.
	TaskAssigned
	// TaskInProgress means the assigned node reported that it started.
	TaskInProgress
	// TaskCompleted means the assigned node reported outputs.
	TaskCompleted
	// TaskFailed means the assigned node reported a failure.
	TaskFailed
	// TaskPendingVerification marks a shadow record awaiting re-execution.
	TaskPendingVerification
	// TaskVerified marks a shadow record whose re-execution was reported.
	TaskVerified
)

var taskStateNames = [...]string{
	TaskPending:             "pending",
	TaskAssigned:            "assigned",
	TaskInProgress:          "in_progress",
	TaskCompleted:           "completed",
	TaskFailed:              "failed",
	TaskPendingVerification: "pending_verification",
	TaskVerified:            "verified",
}

func (s TaskState) String() string {
	if int(s) < len(taskStateNames) {
		return taskStateNames[s]
	}
	return "unknown"
}

// MarshalText encodes the state by name.
func (s TaskState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *TaskState) UnmarshalText(b []byte) error {
	for i, name := range taskStateNames {
		if name == string(b) {
			*s = TaskState(i)
			return nil
		}
	}
	return zerr.With(zerr.New("unknown task state"), "state", string(b))
}

// CanTransition reports whether a record may move from s to next.
func (s TaskState) CanTransition(next TaskState) bool {
	switch s {
	case TaskPending:
		return next == TaskAssigned
	case TaskAssigned:
		return next == TaskInProgress || next == TaskCompleted || next == TaskFailed
	case TaskInProgress:
		return next == TaskCompleted || next == TaskFailed
	case TaskFailed:
		return next == TaskPending
	case TaskPendingVerification:
		return next == TaskVerified
	case TaskCompleted, TaskVerified:
		return false
	}
	return false
}

// AtLeastAssigned reports whether a node has been bound to the record.
func (s TaskState) AtLeastAssigned() bool {
	switch s {
	case TaskAssigned, TaskInProgress, TaskCompleted:
		return true
	case TaskPending, TaskFailed, TaskPendingVerification, TaskVerified:
		return false
	}
	return false
}

// TaskExecutionStatus tracks one task within an execution. Shadow records carry the
// index of the record they re-verify in TaskToVerify.
type TaskExecutionStatus struct {
	Index           uint64    `json:"task_index"`
	TaskID          TaskID    `json:"task_id"`
	TaskToVerify    *uint64   `json:"task_to_verify,omitempty"`
	AssignedNode    Identity  `json:"assigned_node,omitempty"`
	State           TaskState `json:"status"`
	InputLocations  []string  `json:"input_locations,omitempty"`
	OutputLocations []string  `json:"output_locations,omitempty"`
	StartedAt       time.Time `json:"start_time,omitzero"`
	CompletedAt     time.Time `json:"completion_time,omitzero"`
	FailureReason   string    `json:"failure_reason,omitempty"`
}

// IsShadow reports whether the record is a verification shadow.
func (t *TaskExecutionStatus) IsShadow() bool {
	return t.TaskToVerify != nil
}

// Execution is one run of a model against concrete inputs. It is never deleted.
type Execution struct {
	ID            ExecutionID           `json:"id"`
	ModelID       ModelID               `json:"model_id"`
	Requestor     Identity              `json:"requestor"`
	MaxFee        uint64                `json:"max_fee"`
	InputLocation string                `json:"input_location"`
	StartedAt     time.Time             `json:"start_time"`
	Status        ExecutionStatus       `json:"status"`
	Tasks         []TaskExecutionStatus `json:"task_statuses"`
}

// NewExecution seeds one pending record per task of the model, in model order.
func NewExecution(id ExecutionID, model *Model, requestor Identity, input string, maxFee uint64, now time.Time) *Execution {
	tasks := make([]TaskExecutionStatus, len(model.TaskIDs))
	for i, tid := range model.TaskIDs {
		tasks[i] = TaskExecutionStatus{
			Index:  uint64(i),
			TaskID: tid,
			State:  TaskPending,
		}
	}
	return &Execution{
		ID:            id,
		ModelID:       model.ID,
		Requestor:     requestor,
		MaxFee:        maxFee,
		InputLocation: input,
		StartedAt:     now,
		Status:        ExecutionRequested,
		Tasks:         tasks,
	}
}

// FindTask returns the index of the primary record for the task.
func (e *Execution) FindTask(id TaskID) (int, bool) {
	for i := range e.Tasks {
		if e.Tasks[i].TaskID == id && !e.Tasks[i].IsShadow() {
			return i, true
		}
	}
	return 0, false
}

// AllPrimary reports whether every primary record satisfies pred. Shadow records
// never hold up the main pipeline.
func (e *Execution) AllPrimary(pred func(*TaskExecutionStatus) bool) bool {
	for i := range e.Tasks {
		if e.Tasks[i].IsShadow() {
			continue
		}
		if !pred(&e.Tasks[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (e *Execution) Clone() *Execution {
	c := *e
	c.Tasks = make([]TaskExecutionStatus, len(e.Tasks))
	for i, t := range e.Tasks {
		if t.TaskToVerify != nil {
			v := *t.TaskToVerify
			t.TaskToVerify = &v
		}
		t.InputLocations = append([]string(nil), t.InputLocations...)
		t.OutputLocations = append([]string(nil), t.OutputLocations...)
		c.Tasks[i] = t
	}
	return &c
}
