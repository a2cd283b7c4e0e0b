package domain

import "go.trai.ch/zerr"

// ConnectionKey is the identity of a connection. No two connections in a model
// may share one.
type ConnectionKey struct {
	SourceTaskID      TaskID
	SourceOutputIndex uint8
	DestTaskID        TaskID
	DestInputIndex    uint8
}

// TaskConnection is a directed data-flow edge between two tasks. A zero source is a
// model input, a zero destination is a model output.
type TaskConnection struct {
	SourceTaskID      TaskID     `json:"source_task_id" yaml:"source_task_id"`
	SourceOutputIndex uint8      `json:"source_output_index" yaml:"source_output_index"`
	DestTaskID        TaskID     `json:"destination_task_id" yaml:"destination_task_id"`
	DestInputIndex    uint8      `json:"dest_input_index" yaml:"dest_input_index"`
	Tensor            TensorSpec `json:"tensor" yaml:"tensor"`
}

// Key returns the 4-tuple identity of the connection.
func (c TaskConnection) Key() ConnectionKey {
	return ConnectionKey{
		SourceTaskID:      c.SourceTaskID,
		SourceOutputIndex: c.SourceOutputIndex,
		DestTaskID:        c.DestTaskID,
		DestInputIndex:    c.DestInputIndex,
	}
}

// Model is a directed graph of tasks connected by tensor edges.
type Model struct {
	ID          ModelID          `json:"id" yaml:"id"`
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description" yaml:"description"`
	Creator     string           `json:"creator" yaml:"creator"`
	TaskIDs     []TaskID         `json:"task_ids" yaml:"task_ids"`
	Connections []TaskConnection `json:"connections" yaml:"connections"`
}

// Validate checks the fields a model must carry before its graph is examined.
func (m *Model) Validate() error {
	if m.ID == 0 {
		return zerr.With(zerr.Wrap(ErrInvalidIdentifier, "model id must be non-zero"), "model_id", m.ID)
	}
	for i, id := range m.TaskIDs {
		if id.IsZero() {
			err := zerr.With(zerr.Wrap(ErrInvalidIdentifier, "model lists reserved task id 0"), "model_id", m.ID)
			return zerr.With(err, "position", i)
		}
	}
	return nil
}

// IndexOf returns the position of the task in the model's task list.
func (m *Model) IndexOf(id TaskID) (int, bool) {
	for i, tid := range m.TaskIDs {
		if tid == id {
			return i, true
		}
	}
	return 0, false
}

// Outgoing returns the connections whose source is the given task, in declaration order.
func (m *Model) Outgoing(id TaskID) []TaskConnection {
	var out []TaskConnection
	for _, c := range m.Connections {
		if c.SourceTaskID == id {
			out = append(out, c)
		}
	}
	return out
}

// Upstream returns the distinct non-zero tasks feeding the given task.
func (m *Model) Upstream(id TaskID) []TaskID {
	seen := make(map[TaskID]struct{})
	var out []TaskID
	for _, c := range m.Connections {
		if c.DestTaskID != id || c.SourceTaskID.IsZero() {
			continue
		}
		if _, ok := seen[c.SourceTaskID]; ok {
			continue
		}
		seen[c.SourceTaskID] = struct{}{}
		out = append(out, c.SourceTaskID)
	}
	return out
}
