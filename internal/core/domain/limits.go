package domain

import "go.trai.ch/zerr"

// Persisted size bounds. Writes that would exceed them are rejected with
// ErrCapacityExceeded rather than truncated.
const (
	MaxModelTasks       = 16
	MaxModelConnections = 64
	MaxNameLen          = 64
	MaxCreatorLen       = 64
	MaxDescriptionLen   = 256

	MaxTaskInputs      = 8
	MaxTaskOutputs     = 8
	MaxShapeRank       = 8
	MaxLocationLen     = 128
	MaxIdentityLen     = 64
	MaxFailureLen      = 256
	MaxSpecializations = 32

	// MaxTaskStatuses leaves room for one verification shadow per task.
	MaxTaskStatuses     = 2 * MaxModelTasks
	MaxOutputsPerStatus = 8
	MaxInputsPerStatus  = 8

	MaxCommitteeMembers = 16
)

func capacityError(entity, field string, got, limit int) error {
	err := zerr.With(zerr.Wrap(ErrCapacityExceeded, entity+" exceeds persisted bounds"), "field", field)
	err = zerr.With(err, "size", got)
	return zerr.With(err, "limit", limit)
}

func checkLen(entity, field string, got, limit int) error {
	if got > limit {
		return capacityError(entity, field, got, limit)
	}
	return nil
}

func checkTensor(entity, field string, t TensorSpec) error {
	if err := checkLen(entity, field+".shape", len(t.Shape), MaxShapeRank); err != nil {
		return err
	}
	return checkLen(entity, field+".location", len(t.Location), MaxLocationLen)
}

// CheckCapacity enforces the task's persisted size bounds.
func (t *Task) CheckCapacity() error {
	checks := []error{
		checkLen("task", "description", len(t.Description), MaxDescriptionLen),
		checkLen("task", "inputs", len(t.Inputs), MaxTaskInputs),
		checkLen("task", "outputs", len(t.Outputs), MaxTaskOutputs),
		checkLen("task", "weight_location", len(t.WeightLocation), MaxLocationLen),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	for _, in := range t.Inputs {
		if err := checkTensor("task", "inputs", in); err != nil {
			return err
		}
	}
	for _, out := range t.Outputs {
		if err := checkTensor("task", "outputs", out); err != nil {
			return err
		}
	}
	return nil
}

// CheckCapacity enforces the model's persisted size bounds.
func (m *Model) CheckCapacity() error {
	checks := []error{
		checkLen("model", "name", len(m.Name), MaxNameLen),
		checkLen("model", "description", len(m.Description), MaxDescriptionLen),
		checkLen("model", "creator", len(m.Creator), MaxCreatorLen),
		checkLen("model", "task_ids", len(m.TaskIDs), MaxModelTasks),
		checkLen("model", "connections", len(m.Connections), MaxModelConnections),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	for _, c := range m.Connections {
		if err := checkTensor("model", "connections.tensor", c.Tensor); err != nil {
			return err
		}
	}
	return nil
}

// CheckCapacity enforces the node's persisted size bounds.
func (n *Node) CheckCapacity() error {
	if err := checkLen("node", "owner", len(n.Owner), MaxIdentityLen); err != nil {
		return err
	}
	return checkLen("node", "specializations", len(n.Specializations), MaxSpecializations)
}

// CheckCapacity enforces the execution's persisted size bounds.
func (e *Execution) CheckCapacity() error {
	if err := checkLen("execution", "input_location", len(e.InputLocation), MaxLocationLen); err != nil {
		return err
	}
	if err := checkLen("execution", "requestor", len(e.Requestor), MaxIdentityLen); err != nil {
		return err
	}
	if err := checkLen("execution", "task_statuses", len(e.Tasks), MaxTaskStatuses); err != nil {
		return err
	}
	for i := range e.Tasks {
		t := &e.Tasks[i]
		if err := checkLen("execution", "output_locations", len(t.OutputLocations), MaxOutputsPerStatus); err != nil {
			return err
		}
		if err := checkLen("execution", "input_locations", len(t.InputLocations), MaxInputsPerStatus); err != nil {
			return err
		}
		for _, loc := range t.OutputLocations {
			if err := checkLen("execution", "output_location", len(loc), MaxLocationLen); err != nil {
				return err
			}
		}
		if err := checkLen("execution", "failure_reason", len(t.FailureReason), MaxFailureLen); err != nil {
			return err
		}
	}
	return nil
}
