package domain

import "go.trai.ch/zerr"

// Task is an atomic unit of model computation with a fixed tensor interface and
// immutable weights. Tasks are never updated after registration.
type Task struct {
	ID              TaskID       `json:"id" yaml:"id"`
	ModelID         ModelID      `json:"model_id" yaml:"model_id"`
	Description     string       `json:"description" yaml:"description"`
	VRAMRequirement uint32       `json:"vram_requirement" yaml:"vram_requirement"`
	ComputeUnits    uint32       `json:"compute_units" yaml:"compute_units"`
	Inputs          []TensorSpec `json:"inputs" yaml:"inputs"`
	Outputs         []TensorSpec `json:"outputs" yaml:"outputs"`
	WeightLocation  string       `json:"weight_location" yaml:"weight_location"`
}

// Validate checks the registration invariants of a task: a non-zero id, non-empty
// input and output lists of well-formed tensor specs, and a weight location.
func (t *Task) Validate() error {
	if t.ID.IsZero() {
		return zerr.With(zerr.Wrap(ErrInvalidIdentifier, "task id must be non-zero"), "task_id", t.ID)
	}
	if err := validateTensorList("inputs", t.Inputs); err != nil {
		return zerr.With(err, "task_id", t.ID)
	}
	if err := validateTensorList("outputs", t.Outputs); err != nil {
		return zerr.With(err, "task_id", t.ID)
	}
	if t.WeightLocation == "" {
		return zerr.With(zerr.Wrap(ErrMissingWeightLocation, "task rejected"), "task_id", t.ID)
	}
	return nil
}
