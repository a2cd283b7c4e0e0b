package domain

import (
	"encoding/json"
	"strconv"

	"go.trai.ch/zerr"
)

// DType tags the element type of a tensor.
type DType uint8

// Dimension is one entry of a tensor shape. It is either a concrete size ("224")
// or a symbolic name ("batch").
type Dimension string

// Dim returns a concrete dimension of size n.
func Dim(n uint64) Dimension {
	return Dimension(strconv.FormatUint(n, 10))
}

// Size returns the concrete size and true, or 0 and false for a symbolic dimension.
func (d Dimension) Size() (uint64, bool) {
	n, err := strconv.ParseUint(string(d), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// UnmarshalJSON accepts either a JSON number or a JSON string.
func (d *Dimension) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*d = Dimension(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return zerr.Wrap(err, "dimension must be a number or a string")
	}
	*d = Dimension(s)
	return nil
}

// TensorSpec describes a tensor by element type, shape, and the location of its data.
type TensorSpec struct {
	DType    DType       `json:"dtype" yaml:"dtype"`
	Shape    []Dimension `json:"shape" yaml:"shape"`
	Location string      `json:"location" yaml:"location"`
}

// Validate checks that the shape and location are present.
func (t TensorSpec) Validate() error {
	if len(t.Shape) == 0 {
		return ErrEmptyShape
	}
	for _, d := range t.Shape {
		if d == "" {
			return ErrEmptyShape
		}
	}
	if t.Location == "" {
		return ErrEmptyLocation
	}
	return nil
}

// validateTensorList validates a non-empty list of tensor specs, tagging failures
// with the list name and position.
func validateTensorList(name string, specs []TensorSpec) error {
	if len(specs) == 0 {
		return zerr.With(zerr.Wrap(ErrEmptyTensorList, "task rejected"), "list", name)
	}
	for i, spec := range specs {
		if err := spec.Validate(); err != nil {
			err = zerr.With(zerr.Wrap(err, "task rejected"), "list", name)
			return zerr.With(err, "index", i)
		}
	}
	return nil
}
