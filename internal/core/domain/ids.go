// Package domain contains the core entities of the model execution network: tasks,
// models and their connection graph, staked nodes, and executions with their
// per-task status records.
package domain

import (
	"strconv"
	"strings"
)

// TaskID identifies a registered Task. Zero is reserved for model inputs and outputs.
type TaskID uint64

// ModelID identifies a registered Model.
type ModelID uint64

// ExecutionID identifies one run of a Model.
type ExecutionID uint64

// Identity is an authenticated caller or node owner.
type Identity string

// IsZero reports whether the id is the reserved model boundary id.
func (id TaskID) IsZero() bool { return id == 0 }

func (id TaskID) String() string { return strconv.FormatUint(uint64(id), 10) }

func (id ModelID) String() string { return strconv.FormatUint(uint64(id), 10) }

func (id ExecutionID) String() string { return strconv.FormatUint(uint64(id), 10) }

func (i Identity) String() string { return string(i) }

// Valid reports whether the identity is usable as an owner or caller.
func (i Identity) Valid() bool { return strings.TrimSpace(string(i)) != "" }

// ParseExecutionID parses the decimal form produced by ExecutionID.String.
func ParseExecutionID(s string) (ExecutionID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ExecutionID(v), nil
}
