package domain

import (
	"slices"
	"time"

	"go.trai.ch/zerr"
)

// Node is a staked worker that declares which tasks it is able to execute.
// Nodes are never deleted; only their stake changes after registration.
type Node struct {
	Owner           Identity  `json:"owner" yaml:"owner"`
	Stake           uint64    `json:"stake" yaml:"stake"`
	Specializations []TaskID  `json:"specializations" yaml:"specializations"`
	RegisteredAt    time.Time `json:"registered_at" yaml:"registered_at"`
}

// Validate checks the registration invariants of a node.
func (n *Node) Validate() error {
	if !n.Owner.Valid() {
		return zerr.Wrap(ErrInvalidIdentifier, "node owner must be set")
	}
	if len(n.Specializations) == 0 {
		return zerr.With(zerr.Wrap(ErrEmptySpecializations, "node rejected"), "owner", n.Owner)
	}
	return nil
}

// CanExecute reports whether the node declared the task among its specializations.
func (n *Node) CanExecute(id TaskID) bool {
	return slices.Contains(n.Specializations, id)
}
