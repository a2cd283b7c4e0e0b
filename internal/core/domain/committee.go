package domain

import (
	"slices"
	"sync"

	"go.trai.ch/zerr"
)

// Committee is the set of scheduler identities authorized to assign tasks and
// verifiers. Membership can be replaced at runtime, for example on config reload.
type Committee struct {
	mu      sync.RWMutex
	members []Identity
}

// NewCommittee returns a committee with the given members.
func NewCommittee(members []Identity) (*Committee, error) {
	c := &Committee{}
	if err := c.Replace(members); err != nil {
		return nil, err
	}
	return c, nil
}

// Replace swaps the member list. It rejects lists above MaxCommitteeMembers and
// empty identities, leaving the previous members in place.
func (c *Committee) Replace(members []Identity) error {
	if len(members) > MaxCommitteeMembers {
		return capacityError("committee", "members", len(members), MaxCommitteeMembers)
	}
	for _, m := range members {
		if !m.Valid() {
			return zerr.Wrap(ErrInvalidIdentifier, "committee member must be set")
		}
	}
	next := slices.Clone(members)
	c.mu.Lock()
	c.members = next
	c.mu.Unlock()
	return nil
}

// Authorized reports whether id is a committee member.
func (c *Committee) Authorized(id Identity) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Contains(c.members, id)
}

// Members returns a copy of the current member list.
func (c *Committee) Members() []Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.members)
}
