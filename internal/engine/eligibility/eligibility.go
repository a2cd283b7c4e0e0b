// Package eligibility answers which registered nodes can execute a task.
package eligibility

import (
	"cmp"
	"context"
	"iter"
	"slices"

	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/core/ports"
)

// DefaultPageSize is the number of nodes read from the registry per page.
const DefaultPageSize = 128

// FindEligible yields the owner of every node in nodes that declares taskID, in
// input order. The sequence is lazy and can be ranged over again as long as
// nodes can.
func FindEligible(taskID domain.TaskID, nodes iter.Seq[domain.Node]) iter.Seq[domain.Identity] {
	return func(yield func(domain.Identity) bool) {
		for n := range Filter(taskID, nodes) {
			if !yield(n.Owner) {
				return
			}
		}
	}
}

// Filter yields the nodes that declare taskID, in input order.
func Filter(taskID domain.TaskID, nodes iter.Seq[domain.Node]) iter.Seq[domain.Node] {
	return func(yield func(domain.Node) bool) {
		for n := range nodes {
			if n.CanExecute(taskID) && !yield(n) {
				return
			}
		}
	}
}

// RankByStake drops nodes under minStake and orders the rest by stake
// descending, then owner ascending.
func RankByStake(nodes []domain.Node, minStake uint64) []domain.Node {
	ranked := slices.DeleteFunc(slices.Clone(nodes), func(n domain.Node) bool {
		return n.Stake < minStake
	})
	slices.SortStableFunc(ranked, func(a, b domain.Node) int {
		if c := cmp.Compare(b.Stake, a.Stake); c != 0 {
			return c
		}
		return cmp.Compare(a.Owner, b.Owner)
	})
	return ranked
}

// Index scans the registry's nodes page by page.
type Index struct {
	registry ports.Registry
	pageSize int
}

// New creates an Index reading pageSize nodes per registry call.
func New(registry ports.Registry, pageSize int) *Index {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Index{registry: registry, pageSize: pageSize}
}

// Scan yields every registered node in owner order. A registry error is
// yielded once with a zero node and ends the sequence.
func (ix *Index) Scan(ctx context.Context) iter.Seq2[domain.Node, error] {
	return func(yield func(domain.Node, error) bool) {
		var after domain.Identity
		for {
			page, err := ix.registry.ListNodes(ctx, after, ix.pageSize)
			if err != nil {
				yield(domain.Node{}, err)
				return
			}
			for _, n := range page {
				if !yield(n, nil) {
					return
				}
			}
			if len(page) < ix.pageSize {
				return
			}
			after = page[len(page)-1].Owner
		}
	}
}

// nodes adapts Scan to a plain node sequence. The returned func reports the
// registry error that ended the sequence, if any, once it has been consumed.
func (ix *Index) nodes(ctx context.Context) (iter.Seq[domain.Node], func() error) {
	var scanErr error
	seq := func(yield func(domain.Node) bool) {
		for n, err := range ix.Scan(ctx) {
			if err != nil {
				scanErr = err
				return
			}
			if !yield(n) {
				return
			}
		}
	}
	return seq, func() error { return scanErr }
}

// Eligible returns the owners able to execute taskID, in owner order.
func (ix *Index) Eligible(ctx context.Context, taskID domain.TaskID) ([]domain.Identity, error) {
	nodes, scanErr := ix.nodes(ctx)
	owners := slices.Collect(FindEligible(taskID, nodes))
	if err := scanErr(); err != nil {
		return nil, err
	}
	return owners, nil
}

// EligibleNodes returns the nodes able to execute taskID, in owner order.
func (ix *Index) EligibleNodes(ctx context.Context, taskID domain.TaskID) ([]domain.Node, error) {
	nodes, scanErr := ix.nodes(ctx)
	out := slices.Collect(Filter(taskID, nodes))
	if err := scanErr(); err != nil {
		return nil, err
	}
	return out, nil
}
