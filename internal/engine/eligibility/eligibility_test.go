package eligibility_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/splitup/internal/adapters/registry"
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/core/ports"
	"go.trai.ch/splitup/internal/engine/eligibility"
)

func node(owner domain.Identity, stake uint64, specs ...domain.TaskID) domain.Node {
	return domain.Node{Owner: owner, Stake: stake, Specializations: specs}
}

func TestFindEligible(t *testing.T) {
	nodes := []domain.Node{
		node("zed", 10, 1, 2),
		node("amy", 50, 2),
		node("bob", 30, 1),
	}

	seq := eligibility.FindEligible(1, slices.Values(nodes))

	// Input order, not stake or name order.
	assert.Equal(t, []domain.Identity{"zed", "bob"}, slices.Collect(seq))
	// Restartable.
	assert.Equal(t, []domain.Identity{"zed", "bob"}, slices.Collect(seq))

	assert.Empty(t, slices.Collect(eligibility.FindEligible(9, slices.Values(nodes))))
}

func TestFindEligible_Lazy(t *testing.T) {
	pulled := 0
	source := func(yield func(domain.Node) bool) {
		for _, n := range []domain.Node{node("a", 1, 1), node("b", 1, 1), node("c", 1, 1)} {
			pulled++
			if !yield(n) {
				return
			}
		}
	}

	for owner := range eligibility.FindEligible(1, source) {
		assert.Equal(t, domain.Identity("a"), owner)
		break
	}
	assert.Equal(t, 1, pulled)
}

func TestRankByStake(t *testing.T) {
	nodes := []domain.Node{
		node("carol", 40, 1),
		node("bob", 50, 1),
		node("amy", 40, 1),
		node("dan", 5, 1),
	}

	ranked := eligibility.RankByStake(nodes, 10)

	owners := make([]domain.Identity, len(ranked))
	for i, n := range ranked {
		owners[i] = n.Owner
	}
	assert.Equal(t, []domain.Identity{"bob", "amy", "carol"}, owners)
	assert.Equal(t, domain.Identity("carol"), nodes[0].Owner, "input is not reordered")
}

func TestIndex_PagesThroughRegistry(t *testing.T) {
	store := registry.NewMemoryStore()
	owners := []domain.Identity{"n1", "n2", "n3", "n4", "n5"}
	require.NoError(t, store.Tx(context.Background(), func(_ context.Context, tx ports.Tx) error {
		for i, o := range owners {
			n := node(o, 30_000, domain.TaskID(i%2+1))
			if err := tx.CreateNode(&n); err != nil {
				return err
			}
		}
		return nil
	}))

	ix := eligibility.New(store, 2)

	var all []domain.Identity
	for n, err := range ix.Scan(context.Background()) {
		require.NoError(t, err)
		all = append(all, n.Owner)
	}
	assert.Equal(t, owners, all)

	got, err := ix.Eligible(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []domain.Identity{"n1", "n3", "n5"}, got)
}

type failingRegistry struct {
	ports.Registry
}

func (failingRegistry) ListNodes(context.Context, domain.Identity, int) ([]domain.Node, error) {
	return nil, errors.New("backend down")
}

func TestIndex_PropagatesErrors(t *testing.T) {
	ix := eligibility.New(failingRegistry{}, 0)
	_, err := ix.EligibleNodes(context.Background(), 1)
	require.EqualError(t, err, "backend down")
	_, err = ix.Eligible(context.Background(), 1)
	require.EqualError(t, err, "backend down")
}
