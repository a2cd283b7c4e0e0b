// Package stake implements the collateral ledger: node admission, stake changes
// and the spendable balances that back them.
package stake

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/core/ports"
	"go.trai.ch/zerr"
)

// Ledger moves collateral between spendable balances and node stakes. Every
// operation is one registry unit, so either all balances move or none do.
type Ledger struct {
	registry ports.Registry
	events   ports.EventPublisher
	logger   ports.Logger
	tracer   ports.Tracer
	minStake atomic.Uint64
	now      func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used for registration timestamps and events.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a Ledger enforcing minStake on admission.
func New(
	registry ports.Registry,
	events ports.EventPublisher,
	logger ports.Logger,
	tracer ports.Tracer,
	minStake uint64,
	opts ...Option,
) *Ledger {
	l := &Ledger{
		registry: registry,
		events:   events,
		logger:   logger,
		tracer:   tracer,
		now:      time.Now,
	}
	l.minStake.Store(minStake)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// MinStake returns the admission minimum. Nodes below it are not assigned work.
func (l *Ledger) MinStake() uint64 { return l.minStake.Load() }

// SetMinStake replaces the admission minimum for subsequent operations.
// Existing nodes keep their stake.
func (l *Ledger) SetMinStake(minStake uint64) { l.minStake.Store(minStake) }

// Admit registers a node, moving initialStake from the owner's spendable balance
// into collateral.
func (l *Ledger) Admit(
	ctx context.Context,
	owner domain.Identity,
	specializations []domain.TaskID,
	initialStake uint64,
) (*domain.Node, error) {
	ctx, span := l.tracer.Start(ctx, "stake.admit", ports.WithAttribute("owner", owner.String()))
	defer span.End()

	node := &domain.Node{
		Owner:           owner,
		Stake:           initialStake,
		Specializations: specializations,
		RegisteredAt:    l.now().UTC(),
	}
	if err := node.Validate(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if minimum := l.MinStake(); initialStake < minimum {
		err := zerr.With(zerr.Wrap(domain.ErrBelowMinimum, "node rejected"), "stake", initialStake)
		err = zerr.With(err, "minimum", minimum)
		span.RecordError(err)
		return nil, err
	}

	err := l.registry.Tx(ctx, func(_ context.Context, tx ports.Tx) error {
		balance, err := tx.Balance(owner)
		if err != nil {
			return err
		}
		if balance < initialStake {
			err := zerr.With(zerr.Wrap(domain.ErrInsufficientFunds, "cannot fund initial stake"), "owner", owner)
			return zerr.With(err, "balance", balance)
		}
		if err := tx.CreateNode(node); err != nil {
			return err
		}
		return tx.SetBalance(owner, balance-initialStake)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	l.logger.Info("node registered", "owner", owner, "stake", initialStake, "specializations", len(specializations))
	l.publish(ctx, domain.EventNodeRegistered, owner, initialStake)
	return node, nil
}

// Increase adds amount to the node's stake. Only the owner may do so.
func (l *Ledger) Increase(ctx context.Context, caller, owner domain.Identity, amount uint64) (uint64, error) {
	ctx, span := l.tracer.Start(ctx, "stake.increase", ports.WithAttribute("owner", owner.String()))
	defer span.End()

	if caller != owner {
		err := unauthorized(caller, owner)
		span.RecordError(err)
		return 0, err
	}
	if amount == 0 {
		err := zerr.Wrap(domain.ErrInvalidAmount, "stake increase must be positive")
		span.RecordError(err)
		return 0, err
	}

	var stake uint64
	err := l.registry.Tx(ctx, func(_ context.Context, tx ports.Tx) error {
		node, err := tx.Node(owner)
		if err != nil {
			return err
		}
		if node.Stake > math.MaxUint64-amount {
			return zerr.With(zerr.Wrap(domain.ErrStakeOverflow, "cannot increase stake"), "stake", node.Stake)
		}
		balance, err := tx.Balance(owner)
		if err != nil {
			return err
		}
		if balance < amount {
			err := zerr.With(zerr.Wrap(domain.ErrInsufficientFunds, "cannot increase stake"), "owner", owner)
			return zerr.With(err, "balance", balance)
		}
		node.Stake += amount
		stake = node.Stake
		if err := tx.SaveNode(node); err != nil {
			return err
		}
		return tx.SetBalance(owner, balance-amount)
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	l.logger.Info("stake increased", "owner", owner, "amount", amount, "stake", stake)
	l.publish(ctx, domain.EventStakeUpdated, owner, stake)
	return stake, nil
}

// Decrease withdraws amount from the node's stake back to the owner's balance.
func (l *Ledger) Decrease(ctx context.Context, caller, owner domain.Identity, amount uint64) (uint64, error) {
	ctx, span := l.tracer.Start(ctx, "stake.decrease", ports.WithAttribute("owner", owner.String()))
	defer span.End()

	if caller != owner {
		err := unauthorized(caller, owner)
		span.RecordError(err)
		return 0, err
	}

	var stake uint64
	err := l.registry.Tx(ctx, func(_ context.Context, tx ports.Tx) error {
		node, err := tx.Node(owner)
		if err != nil {
			return err
		}
		if amount > node.Stake {
			err := zerr.With(zerr.Wrap(domain.ErrInsufficientStake, "cannot decrease stake"), "stake", node.Stake)
			return zerr.With(err, "amount", amount)
		}
		balance, err := tx.Balance(owner)
		if err != nil {
			return err
		}
		if balance > math.MaxUint64-amount {
			return zerr.With(zerr.Wrap(domain.ErrStakeOverflow, "cannot return stake"), "balance", balance)
		}
		node.Stake -= amount
		stake = node.Stake
		if err := tx.SaveNode(node); err != nil {
			return err
		}
		return tx.SetBalance(owner, balance+amount)
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	if minimum := l.MinStake(); stake < minimum {
		l.logger.Warn("stake below admission minimum", "owner", owner, "stake", stake, "minimum", minimum)
	}
	l.logger.Info("stake decreased", "owner", owner, "amount", amount, "stake", stake)
	l.publish(ctx, domain.EventStakeUpdated, owner, stake)
	return stake, nil
}

// Credit adds funds to an account's spendable balance.
func (l *Ledger) Credit(ctx context.Context, owner domain.Identity, amount uint64) (uint64, error) {
	ctx, span := l.tracer.Start(ctx, "stake.credit", ports.WithAttribute("owner", owner.String()))
	defer span.End()

	if !owner.Valid() {
		err := zerr.Wrap(domain.ErrInvalidIdentifier, "account owner must be set")
		span.RecordError(err)
		return 0, err
	}
	if amount == 0 {
		err := zerr.Wrap(domain.ErrInvalidAmount, "credit must be positive")
		span.RecordError(err)
		return 0, err
	}

	var balance uint64
	err := l.registry.Tx(ctx, func(_ context.Context, tx ports.Tx) error {
		current, err := tx.Balance(owner)
		if err != nil {
			return err
		}
		if current > math.MaxUint64-amount {
			return zerr.With(zerr.Wrap(domain.ErrStakeOverflow, "cannot credit account"), "balance", current)
		}
		balance = current + amount
		return tx.SetBalance(owner, balance)
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	l.logger.Debug("account credited", "owner", owner, "amount", amount, "balance", balance)
	return balance, nil
}

// Balance returns the owner's spendable balance.
func (l *Ledger) Balance(ctx context.Context, owner domain.Identity) (uint64, error) {
	var balance uint64
	err := l.registry.Tx(ctx, func(_ context.Context, tx ports.Tx) error {
		var err error
		balance, err = tx.Balance(owner)
		return err
	})
	return balance, err
}

// Node returns the registered node of owner.
func (l *Ledger) Node(ctx context.Context, owner domain.Identity) (*domain.Node, error) {
	var node *domain.Node
	err := l.registry.Tx(ctx, func(_ context.Context, tx ports.Tx) error {
		var err error
		node, err = tx.Node(owner)
		return err
	})
	return node, err
}

func (l *Ledger) publish(ctx context.Context, kind domain.EventKind, owner domain.Identity, amount uint64) {
	l.events.Publish(ctx, domain.Event{
		ID:     uuid.NewString(),
		Kind:   kind,
		At:     l.now().UTC(),
		Node:   owner,
		Amount: amount,
	})
}

func unauthorized(caller, owner domain.Identity) error {
	err := zerr.With(zerr.Wrap(domain.ErrStakeUnauthorized, "only the node owner may change its stake"), "caller", caller)
	return zerr.With(err, "owner", owner)
}
