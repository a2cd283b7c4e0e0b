// Package dispatch is the built-in scheduler. It answers node selection
// requests by assigning the highest staked eligible nodes on behalf of one
// committee identity.
package dispatch

import (
	"context"
	"errors"

	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/core/ports"
	"go.trai.ch/splitup/internal/engine/eligibility"
	"go.trai.ch/splitup/internal/engine/orchestrator"
	"go.trai.ch/zerr"
)

// StakeFloor reports the stake a node needs to be assigned work. The stake
// ledger implements it.
type StakeFloor interface {
	MinStake() uint64
}

// Dispatcher assigns nodes to records waiting for one.
type Dispatcher struct {
	orch   *orchestrator.Orchestrator
	index  *eligibility.Index
	as     domain.Identity
	floor  StakeFloor
	logger ports.Logger
	tracer ports.Tracer
}

// New creates a Dispatcher acting as the scheduler identity as.
func New(
	orch *orchestrator.Orchestrator,
	index *eligibility.Index,
	as domain.Identity,
	floor StakeFloor,
	logger ports.Logger,
	tracer ports.Tracer,
) *Dispatcher {
	return &Dispatcher{
		orch:   orch,
		index:  index,
		as:     as,
		floor:  floor,
		logger: logger,
		tracer: tracer,
	}
}

// Enabled reports whether a scheduler identity is configured.
func (d *Dispatcher) Enabled() bool {
	return d.as.Valid()
}

// Dispatch assigns a node to every Pending primary record and a verifier to
// every unassigned verification record of the execution. Records without an
// eligible node are left waiting. It returns the number of assignments made.
func (d *Dispatcher) Dispatch(ctx context.Context, id domain.ExecutionID) (int, error) {
	ctx, span := d.tracer.Start(ctx, "dispatch.execution", ports.WithAttribute("execution_id", id))
	defer span.End()

	exec, err := d.orch.Execution(ctx, id)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	if !exec.Status.AcceptsTransitions() && exec.Status != domain.ExecutionCompleted {
		return 0, nil
	}

	var errs error
	assigned := 0
	for i := range exec.Tasks {
		rec := exec.Tasks[i]
		var err error
		switch {
		case rec.IsShadow() && rec.State == domain.TaskPendingVerification && rec.AssignedNode == "":
			err = d.assignVerifier(ctx, exec, rec)
		case !rec.IsShadow() && rec.State == domain.TaskPending && exec.Status.AcceptsTransitions():
			err = d.assignTask(ctx, exec, rec)
		default:
			continue
		}
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		assigned++
	}

	span.SetAttribute("assigned", assigned)
	if errs != nil {
		span.RecordError(errs)
	}
	return assigned, errs
}

func (d *Dispatcher) assignTask(ctx context.Context, exec *domain.Execution, rec domain.TaskExecutionStatus) error {
	node, err := d.pick(ctx, rec.TaskID, "")
	if err != nil {
		return err
	}
	if _, err := d.orch.AssignTask(ctx, d.as, exec.ID, rec.TaskID, node); err != nil {
		return err
	}
	d.logger.Debug("task dispatched", "execution_id", exec.ID, "task_id", rec.TaskID, "node", node)
	return nil
}

func (d *Dispatcher) assignVerifier(ctx context.Context, exec *domain.Execution, rec domain.TaskExecutionStatus) error {
	original := exec.Tasks[*rec.TaskToVerify].AssignedNode
	node, err := d.pick(ctx, rec.TaskID, original)
	if err != nil {
		return err
	}
	if _, err := d.orch.AssignVerifier(ctx, d.as, exec.ID, rec.Index, node); err != nil {
		return err
	}
	d.logger.Debug("verifier dispatched", "execution_id", exec.ID, "task_index", rec.Index, "node", node)
	return nil
}

// pick returns the highest ranked eligible node other than exclude.
func (d *Dispatcher) pick(ctx context.Context, taskID domain.TaskID, exclude domain.Identity) (domain.Identity, error) {
	nodes, err := d.index.EligibleNodes(ctx, taskID)
	if err != nil {
		return "", err
	}
	for _, n := range eligibility.RankByStake(nodes, d.floor.MinStake()) {
		if n.Owner != exclude {
			return n.Owner, nil
		}
	}
	return "", zerr.With(zerr.Wrap(domain.ErrIneligibleNode, "no eligible node for task"), "task_id", taskID)
}

// Run answers node selection requests from source until ctx is done or the
// source closes. Failed dispatches are logged and retried on the next request.
func (d *Dispatcher) Run(ctx context.Context, source ports.EventSource) error {
	if !d.Enabled() {
		d.logger.Debug("dispatcher disabled, no scheduler identity configured")
		return nil
	}

	ch, cancel := source.Subscribe(0)
	defer cancel()
	d.logger.Info("dispatcher started", "as", d.as)

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			if e.Kind != domain.EventNodeSelectionRequested {
				continue
			}
			if _, err := d.Dispatch(ctx, e.ExecutionID); err != nil {
				d.logger.Error(err)
			}
		}
	}
}
