// Package orchestrator drives executions through their task state machine.
// Every transition is one registry unit: it reads the execution, validates and
// mutates a copy, and writes it back, so a failed transition leaves the stored
// execution untouched. Events are published only after the unit commits.
package orchestrator

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/core/ports"
	"go.trai.ch/zerr"
)

// Orchestrator implements the execution lifecycle operations.
type Orchestrator struct {
	registry  ports.Registry
	events    ports.EventPublisher
	committee *domain.Committee
	logger    ports.Logger
	tracer    ports.Tracer
	minStake  atomic.Uint64
	now       func() time.Time
	nonce     atomic.Uint64

	mu      sync.RWMutex
	sampler ports.SamplingPolicy
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithMinStake sets the stake a node needs to be assigned work.
func WithMinStake(minStake uint64) Option {
	return func(o *Orchestrator) { o.minStake.Store(minStake) }
}

// New creates an Orchestrator. Assignments are accepted only from committee members.
func New(
	registry ports.Registry,
	events ports.EventPublisher,
	sampler ports.SamplingPolicy,
	committee *domain.Committee,
	logger ports.Logger,
	tracer ports.Tracer,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		registry:  registry,
		events:    events,
		sampler:   sampler,
		committee: committee,
		logger:    logger,
		tracer:    tracer,
		now:       time.Now,
	}
	o.minStake.Store(domain.DefaultMinStake)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetMinStake replaces the stake required of newly assigned nodes.
func (o *Orchestrator) SetMinStake(minStake uint64) { o.minStake.Store(minStake) }

// SetSampler replaces the policy consulted on later completions.
func (o *Orchestrator) SetSampler(sampler ports.SamplingPolicy) {
	o.mu.Lock()
	o.sampler = sampler
	o.mu.Unlock()
}

func (o *Orchestrator) samplingPolicy() ports.SamplingPolicy {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.sampler
}

// transition is the state of one in-flight operation.
type transition struct {
	o      *Orchestrator
	at     time.Time
	exec   *domain.Execution
	model  *domain.Model
	events []domain.Event
	after  []func()
}

func (t *transition) emit(e domain.Event) {
	e.ID = uuid.NewString()
	e.At = t.at
	if e.ExecutionID == 0 && t.exec != nil {
		e.ExecutionID = t.exec.ID
		e.ModelID = t.exec.ModelID
	}
	t.events = append(t.events, e)
}

// run executes fn against the stored execution inside one registry unit and
// publishes the collected events once it commits.
func (o *Orchestrator) run(
	ctx context.Context,
	op string,
	id domain.ExecutionID,
	fn func(tx ports.Tx, t *transition) error,
) (*domain.Execution, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator."+op, ports.WithAttribute("execution_id", id))
	defer span.End()

	t := &transition{o: o, at: o.now().UTC()}
	err := o.registry.Tx(ctx, func(_ context.Context, tx ports.Tx) error {
		exec, err := tx.Execution(id)
		if err != nil {
			return err
		}
		t.exec = exec
		if err := fn(tx, t); err != nil {
			return err
		}
		return tx.SaveExecution(exec)
	})
	if err != nil {
		span.RecordError(err)
		return nil, zerr.With(zerr.Wrap(err, op+" rejected"), "execution_id", id)
	}

	span.SetAttribute("status", t.exec.Status.String())
	o.logger.Debug("transition committed", "op", op, "execution_id", id, "status", t.exec.Status.String(),
		"events", len(t.events))
	o.publish(ctx, t.events)
	for _, fn := range t.after {
		fn()
	}
	return t.exec, nil
}

func (o *Orchestrator) publish(ctx context.Context, events []domain.Event) {
	for _, e := range events {
		o.events.Publish(ctx, e)
	}
}

// newID derives an execution id from the request and a process-local nonce.
func (o *Orchestrator) newID(requestor domain.Identity, model domain.ModelID, input string, at time.Time) domain.ExecutionID {
	d := xxhash.New()
	_, _ = d.WriteString(string(requestor))
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(model.String())
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(input)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(strconv.FormatInt(at.UnixNano(), 10))
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(strconv.FormatUint(o.nonce.Add(1), 10))
	id := domain.ExecutionID(d.Sum64())
	if id == 0 {
		id = 1
	}
	return id
}

// RequestExecution creates an execution of a registered model with one Pending
// record per model task, in model order.
func (o *Orchestrator) RequestExecution(
	ctx context.Context,
	caller domain.Identity,
	modelID domain.ModelID,
	input string,
	maxFee uint64,
) (*domain.Execution, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.request_execution", ports.WithAttribute("model_id", modelID))
	defer span.End()

	if !caller.Valid() {
		err := zerr.Wrap(domain.ErrInvalidIdentifier, "requestor must be set")
		span.RecordError(err)
		return nil, err
	}

	t := &transition{o: o, at: o.now().UTC()}
	err := o.registry.Tx(ctx, func(_ context.Context, tx ports.Tx) error {
		model, err := tx.Model(modelID)
		if err != nil {
			return err
		}
		if len(model.TaskIDs) == 0 {
			return zerr.With(zerr.Wrap(domain.ErrInvalidTransition, "model has no tasks"), "model_id", modelID)
		}
		t.exec = domain.NewExecution(o.newID(caller, modelID, input, t.at), model, caller, input, maxFee, t.at)
		return tx.CreateExecution(t.exec)
	})
	if err != nil {
		span.RecordError(err)
		return nil, zerr.With(zerr.Wrap(err, "execution request rejected"), "model_id", modelID)
	}

	exec := t.exec
	span.SetAttribute("execution_id", exec.ID)
	t.emit(domain.Event{Kind: domain.EventExecutionRequested, Requestor: caller})
	t.emit(domain.Event{Kind: domain.EventNodeSelectionRequested, Tasks: exec.Clone().Tasks})

	o.logger.Info("execution requested", "execution_id", exec.ID, "model_id", modelID, "requestor", caller,
		"tasks", len(exec.Tasks))
	o.publish(ctx, t.events)
	return exec, nil
}

// Execution returns a stored execution.
func (o *Orchestrator) Execution(ctx context.Context, id domain.ExecutionID) (*domain.Execution, error) {
	var exec *domain.Execution
	err := o.registry.Tx(ctx, func(_ context.Context, tx ports.Tx) error {
		var err error
		exec, err = tx.Execution(id)
		return err
	})
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to load execution"), "execution_id", id)
	}
	return exec, nil
}

func requireOpen(exec *domain.Execution) error {
	if exec.Status.AcceptsTransitions() {
		return nil
	}
	return zerr.With(zerr.Wrap(domain.ErrInvalidTransition, "execution no longer accepts transitions"),
		"status", exec.Status.String())
}

func invalidTransition(rec *domain.TaskExecutionStatus, want domain.TaskState) error {
	err := zerr.With(zerr.Wrap(domain.ErrInvalidTransition, "task cannot make this transition"),
		"status", rec.State.String())
	err = zerr.With(err, "task_index", rec.Index)
	return zerr.With(err, "target", want.String())
}

func (t *transition) record(index uint64) (*domain.TaskExecutionStatus, error) {
	if index >= uint64(len(t.exec.Tasks)) {
		return nil, zerr.With(zerr.Wrap(domain.ErrTaskNotFound, "no status record at index"), "task_index", index)
	}
	return &t.exec.Tasks[index], nil
}

func (t *transition) loadModel(tx ports.Tx) error {
	m, err := tx.Model(t.exec.ModelID)
	if err != nil {
		return err
	}
	t.model = m
	return nil
}

// checkNode verifies that owner is registered, staked and declares taskID.
func (o *Orchestrator) checkNode(tx ports.Tx, owner domain.Identity, taskID domain.TaskID) error {
	n, err := tx.Node(owner)
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrIneligibleNode, "node is not registered"), "node", owner)
	}
	if n.Stake < o.minStake.Load() {
		err := zerr.With(zerr.Wrap(domain.ErrIneligibleNode, "node stake below minimum"), "node", owner)
		return zerr.With(err, "stake", n.Stake)
	}
	if !n.CanExecute(taskID) {
		err := zerr.With(zerr.Wrap(domain.ErrIneligibleNode, "node does not declare task"), "node", owner)
		return zerr.With(err, "task_id", taskID)
	}
	return nil
}

// upstreamDone reports whether every task feeding rec has completed.
func (t *transition) upstreamDone(rec *domain.TaskExecutionStatus) bool {
	for _, src := range t.model.Upstream(rec.TaskID) {
		i, ok := t.exec.FindTask(src)
		if !ok || t.exec.Tasks[i].State != domain.TaskCompleted {
			return false
		}
	}
	return true
}

func (t *transition) begin(index int) {
	rec := t.exec.Tasks[index]
	t.emit(domain.Event{
		Kind:      domain.EventTaskBeginRequested,
		TaskID:    rec.TaskID,
		TaskIndex: domain.Index(index),
		Node:      rec.AssignedNode,
	})
}
