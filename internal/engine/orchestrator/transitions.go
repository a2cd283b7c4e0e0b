package orchestrator

import (
	"context"
	"slices"
	"time"

	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/core/ports"
	"go.trai.ch/zerr"
)

func (o *Orchestrator) authorizeScheduler(caller domain.Identity) error {
	if o.committee.Authorized(caller) {
		return nil
	}
	return zerr.With(zerr.Wrap(domain.ErrUnauthorized, "caller is not a scheduler"), "caller", caller)
}

func requireAssignee(rec *domain.TaskExecutionStatus, caller domain.Identity) error {
	if rec.AssignedNode != "" && rec.AssignedNode == caller {
		return nil
	}
	err := zerr.With(zerr.Wrap(domain.ErrUnauthorized, "caller is not the assigned node"), "caller", caller)
	return zerr.With(err, "task_index", rec.Index)
}

func requirePrimary(rec *domain.TaskExecutionStatus) error {
	if !rec.IsShadow() {
		return nil
	}
	return zerr.With(zerr.Wrap(domain.ErrInvalidTransition, "record is a verification record"), "task_index", rec.Index)
}

// AssignTask assigns a node to the Pending record of taskID. Once every primary
// record is assigned, the execution moves to InProgress and its entry tasks are
// signaled to begin, starting with index 0.
func (o *Orchestrator) AssignTask(
	ctx context.Context,
	caller domain.Identity,
	id domain.ExecutionID,
	taskID domain.TaskID,
	node domain.Identity,
) (*domain.Execution, error) {
	if err := o.authorizeScheduler(caller); err != nil {
		return nil, zerr.With(err, "execution_id", id)
	}

	return o.run(ctx, "assign_task", id, func(tx ports.Tx, t *transition) error {
		exec := t.exec
		if err := requireOpen(exec); err != nil {
			return err
		}
		idx, ok := exec.FindTask(taskID)
		if !ok {
			return zerr.With(zerr.Wrap(domain.ErrTaskNotFound, "task is not part of execution"), "task_id", taskID)
		}
		rec := &exec.Tasks[idx]
		if !rec.State.CanTransition(domain.TaskAssigned) {
			return invalidTransition(rec, domain.TaskAssigned)
		}
		if err := o.checkNode(tx, node, taskID); err != nil {
			return err
		}
		if err := t.loadModel(tx); err != nil {
			return err
		}

		rec.AssignedNode = node
		rec.State = domain.TaskAssigned
		t.emit(domain.Event{Kind: domain.EventTaskAssigned, TaskID: taskID, TaskIndex: domain.Index(idx), Node: node})

		switch exec.Status {
		case domain.ExecutionRequested:
			if !exec.AllPrimary(func(r *domain.TaskExecutionStatus) bool { return r.State.AtLeastAssigned() }) {
				return nil
			}
			exec.Status = domain.ExecutionInProgress
			t.begin(0)
			for i := 1; i < len(exec.Tasks); i++ {
				r := &exec.Tasks[i]
				if !r.IsShadow() && len(t.model.Upstream(r.TaskID)) == 0 {
					t.begin(i)
				}
			}
		case domain.ExecutionInProgress:
			// Re-assignment after a release.
			if t.upstreamDone(rec) {
				t.begin(idx)
			}
		}
		return nil
	})
}

// StartTask records that the assigned node began work on the record at index.
func (o *Orchestrator) StartTask(
	ctx context.Context,
	caller domain.Identity,
	id domain.ExecutionID,
	index uint64,
) (*domain.Execution, error) {
	return o.run(ctx, "start_task", id, func(_ ports.Tx, t *transition) error {
		if err := requireOpen(t.exec); err != nil {
			return err
		}
		rec, err := t.record(index)
		if err != nil {
			return err
		}
		if err := requirePrimary(rec); err != nil {
			return err
		}
		if !rec.State.CanTransition(domain.TaskInProgress) {
			return invalidTransition(rec, domain.TaskInProgress)
		}
		if err := requireAssignee(rec, caller); err != nil {
			return err
		}

		rec.State = domain.TaskInProgress
		rec.StartedAt = t.at
		t.emit(domain.Event{Kind: domain.EventTaskStarted, TaskID: rec.TaskID, TaskIndex: domain.Index(int(index)),
			Node: caller})
		return nil
	})
}

// CompleteTask records the outputs of the record at index. The entropy decides,
// through the sampling policy, whether a shadow verification record is added;
// sampling never affects the primary pipeline. When every primary record is
// complete the execution completes, otherwise downstream tasks whose inputs are
// all available are signaled to begin.
func (o *Orchestrator) CompleteTask(
	ctx context.Context,
	caller domain.Identity,
	id domain.ExecutionID,
	index uint64,
	outputs []string,
	entropy []byte,
) (*domain.Execution, error) {
	return o.run(ctx, "complete_task", id, func(tx ports.Tx, t *transition) error {
		exec := t.exec
		if err := requireOpen(exec); err != nil {
			return err
		}
		rec, err := t.record(index)
		if err != nil {
			return err
		}
		if err := requirePrimary(rec); err != nil {
			return err
		}
		if !rec.State.CanTransition(domain.TaskCompleted) {
			return invalidTransition(rec, domain.TaskCompleted)
		}
		if err := requireAssignee(rec, caller); err != nil {
			return err
		}
		sampled, value, err := o.samplingPolicy().ShouldVerify(entropy)
		if err != nil {
			return err
		}
		if err := t.loadModel(tx); err != nil {
			return err
		}

		taskID := rec.TaskID
		rec.OutputLocations = slices.Clone(outputs)
		rec.State = domain.TaskCompleted
		rec.CompletedAt = t.at
		t.emit(domain.Event{Kind: domain.EventTaskCompleted, TaskID: taskID, TaskIndex: domain.Index(int(index)),
			Node: caller, Outputs: slices.Clone(outputs)})

		if sampled {
			t.addShadow(index, value)
		}

		if exec.AllPrimary(func(r *domain.TaskExecutionStatus) bool { return r.State == domain.TaskCompleted }) {
			exec.Status = domain.ExecutionCompleted
			t.emit(domain.Event{Kind: domain.EventExecutionCompleted, Requestor: exec.Requestor})
			return nil
		}

		signaled := make(map[domain.TaskID]bool)
		for _, conn := range t.model.Outgoing(taskID) {
			if conn.DestTaskID.IsZero() {
				t.emit(domain.Event{Kind: domain.EventModelOutputReady, TaskID: taskID,
					TaskIndex: domain.Index(int(index)), Outputs: slices.Clone(outputs)})
				continue
			}
			if signaled[conn.DestTaskID] {
				continue
			}
			signaled[conn.DestTaskID] = true
			di, ok := exec.FindTask(conn.DestTaskID)
			if !ok {
				continue
			}
			dest := &exec.Tasks[di]
			if dest.State == domain.TaskAssigned && t.upstreamDone(dest) {
				t.begin(di)
			}
		}
		return nil
	})
}

// addShadow appends a verification record for the primary at index, or skips it
// when the execution is at its record capacity.
func (t *transition) addShadow(index uint64, value uint64) {
	exec := t.exec
	primary := exec.Tasks[index]
	if len(exec.Tasks) >= domain.MaxTaskStatuses {
		t.after = append(t.after, func() {
			t.o.logger.Warn("verification skipped, execution at record capacity",
				"execution_id", exec.ID, "task_index", index)
		})
		return
	}

	ref := index
	shadow := domain.TaskExecutionStatus{
		Index:          uint64(len(exec.Tasks)),
		TaskID:         primary.TaskID,
		TaskToVerify:   &ref,
		State:          domain.TaskPendingVerification,
		InputLocations: slices.Clone(primary.InputLocations),
	}
	exec.Tasks = append(exec.Tasks, shadow)
	t.emit(domain.Event{Kind: domain.EventNodeSelectionRequested, Tasks: []domain.TaskExecutionStatus{shadow}})
	t.after = append(t.after, func() {
		t.o.logger.Info("completion sampled for verification", "execution_id", exec.ID,
			"task_index", index, "value", value, "shadow_index", shadow.Index)
	})
}

// FailTask records a failure reported by the assigned node. The execution stays
// open so a scheduler can release and reassign the task.
func (o *Orchestrator) FailTask(
	ctx context.Context,
	caller domain.Identity,
	id domain.ExecutionID,
	index uint64,
	reason string,
) (*domain.Execution, error) {
	return o.run(ctx, "fail_task", id, func(_ ports.Tx, t *transition) error {
		if err := requireOpen(t.exec); err != nil {
			return err
		}
		rec, err := t.record(index)
		if err != nil {
			return err
		}
		if err := requirePrimary(rec); err != nil {
			return err
		}
		if !rec.State.CanTransition(domain.TaskFailed) {
			return invalidTransition(rec, domain.TaskFailed)
		}
		if err := requireAssignee(rec, caller); err != nil {
			return err
		}

		rec.State = domain.TaskFailed
		rec.FailureReason = reason
		t.emit(domain.Event{Kind: domain.EventTaskFailed, TaskID: rec.TaskID, TaskIndex: domain.Index(int(index)),
			Node: caller, Reason: reason})
		return nil
	})
}

// ReleaseTask returns a Failed record to Pending so that it can be reassigned,
// and asks for a new node.
func (o *Orchestrator) ReleaseTask(
	ctx context.Context,
	caller domain.Identity,
	id domain.ExecutionID,
	taskID domain.TaskID,
) (*domain.Execution, error) {
	if err := o.authorizeScheduler(caller); err != nil {
		return nil, zerr.With(err, "execution_id", id)
	}

	return o.run(ctx, "release_task", id, func(_ ports.Tx, t *transition) error {
		exec := t.exec
		if err := requireOpen(exec); err != nil {
			return err
		}
		idx, ok := exec.FindTask(taskID)
		if !ok {
			return zerr.With(zerr.Wrap(domain.ErrTaskNotFound, "task is not part of execution"), "task_id", taskID)
		}
		rec := &exec.Tasks[idx]
		if !rec.State.CanTransition(domain.TaskPending) {
			return invalidTransition(rec, domain.TaskPending)
		}

		rec.State = domain.TaskPending
		rec.AssignedNode = ""
		rec.StartedAt = time.Time{}
		rec.FailureReason = ""
		t.emit(domain.Event{Kind: domain.EventNodeSelectionRequested, Tasks: []domain.TaskExecutionStatus{*rec}})
		return nil
	})
}

// CancelExecution ends an execution on behalf of its requestor. Work already
// dispatched is not retracted, but no further transitions are accepted.
func (o *Orchestrator) CancelExecution(
	ctx context.Context,
	caller domain.Identity,
	id domain.ExecutionID,
) (*domain.Execution, error) {
	return o.run(ctx, "cancel_execution", id, func(_ ports.Tx, t *transition) error {
		exec := t.exec
		if caller != exec.Requestor {
			return zerr.With(zerr.Wrap(domain.ErrUnauthorized, "only the requestor may cancel"), "caller", caller)
		}
		if err := requireOpen(exec); err != nil {
			return err
		}

		exec.Status = domain.ExecutionCanceled
		t.emit(domain.Event{Kind: domain.EventExecutionCanceled, Requestor: caller})
		return nil
	})
}

func requireVerifiable(exec *domain.Execution) error {
	switch exec.Status {
	case domain.ExecutionCanceled, domain.ExecutionFailed:
		return zerr.With(zerr.Wrap(domain.ErrInvalidTransition, "execution no longer accepts verification"),
			"status", exec.Status.String())
	}
	return nil
}

func (t *transition) shadow(index uint64) (*domain.TaskExecutionStatus, *domain.TaskExecutionStatus, error) {
	rec, err := t.record(index)
	if err != nil {
		return nil, nil, err
	}
	if !rec.IsShadow() {
		return nil, nil, zerr.With(zerr.Wrap(domain.ErrInvalidTransition, "record is not a verification record"),
			"task_index", index)
	}
	primary, err := t.record(*rec.TaskToVerify)
	if err != nil {
		return nil, nil, err
	}
	return rec, primary, nil
}

// AssignVerifier assigns a node, other than the one that produced the original
// result, to the verification record at index.
func (o *Orchestrator) AssignVerifier(
	ctx context.Context,
	caller domain.Identity,
	id domain.ExecutionID,
	index uint64,
	node domain.Identity,
) (*domain.Execution, error) {
	if err := o.authorizeScheduler(caller); err != nil {
		return nil, zerr.With(err, "execution_id", id)
	}

	return o.run(ctx, "assign_verifier", id, func(tx ports.Tx, t *transition) error {
		if err := requireVerifiable(t.exec); err != nil {
			return err
		}
		rec, primary, err := t.shadow(index)
		if err != nil {
			return err
		}
		if rec.State != domain.TaskPendingVerification || rec.AssignedNode != "" {
			return zerr.With(zerr.Wrap(domain.ErrInvalidTransition, "verifier already assigned"), "task_index", index)
		}
		if node == primary.AssignedNode {
			return zerr.With(zerr.Wrap(domain.ErrVerifierConflict, "verifier rejected"), "node", node)
		}
		if err := o.checkNode(tx, node, rec.TaskID); err != nil {
			return err
		}

		rec.AssignedNode = node
		t.emit(domain.Event{Kind: domain.EventTaskAssigned, TaskID: rec.TaskID, TaskIndex: domain.Index(int(index)),
			Node: node})
		return nil
	})
}

// ReportVerification records the verifier's outputs. The result is advisory: a
// mismatch is reported but never changes the primary record.
func (o *Orchestrator) ReportVerification(
	ctx context.Context,
	caller domain.Identity,
	id domain.ExecutionID,
	index uint64,
	outputs []string,
) (*domain.Execution, error) {
	return o.run(ctx, "report_verification", id, func(_ ports.Tx, t *transition) error {
		exec := t.exec
		if err := requireVerifiable(exec); err != nil {
			return err
		}
		rec, primary, err := t.shadow(index)
		if err != nil {
			return err
		}
		if !rec.State.CanTransition(domain.TaskVerified) || rec.AssignedNode == "" {
			return invalidTransition(rec, domain.TaskVerified)
		}
		if err := requireAssignee(rec, caller); err != nil {
			return err
		}

		match := slices.Equal(outputs, primary.OutputLocations)
		rec.State = domain.TaskVerified
		rec.OutputLocations = slices.Clone(outputs)
		rec.CompletedAt = t.at
		t.emit(domain.Event{Kind: domain.EventVerificationCompleted, TaskID: rec.TaskID,
			TaskIndex: domain.Index(int(index)), Node: caller, Outputs: slices.Clone(outputs), Match: &match})
		if !match {
			t.after = append(t.after, func() {
				o.logger.Warn("verification mismatch", "execution_id", exec.ID, "task_index", primary.Index,
					"verifier", caller, "original", primary.AssignedNode)
			})
		}
		return nil
	})
}
