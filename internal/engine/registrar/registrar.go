// Package registrar admits tasks and models into the registry after validating
// their structure and model graphs.
package registrar

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/core/ports"
	"go.trai.ch/zerr"
)

// Registrar registers tasks and models.
type Registrar struct {
	registry ports.Registry
	events   ports.EventPublisher
	logger   ports.Logger
	tracer   ports.Tracer
	now      func() time.Time
}

// New creates a Registrar.
func New(registry ports.Registry, events ports.EventPublisher, logger ports.Logger, tracer ports.Tracer) *Registrar {
	return &Registrar{
		registry: registry,
		events:   events,
		logger:   logger,
		tracer:   tracer,
		now:      time.Now,
	}
}

// RegisterTask validates and stores a task under its caller-supplied id.
func (r *Registrar) RegisterTask(ctx context.Context, caller domain.Identity, task *domain.Task) error {
	ctx, span := r.tracer.Start(ctx, "registrar.register_task", ports.WithAttribute("task_id", task.ID))
	defer span.End()

	if err := r.registerTask(ctx, caller, task); err != nil {
		span.RecordError(err)
		return err
	}

	r.logger.Info("task registered", "task_id", task.ID, "model_id", task.ModelID, "caller", caller)
	r.events.Publish(ctx, domain.Event{
		ID:        uuid.NewString(),
		Kind:      domain.EventTaskRegistered,
		At:        r.now().UTC(),
		TaskID:    task.ID,
		ModelID:   task.ModelID,
		Requestor: caller,
	})
	return nil
}

func (r *Registrar) registerTask(ctx context.Context, caller domain.Identity, task *domain.Task) error {
	if !caller.Valid() {
		return zerr.Wrap(domain.ErrInvalidIdentifier, "caller must be set")
	}
	if err := task.Validate(); err != nil {
		return err
	}
	return r.registry.Tx(ctx, func(_ context.Context, tx ports.Tx) error {
		return tx.CreateTask(task)
	})
}

// RegisterModel validates the model's graph against the registered tasks and
// stores it. An empty creator defaults to the caller.
func (r *Registrar) RegisterModel(ctx context.Context, caller domain.Identity, model *domain.Model) error {
	ctx, span := r.tracer.Start(ctx, "registrar.register_model", ports.WithAttribute("model_id", model.ID))
	defer span.End()

	if err := r.registerModel(ctx, caller, model); err != nil {
		span.RecordError(err)
		return err
	}

	r.logger.Info("model registered", "model_id", model.ID, "tasks", len(model.TaskIDs),
		"connections", len(model.Connections))
	r.events.Publish(ctx, domain.Event{
		ID:        uuid.NewString(),
		Kind:      domain.EventModelRegistered,
		At:        r.now().UTC(),
		ModelID:   model.ID,
		Requestor: caller,
	})
	return nil
}

func (r *Registrar) registerModel(ctx context.Context, caller domain.Identity, model *domain.Model) error {
	if !caller.Valid() {
		return zerr.Wrap(domain.ErrInvalidIdentifier, "caller must be set")
	}
	if model.Creator == "" {
		model.Creator = string(caller)
	}
	if err := model.Validate(); err != nil {
		return err
	}
	if err := model.CheckCapacity(); err != nil {
		return err
	}

	return r.registry.Tx(ctx, func(_ context.Context, tx ports.Tx) error {
		resolved, err := resolveTasks(tx, model)
		if err != nil {
			return err
		}
		if err := domain.ValidateModel(model.TaskIDs, model.Connections, resolved); err != nil {
			return zerr.With(err, "model_id", model.ID)
		}
		return tx.CreateModel(model)
	})
}

// resolveTasks loads every non-zero task the model mentions. Unknown ids are
// left out of the map so the graph validator can report them in order.
func resolveTasks(tx ports.Tx, model *domain.Model) (map[domain.TaskID]domain.Task, error) {
	resolved := make(map[domain.TaskID]domain.Task)
	load := func(id domain.TaskID) error {
		if id.IsZero() {
			return nil
		}
		if _, ok := resolved[id]; ok {
			return nil
		}
		t, err := tx.Task(id)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		resolved[id] = *t
		return nil
	}

	for _, id := range model.TaskIDs {
		if err := load(id); err != nil {
			return nil, err
		}
	}
	for _, c := range model.Connections {
		if err := load(c.SourceTaskID); err != nil {
			return nil, err
		}
		if err := load(c.DestTaskID); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

// Task returns a registered task.
func (r *Registrar) Task(ctx context.Context, id domain.TaskID) (*domain.Task, error) {
	var task *domain.Task
	err := r.registry.Tx(ctx, func(_ context.Context, tx ports.Tx) error {
		var err error
		task, err = tx.Task(id)
		return err
	})
	return task, err
}

// Model returns a registered model.
func (r *Registrar) Model(ctx context.Context, id domain.ModelID) (*domain.Model, error) {
	var model *domain.Model
	err := r.registry.Tx(ctx, func(_ context.Context, tx ports.Tx) error {
		var err error
		model, err = tx.Model(id)
		return err
	})
	return model, err
}
