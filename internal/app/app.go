// Package app implements the application layer for splitup. App is the single
// facade over the registrar, stake ledger, eligibility index and orchestrator
// used by both the HTTP API and the CLI.
package app

import (
	"context"

	"go.trai.ch/splitup/internal/adapters/eventstream" //nolint:depguard // Wired in app layer
	"go.trai.ch/splitup/internal/adapters/httpapi"     //nolint:depguard // Wired in app layer
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/core/ports"
	"go.trai.ch/splitup/internal/engine/dispatch"
	"go.trai.ch/splitup/internal/engine/eligibility"
	"go.trai.ch/splitup/internal/engine/orchestrator"
	"go.trai.ch/splitup/internal/engine/registrar"
	"go.trai.ch/splitup/internal/engine/stake"
	"go.trai.ch/zerr"
)

var _ httpapi.Service = (*App)(nil)

// Deps are the components an App is assembled from.
type Deps struct {
	Config       *domain.Config
	Loader       ports.ConfigLoader
	Registry     ports.Registry
	Registrar    *registrar.Registrar
	Ledger       *stake.Ledger
	Index        *eligibility.Index
	Orchestrator *orchestrator.Orchestrator
	Dispatcher   *dispatch.Dispatcher
	Committee    *domain.Committee
	Source       ports.EventSource
	Stream       *eventstream.Server
	Watcher      ports.Watcher
	Logger       ports.Logger
}

// App represents the main application logic.
type App struct {
	Deps
	auth *httpapi.Authenticator
}

// New creates a new App instance.
func New(deps Deps) *App {
	return &App{Deps: deps, auth: httpapi.NewAuthenticator(deps.Config.Server.JWTSecret)}
}

// Authenticator returns the bearer token authenticator of the HTTP API.
func (a *App) Authenticator() *httpapi.Authenticator {
	return a.auth
}

// Close releases the registry.
func (a *App) Close() error {
	return a.Registry.Close()
}

// RegisterTask registers an immutable task.
func (a *App) RegisterTask(ctx context.Context, caller domain.Identity, task *domain.Task) error {
	return a.Registrar.RegisterTask(ctx, caller, task)
}

// RegisterModel registers a model after validating its graph.
func (a *App) RegisterModel(ctx context.Context, caller domain.Identity, model *domain.Model) error {
	return a.Registrar.RegisterModel(ctx, caller, model)
}

// Task returns a registered task.
func (a *App) Task(ctx context.Context, id domain.TaskID) (*domain.Task, error) {
	return a.Registrar.Task(ctx, id)
}

// Model returns a registered model.
func (a *App) Model(ctx context.Context, id domain.ModelID) (*domain.Model, error) {
	return a.Registrar.Model(ctx, id)
}

// RegisterNode admits owner as a node staking initialStake.
func (a *App) RegisterNode(
	ctx context.Context,
	owner domain.Identity,
	specs []domain.TaskID,
	initialStake uint64,
) (*domain.Node, error) {
	return a.Ledger.Admit(ctx, owner, specs, initialStake)
}

// Node returns a registered node.
func (a *App) Node(ctx context.Context, owner domain.Identity) (*domain.Node, error) {
	return a.Ledger.Node(ctx, owner)
}

// IncreaseStake moves amount from owner's balance into collateral.
func (a *App) IncreaseStake(ctx context.Context, caller, owner domain.Identity, amount uint64) (uint64, error) {
	return a.Ledger.Increase(ctx, caller, owner, amount)
}

// DecreaseStake returns amount of owner's collateral to the balance.
func (a *App) DecreaseStake(ctx context.Context, caller, owner domain.Identity, amount uint64) (uint64, error) {
	return a.Ledger.Decrease(ctx, caller, owner, amount)
}

// Credit funds owner's spendable balance. Only schedulers may credit accounts.
func (a *App) Credit(ctx context.Context, caller, owner domain.Identity, amount uint64) (uint64, error) {
	if !a.Committee.Authorized(caller) {
		return 0, zerr.With(zerr.Wrap(domain.ErrUnauthorized, "only schedulers may credit accounts"), "caller", caller)
	}
	return a.Ledger.Credit(ctx, owner, amount)
}

// Balance returns owner's spendable balance.
func (a *App) Balance(ctx context.Context, owner domain.Identity) (uint64, error) {
	return a.Ledger.Balance(ctx, owner)
}

// EligibleNodes lists the owners of nodes declaring taskID.
func (a *App) EligibleNodes(ctx context.Context, taskID domain.TaskID) ([]domain.Identity, error) {
	return a.Index.Eligible(ctx, taskID)
}

// RequestExecution starts an execution of modelID.
func (a *App) RequestExecution(
	ctx context.Context,
	caller domain.Identity,
	modelID domain.ModelID,
	input string,
	maxFee uint64,
) (*domain.Execution, error) {
	return a.Orchestrator.RequestExecution(ctx, caller, modelID, input, maxFee)
}

// Execution returns a stored execution.
func (a *App) Execution(ctx context.Context, id domain.ExecutionID) (*domain.Execution, error) {
	return a.Orchestrator.Execution(ctx, id)
}

// AssignTask binds node to taskID.
func (a *App) AssignTask(
	ctx context.Context,
	caller domain.Identity,
	id domain.ExecutionID,
	taskID domain.TaskID,
	node domain.Identity,
) (*domain.Execution, error) {
	return a.Orchestrator.AssignTask(ctx, caller, id, taskID, node)
}

// StartTask marks the record at index as running.
func (a *App) StartTask(
	ctx context.Context,
	caller domain.Identity,
	id domain.ExecutionID,
	index uint64,
) (*domain.Execution, error) {
	return a.Orchestrator.StartTask(ctx, caller, id, index)
}

// CompleteTask records the outputs of the record at index.
func (a *App) CompleteTask(
	ctx context.Context,
	caller domain.Identity,
	id domain.ExecutionID,
	index uint64,
	outputs []string,
	entropy []byte,
) (*domain.Execution, error) {
	return a.Orchestrator.CompleteTask(ctx, caller, id, index, outputs, entropy)
}

// FailTask records a failure of the record at index.
func (a *App) FailTask(
	ctx context.Context,
	caller domain.Identity,
	id domain.ExecutionID,
	index uint64,
	reason string,
) (*domain.Execution, error) {
	return a.Orchestrator.FailTask(ctx, caller, id, index, reason)
}

// ReleaseTask returns a failed task to Pending.
func (a *App) ReleaseTask(
	ctx context.Context,
	caller domain.Identity,
	id domain.ExecutionID,
	taskID domain.TaskID,
) (*domain.Execution, error) {
	return a.Orchestrator.ReleaseTask(ctx, caller, id, taskID)
}

// CancelExecution cancels an open execution.
func (a *App) CancelExecution(ctx context.Context, caller domain.Identity, id domain.ExecutionID) (*domain.Execution, error) {
	return a.Orchestrator.CancelExecution(ctx, caller, id)
}

// AssignVerifier binds node to the verification record at index.
func (a *App) AssignVerifier(
	ctx context.Context,
	caller domain.Identity,
	id domain.ExecutionID,
	index uint64,
	node domain.Identity,
) (*domain.Execution, error) {
	return a.Orchestrator.AssignVerifier(ctx, caller, id, index, node)
}

// ReportVerification records the outputs of a verification record.
func (a *App) ReportVerification(
	ctx context.Context,
	caller domain.Identity,
	id domain.ExecutionID,
	index uint64,
	outputs []string,
) (*domain.Execution, error) {
	return a.Orchestrator.ReportVerification(ctx, caller, id, index, outputs)
}

// Dispatch runs the built-in scheduler once for the execution.
func (a *App) Dispatch(ctx context.Context, id domain.ExecutionID) (int, error) {
	if !a.Dispatcher.Enabled() {
		return 0, zerr.Wrap(domain.ErrInvalidConfig, "policy.dispatch_as is not set")
	}
	return a.Dispatcher.Dispatch(ctx, id)
}
