package httpapi

import (
	"context"

	"go.trai.ch/splitup/internal/core/domain"
)

// Service is the set of operations exposed over HTTP. Every mutating call
// receives the authenticated caller.
type Service interface {
	RegisterTask(ctx context.Context, caller domain.Identity, task *domain.Task) error
	RegisterModel(ctx context.Context, caller domain.Identity, model *domain.Model) error
	Task(ctx context.Context, id domain.TaskID) (*domain.Task, error)
	Model(ctx context.Context, id domain.ModelID) (*domain.Model, error)

	RegisterNode(ctx context.Context, owner domain.Identity, specs []domain.TaskID, stake uint64) (*domain.Node, error)
	Node(ctx context.Context, owner domain.Identity) (*domain.Node, error)
	IncreaseStake(ctx context.Context, caller, owner domain.Identity, amount uint64) (uint64, error)
	DecreaseStake(ctx context.Context, caller, owner domain.Identity, amount uint64) (uint64, error)
	Credit(ctx context.Context, caller, owner domain.Identity, amount uint64) (uint64, error)
	Balance(ctx context.Context, owner domain.Identity) (uint64, error)
	EligibleNodes(ctx context.Context, taskID domain.TaskID) ([]domain.Identity, error)

	RequestExecution(
		ctx context.Context, caller domain.Identity, modelID domain.ModelID, input string, maxFee uint64,
	) (*domain.Execution, error)
	Execution(ctx context.Context, id domain.ExecutionID) (*domain.Execution, error)
	AssignTask(
		ctx context.Context, caller domain.Identity, id domain.ExecutionID, taskID domain.TaskID, node domain.Identity,
	) (*domain.Execution, error)
	StartTask(ctx context.Context, caller domain.Identity, id domain.ExecutionID, index uint64) (*domain.Execution, error)
	CompleteTask(
		ctx context.Context, caller domain.Identity, id domain.ExecutionID, index uint64, outputs []string, entropy []byte,
	) (*domain.Execution, error)
	FailTask(
		ctx context.Context, caller domain.Identity, id domain.ExecutionID, index uint64, reason string,
	) (*domain.Execution, error)
	ReleaseTask(
		ctx context.Context, caller domain.Identity, id domain.ExecutionID, taskID domain.TaskID,
	) (*domain.Execution, error)
	CancelExecution(ctx context.Context, caller domain.Identity, id domain.ExecutionID) (*domain.Execution, error)
	AssignVerifier(
		ctx context.Context, caller domain.Identity, id domain.ExecutionID, index uint64, node domain.Identity,
	) (*domain.Execution, error)
	ReportVerification(
		ctx context.Context, caller domain.Identity, id domain.ExecutionID, index uint64, outputs []string,
	) (*domain.Execution, error)
}
