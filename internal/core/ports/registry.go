package ports

import (
	"context"

	"go.trai.ch/splitup/internal/core/domain"
)

//go:generate go run go.uber.org/mock/mockgen -source=registry.go -destination=mocks/mock_registry.go -package=mocks

// Registry is durable keyed storage for tasks, models, nodes and executions.
type Registry interface {
	// Tx runs fn as one atomic unit. Every entity read through the Tx is held
	// until the unit ends, and if fn returns an error none of its writes survive.
	Tx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// ListNodes returns up to limit nodes ordered by owner, starting after the
	// given owner. An empty after starts from the beginning.
	ListNodes(ctx context.Context, after domain.Identity, limit int) ([]domain.Node, error)

	// Close releases the backend.
	Close() error
}

// Tx is the view of the registry inside one atomic unit. Getters return
// domain.ErrNotFound for missing keys, Create* returns domain.ErrAlreadyExists
// for taken keys, and every write enforces the entity's capacity bounds.
type Tx interface {
	Task(id domain.TaskID) (*domain.Task, error)
	CreateTask(t *domain.Task) error

	Model(id domain.ModelID) (*domain.Model, error)
	CreateModel(m *domain.Model) error

	Node(owner domain.Identity) (*domain.Node, error)
	CreateNode(n *domain.Node) error
	SaveNode(n *domain.Node) error

	Execution(id domain.ExecutionID) (*domain.Execution, error)
	CreateExecution(e *domain.Execution) error
	SaveExecution(e *domain.Execution) error

	// Balance returns the spendable balance of an account. Unknown accounts hold zero.
	Balance(owner domain.Identity) (uint64, error)
	SetBalance(owner domain.Identity, amount uint64) error
}
