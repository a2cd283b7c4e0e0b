package registry

import (
	"maps"
	"slices"

	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/zerr"
)

// tx stages writes on top of the committed state.
type tx struct {
	base       *state
	tasks      map[domain.TaskID]domain.Task
	models     map[domain.ModelID]domain.Model
	nodes      map[domain.Identity]domain.Node
	executions map[domain.ExecutionID]domain.Execution
	balances   map[domain.Identity]uint64
}

func newTx(base *state) *tx {
	return &tx{
		base:       base,
		tasks:      make(map[domain.TaskID]domain.Task),
		models:     make(map[domain.ModelID]domain.Model),
		nodes:      make(map[domain.Identity]domain.Node),
		executions: make(map[domain.ExecutionID]domain.Execution),
		balances:   make(map[domain.Identity]uint64),
	}
}

// lookup reads a key from the overlay first, then from the committed map.
func lookup[K comparable, V any](overlay, base map[K]V, key K) (V, bool) {
	if v, ok := overlay[key]; ok {
		return v, true
	}
	v, ok := base[key]
	return v, ok
}

func notFound(kind string, key any) error {
	return zerr.With(zerr.Wrap(domain.ErrNotFound, kind+" not found"), "key", key)
}

func exists(kind string, key any) error {
	return zerr.With(zerr.Wrap(domain.ErrAlreadyExists, kind+" already registered"), "key", key)
}

func (t *tx) Task(id domain.TaskID) (*domain.Task, error) {
	v, ok := lookup(t.tasks, t.base.Tasks, id)
	if !ok {
		return nil, notFound("task", id)
	}
	c := cloneTask(v)
	return &c, nil
}

func (t *tx) CreateTask(task *domain.Task) error {
	if _, ok := lookup(t.tasks, t.base.Tasks, task.ID); ok {
		return exists("task", task.ID)
	}
	if err := task.CheckCapacity(); err != nil {
		return err
	}
	t.tasks[task.ID] = cloneTask(*task)
	return nil
}

func (t *tx) Model(id domain.ModelID) (*domain.Model, error) {
	v, ok := lookup(t.models, t.base.Models, id)
	if !ok {
		return nil, notFound("model", id)
	}
	c := cloneModel(v)
	return &c, nil
}

func (t *tx) CreateModel(m *domain.Model) error {
	if _, ok := lookup(t.models, t.base.Models, m.ID); ok {
		return exists("model", m.ID)
	}
	if err := m.CheckCapacity(); err != nil {
		return err
	}
	t.models[m.ID] = cloneModel(*m)
	return nil
}

func (t *tx) Node(owner domain.Identity) (*domain.Node, error) {
	v, ok := lookup(t.nodes, t.base.Nodes, owner)
	if !ok {
		return nil, notFound("node", owner)
	}
	c := cloneNode(v)
	return &c, nil
}

func (t *tx) CreateNode(n *domain.Node) error {
	if _, ok := lookup(t.nodes, t.base.Nodes, n.Owner); ok {
		return exists("node", n.Owner)
	}
	return t.SaveNode(n)
}

func (t *tx) SaveNode(n *domain.Node) error {
	if err := n.CheckCapacity(); err != nil {
		return err
	}
	t.nodes[n.Owner] = cloneNode(*n)
	return nil
}

func (t *tx) Execution(id domain.ExecutionID) (*domain.Execution, error) {
	v, ok := lookup(t.executions, t.base.Executions, id)
	if !ok {
		return nil, notFound("execution", id)
	}
	return v.Clone(), nil
}

func (t *tx) CreateExecution(e *domain.Execution) error {
	if _, ok := lookup(t.executions, t.base.Executions, e.ID); ok {
		return exists("execution", e.ID)
	}
	return t.SaveExecution(e)
}

func (t *tx) SaveExecution(e *domain.Execution) error {
	if err := e.CheckCapacity(); err != nil {
		return err
	}
	t.executions[e.ID] = *e.Clone()
	return nil
}

func (t *tx) Balance(owner domain.Identity) (uint64, error) {
	v, _ := lookup(t.balances, t.base.Balances, owner)
	return v, nil
}

func (t *tx) SetBalance(owner domain.Identity, amount uint64) error {
	t.balances[owner] = amount
	return nil
}

// apply merges the overlay into dst and returns a function restoring dst.
func (t *tx) apply(dst *state) func() {
	undos := []func(){
		merge(dst.Tasks, t.tasks),
		merge(dst.Models, t.models),
		merge(dst.Nodes, t.nodes),
		merge(dst.Executions, t.executions),
		merge(dst.Balances, t.balances),
	}
	return func() {
		for _, undo := range undos {
			undo()
		}
	}
}

func merge[K comparable, V any](dst, overlay map[K]V) func() {
	type prior struct {
		v  V
		ok bool
	}
	saved := make(map[K]prior, len(overlay))
	for k := range overlay {
		v, ok := dst[k]
		saved[k] = prior{v, ok}
	}
	maps.Copy(dst, overlay)
	return func() {
		for k, p := range saved {
			if p.ok {
				dst[k] = p.v
			} else {
				delete(dst, k)
			}
		}
	}
}

func cloneTensors(in []domain.TensorSpec) []domain.TensorSpec {
	if in == nil {
		return nil
	}
	out := make([]domain.TensorSpec, len(in))
	for i, t := range in {
		t.Shape = slices.Clone(t.Shape)
		out[i] = t
	}
	return out
}

func cloneTask(t domain.Task) domain.Task {
	t.Inputs = cloneTensors(t.Inputs)
	t.Outputs = cloneTensors(t.Outputs)
	return t
}

func cloneModel(m domain.Model) domain.Model {
	m.TaskIDs = slices.Clone(m.TaskIDs)
	conns := make([]domain.TaskConnection, len(m.Connections))
	for i, c := range m.Connections {
		c.Tensor.Shape = slices.Clone(c.Tensor.Shape)
		conns[i] = c
	}
	m.Connections = conns
	return m
}

func cloneNode(n domain.Node) domain.Node {
	n.Specializations = slices.Clone(n.Specializations)
	return n
}
