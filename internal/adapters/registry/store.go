// Package registry implements the registry store in memory, optionally backed by a
// single JSON file that is rewritten after every committed unit.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Registry = (*Store)(nil)

// ErrCorrupted is returned when the registry file fails its checksum.
var ErrCorrupted = zerr.New("registry file checksum mismatch")

// state is the full registry content.
type state struct {
	Tasks      map[domain.TaskID]domain.Task           `json:"tasks"`
	Models     map[domain.ModelID]domain.Model         `json:"models"`
	Nodes      map[domain.Identity]domain.Node         `json:"nodes"`
	Executions map[domain.ExecutionID]domain.Execution `json:"executions"`
	Balances   map[domain.Identity]uint64              `json:"balances"`
}

func newState() *state {
	return &state{
		Tasks:      make(map[domain.TaskID]domain.Task),
		Models:     make(map[domain.ModelID]domain.Model),
		Nodes:      make(map[domain.Identity]domain.Node),
		Executions: make(map[domain.ExecutionID]domain.Execution),
		Balances:   make(map[domain.Identity]uint64),
	}
}

// envelope is the on-disk layout: the encoded state and its xxhash.
type envelope struct {
	Checksum string          `json:"checksum"`
	State    json.RawMessage `json:"state"`
}

// Store implements ports.Registry. Units are serialized by a single mutex.
type Store struct {
	path  string
	mu    sync.Mutex
	state *state
}

// NewMemoryStore creates a registry that lives only in process memory.
func NewMemoryStore() *Store {
	return &Store{state: newState()}
}

// NewFileStore creates a registry persisted to the file at the given path.
func NewFileStore(path string) (*Store, error) {
	s := &Store{
		path:  filepath.Clean(path),
		state: newState(),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	//nolint:gosec // Path is cleaned and provided by trusted caller
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return zerr.Wrap(err, "failed to read registry")
	}

	if len(data) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return zerr.Wrap(err, "failed to unmarshal registry")
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, env.State); err != nil {
		return zerr.Wrap(err, "failed to read registry state")
	}
	if env.Checksum != checksum(compact.Bytes()) {
		return zerr.With(zerr.Wrap(ErrCorrupted, "registry rejected"), "path", s.path)
	}

	loaded := newState()
	if err := json.Unmarshal(env.State, loaded); err != nil {
		return zerr.Wrap(err, "failed to unmarshal registry state")
	}
	s.state = loaded
	return nil
}

// save writes the state to a temporary file and renames it over the registry file.
// Callers hold s.mu.
func (s *Store) save() error {
	if s.path == "" {
		return nil
	}

	raw, err := json.Marshal(s.state)
	if err != nil {
		return zerr.Wrap(err, "failed to marshal registry state")
	}
	data, err := json.Marshal(envelope{Checksum: checksum(raw), State: raw})
	if err != nil {
		return zerr.Wrap(err, "failed to marshal registry")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return zerr.Wrap(err, "failed to create directory for registry")
	}

	tmp := s.path + ".tmp"
	//nolint:gosec // Path is cleaned and provided by trusted caller
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return zerr.Wrap(err, "failed to write registry")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return zerr.Wrap(err, "failed to replace registry")
	}
	return nil
}

func checksum(b []byte) string {
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}

// Tx runs fn against a staging overlay and applies the overlay only if fn succeeds
// and the result can be persisted.
func (s *Store) Tx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newTx(s.state)
	if err := fn(ctx, tx); err != nil {
		return err
	}

	undo := tx.apply(s.state)
	if err := s.save(); err != nil {
		undo()
		return err
	}
	return nil
}

// ListNodes returns nodes ordered by owner.
func (s *Store) ListNodes(ctx context.Context, after domain.Identity, limit int) ([]domain.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owners := make([]domain.Identity, 0, len(s.state.Nodes))
	for owner := range s.state.Nodes {
		if after == "" || owner > after {
			owners = append(owners, owner)
		}
	}
	slices.Sort(owners)
	if limit > 0 && len(owners) > limit {
		owners = owners[:limit]
	}

	out := make([]domain.Node, 0, len(owners))
	for _, owner := range owners {
		out = append(out, cloneNode(s.state.Nodes[owner]))
	}
	return out, nil
}

// Close does nothing; every committed unit is already on disk.
func (s *Store) Close() error {
	return nil
}
