// Package postgres is the PostgreSQL registry backend. Each registry unit is one
// SQL transaction and every entity read inside it is locked with FOR UPDATE, so
// concurrent units on different executions proceed in parallel while units on
// the same execution serialize.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Registry = (*Store)(nil)

//go:embed schema.sql
var schema string

// SchemaVersion is recorded in schema_version after the schema is applied.
const SchemaVersion = 1

// Store implements ports.Registry on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to connect to postgres")
	}
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return zerr.Wrap(err, "failed to begin schema migration")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, schema); err != nil {
		return zerr.Wrap(err, "failed to apply registry schema")
	}

	var current int
	if err := tx.QueryRow(ctx, `SELECT coalesce(max("version"), 0) FROM "schema_version"`).Scan(&current); err != nil {
		return zerr.Wrap(err, "failed to read schema version")
	}
	if current < SchemaVersion {
		if _, err := tx.Exec(ctx, `DELETE FROM "schema_version"`); err != nil {
			return zerr.Wrap(err, "failed to reset schema version")
		}
		if _, err := tx.Exec(ctx, `INSERT INTO "schema_version" ("version") VALUES ($1)`, SchemaVersion); err != nil {
			return zerr.Wrap(err, "failed to record schema version")
		}
	}
	return tx.Commit(ctx)
}

// Tx runs fn inside one SQL transaction.
func (s *Store) Tx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	sqlTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return zerr.Wrap(err, "failed to begin registry transaction")
	}
	defer func() { _ = sqlTx.Rollback(ctx) }()

	if err := fn(ctx, &tx{ctx: ctx, q: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(ctx); err != nil {
		return zerr.Wrap(err, "failed to commit registry transaction")
	}
	return nil
}

// ListNodes returns up to limit nodes ordered by owner, after the given owner.
func (s *Store) ListNodes(ctx context.Context, after domain.Identity, limit int) ([]domain.Node, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT "body" FROM "node" WHERE "owner" > $1 ORDER BY "owner" LIMIT $2`,
		string(after), limit,
	)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to list nodes")
	}
	defer rows.Close()

	var nodes []domain.Node
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, zerr.Wrap(err, "failed to scan node")
		}
		var n domain.Node
		if err := json.Unmarshal(body, &n); err != nil {
			return nil, zerr.Wrap(err, "failed to decode node")
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, zerr.Wrap(err, "failed to list nodes")
	}
	return nodes, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

type tx struct {
	ctx context.Context //nolint:containedctx // bound to one registry unit
	q   pgx.Tx
}

func notFound(kind string, key any) error {
	return zerr.With(zerr.Wrap(domain.ErrNotFound, kind+" not found"), "key", key)
}

func exists(kind string, key any) error {
	return zerr.With(zerr.Wrap(domain.ErrAlreadyExists, kind+" already registered"), "key", key)
}

func (t *tx) get(kind, table, column string, key any, out any) error {
	var body []byte
	err := t.q.QueryRow(t.ctx,
		`SELECT "body" FROM "`+table+`" WHERE "`+column+`" = $1 FOR UPDATE`, key,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound(kind, key)
	}
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to read "+kind), "key", key)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to decode "+kind), "key", key)
	}
	return nil
}

func (t *tx) insert(kind, table, column string, key, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return zerr.Wrap(err, "failed to encode "+kind)
	}
	_, err = t.q.Exec(t.ctx,
		`INSERT INTO "`+table+`" ("`+column+`", "body") VALUES ($1, $2)`, key, body,
	)
	if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) && pgerr.Code == pgerrcode.UniqueViolation {
		return exists(kind, key)
	}
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to insert "+kind), "key", key)
	}
	return nil
}

func (t *tx) update(kind, table, column string, key, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return zerr.Wrap(err, "failed to encode "+kind)
	}
	tag, err := t.q.Exec(t.ctx,
		`UPDATE "`+table+`" SET "body" = $2 WHERE "`+column+`" = $1`, key, body,
	)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to update "+kind), "key", key)
	}
	if tag.RowsAffected() == 0 {
		return notFound(kind, key)
	}
	return nil
}

// Ids are stored as BIGINT by bit pattern.
func pgID[T ~uint64](id T) int64 { return int64(id) }

func (t *tx) Task(id domain.TaskID) (*domain.Task, error) {
	var task domain.Task
	if err := t.get("task", "task", "id", pgID(id), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (t *tx) CreateTask(task *domain.Task) error {
	if err := task.CheckCapacity(); err != nil {
		return err
	}
	return t.insert("task", "task", "id", pgID(task.ID), task)
}

func (t *tx) Model(id domain.ModelID) (*domain.Model, error) {
	var m domain.Model
	if err := t.get("model", "model", "id", pgID(id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (t *tx) CreateModel(m *domain.Model) error {
	if err := m.CheckCapacity(); err != nil {
		return err
	}
	return t.insert("model", "model", "id", pgID(m.ID), m)
}

func (t *tx) Node(owner domain.Identity) (*domain.Node, error) {
	var n domain.Node
	if err := t.get("node", "node", "owner", string(owner), &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (t *tx) CreateNode(n *domain.Node) error {
	if err := n.CheckCapacity(); err != nil {
		return err
	}
	return t.insert("node", "node", "owner", string(n.Owner), n)
}

func (t *tx) SaveNode(n *domain.Node) error {
	if err := n.CheckCapacity(); err != nil {
		return err
	}
	return t.update("node", "node", "owner", string(n.Owner), n)
}

func (t *tx) Execution(id domain.ExecutionID) (*domain.Execution, error) {
	var e domain.Execution
	if err := t.get("execution", "execution", "id", pgID(id), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (t *tx) CreateExecution(e *domain.Execution) error {
	if err := e.CheckCapacity(); err != nil {
		return err
	}
	return t.insert("execution", "execution", "id", pgID(e.ID), e)
}

func (t *tx) SaveExecution(e *domain.Execution) error {
	if err := e.CheckCapacity(); err != nil {
		return err
	}
	return t.update("execution", "execution", "id", pgID(e.ID), e)
}

// Balance locks the owner's balance row for the rest of the unit. A missing row
// is created at zero first, since a plain FOR UPDATE cannot lock a row that
// does not exist yet and two first credits would both read zero.
func (t *tx) Balance(owner domain.Identity) (uint64, error) {
	var amount string
	err := t.q.QueryRow(t.ctx,
		`INSERT INTO "balance" ("owner", "amount") VALUES ($1, 0)
		 ON CONFLICT ("owner") DO UPDATE SET "amount" = "balance"."amount"
		 RETURNING "amount"::TEXT`, string(owner),
	).Scan(&amount)
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to read balance"), "owner", owner)
	}
	v, err := strconv.ParseUint(amount, 10, 64)
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to decode balance"), "owner", owner)
	}
	return v, nil
}

func (t *tx) SetBalance(owner domain.Identity, amount uint64) error {
	_, err := t.q.Exec(t.ctx,
		`INSERT INTO "balance" ("owner", "amount") VALUES ($1, $2::NUMERIC)
		 ON CONFLICT ("owner") DO UPDATE SET "amount" = EXCLUDED."amount"`,
		string(owner), strconv.FormatUint(amount, 10),
	)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write balance"), "owner", owner)
	}
	return nil
}
