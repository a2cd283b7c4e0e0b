package domain

import (
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// ValidateModel checks the referential integrity and structure of a candidate model
// graph against the tasks already registered. It has no side effects and fails on
// the first violation, in this order:
//
//  1. every non-zero connection endpoint is listed in taskIDs;
//  2. every non-zero connection endpoint resolves to a registered task;
//  3. no two connections share a ConnectionKey;
//  4. every listed task resolves to a registered task;
//  5. the connections among tasks are acyclic.
//
// Tensor shape and type compatibility across a connection is not checked.
func ValidateModel(taskIDs []TaskID, connections []TaskConnection, resolved map[TaskID]Task) error {
	listed := make(map[TaskID]struct{}, len(taskIDs))
	for _, id := range taskIDs {
		listed[id] = struct{}{}
	}

	seen := make(map[ConnectionKey]struct{}, len(connections))
	for i, conn := range connections {
		for _, endpoint := range [...]TaskID{conn.SourceTaskID, conn.DestTaskID} {
			if endpoint.IsZero() {
				continue
			}
			if _, ok := listed[endpoint]; !ok {
				return connectionError(ErrDanglingReference, "connection endpoint not in model", i, conn, endpoint)
			}
			if _, ok := resolved[endpoint]; !ok {
				return connectionError(ErrDanglingReference, "connection endpoint not registered", i, conn, endpoint)
			}
		}

		key := conn.Key()
		if _, dup := seen[key]; dup {
			return connectionError(ErrDuplicateConnection, "connection declared twice", i, conn, 0)
		}
		seen[key] = struct{}{}
	}

	for _, id := range taskIDs {
		if _, ok := resolved[id]; !ok {
			return zerr.With(zerr.Wrap(ErrDanglingReference, "model task not registered"), "task_id", id)
		}
	}

	return checkAcyclic(taskIDs, connections)
}

func connectionError(kind error, msg string, index int, conn TaskConnection, endpoint TaskID) error {
	err := zerr.With(zerr.Wrap(kind, msg), "connection", index)
	err = zerr.With(err, "source", conn.SourceTaskID)
	err = zerr.With(err, "destination", conn.DestTaskID)
	if !endpoint.IsZero() {
		err = zerr.With(err, "task_id", endpoint)
	}
	return err
}

// checkAcyclic runs a depth-first search over the task-to-task edges.
func checkAcyclic(taskIDs []TaskID, connections []TaskConnection) error {
	edges := make(map[TaskID][]TaskID)
	for _, c := range connections {
		if c.SourceTaskID.IsZero() || c.DestTaskID.IsZero() {
			continue
		}
		if !slices.Contains(edges[c.SourceTaskID], c.DestTaskID) {
			edges[c.SourceTaskID] = append(edges[c.SourceTaskID], c.DestTaskID)
		}
	}

	visited := make(map[TaskID]int) // 0: unvisited, 1: visiting, 2: visited
	var path []TaskID

	var visit func(u TaskID) error
	visit = func(u TaskID) error {
		visited[u] = 1
		path = append(path, u)
		for _, v := range edges[u] {
			switch visited[v] {
			case 1:
				return buildCycleError(path, v)
			case 0:
				if err := visit(v); err != nil {
					return err
				}
			}
		}
		visited[u] = 2
		path = path[:len(path)-1]
		return nil
	}

	// Walk in declaration order so the reported cycle is deterministic.
	for _, id := range taskIDs {
		if visited[id] == 0 {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

func buildCycleError(path []TaskID, dep TaskID) error {
	start := slices.Index(path, dep)
	parts := make([]string, 0, len(path)-start+1)
	for _, id := range path[start:] {
		parts = append(parts, id.String())
	}
	parts = append(parts, dep.String())
	return zerr.With(zerr.Wrap(ErrCycleDetected, "model graph is not acyclic"), "cycle", strings.Join(parts, " -> "))
}
