package ports

import "context"

//go:generate go run go.uber.org/mock/mockgen -source=watcher.go -destination=mocks/mock_watcher.go -package=mocks

// Watcher reports changes to a file, coalescing bursts of writes.
type Watcher interface {
	// Watch calls onChange after the file at path settles, until ctx ends.
	Watch(ctx context.Context, path string, onChange func()) error
}
