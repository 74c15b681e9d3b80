// Package persistence stores finished hypothesis test artifacts.
package persistence

import (
	"context"
	"time"

	"github.com/tathienbao/options-lab/internal/hypothesis"
)

// Store is a result store that can be closed.
type Store interface {
	hypothesis.ResultStore
	Close() error
}

// StoredResult is an artifact read back from a store.
type StoredResult struct {
	ID        int64
	CreatedAt time.Time
	Artifact  hypothesis.Artifact
}

// Reader lists stored results, newest first.
type Reader interface {
	ListResults(ctx context.Context, strategy string, limit int) ([]StoredResult, error)
	LatestResult(ctx context.Context, strategy string) (*StoredResult, error)
}

var (
	_ Store  = (*FileStore)(nil)
	_ Store  = (*SQLiteStore)(nil)
	_ Store  = (*ThrottledStore)(nil)
	_ Store  = (*Fanout)(nil)
	_ Reader = (*SQLiteStore)(nil)
	_ Reader = (*FileStore)(nil)
)
