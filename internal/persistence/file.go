package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/tathienbao/options-lab/internal/hypothesis"
	"github.com/tathienbao/options-lab/internal/types"
)

// FileStore writes each artifact as an indented JSON document named
// <strategy>_<timestamp>.json. A second result for the same strategy within
// the same second overwrites the first.
type FileStore struct {
	dir string

	mu     sync.Mutex
	closed bool
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the results directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns where an artifact is written.
func (s *FileStore) Path(a hypothesis.Artifact) string {
	return filepath.Join(s.dir, a.FileName())
}

// SaveResult writes the artifact. The file is written to a temporary name
// and renamed so readers never see a partial document.
func (s *FileStore) SaveResult(ctx context.Context, a hypothesis.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrStoreClosed
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}

	path := s.Path(a)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}

// Load reads one artifact file.
func (s *FileStore) Load(path string) (hypothesis.Artifact, error) {
	var a hypothesis.Artifact
	data, err := os.ReadFile(path)
	if err != nil {
		return a, fmt.Errorf("read artifact: %w", err)
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return a, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return a, nil
}

// ListResults reads every artifact in the directory, newest first. An
// empty strategy matches all; limit <= 0 means no limit.
func (s *FileStore) ListResults(ctx context.Context, strategy string, limit int) ([]StoredResult, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, types.ErrStoreClosed
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read results dir: %w", err)
	}

	var results []StoredResult
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if strategy != "" && !strings.HasPrefix(e.Name(), strategy+"_") {
			continue
		}

		a, err := s.Load(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if strategy != "" && a.TestInfo.Strategy != strategy {
			continue
		}

		r := StoredResult{Artifact: a}
		if info, err := e.Info(); err == nil {
			r.CreatedAt = info.ModTime()
		}
		results = append(results, r)
	}

	// Timestamps are fixed-width, so string order is time order.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Artifact.TestInfo.Timestamp > results[j].Artifact.TestInfo.Timestamp
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// LatestResult returns the newest artifact for strategy.
func (s *FileStore) LatestResult(ctx context.Context, strategy string) (*StoredResult, error) {
	results, err := s.ListResults(ctx, strategy, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrResultNotFound, strategy)
	}
	return &results[0], nil
}

// Close marks the store closed.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
