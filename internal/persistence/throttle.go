package persistence

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/tathienbao/options-lab/internal/hypothesis"
)

// ThrottledStore paces writes to a slower downstream store.
type ThrottledStore struct {
	next    Store
	limiter *rate.Limiter
}

// NewThrottledStore allows writesPerSecond writes with a burst of the same
// size, at least one. A non-positive rate disables throttling.
func NewThrottledStore(next Store, writesPerSecond int) *ThrottledStore {
	limit := rate.Inf
	burst := 1
	if writesPerSecond > 0 {
		limit = rate.Limit(writesPerSecond)
		burst = writesPerSecond
	}
	return &ThrottledStore{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// SaveResult waits for a write token, then forwards the artifact.
func (s *ThrottledStore) SaveResult(ctx context.Context, a hypothesis.Artifact) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return s.next.SaveResult(ctx, a)
}

// Close closes the downstream store.
func (s *ThrottledStore) Close() error {
	return s.next.Close()
}
