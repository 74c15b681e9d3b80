package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tathienbao/options-lab/internal/hypothesis"
)

// Fanout writes every artifact to a primary store and any number of
// secondary stores. Only a primary failure is returned; secondary
// failures are logged and counted.
type Fanout struct {
	primary     Store
	secondaries []Store
	logger      *slog.Logger
	onFailure   func(store int, err error)
}

// NewFanout creates a fan-out store.
func NewFanout(logger *slog.Logger, primary Store, secondaries ...Store) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{
		primary:     primary,
		secondaries: secondaries,
		logger:      logger,
	}
}

// OnSecondaryFailure sets a hook called with the secondary's index.
func (f *Fanout) OnSecondaryFailure(fn func(store int, err error)) {
	f.onFailure = fn
}

// SaveResult writes to the primary, then to every secondary.
func (f *Fanout) SaveResult(ctx context.Context, a hypothesis.Artifact) error {
	if err := f.primary.SaveResult(ctx, a); err != nil {
		return fmt.Errorf("primary store: %w", err)
	}

	for i, s := range f.secondaries {
		if err := s.SaveResult(ctx, a); err != nil {
			f.logger.Warn("secondary result store failed",
				"store", i,
				"name", a.TestInfo.Name,
				"error", err,
			)
			if f.onFailure != nil {
				f.onFailure(i, err)
			}
		}
	}
	return nil
}

// Close closes every store and joins their errors.
func (f *Fanout) Close() error {
	errs := []error{f.primary.Close()}
	for _, s := range f.secondaries {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
