package persistence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tathienbao/options-lab/internal/hypothesis"
)

type recordingStore struct {
	mu       sync.Mutex
	saved    []hypothesis.Artifact
	saveErr  error
	closeErr error
	closed   bool
}

func (s *recordingStore) SaveResult(_ context.Context, a hypothesis.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, a)
	return nil
}

func (s *recordingStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.closeErr
}

func (s *recordingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFanout_WritesEverywhere(t *testing.T) {
	primary, a, b := &recordingStore{}, &recordingStore{}, &recordingStore{}
	f := NewFanout(discardLogger(), primary, a, b)

	require.NoError(t, f.SaveResult(context.Background(), testArtifact("momentum", "20241231_093000", 1)))

	assert.Equal(t, 1, primary.count())
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
}

func TestFanout_SecondaryFailureIsLogged(t *testing.T) {
	primary := &recordingStore{}
	broken := &recordingStore{saveErr: errors.New("connection refused")}
	healthy := &recordingStore{}
	f := NewFanout(discardLogger(), primary, broken, healthy)

	var failed []int
	f.OnSecondaryFailure(func(store int, err error) {
		failed = append(failed, store)
	})

	err := f.SaveResult(context.Background(), testArtifact("momentum", "20241231_093000", 1))
	require.NoError(t, err)

	assert.Equal(t, []int{0}, failed)
	assert.Equal(t, 1, primary.count())
	assert.Equal(t, 1, healthy.count())
}

func TestFanout_PrimaryFailure(t *testing.T) {
	primary := &recordingStore{saveErr: errors.New("disk full")}
	secondary := &recordingStore{}
	f := NewFanout(nil, primary, secondary)

	err := f.SaveResult(context.Background(), testArtifact("momentum", "20241231_093000", 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, primary.saveErr)
	assert.Equal(t, 0, secondary.count())
}

func TestFanout_CloseJoinsErrors(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	primary := &recordingStore{closeErr: errA}
	s1 := &recordingStore{}
	s2 := &recordingStore{closeErr: errB}

	err := NewFanout(nil, primary, s1, s2).Close()
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.True(t, s1.closed)
}

func TestThrottledStore_Forwards(t *testing.T) {
	next := &recordingStore{}
	s := NewThrottledStore(next, 0)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveResult(context.Background(), testArtifact("momentum", "20241231_093000", 1)))
	}
	assert.Equal(t, 5, next.count())

	require.NoError(t, s.Close())
	assert.True(t, next.closed)
}

func TestThrottledStore_Paces(t *testing.T) {
	next := &recordingStore{}
	s := NewThrottledStore(next, 20)

	start := time.Now()
	// burst of 20, then 10 more at 20/s
	for i := 0; i < 30; i++ {
		require.NoError(t, s.SaveResult(context.Background(), testArtifact("momentum", "20241231_093000", 1)))
	}
	elapsed := time.Since(start)

	assert.Equal(t, 30, next.count())
	assert.GreaterOrEqual(t, elapsed, 400*time.Millisecond)
}

func TestThrottledStore_ContextDeadline(t *testing.T) {
	next := &recordingStore{}
	s := NewThrottledStore(next, 1)
	ctx := context.Background()

	require.NoError(t, s.SaveResult(ctx, testArtifact("momentum", "20241231_093000", 1)))

	// The next token is a second away.
	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	err := s.SaveResult(short, testArtifact("momentum", "20241231_093001", 1))
	assert.Error(t, err)
	assert.Equal(t, 1, next.count())
}
