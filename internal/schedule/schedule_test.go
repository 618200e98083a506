package schedule

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imisexport/internal/apperr"
)

func newScheduler(t *testing.T, spec string, job Job) (*Scheduler, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "imisexport.lock")
	s, err := New(spec, path, job)
	require.NoError(t, err)
	s.Logger = zerolog.Nop()
	return s, path
}

func TestNewRejectsBadSpec(t *testing.T) {
	t.Parallel()

	_, err := New("every day at noon", "/tmp/x.lock", nil)
	assert.True(t, apperr.Is(err, apperr.KindConfig))

	_, err = New("@daily", "", nil)
	assert.True(t, apperr.Is(err, apperr.KindConfig))
}

func TestNext(t *testing.T) {
	t.Parallel()

	s, _ := newScheduler(t, "30 2 * * *", nil)
	from := time.Date(2025, 6, 15, 10, 0, 0, 0, time.Local)
	assert.Equal(t, time.Date(2025, 6, 16, 2, 30, 0, 0, time.Local), s.Next(from))
}

func TestRunOnce(t *testing.T) {
	t.Parallel()

	var calls int
	s, _ := newScheduler(t, "@daily", func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, s.RunOnce(context.Background()))
	require.NoError(t, s.RunOnce(context.Background()), "lock is released after a run")
	assert.Equal(t, 2, calls)
}

func TestRunOncePropagatesJobError(t *testing.T) {
	t.Parallel()

	boom := errors.New("warehouse unreachable")
	s, path := newScheduler(t, "@daily", func(context.Context) error { return boom })
	assert.ErrorIs(t, s.RunOnce(context.Background()), boom)

	other := flock.New(path)
	ok, err := other.TryLock()
	require.NoError(t, err)
	assert.True(t, ok, "lock is released after a failed run")
	require.NoError(t, other.Unlock())
}

func TestRunOnceBusy(t *testing.T) {
	t.Parallel()

	var called bool
	s, path := newScheduler(t, "@daily", func(context.Context) error {
		called = true
		return nil
	})

	holder := flock.New(path)
	ok, err := holder.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer holder.Unlock()

	assert.ErrorIs(t, s.RunOnce(context.Background()), ErrBusy)
	assert.False(t, called)
}

func TestRunFiresUntilCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	s, _ := newScheduler(t, "@every 1s", func(context.Context) error {
		if runs.Add(1) == 1 {
			cancel()
		}
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, int32(1), runs.Load())
}
