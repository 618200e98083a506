package warehouse

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadBatches_Basic verifies rows are grouped into batches and the total
// equals the sum of all successful copyFn returns.
func TestLoadBatches_Basic(t *testing.T) {
	t.Parallel()

	in := make(chan []any, 8)
	for i := 0; i < 7; i++ {
		in <- []any{i, "x"}
	}
	close(in)

	var calls int32
	var sizes []int
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		atomic.AddInt32(&calls, 1)
		sizes = append(sizes, len(rows))
		return int64(len(rows)), nil
	}

	total, err := LoadBatches(context.Background(), zerolog.Nop(), []string{"c1", "c2"}, in, 3, copyFn)
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []int{3, 3, 1}, sizes)
}

// TestLoadBatches_ErrorPropagation ensures the first copy error is returned
// and processing stops after that batch.
func TestLoadBatches_ErrorPropagation(t *testing.T) {
	t.Parallel()

	in := make(chan []any, 5)
	for i := 0; i < 5; i++ {
		in <- []any{i}
	}
	close(in)

	wantErr := errors.New("copy failed")
	var batches int
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		batches++
		if batches == 2 {
			return 0, wantErr
		}
		return int64(len(rows)), nil
	}

	total, err := LoadBatches(context.Background(), zerolog.Nop(), []string{"c"}, in, 2, copyFn)
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, 2, batches)
}

func TestLoadBatches_BadArgs(t *testing.T) {
	t.Parallel()

	_, err := LoadBatches(context.Background(), zerolog.Nop(), nil, nil, 0, nil)
	assert.Error(t, err)
	_, err = LoadBatches(context.Background(), zerolog.Nop(), nil, nil, 1, nil)
	assert.Error(t, err)
}

// TestLoadBatches_ContextCancel checks the loader exits on cancellation.
func TestLoadBatches_ContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan []any)
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		return int64(len(rows)), nil
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := LoadBatches(ctx, zerolog.Nop(), []string{"c"}, in, 2, copyFn)
		errCh <- err
	}()
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("LoadBatches did not return after context cancel")
	}
}
