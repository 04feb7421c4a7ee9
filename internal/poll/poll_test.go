package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUntilDone(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Until(context.Background(), time.Now().Add(time.Second), time.Millisecond, func(ctx context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestUntilDeadline(t *testing.T) {
	t.Parallel()

	calls := 0
	start := time.Now()
	err := Until(context.Background(), start.Add(20*time.Millisecond), 5*time.Millisecond, func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})
	assert.ErrorIs(t, err, ErrDeadline)
	assert.GreaterOrEqual(t, calls, 2)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestUntilPastDeadlineRunsOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Until(context.Background(), time.Now().Add(-time.Minute), time.Hour, func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})
	assert.ErrorIs(t, err, ErrDeadline)
	assert.Equal(t, 1, calls)
}

func TestUntilError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	err := Until(context.Background(), time.Now().Add(time.Second), time.Millisecond, func(ctx context.Context) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestUntilCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Until(ctx, time.Now().Add(time.Minute), time.Hour, func(ctx context.Context) (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
