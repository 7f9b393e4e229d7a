package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fast() []Option {
	return []Option{
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(2 * time.Millisecond),
	}
}

func TestWithExponentialBackoff_SucceedsFirstTry(t *testing.T) {
	t.Parallel()
	calls := 0
	err := WithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		return nil
	}, fast()...)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithExponentialBackoff_SucceedsAfterRetries(t *testing.T) {
	t.Parallel()
	calls := 0
	err := WithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, fast()...)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithExponentialBackoff_Exhausted(t *testing.T) {
	t.Parallel()
	calls := 0
	sentinel := errors.New("still there")
	err := WithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		return sentinel
	}, append(fast(), WithMaxRetries(2))...)

	require.ErrorIs(t, err, ErrExhausted)
	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestWithExponentialBackoff_FatalStops(t *testing.T) {
	t.Parallel()
	calls := 0
	sentinel := errors.New("boom")
	err := WithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		return Fatal(sentinel)
	}, fast()...)

	require.ErrorIs(t, err, sentinel)
	assert.True(t, IsFatal(err))
	assert.Equal(t, 1, calls)
}

func TestWithExponentialBackoff_ContextCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WithExponentialBackoff(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("not yet")
	}, WithInitialDelay(time.Hour))

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestWithExponentialBackoff_DelaysGrowAndCap(t *testing.T) {
	t.Parallel()
	var delays []time.Duration
	_ = WithExponentialBackoff(context.Background(), func(context.Context) error {
		return errors.New("never")
	},
		WithMaxRetries(4),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(4*time.Millisecond),
		WithMultiplier(2),
		WithOnRetry(func(_ int, d time.Duration, _ error) {
			delays = append(delays, d)
		}),
	)

	assert.Equal(t, []time.Duration{
		time.Millisecond,
		2 * time.Millisecond,
		4 * time.Millisecond,
		4 * time.Millisecond,
	}, delays)
}

func TestFatal_Nil(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Fatal(nil))
	assert.False(t, IsFatal(errors.New("plain")))
}
