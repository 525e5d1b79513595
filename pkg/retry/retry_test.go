package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func fast(opts ...Option) []Option {
	return append([]Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond), WithJitter(0)}, opts...)
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	var retried []int
	err := Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	}, fast(WithMaxAttempts(5), WithOnRetry(func(attempt int, err error, _ time.Duration) {
		assert.ErrorIs(t, err, errFlaky)
		retried = append(retried, attempt)
	}))...)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	}, fast(WithMaxAttempts(3))...)

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errFlaky)
	}, fast(WithMaxAttempts(5))...)

	assert.ErrorIs(t, err, errFlaky)
	var permanent *PermanentError
	assert.False(t, errors.As(err, &permanent), "wrapper is stripped")
	assert.Equal(t, 1, calls)
	assert.NoError(t, Permanent(nil))
}

func TestDo_RetryIfFiltersErrors(t *testing.T) {
	other := errors.New("other")
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return other
	}, fast(WithMaxAttempts(5), WithRetryIf(func(err error) bool { return errors.Is(err, errFlaky) }))...)

	assert.ErrorIs(t, err, other)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errFlaky
	}, fast(WithMaxAttempts(5))...)

	assert.ErrorIs(t, err, errFlaky)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	v, err := DoWithData(context.Background(), New(fast()...), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errFlaky
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestDelay_CappedWithoutJitter(t *testing.T) {
	r := New(WithInitialDelay(100*time.Millisecond), WithMaxDelay(250*time.Millisecond), WithMultiplier(2), WithJitter(0))
	assert.Equal(t, 100*time.Millisecond, r.delay(1))
	assert.Equal(t, 200*time.Millisecond, r.delay(2))
	assert.Equal(t, 250*time.Millisecond, r.delay(3))
}

func TestPresets(t *testing.T) {
	contended := func(err error) bool { return errors.Is(err, errFlaky) }

	lock := LockRetrier(contended)
	assert.Greater(t, lock.config.MaxAttempts, 1000)
	assert.True(t, lock.config.RetryIf(errFlaky))

	var hook bool
	platform := PlatformRetrier(contended, WithMaxAttempts(2), WithOnRetry(func(int, error, time.Duration) { hook = true }))
	assert.Equal(t, 2, platform.config.MaxAttempts, "caller options win")
	assert.Equal(t, 200*time.Millisecond, platform.config.InitialDelay)
	platform.config.OnRetry(1, errFlaky, 0)
	assert.True(t, hook)
}
