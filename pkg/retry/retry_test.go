package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts uint64) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

func TestPolicy_Do_SucceedsFirstTry(t *testing.T) {
	calls := 0

	err := fastPolicy(3).Do(t.Context(), func() error {
		calls++

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_Do_RetriesUntilSuccess(t *testing.T) {
	calls := 0

	err := fastPolicy(3).Do(t.Context(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicy_Do_ExhaustsAttempts(t *testing.T) {
	calls := 0
	failure := errors.New("still broken")

	err := fastPolicy(3).Do(t.Context(), func() error {
		calls++

		return failure
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, 3, calls)
}

func TestPolicy_Do_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	fatal := errors.New("bad request")

	policy := fastPolicy(5)
	policy.Retryable = func(err error) bool {
		return !errors.Is(err, fatal)
	}

	err := policy.Do(t.Context(), func() error {
		calls++

		return fatal
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestPolicy_Do_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	calls := 0

	err := fastPolicy(5).Do(ctx, func() error {
		calls++

		return errors.New("transient")
	})

	require.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}

func TestPolicy_Do_ZeroAttemptsTreatedAsOne(t *testing.T) {
	calls := 0

	err := Policy{InitialInterval: time.Millisecond}.Do(t.Context(), func() error {
		calls++

		return errors.New("boom")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
