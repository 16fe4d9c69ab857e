package retry_test

import (
	"context"
	"testing"
	"time"

	"github.com/habiliai/memoryd/errors"
	"github.com/habiliai/memoryd/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := retry.Do(t.Context(), retry.Policy{Attempts: 3, Backoff: time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.Mark(errors.New("503"), errors.ErrProvider)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsAfterAttempts(t *testing.T) {
	calls := 0
	err := retry.Do(t.Context(), retry.Policy{Attempts: 2, Backoff: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return errors.Mark(errors.New("connection refused"), errors.ErrStore)
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStore))
	assert.Equal(t, 2, calls)
}

func TestDoDoesNotRetryValidation(t *testing.T) {
	calls := 0
	err := retry.Do(t.Context(), retry.Policy{Attempts: 5}, func(ctx context.Context) error {
		calls++
		return errors.Validationf("empty text")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoAppliesPerAttemptTimeout(t *testing.T) {
	err := retry.Do(t.Context(), retry.Policy{Attempts: 1, Timeout: 10 * time.Millisecond}, func(ctx context.Context) error {
		<-ctx.Done()
		return errors.Mark(ctx.Err(), errors.ErrProvider)
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	calls := 0
	err := retry.Do(ctx, retry.Policy{Attempts: 10, Backoff: time.Hour}, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.Mark(errors.New("timeout"), errors.ErrProvider)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoReturnsPermanentCauseUnwrapped(t *testing.T) {
	cause := errors.Validationf("bad namespace %q", "x")
	err := retry.Do(t.Context(), retry.Policy{Attempts: 3, Backoff: time.Millisecond}, func(ctx context.Context) error {
		return cause
	})

	require.Error(t, err)
	assert.Same(t, cause, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestDoWaitsBetweenAttempts(t *testing.T) {
	var stamps []time.Time
	err := retry.Do(t.Context(), retry.Policy{Attempts: 3, Backoff: 20 * time.Millisecond}, func(ctx context.Context) error {
		stamps = append(stamps, time.Now())
		return errors.Mark(errors.New("busy"), errors.ErrStore)
	})

	require.Error(t, err)
	require.Len(t, stamps, 3)
	// randomization keeps each delay at or above half the nominal interval
	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 10*time.Millisecond)
	assert.GreaterOrEqual(t, stamps[2].Sub(stamps[1]), 20*time.Millisecond)
}

func TestDoWithoutAttemptsCallsOnce(t *testing.T) {
	calls := 0
	err := retry.Do(t.Context(), retry.Policy{}, func(ctx context.Context) error {
		calls++
		return errors.Mark(errors.New("busy"), errors.ErrStore)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
