package errors_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicestream/merger/pkg/merger/errors"
)

func TestCategorize(t *testing.T) {
	t.Run("not found is transient", func(t *testing.T) {
		err := &errors.NotFoundError{Kind: "client", Key: 7}
		assert.Equal(t, errors.CategoryTransient, errors.Categorize(err))
		assert.True(t, errors.IsRetryable(err))
	})

	t.Run("publish failure is transient", func(t *testing.T) {
		err := &errors.PublishError{Topic: "Invoice", Err: stderrors.New("broker down")}
		assert.Equal(t, errors.CategoryTransient, errors.Categorize(err))
	})

	t.Run("decode failure is permanent", func(t *testing.T) {
		err := &errors.DecodeError{Topic: "Client", Err: stderrors.New("bad json")}
		assert.Equal(t, errors.CategoryPermanent, errors.Categorize(err))
		assert.False(t, errors.IsRetryable(err))
	})

	t.Run("wrapped errors categorize through Unwrap", func(t *testing.T) {
		inner := &errors.NotFoundError{Kind: "invoice", Key: 3}
		wrapped := errors.Transient(inner, "aggregating product")
		assert.Equal(t, errors.CategoryTransient, errors.Categorize(wrapped))
	})

	t.Run("unknown errors are permanent", func(t *testing.T) {
		assert.Equal(t, errors.CategoryPermanent, errors.Categorize(stderrors.New("mystery")))
	})
}

func TestCategorizedError_Error(t *testing.T) {
	err := &errors.CategorizedError{
		Err:      stderrors.New("boom"),
		Category: errors.CategoryTransient,
		Retries:  3,
		Context:  "looking up client",
	}
	assert.Contains(t, err.Error(), "looking up client")
	assert.Contains(t, err.Error(), "transient")
	assert.Contains(t, err.Error(), "attempts: 3")
}

func fastRetry(attempts int) errors.RetryConfig {
	return errors.NewRetryConfig(
		errors.WithMaxAttempts(attempts),
		errors.WithInitialBackoff(time.Millisecond),
		errors.WithMaxBackoff(5*time.Millisecond),
		errors.WithJitter(0),
	)
}

func TestWithRetry_SucceedsFirstAttempt(t *testing.T) {
	res := errors.WithRetry(fastRetry(5), func() (int, error) {
		return 42, nil
	})
	require.NoError(t, res.Err)
	assert.Equal(t, 42, res.Value)
	assert.Equal(t, 1, res.Attempts)
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	res := errors.WithRetry(fastRetry(5), func() (string, error) {
		calls++
		if calls < 3 {
			return "", &errors.NotFoundError{Kind: "client", Key: 1}
		}
		return "found", nil
	})
	require.NoError(t, res.Err)
	assert.Equal(t, "found", res.Value)
	assert.Equal(t, 3, res.Attempts)
}

func TestWithRetry_ExhaustsBudget(t *testing.T) {
	calls := 0
	res := errors.WithRetry(fastRetry(4), func() (struct{}, error) {
		calls++
		return struct{}{}, &errors.NotFoundError{Kind: "invoice", Key: 9}
	})
	require.Error(t, res.Err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, 4, res.Attempts)

	var catErr *errors.CategorizedError
	require.ErrorAs(t, res.Err, &catErr)
	assert.Equal(t, "max retries exceeded", catErr.Context)

	var nfErr *errors.NotFoundError
	assert.ErrorAs(t, res.Err, &nfErr)
}

func TestWithRetry_PermanentErrorStopsImmediately(t *testing.T) {
	calls := 0
	res := errors.WithRetry(fastRetry(5), func() (struct{}, error) {
		calls++
		return struct{}{}, &errors.DecodeError{Topic: "Client", Err: stderrors.New("bad")}
	})
	require.Error(t, res.Err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_NotifyObservesEachBackoff(t *testing.T) {
	var notified []time.Duration
	cfg := fastRetry(3)
	cfg.Notify = func(_ error, next time.Duration) {
		notified = append(notified, next)
	}

	res := errors.WithRetry(cfg, func() (struct{}, error) {
		return struct{}{}, &errors.NotFoundError{Kind: "client", Key: 5}
	})
	require.Error(t, res.Err)

	// No notification after the final attempt.
	require.Len(t, notified, 2)
	assert.Equal(t, time.Millisecond, notified[0])
	assert.Equal(t, 2*time.Millisecond, notified[1])
}

func TestWithRetryContext_CancelledBeforeAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	res := errors.WithRetryContext(ctx, fastRetry(5), func(context.Context) (struct{}, error) {
		calls++
		return struct{}{}, nil
	})
	require.Error(t, res.Err)
	assert.Equal(t, 0, calls)
}

func TestWithRetryContext_CancelledDuringBackoff(t *testing.T) {
	cfg := errors.NewRetryConfig(
		errors.WithMaxAttempts(3),
		errors.WithInitialBackoff(time.Minute),
		errors.WithJitter(0),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	res := errors.WithRetryContext(ctx, cfg, func(context.Context) (struct{}, error) {
		return struct{}{}, &errors.NotFoundError{Kind: "client", Key: 1}
	})
	require.Error(t, res.Err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNewRetryConfig_Options(t *testing.T) {
	cfg := errors.NewRetryConfig(
		errors.WithMaxAttempts(7),
		errors.WithInitialBackoff(2*time.Second),
		errors.WithMaxBackoff(time.Minute),
		errors.WithBackoffFactor(3),
		errors.WithJitter(0.5),
	)
	assert.Equal(t, 7, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.InitialBackoff)
	assert.Equal(t, time.Minute, cfg.MaxBackoff)
	assert.Equal(t, 3.0, cfg.BackoffFactor)
	assert.Equal(t, 0.5, cfg.Jitter)
}

func TestWithRetry_CustomRetryableFunc(t *testing.T) {
	calls := 0
	cfg := fastRetry(5)
	cfg.RetryableFunc = func(error) bool { return false }

	res := errors.WithRetry(cfg, func() (struct{}, error) {
		calls++
		return struct{}{}, &errors.NotFoundError{Kind: "client", Key: 2}
	})
	require.Error(t, res.Err)
	assert.Equal(t, 1, calls)
}
