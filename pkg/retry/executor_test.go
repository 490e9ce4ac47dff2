package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adsync/internal/domain"
	"adsync/pkg/logger"
	"adsync/pkg/metrics"
)

// one registry per test binary: promauto panics on duplicate registration
var (
	testMetrics = metrics.New()
	testLogger  = logger.New("error")
)

func rateLimitErr() error {
	return &domain.RemoteError{Operation: "test", HTTPStatus: 400, Code: 17, Message: "User request limit reached"}
}

// recordingSleep captures every backoff delay without waiting
type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestExecuteSucceedsFirstTry(t *testing.T) {
	sleeper := &recordingSleep{}
	executor := NewExecutor(time.Second, time.Minute, 3, testLogger, testMetrics, WithSleep(sleeper.sleep))

	calls := 0
	err := executor.Execute(context.Background(), "op", func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.delays)
}

func TestExecuteRetriesRateLimitWithExponentialBackoff(t *testing.T) {
	sleeper := &recordingSleep{}
	executor := NewExecutor(time.Second, time.Minute, 3, testLogger, testMetrics, WithSleep(sleeper.sleep))

	calls := 0
	err := executor.Execute(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return rateLimitErr()
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.delays)
}

func TestExecuteBackoffIsCappedAtMaxDelay(t *testing.T) {
	sleeper := &recordingSleep{}
	executor := NewExecutor(time.Second, 3*time.Second, 4, testLogger, testMetrics, WithSleep(sleeper.sleep))

	err := executor.Execute(context.Background(), "op", func() error {
		return rateLimitErr()
	})

	require.Error(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}, sleeper.delays)
}

func TestExecuteExhaustionReturnsTypedError(t *testing.T) {
	sleeper := &recordingSleep{}
	executor := NewExecutor(time.Second, time.Minute, 2, testLogger, testMetrics, WithSleep(sleeper.sleep))

	calls := 0
	err := executor.Execute(context.Background(), "fetch_insights", func() error {
		calls++
		return rateLimitErr()
	})

	var exhausted *domain.RateLimitedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "fetch_insights", exhausted.Operation)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 3, calls)

	// the last underlying error stays reachable for classification
	var remote *domain.RemoteError
	assert.ErrorAs(t, err, &remote)
	assert.Equal(t, 17, remote.Code)
}

func TestExecuteNonRetryableErrorPropagatesImmediately(t *testing.T) {
	sleeper := &recordingSleep{}
	executor := NewExecutor(time.Second, time.Minute, 5, testLogger, testMetrics, WithSleep(sleeper.sleep))

	hardErr := errors.New("invalid credentials")
	calls := 0
	err := executor.Execute(context.Background(), "op", func() error {
		calls++
		return hardErr
	})

	assert.Same(t, hardErr, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.delays)
}

func TestExecuteSleepInterruptionStopsRetrying(t *testing.T) {
	canceled := errors.New("context canceled")
	executor := NewExecutor(time.Second, time.Minute, 5, testLogger, testMetrics,
		WithSleep(func(ctx context.Context, d time.Duration) error { return canceled }))

	calls := 0
	err := executor.Execute(context.Background(), "op", func() error {
		calls++
		return rateLimitErr()
	})

	assert.Same(t, canceled, err)
	assert.Equal(t, 1, calls)
}

func TestExecuteStateTransitions(t *testing.T) {
	var states []State
	sleeper := &recordingSleep{}
	executor := NewExecutor(time.Second, time.Minute, 1, testLogger, testMetrics,
		WithSleep(sleeper.sleep),
		WithTransition(func(s State) { states = append(states, s) }))

	calls := 0
	err := executor.Execute(context.Background(), "op", func() error {
		calls++
		if calls == 1 {
			return rateLimitErr()
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []State{StateIdle, StateAttempting, StateBackoff, StateAttempting, StateSuccess}, states)
}

func TestExecuteExhaustionStateTransitions(t *testing.T) {
	var states []State
	executor := NewExecutor(time.Second, time.Minute, 1, testLogger, testMetrics,
		WithSleep(func(ctx context.Context, d time.Duration) error { return nil }),
		WithTransition(func(s State) { states = append(states, s) }))

	err := executor.Execute(context.Background(), "op", func() error {
		return rateLimitErr()
	})

	require.Error(t, err)
	assert.Equal(t, []State{StateIdle, StateAttempting, StateBackoff, StateAttempting, StateExhausted}, states)
}

func TestWithRetryableOverridesClassifier(t *testing.T) {
	sleeper := &recordingSleep{}
	executor := NewExecutor(time.Second, time.Minute, 2, testLogger, testMetrics,
		WithSleep(sleeper.sleep),
		WithRetryable(func(err error) bool { return true }))

	calls := 0
	err := executor.Execute(context.Background(), "op", func() error {
		calls++
		return errors.New("flaky")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls, "custom classifier retries everything")
}

func TestRateLimitClassifier(t *testing.T) {
	assert.True(t, domain.IsRateLimitSignal(rateLimitErr()))
	assert.True(t, domain.IsRateLimitSignal(&domain.RemoteError{HTTPStatus: 429}))
	assert.True(t, domain.IsRateLimitSignal(&domain.RemoteError{Code: 80004}))
	assert.False(t, domain.IsRateLimitSignal(&domain.RemoteError{HTTPStatus: 400, Code: 100}))
	assert.False(t, domain.IsRateLimitSignal(errors.New("boom")))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "attempting", StateAttempting.String())
	assert.Equal(t, "backoff", StateBackoff.String())
	assert.Equal(t, "success", StateSuccess.String())
	assert.Equal(t, "exhausted", StateExhausted.String())
	assert.Equal(t, "unknown", State(42).String())
}
