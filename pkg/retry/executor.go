package retry

import (
	"context"
	"time"

	"adsync/internal/domain"
	"adsync/pkg/logger"
	"adsync/pkg/metrics"
)

// State is one step of the executor's walk for a single operation:
// Idle -> Attempting -> Backoff -> ... -> Success or Exhausted.
type State int

const (
	StateIdle State = iota
	StateAttempting
	StateBackoff
	StateSuccess
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttempting:
		return "attempting"
	case StateBackoff:
		return "backoff"
	case StateSuccess:
		return "success"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// SleepFunc waits for d or until ctx is done. Injected so tests run without
// wall-clock delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Executor wraps remote calls with exponential backoff on rate-limit-class
// errors. Blocking the caller through the backoff is intentional: the
// platform enforces a per-account quota that serialization respects better
// than concurrency.
type Executor struct {
	baseDelay  time.Duration
	maxDelay   time.Duration
	maxRetries int
	retryable  func(error) bool
	sleep      SleepFunc
	transition func(State)
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

type Option func(*Executor)

// WithSleep replaces the real sleep, for tests.
func WithSleep(fn SleepFunc) Option {
	return func(e *Executor) { e.sleep = fn }
}

// WithRetryable replaces the rate-limit classifier.
func WithRetryable(fn func(error) bool) Option {
	return func(e *Executor) { e.retryable = fn }
}

// WithTransition observes every state change, for tests.
func WithTransition(fn func(State)) Option {
	return func(e *Executor) { e.transition = fn }
}

func NewExecutor(baseDelay, maxDelay time.Duration, maxRetries int, log *logger.Logger, m *metrics.Metrics, opts ...Option) *Executor {
	e := &Executor{
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		maxRetries: maxRetries,
		retryable:  domain.IsRateLimitSignal,
		sleep:      defaultSleep,
		logger:     log,
		metrics:    m,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) enter(s State) {
	if e.transition != nil {
		e.transition(s)
	}
}

// backoffFor doubles the base delay per prior attempt, capped at maxDelay.
func (e *Executor) backoffFor(attempt int) time.Duration {
	delay := e.baseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= e.maxDelay {
			return e.maxDelay
		}
	}
	return delay
}

// Execute runs op, retrying rate-limit-class failures with exponential
// backoff up to the retry ceiling. Non-rate-limit errors propagate
// immediately. Exhaustion returns a typed *domain.RateLimitedError so the
// caller can skip the unit of work and continue the run.
func (e *Executor) Execute(ctx context.Context, operation string, op func() error) error {
	e.enter(StateIdle)
	var lastErr error

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		e.enter(StateAttempting)
		err := op()
		if err == nil {
			e.enter(StateSuccess)
			return nil
		}
		lastErr = err

		if !e.retryable(err) {
			return err
		}

		e.metrics.RecordRetryAttempt(operation)

		if attempt == e.maxRetries {
			break
		}

		e.enter(StateBackoff)
		delay := e.backoffFor(attempt)
		e.logger.WithFields(map[string]any{
			"operation": operation,
			"attempt":   attempt + 1,
			"max":       e.maxRetries,
			"backoff":   delay.String(),
		}).Warn("Rate limited, backing off")

		if serr := e.sleep(ctx, delay); serr != nil {
			return serr
		}
	}

	e.enter(StateExhausted)
	e.metrics.RecordRetryExhausted(operation)
	return &domain.RateLimitedError{
		Operation: operation,
		Attempts:  e.maxRetries + 1,
		Err:       lastErr,
	}
}
