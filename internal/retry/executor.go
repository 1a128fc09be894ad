package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/okolovich/offsync/internal/logger"
	"github.com/okolovich/offsync/models"
)

// networkPollInterval is how often a gated attempt re-checks the monitor
// while waiting for the link to recover.
const networkPollInterval = 2 * time.Second

// ConditionSource exposes the monitor's cached network condition. A nil
// condition means connectivity is unknown and must be assumed suitable.
type ConditionSource interface {
	Condition() *models.NetworkCondition
}

// Operation is a zero-argument unit of work producing a T. The context
// passed in carries the per-attempt deadline; well-behaved operations stop
// when it is done.
type Operation[T any] func(ctx context.Context) (T, error)

// Options tunes a single Do invocation.
type Options struct {
	// Config overrides the executor-wide policy for this call.
	Config *Config

	// Key is the caller-supplied idempotency key. While an operation with
	// the same key is in flight, a second call fails fast with
	// ErrAlreadyInProgress. Empty disables deduplication.
	Key string

	// OnRetry is invoked before each re-attempt with the 1-based number of
	// the attempt that just failed and its error.
	OnRetry func(attempt int, err error)

	// OnMaxRetriesExceeded is invoked once when the attempt budget is
	// exhausted on a retryable error.
	OnMaxRetriesExceeded func(err error)

	// ShouldRetry, when set, can veto a retry the classifier would allow.
	ShouldRetry func(err error, attempt int) bool
}

// Result reports the outcome of a Do invocation.
type Result[T any] struct {
	Success       bool
	Data          T
	Err           error
	Attempts      int
	TotalDuration time.Duration
	NetworkInfo   *models.NetworkCondition
}

// Executor runs operations with timeout, classification-driven retry,
// exponential backoff with jitter, network-aware delay scaling, and
// idempotency-key deduplication. It is safe for concurrent use; independent
// operations run in parallel, operations sharing a key do not.
type Executor struct {
	cfg        Config
	conditions ConditionSource
	logger     *logger.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New constructs an Executor with the given default policy. conditions may
// be nil, which disables network gating and delay scaling regardless of
// Config.EnableNetworkCheck.
func New(cfg Config, conditions ConditionSource, log *logger.Logger) *Executor {
	if log == nil {
		log = logger.Nop()
	}
	return &Executor{
		cfg:        cfg.normalize(),
		conditions: conditions,
		logger:     log,
		inflight:   make(map[string]struct{}),
	}
}

// Do executes op under the executor's retry policy and returns a Result.
// The guarantee: op runs between 1 and MaxRetries+1 times, never more.
// Cancellation via ctx aborts immediately with ErrCancelled and is not
// counted as a failure.
func Do[T any](ctx context.Context, ex *Executor, op Operation[T], opts Options) Result[T] {
	start := time.Now()
	cfg := ex.cfg
	if opts.Config != nil {
		cfg = opts.Config.normalize()
	}

	res := Result[T]{}
	finish := func() Result[T] {
		res.TotalDuration = time.Since(start)
		res.NetworkInfo = ex.condition()
		return res
	}

	if opts.Key != "" {
		if !ex.acquire(opts.Key) {
			res.Err = fmt.Errorf("%w: key %q", ErrAlreadyInProgress, opts.Key)
			return finish()
		}
		defer ex.release(opts.Key)
	}

	var lastErr error
	exhausted := false

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			res.Attempts = attempt
			res.Err = fmt.Errorf("%w: %w", ErrCancelled, err)
			return finish()
		}

		if cfg.EnableNetworkCheck && ex.conditions != nil {
			if err := ex.waitForNetwork(ctx, cfg.MaxDelay); err != nil {
				res.Attempts = attempt
				res.Err = err
				return finish()
			}
		}

		data, err := runWithTimeout(ctx, cfg.Timeout, op)
		if err == nil {
			res.Success = true
			res.Data = data
			res.Attempts = attempt + 1
			return finish()
		}
		if errors.Is(err, ErrCancelled) {
			res.Attempts = attempt
			res.Err = err
			return finish()
		}

		lastErr = err
		res.Attempts = attempt + 1

		if !isRetryable(cfg, err) {
			break
		}
		if opts.ShouldRetry != nil && !opts.ShouldRetry(err, attempt) {
			break
		}
		if attempt == cfg.MaxRetries {
			exhausted = true
			break
		}

		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, err)
		}

		delay := ex.Delay(cfg, attempt)
		ex.logger.Debug().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Err(err).
			Msg("retrying operation")

		select {
		case <-ctx.Done():
			res.Err = fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
			return finish()
		case <-time.After(delay):
		}
	}

	if exhausted && opts.OnMaxRetriesExceeded != nil {
		opts.OnMaxRetriesExceeded(lastErr)
	}

	res.Err = lastErr
	return finish()
}

// Delay computes the backoff delay for a completed 0-based attempt:
// base * multiplier^attempt, randomized upward by the jitter factor, scaled
// for degraded network conditions, and capped at MaxDelay.
func (ex *Executor) Delay(cfg Config, attempt int) time.Duration {
	d := float64(cfg.BaseDelay) * math.Pow(cfg.BackoffMultiplier, float64(attempt))
	d *= 1 + cfg.JitterFactor*rand.Float64()

	if cond := ex.condition(); cond != nil {
		switch cond.Strength {
		case models.SignalPoor:
			d *= 2
		case models.SignalFair:
			d *= 1.5
		}
	}

	if max := float64(cfg.MaxDelay); d > max {
		d = max
	}
	return time.Duration(d)
}

// waitForNetwork blocks until the monitor reports a usable link, polling
// every networkPollInterval, for at most maxWait. An unknown condition
// counts as usable. Expiry of maxWait does not fail the attempt; the
// operation proceeds and its own error handling takes over.
func (ex *Executor) waitForNetwork(ctx context.Context, maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)
	for {
		cond := ex.condition()
		if cond == nil || cond.Suitable() {
			return nil
		}
		if time.Now().After(deadline) {
			ex.logger.Warn().Msg("network still unsuitable after max wait, attempting anyway")
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		case <-time.After(networkPollInterval):
		}
	}
}

func (ex *Executor) condition() *models.NetworkCondition {
	if ex.conditions == nil {
		return nil
	}
	return ex.conditions.Condition()
}

func (ex *Executor) acquire(key string) bool {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if _, busy := ex.inflight[key]; busy {
		return false
	}
	ex.inflight[key] = struct{}{}
	return true
}

func (ex *Executor) release(key string) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	delete(ex.inflight, key)
}

type outcome[T any] struct {
	data T
	err  error
}

// runWithTimeout races op against the per-attempt deadline. On expiry the
// attempt fails with ErrTimeout even if op is still running; op receives the
// deadline through its context so it can stop early.
func runWithTimeout[T any](ctx context.Context, timeout time.Duration, op Operation[T]) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan outcome[T], 1)
	go func() {
		data, err := op(attemptCtx)
		ch <- outcome[T]{data: data, err: err}
	}()

	select {
	case out := <-ch:
		return out.data, out.err
	case <-attemptCtx.Done():
		var zero T
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
		return zero, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}

// isRetryable classifies an error as transient using the status-code list
// (any 5xx counts) or a token match against the error text.
func isRetryable(cfg Config, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) {
		return true
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		if code >= 500 && code < 600 {
			return true
		}
		for _, s := range cfg.RetryableStatuses {
			if code == s {
				return true
			}
		}
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, token := range cfg.RetryableErrors {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}
