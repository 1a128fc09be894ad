package retry

import "time"

// Config controls a single executeWithRetry invocation. It is immutable for
// the duration of the call; call sites may override the executor default via
// [Options.Config].
type Config struct {
	// MaxRetries is the number of re-attempts after the initial try, so an
	// operation runs at most MaxRetries+1 times.
	MaxRetries int

	// BaseDelay seeds the exponential backoff sequence.
	BaseDelay time.Duration

	// MaxDelay caps every computed delay, including network scaling, and
	// bounds how long an attempt may block waiting for network recovery.
	MaxDelay time.Duration

	// BackoffMultiplier is the exponential growth factor between attempts.
	BackoffMultiplier float64

	// JitterFactor randomizes each delay by up to this fraction to avoid
	// synchronized retry storms across devices.
	JitterFactor float64

	// RetryableStatuses lists HTTP status codes that mark an error as
	// transient. Any 5xx status is retryable regardless of this list.
	RetryableStatuses []int

	// RetryableErrors lists lower-case substrings matched against error
	// text to recognize transient failures from non-HTTP sources.
	RetryableErrors []string

	// Timeout is the hard per-attempt deadline. Zero disables it.
	Timeout time.Duration

	// EnableNetworkCheck gates each attempt on the monitor reporting a
	// usable link, waiting up to MaxDelay for recovery.
	EnableNetworkCheck bool
}

// DefaultConfig returns the retry policy the engine ships with.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        3,
		BaseDelay:         time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFactor:      0.1,
		RetryableStatuses: []int{408, 429, 500, 502, 503, 504},
		RetryableErrors: []string{
			"network", "timeout", "connection", "unreachable", "temporarily",
		},
		Timeout: 30 * time.Second,
	}
}

// normalize fills zero fields from the default policy so partial overrides
// stay safe.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = def.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = def.BackoffMultiplier
	}
	if c.JitterFactor < 0 || c.JitterFactor > 1 {
		c.JitterFactor = def.JitterFactor
	}
	if c.RetryableStatuses == nil {
		c.RetryableStatuses = def.RetryableStatuses
	}
	if c.RetryableErrors == nil {
		c.RetryableErrors = def.RetryableErrors
	}
	return c
}
