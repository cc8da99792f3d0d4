package throttle

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultRefillRate    = 1.0 / 2000 // one token per 2s, in tokens per millisecond
	defaultDelay         = time.Millisecond
	defaultCapacity      = 1.0
	defaultCost          = 1.0
	defaultMaxQueueDepth = 2000
	defaultWindow        = 60 * time.Second
)

// Algorithm selects the admission budget.
type Algorithm int

const (
	// LeakyBucket spends tokens that refill continuously up to a capacity.
	LeakyBucket Algorithm = iota
	// RollingWindow bounds the total cost admitted in the trailing window.
	RollingWindow
)

// String returns the string representation.
func (a Algorithm) String() string {
	switch a {
	case LeakyBucket:
		return "leaky_bucket"
	case RollingWindow:
		return "rolling_window"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Algorithm) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// IsValid checks if the Algorithm value is valid.
func (a Algorithm) IsValid() bool {
	return a == LeakyBucket || a == RollingWindow
}

// ParseAlgorithm parses "leaky_bucket" or "rolling_window".
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "leaky_bucket", "leaky", "bucket":
		return LeakyBucket, nil
	case "rolling_window", "rolling", "window":
		return RollingWindow, nil
	default:
		return 0, errors.Errorf("unknown rate limit algorithm %q", s)
	}
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithRefillRate sets the number of tokens regained per millisecond.
func WithRefillRate(perMs float64) Option {
	return func(l *Limiter) {
		l.refillRate = perMs
	}
}

// WithRateLimit sets the refill rate from a venue's minimum spacing between
// unit-cost requests.
func WithRateLimit(every time.Duration) Option {
	return func(l *Limiter) {
		if every > 0 {
			l.refillRate = float64(time.Millisecond) / float64(every)
		}
	}
}

// WithDelay sets how long the loop sleeps before retrying a starved head.
func WithDelay(d time.Duration) Option {
	return func(l *Limiter) {
		l.delay = d
	}
}

// WithCapacity sets the token ceiling of the bucket.
func WithCapacity(c float64) Option {
	return func(l *Limiter) {
		l.capacity = c
	}
}

// WithTokens sets the initial token balance.
func WithTokens(t float64) Option {
	return func(l *Limiter) {
		l.tokens = t
		l.tokensSet = true
	}
}

// WithDefaultCost sets the cost used by Wait.
func WithDefaultCost(c float64) Option {
	return func(l *Limiter) {
		l.defaultCost = c
	}
}

// WithMaxQueueDepth sets how many tickets may wait at once.
func WithMaxQueueDepth(n int) Option {
	return func(l *Limiter) {
		l.maxQueueDepth = n
	}
}

// WithAlgorithm selects the admission budget.
func WithAlgorithm(a Algorithm) Option {
	return func(l *Limiter) {
		l.algorithm = a
	}
}

// WithWindow sets the rolling window length.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		l.window = d
	}
}

// WithMaxWeight sets the total cost allowed inside the rolling window.
// When unset it is derived from the window length and the refill rate.
func WithMaxWeight(w float64) Option {
	return func(l *Limiter) {
		l.maxWeight = w
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithObserver registers a hook that is called after every admission.
func WithObserver(o Observer) Option {
	return func(l *Limiter) {
		l.observer = o
	}
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(l *Limiter) {
		if c != nil {
			l.clock = c
		}
	}
}
