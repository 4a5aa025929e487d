package retrier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

const (
	minMaxAttempts = 1
	minBaseDelay   = time.Millisecond
	minFactor      = 1.0
	maxJitter      = 1.0
)

var (
	// ErrInvalidMaxAttempts is returned when the max attempts parameter is invalid.
	ErrInvalidMaxAttempts = errors.New("max attempts must be at least 1")
	// ErrInvalidBaseDelay is returned when the base delay parameter is invalid.
	ErrInvalidBaseDelay = errors.New("base delay must be at least 1ms")
	// ErrInvalidFactor is returned when the factor parameter is invalid.
	ErrInvalidFactor = errors.New("factor must be at least 1.0")
	// ErrInvalidJitter is returned when the jitter parameter is invalid.
	ErrInvalidJitter = errors.New("jitter must be between 0 and 1")
)

// Retrier executes a function with exponential backoff, retrying only
// errors that report themselves as temporary.
type Retrier struct {
	maxAttempts   int
	baseDelay     time.Duration
	maxDelay      time.Duration
	factor        float64
	jitter        float64
	TempErrorFunc func(error) bool // Custom temporary error function
}

// New creates a Retrier.
// Parameters:
// - maxAttempts: maximum number of attempts, including the first.
// - baseDelay: delay before the first retry.
// - maxDelay: cap on the computed delay.
// - factor: exponential growth factor.
// - jitter: randomness fraction [0,1] added to each delay.
func New(maxAttempts int, baseDelay, maxDelay time.Duration, factor, jitter float64) (*Retrier, error) {
	if maxAttempts < minMaxAttempts {
		return nil, ErrInvalidMaxAttempts
	}
	if baseDelay < minBaseDelay {
		return nil, ErrInvalidBaseDelay
	}
	if factor < minFactor {
		return nil, ErrInvalidFactor
	}
	if jitter < 0 || jitter > maxJitter {
		return nil, ErrInvalidJitter
	}

	return &Retrier{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
		factor:      factor,
		jitter:      jitter,
	}, nil
}

// Run executes fn, retrying temporary failures until maxAttempts is reached.
func (r *Retrier) Run(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		var isTemp bool
		if r.TempErrorFunc != nil {
			isTemp = r.TempErrorFunc(err)
		} else {
			isTemp = IsTemporary(err)
		}
		if !isTemp {
			// Non-temporary error, do not retry
			return err
		}

		if attempt == r.maxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.delay(attempt)):
		}
	}

	return fmt.Errorf("max retry attempts reached: %w", err)
}

// delay computes the backoff for the given attempt.
func (r *Retrier) delay(attempt int) time.Duration {
	d := float64(r.baseDelay) * math.Pow(r.factor, float64(attempt))
	if d > float64(r.maxDelay) {
		d = float64(r.maxDelay)
	}
	d += rand.Float64() * r.jitter * d
	return time.Duration(d)
}
