package retrier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tempError struct{}

func (tempError) Error() string   { return "transient failure" }
func (tempError) Temporary() bool { return true }

func TestRunRetriesTemporaryErrors(t *testing.T) {
	r, err := New(3, time.Millisecond, 10*time.Millisecond, 2, 0)
	require.NoError(t, err)

	attempts := 0
	err = r.Run(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return tempError{}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRunDoesNotRetryPermanentErrors(t *testing.T) {
	r, err := New(3, time.Millisecond, 10*time.Millisecond, 2, 0)
	require.NoError(t, err)

	permanent := errors.New("permanent failure")
	attempts := 0
	err = r.Run(context.Background(), func() error {
		attempts++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}

func TestRunExhaustsAttempts(t *testing.T) {
	r, err := New(2, time.Millisecond, 10*time.Millisecond, 2, 0)
	require.NoError(t, err)

	attempts := 0
	err = r.Run(context.Background(), func() error {
		attempts++
		return tempError{}
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retry attempts reached")
	assert.Equal(t, 2, attempts)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	r, err := New(10, 50*time.Millisecond, time.Second, 2, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = r.Run(ctx, func() error {
		return tempError{}
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name        string
		maxAttempts int
		baseDelay   time.Duration
		factor      float64
		jitter      float64
		wantErr     error
	}{
		{"ZeroAttempts", 0, time.Millisecond, 2, 0, ErrInvalidMaxAttempts},
		{"TinyBaseDelay", 3, time.Microsecond, 2, 0, ErrInvalidBaseDelay},
		{"FactorBelowOne", 3, time.Millisecond, 0.5, 0, ErrInvalidFactor},
		{"JitterAboveOne", 3, time.Millisecond, 2, 1.5, ErrInvalidJitter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.maxAttempts, tt.baseDelay, time.Second, tt.factor, tt.jitter)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
