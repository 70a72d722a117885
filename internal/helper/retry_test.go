package helper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetry(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name      string
		failures  int
		count     int
		permanent bool
		wantCalls int
		wantErr   error
	}{
		{name: "succeeds first time", failures: 0, count: 3, wantCalls: 1},
		{name: "succeeds after retries", failures: 2, count: 3, wantCalls: 3},
		{name: "retries exhausted", failures: 10, count: 2, wantCalls: 3, wantErr: errBoom},
		{name: "no retries configured", failures: 10, count: 0, wantCalls: 1, wantErr: errBoom},
		{name: "permanent stops immediately", failures: 10, count: 5, permanent: true, wantCalls: 1, wantErr: errBoom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			effector := func(context.Context) error {
				calls++
				if calls <= tt.failures {
					if tt.permanent {
						return Permanent(errBoom)
					}
					return errBoom
				}
				return nil
			}

			err := Retry(effector, RetryConfig{Count: tt.count, Delay: time.Millisecond})(context.Background())

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				var perm *permanentError
				assert.False(t, errors.As(err, &perm), "permanent wrapper leaked")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	effector := func(context.Context) error {
		calls++
		cancel()
		return errors.New("fail")
	}

	err := Retry(effector, RetryConfig{Count: 5, Delay: time.Hour})(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestPermanent_Nil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}

func TestGetExpBackoff(t *testing.T) {
	tests := []struct {
		iteration int
		want      time.Duration
	}{
		{0, 10 * time.Millisecond},
		{1, 10 * time.Millisecond},
		{2, 20 * time.Millisecond},
		{3, 40 * time.Millisecond},
		{5, 160 * time.Millisecond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, getExpBackoff(10*time.Millisecond, tt.iteration), "iteration %d", tt.iteration)
	}
}
