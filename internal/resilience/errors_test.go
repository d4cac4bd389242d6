package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"transient error", NewTransientError(errors.New("503"), 503), true},
		{"wrapped transient", fmt.Errorf("call failed: %w", NewTransientError(errors.New("503"), 503)), true},
		{"rate limit error", NewRateLimitError(errors.New("429"), time.Second), true},
		{"connection reset errno", syscall.ECONNRESET, true},
		{"connection refused errno", syscall.ECONNREFUSED, true},
		{"reset by string", errors.New("read tcp: connection reset by peer"), true},
		{"dns by string", errors.New("dial tcp: lookup x: no such host"), true},
		{"io timeout by string", errors.New("read tcp: i/o timeout"), true},
		{"permission denied", errors.New("permission denied"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(NewRateLimitError(errors.New("429"), 0)))
	assert.True(t, IsRateLimited(fmt.Errorf("wrapped: %w", NewRateLimitError(errors.New("429"), 0))))
	assert.False(t, IsRateLimited(errors.New("429")))
	assert.False(t, IsRateLimited(nil))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 429} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}

func TestErrorUnwrap(t *testing.T) {
	base := errors.New("base")
	assert.ErrorIs(t, NewTransientError(base, 500), base)
	assert.ErrorIs(t, NewRateLimitError(base, 0), base)
}
