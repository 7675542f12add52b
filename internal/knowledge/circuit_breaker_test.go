package knowledge

import (
	"context"
	stderrors "errors"
	"net"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = stderrors.New("upstream down")

func always(error) bool { return true }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 1, time.Hour)
	calls := 0
	failing := func() error { calls++; return errUpstream }

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Call(failing, always), errUpstream)
	}
	assert.Equal(t, StateOpen, cb.State())

	assert.ErrorIs(t, cb.Call(failing, always), ErrCircuitOpen)
	assert.Equal(t, 3, calls)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, 1, time.Hour)

	_ = cb.Call(func() error { return errUpstream }, always)
	require.NoError(t, cb.Call(func() error { return nil }, always))
	_ = cb.Call(func() error { return errUpstream }, always)

	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 1, 10*time.Millisecond)

	_ = cb.Call(func() error { return errUpstream }, always)
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, cb.Call(func() error { return nil }, always))
	assert.Equal(t, StateClosed, cb.State())

	_ = cb.Call(func() error { return errUpstream }, always)
	time.Sleep(20 * time.Millisecond)
	_ = cb.Call(func() error { return errUpstream }, always)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_IgnoresUncountedFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 1, time.Hour)
	never := func(error) bool { return false }

	_ = cb.Call(func() error { return errUpstream }, never)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_DisabledAndNil(t *testing.T) {
	var nilBreaker *CircuitBreaker
	assert.ErrorIs(t, nilBreaker.Call(func() error { return errUpstream }, always), errUpstream)

	disabled := NewCircuitBreaker("off", 0, 1, time.Hour)
	for i := 0; i < 5; i++ {
		_ = disabled.Call(func() error { return errUpstream }, always)
	}
	assert.Equal(t, StateClosed, disabled.State())
	assert.Equal(t, "closed", disabled.Stats()["state"])
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&openai.APIError{HTTPStatusCode: 429}))
	assert.True(t, IsRetryable(&openai.APIError{HTTPStatusCode: 502}))
	assert.True(t, IsRetryable(&openai.RequestError{HTTPStatusCode: 500, Err: errUpstream}))
	assert.True(t, IsRetryable(&net.OpError{Op: "dial", Err: errUpstream}))

	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(&openai.APIError{HTTPStatusCode: 401}))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(errUpstream))
}

func TestRetryPolicy_StopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := RetryPolicy{MaxRetries: 5, BaseDelay: time.Hour}.Do(ctx, func(context.Context) error {
		attempts++
		return &openai.APIError{HTTPStatusCode: 503}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}
