package knowledge

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIOptions configures one OpenAI-backed capability.
type OpenAIOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Retry   RetryPolicy
	Breaker *CircuitBreaker
}

// NewOpenAIClient builds a client, pointing it at baseURL when set.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(strings.TrimSpace(apiKey))
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return openai.NewClientWithConfig(cfg)
}

// upstream wraps every call with the per-attempt timeout, retry, breaker and metrics.
type upstream struct {
	service string
	model   string
	timeout time.Duration
	retry   RetryPolicy
	breaker *CircuitBreaker
	logger  *zap.Logger
}

func (u upstream) call(ctx context.Context, fn func(ctx context.Context) error) error {
	started := time.Now()
	err := u.retry.Do(ctx, func(ctx context.Context) error {
		return u.breaker.Call(func() error {
			attemptCtx := ctx
			if u.timeout > 0 {
				var cancel context.CancelFunc
				attemptCtx, cancel = context.WithTimeout(ctx, u.timeout)
				defer cancel()
			}
			err := fn(attemptCtx)
			if err != nil {
				u.logger.Debug("Upstream attempt failed",
					zap.String("service", u.service),
					zap.String("model", u.model),
					zap.Error(err))
			}
			return err
		}, countsTowardBreaker)
	})

	aiRequestsTotal.WithLabelValues(u.service, u.model, outcomeLabel(err)).Inc()
	aiRequestDuration.WithLabelValues(u.service).Observe(time.Since(started).Seconds())
	return err
}

func countsTowardBreaker(err error) bool {
	return IsRetryable(err) || stderrors.Is(err, context.DeadlineExceeded)
}
