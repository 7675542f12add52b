package knowledge

import (
	"context"
	stderrors "errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/aihub/jobboard-ai/internal/errors"
)

// CompletionRequest is one system/user exchange with a chat model.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
}

// Generator answers a prompt with a chat completion.
type Generator interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// NoopGenerator stands in when no provider is configured.
type NoopGenerator struct{}

func (NoopGenerator) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return "", errors.NewGenerativeUnavailableError().WithCause(stderrors.New("generative provider not configured"))
}

// OpenAIGenerator calls the OpenAI chat completions API.
type OpenAIGenerator struct {
	client       *openai.Client
	defaultModel string
	upstream     upstream
}

// NewOpenAIGenerator returns a NoopGenerator when opts carries no API key.
// opts.Model is used for requests that do not name a model.
func NewOpenAIGenerator(opts OpenAIOptions, logger *zap.Logger) Generator {
	if strings.TrimSpace(opts.APIKey) == "" {
		return NoopGenerator{}
	}
	if opts.Model == "" {
		opts.Model = openai.GPT4Turbo
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenAIGenerator{
		client:       NewOpenAIClient(opts.APIKey, opts.BaseURL),
		defaultModel: opts.Model,
		upstream: upstream{
			service: "generative",
			timeout: opts.Timeout,
			retry:   opts.Retry,
			breaker: opts.Breaker,
			logger:  logger.Named("generator"),
		},
	}
}

func (g *OpenAIGenerator) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = g.defaultModel
	}

	call := g.upstream
	call.model = model

	var resp openai.ChatCompletionResponse
	err := call.call(ctx, func(ctx context.Context) error {
		var err error
		resp, err = g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
			},
		})
		return err
	})
	if err != nil {
		return "", errors.NewGenerativeUnavailableError().WithCause(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.NewGenerativeUnavailableError().WithCause(stderrors.New("completion response has no choices"))
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
