package knowledge

import (
	"context"
	stderrors "errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/aihub/jobboard-ai/internal/errors"
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Ready() bool
}

// NoopEmbedder stands in when no provider is configured.
type NoopEmbedder struct{}

func (n *NoopEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.NewEmptyInputError("text")
	}
	return nil, errors.NewEmbeddingUnavailableError().WithCause(stderrors.New("embedding provider not configured"))
}

func (n *NoopEmbedder) Dimensions() int {
	return 0
}

func (n *NoopEmbedder) Ready() bool {
	return false
}

var embeddingDimensions = map[string]int{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
}

// EmbeddingDimensions returns the vector size of a known model, or 1536.
func EmbeddingDimensions(model string) int {
	if dims, ok := embeddingDimensions[model]; ok {
		return dims
	}
	return 1536
}

// OpenAIEmbedder calls the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	upstream   upstream
}

// NewOpenAIEmbedder returns a NoopEmbedder when opts carries no API key.
func NewOpenAIEmbedder(opts OpenAIOptions, logger *zap.Logger) Embedder {
	if strings.TrimSpace(opts.APIKey) == "" {
		return &NoopEmbedder{}
	}
	if opts.Model == "" {
		opts.Model = "text-embedding-3-small"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenAIEmbedder{
		client:     NewOpenAIClient(opts.APIKey, opts.BaseURL),
		model:      opts.Model,
		dimensions: EmbeddingDimensions(opts.Model),
		upstream: upstream{
			service: "embedding",
			model:   opts.Model,
			timeout: opts.Timeout,
			retry:   opts.Retry,
			breaker: opts.Breaker,
			logger:  logger.Named("embedder"),
		},
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.NewEmptyInputError("text")
	}

	var resp openai.EmbeddingResponse
	err := e.upstream.call(ctx, func(ctx context.Context) error {
		var err error
		resp, err = e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(e.model),
			Input: []string{text},
		})
		return err
	})
	if err != nil {
		return nil, errors.NewEmbeddingUnavailableError().WithCause(err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.NewEmbeddingUnavailableError().WithCause(stderrors.New("embedding response empty"))
	}

	embedding := resp.Data[0].Embedding
	result := make([]float32, len(embedding))
	copy(result, embedding)
	return result, nil
}

func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *OpenAIEmbedder) Ready() bool {
	return e.client != nil
}
