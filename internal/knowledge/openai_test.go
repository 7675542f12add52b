package knowledge

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aihub/jobboard-ai/internal/errors"
)

// fakeOpenAI serves /v1/embeddings and /v1/chat/completions.
type fakeOpenAI struct {
	server   *httptest.Server
	hits     atomic.Int32
	failures atomic.Int32 // leading requests answered with status
	status   atomic.Int32
	vector   []float32

	mu       sync.Mutex
	reply    string
	lastBody map[string]interface{}
}

func (f *fakeOpenAI) setReply(reply string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply = reply
}

func (f *fakeOpenAI) body() map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastBody
}

func newFakeOpenAI(t *testing.T) *fakeOpenAI {
	f := &fakeOpenAI{vector: []float32{0.1, 0.2, 0.3}, reply: "ok"}
	f.status.Store(http.StatusServiceUnavailable)
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		body, _ := io.ReadAll(r.Body)
		decoded := map[string]interface{}{}
		_ = json.Unmarshal(body, &decoded)
		f.mu.Lock()
		f.lastBody = decoded
		reply := f.reply
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if f.failures.Load() > 0 {
			f.failures.Add(-1)
			w.WriteHeader(int(f.status.Load()))
			_, _ = w.Write([]byte(`{"error":{"message":"upstream failure","type":"server_error"}}`))
			return
		}

		switch r.URL.Path {
		case "/v1/embeddings":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"object": "list",
				"model":  "text-embedding-3-small",
				"data": []map[string]interface{}{
					{"object": "embedding", "index": 0, "embedding": f.vector},
				},
			})
		case "/v1/chat/completions":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"id":     "chatcmpl-1",
				"object": "chat.completion",
				"model":  "gpt-4o",
				"choices": []map[string]interface{}{
					{"index": 0, "finish_reason": "stop", "message": map[string]string{"role": "assistant", "content": reply}},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeOpenAI) options(model string) OpenAIOptions {
	return OpenAIOptions{
		APIKey:  "sk-test",
		BaseURL: f.server.URL + "/v1",
		Model:   model,
		Timeout: 2 * time.Second,
		Retry:   RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond},
	}
}

func noSleep(t *testing.T) *[]time.Duration {
	var delays []time.Duration
	previous := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	t.Cleanup(func() { sleep = previous })
	return &delays
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	fake := newFakeOpenAI(t)
	embedder := NewOpenAIEmbedder(fake.options("text-embedding-3-small"), zap.NewNop())

	vec, err := embedder.Embed(context.Background(), "senior backend engineer")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 1536, embedder.Dimensions())
	assert.True(t, embedder.Ready())
	assert.Equal(t, "text-embedding-3-small", fake.body()["model"])
}

func TestOpenAIEmbedder_RejectsBlankTextWithoutCalling(t *testing.T) {
	fake := newFakeOpenAI(t)
	embedder := NewOpenAIEmbedder(fake.options(""), zap.NewNop())

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := embedder.Embed(context.Background(), text)
		assert.True(t, stderrors.Is(err, errors.ErrEmptyInput))
	}
	assert.EqualValues(t, 0, fake.hits.Load())
}

func TestOpenAIEmbedder_RetriesTransientFailures(t *testing.T) {
	delays := noSleep(t)
	fake := newFakeOpenAI(t)
	fake.failures.Store(2)
	embedder := NewOpenAIEmbedder(fake.options(""), zap.NewNop())

	_, err := embedder.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.EqualValues(t, 3, fake.hits.Load())
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, *delays)
}

func TestOpenAIEmbedder_GivesUpAfterRetryBudget(t *testing.T) {
	noSleep(t)
	fake := newFakeOpenAI(t)
	fake.status.Store(http.StatusTooManyRequests)
	fake.failures.Store(10)
	embedder := NewOpenAIEmbedder(fake.options(""), zap.NewNop())

	_, err := embedder.Embed(context.Background(), "text")
	assert.True(t, stderrors.Is(err, errors.ErrEmbeddingUnavailable))
	assert.EqualValues(t, 3, fake.hits.Load())
}

func TestOpenAIEmbedder_DoesNotRetryClientErrors(t *testing.T) {
	noSleep(t)
	fake := newFakeOpenAI(t)
	fake.status.Store(http.StatusBadRequest)
	fake.failures.Store(1)
	embedder := NewOpenAIEmbedder(fake.options(""), zap.NewNop())

	_, err := embedder.Embed(context.Background(), "text")
	assert.True(t, stderrors.Is(err, errors.ErrEmbeddingUnavailable))
	assert.EqualValues(t, 1, fake.hits.Load())
}

func TestOpenAIEmbedder_OpenCircuitSkipsUpstream(t *testing.T) {
	noSleep(t)
	fake := newFakeOpenAI(t)
	fake.failures.Store(100)
	opts := fake.options("")
	opts.Retry = RetryPolicy{}
	opts.Breaker = NewCircuitBreaker("embedding", 2, 1, time.Hour)
	embedder := NewOpenAIEmbedder(opts, zap.NewNop())

	for i := 0; i < 2; i++ {
		_, err := embedder.Embed(context.Background(), "text")
		require.Error(t, err)
	}
	assert.Equal(t, StateOpen, opts.Breaker.State())

	_, err := embedder.Embed(context.Background(), "text")
	assert.True(t, stderrors.Is(err, errors.ErrEmbeddingUnavailable))
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.EqualValues(t, 2, fake.hits.Load())
}

func TestNewOpenAIEmbedder_WithoutKeyIsNoop(t *testing.T) {
	embedder := NewOpenAIEmbedder(OpenAIOptions{}, nil)
	assert.False(t, embedder.Ready())

	_, err := embedder.Embed(context.Background(), "text")
	assert.True(t, stderrors.Is(err, errors.ErrEmbeddingUnavailable))

	_, err = embedder.Embed(context.Background(), " ")
	assert.True(t, stderrors.Is(err, errors.ErrEmptyInput))
}

func TestOpenAIGenerator_Complete(t *testing.T) {
	fake := newFakeOpenAI(t)
	fake.setReply("  Score: 82 - strong match \n")
	generator := NewOpenAIGenerator(fake.options("gpt-4-turbo"), zap.NewNop())

	answer, err := generator.Complete(context.Background(), CompletionRequest{
		Model:        "gpt-4o",
		SystemPrompt: "system",
		UserPrompt:   "user",
	})
	require.NoError(t, err)
	assert.Equal(t, "Score: 82 - strong match", answer)
	assert.Equal(t, "gpt-4o", fake.body()["model"])

	messages := fake.body()["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
	assert.Equal(t, "user", messages[1].(map[string]interface{})["content"])
}

func TestOpenAIGenerator_DefaultModelAndFailure(t *testing.T) {
	noSleep(t)
	fake := newFakeOpenAI(t)
	generator := NewOpenAIGenerator(fake.options("gpt-4-turbo"), zap.NewNop())

	_, err := generator.Complete(context.Background(), CompletionRequest{UserPrompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4-turbo", fake.body()["model"])

	fake.failures.Store(10)
	_, err = generator.Complete(context.Background(), CompletionRequest{UserPrompt: "hi"})
	assert.True(t, stderrors.Is(err, errors.ErrGenerativeUnavailable))
}

func TestNoopGenerator(t *testing.T) {
	generator := NewOpenAIGenerator(OpenAIOptions{}, nil)
	_, err := generator.Complete(context.Background(), CompletionRequest{})
	assert.True(t, stderrors.Is(err, errors.ErrGenerativeUnavailable))
}
