package provider

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinhthangx01/facebook-bot-multi/internal/config"
	"github.com/dinhthangx01/facebook-bot-multi/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func init() {
	backoff = func(int) time.Duration { return 0 }
}

func newTestGemini(url string, retries int) *Gemini {
	return NewGemini(GeminiConfig{APIBase: url, MaxRetries: retries, Timeout: 5 * time.Second, Logger: testLogger()})
}

// --- Gemini ---

func TestGemini_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "page-key", r.Header.Get("x-goog-api-key"))
		var body geminiRequest
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) && assert.Len(t, body.Contents, 1) {
			assert.Equal(t, "hello prompt", body.Contents[0].Parts[0].Text)
		}
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"  Hi "},{"text":"there"}]}}]}`)
	}))
	defer srv.Close()

	text, err := newTestGemini(srv.URL, 0).Generate(context.Background(), domain.GenerateRequest{
		Credential: "page-key",
		Prompt:     "hello prompt",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", text)
}

func TestGemini_ModelOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/models/gemini-pro:")
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)
	}))
	defer srv.Close()

	_, err := newTestGemini(srv.URL, 0).Generate(context.Background(), domain.GenerateRequest{
		Credential: "k", Prompt: "p", Model: "gemini-pro",
	})
	require.NoError(t, err)
}

func TestGemini_EmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	_, err := newTestGemini(srv.URL, 0).Generate(context.Background(), domain.GenerateRequest{Credential: "k", Prompt: "p"})
	assert.ErrorIs(t, err, ErrEmptyGeneration)
}

func TestGemini_BlockedPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	}))
	defer srv.Close()

	_, err := newTestGemini(srv.URL, 0).Generate(context.Background(), domain.GenerateRequest{Credential: "k", Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestGemini_MissingCredential(t *testing.T) {
	_, err := newTestGemini("http://127.0.0.1:1", 0).Generate(context.Background(), domain.GenerateRequest{Prompt: "p"})
	assert.Error(t, err)
}

func TestGemini_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"message":"API key not valid"}}`)
	}))
	defer srv.Close()

	_, err := newTestGemini(srv.URL, 3).Generate(context.Background(), domain.GenerateRequest{Credential: "bad", Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), calls.Load())
}

// --- Retry ---

func TestRetry_RecoversAfterServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"second try"}]}}]}`)
	}))
	defer srv.Close()

	text, err := newTestGemini(srv.URL, 1).Generate(context.Background(), domain.GenerateRequest{Credential: "k", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "second try", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetry_GivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestGemini(srv.URL, 2).Generate(context.Background(), domain.GenerateRequest{Credential: "k", Prompt: "p"})
	var re *retryableError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusTooManyRequests, re.statusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetry_StopsOnCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	old := backoff
	backoff = func(int) time.Duration { return time.Hour }
	defer func() { backoff = old }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestGemini(srv.URL, 3).Generate(ctx, domain.GenerateRequest{Credential: "k", Prompt: "p"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// --- OpenAI-compatible ---

func TestOpenAI_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-page", r.Header.Get("Authorization"))
		var body oaiRequest
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) && assert.NotEmpty(t, body.Messages) {
			assert.Equal(t, "gpt-test", body.Model)
			assert.Equal(t, "prompt", body.Messages[0].Content)
		}
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"answer"}}]}`)
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIBase: srv.URL + "/", Model: "gpt-test", Logger: testLogger()})
	text, err := o.Generate(context.Background(), domain.GenerateRequest{Credential: "sk-page", Prompt: "prompt"})
	require.NoError(t, err)
	assert.Equal(t, "answer", text)
}

func TestOpenAI_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIBase: srv.URL, Logger: testLogger()})
	_, err := o.Generate(context.Background(), domain.GenerateRequest{Credential: "k", Prompt: "p"})
	assert.ErrorIs(t, err, ErrEmptyGeneration)
}

// --- Limiter ---

type countingGenerator struct {
	calls atomic.Int32
}

func (c *countingGenerator) Name() string { return "counting" }

func (c *countingGenerator) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	c.calls.Add(1)
	return "ok", nil
}

func TestLimited_Disabled(t *testing.T) {
	next := &countingGenerator{}
	assert.Same(t, next, NewLimited(next, 0, 0, 0))
}

func TestLimited_PerCredential(t *testing.T) {
	next := &countingGenerator{}
	g := NewLimited(next, 1, 1, 0)

	_, err := g.Generate(context.Background(), domain.GenerateRequest{Credential: "a"})
	require.NoError(t, err)
	// A second page has its own bucket.
	_, err = g.Generate(context.Background(), domain.GenerateRequest{Credential: "b"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Generate(ctx, domain.GenerateRequest{Credential: "a"})
	assert.Error(t, err, "exhausted credential must be limited")
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestLimited_WaitIsBoundedWithoutDeadline(t *testing.T) {
	next := &countingGenerator{}
	g := NewLimited(next, 1, 1, 50*time.Millisecond)

	_, err := g.Generate(context.Background(), domain.GenerateRequest{Credential: "a"})
	require.NoError(t, err)

	// The next token is a minute away; a context with no deadline must not
	// hold the caller that long.
	start := time.Now()
	_, err = g.Generate(context.WithoutCancel(context.Background()), domain.GenerateRequest{Credential: "a"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(1), next.calls.Load())
}

// --- Factory ---

func TestFactory_Build(t *testing.T) {
	f := NewFactory(testLogger())

	g, err := f.Build(config.GenerationConfig{Backend: "gemini", TimeoutSeconds: 5})
	require.NoError(t, err)
	assert.Equal(t, "gemini", g.Name())

	g, err = f.Build(config.GenerationConfig{Backend: "openai", TimeoutSeconds: 5, RateLimitPerMinute: 30, RateLimitMaxWaitSeconds: 2})
	require.NoError(t, err)
	lim, ok := g.(*Limited)
	require.True(t, ok, "expected rate limited generator, got %T", g)
	assert.Equal(t, 2*time.Second, lim.maxWait)
	assert.Equal(t, "openai", g.Name())
}

func TestFactory_UnknownBackend(t *testing.T) {
	_, err := NewFactory(testLogger()).Build(config.GenerationConfig{Backend: "nope"})
	assert.Error(t, err)
}

func TestFactory_Register(t *testing.T) {
	f := NewFactory(testLogger())
	f.Register("fake", func(config.GenerationConfig, *slog.Logger) domain.Generator { return &countingGenerator{} })

	assert.Equal(t, []string{"fake", "gemini", "openai"}, f.Backends())
	g, err := f.Build(config.GenerationConfig{Backend: "fake"})
	require.NoError(t, err)
	assert.Equal(t, "counting", g.Name())
}
