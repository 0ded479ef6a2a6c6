package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ollagate/ollagate/internal/adapter/auth"
	"github.com/ollagate/ollagate/internal/adapter/balancer"
	"github.com/ollagate/ollagate/internal/adapter/cache"
	"github.com/ollagate/ollagate/internal/adapter/registry"
	"github.com/ollagate/ollagate/internal/adapter/security"
	"github.com/ollagate/ollagate/internal/adapter/stats"
	"github.com/ollagate/ollagate/internal/adapter/translator/openai"
	"github.com/ollagate/ollagate/internal/app/middleware"
	"github.com/ollagate/ollagate/internal/config"
	"github.com/ollagate/ollagate/internal/logger"
	"github.com/ollagate/ollagate/theme"
)

func testLogger() *logger.StyledLogger {
	return logger.NewStyledLogger(slog.New(slog.DiscardHandler), theme.Default())
}

type memStore struct{}

func (memStore) Load(name string, into any) (bool, error) { return false, nil }
func (memStore) Schedule(name string, produce func() any) {}
func (memStore) Flush()                                   {}

type testEnv struct {
	handler  *Handler
	keys     *registry.KeyRegistry
	channels *registry.ChannelRegistry
	tokens   *auth.TokenRegistry
	cache    *cache.MemoryCache
}

// newTestEnv wires the full request path over real registries, with one
// credential per backend URL.
func newTestEnv(t *testing.T, backendURLs ...string) *testEnv {
	t.Helper()
	lg := testLogger()

	keys, err := registry.NewKeyRegistry(memStore{}, lg)
	require.NoError(t, err)
	for i, u := range backendURLs {
		_, err := keys.AddKey(fmt.Sprintf("%s|sk-test%02d-aaaaaaaaaa", u, i), "")
		require.NoError(t, err)
	}

	channels, err := registry.NewChannelRegistry(memStore{}, lg)
	require.NoError(t, err)
	tokens, err := auth.NewTokenRegistry(memStore{}, lg)
	require.NoError(t, err)
	collector, err := stats.NewCollector(memStore{}, 30, lg)
	require.NoError(t, err)

	mc := cache.NewMemoryCache(time.Minute, 100)
	t.Cleanup(mc.Stop)

	h := New(balancer.NewPoolSelector(keys, channels), keys, channels, tokens, collector, mc, Config{
		ConnectTimeout:  5 * time.Second,
		ResponseTimeout: 5 * time.Second,
		MaxRetries:      2,
	}, lg)

	return &testEnv{handler: h, keys: keys, channels: channels, tokens: tokens, cache: mc}
}

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, r)
	return rec
}

func decodeErrType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Type
}

func TestChatCompletions(t *testing.T) {
	var gotPath string
	var gotAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")

		var up openai.OllamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&up))
		assert.Equal(t, "llama3", up.Model)
		require.Len(t, up.Messages, 1)
		assert.Equal(t, "hello", up.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"model":"llama3","message":{"role":"assistant","content":"hi there"},"done":true,"done_reason":"stop","prompt_eval_count":4,"eval_count":2}`)
	}))
	defer upstream.Close()

	env := newTestEnv(t, upstream.URL)

	rec := postJSON(t, env.handler.ChatCompletions, "/v1/chat/completions",
		`{"model":"llama3","messages":[{"role":"user","content":"hello"}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/api/chat", gotPath)
	assert.Equal(t, "Bearer sk-test00-aaaaaaaaaa", gotAuth)

	var out openai.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "chat.completion", out.Object)
	require.Len(t, out.Choices, 1)
	assert.Equal(t, "hi there", out.Choices[0].Message.Content)
	require.NotNil(t, out.Usage)
	assert.Equal(t, 6, out.Usage.TotalTokens)

	// success lands on the credential that served the request
	summary := env.keys.GetSummary()
	assert.Equal(t, 1, summary.Healthy)
}

func TestChatCompletionsFailsOverOn401(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer bad.Close()

	var goodHits int
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		goodHits++
		fmt.Fprint(w, `{"model":"llama3","message":{"role":"assistant","content":"ok"},"done":true,"done_reason":"stop"}`)
	}))
	defer good.Close()

	env := newTestEnv(t, bad.URL, good.URL)

	rec := postJSON(t, env.handler.ChatCompletions, "/v1/chat/completions",
		`{"model":"llama3","messages":[{"role":"user","content":"hello"}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, goodHits)

	var out openai.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Choices, 1)
	assert.Equal(t, "ok", out.Choices[0].Message.Content)
}

func TestChatCompletionsUpstreamErrorSurfaces(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer upstream.Close()

	env := newTestEnv(t, upstream.URL)

	rec := postJSON(t, env.handler.ChatCompletions, "/v1/chat/completions",
		`{"model":"llama3","messages":[{"role":"user","content":"hello"}]}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "upstream_error", decodeErrType(t, rec))
}

func TestChatCompletionsInvalidJSON(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	rec := postJSON(t, env.handler.ChatCompletions, "/v1/chat/completions", `{nope`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request_error", decodeErrType(t, rec))
}

func TestChatCompletionsMissingFields(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	rec := postJSON(t, env.handler.ChatCompletions, "/v1/chat/completions", `{"model":"llama3"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, env.handler.ChatCompletions, "/v1/chat/completions",
		`{"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatCompletionsNoBackends(t *testing.T) {
	env := newTestEnv(t)

	rec := postJSON(t, env.handler.ChatCompletions, "/v1/chat/completions",
		`{"model":"llama3","messages":[{"role":"user","content":"hello"}]}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "upstream_error", decodeErrType(t, rec))
}

func TestChatCompletionsTokenModelScope(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	tok, err := env.tokens.CreateToken(auth.CreateOptions{Name: "scoped", AllowedModels: []string{"llama*"}})
	require.NoError(t, err)

	lg := testLogger()
	access, err := security.NewAccessController(memStore{}, config.AccessConfig{}, lg)
	require.NoError(t, err)
	limiter := security.NewRateLimiter(config.RateLimitConfig{}, lg)
	t.Cleanup(limiter.Stop)
	chain := middleware.NewChain(access, limiter, env.tokens, "", false, nil, lg)
	wrapped := chain.Wrap(http.HandlerFunc(env.handler.ChatCompletions))

	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"model":"mistral","messages":[{"role":"user","content":"hello"}]}`))
	r.Header.Set("Authorization", "Bearer "+tok.Token)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "permission_error", decodeErrType(t, rec))
}
