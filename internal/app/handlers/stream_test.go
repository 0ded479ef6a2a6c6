package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ollagate/ollagate/internal/adapter/translator/openai"
)

func sseFrames(t *testing.T, body string) []string {
	t.Helper()
	frames := make([]string, 0)
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		require.True(t, strings.HasPrefix(block, "data: "), "unexpected frame %q", block)
		frames = append(frames, strings.TrimPrefix(block, "data: "))
	}
	return frames
}

func TestChatCompletionsStreaming(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher := w.(http.Flusher)
		lines := []string{
			`{"model":"llama3","message":{"role":"assistant","content":"Hel"},"done":false}`,
			`not json at all`,
			`{"model":"llama3","message":{"role":"assistant","content":"lo"},"done":false}`,
			`{"model":"llama3","message":{"role":"assistant","content":"!"},"done":false}`,
			``,
			`{"model":"llama3","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}`,
		}
		for _, line := range lines {
			fmt.Fprintln(w, line)
			flusher.Flush()
		}
	}))
	defer upstream.Close()

	env := newTestEnv(t, upstream.URL)

	rec := postJSON(t, env.handler.ChatCompletions, "/v1/chat/completions",
		`{"model":"llama3","messages":[{"role":"user","content":"hello"}],"stream":true}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	frames := sseFrames(t, rec.Body.String())
	// 3 content chunks + the terminal chunk + [DONE]; the malformed and blank
	// lines are dropped
	require.Len(t, frames, 5)
	assert.Equal(t, "[DONE]", frames[len(frames)-1])
	assert.Equal(t, 1, strings.Count(rec.Body.String(), "data: [DONE]"))

	var first openai.ChatResponse
	require.NoError(t, json.Unmarshal([]byte(frames[0]), &first))
	assert.Equal(t, "chat.completion.chunk", first.Object)
	require.Len(t, first.Choices, 1)
	assert.Equal(t, "assistant", first.Choices[0].Delta.Role)
	assert.Equal(t, "Hel", first.Choices[0].Delta.Content)
	assert.Nil(t, first.Choices[0].FinishReason)

	var second openai.ChatResponse
	require.NoError(t, json.Unmarshal([]byte(frames[1]), &second))
	assert.Empty(t, second.Choices[0].Delta.Role)
	assert.Equal(t, first.ID, second.ID)

	var last openai.ChatResponse
	require.NoError(t, json.Unmarshal([]byte(frames[3]), &last))
	require.NotNil(t, last.Choices[0].FinishReason)
	assert.Equal(t, "stop", *last.Choices[0].FinishReason)
	require.NotNil(t, last.Usage)
	// no upstream counters, so completion falls back to the chunk count
	assert.Equal(t, 0, last.Usage.PromptTokens)
	assert.Equal(t, 3, last.Usage.CompletionTokens)
	assert.Equal(t, 3, last.Usage.TotalTokens)
}

func TestChatCompletionsStreamingUpstreamCounters(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"model":"llama3","message":{"role":"assistant","content":"hi"},"done":false}`)
		fmt.Fprintln(w, `{"model":"llama3","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":7,"eval_count":12}`)
	}))
	defer upstream.Close()

	env := newTestEnv(t, upstream.URL)

	rec := postJSON(t, env.handler.ChatCompletions, "/v1/chat/completions",
		`{"model":"llama3","messages":[{"role":"user","content":"hello"}],"stream":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	frames := sseFrames(t, rec.Body.String())
	require.Len(t, frames, 3)

	var last openai.ChatResponse
	require.NoError(t, json.Unmarshal([]byte(frames[1]), &last))
	require.NotNil(t, last.Usage)
	assert.Equal(t, 7, last.Usage.PromptTokens)
	assert.Equal(t, 12, last.Usage.CompletionTokens)
	assert.Equal(t, 19, last.Usage.TotalTokens)
}

func TestCompletionsStreaming(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"model":"llama3","response":"once","done":false}`)
		fmt.Fprintln(w, `{"model":"llama3","response":" upon","done":false}`)
		fmt.Fprintln(w, `{"model":"llama3","response":"","done":true,"done_reason":"stop"}`)
	}))
	defer upstream.Close()

	env := newTestEnv(t, upstream.URL)

	rec := postJSON(t, env.handler.Completions, "/v1/completions",
		`{"model":"llama3","prompt":"tell a story","stream":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	frames := sseFrames(t, rec.Body.String())
	require.Len(t, frames, 4)
	assert.Equal(t, "[DONE]", frames[3])

	var first openai.CompletionsResponse
	require.NoError(t, json.Unmarshal([]byte(frames[0]), &first))
	assert.Equal(t, "text_completion", first.Object)
	require.Len(t, first.Choices, 1)
	assert.Equal(t, "once", first.Choices[0].Text)

	var last openai.CompletionsResponse
	require.NoError(t, json.Unmarshal([]byte(frames[2]), &last))
	require.NotNil(t, last.Choices[0].FinishReason)
	assert.Equal(t, "stop", *last.Choices[0].FinishReason)
}
