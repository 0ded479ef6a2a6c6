package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }

func floatPtr(f float64) *float64 { return &f }

func TestChatRequestToOllama(t *testing.T) {
	req := &ChatRequest{
		Model: "llama3.1:8b",
		Messages: []ChatMessage{
			{Role: "system", Content: "You are terse."},
			{Role: "user", Content: "hello"},
		},
	}

	out := ChatRequestToOllama(req)

	assert.Equal(t, "llama3.1:8b", out.Model)
	assert.False(t, out.Stream)
	require.Len(t, out.Messages, 2)
	assert.Equal(t, "system", out.Messages[0].Role)
	assert.Equal(t, "You are terse.", out.Messages[0].Content)
	assert.Equal(t, "hello", out.Messages[1].Content)
	assert.Nil(t, out.Options)
}

func TestChatRequestToOllamaMultimodal(t *testing.T) {
	req := &ChatRequest{
		Model: "llava",
		Messages: []ChatMessage{
			{
				Role: "user",
				Content: []interface{}{
					map[string]interface{}{"type": "text", "text": "A"},
					map[string]interface{}{"type": "text", "text": "B"},
					map[string]interface{}{
						"type":      "image_url",
						"image_url": map[string]interface{}{"url": "data:image/png;base64,iVBORw0"},
					},
				},
			},
		},
	}

	out := ChatRequestToOllama(req)

	require.Len(t, out.Messages, 1)
	assert.Equal(t, "A\nB", out.Messages[0].Content)
	assert.Equal(t, []string{"iVBORw0"}, out.Messages[0].Images)
}

func TestChatRequestToOllamaImageURLString(t *testing.T) {
	req := &ChatRequest{
		Model: "llava",
		Messages: []ChatMessage{
			{
				Role: "user",
				Content: []interface{}{
					map[string]interface{}{"type": "image_url", "image_url": "https://example.com/cat.png"},
				},
			},
		},
	}

	out := ChatRequestToOllama(req)

	require.Len(t, out.Messages, 1)
	// non data-URI images pass through untouched
	assert.Equal(t, []string{"https://example.com/cat.png"}, out.Messages[0].Images)
}

func TestChatRequestToOllamaOptions(t *testing.T) {
	req := &ChatRequest{
		Model:               "llama3",
		Messages:            []ChatMessage{{Role: "user", Content: "hi"}},
		Temperature:         floatPtr(0.2),
		TopP:                floatPtr(0.9),
		TopK:                intPtr(40),
		Seed:                intPtr(7),
		Stop:                []interface{}{"###"},
		MaxTokens:           intPtr(100),
		MaxCompletionTokens: intPtr(50),
	}

	out := ChatRequestToOllama(req)

	require.NotNil(t, out.Options)
	assert.Equal(t, 0.2, out.Options["temperature"])
	assert.Equal(t, 0.9, out.Options["top_p"])
	assert.Equal(t, 40, out.Options["top_k"])
	assert.Equal(t, 7, out.Options["seed"])
	// max_completion_tokens wins over max_tokens
	assert.Equal(t, 50, out.Options["num_predict"])
}

func TestChatRequestToOllamaResponseFormat(t *testing.T) {
	req := &ChatRequest{
		Model:          "llama3",
		Messages:       []ChatMessage{{Role: "user", Content: "hi"}},
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	}
	assert.Equal(t, "json", ChatRequestToOllama(req).Format)

	schema := map[string]interface{}{"type": "object"}
	req.ResponseFormat = &ResponseFormat{
		Type:       "json_schema",
		JSONSchema: &JSONSchemaFormat{Schema: schema},
	}
	assert.Equal(t, schema, ChatRequestToOllama(req).Format)

	req.ResponseFormat = &ResponseFormat{Type: "text"}
	assert.Nil(t, ChatRequestToOllama(req).Format)
}

func TestChatRequestToOllamaToolCallArguments(t *testing.T) {
	req := &ChatRequest{
		Model: "llama3",
		Messages: []ChatMessage{
			{
				Role: "assistant",
				ToolCalls: []ToolCall{
					{Function: ToolCallFunction{Name: "get_weather", Arguments: `{"city":"Perth"}`}},
					{Function: ToolCallFunction{Name: "noop", Arguments: "not json"}},
					{Function: ToolCallFunction{Name: "lookup", Arguments: map[string]interface{}{"id": "x"}}},
				},
			},
		},
	}

	out := ChatRequestToOllama(req)

	require.Len(t, out.Messages, 1)
	calls := out.Messages[0].ToolCalls
	require.Len(t, calls, 3)
	assert.Equal(t, map[string]interface{}{"city": "Perth"}, calls[0].Function.Arguments)
	assert.Equal(t, map[string]interface{}{}, calls[1].Function.Arguments)
	assert.Equal(t, map[string]interface{}{"id": "x"}, calls[2].Function.Arguments)
}

func TestChatRequestToOllamaToolMessage(t *testing.T) {
	req := &ChatRequest{
		Model: "llama3",
		Messages: []ChatMessage{
			{Role: "tool", Content: map[string]interface{}{"temp": 21.5}, ToolCallID: "call_abc"},
		},
	}

	out := ChatRequestToOllama(req)

	require.Len(t, out.Messages, 1)
	assert.Equal(t, "tool", out.Messages[0].Role)
	assert.Equal(t, "call_abc", out.Messages[0].ToolCallID)
	assert.JSONEq(t, `{"temp":21.5}`, out.Messages[0].Content)
}

func TestChatRequestToOllamaTools(t *testing.T) {
	fn := map[string]interface{}{"name": "get_weather"}
	req := &ChatRequest{
		Model:    "llama3",
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
		Tools:    []Tool{{Function: fn}},
	}

	out := ChatRequestToOllama(req)

	require.Len(t, out.Tools, 1)
	assert.Equal(t, "function", out.Tools[0].Type)
	assert.Equal(t, fn, out.Tools[0].Function)
}

func TestUserPromptText(t *testing.T) {
	req := &ChatRequest{
		Model: "llama3",
		Messages: []ChatMessage{
			{Role: "system", Content: "ignored"},
			{Role: "user", Content: "first"},
			{Role: "assistant", Content: "also ignored"},
			{Role: "user", Content: []interface{}{
				map[string]interface{}{"type": "text", "text": "second"},
			}},
		},
	}

	assert.Equal(t, "firstsecond", UserPromptText(req))
}

func TestChatRequestValidate(t *testing.T) {
	req := &ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "hi"}}}
	assert.Error(t, req.Validate())

	req = &ChatRequest{Model: "llama3"}
	assert.Error(t, req.Validate())

	req = &ChatRequest{Model: "llama3", Messages: []ChatMessage{{Role: "user", Content: "hi"}}}
	assert.NoError(t, req.Validate())
}

func TestChatRequestIsStream(t *testing.T) {
	req := &ChatRequest{}
	assert.False(t, req.IsStream())
	req.Stream = boolPtr(false)
	assert.False(t, req.IsStream())
	req.Stream = boolPtr(true)
	assert.True(t, req.IsStream())
}
