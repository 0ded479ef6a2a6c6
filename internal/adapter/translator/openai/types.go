package openai

import "fmt"

// ChatRequest represents an OpenAI chat completions request.
// Content-bearing fields stay loosely typed because clients send both the
// string and the block-array content forms.
type ChatRequest struct {
	Stop                interface{}     `json:"stop,omitempty"` // string or []string
	Think               interface{}     `json:"think,omitempty"`
	KeepAlive           interface{}     `json:"keep_alive,omitempty"`
	Stream              *bool           `json:"stream,omitempty"`
	Temperature         *float64        `json:"temperature,omitempty"`
	TopP                *float64        `json:"top_p,omitempty"`
	TopK                *int            `json:"top_k,omitempty"`
	Seed                *int            `json:"seed,omitempty"`
	FrequencyPenalty    *float64        `json:"frequency_penalty,omitempty"`
	PresencePenalty     *float64        `json:"presence_penalty,omitempty"`
	NumCtx              *int            `json:"num_ctx,omitempty"`
	RepeatPenalty       *float64        `json:"repeat_penalty,omitempty"`
	MaxTokens           *int            `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int            `json:"max_completion_tokens,omitempty"`
	ResponseFormat      *ResponseFormat `json:"response_format,omitempty"`
	Model               string          `json:"model"`
	Messages            []ChatMessage   `json:"messages"`
	Tools               []Tool          `json:"tools,omitempty"`
}

// Validate checks that required fields are present
func (r *ChatRequest) Validate() error {
	if r.Model == "" {
		return fmt.Errorf("model field is required")
	}
	if len(r.Messages) == 0 {
		return fmt.Errorf("at least one message is required")
	}
	return nil
}

// IsStream resolves the stream flag, defaulting to false when absent.
func (r *ChatRequest) IsStream() bool {
	return r.Stream != nil && *r.Stream
}

// ChatMessage represents a message in the conversation
// Content can be either a simple string or an array of content parts
type ChatMessage struct {
	Content    interface{} `json:"content"` // string or []ContentPart
	Role       string      `json:"role"`
	Name       string      `json:"name,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
}

// ToolCall represents an assistant tool invocation
type ToolCall struct {
	Function ToolCallFunction `json:"function"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Index    *int             `json:"index,omitempty"`
}

// ToolCallFunction carries the call target and its arguments, which arrive
// either JSON-encoded as a string or as an already-parsed object
type ToolCallFunction struct {
	Arguments interface{} `json:"arguments,omitempty"`
	Name      string      `json:"name"`
}

// Tool represents a tool definition offered to the model
type Tool struct {
	Function interface{} `json:"function,omitempty"`
	Type     string      `json:"type,omitempty"`
}

// ResponseFormat selects structured output: "json_object" or "json_schema"
type ResponseFormat struct {
	JSONSchema *JSONSchemaFormat `json:"json_schema,omitempty"`
	Type       string            `json:"type"`
}

type JSONSchemaFormat struct {
	Schema interface{} `json:"schema,omitempty"`
	Name   string      `json:"name,omitempty"`
	Strict *bool       `json:"strict,omitempty"`
}

// CompletionsRequest represents a legacy text completions request
type CompletionsRequest struct {
	Prompt           interface{} `json:"prompt,omitempty"` // string or []string
	Stop             interface{} `json:"stop,omitempty"`
	Stream           *bool       `json:"stream,omitempty"`
	Temperature      *float64    `json:"temperature,omitempty"`
	TopP             *float64    `json:"top_p,omitempty"`
	Seed             *int        `json:"seed,omitempty"`
	FrequencyPenalty *float64    `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64    `json:"presence_penalty,omitempty"`
	MaxTokens        *int        `json:"max_tokens,omitempty"`
	Model            string      `json:"model"`
	Suffix           string      `json:"suffix,omitempty"`
}

func (r *CompletionsRequest) Validate() error {
	if r.Model == "" {
		return fmt.Errorf("model field is required")
	}
	return nil
}

func (r *CompletionsRequest) IsStream() bool {
	return r.Stream != nil && *r.Stream
}

// EmbeddingsRequest represents an embeddings request
type EmbeddingsRequest struct {
	Input interface{} `json:"input"` // string or []string
	Model string      `json:"model"`
}

func (r *EmbeddingsRequest) Validate() error {
	if r.Model == "" {
		return fmt.Errorf("model field is required")
	}
	if r.Input == nil {
		return fmt.Errorf("input field is required")
	}
	return nil
}

// ChatResponse represents both the non-streaming chat completion and the
// streaming chunk shape; choices carry Message or Delta respectively.
type ChatResponse struct {
	Usage             *Usage       `json:"usage,omitempty"`
	ID                string       `json:"id"`
	Object            string       `json:"object"`
	Model             string       `json:"model"`
	SystemFingerprint string       `json:"system_fingerprint,omitempty"`
	Choices           []ChatChoice `json:"choices"`
	Created           int64        `json:"created"`
}

type ChatChoice struct {
	Message      *ResponseMessage `json:"message,omitempty"`
	Delta        *Delta           `json:"delta,omitempty"`
	FinishReason *string          `json:"finish_reason"`
	Index        int              `json:"index"`
}

// ResponseMessage is the assistant message in a non-streaming response
type ResponseMessage struct {
	Role             string             `json:"role"`
	Content          string             `json:"content"`
	ReasoningContent string             `json:"reasoning_content,omitempty"`
	ToolCalls        []ResponseToolCall `json:"tool_calls,omitempty"`
}

// Delta is the incremental message fragment in a streaming chunk
type Delta struct {
	Role             string             `json:"role,omitempty"`
	Content          string             `json:"content,omitempty"`
	ReasoningContent string             `json:"reasoning_content,omitempty"`
	ToolCalls        []ResponseToolCall `json:"tool_calls,omitempty"`
}

type ResponseToolCall struct {
	ID       string               `json:"id"`
	Type     string               `json:"type"`
	Function ResponseToolFunction `json:"function"`
	Index    int                  `json:"index"`
}

// ResponseToolFunction always carries arguments as a JSON string on the wire
type ResponseToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionsResponse represents both the full and chunked text completion
type CompletionsResponse struct {
	Usage   *Usage             `json:"usage,omitempty"`
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Created int64              `json:"created"`
}

type CompletionChoice struct {
	FinishReason *string `json:"finish_reason"`
	Text         string  `json:"text"`
	Index        int     `json:"index"`
}

// EmbeddingsResponse represents the embeddings list response
type EmbeddingsResponse struct {
	Usage  *Usage            `json:"usage,omitempty"`
	Object string            `json:"object"`
	Model  string            `json:"model"`
	Data   []EmbeddingObject `json:"data"`
}

type EmbeddingObject struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

// ModelsResponse represents the /v1/models listing
type ModelsResponse struct {
	Object string        `json:"object"`
	Data   []ModelObject `json:"data"`
}

type ModelObject struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
	Created int64  `json:"created"`
}

// ErrorResponse is the OpenAI-style error envelope
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}
