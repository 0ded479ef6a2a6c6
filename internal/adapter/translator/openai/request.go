package openai

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const dataURIPrefix = "data:image/"

// ChatRequestToOllama translates an OpenAI chat completions request into the
// Ollama /api/chat dialect. Unknown fields are dropped.
func ChatRequestToOllama(req *ChatRequest) *OllamaChatRequest {
	out := &OllamaChatRequest{
		Model:     req.Model,
		Messages:  make([]OllamaMessage, 0, len(req.Messages)),
		Stream:    req.IsStream(),
		Think:     req.Think,
		KeepAlive: req.KeepAlive,
	}

	for _, msg := range req.Messages {
		out.Messages = append(out.Messages, translateMessage(msg))
	}

	if len(req.Tools) > 0 {
		out.Tools = make([]OllamaTool, 0, len(req.Tools))
		for _, t := range req.Tools {
			toolType := t.Type
			if toolType == "" {
				toolType = "function"
			}
			out.Tools = append(out.Tools, OllamaTool{Type: toolType, Function: t.Function})
		}
	}

	if opts := chatOptions(req); len(opts) > 0 {
		out.Options = opts
	}

	if req.ResponseFormat != nil {
		switch req.ResponseFormat.Type {
		case "json_object":
			out.Format = "json"
		case "json_schema":
			if req.ResponseFormat.JSONSchema != nil && req.ResponseFormat.JSONSchema.Schema != nil {
				out.Format = req.ResponseFormat.JSONSchema.Schema
			}
		}
	}

	return out
}

func translateMessage(msg ChatMessage) OllamaMessage {
	out := OllamaMessage{Role: msg.Role}

	if msg.Role == "tool" {
		out.Content = coerceToolContent(msg.Content)
		out.ToolCallID = msg.ToolCallID
		return out
	}

	content, images := flattenContent(msg.Content)
	out.Content = content
	out.Images = images

	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, OllamaToolCall{
			Function: OllamaToolFunction{
				Name:      tc.Function.Name,
				Arguments: canonicalArguments(tc.Function.Arguments),
			},
		})
	}

	return out
}

// flattenContent collapses multimodal content arrays into a newline-joined
// text body plus a list of images. Data URIs keep only the base64 payload.
func flattenContent(content interface{}) (string, []string) {
	switch c := content.(type) {
	case nil:
		return "", nil
	case string:
		return c, nil
	case []interface{}:
		var texts []string
		var images []string
		for _, raw := range c {
			part, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			switch part["type"] {
			case "text":
				if t, ok := part["text"].(string); ok {
					texts = append(texts, t)
				}
			case "image_url":
				if url := imageURL(part["image_url"]); url != "" {
					images = append(images, stripDataURI(url))
				}
			}
		}
		return strings.Join(texts, "\n"), images
	default:
		return fmt.Sprintf("%v", c), nil
	}
}

func imageURL(v interface{}) string {
	switch u := v.(type) {
	case string:
		return u
	case map[string]interface{}:
		if s, ok := u["url"].(string); ok {
			return s
		}
	}
	return ""
}

func stripDataURI(url string) string {
	if !strings.HasPrefix(url, dataURIPrefix) {
		return url
	}
	if idx := strings.Index(url, ";base64,"); idx >= 0 {
		return url[idx+len(";base64,"):]
	}
	return url
}

// canonicalArguments normalises tool-call arguments to an object: strings
// are parsed as JSON (empty object on failure), objects pass through.
func canonicalArguments(args interface{}) map[string]interface{} {
	switch a := args.(type) {
	case nil:
		return map[string]interface{}{}
	case string:
		var parsed map[string]interface{}
		if err := json.UnmarshalFromString(a, &parsed); err != nil || parsed == nil {
			return map[string]interface{}{}
		}
		return parsed
	case map[string]interface{}:
		return a
	default:
		return map[string]interface{}{}
	}
}

func coerceToolContent(content interface{}) string {
	switch c := content.(type) {
	case nil:
		return ""
	case string:
		return c
	default:
		if s, err := json.MarshalToString(c); err == nil {
			return s
		}
		return fmt.Sprintf("%v", c)
	}
}

func chatOptions(req *ChatRequest) map[string]interface{} {
	opts := make(map[string]interface{})
	if req.Temperature != nil {
		opts["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		opts["top_p"] = *req.TopP
	}
	if req.TopK != nil {
		opts["top_k"] = *req.TopK
	}
	if req.Seed != nil {
		opts["seed"] = *req.Seed
	}
	if req.Stop != nil {
		opts["stop"] = req.Stop
	}
	if req.FrequencyPenalty != nil {
		opts["frequency_penalty"] = *req.FrequencyPenalty
	}
	if req.PresencePenalty != nil {
		opts["presence_penalty"] = *req.PresencePenalty
	}
	if req.NumCtx != nil {
		opts["num_ctx"] = *req.NumCtx
	}
	if req.RepeatPenalty != nil {
		opts["repeat_penalty"] = *req.RepeatPenalty
	}
	// max_completion_tokens wins over max_tokens
	if req.MaxTokens != nil {
		opts["num_predict"] = *req.MaxTokens
	}
	if req.MaxCompletionTokens != nil {
		opts["num_predict"] = *req.MaxCompletionTokens
	}
	return opts
}

// UserPromptText concatenates the text of every user message, used for token
// estimation when the upstream omits prompt_eval_count.
func UserPromptText(req *ChatRequest) string {
	var sb strings.Builder
	for _, msg := range req.Messages {
		if msg.Role != "user" {
			continue
		}
		text, _ := flattenContent(msg.Content)
		sb.WriteString(text)
	}
	return sb.String()
}
