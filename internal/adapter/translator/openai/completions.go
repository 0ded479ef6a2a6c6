package openai

import (
	"strings"
	"time"
)

// CompletionsRequestToOllama translates a legacy text completions request
// into the Ollama /api/generate dialect.
func CompletionsRequestToOllama(req *CompletionsRequest) *OllamaGenerateRequest {
	out := &OllamaGenerateRequest{
		Model:  req.Model,
		Prompt: flattenPrompt(req.Prompt),
		Suffix: req.Suffix,
		Stream: req.IsStream(),
	}

	opts := make(map[string]interface{})
	if req.Temperature != nil {
		opts["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		opts["top_p"] = *req.TopP
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
	if req.MaxTokens != nil {
		opts["num_predict"] = *req.MaxTokens
	}
	if len(opts) > 0 {
		out.Options = opts
	}

	return out
}

func flattenPrompt(prompt interface{}) string {
	switch p := prompt.(type) {
	case nil:
		return ""
	case string:
		return p
	case []interface{}:
		parts := make([]string, 0, len(p))
		for _, raw := range p {
			if s, ok := raw.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

// CompletionsResponseFromOllama translates a non-streaming generate response.
func CompletionsResponseFromOllama(up *OllamaGenerateResponse, requestedModel, promptText string) *CompletionsResponse {
	model := up.Model
	if model == "" {
		model = requestedModel
	}

	finish := finishLength
	if up.Done {
		finish = finishStop
	}

	prompt := valueOrEstimate(up.PromptEvalCount, promptText)
	completion := valueOrEstimate(up.EvalCount, up.Response)

	return &CompletionsResponse{
		ID:      NewChatID(),
		Object:  "text_completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []CompletionChoice{{
			Index:        0,
			Text:         up.Response,
			FinishReason: &finish,
		}},
		Usage: &Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	}
}
