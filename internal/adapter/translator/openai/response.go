package openai

import "time"

const (
	finishStop      = "stop"
	finishLength    = "length"
	finishToolCalls = "tool_calls"
)

// ChatResponseFromOllama translates a non-streaming Ollama chat response.
// promptText is the concatenated user message text, used for estimation when
// the upstream omits counters.
func ChatResponseFromOllama(up *OllamaChatResponse, requestedModel, promptText string) *ChatResponse {
	model := up.Model
	if model == "" {
		model = requestedModel
	}

	msg := &ResponseMessage{Role: "assistant"}
	var content string
	if up.Message != nil {
		content = up.Message.Content
		msg.Content = up.Message.Content
		msg.ReasoningContent = up.Message.Thinking
		msg.ToolCalls = translateToolCalls(up.Message.ToolCalls)
	}

	finish := mapFinishReason(up.DoneReason)
	if len(msg.ToolCalls) > 0 {
		finish = finishToolCalls
	}

	prompt := valueOrEstimate(up.PromptEvalCount, promptText)
	completion := valueOrEstimate(up.EvalCount, content)

	return &ChatResponse{
		ID:                NewChatID(),
		Object:            "chat.completion",
		Created:           time.Now().Unix(),
		Model:             model,
		SystemFingerprint: SystemFingerprint(model),
		Choices: []ChatChoice{{
			Index:        0,
			Message:      msg,
			FinishReason: &finish,
		}},
		Usage: &Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	}
}

func translateToolCalls(calls []OllamaToolCall) []ResponseToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ResponseToolCall, 0, len(calls))
	for i, tc := range calls {
		args := "{}"
		if tc.Function.Arguments != nil {
			if s, err := json.MarshalToString(tc.Function.Arguments); err == nil {
				args = s
			}
		}
		out = append(out, ResponseToolCall{
			ID:    NewToolCallID(),
			Index: i,
			Type:  "function",
			Function: ResponseToolFunction{
				Name:      tc.Function.Name,
				Arguments: args,
			},
		})
	}
	return out
}

func mapFinishReason(doneReason string) string {
	switch doneReason {
	case "length":
		return finishLength
	case "stop", "load", "unload":
		return finishStop
	default:
		return finishStop
	}
}

func valueOrEstimate(count *int, text string) int {
	if count != nil {
		return *count
	}
	return EstimateTokens(text)
}
