package openai

import "time"

// StreamState carries the per-stream identity and counters the chunk
// translator needs. One instance per in-flight streaming request.
type StreamState struct {
	Usage         *Usage
	ChatID        string
	Model         string
	Created       int64
	ContentChunks int
	sentFirst     bool
	Completed     bool
}

func NewStreamState(requestedModel string) *StreamState {
	return &StreamState{
		ChatID:  NewChatID(),
		Model:   requestedModel,
		Created: time.Now().Unix(),
	}
}

// ChunkFromOllama translates one NDJSON stream line into an OpenAI chunk.
// The terminal line (done == true) attaches finish_reason and usage; when
// the upstream omits eval_count the number of non-empty content chunks
// stands in for completion tokens, and prompt tokens fall back to zero.
func (s *StreamState) ChunkFromOllama(up *OllamaChatResponse) *ChatResponse {
	model := up.Model
	if model == "" {
		model = s.Model
	}

	delta := &Delta{}
	if !s.sentFirst {
		delta.Role = "assistant"
		s.sentFirst = true
	}

	if up.Message != nil {
		if up.Message.Content != "" {
			delta.Content = up.Message.Content
			s.ContentChunks++
		}
		delta.ReasoningContent = up.Message.Thinking
		delta.ToolCalls = translateToolCalls(up.Message.ToolCalls)
	}

	choice := ChatChoice{Index: 0, Delta: delta}

	chunk := &ChatResponse{
		ID:      s.ChatID,
		Object:  "chat.completion.chunk",
		Created: s.Created,
		Model:   model,
	}

	if up.Done {
		s.Completed = true

		finish := mapFinishReason(up.DoneReason)
		if len(delta.ToolCalls) > 0 {
			finish = finishToolCalls
		}
		choice.FinishReason = &finish

		prompt := 0
		if up.PromptEvalCount != nil {
			prompt = *up.PromptEvalCount
		}
		completion := s.ContentChunks
		if up.EvalCount != nil {
			completion = *up.EvalCount
		}
		s.Usage = &Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		}
		chunk.Usage = s.Usage
	}

	chunk.Choices = []ChatChoice{choice}
	return chunk
}

// CompletionStreamState is the text-completions analogue of StreamState.
type CompletionStreamState struct {
	Usage     *Usage
	ID        string
	Model     string
	Created   int64
	Chunks    int
	Completed bool
}

func NewCompletionStreamState(requestedModel string) *CompletionStreamState {
	return &CompletionStreamState{
		ID:      NewChatID(),
		Model:   requestedModel,
		Created: time.Now().Unix(),
	}
}

// ChunkFromOllama translates one /api/generate stream line.
func (s *CompletionStreamState) ChunkFromOllama(up *OllamaGenerateResponse) *CompletionsResponse {
	model := up.Model
	if model == "" {
		model = s.Model
	}

	if up.Response != "" {
		s.Chunks++
	}

	choice := CompletionChoice{Index: 0, Text: up.Response}

	chunk := &CompletionsResponse{
		ID:      s.ID,
		Object:  "text_completion",
		Created: s.Created,
		Model:   model,
	}

	if up.Done {
		s.Completed = true

		finish := finishStop
		choice.FinishReason = &finish

		prompt := 0
		if up.PromptEvalCount != nil {
			prompt = *up.PromptEvalCount
		}
		completion := s.Chunks
		if up.EvalCount != nil {
			completion = *up.EvalCount
		}
		s.Usage = &Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		}
		chunk.Usage = s.Usage
	}

	chunk.Choices = []CompletionChoice{choice}
	return chunk
}
