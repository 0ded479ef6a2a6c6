package openai

// EmbeddingsRequestToOllama translates an embeddings request into the Ollama
// /api/embed dialect. A bare string input is wrapped into a single-element
// sequence; sequences pass through unchanged.
func EmbeddingsRequestToOllama(req *EmbeddingsRequest) *OllamaEmbedRequest {
	out := &OllamaEmbedRequest{Model: req.Model}
	switch in := req.Input.(type) {
	case string:
		out.Input = []string{in}
	default:
		out.Input = req.Input
	}
	return out
}

// EmbeddingsResponseFromOllama selects the embeddings sequence (plural field
// first, then the legacy singular vector) and emits the OpenAI list shape.
// Absence of both fields yields an empty data list, never [null].
func EmbeddingsResponseFromOllama(up *OllamaEmbedResponse, requestedModel string, promptText string) *EmbeddingsResponse {
	model := up.Model
	if model == "" {
		model = requestedModel
	}

	var vectors [][]float64
	switch {
	case len(up.Embeddings) > 0:
		vectors = up.Embeddings
	case up.Embedding != nil:
		vectors = [][]float64{up.Embedding}
	}

	data := make([]EmbeddingObject, 0, len(vectors))
	for i, v := range vectors {
		data = append(data, EmbeddingObject{
			Object:    "embedding",
			Index:     i,
			Embedding: v,
		})
	}

	prompt := valueOrEstimate(up.PromptEvalCount, promptText)

	return &EmbeddingsResponse{
		Object: "list",
		Model:  model,
		Data:   data,
		Usage: &Usage{
			PromptTokens: prompt,
			TotalTokens:  prompt,
		},
	}
}
