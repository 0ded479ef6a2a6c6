package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ollagate/ollagate/internal/adapter/cache"
	"github.com/ollagate/ollagate/internal/adapter/translator/openai"
	"github.com/ollagate/ollagate/internal/app/middleware"
	"github.com/ollagate/ollagate/internal/core/domain"
)

// Embeddings serves POST /v1/embeddings. Responses are cached by a digest of
// model plus canonical input, so identical requests skip the upstream hop.
func (h *Handler) Embeddings(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestID(r.Context())

	var req openai.EmbeddingsRequest
	if !h.readBody(w, r, &req) {
		return
	}
	if req.Model == "" {
		h.writeError(w, r, domain.NewInvalidRequestError("model is required"))
		return
	}
	if req.Input == nil {
		h.writeError(w, r, domain.NewInvalidRequestError("input is required"))
		return
	}
	if !h.checkModelScope(w, r, req.Model) {
		return
	}

	cacheKey := cache.Key(req.Model, canonicalInput(req.Input))
	if cached, ok := h.cache.Get(cacheKey); ok {
		if resp, ok := cached.(*openai.EmbeddingsResponse); ok {
			h.logger.Debug("Embeddings cache hit", "request_id", requestID, "model", req.Model)
			h.writeJSON(w, http.StatusOK, resp)
			return
		}
	}

	upReq := openai.EmbeddingsRequestToOllama(&req)
	marshal := func(upstreamModel string) ([]byte, error) {
		upReq.Model = upstreamModel
		return json.Marshal(upReq)
	}

	var upResp openai.OllamaEmbedResponse
	sel, err := h.proxyJSON(r.Context(), requestID, "/embed", req.Model, marshal, &upResp)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := openai.EmbeddingsResponseFromOllama(&upResp, req.Model, canonicalInput(req.Input))
	h.recordSuccess(sel)
	if out.Usage != nil {
		h.recordTokenUsage(r, out.Usage.PromptTokens, 0)
	}
	h.cache.Set(cacheKey, out)
	h.writeJSON(w, http.StatusOK, out)
}

// canonicalInput flattens the embeddings input to a stable string for both
// cache keying and token estimation.
func canonicalInput(input interface{}) string {
	switch v := input.(type) {
	case string:
		return v
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			} else {
				parts = append(parts, fmt.Sprintf("%v", item))
			}
		}
		return strings.Join(parts, "\n")
	default:
		return fmt.Sprintf("%v", v)
	}
}
