package handlers

import (
	"net/http"

	"github.com/ollagate/ollagate/internal/adapter/translator/openai"
	"github.com/ollagate/ollagate/internal/app/middleware"
	"github.com/ollagate/ollagate/internal/core/domain"
)

// Completions serves POST /v1/completions over the /api/generate dialect.
func (h *Handler) Completions(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestID(r.Context())

	var req openai.CompletionsRequest
	if !h.readBody(w, r, &req) {
		return
	}
	if req.Model == "" {
		h.writeError(w, r, domain.NewInvalidRequestError("model is required"))
		return
	}
	if !h.checkModelScope(w, r, req.Model) {
		return
	}

	upReq := openai.CompletionsRequestToOllama(&req)
	marshal := func(upstreamModel string) ([]byte, error) {
		upReq.Model = upstreamModel
		return json.Marshal(upReq)
	}

	if req.IsStream() {
		h.streamCompletions(w, r, requestID, req.Model, marshal)
		return
	}

	var upResp openai.OllamaGenerateResponse
	sel, err := h.proxyJSON(r.Context(), requestID, "/generate", req.Model, marshal, &upResp)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := openai.CompletionsResponseFromOllama(&upResp, req.Model, upReq.Prompt)
	h.recordSuccess(sel)
	if out.Usage != nil {
		h.recordTokenUsage(r, out.Usage.PromptTokens, out.Usage.CompletionTokens)
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) streamCompletions(w http.ResponseWriter, r *http.Request, requestID, model string, marshal func(string) ([]byte, error)) {
	up, err := h.proxy(r.Context(), requestID, "/generate", model, true, marshal)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer up.done()

	state := openai.NewCompletionStreamState(model)
	outcome := h.relayStream(w, r, up, requestID, func(line []byte) (any, bool) {
		var chunk openai.OllamaGenerateResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return nil, false
		}
		return state.ChunkFromOllama(&chunk), chunk.Done
	})

	h.finishStream(r, up, outcome, state.Usage)
}
