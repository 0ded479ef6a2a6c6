package handlers

import (
	"net/http"

	"github.com/ollagate/ollagate/internal/adapter/translator/openai"
	"github.com/ollagate/ollagate/internal/app/middleware"
	"github.com/ollagate/ollagate/internal/core/domain"
)

// ChatCompletions serves POST /v1/chat/completions, streaming and not.
func (h *Handler) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestID(r.Context())

	var req openai.ChatRequest
	if !h.readBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, r, domain.NewInvalidRequestError(err.Error()))
		return
	}
	if !h.checkModelScope(w, r, req.Model) {
		return
	}

	upReq := openai.ChatRequestToOllama(&req)
	promptText := openai.UserPromptText(&req)
	marshal := func(upstreamModel string) ([]byte, error) {
		upReq.Model = upstreamModel
		return json.Marshal(upReq)
	}

	if req.IsStream() {
		h.streamChat(w, r, requestID, req.Model, marshal)
		return
	}

	var upResp openai.OllamaChatResponse
	sel, err := h.proxyJSON(r.Context(), requestID, "/chat", req.Model, marshal, &upResp)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := openai.ChatResponseFromOllama(&upResp, req.Model, promptText)
	h.recordSuccess(sel)
	if out.Usage != nil {
		h.recordTokenUsage(r, out.Usage.PromptTokens, out.Usage.CompletionTokens)
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) streamChat(w http.ResponseWriter, r *http.Request, requestID, model string, marshal func(string) ([]byte, error)) {
	up, err := h.proxy(r.Context(), requestID, "/chat", model, true, marshal)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer up.done()

	state := openai.NewStreamState(model)
	outcome := h.relayStream(w, r, up, requestID, func(line []byte) (any, bool) {
		var chunk openai.OllamaChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return nil, false
		}
		return state.ChunkFromOllama(&chunk), chunk.Done
	})

	h.finishStream(r, up, outcome, state.Usage)
}

// finishStream settles the books once a relay ends: success only when the
// stream completed or ended cleanly without a client abort.
func (h *Handler) finishStream(r *http.Request, up *upstreamResult, outcome relayOutcome, usage *openai.Usage) {
	switch {
	case outcome.failed:
		h.recordFailure(up.selection, outcome.errStr)
	case outcome.aborted && !outcome.completed:
		// client walked away; nothing to record
	default:
		h.recordSuccess(up.selection)
		if usage != nil {
			h.recordTokenUsage(r, usage.PromptTokens, usage.CompletionTokens)
		}
	}
}
