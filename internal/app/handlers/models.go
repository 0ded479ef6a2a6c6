package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ollagate/ollagate/internal/adapter/translator/openai"
	"github.com/ollagate/ollagate/internal/app/middleware"
	"github.com/ollagate/ollagate/internal/core/domain"
	"github.com/ollagate/ollagate/internal/util"
)

const modelsCacheKey = "models:list"

// ListModels serves GET /v1/models by proxying the selected backend's
// /api/tags listing into the OpenAI model-list shape.
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	out, err := h.fetchModels(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

// GetModel serves GET /v1/models/{id}.
func (h *Handler) GetModel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, r, domain.NewInvalidRequestError("model id is required"))
		return
	}

	out, err := h.fetchModels(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	for _, m := range out.Data {
		if m.ID == id {
			h.writeJSON(w, http.StatusOK, m)
			return
		}
	}
	h.writeError(w, r, domain.NewNotFoundError(fmt.Sprintf("model %q not found", id)))
}

func (h *Handler) fetchModels(r *http.Request) (*openai.ModelsResponse, error) {
	if cached, ok := h.cache.Get(modelsCacheKey); ok {
		if resp, ok := cached.(*openai.ModelsResponse); ok {
			return resp, nil
		}
	}

	requestID := middleware.RequestID(r.Context())

	sel, err := h.selector.Select(r.Context(), "")
	if err != nil {
		return nil, err
	}
	defer sel.Release()

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.ConnectTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, util.BuildAPIURL(sel.BaseURL, "/tags"), nil)
	if err != nil {
		return nil, domain.NewServerError("failed to build upstream request")
	}
	if sel.Key != "" {
		req.Header.Set("Authorization", "Bearer "+sel.Key)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.recordFailure(sel, err.Error())
		h.logger.Warn("Model listing failed", "request_id", requestID, "base_url", sel.BaseURL, "error", err)
		return nil, domain.NewUpstreamError(http.StatusBadGateway, "upstream unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := readErrorBody(resp.Body)
		h.recordFailure(sel, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, detail))
		return nil, domain.NewUpstreamError(resp.StatusCode, "failed to list models")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.recordFailure(sel, err.Error())
		return nil, domain.NewUpstreamError(http.StatusBadGateway, "failed to read upstream response")
	}

	var tags openai.OllamaTagsResponse
	if err := json.Unmarshal(body, &tags); err != nil {
		h.recordFailure(sel, err.Error())
		return nil, domain.NewUpstreamError(http.StatusBadGateway, "invalid upstream response")
	}

	h.recordSuccess(sel)

	now := time.Now().Unix()
	out := &openai.ModelsResponse{Object: "list", Data: make([]openai.ModelObject, 0, len(tags.Models))}
	for _, m := range tags.Models {
		created := now
		if m.ModifiedAt != "" {
			if t, err := time.Parse(time.RFC3339, m.ModifiedAt); err == nil {
				created = t.Unix()
			}
		}
		out.Data = append(out.Data, openai.ModelObject{
			ID:      m.Name,
			Object:  "model",
			OwnedBy: "ollama",
			Created: created,
		})
	}

	h.cache.Set(modelsCacheKey, out)
	return out, nil
}
