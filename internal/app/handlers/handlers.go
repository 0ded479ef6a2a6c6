// Package handlers implements the OpenAI-compatible endpoint surface: model
// listing, chat completions, text completions and embeddings, streaming and
// not.
package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ollagate/ollagate/internal/adapter/auth"
	"github.com/ollagate/ollagate/internal/adapter/registry"
	"github.com/ollagate/ollagate/internal/adapter/translator/openai"
	"github.com/ollagate/ollagate/internal/app/middleware"
	"github.com/ollagate/ollagate/internal/core/domain"
	"github.com/ollagate/ollagate/internal/core/ports"
	"github.com/ollagate/ollagate/internal/logger"
	"github.com/ollagate/ollagate/pkg/format"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxRequestBody = 32 << 20

// Config carries the proxy tunables the handlers need.
type Config struct {
	ConnectTimeout  time.Duration
	ResponseTimeout time.Duration
	MaxRetries      int
}

// Handler serves the /v1 surface over the selector and registries.
type Handler struct {
	selector ports.BackendSelector
	keys     *registry.KeyRegistry
	channels *registry.ChannelRegistry
	tokens   *auth.TokenRegistry
	stats    ports.StatsRecorder
	cache    ports.ResponseCache
	logger   *logger.StyledLogger

	client *http.Client
	cfg    Config
}

func New(selector ports.BackendSelector, keys *registry.KeyRegistry, channels *registry.ChannelRegistry, tokens *auth.TokenRegistry, stats ports.StatsRecorder, cache ports.ResponseCache, cfg Config, styledLogger *logger.StyledLogger) *Handler {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = 300 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &Handler{
		selector: selector,
		keys:     keys,
		channels: channels,
		tokens:   tokens,
		stats:    stats,
		cache:    cache,
		logger:   styledLogger,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 32,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cfg: cfg,
	}
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request, into any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		h.writeError(w, r, domain.NewInvalidRequestError("failed to read request body"))
		return false
	}

	h.logger.Debug("Request body received",
		"request_id", middleware.RequestID(r.Context()),
		"model", openai.ExtractModelName(body),
		"stream", openai.ExtractStreamFlag(body),
		"size", format.Bytes(uint64(len(body))))

	if err := json.Unmarshal(body, into); err != nil {
		h.writeError(w, r, domain.NewInvalidRequestError("invalid JSON body"))
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug("Failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var gerr *domain.GatewayError
	if !errors.As(err, &gerr) {
		gerr = domain.NewServerError("internal server error")
	}

	if gerr.Status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			"request_id", middleware.RequestID(r.Context()),
			"path", r.URL.Path,
			"status", gerr.Status,
			"error", gerr.Message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(gerr.Status)
	body := map[string]any{
		"error": map[string]any{
			"message": gerr.Message,
			"type":    gerr.Type,
		},
	}
	_ = json.NewEncoder(w).Encode(body)
}

// checkModelScope enforces the token's allowed-models list against the
// requested model.
func (h *Handler) checkModelScope(w http.ResponseWriter, r *http.Request, model string) bool {
	token := middleware.Token(r.Context())
	if token == nil {
		return true
	}
	if !h.tokens.CheckModelAccess(token, model) {
		h.writeError(w, r, domain.NewPermissionError("model not allowed for this token"))
		return false
	}
	return true
}

// recordSuccess books a finished request on whichever backend served it.
func (h *Handler) recordSuccess(sel *ports.Selection) {
	if sel.Channel != nil {
		h.channels.RecordSuccess(sel.Channel.ID)
		h.stats.RecordSuccess(sel.Channel.ID)
		return
	}
	if sel.Credential != nil {
		h.keys.RecordSuccess(sel.Credential.ID)
		h.stats.RecordSuccess(sel.Credential.ID)
	}
}

func (h *Handler) recordFailure(sel *ports.Selection, errStr string) {
	if sel.Channel != nil {
		h.channels.RecordFailure(sel.Channel.ID, errStr)
		h.stats.RecordFailure(sel.Channel.ID)
		return
	}
	if sel.Credential != nil {
		h.keys.RecordFailure(sel.Credential.ID, errStr)
		h.stats.RecordFailure(sel.Credential.ID)
	}
}

// recordTokenUsage books the request's token spend when a token is attached.
func (h *Handler) recordTokenUsage(r *http.Request, promptTokens, completionTokens int) {
	token := middleware.Token(r.Context())
	if token == nil {
		return
	}
	h.tokens.RecordUsage(token.ID, promptTokens, completionTokens)
}
