package app

import (
	"errors"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/ollagate/ollagate/internal/version"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	contentTypeHeader = "Content-Type"
	contentTypeJSON   = "application/json"
)

func (a *Application) startWebServer() {
	cfg := a.getConfig()
	a.logger.Info("Starting web server", "host", cfg.Server.Host, "port", cfg.Server.Port)

	mux := http.NewServeMux()
	a.registerRoutes()
	a.registry.WireUp(mux, a.chain.Wrap)
	a.server.Handler = mux

	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server error", "error", err)
			a.errCh <- err
		}
	}()
}

func (a *Application) registerRoutes() {
	a.registry.RegisterOpen("GET", "/healthz", a.healthHandler, "Gateway liveness")
	a.registry.RegisterOpen("GET", "/status", a.statusHandler, "Pool and token census")

	a.registry.RegisterGated("GET", "/v1/models", a.handler.ListModels, "List models")
	a.registry.RegisterGated("GET", "/v1/models/{id}", a.handler.GetModel, "Get one model")
	a.registry.RegisterGated("POST", "/v1/chat/completions", a.handler.ChatCompletions, "Chat completions")
	a.registry.RegisterGated("POST", "/v1/completions", a.handler.Completions, "Text completions")
	a.registry.RegisterGated("POST", "/v1/embeddings", a.handler.Embeddings, "Embeddings")

	// prefix-less aliases some OpenAI clients use
	a.registry.RegisterGated("GET", "/models", a.handler.ListModels, "List models (alias)")
	a.registry.RegisterGated("GET", "/models/{id}", a.handler.GetModel, "Get one model (alias)")
	a.registry.RegisterGated("POST", "/chat/completions", a.handler.ChatCompletions, "Chat completions (alias)")
	a.registry.RegisterGated("POST", "/completions", a.handler.Completions, "Text completions (alias)")
	a.registry.RegisterGated("POST", "/embeddings", a.handler.Embeddings, "Embeddings (alias)")
}

func (a *Application) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(contentTypeHeader, contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": version.Version,
	})
}

func (a *Application) statusHandler(w http.ResponseWriter, r *http.Request) {
	summary := a.keys.GetSummary()

	w.Header().Set(contentTypeHeader, contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"keys":              summary,
		"channels":          a.channels.Count(),
		"tokens":            len(a.tokens.List()),
		"activeConnections": a.chain.ActiveConnections(),
		"accessMode":        a.access.Snapshot().Mode,
	})
}
