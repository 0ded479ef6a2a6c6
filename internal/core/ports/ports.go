// Package ports holds the service interfaces the request pipeline consumes.
package ports

import (
	"context"

	"github.com/ollagate/ollagate/internal/core/domain"
)

// Selection is the outcome of one backend pick. Release must be called
// exactly once when the request finishes so channel concurrency counters
// stay truthful.
type Selection struct {
	Credential *domain.Credential
	Channel    *domain.Channel
	BaseURL    string
	Key        string
	Model      string
	Release    func()
}

// BackendSelector picks a backend capable of serving the requested model.
type BackendSelector interface {
	Select(ctx context.Context, model string) (*Selection, error)
	Name() string
}

// StateStore persists mutable registries as whole-file JSON rewrites with a
// write-behind debounce. Schedule coalesces; Flush drains synchronously.
type StateStore interface {
	Load(name string, into any) (bool, error)
	Schedule(name string, produce func() any)
	Flush()
}

// ResponseCache fronts non-streaming embeddings responses and the model
// listing. Embeddings keys are SHA-256 hexes of a canonical model+input
// string; the model listing uses a fixed key.
type ResponseCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// StatsRecorder accumulates per-credential daily success/fail counts.
type StatsRecorder interface {
	RecordSuccess(credentialID string)
	RecordFailure(credentialID string)
	Snapshot() domain.DailyStats
}
