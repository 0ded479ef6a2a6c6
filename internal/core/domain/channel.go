package domain

import "github.com/ollagate/ollagate/internal/util/pattern"

// Channel is a named grouping of API keys sharing one base URL, with its own
// model allow-list, model remapping, priority, weight and concurrency cap.
// When at least one channel exists, selection happens over channels first and
// a key is picked within the winner.
type Channel struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	BaseURL        string            `json:"baseUrl"`
	Keys           []string          `json:"keys"`
	Models         []string          `json:"models,omitempty"`
	ModelMapping   map[string]string `json:"modelMapping,omitempty"`
	Enabled        bool              `json:"enabled"`
	Healthy        bool              `json:"healthy"`
	Priority       int               `json:"priority"`
	Weight         int               `json:"weight"`
	MaxConcurrent  int               `json:"maxConcurrent"`
	AddedAt        string            `json:"addedAt"`
	LastUsed       string            `json:"lastUsed,omitempty"`
	LastError      string            `json:"lastError,omitempty"`
	TotalRequests  int64             `json:"totalRequests"`
	FailedRequests int64             `json:"failedRequests"`

	// runtime state, rebuilt on load
	CurrentConcurrent int64 `json:"-"`
	Cursor            int   `json:"-"`
}

// AllowsModel reports whether the channel can serve the requested model:
// an empty list permits everything, otherwise the model must glob-match a
// list entry or appear as a remap key.
func (ch *Channel) AllowsModel(model string) bool {
	if len(ch.Models) == 0 {
		return true
	}
	for _, m := range ch.Models {
		if pattern.MatchesGlob(model, m) {
			return true
		}
	}
	_, ok := ch.ModelMapping[model]
	return ok
}

// ResolveModel applies the channel's model remapping, identity when no
// mapping entry exists.
func (ch *Channel) ResolveModel(model string) string {
	if mapped, ok := ch.ModelMapping[model]; ok && mapped != "" {
		return mapped
	}
	return model
}

// HasCapacity reports whether another request may enter the channel.
// A cap of zero means uncapped.
func (ch *Channel) HasCapacity() bool {
	return ch.MaxConcurrent <= 0 || ch.CurrentConcurrent < int64(ch.MaxConcurrent)
}
