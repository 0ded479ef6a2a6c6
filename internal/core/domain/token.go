package domain

// AuthToken is a client-facing bearer credential issued by the gateway,
// distinct from backend credentials. The plain token stays in the persisted
// file so lookup remains O(1) by plaintext; the SHA-256 hash sits alongside
// it for a later hash-only migration.
type AuthToken struct {
	ID            string   `json:"id"`
	Token         string   `json:"token"`
	TokenHash     string   `json:"tokenHash"`
	Name          string   `json:"name"`
	Enabled       bool     `json:"enabled"`
	CreatedAt     string   `json:"createdAt"`
	ExpiresAt     string   `json:"expiresAt,omitempty"`
	Quota         int64    `json:"quota,omitempty"`
	QuotaUsed     int64    `json:"quotaUsed"`
	QuotaResetAt  string   `json:"quotaResetAt,omitempty"`
	AllowedModels []string `json:"allowedModels,omitempty"`
	AllowedIPs    []string `json:"allowedIPs,omitempty"`
	TotalRequests int64    `json:"totalRequests"`
	TotalTokens   int64    `json:"totalTokens"`
	LastUsed      string   `json:"lastUsed,omitempty"`

	// Optional per-token rate limit override; zero values defer to the
	// gateway-wide token scope settings.
	RateLimitMax      int   `json:"rateLimitMax,omitempty"`
	RateLimitWindowMs int64 `json:"rateLimitWindowMs,omitempty"`
}

// UsageDay aggregates one token's traffic for one UTC calendar day.
type UsageDay struct {
	Requests         int64 `json:"requests"`
	PromptTokens     int64 `json:"promptTokens"`
	CompletionTokens int64 `json:"completionTokens"`
}

// UsageStats maps tokenID -> date(YYYY-MM-DD) -> counters.
type UsageStats map[string]map[string]*UsageDay
