package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ollagate/ollagate/internal/core/domain"
	"github.com/ollagate/ollagate/internal/core/ports"
	"github.com/ollagate/ollagate/internal/logger"
	"github.com/ollagate/ollagate/internal/util"
)

const (
	keysFileName       = "keys"
	healthCheckTimeout = 10 * time.Second

	// auto-quarantine thresholds
	quarantineMinFailures  = 5
	quarantineFailureRatio = 0.8
)

// KeysFile is the persisted shape of the credential pool.
type KeysFile struct {
	Keys         []*domain.Credential `json:"keys"`
	CurrentIndex int                  `json:"currentIndex"`
}

// KeySummary is the single-pass pool census.
type KeySummary struct {
	Total     int `json:"total"`
	Enabled   int `json:"enabled"`
	Healthy   int `json:"healthy"`
	Disabled  int `json:"disabled"`
	Unhealthy int `json:"unhealthy"`
}

// MaskedCredential is the operator-facing projection; the key never leaves
// the process unmasked.
type MaskedCredential struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Key            string `json:"key"`
	BaseURL        string `json:"baseUrl"`
	Enabled        bool   `json:"enabled"`
	Healthy        bool   `json:"healthy"`
	LastCheck      string `json:"lastCheck,omitempty"`
	LastUsed       string `json:"lastUsed,omitempty"`
	LastError      string `json:"lastError,omitempty"`
	AddedAt        string `json:"addedAt"`
	TotalRequests  int64  `json:"totalRequests"`
	FailedRequests int64  `json:"failedRequests"`
	Weight         int    `json:"weight"`
	Priority       int    `json:"priority"`
}

// AddResult reports one add outcome.
type AddResult struct {
	Credential *domain.Credential
	Duplicate  bool
}

// BatchResult reports a batch import outcome.
type BatchResult struct {
	Added      []*domain.Credential `json:"added"`
	Duplicates []string             `json:"duplicates"`
	Errors     []string             `json:"errors"`
}

// KeyRegistry owns the credential pool, its counters and its persistence.
type KeyRegistry struct {
	store  ports.StateStore
	logger *logger.StyledLogger
	client *http.Client

	mu     sync.RWMutex
	keys   []*domain.Credential
	byID   map[string]*domain.Credential
	cursor int

	// memoised projections, dropped on every mutation
	cachedSummary *KeySummary
	cachedMasked  []MaskedCredential
}

func NewKeyRegistry(store ports.StateStore, styledLogger *logger.StyledLogger) (*KeyRegistry, error) {
	r := &KeyRegistry{
		store:  store,
		logger: styledLogger,
		client: &http.Client{Timeout: healthCheckTimeout},
		byID:   make(map[string]*domain.Credential),
	}

	var persisted KeysFile
	found, err := store.Load(keysFileName, &persisted)
	if err != nil {
		return nil, err
	}
	if found {
		r.keys = persisted.Keys
		r.cursor = persisted.CurrentIndex
		for _, c := range r.keys {
			r.byID[c.ID] = c
		}
	}

	styledLogger.InfoWithCount("Loaded backend credentials", len(r.keys))
	return r, nil
}

// AddKey parses and adds one credential, deduping on (key, baseUrl).
func (r *KeyRegistry) AddKey(raw, defaultBaseURL string) (*AddResult, error) {
	cred, err := ParseKeyString(raw, defaultBaseURL)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing := r.findLocked(cred.Key, cred.BaseURL); existing != nil {
		return &AddResult{Credential: existing, Duplicate: true}, nil
	}

	r.keys = append(r.keys, cred)
	r.byID[cred.ID] = cred
	r.mutatedLocked()

	r.logger.InfoWithBackend("Added backend credential", cred.Name, "base_url", cred.BaseURL)
	return &AddResult{Credential: cred}, nil
}

// EnsureDefault seeds an unauthenticated credential for the configured
// upstream when the pool is empty, so a fresh install proxies out of the box.
func (r *KeyRegistry) EnsureDefault(baseURL string) {
	if baseURL == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.keys) > 0 {
		return
	}

	cred := &domain.Credential{
		ID:      uuid.NewString(),
		BaseURL: util.NormalizeBaseURL(baseURL),
		Enabled: true,
		Healthy: true,
		AddedAt: domain.Now(),
		Weight:  domain.DefaultWeight,
	}
	cred.Name = cred.MaskedKey()

	r.keys = append(r.keys, cred)
	r.byID[cred.ID] = cred
	r.mutatedLocked()

	r.logger.InfoWithBackend("Seeded default backend", cred.BaseURL)
}

// BatchImport splits text on newlines, commas and semicolons, skipping
// blanks and #-comments, deduping against the pool and within the batch.
// Persists once at the end.
func (r *KeyRegistry) BatchImport(text, defaultBaseURL string) *BatchResult {
	result := &BatchResult{}

	lines := strings.FieldsFunc(text, func(c rune) bool {
		return c == '\n' || c == ',' || c == ';'
	})

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		cred, err := ParseKeyString(line, defaultBaseURL)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		if r.findLocked(cred.Key, cred.BaseURL) != nil {
			result.Duplicates = append(result.Duplicates, cred.MaskedKey())
			continue
		}

		r.keys = append(r.keys, cred)
		r.byID[cred.ID] = cred
		result.Added = append(result.Added, cred)
	}

	if len(result.Added) > 0 {
		r.mutatedLocked()
	}

	r.logger.InfoWithCount("Batch import complete", len(result.Added),
		"duplicates", len(result.Duplicates), "errors", len(result.Errors))
	return result
}

func (r *KeyRegistry) RemoveKey(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, c := range r.keys {
		if c.ID == id {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			delete(r.byID, id)
			if r.cursor >= len(r.keys) {
				r.cursor = 0
			}
			r.mutatedLocked()
			return true
		}
	}
	return false
}

func (r *KeyRegistry) ToggleKey(id string) *domain.Credential {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return nil
	}
	c.Enabled = !c.Enabled
	r.mutatedLocked()
	return c
}

func (r *KeyRegistry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.keys = nil
	r.byID = make(map[string]*domain.Credential)
	r.cursor = 0
	r.mutatedLocked()
}

// ResetHealth marks every credential healthy and clears last errors.
func (r *KeyRegistry) ResetHealth() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.keys {
		c.Healthy = true
		c.LastError = ""
	}
	r.mutatedLocked()
}

// GetKey returns the live credential for an id, nil when unknown.
func (r *KeyRegistry) GetKey(id string) *domain.Credential {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// GetNextKey picks a credential round-robin over the enabled+healthy pool,
// falling back to enabled-only when every backend is quarantined.
func (r *KeyRegistry) GetNextKey() *domain.Credential {
	r.mu.Lock()
	defer r.mu.Unlock()

	pool := make([]*domain.Credential, 0, len(r.keys))
	for _, c := range r.keys {
		if c.Available() {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		for _, c := range r.keys {
			if c.Enabled {
				pool = append(pool, c)
			}
		}
	}
	if len(pool) == 0 {
		return nil
	}

	if r.cursor >= len(pool) {
		r.cursor = 0
	}
	picked := pool[r.cursor]
	r.cursor++
	r.scheduleLocked()
	return picked
}

// RecordSuccess marks a proxied request as served by the credential. Success
// always restores health.
func (r *KeyRegistry) RecordSuccess(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return
	}
	c.TotalRequests++
	c.LastUsed = domain.Now()
	c.Healthy = true
	c.LastError = ""
	r.mutatedLocked()
}

// RecordFailure counts a failed request and auto-quarantines the credential
// once failures dominate its history.
func (r *KeyRegistry) RecordFailure(id, errStr string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return
	}
	c.TotalRequests++
	c.FailedRequests++
	c.LastUsed = domain.Now()
	c.LastError = errStr

	if c.FailedRequests > quarantineMinFailures &&
		float64(c.FailedRequests)/float64(c.TotalRequests) > quarantineFailureRatio {
		if c.Healthy {
			r.logger.InfoHealthStatus("Backend quarantined after repeated failures", c.Name, false)
		}
		c.Healthy = false
	}
	r.mutatedLocked()
}

// CheckKeyHealth probes one backend's /tags endpoint and updates its state.
func (r *KeyRegistry) CheckKeyHealth(ctx context.Context, id string) {
	r.mu.RLock()
	c, ok := r.byID[id]
	if !ok {
		r.mu.RUnlock()
		return
	}
	baseURL, key := c.BaseURL, c.Key
	r.mu.RUnlock()

	healthy, errStr := r.probe(ctx, baseURL, key)

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok = r.byID[id]; !ok {
		return
	}
	c.Healthy = healthy
	c.LastError = errStr
	c.LastCheck = domain.Now()
	r.mutatedLocked()
}

// CheckAllHealth probes every credential in parallel and waits for all.
func (r *KeyRegistry) CheckAllHealth(ctx context.Context) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.keys))
	for _, c := range r.keys {
		ids = append(ids, c.ID)
	}
	r.mu.RUnlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			r.CheckKeyHealth(ctx, id)
		}(id)
	}
	wg.Wait()
}

func (r *KeyRegistry) probe(ctx context.Context, baseURL, key string) (bool, string) {
	probeCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	url := util.BuildAPIURL(baseURL, "/tags")
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		return false, err.Error()
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
			return false, "Health check timeout (10s)"
		}
		return false, err.Error()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return true, ""
}

// GetAllKeys returns the masked operator projection, memoised until the next
// mutation.
func (r *KeyRegistry) GetAllKeys() []MaskedCredential {
	r.mu.RLock()
	if r.cachedMasked != nil {
		cached := r.cachedMasked
		r.mu.RUnlock()
		return cached
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cachedMasked != nil {
		return r.cachedMasked
	}

	masked := make([]MaskedCredential, 0, len(r.keys))
	for _, c := range r.keys {
		masked = append(masked, MaskedCredential{
			ID:             c.ID,
			Name:           c.Name,
			Key:            c.MaskedKey(),
			BaseURL:        c.BaseURL,
			Enabled:        c.Enabled,
			Healthy:        c.Healthy,
			LastCheck:      c.LastCheck,
			LastUsed:       c.LastUsed,
			LastError:      c.LastError,
			AddedAt:        c.AddedAt,
			TotalRequests:  c.TotalRequests,
			FailedRequests: c.FailedRequests,
			Weight:         c.Weight,
			Priority:       c.Priority,
		})
	}
	r.cachedMasked = masked
	return masked
}

// GetSummary returns pool counts in a single pass, memoised until the next
// mutation.
func (r *KeyRegistry) GetSummary() KeySummary {
	r.mu.RLock()
	if r.cachedSummary != nil {
		cached := *r.cachedSummary
		r.mu.RUnlock()
		return cached
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cachedSummary != nil {
		return *r.cachedSummary
	}

	summary := KeySummary{Total: len(r.keys)}
	for _, c := range r.keys {
		switch {
		case !c.Enabled:
			summary.Disabled++
		case c.Healthy:
			summary.Enabled++
			summary.Healthy++
		default:
			summary.Enabled++
			summary.Unhealthy++
		}
	}
	r.cachedSummary = &summary
	return summary
}

// Count returns the pool size.
func (r *KeyRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}

// findLocked dedupes on the (key, baseUrl) composite.
func (r *KeyRegistry) findLocked(key, baseURL string) *domain.Credential {
	for _, c := range r.keys {
		if c.Key == key && c.BaseURL == baseURL {
			return c
		}
	}
	return nil
}

// mutatedLocked drops memoised projections and schedules a persist.
func (r *KeyRegistry) mutatedLocked() {
	r.cachedSummary = nil
	r.cachedMasked = nil
	r.scheduleLocked()
}

func (r *KeyRegistry) scheduleLocked() {
	keys := make([]*domain.Credential, len(r.keys))
	for i, c := range r.keys {
		copied := *c
		keys[i] = &copied
	}
	snapshot := &KeysFile{Keys: keys, CurrentIndex: r.cursor}
	r.store.Schedule(keysFileName, func() any { return snapshot })
}
