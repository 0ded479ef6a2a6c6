// Package auth owns the client-facing bearer tokens: creation, validation,
// scoping and usage accounting. Lookup stays O(1) by plaintext via a
// concurrent map; mutations serialise through the registry lock.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/ollagate/ollagate/internal/core/domain"
	"github.com/ollagate/ollagate/internal/core/ports"
	"github.com/ollagate/ollagate/internal/logger"
	"github.com/ollagate/ollagate/internal/util/pattern"
)

const (
	tokensFileName = "tokens"
	tokenPrefix    = "sk-o2o-"
	tokenHexLen    = 48
)

// TokensFile is the persisted shape of the token list plus per-day usage.
type TokensFile struct {
	Tokens     []*domain.AuthToken `json:"tokens"`
	UsageStats domain.UsageStats   `json:"usageStats"`
}

// CreateOptions carries the operator-supplied fields for a new token.
type CreateOptions struct {
	Name              string   `json:"name"`
	ExpiresAt         string   `json:"expiresAt,omitempty"`
	Quota             int64    `json:"quota,omitempty"`
	AllowedModels     []string `json:"allowedModels,omitempty"`
	AllowedIPs        []string `json:"allowedIPs,omitempty"`
	RateLimitMax      int      `json:"rateLimitMax,omitempty"`
	RateLimitWindowMs int64    `json:"rateLimitWindowMs,omitempty"`
}

// ValidationResult reports one bearer check.
type ValidationResult struct {
	Token *domain.AuthToken
	Error string
	Valid bool
}

// TokenRegistry owns auth tokens and their usage records.
type TokenRegistry struct {
	store  ports.StateStore
	logger *logger.StyledLogger

	byID    *xsync.Map[string, *domain.AuthToken]
	byPlain *xsync.Map[string, *domain.AuthToken]

	mu     sync.Mutex
	tokens []*domain.AuthToken
	usage  domain.UsageStats
}

func NewTokenRegistry(store ports.StateStore, styledLogger *logger.StyledLogger) (*TokenRegistry, error) {
	r := &TokenRegistry{
		store:   store,
		logger:  styledLogger,
		byID:    xsync.NewMap[string, *domain.AuthToken](),
		byPlain: xsync.NewMap[string, *domain.AuthToken](),
		usage:   make(domain.UsageStats),
	}

	var persisted TokensFile
	found, err := store.Load(tokensFileName, &persisted)
	if err != nil {
		return nil, err
	}
	if found {
		r.tokens = persisted.Tokens
		if persisted.UsageStats != nil {
			r.usage = persisted.UsageStats
		}
	}

	// one pass: rebuild lookups and catch overdue quota resets
	now := time.Now()
	dirty := false
	for _, t := range r.tokens {
		r.byID.Store(t.ID, t)
		r.byPlain.Store(t.Token, t)
		if resetQuotaIfDue(t, now) {
			dirty = true
		}
	}
	if dirty {
		r.scheduleLocked()
	}

	styledLogger.InfoWithCount("Loaded auth tokens", len(r.tokens))
	return r, nil
}

// CreateToken mints a token, storing both the plaintext and its SHA-256 hash.
func (r *TokenRegistry) CreateToken(opts CreateOptions) (*domain.AuthToken, error) {
	plain, err := generateTokenString()
	if err != nil {
		return nil, err
	}

	hash := sha256.Sum256([]byte(plain))
	t := &domain.AuthToken{
		ID:                uuid.NewString(),
		Token:             plain,
		TokenHash:         hex.EncodeToString(hash[:]),
		Name:              opts.Name,
		Enabled:           true,
		CreatedAt:         domain.Now(),
		ExpiresAt:         opts.ExpiresAt,
		Quota:             opts.Quota,
		AllowedModels:     opts.AllowedModels,
		AllowedIPs:        opts.AllowedIPs,
		RateLimitMax:      opts.RateLimitMax,
		RateLimitWindowMs: opts.RateLimitWindowMs,
	}
	if t.Quota > 0 {
		t.QuotaResetAt = domain.Timestamp(firstOfNextMonth(time.Now()))
	}

	r.mu.Lock()
	r.tokens = append(r.tokens, t)
	r.byID.Store(t.ID, t)
	r.byPlain.Store(t.Token, t)
	r.scheduleLocked()
	r.mu.Unlock()

	r.logger.Info("Created auth token", "name", t.Name, "id", t.ID)
	return t, nil
}

// ValidateToken checks a bearer string: existence, enabled, expiry, quota.
// The first failure wins.
func (r *TokenRegistry) ValidateToken(plain string) ValidationResult {
	t, ok := r.byPlain.Load(plain)
	if !ok {
		return ValidationResult{Error: "invalid token"}
	}

	now := time.Now()

	r.mu.Lock()
	if resetQuotaIfDue(t, now) {
		r.scheduleLocked()
	}
	enabled := t.Enabled
	expiresAt := t.ExpiresAt
	quota, quotaUsed := t.Quota, t.QuotaUsed
	r.mu.Unlock()

	if !enabled {
		return ValidationResult{Error: "token disabled"}
	}
	if expiresAt != "" {
		if exp, err := time.Parse(time.RFC3339, expiresAt); err == nil && !exp.After(now) {
			return ValidationResult{Error: "token expired"}
		}
	}
	if quota > 0 && quotaUsed >= quota {
		return ValidationResult{Error: "quota exceeded"}
	}

	return ValidationResult{Valid: true, Token: t}
}

// CheckModelAccess reports whether the token may use the model. An empty
// allow-list permits everything; entries glob-match with *.
func (r *TokenRegistry) CheckModelAccess(t *domain.AuthToken, model string) bool {
	if t == nil || len(t.AllowedModels) == 0 {
		return true
	}
	for _, allowed := range t.AllowedModels {
		if pattern.MatchesGlob(model, allowed) {
			return true
		}
	}
	return false
}

// CheckIPAccess reports whether the (normalized) client IP is in the token's
// source list. An empty list permits everything; matching is exact.
func (r *TokenRegistry) CheckIPAccess(t *domain.AuthToken, ip string) bool {
	if t == nil || len(t.AllowedIPs) == 0 {
		return true
	}
	for _, allowed := range t.AllowedIPs {
		if allowed == ip {
			return true
		}
	}
	return false
}

// RecordUsage adds one request's token spend to the token counters and the
// per-day usage record.
func (r *TokenRegistry) RecordUsage(id string, promptTokens, completionTokens int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID.Load(id)
	if !ok {
		return
	}

	total := int64(promptTokens + completionTokens)
	t.TotalRequests++
	t.TotalTokens += total
	t.QuotaUsed += total
	t.LastUsed = domain.Now()

	date := time.Now().UTC().Format("2006-01-02")
	days, ok := r.usage[id]
	if !ok {
		days = make(map[string]*domain.UsageDay)
		r.usage[id] = days
	}
	day, ok := days[date]
	if !ok {
		day = &domain.UsageDay{}
		days[date] = day
	}
	day.Requests++
	day.PromptTokens += int64(promptTokens)
	day.CompletionTokens += int64(completionTokens)

	r.scheduleLocked()
}

// GetAggregateUsage sums usage across all tokens for the last N UTC days.
func (r *TokenRegistry) GetAggregateUsage(days int) domain.UsageDay {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format("2006-01-02")

	var agg domain.UsageDay
	for _, perDay := range r.usage {
		for date, d := range perDay {
			if date <= cutoff {
				continue
			}
			agg.Requests += d.Requests
			agg.PromptTokens += d.PromptTokens
			agg.CompletionTokens += d.CompletionTokens
		}
	}
	return agg
}

// TrimUsage drops per-day records older than the retention window.
func (r *TokenRegistry) TrimUsage(retentionDays int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format("2006-01-02")
	trimmed := false
	for id, perDay := range r.usage {
		for date := range perDay {
			if date < cutoff {
				delete(perDay, date)
				trimmed = true
			}
		}
		if len(perDay) == 0 {
			delete(r.usage, id)
		}
	}
	if trimmed {
		r.scheduleLocked()
	}
}

func (r *TokenRegistry) RemoveToken(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, t := range r.tokens {
		if t.ID == id {
			r.tokens = append(r.tokens[:i], r.tokens[i+1:]...)
			r.byID.Delete(id)
			r.byPlain.Delete(t.Token)
			delete(r.usage, id)
			r.scheduleLocked()
			return true
		}
	}
	return false
}

func (r *TokenRegistry) ToggleToken(id string) *domain.AuthToken {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID.Load(id)
	if !ok {
		return nil
	}
	t.Enabled = !t.Enabled
	r.scheduleLocked()
	return t
}

func (r *TokenRegistry) GetToken(id string) *domain.AuthToken {
	t, _ := r.byID.Load(id)
	return t
}

func (r *TokenRegistry) List() []*domain.AuthToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.AuthToken, len(r.tokens))
	copy(out, r.tokens)
	return out
}

// HasTokens reports whether token auth is configured at all; with no tokens
// the pipeline falls back to the legacy shared secret.
func (r *TokenRegistry) HasTokens() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens) > 0
}

func generateTokenString() (string, error) {
	var b [tokenHexLen / 2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return tokenPrefix + hex.EncodeToString(b[:]), nil
}

// resetQuotaIfDue zeroes quotaUsed once the reset instant passes. Idempotent:
// the next reset is always the first of the following month, UTC.
func resetQuotaIfDue(t *domain.AuthToken, now time.Time) bool {
	if t.Quota <= 0 || t.QuotaResetAt == "" {
		return false
	}
	resetAt, err := time.Parse(time.RFC3339, t.QuotaResetAt)
	if err != nil || resetAt.After(now) {
		return false
	}
	t.QuotaUsed = 0
	t.QuotaResetAt = domain.Timestamp(firstOfNextMonth(now))
	return true
}

func firstOfNextMonth(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

func (r *TokenRegistry) scheduleLocked() {
	tokens := make([]*domain.AuthToken, len(r.tokens))
	for i, t := range r.tokens {
		copied := *t
		tokens[i] = &copied
	}
	usage := make(domain.UsageStats, len(r.usage))
	for id, perDay := range r.usage {
		copiedDays := make(map[string]*domain.UsageDay, len(perDay))
		for date, d := range perDay {
			copied := *d
			copiedDays[date] = &copied
		}
		usage[id] = copiedDays
	}
	snapshot := &TokensFile{Tokens: tokens, UsageStats: usage}
	r.store.Schedule(tokensFileName, func() any { return snapshot })
}
