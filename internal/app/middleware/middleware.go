// Package middleware implements the admission chain that fronts every /v1
// route: request identity, IP filtering, rate limiting and bearer auth.
package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"github.com/ollagate/ollagate/internal/adapter/auth"
	"github.com/ollagate/ollagate/internal/adapter/security"
	"github.com/ollagate/ollagate/internal/core/domain"
	"github.com/ollagate/ollagate/internal/logger"
	"github.com/ollagate/ollagate/internal/util"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type contextKey int

const (
	requestIDKey contextKey = iota
	clientIPKey
	tokenKey
)

// RequestID returns the id assigned to this request, empty outside the chain.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ClientIP returns the normalized client address resolved by the chain.
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// Token returns the authenticated token, nil for legacy-secret or open mode.
func Token(ctx context.Context) *domain.AuthToken {
	t, _ := ctx.Value(tokenKey).(*domain.AuthToken)
	return t
}

// Chain wires the admission gates in their fixed order: request id, access
// filter, rate limiter, bearer auth.
type Chain struct {
	access  *security.AccessController
	limiter *security.RateLimiter
	tokens  *auth.TokenRegistry
	logger  *logger.StyledLogger

	legacySecret string
	trustProxy   bool
	trustedCIDRs []*net.IPNet

	activeConns atomic.Int64
}

func NewChain(access *security.AccessController, limiter *security.RateLimiter, tokens *auth.TokenRegistry, legacySecret string, trustProxy bool, trustedCIDRs []*net.IPNet, styledLogger *logger.StyledLogger) *Chain {
	return &Chain{
		access:       access,
		limiter:      limiter,
		tokens:       tokens,
		logger:       styledLogger,
		legacySecret: legacySecret,
		trustProxy:   trustProxy,
		trustedCIDRs: trustedCIDRs,
	}
}

// ActiveConnections reports the number of requests currently inside the chain.
func (c *Chain) ActiveConnections() int64 {
	return c.activeConns.Load()
}

func (c *Chain) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := util.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)

		clientIP := util.NormalizeIP(util.GetClientIP(r, c.trustProxy, c.trustedCIDRs))

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		ctx = context.WithValue(ctx, clientIPKey, clientIP)

		if !c.access.IsAllowed(clientIP) {
			c.logger.Warn("Request blocked by IP filter", "request_id", requestID, "client_ip", clientIP)
			writeError(w, domain.NewAccessDeniedError("access denied"))
			return
		}

		bearer := extractBearer(r)
		var token *domain.AuthToken
		var authFailure string
		if c.tokens.HasTokens() {
			if bearer == "" {
				authFailure = "missing token"
			} else {
				result := c.tokens.ValidateToken(bearer)
				if result.Valid {
					token = result.Token
				} else {
					authFailure = result.Error
				}
			}
		} else if c.legacySecret != "" && bearer != c.legacySecret {
			authFailure = "invalid token"
		}

		decision := c.limiter.Check(clientIP, token)
		if !decision.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			c.logger.Warn("Rate limit exceeded",
				"request_id", requestID,
				"client_ip", clientIP,
				"scope", decision.Scope,
				"retry_after", decision.RetryAfter)
			writeError(w, domain.NewRateLimitError("rate limit exceeded ("+decision.Scope+")"))
			return
		}

		if authFailure != "" {
			c.logger.Warn("Authentication failed", "request_id", requestID, "client_ip", clientIP, "reason", authFailure)
			writeError(w, domain.NewAuthError(authFailure))
			return
		}

		if token != nil && !c.tokens.CheckIPAccess(token, clientIP) {
			c.logger.Warn("Token rejected by IP scope", "request_id", requestID, "client_ip", clientIP, "token", token.Name)
			writeError(w, domain.NewAccessDeniedError("access denied"))
			return
		}

		if token != nil {
			ctx = context.WithValue(ctx, tokenKey, token)
		}

		c.activeConns.Add(1)
		defer c.activeConns.Add(-1)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractBearer pulls the credential out of the Authorization header. Both
// "Bearer <token>" (scheme case-insensitive) and a bare header value are
// accepted.
func extractBearer(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

func writeError(w http.ResponseWriter, gerr *domain.GatewayError) {
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
