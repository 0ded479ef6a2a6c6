package security

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ollagate/ollagate/internal/config"
	"github.com/ollagate/ollagate/internal/core/domain"
	"github.com/ollagate/ollagate/internal/logger"
	"github.com/ollagate/ollagate/theme"
)

func testLogger() *logger.StyledLogger {
	return logger.NewStyledLogger(slog.New(slog.DiscardHandler), theme.Default())
}

func TestRateLimiterGlobalCap(t *testing.T) {
	l := NewRateLimiter(config.RateLimitConfig{
		Global: config.RateLimitScopeConfig{Enabled: true, Max: 3, Window: time.Minute},
	}, testLogger())
	defer l.Stop()

	for i := 0; i < 3; i++ {
		d := l.Check("10.0.0.1", nil)
		require.True(t, d.Allowed)
	}

	d := l.Check("10.0.0.1", nil)
	assert.False(t, d.Allowed)
	assert.Equal(t, ScopeGlobal, d.Scope)
	assert.Equal(t, 3, d.Limit)
	assert.GreaterOrEqual(t, d.RetryAfter, 1)
}

func TestRateLimiterPerIPIsolation(t *testing.T) {
	l := NewRateLimiter(config.RateLimitConfig{
		IP: config.RateLimitScopeConfig{Enabled: true, Max: 2, Window: time.Minute},
	}, testLogger())
	defer l.Stop()

	for i := 0; i < 2; i++ {
		require.True(t, l.Check("10.0.0.1", nil).Allowed)
	}

	d := l.Check("10.0.0.1", nil)
	assert.False(t, d.Allowed)
	assert.Equal(t, ScopeIP, d.Scope)

	// a different source still has its own budget
	assert.True(t, l.Check("10.0.0.2", nil).Allowed)
}

func TestRateLimiterTokenScope(t *testing.T) {
	l := NewRateLimiter(config.RateLimitConfig{
		Token: config.RateLimitScopeConfig{Enabled: true, Max: 2, Window: time.Minute},
	}, testLogger())
	defer l.Stop()

	tok := &domain.AuthToken{ID: "tok-1"}

	require.True(t, l.Check("10.0.0.1", tok).Allowed)
	require.True(t, l.Check("10.0.0.1", tok).Allowed)

	d := l.Check("10.0.0.1", tok)
	assert.False(t, d.Allowed)
	assert.Equal(t, ScopeToken, d.Scope)
	assert.Equal(t, 2, d.Limit)

	assert.True(t, l.Check("10.0.0.1", &domain.AuthToken{ID: "tok-2"}).Allowed)
}

func TestRateLimiterTokenOverride(t *testing.T) {
	l := NewRateLimiter(config.RateLimitConfig{
		Token: config.RateLimitScopeConfig{Enabled: true, Max: 100, Window: time.Minute},
	}, testLogger())
	defer l.Stop()

	tok := &domain.AuthToken{ID: "tok-1", RateLimitMax: 1, RateLimitWindowMs: 60_000}

	require.True(t, l.Check("10.0.0.1", tok).Allowed)

	d := l.Check("10.0.0.1", tok)
	assert.False(t, d.Allowed)
	assert.Equal(t, ScopeToken, d.Scope)
	assert.Equal(t, 1, d.Limit)
}

func TestRateLimiterDisabledScopesAllow(t *testing.T) {
	l := NewRateLimiter(config.RateLimitConfig{}, testLogger())
	defer l.Stop()

	for i := 0; i < 50; i++ {
		require.True(t, l.Check("10.0.0.1", &domain.AuthToken{ID: "tok-1"}).Allowed)
	}
}

func TestRateLimiterUpdateConfig(t *testing.T) {
	l := NewRateLimiter(config.RateLimitConfig{}, testLogger())
	defer l.Stop()

	require.True(t, l.Check("10.0.0.1", nil).Allowed)

	l.UpdateConfig(config.RateLimitConfig{
		Global: config.RateLimitScopeConfig{Enabled: true, Max: 1, Window: time.Minute},
	})

	require.True(t, l.Check("10.0.0.1", nil).Allowed)
	assert.False(t, l.Check("10.0.0.1", nil).Allowed)
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	l := NewRateLimiter(config.RateLimitConfig{
		Global: config.RateLimitScopeConfig{Enabled: true, Max: 1, Window: 50 * time.Millisecond},
	}, testLogger())
	defer l.Stop()

	require.True(t, l.Check("10.0.0.1", nil).Allowed)
	require.False(t, l.Check("10.0.0.1", nil).Allowed)

	time.Sleep(60 * time.Millisecond)
	assert.True(t, l.Check("10.0.0.1", nil).Allowed)
}

func TestRateLimiterStopIdempotent(t *testing.T) {
	l := NewRateLimiter(config.RateLimitConfig{}, testLogger())
	l.Stop()
	l.Stop()
}
