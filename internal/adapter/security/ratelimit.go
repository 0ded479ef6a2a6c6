// Package security holds the request gates that run before any backend work:
// the sliding-window rate limiter and the IP access filter.
package security

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/ollagate/ollagate/internal/config"
	"github.com/ollagate/ollagate/internal/core/domain"
	"github.com/ollagate/ollagate/internal/logger"
)

const (
	ScopeGlobal = "global"
	ScopeIP     = "ip"
	ScopeToken  = "token"

	sweepInterval = 5 * time.Minute
)

// Decision is the outcome of one rate-limit check. On denial, Scope names the
// first scope that rejected and RetryAfter is whole seconds until the oldest
// stamp leaves the window.
type Decision struct {
	Scope      string
	Limit      int
	RetryAfter int
	Allowed    bool
}

type slidingWindow struct {
	mu         sync.Mutex
	stamps     []time.Time
	lastAccess time.Time
	window     time.Duration
}

// RateLimiter enforces three independent sliding windows: one global, one per
// client IP and one per auth token. Checks run in that order and the first
// denial wins.
type RateLimiter struct {
	logger *logger.StyledLogger

	cfgMu  sync.RWMutex
	global config.RateLimitScopeConfig
	ip     config.RateLimitScopeConfig
	token  config.RateLimitScopeConfig

	windows *xsync.Map[string, *slidingWindow]

	sweeper  *time.Ticker
	stop     chan struct{}
	stopOnce sync.Once
}

func NewRateLimiter(cfg config.RateLimitConfig, styledLogger *logger.StyledLogger) *RateLimiter {
	l := &RateLimiter{
		logger:  styledLogger,
		global:  cfg.Global,
		ip:      cfg.IP,
		token:   cfg.Token,
		windows: xsync.NewMap[string, *slidingWindow](),
		stop:    make(chan struct{}),
	}

	l.sweeper = time.NewTicker(sweepInterval)
	go l.sweepRoutine()

	return l
}

// Check runs the scope chain for one request. The token may be nil when the
// request authenticated via the legacy shared secret.
func (l *RateLimiter) Check(clientIP string, t *domain.AuthToken) Decision {
	now := time.Now()

	l.cfgMu.RLock()
	global, ip := l.global, l.ip
	l.cfgMu.RUnlock()

	if global.Enabled && global.Max > 0 {
		if d, ok := l.take(ScopeGlobal, global.Max, global.Window, now); !ok {
			d.Scope = ScopeGlobal
			return d
		}
	}

	if ip.Enabled && ip.Max > 0 && clientIP != "" {
		if d, ok := l.take("ip:"+clientIP, ip.Max, ip.Window, now); !ok {
			d.Scope = ScopeIP
			return d
		}
	}

	if t != nil {
		max, window := l.tokenLimits(t)
		if max > 0 {
			if d, ok := l.take("token:"+t.ID, max, window, now); !ok {
				d.Scope = ScopeToken
				return d
			}
		}
	}

	return Decision{Allowed: true}
}

// tokenLimits resolves the effective per-token limit: a token's own override
// beats the configured scope, and an override without a window inherits the
// configured one.
func (l *RateLimiter) tokenLimits(t *domain.AuthToken) (int, time.Duration) {
	l.cfgMu.RLock()
	scope := l.token
	l.cfgMu.RUnlock()

	if t.RateLimitMax > 0 {
		window := scope.Window
		if t.RateLimitWindowMs > 0 {
			window = time.Duration(t.RateLimitWindowMs) * time.Millisecond
		}
		return t.RateLimitMax, window
	}
	if scope.Enabled {
		return scope.Max, scope.Window
	}
	return 0, 0
}

// UpdateConfig swaps in new scope limits, applied by config hot reload.
// Existing windows keep their stamps; the new caps apply from the next check.
func (l *RateLimiter) UpdateConfig(cfg config.RateLimitConfig) {
	l.cfgMu.Lock()
	l.global = cfg.Global
	l.ip = cfg.IP
	l.token = cfg.Token
	l.cfgMu.Unlock()
}

// take prunes the key's window and either records the request or denies it.
func (l *RateLimiter) take(key string, max int, window time.Duration, now time.Time) (Decision, bool) {
	if window <= 0 {
		window = time.Minute
	}

	w, _ := l.windows.LoadOrStore(key, &slidingWindow{window: window})

	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastAccess = now
	w.window = window

	cutoff := now.Add(-window)
	keep := w.stamps[:0]
	for _, s := range w.stamps {
		if s.After(cutoff) {
			keep = append(keep, s)
		}
	}
	w.stamps = keep

	if len(w.stamps) >= max {
		oldest := w.stamps[0]
		wait := oldest.Add(window).Sub(now)
		retry := int((wait + time.Second - 1) / time.Second)
		if retry < 1 {
			retry = 1
		}
		return Decision{Limit: max, RetryAfter: retry}, false
	}

	w.stamps = append(w.stamps, now)
	return Decision{Allowed: true, Limit: max}, true
}

func (l *RateLimiter) sweepRoutine() {
	for {
		select {
		case <-l.stop:
			return
		case <-l.sweeper.C:
			l.sweep(time.Now())
		}
	}
}

// sweep drops windows idle for more than twice their span.
func (l *RateLimiter) sweep(now time.Time) {
	l.windows.Range(func(key string, w *slidingWindow) bool {
		w.mu.Lock()
		idle := now.Sub(w.lastAccess)
		span := w.window
		w.mu.Unlock()

		if idle > 2*span {
			l.windows.Delete(key)
		}
		return true
	})
}

func (l *RateLimiter) Stop() {
	l.stopOnce.Do(func() {
		l.sweeper.Stop()
		close(l.stop)
	})
}
