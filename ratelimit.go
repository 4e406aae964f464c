package cortex

import (
	"sync"
	"time"
)

// Tier selects a client's rate-limit quota.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// RateDecision is the rate limiter verdict for one submission attempt.
type RateDecision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RateLimiter admits or rejects a submission for a client. It is a pure
// query and never returns an error.
type RateLimiter interface {
	Check(clientID string, tier Tier) RateDecision
}

// DefaultTierQuotas is the per-window request allowance by tier.
var DefaultTierQuotas = map[Tier]int{
	TierFree:       10,
	TierPro:        60,
	TierEnterprise: 600,
}

// TierLimiter is a fixed-window per-client rate limiter. Each client gets a
// fresh window of quota requests; the first request past the quota is denied
// with the time remaining in the window.
type TierLimiter struct {
	mu      sync.Mutex
	quotas  map[Tier]int
	window  time.Duration
	clients map[string]*clientWindow
	now     func() time.Time
}

type clientWindow struct {
	start time.Time
	count int
}

// NewTierLimiter creates a limiter with the given window. Nil quotas fall
// back to DefaultTierQuotas.
func NewTierLimiter(window time.Duration, quotas map[Tier]int) *TierLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if quotas == nil {
		quotas = DefaultTierQuotas
	}
	return &TierLimiter{
		quotas:  quotas,
		window:  window,
		clients: make(map[string]*clientWindow),
		now:     time.Now,
	}
}

// Check implements RateLimiter.
func (l *TierLimiter) Check(clientID string, tier Tier) RateDecision {
	quota, ok := l.quotas[tier]
	if !ok {
		quota = l.quotas[TierFree]
	}
	if quota <= 0 {
		return RateDecision{Allowed: false, RetryAfter: l.window}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.clients[clientID]
	if w == nil || now.Sub(w.start) >= l.window {
		w = &clientWindow{start: now}
		l.clients[clientID] = w
	}

	if w.count >= quota {
		return RateDecision{
			Allowed:    false,
			RetryAfter: l.window - now.Sub(w.start),
		}
	}

	w.count++
	return RateDecision{Allowed: true}
}
