package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter decides whether an authenticated caller may proceed.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// TierLimit configures the request budget for one service tier.
type TierLimit struct {
	RequestsPerMinute int
}

// InProcessLimiter enforces fixed one-minute windows per subject, in
// memory. Suitable for single-instance deployments; a multi-replica
// gateway needs a shared store instead.
type InProcessLimiter struct {
	tiers      map[string]TierLimit
	defaultRPM int

	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	openedAt time.Time
	used     int
}

// NewInProcessLimiter builds a limiter with per-tier budgets. Tiers
// without an entry fall back to defaultRPM; a budget of zero or less
// means unlimited.
func NewInProcessLimiter(tiers map[string]TierLimit, defaultRPM int) *InProcessLimiter {
	return &InProcessLimiter{
		tiers:      tiers,
		defaultRPM: defaultRPM,
		windows:    make(map[string]*window),
	}
}

// Allow charges one request against the caller's window. Returns
// ErrTooManyRequests once the budget for the current window is spent.
func (l *InProcessLimiter) Allow(_ context.Context, identity *Identity) error {
	tier := identity.Tier
	if tier == "" {
		tier = "default"
	}

	budget := l.defaultRPM
	if limit, ok := l.tiers[tier]; ok {
		budget = limit.RequestsPerMinute
	}
	if budget <= 0 {
		return nil
	}

	key := identity.Subject + "/" + tier
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[key]
	if w == nil || now.Sub(w.openedAt) >= time.Minute {
		l.windows[key] = &window{openedAt: now, used: 1}
		l.pruneLocked(now)
		return nil
	}

	w.used++
	if w.used > budget {
		return ErrTooManyRequests
	}
	return nil
}

// pruneLocked drops windows that expired more than a minute ago so the
// map does not grow with the set of subjects ever seen.
func (l *InProcessLimiter) pruneLocked(now time.Time) {
	for key, w := range l.windows {
		if now.Sub(w.openedAt) >= 2*time.Minute {
			delete(l.windows, key)
		}
	}
}
