package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleEviction is how long an unused per-user limiter is kept
const idleEviction = 2 * time.Hour

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter throttles generation requests per user with a token bucket each
type Limiter struct {
	mu       sync.Mutex
	users    map[string]*userLimiter
	limit    rate.Limit
	burst    int
	disabled bool
	now      func() time.Time
}

// NewLimiter allows requestsPerHour per user with the given burst. Zero requestsPerHour disables limiting.
func NewLimiter(requestsPerHour, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{
		users: make(map[string]*userLimiter),
		burst: burst,
		now:   time.Now,
	}
	if requestsPerHour <= 0 {
		l.disabled = true
		return l
	}
	l.limit = rate.Every(time.Hour / time.Duration(requestsPerHour))
	return l
}

// Allow reports whether userID may start another request now
func (l *Limiter) Allow(userID string) bool {
	if l.disabled {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	u, ok := l.users[userID]
	if !ok {
		u = &userLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.users[userID] = u
	}
	u.lastSeen = now
	return u.limiter.AllowN(now, 1)
}

// Prune drops limiters idle for longer than the eviction window and returns how many were removed
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idleEviction)
	removed := 0
	for id, u := range l.users {
		if u.lastSeen.Before(cutoff) {
			delete(l.users, id)
			removed++
		}
	}
	return removed
}
