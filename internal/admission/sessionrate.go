package admission

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SessionCreationLimiter enforces a per-IP limit on new session creation
// (default: 10/hour), independent of the per-IP connection cap. Each IP
// gets its own token bucket so independent IPs never share state.
type SessionCreationLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

// NewSessionCreationLimiter builds a limiter allowing perHour sessions per
// IP, refilling continuously rather than resetting hourly.
func NewSessionCreationLimiter(perHour int) *SessionCreationLimiter {
	return &SessionCreationLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Every(time.Hour / time.Duration(perHour)),
		burst:    perHour,
	}
}

// Allow reports whether ip may create a new session now.
func (s *SessionCreationLimiter) Allow(ip string) bool {
	s.mu.Lock()
	lim, ok := s.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(s.r, s.burst)
		s.limiters[ip] = lim
	}
	s.mu.Unlock()
	return lim.Allow()
}
