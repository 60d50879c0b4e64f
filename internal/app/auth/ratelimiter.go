package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	AllowableGuestRequestPeriod = time.Second * 5
)

// RateLimiter allows one guest token per IP per AllowableGuestRequestPeriod.
type RateLimiter struct {
	mu            sync.Mutex
	guestRequests map[string]*rate.Limiter
	every         rate.Limit
}

func NewRateLimiter() *RateLimiter {
	return NewRateLimiterEvery(AllowableGuestRequestPeriod)
}

func NewRateLimiterEvery(period time.Duration) *RateLimiter {
	return &RateLimiter{
		guestRequests: make(map[string]*rate.Limiter),
		every:         rate.Every(period),
	}
}

func (l *RateLimiter) DenyGuestRequest(ip string) bool {
	l.mu.Lock()
	lim, ok := l.guestRequests[ip]
	if !ok {
		lim = rate.NewLimiter(l.every, 1)
		l.guestRequests[ip] = lim
	}
	l.mu.Unlock()
	return !lim.Allow()
}
