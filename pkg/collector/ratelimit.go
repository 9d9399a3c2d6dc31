package collector

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ipLimiter hands out one token bucket per client IP.
type ipLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(requestsPerMinute, burst int) *ipLimiter {
	return &ipLimiter{
		limit:    rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    burst,
		now:      time.Now,
		limiters: make(map[string]*clientLimiter),
	}
}

func (l *ipLimiter) Allow(ip string) bool {
	if parsed := net.ParseIP(ip); parsed != nil {
		ip = parsed.String()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	client, ok := l.limiters[ip]
	if !ok {
		client = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[ip] = client
	}
	client.lastSeen = now
	return client.limiter.AllowN(now, 1)
}

// cleanup forgets clients idle for longer than maxIdle.
func (l *ipLimiter) cleanup(maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxIdle)
	removed := 0
	for ip, client := range l.limiters {
		if client.lastSeen.Before(cutoff) {
			delete(l.limiters, ip)
			removed++
		}
	}
	return removed
}

func (l *ipLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
