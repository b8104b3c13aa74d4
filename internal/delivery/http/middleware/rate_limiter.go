package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	rateWindow      = time.Minute
	staleAfter      = 2 * rateWindow
	cleanupInterval = 5 * time.Minute
)

type rateWindowEntry struct {
	count       int
	windowStart time.Time
}

// ipLimiter counts requests per client IP in fixed one-minute windows.
type ipLimiter struct {
	mu      sync.Mutex
	max     int
	clients map[string]*rateWindowEntry
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.clients[ip]
	if !ok || now.Sub(entry.windowStart) > rateWindow {
		l.clients[ip] = &rateWindowEntry{count: 1, windowStart: now}
		return true
	}
	if entry.count >= l.max {
		return false
	}
	entry.count++
	return true
}

func (l *ipLimiter) evictStale() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for ip, entry := range l.clients {
		if now.Sub(entry.windowStart) > staleAfter {
			delete(l.clients, ip)
		}
	}
}

// RateLimiter enforces maxRequests per minute per client IP. Rejected
// requests get a 429 and never reach the judge pipeline.
func RateLimiter(maxRequests int) gin.HandlerFunc {
	limiter := &ipLimiter{
		max:     maxRequests,
		clients: make(map[string]*rateWindowEntry),
	}

	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for range ticker.C {
			limiter.evictStale()
		}
	}()

	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded, try again later",
			})
			return
		}
		c.Next()
	}
}
