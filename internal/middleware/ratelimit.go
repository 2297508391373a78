package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	authPathPrefix = "/api/auth"

	staleClientAfter = 10 * time.Minute
	sweepThreshold   = 1000
)

type bucketClass int

const (
	generalBucket bucketClass = iota
	authBucket
)

// clientBuckets holds one token bucket per class for a single client address.
type clientBuckets struct {
	byClass  [2]*rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware applies per-client token buckets. Authentication
// endpoints draw from a separate, tighter bucket.
type RateLimitMiddleware struct {
	generalRPM int
	authRPM    int
	now        func() time.Time

	mu      sync.Mutex
	clients map[string]*clientBuckets
}

func NewRateLimitMiddleware(generalRPM int, authRPM int) *RateLimitMiddleware {
	if generalRPM <= 0 {
		generalRPM = 100
	}
	if authRPM <= 0 {
		authRPM = 20
	}

	return &RateLimitMiddleware{
		generalRPM: generalRPM,
		authRPM:    authRPM,
		now:        time.Now,
		clients:    make(map[string]*clientBuckets),
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		class := generalBucket
		if strings.HasPrefix(strings.ToLower(r.URL.Path), authPathPrefix) {
			class = authBucket
		}

		if !m.allow(extractClientIP(r), class) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) allow(clientIP string, class bucketClass) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	buckets, ok := m.clients[clientIP]
	if !ok {
		m.sweepLocked(now)
		buckets = &clientBuckets{byClass: [2]*rate.Limiter{
			generalBucket: perMinute(m.generalRPM),
			authBucket:    perMinute(m.authRPM),
		}}
		m.clients[clientIP] = buckets
	}
	buckets.lastSeen = now

	return buckets.byClass[class].AllowN(now, 1)
}

// sweepLocked drops idle clients once the table grows past sweepThreshold.
func (m *RateLimitMiddleware) sweepLocked(now time.Time) {
	if len(m.clients) < sweepThreshold {
		return
	}

	cutoff := now.Add(-staleClientAfter)
	for ip, buckets := range m.clients {
		if buckets.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
		}
	}
}

func perMinute(rpm int) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
}

// extractClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the socket address.
func extractClientIP(r *http.Request) string {
	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	if addr == "" {
		return "unknown"
	}
	return addr
}
