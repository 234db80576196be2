package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

type bucket struct {
	count int
	until time.Time
}

// rateLimiter counts requests per client IP in fixed windows. Buckets reset
// when their window elapses rather than sliding. Expired buckets are swept
// at most once per window so the map tracks only recently seen clients.
type rateLimiter struct {
	limit   int
	window  time.Duration
	mu      sync.Mutex
	buckets map[string]*bucket
	sweepAt time.Time
}

func (rl *rateLimiter) allow(ip string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.After(rl.sweepAt) {
		for key, b := range rl.buckets {
			if now.After(b.until) {
				delete(rl.buckets, key)
			}
		}
		rl.sweepAt = now.Add(rl.window)
	}

	b, ok := rl.buckets[ip]
	if !ok || now.After(b.until) {
		b = &bucket{until: now.Add(rl.window)}
		rl.buckets[ip] = b
	}
	if b.count >= rl.limit {
		return false
	}
	b.count++
	return true
}

// RateLimit caps requests per client IP to limit within each window. Over
// the cap the request is rejected with 429 and the standard error body.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	rl := &rateLimiter{
		limit:   limit,
		window:  per,
		buckets: make(map[string]*bucket),
		sweepAt: time.Now().Add(per),
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.allow(clientIPForRateLimit(r), time.Now()) {
				writeJSONError(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIPForRateLimit(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return r.RemoteAddr
}
