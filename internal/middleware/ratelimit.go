package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RealIP resolves the client address behind proxies: Cloudflare's
// CF-Connecting-IP first, then the first hop of X-Forwarded-For, then
// RemoteAddr.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(ip)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

type window struct {
	hits    int
	resetAt time.Time
}

// RateLimiter is a fixed-window in-memory limiter. The pairing and setup
// endpoints sit behind it so invite codes cannot be brute-forced.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{windows: make(map[string]*window)}
}

// Allow records a hit for key and reports whether it is still within limit
// for the current window.
func (rl *RateLimiter) Allow(key string, limit int, size time.Duration) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w := rl.windows[key]
	if w == nil || now.After(w.resetAt) {
		rl.windows[key] = &window{hits: 1, resetAt: now.Add(size)}
		return true
	}
	w.hits++
	return w.hits <= limit
}

// Cleanup drops windows whose reset time has passed.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, w := range rl.windows {
		if now.After(w.resetAt) {
			delete(rl.windows, key)
		}
	}
}

// RateLimit limits requests keyed by keyFunc, answering 429 once a key
// exhausts its window.
func RateLimit(limiter *RateLimiter, keyFunc func(*http.Request) string, limit int, size time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(keyFunc(r), limit, size) {
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
