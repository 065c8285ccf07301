package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/omzoxima/adminpannelbackend/logger"
	"github.com/omzoxima/adminpannelbackend/security"
)

// client tracks one caller's recent requests and block state.
type client struct {
	requests     []time.Time
	blockedUntil time.Time
}

// Limiter is a sliding-window request counter with escalating blocks. A
// caller exceeding max requests inside window is blocked for
// blockFactor*window; while blocked the window is not re-evaluated.
//
// State lives in this process only. Running multiple instances
// under-enforces the limit; that is a known deployment limitation.
type Limiter struct {
	mu          sync.Mutex
	clients     map[string]*client
	window      time.Duration
	max         int
	blockFactor int
	now         func() time.Time
	ops         int // Allow calls since the last idle-entry sweep
}

// sweepInterval is how many Allow calls pass between idle-entry sweeps.
const sweepInterval = 1024

// New creates a limiter allowing max requests per window, blocking offenders
// for blockFactor times the window.
func New(window time.Duration, max, blockFactor int) *Limiter {
	return &Limiter{
		clients:     make(map[string]*client),
		window:      window,
		max:         max,
		blockFactor: blockFactor,
		now:         time.Now,
	}
}

// Allow records a request for key and reports whether it may proceed. When
// rejected, retryAfter is how long the caller should wait.
func (l *Limiter) Allow(key string) (allowed bool, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.ops++
	if l.ops >= sweepInterval {
		l.ops = 0
		l.evictIdle(now)
	}

	c, ok := l.clients[key]
	if !ok {
		c = &client{}
		l.clients[key] = c
	}

	// An active block short-circuits everything else
	if now.Before(c.blockedUntil) {
		return false, c.blockedUntil.Sub(now)
	}

	// Prune timestamps that fell out of the window
	kept := c.requests[:0]
	for _, ts := range c.requests {
		if now.Sub(ts) < l.window {
			kept = append(kept, ts)
		}
	}
	c.requests = kept

	if len(c.requests) >= l.max {
		block := time.Duration(l.blockFactor) * l.window
		c.blockedUntil = now.Add(block)
		c.requests = nil
		return false, block
	}

	c.requests = append(c.requests, now)
	return true, 0
}

// evictIdle drops entries with no in-window requests and no active block, so
// the map does not grow with every distinct client ever seen. Called with mu
// held.
func (l *Limiter) evictIdle(now time.Time) {
	for key, c := range l.clients {
		if now.Before(c.blockedUntil) {
			continue
		}
		idle := true
		for _, ts := range c.requests {
			if now.Sub(ts) < l.window {
				idle = false
				break
			}
		}
		if idle {
			delete(l.clients, key)
		}
	}
}

// clientKey picks the limiter key for a request: the device fingerprint when
// a valid device header is present, otherwise the network origin.
func clientKey(r *http.Request, guard *security.DeviceGuard) string {
	if deviceID := r.Header.Get("X-Device-ID"); deviceID != "" && security.ValidDeviceID(deviceID) {
		return guard.Fingerprint(deviceID)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware enforces the limiter on every request except health checks.
func (l *Limiter) Middleware(guard *security.DeviceGuard, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		key := clientKey(r, guard)
		allowed, retryAfter := l.Allow(key)
		if !allowed {
			seconds := int(retryAfter.Seconds() + 0.5)
			if seconds < 1 {
				seconds = 1
			}
			logger.Warnf("Rate limit exceeded for client %s, retry after %ds", key, seconds)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprintf(w, `{"error":"too many requests","kind":"rate_limited","retryAfter":%d}`, seconds)
			return
		}

		next.ServeHTTP(w, r)
	})
}
