// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package server

import (
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	coverr "github.com/coverly-dev/coverly/pkg/errors"
)

const (
	defaultMaxVisitors  = 10000
	visitorStaleAfter   = 10 * time.Minute
	visitorSweepEvery   = 5 * time.Minute
	rateLimitedResponse = `{"title":"Too Many Requests","status":429,"detail":"rate limit exceeded"}`
)

// RateLimitConfig configures per-IP rate limiting. Every upload and search
// costs embedding calls, so the API is limited per client.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per IP. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	// MaxVisitors caps the number of tracked IPs; the least recently seen
	// are evicted first. Zero selects the default.
	MaxVisitors int
}

// Validate checks the config and applies defaults.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return coverr.Errorf(coverr.CodeServerConfigInvalid,
			"rate limit requests per second must not be negative (got %g)", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return coverr.Errorf(coverr.CodeServerConfigInvalid,
			"rate limit burst must be positive when rate is set (got burst=%d, rate=%g)", c.Burst, c.RequestsPerSecond)
	}
	if c.MaxVisitors < 0 {
		return coverr.Errorf(coverr.CodeServerConfigInvalid,
			"rate limit max visitors must not be negative (got %d)", c.MaxVisitors)
	}
	if c.MaxVisitors == 0 {
		c.MaxVisitors = defaultMaxVisitors
	}
	return nil
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitors tracks one token bucket per client IP.
type visitors struct {
	mu   sync.Mutex
	cfg  RateLimitConfig
	byIP map[string]*visitor
}

func (v *visitors) allow(ip string, now time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	vis, ok := v.byIP[ip]
	if !ok {
		vis = &visitor{limiter: rate.NewLimiter(rate.Limit(v.cfg.RequestsPerSecond), v.cfg.Burst)}
		v.byIP[ip] = vis
	}
	vis.lastSeen = now
	return vis.limiter.AllowN(now, 1)
}

// sweep drops stale visitors, then the oldest ones beyond MaxVisitors.
func (v *visitors) sweep(now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()

	type seen struct {
		ip   string
		last time.Time
	}
	live := make([]seen, 0, len(v.byIP))
	for ip, vis := range v.byIP {
		if now.Sub(vis.lastSeen) > visitorStaleAfter {
			delete(v.byIP, ip)
			continue
		}
		live = append(live, seen{ip: ip, last: vis.lastSeen})
	}

	excess := len(live) - v.cfg.MaxVisitors
	if v.cfg.MaxVisitors <= 0 || excess <= 0 {
		return
	}
	slices.SortFunc(live, func(a, b seen) int { return a.last.Compare(b.last) })
	for _, s := range live[:excess] {
		delete(v.byIP, s.ip)
	}
	slog.Warn("rate limiter visitor cap enforced", "evicted", excess, "max_visitors", v.cfg.MaxVisitors)
}

// rateLimitMiddleware enforces per-IP limits on everything but /health.
// It passes requests through when cfg.RequestsPerSecond is zero. done stops
// the sweeper goroutine.
func rateLimitMiddleware(cfg RateLimitConfig, done <-chan struct{}) func(http.Handler) http.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	v := &visitors{cfg: cfg, byIP: make(map[string]*visitor)}
	go func() {
		ticker := time.NewTicker(visitorSweepEvery)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				v.sweep(now)
			case <-done:
				return
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			// RealIP runs first, so RemoteAddr already reflects the client.
			ip := clientIP(r.RemoteAddr)
			if !v.allow(ip, time.Now()) {
				slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/problem+json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(rateLimitedResponse))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
