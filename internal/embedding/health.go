// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package embedding

import (
	"sync"
	"time"

	coverr "github.com/coverly-dev/coverly/pkg/errors"
	"github.com/coverly-dev/coverly/pkg/health"
)

const (
	// DefaultHealthCooldown is how long the provider rests after it trips.
	DefaultHealthCooldown = 30 * time.Second

	// DefaultFailureThreshold is the number of consecutive upstream failures
	// that trips the provider. Single throttled batches do not.
	DefaultFailureThreshold = 3

	// maxCooldownShift caps escalation at 8x the base cooldown.
	maxCooldownShift = 3
)

// HealthTracker decides whether embedding requests may reach the provider.
// It trips after threshold consecutive upstream failures and rests for a
// cooldown. A failed trial call after the rest trips it again with double the
// cooldown, up to 8x. Any success resets it.
type HealthTracker struct {
	mu sync.RWMutex

	cooldown  time.Duration
	threshold int
	now       func() time.Time

	consecutive  int64
	total        int64
	trips        int
	lastFailure  time.Time
	lastCode     coverr.Code
	restingUntil time.Time // zero while closed
}

// NewHealthTracker creates a tracker that starts available.
func NewHealthTracker(cooldown time.Duration, threshold int) (*HealthTracker, error) {
	if cooldown <= 0 {
		return nil, coverr.Errorf(coverr.CodeEmbeddingConfigInvalid,
			"health tracker cooldown must be positive, got %s", cooldown)
	}
	if threshold <= 0 {
		return nil, coverr.Errorf(coverr.CodeEmbeddingConfigInvalid,
			"health tracker failure threshold must be positive, got %d", threshold)
	}
	return &HealthTracker{cooldown: cooldown, threshold: threshold, now: time.Now}, nil
}

// availableLocked requires h.mu held.
func (h *HealthTracker) availableLocked() bool {
	return h.restingUntil.IsZero() || !h.now().Before(h.restingUntil)
}

// IsHealthy reports whether requests may go upstream: the tracker has not
// tripped, or its cooldown has elapsed and a trial call is allowed.
func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.availableLocked()
}

// RecordSuccess closes the tracker and resets escalation.
func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutive = 0
	h.trips = 0
	h.restingUntil = time.Time{}
}

// RecordFailure counts an upstream failure and keeps its error code. It
// reports whether this failure tripped the tracker.
func (h *HealthTracker) RecordFailure(err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.total++
	h.consecutive++
	h.lastFailure = h.now()
	h.lastCode = coverr.CodeOf(err)

	if h.consecutive < int64(h.threshold) {
		return false
	}
	h.trips++
	h.restingUntil = h.lastFailure.Add(h.cooldown << min(h.trips-1, maxCooldownShift))
	return true
}

// SetNowFunc overrides the clock.
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.now = fn
	h.mu.Unlock()
}

// Metrics returns a point-in-time snapshot for /health and the status command.
func (h *HealthTracker) Metrics() health.Metrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := health.Metrics{
		FailureCount:        h.total,
		ConsecutiveFailures: h.consecutive,
		LastErrorCode:       string(h.lastCode),
		Available:           h.availableLocked(),
	}
	if h.total > 0 {
		t := h.lastFailure
		m.LastFailureAt = &t
	}
	if !h.restingUntil.IsZero() {
		t := h.restingUntil
		m.CooldownUntil = &t
	}
	return m
}
