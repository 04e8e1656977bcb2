// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package server

import "time"

// NewVisitorsForTest exposes the per-IP limiter for white-box testing.
func NewVisitorsForTest(cfg RateLimitConfig) *visitors {
	return &visitors{cfg: cfg, byIP: make(map[string]*visitor)}
}

func (v *visitors) Allow(ip string, now time.Time) bool { return v.allow(ip, now) }

func (v *visitors) Sweep(now time.Time) { v.sweep(now) }

func (v *visitors) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.byIP)
}
