/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package ratelimit implements the controller-facing token bucket
// (C2): capacity = refill-per-minute / 60, refilled continuously,
// thread-safe, shared across all device clients under a single
// orchestrator instance. Built directly on golang.org/x/time/rate
// rather than hand-rolling a bucket, since the pack already carries
// x/time as a dependency and it is the idiomatic Go token bucket.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter is a thread-safe, continuously-refilled token bucket.
type Limiter struct {
	rl *rate.Limiter
}

// New builds a Limiter refilling perMinute tokens per minute. A
// perMinute of 0 or less means unlimited (direct-to-device clients may
// run unrate-limited per spec §4.2).
func New(perMinute int) *Limiter {
	if perMinute <= 0 {
		return &Limiter{rl: rate.NewLimiter(rate.Inf, 1)}
	}
	perSecond := float64(perMinute) / 60.0
	burst := perMinute / 60
	if burst < 1 {
		burst = 1
	}
	return &Limiter{rl: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Acquire obtains one token. If blocking is true it waits (honoring
// ctx cancellation) until a token is available; otherwise it returns
// immediately, reporting whether a token was available right now.
func (l *Limiter) Acquire(ctx context.Context, blocking bool) (bool, error) {
	if !blocking {
		return l.rl.Allow(), nil
	}
	if err := l.rl.Wait(ctx); err != nil {
		return false, err
	}
	return true, nil
}
