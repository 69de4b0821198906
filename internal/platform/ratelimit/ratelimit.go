// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

/*
Package ratelimit implements the per-action auth rate limiter.

Unlike the per-IP token bucket at the HTTP edge, this limiter tracks
fixed windows per composite "action:identity" key (login attempts per
email, reset requests per IP, and so on) and applies a block penalty once
a window's budget is exhausted.

Architecture:

  - Injected component: constructed at process start, swept periodically,
    torn down via [Limiter.Stop]. No ambient package state, so tests can
    build isolated instances.
  - Atomic per key: a single mutex guards the counter map, so two
    concurrent requests can never both observe "allowed" one attempt past
    the threshold.
*/
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Rule describes the budget for one action.
type Rule struct {
	// Limit is the number of attempts allowed inside one window.
	Limit int
	// Window is the counting period.
	Window time.Duration
	// Block is how long the key is locked out after exceeding the limit.
	Block time.Duration
}

// Result is the outcome of an [Limiter.Allow] check.
type Result struct {
	// Allowed reports whether the attempt may proceed.
	Allowed bool
	// RetryAfter is how long the caller must wait when not allowed.
	RetryAfter time.Duration
}

// entry is the mutable per-key state.
type entry struct {
	count        int
	windowStart  time.Time
	blockedUntil time.Time
}

// Limiter is a process-wide sliding-window rate limiter keyed by
// (action, identity).
type Limiter struct {
	mu      sync.Mutex
	rules   map[string]Rule
	entries map[string]*entry

	sweepEvery time.Duration
	done       chan struct{}
	stopOnce   sync.Once

	// now is injectable for tests.
	now func() time.Time
}

// DefaultRules returns the per-action budgets for the identity surface.
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		ActionLogin:    {Limit: 10, Window: 5 * time.Minute, Block: 15 * time.Minute},
		ActionRegister: {Limit: 5, Window: time.Hour, Block: time.Hour},
		ActionForgot:   {Limit: 3, Window: time.Hour, Block: time.Hour},
		ActionResend:   {Limit: 3, Window: time.Hour, Block: time.Hour},
		ActionProof:    {Limit: 20, Window: 5 * time.Minute, Block: 15 * time.Minute},
		ActionSSO:      {Limit: 30, Window: 5 * time.Minute, Block: 5 * time.Minute},
	}
}

// Well-known action names.
const (
	ActionLogin    = "login"
	ActionRegister = "register"
	ActionForgot   = "forgot_password"
	ActionResend   = "resend_verification"
	ActionProof    = "proof"
	ActionSSO      = "sso"
)

// defaultSweepInterval bounds the memory held by stale keys.
const defaultSweepInterval = 5 * time.Minute

// New constructs a Limiter with the given rules and starts its sweep loop.
func New(rules map[string]Rule) *Limiter {
	limiter := &Limiter{
		rules:      rules,
		entries:    make(map[string]*entry),
		sweepEvery: defaultSweepInterval,
		done:       make(chan struct{}),
		now:        time.Now,
	}

	go limiter.sweepLoop()
	return limiter
}

// Allow records an attempt for (action, identity) and reports whether it
// may proceed. Unknown actions are always allowed — missing a rule must
// fail open for availability, not lock users out.
func (l *Limiter) Allow(action, identity string) Result {
	rule, known := l.rules[action]
	if !known {
		return Result{Allowed: true}
	}

	key := fmt.Sprintf("%s:%s", action, identity)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	state, found := l.entries[key]
	if !found {
		state = &entry{windowStart: now}
		l.entries[key] = state
	}

	// 1. Active block takes precedence over everything.
	if state.blockedUntil.After(now) {
		return Result{Allowed: false, RetryAfter: state.blockedUntil.Sub(now)}
	}

	// 2. Window rollover resets the counter.
	if now.Sub(state.windowStart) >= rule.Window {
		state.count = 0
		state.windowStart = now
	}

	// 3. Count this attempt and check the budget.
	state.count++
	if state.count > rule.Limit {
		state.blockedUntil = now.Add(rule.Block)
		return Result{Allowed: false, RetryAfter: rule.Block}
	}

	return Result{Allowed: true}
}

// Reset clears the state for (action, identity). Called after a successful
// login so earlier failed attempts do not linger against the user.
func (l *Limiter) Reset(action, identity string) {
	key := fmt.Sprintf("%s:%s", action, identity)

	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// Stop terminates the sweep loop. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// sweepLoop periodically evicts stale entries to bound memory.
func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.done:
			return
		}
	}
}

// sweep removes entries whose window and block have both lapsed.
func (l *Limiter) sweep() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, state := range l.entries {
		windowStale := now.Sub(state.windowStart) >= l.maxWindow()
		if windowStale && !state.blockedUntil.After(now) {
			delete(l.entries, key)
		}
	}
}

// maxWindow returns the longest configured window, the safe staleness bound.
func (l *Limiter) maxWindow() time.Duration {
	longest := time.Minute
	for _, rule := range l.rules {
		if rule.Window > longest {
			longest = rule.Window
		}
	}
	return longest
}
