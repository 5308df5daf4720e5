// Package ratelimit implements the interval/token rate limiter of spec
// §4.8: N operations per D, with a blocking Wait and a non-blocking
// ShouldThrottle probe, resetting the window on first use past its end.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter allows N operations per interval D. The window resets lazily:
// the first call observing that the interval has elapsed starts a fresh
// one, rather than a background ticker doing it eagerly.
type Limiter struct {
	mu sync.Mutex

	n        int
	interval time.Duration

	left     int
	windowAt time.Time
}

// New returns a Limiter permitting n operations per interval.
func New(n int, interval time.Duration) *Limiter {
	return &Limiter{
		n:        n,
		interval: interval,
		left:     n,
		windowAt: time.Now(),
	}
}

// Wait blocks until a token is available, sleeping out the remainder of
// the current window if it is exhausted, then consumes one token. It
// returns ctx.Err() if ctx is cancelled while waiting.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		elapsed := time.Since(l.windowAt)
		if elapsed > l.interval {
			l.reset()
		} else if l.left == 0 {
			remaining := l.interval - elapsed
			l.mu.Unlock()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(remaining):
			}
			continue
		}
		l.left--
		l.mu.Unlock()
		return nil
	}
}

// ShouldThrottle is a non-blocking probe: it reports whether a call made
// right now would have to wait, without consuming a token.
func (l *Limiter) ShouldThrottle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.windowAt) > l.interval {
		l.reset()
		return false
	}
	return l.left == 0
}

// reset starts a fresh window. Callers must hold l.mu.
func (l *Limiter) reset() {
	l.left = l.n
	l.windowAt = time.Now()
}

// Group is a named set of Limiters, one per resource (an order-placement
// ceiling distinct from a cancel ceiling distinct from a query ceiling),
// matching how each venue documents separate limits per endpoint class.
type Group struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
}

// NewGroup returns an empty Group.
func NewGroup() *Group {
	return &Group{limiters: make(map[string]*Limiter)}
}

// Set installs (or replaces) the limiter for resource.
func (g *Group) Set(resource string, l *Limiter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.limiters[resource] = l
}

// Get returns the limiter for resource, or nil if none was configured —
// callers should treat a nil limiter as "unthrottled".
func (g *Group) Get(resource string) *Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limiters[resource]
}

// Wait waits on the named resource's limiter, or returns nil immediately
// if the resource has no configured limiter.
func (g *Group) Wait(ctx context.Context, resource string) error {
	if l := g.Get(resource); l != nil {
		return l.Wait(ctx)
	}
	return nil
}
