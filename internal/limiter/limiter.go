// Package limiter implements the counting semaphores that bound how many
// actions and how many targets may proceed concurrently.
package limiter

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Limiter is a counting semaphore with a fixed effective limit.
type Limiter interface {
	// Limit returns the effective number of concurrent scopes this limiter
	// allows.
	Limit() int64

	// BeginScope acquires one permit, blocking until one is available or
	// ctx is done. The returned Scope must be released exactly once.
	BeginScope(ctx context.Context) (Scope, error)
}

// Scope represents one acquired permit. Release is idempotent.
type Scope interface {
	Release()
}

// ErrDisposed is returned by BeginScope on a limiter whose underlying
// semaphore has been torn down.
var ErrDisposed = fmt.Errorf("limiter: acquire on disposed limiter")

// simple is a Limiter backed directly by a weighted semaphore.
type simple struct {
	sem      *semaphore.Weighted
	limit    int64
	disposed *atomic.Bool
}

// New returns a Limiter that allows up to n concurrent scopes. n must be
// positive.
func New(n int64) Limiter {
	if n <= 0 {
		panic("limiter: n must be positive")
	}
	return &simple{sem: semaphore.NewWeighted(n), limit: n, disposed: &atomic.Bool{}}
}

func (l *simple) Limit() int64 { return l.limit }

func (l *simple) BeginScope(ctx context.Context) (Scope, error) {
	if l.disposed.Load() {
		return nil, ErrDisposed
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return &simpleScope{sem: l.sem, released: &atomic.Bool{}}, nil
}

// Dispose marks the limiter as disposed; acquisitions after this point
// fail with ErrDisposed. In-flight scopes are unaffected.
func (l *simple) Dispose() { l.disposed.Store(true) }

type simpleScope struct {
	sem      *semaphore.Weighted
	released *atomic.Bool
}

func (s *simpleScope) Release() {
	if s.released.CompareAndSwap(false, true) {
		s.sem.Release(1)
	}
}

// composite acquires two limiters in a fixed order and releases both when
// its scope is dropped. Its effective limit is the minimum of the two.
type composite struct {
	outer, inner Limiter
}

// Composite returns a Limiter whose BeginScope acquires outer then inner,
// and whose effective limit is min(outer.Limit(), inner.Limit()). Used to
// compose a group-level action limit on top of the global action limit.
func Composite(outer, inner Limiter) Limiter {
	return &composite{outer: outer, inner: inner}
}

func (c *composite) Limit() int64 {
	o, i := c.outer.Limit(), c.inner.Limit()
	if o < i {
		return o
	}
	return i
}

func (c *composite) BeginScope(ctx context.Context) (Scope, error) {
	outerScope, err := c.outer.BeginScope(ctx)
	if err != nil {
		return nil, err
	}
	innerScope, err := c.inner.BeginScope(ctx)
	if err != nil {
		outerScope.Release()
		return nil, err
	}
	return &compositeScope{outer: outerScope, inner: innerScope, released: &atomic.Bool{}}, nil
}

type compositeScope struct {
	outer, inner Scope
	released     *atomic.Bool
}

func (s *compositeScope) Release() {
	if s.released.CompareAndSwap(false, true) {
		s.inner.Release()
		s.outer.Release()
	}
}
