// Package sched implements the small scheduler Design Notes §9 asks for in
// place of a polymorphic "add timeout": Defer for zero-delay dispatch and
// After for coalesced timers, both returning a cancellable Handle. A single
// background goroutine runs every callback in enqueue order, standing in for
// "the host's main loop" that spec §5 assumes — so flow.Engine and
// store.Store, which only ever run inside callbacks from one Loop, can treat
// their own state as single-threaded, exactly as the core's concurrency
// model requires.
package sched

import (
	"sync"
	"time"

	"github.com/solettaproject/soletta-sub010/syncx"
)

// Handle cancels a scheduled callback. Calling Cancel after the callback has
// already started or run is a harmless no-op.
type Handle struct {
	mu        sync.Mutex
	cancelled bool
	timer     *time.Timer
	detach    func()
}

func (h *Handle) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancelled = true
	if h.timer != nil {
		h.timer.Stop()
	}
	if h.detach != nil {
		h.detach()
		h.detach = nil
	}
}

func (h *Handle) isCancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

type item struct {
	fn func()
	h  *Handle
}

// Loop is the run loop. Zero value is not usable; construct with NewLoop.
type Loop struct {
	mu     sync.Mutex
	queue  []*item
	wake   chan struct{}
	closed bool
	stopC  chan struct{}

	// drained flips to true once the goroutine has run everything left in
	// the queue after Close; Close waits on it.
	drained *syncx.CondValue[bool]

	// timers tracks every After handle that hasn't fired or been cancelled
	// yet, so Close can stop the stragglers.
	timers syncx.Map[*Handle, struct{}]
}

// NewLoop starts the background goroutine and returns the Loop driving it.
func NewLoop() *Loop {
	l := &Loop{
		wake:    make(chan struct{}, 1),
		stopC:   make(chan struct{}),
		drained: syncx.NewCondValue(false, false),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer l.drained.Set(true)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.mu.Unlock()
			select {
			case <-l.wake:
			case <-l.stopC:
			}
			l.mu.Lock()
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		it := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()

		if !it.h.isCancelled() {
			it.fn()
		}
	}
}

func (l *Loop) enqueue(h *Handle, fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, &item{fn: fn, h: h})
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Defer schedules fn to run on the loop goroutine as soon as it's free,
// after anything already queued — this is the "zero-delay dispatch"
// primitive the flow engine arms once per pass.
func (l *Loop) Defer(fn func()) *Handle {
	h := &Handle{}
	l.enqueue(h, fn)
	return h
}

// After schedules fn to run on the loop goroutine no sooner than d from now
// — the coalescing-timer primitive storage arms once per map.
func (l *Loop) After(d time.Duration, fn func()) *Handle {
	h := &Handle{}
	l.timers.Store(h, struct{}{})
	h.detach = func() { l.timers.Delete(h) }
	h.timer = time.AfterFunc(d, func() {
		l.timers.Delete(h)
		l.enqueue(h, fn)
	})
	return h
}

// Close drains remaining queued callbacks (running them), stops the
// background goroutine once the queue is empty, then cancels any After
// timer that never fired — a stopped loop could not run it anyway.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	close(l.stopC)
	l.drained.Wait()

	l.timers.Range(func(h *Handle, _ struct{}) bool {
		h.Cancel()
		return true
	})
}
