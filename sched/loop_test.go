package sched

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDeferRunsInEnqueueOrder(t *testing.T) {
	t.Parallel()

	l := NewLoop()
	defer l.Close()

	var order []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		l.Defer(func() { order = append(order, i) })
	}
	l.Defer(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("deferred callbacks never ran")
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v", order)
		}
	}
}

func TestCancelPreventsDeferredRun(t *testing.T) {
	t.Parallel()

	l := NewLoop()
	defer l.Close()

	gate := make(chan struct{})
	l.Defer(func() { <-gate })

	var ran atomic.Bool
	h := l.Defer(func() { ran.Store(true) })
	h.Cancel()
	close(gate)

	done := make(chan struct{})
	l.Defer(func() { close(done) })
	<-done

	if ran.Load() {
		t.Fatal("cancelled callback ran")
	}
}

func TestAfterFiresOnLoop(t *testing.T) {
	t.Parallel()

	l := NewLoop()
	defer l.Close()

	fired := make(chan struct{})
	l.After(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("After callback never fired")
	}
}

func TestCloseDrainsQueueThenCancelsTimers(t *testing.T) {
	t.Parallel()

	l := NewLoop()

	var drained atomic.Bool
	l.Defer(func() { drained.Store(true) })

	var lateFired atomic.Bool
	l.After(time.Hour, func() { lateFired.Store(true) })

	l.Close()

	if !drained.Load() {
		t.Fatal("Close returned before draining the queue")
	}
	if lateFired.Load() {
		t.Fatal("unfired timer ran anyway")
	}
}
