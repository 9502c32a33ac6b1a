//go:build !deadlock

package syncx

import "sync"

// Mutex/RWMutex are plain sync primitives in release builds. Building with
// -tags deadlock swaps these for go-deadlock's instrumented versions (see
// mutex_deadlock.go) without touching any call site.
type Mutex = sync.Mutex
type RWMutex = sync.RWMutex
