//go:build deadlock

package syncx

import (
	"github.com/sasha-s/go-deadlock"
)

// don't stop the application when running with -tags deadlock; go-deadlock
// can flag recursive locking in call patterns that are actually fine, which
// makes the default abort-on-detect behavior unusable here.
func init() {
	deadlock.Opts.OnPotentialDeadlock = func() {}
}

type Mutex = deadlock.Mutex
type RWMutex = deadlock.RWMutex
