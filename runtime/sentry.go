package runtime

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// flushTimeout mirrors vmgr/conf/sentryconf's FlushTimeout: how long
// Shutdown waits for any in-flight crash report to finish sending before
// giving up.
const flushTimeout = 2 * time.Second

// crashReporter wraps sentry-go, grounded on vmgr/main.go's
// sentry.Init/sentry.ConfigureScope/sentry.CurrentHub().Recover/
// sentry.Flush sequence. A zero-value crashReporter (no DSN configured) is
// a safe no-op, matching the teacher's own "only call sentry.Init outside
// debug builds" pattern.
type crashReporter struct {
	enabled bool
}

func newCrashReporter(dsn, release string) (*crashReporter, error) {
	if dsn == "" {
		return &crashReporter{}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{Dsn: dsn, Release: release}); err != nil {
		return nil, err
	}
	return &crashReporter{enabled: true}, nil
}

func (c *crashReporter) tag(key, value string) {
	if c == nil || !c.enabled {
		return
	}
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag(key, value)
	})
}

// captureFatal reports a recovered panic, the same way vmgr/main.go's
// top-level recover handler does via sentry.CurrentHub().Recover before
// re-panicking.
func (c *crashReporter) captureFatal(p any) {
	if c == nil || !c.enabled {
		return
	}
	sentry.CurrentHub().Recover(p)
}

func (c *crashReporter) captureError(err error) {
	if c == nil || !c.enabled || err == nil {
		return
	}
	sentry.CaptureException(err)
}

func (c *crashReporter) flush() {
	if c == nil || !c.enabled {
		return
	}
	sentry.Flush(flushTimeout)
}
