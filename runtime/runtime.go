// Package runtime is the process-wide object a host constructs once: it
// owns the packet-type interning table, the memory-map registry, and the
// scheduler backing both, per Design Notes §9 ("re-architect as a Runtime
// object... allow a shutdown() that drains and clears both tables") and
// modeled after vmgr/main.go's single owning main wiring independent
// subsystems (disk, network, scheduler) together.
package runtime

import (
	"github.com/google/uuid"

	"github.com/solettaproject/soletta-sub010/ferr"
	"github.com/solettaproject/soletta-sub010/flow"
	"github.com/solettaproject/soletta-sub010/flowlog"
	"github.com/solettaproject/soletta-sub010/packet"
	"github.com/solettaproject/soletta-sub010/sched"
	"github.com/solettaproject/soletta-sub010/store"
)

// Runtime owns every piece of process-wide state a flow graph needs beyond
// its own node/connection tables: the composed-type interning registry, the
// memory-map registry, the run loop driving both, and a logger. Tests build
// a fresh Runtime each time, so there is no hidden cross-test state (Design
// Notes §9).
type Runtime struct {
	// ID uniquely identifies this runtime instance for the lifetime of the
	// process, e.g. for tagging log lines and crash reports when more than
	// one Runtime exists (tests, or a host embedding more than one flow
	// graph) — grounded on drmid.NewInstallID's use of uuid.NewString for
	// an analogous per-instance identifier.
	ID string

	Registry *packet.Registry
	Store    *store.Store
	Loop     *sched.Loop
	Log      flowlog.Logger

	reporter *crashReporter
}

// Options configures a Runtime. All fields are optional.
type Options struct {
	// Log receives every diagnostic the runtime and the subsystems it owns
	// emit. Defaults to flowlog.Nop.
	Log flowlog.Logger

	// I2CResolver resolves "create,i2c,..." memory-map backing paths.
	// Defaults to a resolver that always fails with NotSupported (spec
	// §1/§6: device-tree resolution is out of scope).
	I2CResolver store.I2CResolver

	// SentryDSN, if non-empty, initializes a crash reporter that captures
	// panics recovered by Runtime.Recover and errors passed to
	// Runtime.ReportError, grounded on vmgr/main.go's sentry.Init/
	// sentry.CaptureException/sentry.Recover wiring. Left empty, reporting
	// is a no-op — this mirrors the teacher's own pattern of only calling
	// sentry.Init when a DSN is configured.
	SentryDSN string

	// Release identifies the build for crash reports, passed through to
	// sentry.ClientOptions.Release if SentryDSN is set.
	Release string
}

// New constructs a Runtime with its own run loop, composed-type registry,
// and memory-map registry. Call Shutdown when done to drain pending map
// writes and stop the loop.
func New(opts Options) (*Runtime, error) {
	log := opts.Log
	if log == nil {
		log = flowlog.Nop
	}

	reporter, err := newCrashReporter(opts.SentryDSN, opts.Release)
	if err != nil {
		return nil, ferr.Wrap(ferr.InvalidArgument, "runtime: failed to initialize crash reporter", err)
	}

	loop := sched.NewLoop()
	reg := packet.NewRegistry()
	st := store.NewStore(loop, log, opts.I2CResolver)

	r := &Runtime{
		ID:       uuid.NewString(),
		Registry: reg,
		Store:    st,
		Loop:     loop,
		Log:      log,
		reporter: reporter,
	}
	reporter.tag("runtime_id", r.ID)
	return r, nil
}

// Recover should be deferred at the top of any goroutine a Runtime spawns
// outside its own run loop. It reports a recovered panic to the configured
// crash reporter (if any) and re-panics, matching vmgr/main.go's
// "sentry.Recover() suppresses panic" comment: capturing a crash report is
// not a substitute for letting the process actually crash.
func (r *Runtime) Recover() {
	if p := recover(); p != nil {
		r.reporter.captureFatal(p)
		panic(p)
	}
}

// ReportError sends err to the configured crash reporter without
// terminating anything, for conditions the runtime can continue past but a
// host still wants visibility into — e.g. a repeated ProcessIn failure spec
// §7 otherwise only logs.
func (r *Runtime) ReportError(err error) {
	r.reporter.captureError(err)
}

// OpenFlow instantiates t on r's own run loop and logger, per spec §4.2's
// instantiation order. named supplies runtime options: each leaf node gets
// named[its NodeSpec.OptionsName] as its Open's options parameter.
func (r *Runtime) OpenFlow(t *flow.Type, named map[string]any) (*flow.Engine, error) {
	return flow.Open(t, r.Loop, named, r.Log)
}

// AddMap registers a memory map against r's store, per spec §4.4's
// registration contract.
func (r *Runtime) AddMap(spec store.MapSpec) (*store.Map, error) {
	return r.Store.Add(spec)
}

// Shutdown drains and closes every registered memory map, clears the
// composed-type interning table, stops the run loop, and flushes any
// pending crash reports — Design Notes §9's "shutdown() that drains and
// clears both tables".
func (r *Runtime) Shutdown() {
	r.Store.Shutdown()
	r.Registry.Clear()
	r.Loop.Close()
	r.reporter.flush()
}
