package store

import (
	"time"

	"github.com/solettaproject/soletta-sub010/ferr"
	"github.com/solettaproject/soletta-sub010/flowlog"
	"github.com/solettaproject/soletta-sub010/sched"
	"github.com/solettaproject/soletta-sub010/syncx"
)

// defaultCoalesceMS is used when a MapSpec doesn't declare a coalescing
// window, per spec §4.4's suggested default.
const defaultCoalesceMS = 50

// Store is the registry of memory maps the runtime exposes to nodes, per
// spec §4.1: named registration with overlap validation, lookup, and
// removal that drains pending writes before tearing a map down.
type Store struct {
	loop     *sched.Loop
	log      flowlog.Logger
	resolver I2CResolver

	maps    map[string]*Map
	watcher *backingWatcher
	flushes *syncx.Broadcaster[FlushEvent]
}

// FlushEvent announces one completed coalesced flush (or removal-time
// drain) on a registered map, for observers subscribed via FlushEvents.
type FlushEvent struct {
	Map    string
	Writes int
}

// NewStore builds an empty Store driven by loop. resolver is consulted for
// "create,i2c,..." backing paths; pass nil to use the default, which always
// fails with NotSupported (device-tree resolution is out of scope, spec
// §1/§6).
func NewStore(loop *sched.Loop, log flowlog.Logger, resolver I2CResolver) *Store {
	if log == nil {
		log = flowlog.Nop
	}
	if resolver == nil {
		resolver = noI2C{}
	}
	watcher, err := newBackingWatcher(log)
	if err != nil {
		// advisory only; a store without change notification still meets
		// every read/write contract.
		log.Warnf("store: backing-file watcher unavailable: %v", err)
		watcher = nil
	}
	return &Store{
		loop:     loop,
		log:      log,
		resolver: resolver,
		maps:     make(map[string]*Map),
		watcher:  watcher,
		flushes:  syncx.NewBroadcaster[FlushEvent](),
	}
}

// FlushEvents subscribes to flush announcements: one event per coalesced
// flush, delivered best-effort — an observer that isn't ready to receive
// misses the event rather than stalling the flush. The channel closes on
// Shutdown.
func (s *Store) FlushEvents() chan FlushEvent {
	return s.flushes.Subscribe()
}

// Add registers a new map per spec §4.1: resolves offsets, validates
// overlap, resolves the backing path (including the I²C device-creation
// flow), opens the backing store, and leaves version-gating to the first
// Read or Write.
func (s *Store) Add(spec MapSpec) (*Map, error) {
	if spec.Name == "" {
		return nil, ferr.New(ferr.InvalidArgument, "store: map name must not be empty")
	}
	if _, dup := s.maps[spec.Name]; dup {
		return nil, ferr.Newf(ferr.InvalidArgument, "store: map %q is already registered", spec.Name)
	}
	// 0x00 and 0xFF are the blank-media sentinels, so neither can be a
	// declared version (spec §4.4: "Declared version must be in [1, 254]").
	if spec.Version == blank0 || spec.Version == blank255 {
		return nil, ferr.Newf(ferr.InvalidArgument, "store: map %q version must be in [1, 254], got %d", spec.Name, spec.Version)
	}

	entries, order, totalSize, err := buildEntries(spec)
	if err != nil {
		return nil, err
	}

	resolvedPath, viaI2C, err := resolveBackingPath(spec.Path, s.resolver)
	if err != nil {
		return nil, err
	}

	var b backing
	if viaI2C {
		fb, err := openFileBacking(resolvedPath)
		if err != nil {
			return nil, ferr.Wrap(ferr.IoError, "store: failed to open i2c backing", err)
		}
		b = fb
	} else {
		mb, err := openMmapBacking(resolvedPath, int64(totalSize))
		if err != nil {
			return nil, ferr.Wrap(ferr.IoError, "store: failed to open backing", err)
		}
		b = mb
	}

	coalesce := time.Duration(spec.CoalesceMS) * time.Millisecond
	if spec.CoalesceMS <= 0 {
		coalesce = defaultCoalesceMS * time.Millisecond
	}

	m := &Map{
		name:        spec.Name,
		version:     spec.Version,
		coalesce:    coalesce,
		entries:     entries,
		order:       order,
		totalSize:   totalSize,
		backing:     b,
		viaI2C:      viaI2C,
		path:        resolvedPath,
		notifyFlush: s.flushes.TryEmit,
		loop:        s.loop,
		log:         s.log,
	}
	s.maps[spec.Name] = m
	s.watcher.watch(spec.Name, resolvedPath)
	return m, nil
}

// Map returns the registered map named name, or false if none exists.
func (s *Store) Map(name string) (*Map, bool) {
	m, ok := s.maps[name]
	return m, ok
}

// Remove drains m's pending writes synchronously, closes its backing store,
// and removes it from the registry, per spec §4.4's map-removal contract.
func (s *Store) Remove(name string) error {
	m, ok := s.maps[name]
	if !ok {
		return ferr.Newf(ferr.NotFound, "store: map %q is not registered", name)
	}
	m.drainDeferred()
	s.watcher.unwatch(m.path)
	delete(s.maps, name)
	if err := m.backing.Close(); err != nil {
		return ferr.Wrap(ferr.IoError, "store: failed to close backing", err)
	}
	return nil
}

// Shutdown drains and closes every registered map, stops the backing-file
// watcher, and closes every FlushEvents subscription, for runtime teardown.
func (s *Store) Shutdown() {
	for name := range s.maps {
		if err := s.Remove(name); err != nil {
			s.log.Warnf("store: shutdown: %v", err)
		}
	}
	s.watcher.close()
	s.flushes.Close()
}
