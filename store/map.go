// Package store implements the memory-mapped persistence sidecar: map
// registration with overlap validation, a version gate that
// self-initializes blank media, bit-precise read/write against a versioned
// entry layout, and asynchronous per-map write coalescing with
// cancellation of superseded writes, per spec §4.4.
package store

import (
	"time"

	"github.com/solettaproject/soletta-sub010/ferr"
	"github.com/solettaproject/soletta-sub010/flowlog"
	"github.com/solettaproject/soletta-sub010/sched"
)

// versionEntryName is the reserved entry every map carries, per spec §3:
// "A reserved entry name _version always exists and carries the map
// version."
const versionEntryName = "_version"

// blank0, blank255 are the two byte values spec §4.4/§9 treat as "blank
// media": SPEC_FULL's resolution of the source's inconsistent rule keeps
// both.
const (
	blank0   = 0x00
	blank255 = 0xFF
)

// EntrySpec describes one named region in a MapSpec before offset
// resolution. Offset is a pointer so "unset" (inherit the cursor from the
// previous entry's end, per spec §3) is distinguishable from an explicit 0.
type EntrySpec struct {
	Name      string
	Offset    *int
	Size      int
	BitSize   int // 0 means "the whole size", i.e. a trivial mask
	BitOffset int // 0-7
}

// MapSpec is the declarative description of one memory map, per spec §3.
// If Entries doesn't already name "_version", a one-byte entry is
// prepended automatically.
type MapSpec struct {
	Name       string
	Version    byte
	Path       string
	CoalesceMS int
	Entries    []EntrySpec
}

// resolvedEntry is an EntrySpec after offset resolution, with its bit-mask
// precomputed.
type resolvedEntry struct {
	name      string
	offset    int
	size      int
	bitSize   int
	bitOffset int
	mask      uint64 // 0 means "trivial": whole-byte copy, no mask/shift
}

func (e *resolvedEntry) effectiveBitSize() int {
	if e.bitSize > 0 {
		return e.bitSize
	}
	return e.size * 8
}

func (e *resolvedEntry) bitStart() int { return e.offset*8 + e.bitOffset }
func (e *resolvedEntry) bitEnd() int   { return e.bitStart() + e.effectiveBitSize() }

// isTrivial reports whether reads/writes against e should skip masking
// entirely: either it was declared with no sub-byte bit-window, or its size
// exceeds 8 bytes, where spec §4.4 forces the mask trivial regardless of
// BitSize/BitOffset ("For size > 8, mask is forced trivial and bytes are
// copied verbatim").
func (e *resolvedEntry) isTrivial() bool {
	return e.size > 8 || (e.bitOffset == 0 && e.effectiveBitSize() == e.size*8)
}

// Map is one registered memory map: its resolved entry layout, version-gate
// state, backing store, and pending-write coalescing queue.
type Map struct {
	name     string
	version  byte
	coalesce time.Duration

	entries   map[string]*resolvedEntry
	order     []string // declaration order, for Add-time offset resolution only
	totalSize int

	backing backing
	viaI2C  bool   // resolved through the I2C device-creation path: fall back to non-mmap I/O
	path    string // resolved backing path, for the store's change watcher

	notifyFlush func(FlushEvent)

	loop *sched.Loop
	log  flowlog.Logger

	checked         bool // version gate has run at least once
	versionMismatch bool // version gate failed permanently; every op now fails

	pending []*pendingWrite
	timer   *sched.Handle
}

// Entry returns m's resolved entry named name, or false if it isn't part of
// this map's layout.
func (m *Map) Entry(name string) (size, bitSize, bitOffset, offset int, ok bool) {
	e, ok := m.entries[name]
	if !ok {
		return 0, 0, 0, 0, false
	}
	return e.size, e.bitSize, e.bitOffset, e.offset, true
}

// Name returns the map's registered name.
func (m *Map) Name() string { return m.name }

// buildEntries resolves offsets, validates bit-offsets and overlap, and
// returns the final entry table plus the map's total byte size. Per spec
// §4.1 step 1 of map registration.
func buildEntries(spec MapSpec) (map[string]*resolvedEntry, []string, int, error) {
	entries := append([]EntrySpec(nil), spec.Entries...)

	hasVersion := false
	for _, e := range entries {
		if e.Name == versionEntryName {
			hasVersion = true
			break
		}
	}
	if !hasVersion {
		entries = append([]EntrySpec{{Name: versionEntryName, Size: 1}}, entries...)
	}

	resolved := make(map[string]*resolvedEntry, len(entries))
	order := make([]string, 0, len(entries))
	overlaps := newOverlapTree()

	cursor := 0
	total := 0
	for i, e := range entries {
		if e.Name == "" {
			return nil, nil, 0, ferr.Newf(ferr.InvalidArgument, "map %q: entry %d has an empty name", spec.Name, i)
		}
		if _, dup := resolved[e.Name]; dup {
			return nil, nil, 0, ferr.Newf(ferr.InvalidArgument, "map %q: duplicate entry name %q", spec.Name, e.Name)
		}
		if e.Size <= 0 {
			return nil, nil, 0, ferr.Newf(ferr.InvalidArgument, "map %q: entry %q has non-positive size", spec.Name, e.Name)
		}
		if e.BitOffset < 0 || e.BitOffset > 7 {
			return nil, nil, 0, ferr.Newf(ferr.InvalidArgument, "map %q: entry %q bit-offset %d must be < 8", spec.Name, e.Name, e.BitOffset)
		}
		if e.BitSize < 0 || e.BitSize > e.Size*8 {
			return nil, nil, 0, ferr.Newf(ferr.InvalidArgument, "map %q: entry %q bit-size %d exceeds size*8", spec.Name, e.Name, e.BitSize)
		}
		if e.BitSize > 0 && e.BitOffset+e.BitSize > e.Size*8 {
			return nil, nil, 0, ferr.Newf(ferr.InvalidArgument, "map %q: entry %q bit-window [%d,%d) does not fit in its %d-byte size", spec.Name, e.Name, e.BitOffset, e.BitOffset+e.BitSize, e.Size)
		}

		offset := cursor
		if e.Offset != nil {
			offset = *e.Offset
		}
		if offset < 0 {
			return nil, nil, 0, ferr.Newf(ferr.InvalidArgument, "map %q: entry %q has a negative offset", spec.Name, e.Name)
		}

		re := &resolvedEntry{
			name:      e.Name,
			offset:    offset,
			size:      e.Size,
			bitSize:   e.BitSize,
			bitOffset: e.BitOffset,
		}
		if !re.isTrivial() {
			re.mask = ((uint64(1) << uint(re.effectiveBitSize())) - 1) << uint(re.bitOffset)
		}

		if err := overlaps.insert(bitInterval{start: re.bitStart(), end: re.bitEnd(), name: re.name}); err != nil {
			return nil, nil, 0, err
		}

		resolved[e.Name] = re
		order = append(order, e.Name)
		cursor = offset + e.Size
		if cursor > total {
			total = cursor
		}
	}

	return resolved, order, total, nil
}
