package store

import (
	"github.com/solettaproject/soletta-sub010/ferr"
)

// ensureVersionChecked implements spec §4.4's version gate: on the first
// access to the map (read or write of any entry), reads _version and either
// self-initializes blank media through the normal deferred-write path, or
// locks the map to VersionMismatch forever if it reads a non-blank,
// non-matching value.
func (m *Map) ensureVersionChecked() error {
	if m.checked {
		if m.versionMismatch {
			return ferr.New(ferr.VersionMismatch, "store: map version check previously failed")
		}
		return nil
	}

	vEntry := m.entries[versionEntryName]
	got := make([]byte, 1)
	if err := m.rawRead(vEntry, got); err != nil {
		return err
	}

	switch {
	case got[0] == blank0 || got[0] == blank255:
		m.checked = true
		// self-initialize through the normal deferred-write path (spec
		// §4.4: "writes the map's declared version through the normal
		// deferred-write path"), not a direct rawWrite.
		m.queueWrite(versionEntryName, []byte{m.version}, nil, nil)
		return nil
	case got[0] != m.version:
		m.checked = true
		m.versionMismatch = true
		return ferr.Newf(ferr.VersionMismatch, "store: map %q declares version %d, media has %d", m.name, m.version, got[0])
	default:
		m.checked = true
		return nil
	}
}

// Read copies entry name's current value into out (len(out) should be
// entry.Size; shorter truncates, longer zero-pads), consulting any pending
// write for name first so a read immediately after a write (before the
// coalescing timer fires) observes the just-written value (spec §4.4
// "read sees pending").
func (m *Map) Read(name string, out []byte) error {
	if err := m.ensureVersionChecked(); err != nil {
		return err
	}
	e, ok := m.entries[name]
	if !ok {
		return ferr.Newf(ferr.NotFound, "store: map %q has no entry %q", m.name, name)
	}

	for _, pw := range m.pending {
		if pw.entry == name {
			n := copy(out, pw.data)
			for i := n; i < len(out); i++ {
				out[i] = 0
			}
			return nil
		}
	}

	return m.rawRead(e, out)
}

// Write queues a write of data to entry name, coalesced with any other
// write to this map within the configured timeout (spec §4.4 "write
// coalescing"). cb, if non-nil, is invoked once with the outcome: Cancelled
// if a later write to the same entry supersedes this one first, otherwise
// the status of the eventual flush.
func (m *Map) Write(name string, data []byte, cb WriteCallback, userData any) error {
	if err := m.ensureVersionChecked(); err != nil {
		return err
	}
	if _, ok := m.entries[name]; !ok {
		return ferr.Newf(ferr.NotFound, "store: map %q has no entry %q", m.name, name)
	}
	m.queueWrite(name, data, cb, userData)
	return nil
}

// queueWrite is the version-gate-free core of Write, also used by
// ensureVersionChecked's self-initialization.
func (m *Map) queueWrite(name string, data []byte, cb WriteCallback, userData any) {
	cp := append([]byte(nil), data...)

	for i, pw := range m.pending {
		if pw.entry != name {
			continue
		}
		// superseded: spec §4.4 "its completion callback is invoked with
		// status -Cancelled, its blob is released, and the record is
		// replaced in place (preserving queue order)".
		if pw.cb != nil {
			pw.cb(ferr.New(ferr.Cancelled, "store: write superseded by a later write to the same entry"), pw.userData)
		}
		m.pending[i] = &pendingWrite{entry: name, data: cp, cb: cb, userData: userData}
		m.armTimer()
		return
	}

	m.pending = append(m.pending, &pendingWrite{entry: name, data: cp, cb: cb, userData: userData})
	m.armTimer()
}

func (m *Map) armTimer() {
	if m.timer != nil {
		return
	}
	m.timer = m.loop.After(m.coalesce, m.flush)
}

// flush replays every pending write in FIFO order against the backing
// store through the bit-precise writer, syncs once, and reports each
// record's outcome to its callback (spec §4.4 "On timer fire...").
func (m *Map) flush() {
	pending := m.pending
	m.pending = nil
	m.timer = nil

	var syncErr error
	for _, pw := range pending {
		e := m.entries[pw.entry]
		writeErr := m.rawWrite(e, pw.data)
		if writeErr != nil && syncErr == nil {
			syncErr = writeErr
		}
	}
	if syncErr == nil {
		if err := m.backing.Sync(); err != nil {
			syncErr = ferr.Wrap(ferr.IoError, "store: sync failed", err)
		}
	}
	for _, pw := range pending {
		if pw.cb != nil {
			pw.cb(syncErr, pw.userData)
		}
	}

	if m.notifyFlush != nil && len(pending) > 0 {
		m.notifyFlush(FlushEvent{Map: m.name, Writes: len(pending)})
	}
}

// drainDeferred synchronously performs any pending writes and cancels the
// armed timer, for map removal (spec §4.4 "Map removal... Drains
// (synchronously performs) any pending writes"). Their callbacks receive
// the normal flush status, not Cancelled (spec §5: "cancellation ...
// (iii) Map-removal drains pending writes... and then cancels the timer").
func (m *Map) drainDeferred() {
	if m.timer != nil {
		m.timer.Cancel()
		m.timer = nil
	}
	if len(m.pending) > 0 {
		m.flush()
	}
}
