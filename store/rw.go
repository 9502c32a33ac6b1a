package store

import (
	"github.com/solettaproject/soletta-sub010/ferr"
)

// leToUint64 assembles up to 8 little-endian bytes into an accumulator, per
// spec §4.4's bit-precise read/write algorithm.
func leToUint64(b []byte) uint64 {
	var v uint64
	for i, by := range b {
		if i >= 8 {
			break
		}
		v |= uint64(by) << uint(8*i)
	}
	return v
}

// uint64ToLE serializes the low n bytes of v little-endian into out, which
// must have length >= n.
func uint64ToLE(v uint64, out []byte) {
	for i := range out {
		out[i] = byte(v >> uint(8*i))
	}
}

// rawRead performs the bit-precise read algorithm from spec §4.4 directly
// against m.backing, with no pending-write or version-gate involvement —
// the primitive both Read (after checking pending) and the version gate
// (checking _version directly) build on.
func (m *Map) rawRead(e *resolvedEntry, out []byte) error {
	buf := make([]byte, e.size)
	if _, err := m.backing.ReadAt(buf, int64(e.offset)); err != nil {
		return ferr.Wrap(ferr.IoError, "store: read failed", err)
	}

	if e.isTrivial() {
		n := copy(out, buf)
		for i := n; i < len(out); i++ {
			out[i] = 0
		}
		return nil
	}

	acc := leToUint64(buf)
	val := (acc & e.mask) >> uint(e.bitOffset)
	for i := range out {
		out[i] = 0
	}
	uint64ToLE(val, out)
	return nil
}

// rawWrite performs the bit-precise read-modify-write algorithm from spec
// §4.4 directly against m.backing.
func (m *Map) rawWrite(e *resolvedEntry, data []byte) error {
	if len(data) > e.size {
		m.log.Warnf("store: write to entry %q truncated from %d to %d bytes", e.name, len(data), e.size)
		data = data[:e.size]
	}

	if e.isTrivial() {
		n := len(data)
		if n > e.size {
			n = e.size
		}
		if _, err := m.backing.WriteAt(data[:n], int64(e.offset)); err != nil {
			return ferr.Wrap(ferr.IoError, "store: write failed", err)
		}
		return nil
	}

	old := make([]byte, e.size)
	if _, err := m.backing.ReadAt(old, int64(e.offset)); err != nil {
		return ferr.Wrap(ferr.IoError, "store: read-modify-write read failed", err)
	}
	oldAcc := leToUint64(old)

	incoming := leToUint64(data) << uint(e.bitOffset)
	newAcc := (incoming & e.mask) | (oldAcc &^ e.mask)

	buf := make([]byte, e.size)
	uint64ToLE(newAcc, buf)
	if _, err := m.backing.WriteAt(buf, int64(e.offset)); err != nil {
		return ferr.Wrap(ferr.IoError, "store: write failed", err)
	}
	return nil
}
