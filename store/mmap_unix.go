//go:build !windows

package store

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// mmapBacking is the regular-file backing used on unix platforms, grounded
// on vmgr/conf/disk.go's use of golang.org/x/sys/unix for low-level
// filesystem operations — applied here to its namesake operation. The
// mapped region grows (ftruncate + re-mmap) to cover the highest entry's
// end offset on first use, and Sync runs unix.Msync once per coalesced
// flush, never per individual bit-write (spec §4.4's coalescing contract).
type mmapBacking struct {
	f    *os.File
	data []byte
}

func openMmapBacking(path string, minSize int64) (*mmapBacking, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	b := &mmapBacking{f: f}
	if err := b.grow(minSize); err != nil {
		f.Close()
		return nil, err
	}
	return b, nil
}

func (b *mmapBacking) grow(minSize int64) error {
	if minSize <= 0 {
		minSize = 1
	}
	if int64(len(b.data)) >= minSize {
		return nil
	}
	if b.data != nil {
		if err := unix.Munmap(b.data); err != nil {
			return err
		}
		b.data = nil
	}
	info, err := b.f.Stat()
	if err != nil {
		return err
	}
	if info.Size() < minSize {
		if err := b.f.Truncate(minSize); err != nil {
			return err
		}
	}
	data, err := unix.Mmap(int(b.f.Fd()), 0, int(minSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return err
	}
	b.data = data
	return nil
}

func (b *mmapBacking) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	if off+int64(len(p)) > int64(len(b.data)) {
		if err := b.grow(off + int64(len(p))); err != nil {
			return 0, err
		}
	}
	return copy(p, b.data[off:off+int64(len(p))]), nil
}

func (b *mmapBacking) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	if err := b.grow(off + int64(len(p))); err != nil {
		return 0, err
	}
	return copy(b.data[off:off+int64(len(p))], p), nil
}

func (b *mmapBacking) Sync() error {
	if len(b.data) == 0 {
		return nil
	}
	return unix.Msync(b.data, unix.MS_SYNC)
}

func (b *mmapBacking) Close() error {
	if b.data != nil {
		unix.Munmap(b.data)
	}
	return b.f.Close()
}
