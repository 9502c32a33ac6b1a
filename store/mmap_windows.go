//go:build windows

package store

// openMmapBacking falls back to plain ReadAt/WriteAt on windows, where
// golang.org/x/sys/unix isn't available; the bit-precise and coalescing
// contracts are identical either way (see fileBacking's doc comment).
func openMmapBacking(path string, minSize int64) (backing, error) {
	return openFileBacking(path)
}
