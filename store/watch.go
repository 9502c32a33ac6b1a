package store

import (
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/solettaproject/soletta-sub010/flowlog"
	"github.com/solettaproject/soletta-sub010/syncx"
)

// watchQuiet is the trailing-debounce window for backing-file change
// notifications: one log line per burst of inotify events, not one per
// byte-range write.
const watchQuiet = 200 * time.Millisecond

// backingWatcher watches every registered map's backing file for on-disk
// changes. Writes through an mmap'd region don't generate inotify events,
// so for mmap-backed maps anything arriving here came from outside the
// process; for the plain-file backing (the I²C eeprom path) the map's own
// flushes show up too, and the per-map debounce folds either kind of burst
// into a single line.
type backingWatcher struct {
	w   *fsnotify.Watcher
	log flowlog.Logger

	mu     syncx.Mutex
	byPath map[string]*syncx.FuncDebounce
}

func newBackingWatcher(log flowlog.Logger) (*backingWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	bw := &backingWatcher{
		w:      w,
		log:    log,
		byPath: make(map[string]*syncx.FuncDebounce),
	}
	go bw.run()
	return bw, nil
}

func (bw *backingWatcher) run() {
	for {
		select {
		case ev, ok := <-bw.w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			bw.mu.Lock()
			d := bw.byPath[ev.Name]
			bw.mu.Unlock()
			if d != nil {
				d.Call()
			}
		case err, ok := <-bw.w.Errors:
			if !ok {
				return
			}
			bw.log.Warnf("store: backing watcher: %v", err)
		}
	}
}

// watch starts watching path for the map named mapName. Failures are
// logged, not fatal: change notification is advisory and a map works fine
// without it.
func (bw *backingWatcher) watch(mapName, path string) {
	if bw == nil {
		return
	}
	log := bw.log
	d := syncx.NewFuncDebounce(watchQuiet, func() {
		log.Debugf("store: map %q backing file %q changed on disk", mapName, path)
	})

	bw.mu.Lock()
	bw.byPath[path] = d
	bw.mu.Unlock()

	if err := bw.w.Add(path); err != nil {
		bw.mu.Lock()
		delete(bw.byPath, path)
		bw.mu.Unlock()
		bw.log.Warnf("store: cannot watch backing file %q: %v", path, err)
	}
}

func (bw *backingWatcher) unwatch(path string) {
	if bw == nil {
		return
	}
	bw.mu.Lock()
	d := bw.byPath[path]
	delete(bw.byPath, path)
	bw.mu.Unlock()

	if d == nil {
		return
	}
	bw.w.Remove(path)
	d.CancelAndWait()
}

func (bw *backingWatcher) close() {
	if bw == nil {
		return
	}
	bw.w.Close()

	bw.mu.Lock()
	remaining := bw.byPath
	bw.byPath = make(map[string]*syncx.FuncDebounce)
	bw.mu.Unlock()

	for _, d := range remaining {
		d.CancelAndWait()
	}
}
