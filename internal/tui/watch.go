package tui

import (
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

type storeChangedMsg struct{}

// storeWatcher reports writes to the local SQLite store (and its WAL) so the
// outline can re-fetch after another process edits the course.
type storeWatcher struct {
	w       *fsnotify.Watcher
	changed chan struct{}
	done    chan struct{}
}

const watchDebounce = 150 * time.Millisecond

func newStoreWatcher(dbPath string, log *zap.Logger) (*storeWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(dbPath)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}
	sw := &storeWatcher{
		w:       w,
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	base := filepath.Base(dbPath)
	go sw.loop(base, log)
	return sw, nil
}

func (sw *storeWatcher) loop(base string, log *zap.Logger) {
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-sw.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-sw.w.Events:
			if !ok {
				return
			}
			name := filepath.Base(ev.Name)
			if !strings.HasPrefix(name, base) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			// Coalesce the burst of db/-wal/-shm writes from one transaction.
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			select {
			case sw.changed <- struct{}{}:
			default:
			}
		case err, ok := <-sw.w.Errors:
			if !ok {
				return
			}
			log.Warn("store watch error", zap.Error(err))
		}
	}
}

// next blocks until the store changes.
func (sw *storeWatcher) next() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-sw.changed:
			return storeChangedMsg{}
		case <-sw.done:
			return nil
		}
	}
}

func (sw *storeWatcher) Close() error {
	select {
	case <-sw.done:
		return nil
	default:
		close(sw.done)
	}
	return sw.w.Close()
}
