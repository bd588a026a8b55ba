// Package watcher detects external edits to the session file so the review
// loop can hot-reload. It watches the file's parent directory (editors that
// replace files atomically never touch the original inode), debounces bursts
// of events, and discards notifications caused by this process's own saves.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce batches the event bursts editors and agents produce for a
// single logical save.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches one session file for external changes and invokes the
// callback once per settled burst of writes.
type Watcher struct {
	path     string
	dir      string
	debounce time.Duration
	onChange func()

	mu       sync.Mutex
	ownMtime time.Time

	fw     *fsnotify.Watcher
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a watcher for path. The callback runs on the watcher goroutine;
// it should hand off to the owner rather than doing work inline.
func New(path string, onChange func()) *Watcher {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &Watcher{
		path:     filepath.Clean(abs),
		dir:      filepath.Dir(filepath.Clean(abs)),
		debounce: DefaultDebounce,
		onChange: onChange,
	}
}

// SetDebounce overrides the debounce interval. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// MarkOwnSave records the modification time produced by this process's own
// save. A change notification whose mtime matches is ours and is dropped.
func (w *Watcher) MarkOwnSave(mtime time.Time) {
	w.mu.Lock()
	w.ownMtime = mtime
	w.mu.Unlock()
}

// Start begins watching. Stop or cancel the context to shut down.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return err
	}
	w.fw = fw

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(ctx)
	return nil
}

// Stop shuts the watcher down and waits for the loop to exit.
func (w *Watcher) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	w.fw.Close()
	<-w.done
	w.cancel = nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !w.matches(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				pending = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-pending:
			timer = nil
			pending = nil
			if w.isOwnSave() {
				log.Debug().Str("path", w.path).Msg("Ignoring change from own save")
				continue
			}
			w.onChange()

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("path", w.path).Msg("File watcher error")

		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (w *Watcher) matches(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create)
}

func (w *Watcher) isOwnSave() bool {
	st, err := os.Stat(w.path)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.ownMtime.IsZero() && st.ModTime().Equal(w.ownMtime)
}
