package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 100 * time.Millisecond

// Watcher reloads a config file whenever it changes on disk. Reloaded
// configs are delivered on Updates; the consumer applies them on its own
// loop so physics objects are never touched from the watcher goroutine.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	Updates chan *Config
	Errors  chan error
	closeCh chan struct{}
	once    sync.Once
}

// Watch starts watching path. The parent directory is watched so editors
// that replace the file by rename are picked up.
func Watch(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = fw.Close()
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{
		path:    abs,
		watcher: fw,
		Updates: make(chan *Config, 4),
		Errors:  make(chan error, 4),
		closeCh: make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Close stops the watcher. Updates and Errors are closed once the
// background goroutine exits.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.Updates)
	defer close(w.Errors)

	// Trailing-edge debounce: reload once writes have been quiet for
	// reloadDebounce, so half-written files are not parsed.
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			cfg, err := LoadFile(w.path)
			if err != nil {
				w.send(nil, err)
				continue
			}
			w.send(cfg, nil)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.send(nil, err)
		case <-w.closeCh:
			return
		}
	}
}

func (w *Watcher) send(cfg *Config, err error) {
	if err != nil {
		select {
		case w.Errors <- err:
		case <-w.closeCh:
		}
		return
	}
	select {
	case w.Updates <- cfg:
	case <-w.closeCh:
	}
}
