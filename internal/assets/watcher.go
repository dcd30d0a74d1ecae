package assets

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/lodestone/internal/logger"
)

// DefaultDebounce is how long a file must stay quiet before it is reported.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reports changed asset files. Events are collected on a background
// goroutine and handed out by Poll on the thread that owns the resources,
// so reimports never race the frame.
type Watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	now      func() time.Time

	mu      sync.Mutex
	files   map[string]bool
	dirs    map[string]int
	pending map[string]time.Time

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher starts a watcher.
func NewWatcher(debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fs:       fw,
		debounce: debounce,
		now:      time.Now,
		files:    make(map[string]bool),
		dirs:     make(map[string]int),
		pending:  make(map[string]time.Time),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Add starts watching a file. Its directory is watched so that editors
// replacing the file by rename are still seen.
func (w *Watcher) Add(path string) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.files[path] {
		return nil
	}
	if w.dirs[dir] == 0 {
		if err := w.fs.Add(dir); err != nil {
			return err
		}
	}
	w.dirs[dir]++
	w.files[path] = true
	logger.Debug("watching asset", zap.String("path", path))
	return nil
}

// Remove stops watching a file.
func (w *Watcher) Remove(path string) {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.files[path] {
		return
	}
	delete(w.files, path)
	delete(w.pending, path)
	w.dirs[dir]--
	if w.dirs[dir] == 0 {
		delete(w.dirs, dir)
		_ = w.fs.Remove(dir)
	}
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.touch(event.Name)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logger.Warn("asset watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) touch(name string) {
	name = filepath.Clean(name)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.files[name] {
		w.pending[name] = w.now()
	}
}

// Poll returns the files that changed and have been quiet for the debounce
// interval. Each change is reported once.
func (w *Watcher) Poll() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	var ready []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	return ready
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.fs.Close()
	w.wg.Wait()
	return err
}
