package mappingfile

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ChangeFunc is invoked with the absolute path of a mapping file that changed.
type ChangeFunc func(path string)

// Watcher reports changes to mapping files. Parent directories are watched so
// that editors replacing a file through rename are still observed.
type Watcher struct {
	mu sync.RWMutex

	fsWatcher *fsnotify.Watcher
	files     map[string]bool
	dirs      map[string]int
	onChange  ChangeFunc

	// Errors receives watcher errors. It is never closed before Close.
	Errors chan error

	done   chan struct{}
	closed sync.Once
	wg     sync.WaitGroup
}

// NewWatcher starts a watcher invoking onChange for every relevant event.
func NewWatcher(onChange ChangeFunc) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("mappingfile: creating watcher: %w", err)
	}
	w := &Watcher{
		fsWatcher: fsWatcher,
		files:     make(map[string]bool),
		dirs:      make(map[string]int),
		onChange:  onChange,
		Errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Add starts watching path.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("mappingfile: absolute path: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.files[abs] {
		return nil
	}
	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 {
		if err := w.fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("mappingfile: watching %s: %w", dir, err)
		}
	}
	w.dirs[dir]++
	w.files[abs] = true
	return nil
}

// Remove stops watching path.
func (w *Watcher) Remove(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("mappingfile: absolute path: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.files[abs] {
		return nil
	}
	delete(w.files, abs)
	dir := filepath.Dir(abs)
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		return w.fsWatcher.Remove(dir)
	}
	return nil
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	var err error
	w.closed.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}
	w.mu.RLock()
	watched := w.files[name]
	w.mu.RUnlock()
	if watched && w.onChange != nil {
		w.onChange(name)
	}
}
