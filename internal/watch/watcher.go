// Package watch follows a screenshot directory and reloads the reader with
// the newest image whenever the directory changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the directory must stay quiet before the
// newest screenshot is picked up. Screenshot tools often write in several steps.
const DefaultDebounce = 500 * time.Millisecond

// ErrNoScreenshot means the tracked directory holds no regular file.
var ErrNoScreenshot = errors.New("no screenshot in directory")

// Reloader receives the screenshot to recognize. *reader.Reader satisfies it.
type Reloader interface {
	Reload(setCode, path string) error
}

// Watcher tracks a directory and hands its newest screenshot to a Reloader.
type Watcher struct {
	target   Reloader
	debounce time.Duration

	// Debug logs every filesystem event.
	Debug bool

	mu       sync.Mutex
	dir      string
	set      string
	lastPath string
	lastSet  string
	lastHash *goimagehash.ImageHash

	refreshCh chan struct{}
}

// New creates a watcher. A debounce of zero or less uses DefaultDebounce.
func New(target Reloader, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		target:    target,
		debounce:  debounce,
		refreshCh: make(chan struct{}, 1),
	}
}

// SetDir changes the tracked directory and requests a refresh.
func (w *Watcher) SetDir(dir string) {
	w.mu.Lock()
	if dir == w.dir {
		w.mu.Unlock()
		return
	}
	w.dir = dir
	w.mu.Unlock()

	log.Printf("Watch: tracking %s", dir)
	w.Refresh()
}

// SetCardSet changes the card set screenshots are matched against and
// requests a refresh.
func (w *Watcher) SetCardSet(set string) {
	w.mu.Lock()
	if set == w.set {
		w.mu.Unlock()
		return
	}
	w.set = set
	w.mu.Unlock()

	log.Printf("Watch: card set %s", set)
	w.Refresh()
}

// Dir returns the tracked directory.
func (w *Watcher) Dir() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dir
}

// CardSet returns the active card set.
func (w *Watcher) CardSet() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.set
}

// Refresh asks Run to look at the directory now.
func (w *Watcher) Refresh() {
	select {
	case w.refreshCh <- struct{}{}:
	default:
	}
}

// Run watches until ctx is cancelled. Directory changes are coalesced for
// the debounce interval before the newest screenshot is loaded.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	watched := ""
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-w.refreshCh:
			dir := w.Dir()
			if dir != watched {
				if watched != "" {
					fw.Remove(watched)
				}
				watched = ""
				if dir != "" {
					if err := fw.Add(dir); err != nil {
						log.Printf("Watch: cannot watch %s: %v", dir, err)
					} else {
						watched = dir
					}
				}
			}
			w.Check()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.Debug {
				log.Printf("Watch: %s", ev)
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("Watch: %v", err)

		case <-timer.C:
			w.Check()
		}
	}
}

// Check reloads the newest screenshot unless it looks the same as the last
// one loaded for the active card set. It reports whether a reload was issued.
func (w *Watcher) Check() bool {
	w.mu.Lock()
	dir, set := w.dir, w.set
	w.mu.Unlock()

	if dir == "" {
		log.Printf("Watch: track dir not set yet")
		return false
	}

	path, err := Newest(dir)
	if err != nil {
		if !errors.Is(err, ErrNoScreenshot) {
			log.Printf("Watch: %v", err)
		}
		return false
	}

	hash, err := hashFile(path)
	if err != nil {
		// Probably still being written; the next event will retry.
		log.Printf("Watch: skipping %s: %v", path, err)
		return false
	}

	w.mu.Lock()
	same := set == w.lastSet && w.lastHash != nil && sameHash(w.lastHash, hash)
	w.mu.Unlock()
	if same {
		if w.Debug {
			log.Printf("Watch: %s unchanged, skipping", path)
		}
		return false
	}

	if err := w.target.Reload(set, path); err != nil {
		log.Printf("Watch: reload %s failed: %v", path, err)
		return false
	}

	w.mu.Lock()
	w.lastPath, w.lastSet, w.lastHash = path, set, hash
	w.mu.Unlock()
	return true
}

// LastPath returns the screenshot most recently handed to the Reloader.
func (w *Watcher) LastPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastPath
}

// Newest returns the most recently modified regular file in dir.
func Newest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var newest string
	var newestTime time.Time
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest = filepath.Join(dir, entry.Name())
			newestTime = info.ModTime()
		}
	}

	if newest == "" {
		return "", fmt.Errorf("%w: %s", ErrNoScreenshot, dir)
	}
	return newest, nil
}

func hashFile(path string) (*goimagehash.ImageHash, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode: %w", err)
	}
	return goimagehash.PerceptionHash(img)
}

func sameHash(a, b *goimagehash.ImageHash) bool {
	dist, err := a.Distance(b)
	return err == nil && dist == 0
}
