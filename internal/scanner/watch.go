package scanner

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// videoExtensions mirrors the container types sublarr expects Sonarr/Radarr
// to place in a library, generalized from the teacher's MKV-only watcher.
var videoExtensions = []string{".mkv", ".mp4", ".avi"}

// debounceWindow matches the teacher's 3s "let the writer finish" wait
// (internal/core/watcher/watcher.go) before triggering an on-demand scan.
const debounceWindow = 3 * time.Second

// Watcher triggers an on-demand scan when a new video file appears in a
// watched directory, adapted from the teacher's fsnotify-based MKV watcher
// generalized from a single callback to invoking a full Scanner.Run.
type Watcher struct {
	fsw     *fsnotify.Watcher
	scanner *Scanner
	log     zerolog.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	done    chan struct{}
}

// NewWatcher creates a Watcher over the given directories. Call Start to
// begin watching and Stop to shut down.
func NewWatcher(scanner *Scanner, log zerolog.Logger, dirs ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return &Watcher{
		fsw:     fsw,
		scanner: scanner,
		log:     log.With().Str("component", "scanner_watcher").Logger(),
		timers:  make(map[string]*time.Timer),
		done:    make(chan struct{}),
	}, nil
}

// Start launches the fsnotify event loop in a background goroutine.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop closes the underlying fsnotify watcher and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.fsw.Close()
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("fsnotify error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&fsnotify.Create != fsnotify.Create && event.Op&fsnotify.Write != fsnotify.Write {
		return
	}
	if !isVideoFile(event.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, exists := w.timers[event.Name]; exists {
		timer.Stop()
	}
	w.timers[event.Name] = time.AfterFunc(debounceWindow, func() {
		w.mu.Lock()
		delete(w.timers, event.Name)
		w.mu.Unlock()
		w.triggerScan()
	})
}

// triggerScan runs an incremental scan, not a full one. The incremental pass
// selects inventory targets by their last-seen time, not by the file's mtime.
func (w *Watcher) triggerScan() {
	if _, err := w.scanner.Run(context.Background(), false); err != nil {
		w.log.Warn().Err(err).Msg("on-demand scan failed")
	}
}

func isVideoFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range videoExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
