package source

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// Paths are the local files to watch. Remote sources are ignored.
	Paths []string

	// Debounce is the quiet period before a change is reported.
	// Default: 100ms.
	Debounce time.Duration

	Logger *slog.Logger
}

// Watcher reports writes to a set of local files. It watches their parent
// directories so that editors which replace files are seen too.
type Watcher struct {
	config   WatcherConfig
	files    map[string]struct{}
	dirs     map[string]struct{}
	mu       sync.Mutex
	onChange func(path string)
	logger   *slog.Logger
}

// NewWatcher creates a Watcher.
func NewWatcher(config WatcherConfig) *Watcher {
	if config.Debounce == 0 {
		config.Debounce = 100 * time.Millisecond
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		config: config,
		files:  make(map[string]struct{}),
		dirs:   make(map[string]struct{}),
		logger: logger.With("component", "watcher"),
	}
	for _, p := range config.Paths {
		if strings.TrimSpace(p) == "" || !IsLocal(p) {
			continue
		}
		abs, err := filepath.Abs(LocalPath(p))
		if err != nil {
			continue
		}
		w.files[abs] = struct{}{}
		w.dirs[filepath.Dir(abs)] = struct{}{}
	}
	return w
}

// OnChange sets the callback for changes.
func (w *Watcher) OnChange(fn func(path string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Len returns the number of watched files.
func (w *Watcher) Len() int {
	return len(w.files)
}

// Start watches until ctx is done. It returns nil when there is nothing to
// watch.
func (w *Watcher) Start(ctx context.Context) error {
	if len(w.files) == 0 {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()

	for dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			return err
		}
	}

	var (
		timer   *time.Timer
		pending = make(map[string]struct{})
		pmu     sync.Mutex
	)
	flush := func() {
		pmu.Lock()
		changed := pending
		pending = make(map[string]struct{})
		pmu.Unlock()

		w.mu.Lock()
		fn := w.onChange
		w.mu.Unlock()
		if fn == nil {
			return
		}
		for p := range changed {
			w.logger.Debug("source changed", "path", p)
			fn(p)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			name, err := filepath.Abs(ev.Name)
			if err != nil {
				continue
			}
			if _, watched := w.files[name]; !watched {
				continue
			}
			pmu.Lock()
			pending[name] = struct{}{}
			pmu.Unlock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.config.Debounce, flush)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}
