package plugin

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/quantframe/hookline/internal/logging"
)

// DefaultDebounce batches the burst of filesystem events an editor save
// produces into a single reload.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches the plugin directories and hot-reloads a plugin when
// files inside its bundle change.
type Watcher struct {
	mgr      *Manager
	log      *logging.Logger
	fsw      *fsnotify.Watcher
	debounce time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewWatcher creates a watcher over the manager's plugin directories.
// A debounce of zero selects DefaultDebounce.
func NewWatcher(mgr *Manager, log *logging.Logger, debounce time.Duration) (*Watcher, error) {
	if log == nil {
		log = logging.Nop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		mgr:      mgr,
		log:      log.Component("watcher"),
		fsw:      fsw,
		debounce: debounce,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start registers the plugin directories and every known bundle with the
// filesystem watcher and begins delivering reloads in the background.
func (w *Watcher) Start() error {
	for _, dir := range w.mgr.PluginDirs() {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
	}
	for _, info := range w.mgr.ListPlugins() {
		if err := w.fsw.Add(info.Dir); err != nil {
			w.log.Warn().Str("plugin", info.ID).Err(err).Msg("bundle watch failed")
		}
	}
	go w.loop()
	return nil
}

// Stop shuts the watcher down and waits for the loop to exit.
func (w *Watcher) Stop() {
	close(w.stop)
	w.fsw.Close()
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)

	pending := map[string]bool{}
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			id, ok := w.pluginFor(ev.Name)
			if !ok {
				continue
			}
			pending[id] = true
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			for id := range pending {
				w.log.Info().Str("plugin", id).Msg("change detected, reloading")
				if !w.mgr.ReloadPlugin(id) {
					w.log.Error().Str("plugin", id).Msg("hot reload failed")
				}
			}
			pending = map[string]bool{}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watch error")

		case <-w.stop:
			return
		}
	}
}

// pluginFor maps a changed path to the plugin whose bundle contains it.
func (w *Watcher) pluginFor(path string) (string, bool) {
	for _, info := range w.mgr.ListPlugins() {
		if path == info.Dir || strings.HasPrefix(path, info.Dir+string(filepath.Separator)) {
			return info.ID, true
		}
	}
	return "", false
}
