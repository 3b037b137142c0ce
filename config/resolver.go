package config

import (
	"fmt"
	"sync"

	"nvfmt/logger"
	"nvfmt/types"

	"github.com/fsnotify/fsnotify"
)

// Resolver caches config discovery per start directory and invalidates the
// cache when a loaded config file changes on disk.
type Resolver struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	byDir   map[string]*resolved // startDir -> discovery result
	closed  bool
}

type resolved struct {
	path string // config file path, "" when none was found
	cfg  *Config
}

// NewResolver creates a Resolver with an active fsnotify watcher.
func NewResolver() (*Resolver, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	r := &Resolver{
		watcher: watcher,
		byDir:   make(map[string]*resolved),
	}
	go r.watchLoop()
	return r, nil
}

// FormatterFor returns the expanded formatter spec for a buffer of the given
// filetype whose directory is startDir. A nil spec with nil error means no
// config or no formatter entry applies.
func (r *Resolver) FormatterFor(startDir, filetype string) (*types.FormatterSpec, error) {
	res, err := r.resolve(startDir)
	if err != nil {
		return nil, err
	}
	if res.cfg == nil {
		return nil, nil
	}

	f, ok := res.cfg.Formatters[filetype]
	if !ok {
		return nil, nil
	}
	return f.Spec(startDir), nil
}

func (r *Resolver) resolve(startDir string) (*resolved, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res, ok := r.byDir[startDir]; ok {
		return res, nil
	}

	path, found := Locate(startDir)
	if !found {
		res := &resolved{}
		r.byDir[startDir] = res
		return res, nil
	}

	cfg, err := Load(path)
	if err != nil {
		// Do not cache parse failures; the user is probably mid-edit.
		return nil, err
	}

	res := &resolved{path: path, cfg: cfg}
	r.byDir[startDir] = res

	if err := r.watcher.Add(path); err != nil {
		logger.Warn("could not watch config %s: %v", path, err)
	}
	return res, nil
}

func (r *Resolver) watchLoop() {
	for {
		select {
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				logger.Debug("config changed (%s), invalidating cache", ev.Name)
				r.invalidate(ev.Name)
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("config watcher error: %v", err)
		}
	}
}

// invalidate drops every cached discovery that resolved to path. The next
// FormatterFor re-walks and re-reads from disk.
func (r *Resolver) invalidate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for dir, res := range r.byDir {
		if res.path == path {
			delete(r.byDir, dir)
		}
	}
	r.watcher.Remove(path)
}

// Invalidate drops the whole cache. Used by tests and the manual
// reload event.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for dir := range r.byDir {
		delete(r.byDir, dir)
	}
}

// Close stops the watcher.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.watcher.Close()
}
