// Copyright 2022, Pulumi Corporation.  All rights reserved.

// The watch package notices when packages are installed into or removed from
// a FHIR package cache.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const DefaultDebounce = time.Second

// CacheWatcher watches the packages directory of a FHIR cache. Installing a
// package produces a burst of events; the callback runs once after the burst
// has been quiet for the debounce delay.
type CacheWatcher struct {
	watcher  *fsnotify.Watcher
	root     string
	onChange func()
	debounce time.Duration
	logger   *zap.SugaredLogger

	m     sync.Mutex
	timer *time.Timer

	cancel context.CancelFunc
	done   chan struct{}
}

// New watches packagesDir and every package's `package` directory within it.
func New(packagesDir string, debounce time.Duration, logger *zap.SugaredLogger, onChange func()) (*CacheWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	cw := &CacheWatcher{
		watcher:  w,
		root:     filepath.Clean(packagesDir),
		onChange: onChange,
		debounce: debounce,
		logger:   logger,
		done:     make(chan struct{}),
	}
	if err := w.Add(cw.root); err != nil {
		w.Close()
		return nil, err
	}
	entries, err := os.ReadDir(cw.root)
	if err != nil {
		w.Close()
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			cw.addPackage(filepath.Join(cw.root, e.Name()))
		}
	}
	return cw, nil
}

// Root is the packages directory being watched.
func (cw *CacheWatcher) Root() string {
	return cw.root
}

// addPackage watches a package directory and its manifest directory.
func (cw *CacheWatcher) addPackage(dir string) {
	for _, p := range []string{dir, filepath.Join(dir, "package")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if err := cw.watcher.Add(p); err != nil {
				cw.logger.Warnf("Failed to watch %s: %v", p, err)
			}
		}
	}
}

// Start processes events until ctx is done or Close is called.
func (cw *CacheWatcher) Start(ctx context.Context) {
	ctx, cw.cancel = context.WithCancel(ctx)
	go cw.loop(ctx)
}

func (cw *CacheWatcher) loop(ctx context.Context) {
	defer close(cw.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			cw.handle(event)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Errorf("FHIR cache watcher error: %v", err)
		}
	}
}

func (cw *CacheWatcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if event.Op&fsnotify.Create != 0 {
		// A new package, or the manifest directory of one being unpacked.
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			cw.addPackage(event.Name)
		}
	}
	cw.logger.Debugf("FHIR cache changed: %s", event)

	cw.m.Lock()
	defer cw.m.Unlock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.timer = time.AfterFunc(cw.debounce, cw.onChange)
}

// Close stops watching. A pending callback is dropped.
func (cw *CacheWatcher) Close() error {
	if cw.cancel != nil {
		cw.cancel()
	}
	cw.m.Lock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.m.Unlock()
	err := cw.watcher.Close()
	if cw.cancel != nil {
		<-cw.done
	}
	return err
}
