package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// debouncer coalesces a burst of filesystem events into a single
// callback, firing delay after the last Trigger call.
type debouncer struct {
	delay    time.Duration
	callback func()

	mu    sync.Mutex
	timer *time.Timer
}

func newDebouncer(delay time.Duration, callback func()) *debouncer {
	return &debouncer{delay: delay, callback: callback}
}

func (d *debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.callback)
}

func (d *debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

// watchAndApply re-runs migrate apply every time a file changes under
// --root, debouncing bursts of writes (e.g. an editor saving several
// migration files together) into a single rerun.
func watchAndApply(cmd *cobra.Command) error {
	root := migrationsRoot(cmd)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: creating fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := addRecursive(watcher, root); err != nil {
		return fmt.Errorf("watch: watching %s: %w", root, err)
	}

	runOnce := func() {
		fmt.Fprintf(os.Stderr, "watch: change detected under %s, re-running migrate apply\n", root)
		if err := runMigrate(cmd, false); err != nil {
			fmt.Fprintf(os.Stderr, "watch: apply failed: %v\n", err)
		}
	}

	debounce := newDebouncer(500*time.Millisecond, runOnce)
	defer debounce.Cancel()

	runOnce()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				debounce.Trigger()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		}
	}
}

// addRecursive adds root and every directory beneath it to watcher, since
// fsnotify does not itself watch recursively.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
