package check

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Abhishekkr206/WebBaseline/config"
)

// watch re-checks src whenever something under it changes, letting events
// settle for the configured debounce interval first. Runs until the context
// is canceled.
func watch(ctx context.Context, r *runner, src string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to start watcher: %w", err)
	}
	defer w.Close()

	fi, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("unable to watch source: %w", err)
	}
	if fi.Mode().IsDir() {
		if err := addTree(w, r, src); err != nil {
			return fmt.Errorf("unable to watch source: %w", err)
		}
	} else {
		if err := w.Add(filepath.Dir(src)); err != nil {
			return fmt.Errorf("unable to watch source: %w", err)
		}
	}

	debounce := r.cfg.Watch.Debounce()
	r.log.Info("Watching for changes", zap.String("source", src), zap.Duration("debounce", debounce))

	// first pass before any change comes in
	r.passOnce(ctx, src)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(r.cfg, ev) {
				continue
			}
			// new directories join the watch before the rerun fires
			if ev.Op.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if !r.cfg.Scan.Excluded(filepath.Base(ev.Name)) {
						if err := addTree(w, r, ev.Name); err != nil {
							r.log.Warn("Unable to watch new directory", zap.String("dir", ev.Name), zap.Error(err))
						}
					}
				}
			}
			r.log.Debug("Change detected", zap.String("path", ev.Name), zap.Stringer("op", ev.Op))
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.log.Warn("Watcher error", zap.Error(err))
		case <-timer.C:
			r.passOnce(ctx, src)
		}
	}
}

// passOnce runs a full check and hands the report off, logging trouble
// instead of failing: the watch keeps going no matter what one pass did.
func (r *runner) passOnce(ctx context.Context, src string) {
	rpt, err := r.runOnce(ctx, src)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		r.log.Error("Check failed", zap.Error(err))
		return
	}
	if err := r.deliver(rpt); err != nil {
		r.log.Error("Unable to write report", zap.Error(err))
	}
	r.record(rpt, src)
}

// addTree puts root and every non-excluded directory below it on the watch.
func addTree(w *fsnotify.Watcher, r *runner, root string) error {
	return filepath.Walk(root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			r.log.Warn("Skipping inaccessible path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !fi.IsDir() {
			return nil
		}
		if path != root && r.cfg.Scan.Excluded(fi.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

// relevant filters watcher noise: metadata-only events and files the scan
// would not pick up anyway.
func relevant(cfg *config.Config, ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	ext := filepath.Ext(ev.Name)
	if len(ext) == 0 {
		// directory level event
		return true
	}
	return cfg.Scan.Included(ext) || strings.EqualFold(ext, ".zip")
}
