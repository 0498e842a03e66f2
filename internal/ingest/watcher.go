package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/statements-tracker/constants"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	InitialScan bool          // if true, walk roots and emit existing files
	Debounce    time.Duration // coalesce rapid write/rename bursts
}

// Watch emits paths of statement files created or rewritten under the roots.
// Both channels close when ctx is done.
func Watch(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no roots provided")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	var initial []string
	addDir := func(root string) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if path != root && IsHidden(path) {
					return filepath.SkipDir
				}
				return w.Add(path)
			}
			if cfg.InitialScan && allowed(path) {
				initial = append(initial, path)
			}
			return nil
		})
	}
	for _, r := range cfg.Roots {
		if err := addDir(r); err != nil {
			logger.Error("failed to add root directory", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() { _ = w.Close() }()

		emit := func(p string) bool {
			select {
			case evCh <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range initial {
			if !emit(p) {
				return
			}
		}

		timer := time.NewTimer(cfg.Debounce)
		timer.Stop()
		pending := map[string]struct{}{}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Has(fsnotify.Create) {
					if fi, err := os.Stat(e.Name); err == nil && fi.IsDir() && !IsHidden(e.Name) {
						if err := w.Add(e.Name); err != nil {
							logger.Warn("failed to watch new directory", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if IsHidden(e.Name) || !allowed(e.Name) {
					continue
				}
				if e.Has(fsnotify.Create) || e.Has(fsnotify.Write) || e.Has(fsnotify.Rename) {
					pending[e.Name] = struct{}{}
					timer.Reset(cfg.Debounce)
				}
			case <-timer.C:
				for p := range pending {
					delete(pending, p)
					if _, err := os.Stat(p); err != nil {
						continue // renamed away or deleted before it settled
					}
					if !emit(p) {
						return
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// Serve feeds every watched path to the ingestor until ctx is done.
func (i *Ingestor) Serve(ctx context.Context, cfg WatchConfig) error {
	events, errs, err := Watch(ctx, cfg, i.logger)
	if err != nil {
		return err
	}
	i.logger.Info("inbox watching", "roots", cfg.Roots, "initial_scan", cfg.InitialScan)
	for {
		select {
		case p, ok := <-events:
			if !ok {
				return ctx.Err()
			}
			if _, err := i.IngestPath(ctx, p); err != nil {
				i.logger.Warn("ingest.failed", "path", p, "error", err)
			}
		case err, ok := <-errs:
			if ok && err != nil {
				i.logger.Warn("inbox watcher error", "error", err)
			}
			if !ok {
				errs = nil
			}
		}
	}
}

func allowed(path string) bool {
	return constants.MIMEFromExt(filepath.Ext(path)) != ""
}
