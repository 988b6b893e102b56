package templates

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads r whenever an *.html file in fragmentsDir changes, until
// ctx is done.
func Watch(ctx context.Context, r *Renderer, fragmentsDir string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(fragmentsDir); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Ext(ev.Name) != ".html" || ev.Op == fsnotify.Chmod {
					continue
				}
				if err := r.Reload(fragmentsDir); err != nil {
					logger.Warn("templates_reload_failed", "file", ev.Name, "error", err)
					continue
				}
				logger.Info("templates_reloaded", "file", ev.Name, "op", ev.Op.String())
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("templates_watch_error", "error", err)
			}
		}
	}()
	return nil
}
