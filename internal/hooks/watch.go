package hooks

import (
	"context"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// WatchManifest logs whenever the hook manifest at path is created, written,
// or removed, so an operator tailing logs can see a manifest edit take
// effect without restarting the gateway — Run already re-reads the manifest
// on every call, so this is purely an audit signal, not a cache invalidation.
func WatchManifest(ctx context.Context, path string) {
	if path == "" {
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.WithError(err).Warn("hooks: failed to start manifest watcher")
		return
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		log.WithError(err).WithField("path", path).Warn("hooks: failed to watch manifest path")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				log.WithField("path", ev.Name).WithField("op", ev.Op.String()).Info("hook manifest changed")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("hooks: manifest watcher error")
		}
	}
}
