package serving

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ArtifactWatcher invalidates the cache when the local artifact file is
// rewritten, so a retrained model dropped in place is picked up by the next
// prediction without an explicit reload call.
type ArtifactWatcher struct {
	watcher *fsnotify.Watcher
	cache   *Cache
	path    string
	log     *zap.Logger
	done    chan struct{}
}

// WatchArtifact starts watching path. The watch is on the directory, since
// most writers replace the file rather than update it in place.
func WatchArtifact(path string, cache *Cache, log *zap.Logger) (*ArtifactWatcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	w := &ArtifactWatcher{
		watcher: watcher,
		cache:   cache,
		path:    filepath.Clean(path),
		log:     log,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *ArtifactWatcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.log.Info("local artifact changed, invalidating model cache",
				zap.String("path", w.path),
				zap.String("op", event.Op.String()))
			w.cache.Invalidate()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("artifact watcher error", zap.Error(err))
		}
	}
}

// Close stops the watcher and waits for the event loop to exit.
func (w *ArtifactWatcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
