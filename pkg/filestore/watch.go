package filestore

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/lingocore/engine/internal/logging"
)

// Watcher supplements the websocket broadcast hub by watching the
// on-disk tree directly with fsnotify, so a process that writes to disk
// without going through the hub — a restored backup, or a sibling process
// that crashed before publishing — is still picked up.
type Watcher struct {
	fsw *fsnotify.Watcher
	log *logging.Logger
}

// NewWatcher watches every directory already present under the given user's
// stream root. Run adds directories created later under a watched one and
// invokes onWritten(stream) for file creates and writes.
func NewWatcher(root string, user string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	streamRoot := filepath.Join(root, "user", user, "stream")
	// fsnotify watches are non-recursive; walk the tree that already exists
	// and add every directory individually. A device directory created
	// later (a brand-new device syncing for the first time) is picked up by
	// the Create event on its parent, handled below in Run by adding it on
	// the fly.
	_ = filepath.WalkDir(streamRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d == nil || !d.IsDir() {
			return nil
		}
		_ = fsw.Add(path)
		return nil
	})
	return &Watcher{fsw: fsw, log: logging.L().With(logging.String("component", "filestore_watch"))}, nil
}

// Run drains the watcher's event channel until ctx is cancelled, invoking
// onWritten with the stream name for every create/write event under
// .../stream/<stream>/device/<device>/*.json.
func (w *Watcher) Run(ctx context.Context, onWritten func(stream string)) {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.fsw.Add(event.Name)
					continue
				}
			}
			if stream, ok := streamFromPath(event.Name); ok {
				onWritten(stream)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("filestore watch error", logging.Error(err))
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	if w == nil || w.fsw == nil {
		return nil
	}
	return w.fsw.Close()
}

// streamFromPath extracts the stream name from a path of the form
// .../stream/<stream>/device/<device>/NNNNNNNNNN.json.
func streamFromPath(path string) (string, bool) {
	parts := strings.Split(filepath.ToSlash(path), "/")
	for i, part := range parts {
		if part == "stream" && i+1 < len(parts) {
			return parts[i+1], true
		}
	}
	return "", false
}
