package engine

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch starts watching the profile's file for writes made by other processes
// (a second CLI invocation logging out, for instance). On a change the profile
// is reloaded and onChange is invoked. Writes made through this MemStore do not
// trigger onChange because the reloaded data already matches memory.
//
// Watch is non-blocking; the watcher stops when ctx is cancelled.
func (m *MemStore) Watch(ctx context.Context, profile string, onChange func()) error {
	if m.persister == nil {
		return ErrWatchUnsupported
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: atomic renames replace the file's inode.
	if err := watcher.Add(m.persister.DataDir); err != nil {
		watcher.Close()
		return err
	}

	target := filepath.Base(m.persister.Path(profile))

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				changed, err := m.Reload(profile)
				if err != nil {
					m.logger.Warn("profile reload failed", zap.String("profile", profile), zap.Error(err))
					continue
				}
				if changed && onChange != nil {
					onChange()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.logger.Warn("storage watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}
