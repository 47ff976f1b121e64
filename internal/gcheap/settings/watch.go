package settings

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the tuning file on writes and hands each valid snapshot to
// onReload. Files that fail to parse keep the previous snapshot in effect.
// The returned stop function ends the watch.
func Watch(path string, onReload func(*Settings)) (func() error, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors replace files, which drops a watch on
	// the file itself.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}
	target := filepath.Clean(path)
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if s, err := Load(path); err == nil {
					onReload(s)
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return w.Close, nil
}
