package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/vesaa/lansite/internal/models"
)

// Watch reloads the mapping whenever sites.json is replaced behind the
// registry's back, typically by a CLI invocation while a server is running.
// Differences between the old and new mapping are published to observers.
// The watcher stops when ctx is done.
func (r *Registry) Watch(ctx context.Context) error {
	dir := filepath.Dir(r.registryFile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch registry: %w", err)
	}
	// Atomic writes rename over the file, so the directory is what stays watchable.
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
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
				if filepath.Clean(ev.Name) != r.registryFile {
					continue
				}
				if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) {
					r.reload()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				r.logger.Warn("registry watcher", "error", err)
			}
		}
	}()
	return nil
}

func (r *Registry) reload() {
	r.mu.Lock()
	changes, err := r.refreshLocked()
	r.mu.Unlock()
	if err != nil {
		r.logger.Warn("reload registry", "error", err)
		return
	}
	r.publishExternal(changes)
}

// fileStamp identifies one version of sites.json on disk.
type fileStamp struct {
	exists  bool
	size    int64
	modTime time.Time
}

func (a fileStamp) equal(b fileStamp) bool {
	return a.exists == b.exists && a.size == b.size && a.modTime.Equal(b.modTime)
}

func (r *Registry) statRegistry() fileStamp {
	fi, err := os.Stat(r.registryFile)
	if err != nil || !fi.Mode().IsRegular() {
		return fileStamp{}
	}
	return fileStamp{exists: true, size: fi.Size(), modTime: fi.ModTime()}
}

// refreshLocked reloads the mapping when sites.json no longer matches what this
// registry last read or wrote, and returns what another process changed.
func (r *Registry) refreshLocked() ([]models.Change, error) {
	if r.statRegistry().equal(r.stamp) {
		return nil, nil
	}
	before := r.snapshotLocked()
	if err := r.loadLocked(); err != nil {
		return nil, err
	}
	return diffSites(before, r.snapshotLocked()), nil
}

// publishExternal notifies observers of changes picked up from disk.
func (r *Registry) publishExternal(changes []models.Change) {
	if len(changes) == 0 {
		return
	}
	r.logger.Info("registry reloaded", "changes", len(changes))
	at := r.now()
	for _, c := range changes {
		c.At = at
		c.External = true
		r.notify(c)
	}
}

func (r *Registry) snapshotLocked() map[string]string {
	m := make(map[string]string, len(r.sites))
	for name, s := range r.sites {
		m[name] = s.Link
	}
	return m
}

// diffSites reports deletions before creations so a relinked name reads as
// "old link gone, new link up".
func diffSites(before, after map[string]string) []models.Change {
	var out []models.Change
	for name, link := range before {
		if after[name] != link {
			out = append(out, models.Change{Kind: models.ChangeDeleted, Name: name, Link: link})
		}
	}
	for name, link := range after {
		if before[name] != link {
			out = append(out, models.Change{Kind: models.ChangeCreated, Name: name, Link: link})
		}
	}
	return out
}
