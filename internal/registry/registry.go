// Package registry owns the name → site mapping, its sites.json mirror and the
// per-site HTML files under sites/.
//
// All access to the mapping goes through one mutex; mutations hold it for the
// whole write-file, update-memory, persist sequence so concurrent callers (the
// CLI and HTTP handlers) never interleave writes to sites.json.
package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/vesaa/lansite/internal/fsutil"
	"github.com/vesaa/lansite/internal/models"
)

var linkPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// Options locates the registry's files. Relative paths are resolved against Root.
type Options struct {
	Root         string
	RegistryFile string
	SitesDir     string
	PreviewFile  string
	Logger       *slog.Logger
}

// Registry is the in-memory site collection mirrored to disk.
type Registry struct {
	mu    sync.Mutex
	order []string
	sites map[string]models.Site

	root         string
	registryFile string
	sitesDir     string
	previewFile  string
	logger       *slog.Logger

	// stamp is sites.json as this registry last read or wrote it.
	stamp fileStamp

	obsMu     sync.RWMutex
	observers []func(models.Change)

	now func() time.Time
}

// New builds an empty registry without touching the filesystem.
func New(opts Options) (*Registry, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	resolve := func(p, def string) string {
		if p == "" {
			p = def
		}
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(absRoot, p)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sites:        make(map[string]models.Site),
		root:         absRoot,
		registryFile: resolve(opts.RegistryFile, "sites.json"),
		sitesDir:     resolve(opts.SitesDir, "sites"),
		previewFile:  resolve(opts.PreviewFile, "temp_preview.html"),
		logger:       logger,
		now:          time.Now,
	}, nil
}

// Open builds a registry and loads sites.json.
func Open(opts Options) (*Registry, error) {
	r, err := New(opts)
	if err != nil {
		return nil, err
	}
	if err := r.Load(); err != nil {
		return nil, err
	}
	return r, nil
}

// Load replaces the in-memory mapping with the contents of sites.json.
// A missing file yields an empty registry; malformed JSON is an error.
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked()
}

func (r *Registry) loadLocked() error {
	data, err := os.ReadFile(r.registryFile)
	if errors.Is(err, fs.ErrNotExist) {
		r.order = nil
		r.sites = make(map[string]models.Site)
		r.stamp = fileStamp{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read registry: %w", err)
	}

	entries, err := decodeRegistry(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse %s: %w", r.registryFile, err)
	}

	r.order = make([]string, 0, len(entries))
	r.sites = make(map[string]models.Site, len(entries))
	for _, e := range entries {
		r.order = append(r.order, e.Name)
		r.sites[e.Name] = e.Site
	}
	r.stamp = r.statRegistry()
	r.logger.Debug("registry loaded", "file", r.registryFile, "sites", len(entries))
	return nil
}

// Create registers a site and writes sites/<link>.html.
//
// Name and link are trimmed, so " home " is accepted as "home"; content is
// stored exactly as given. Reusing an existing name with a free link replaces
// that entry in place and removes the previous link's file.
//
// If the HTML write fails the registry is unchanged. If rewriting sites.json
// fails the error is returned and the new entry stays in memory.
func (r *Registry) Create(name, link, content string) error {
	name = strings.TrimSpace(name)
	link = strings.TrimSpace(link)
	if err := validate(name, link, content); err != nil {
		return err
	}

	r.mu.Lock()
	external, err := r.refreshLocked()
	if err == nil {
		err = r.createLocked(name, link, content)
	}
	r.mu.Unlock()
	r.publishExternal(external)
	if err != nil {
		return err
	}

	r.logger.Info("site created", "name", name, "link", link)
	r.notify(models.Change{Kind: models.ChangeCreated, Name: name, Link: link, At: r.now()})
	return nil
}

func (r *Registry) createLocked(name, link, content string) error {
	for _, existing := range r.sites {
		if existing.Link == link {
			return fmt.Errorf("%w: %q", ErrConflict, link)
		}
	}

	if err := fsutil.WriteFileAtomic(r.htmlPath(link), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write site file: %w", err)
	}

	if prev, ok := r.sites[name]; ok {
		if err := fsutil.RemoveIfExists(r.htmlPath(prev.Link)); err != nil {
			r.logger.Warn("remove replaced site file", "link", prev.Link, "error", err)
		}
	} else {
		r.order = append(r.order, name)
	}
	r.sites[name] = models.Site{Link: link, Content: content}
	return r.persistLocked()
}

// Delete removes the site registered under exactly name, together with its
// HTML file. A missing file is not an error.
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	external, err := r.refreshLocked()
	var site models.Site
	if err == nil {
		site, err = r.deleteLocked(name)
	}
	r.mu.Unlock()
	r.publishExternal(external)
	if err != nil {
		return err
	}

	r.logger.Info("site deleted", "name", name, "link", site.Link)
	r.notify(models.Change{Kind: models.ChangeDeleted, Name: name, Link: site.Link, At: r.now()})
	return nil
}

func (r *Registry) deleteLocked(name string) (models.Site, error) {
	site, ok := r.sites[name]
	if !ok {
		return models.Site{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	if err := fsutil.RemoveIfExists(r.htmlPath(site.Link)); err != nil {
		return models.Site{}, fmt.Errorf("remove site file: %w", err)
	}

	delete(r.sites, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return site, r.persistLocked()
}

// Get returns the site registered under exactly name.
func (r *Registry) Get(name string) (models.Site, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	site, ok := r.sites[name]
	if !ok {
		return models.Site{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return site, nil
}

// Lookup finds the entry that owns link.
func (r *Registry) Lookup(link string) (models.Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range r.order {
		if s := r.sites[name]; s.Link == link {
			return models.Entry{Name: name, Site: s}, true
		}
	}
	return models.Entry{}, false
}

// List returns a copy of all entries in insertion order.
func (r *Registry) List() []models.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, models.Entry{Name: name, Site: r.sites[name]})
	}
	return out
}

// Len reports the number of registered sites.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Persist rewrites sites.json from the in-memory mapping.
func (r *Registry) Persist() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.persistLocked()
}

func (r *Registry) persistLocked() error {
	entries := make([]models.Entry, 0, len(r.order))
	for _, name := range r.order {
		entries = append(entries, models.Entry{Name: name, Site: r.sites[name]})
	}
	data, err := encodeRegistry(entries)
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := fsutil.WriteFileAtomic(r.registryFile, data, 0o644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	r.stamp = r.statRegistry()
	return nil
}

// Preview writes unsaved content to the scratch preview file and returns its URL path.
func (r *Registry) Preview(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: no content to preview", ErrValidation)
	}
	if err := fsutil.WriteFileAtomic(r.previewFile, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write preview: %w", err)
	}
	return r.urlPath(r.previewFile), nil
}

// SitePath returns the URL path under which the site's HTML file is served.
func (r *Registry) SitePath(link string) string {
	return r.urlPath(r.htmlPath(link))
}

// Root is the absolute directory the registry's relative paths hang off.
func (r *Registry) Root() string { return r.root }

// Subscribe registers fn to be called after every successful mutation.
// Callbacks run synchronously on the mutating goroutine, outside the registry lock.
func (r *Registry) Subscribe(fn func(models.Change)) {
	r.obsMu.Lock()
	r.observers = append(r.observers, fn)
	r.obsMu.Unlock()
}

func (r *Registry) notify(c models.Change) {
	r.obsMu.RLock()
	observers := slices.Clone(r.observers)
	r.obsMu.RUnlock()
	for _, fn := range observers {
		fn(c)
	}
}

func (r *Registry) htmlPath(link string) string {
	return filepath.Join(r.sitesDir, link+".html")
}

func (r *Registry) urlPath(abs string) string {
	rel, err := filepath.Rel(r.root, abs)
	if err != nil || !fsutil.Within(r.root, abs) {
		return "/" + filepath.Base(abs)
	}
	return "/" + filepath.ToSlash(rel)
}

func validate(name, link, content string) error {
	if name == "" || link == "" || strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: name, link and content are required", ErrValidation)
	}
	if !linkPattern.MatchString(link) {
		return fmt.Errorf("%w: link must contain only letters and digits", ErrValidation)
	}
	return nil
}

// ValidLink reports whether link, after trimming, is usable as a site link.
func ValidLink(link string) bool {
	return linkPattern.MatchString(strings.TrimSpace(link))
}
