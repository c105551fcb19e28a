// Package resolver implements the three-tier item resolver: given
// (item_type, id), it searches project, user, and system spaces in
// precedence order and returns the first matching file on disk.
package resolver

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// extensionsByType gives the fixed extension search order per item type.
var extensionsByType = map[ryemodels.ItemType][]string{
	ryemodels.ItemDirective: {"md"},
	ryemodels.ItemTool:      {"py", "yaml", "yml", "sh", "js", "ts", "rb"},
	ryemodels.ItemKnowledge: {"md", "yaml", "yml"},
}

// dirByType maps an item type to its directory name under a space root.
var dirByType = map[ryemodels.ItemType]string{
	ryemodels.ItemDirective: "directives",
	ryemodels.ItemTool:      "tools",
	ryemodels.ItemKnowledge: "knowledge",
}

// SpaceRoot describes one searchable space root. System space may be
// composed of multiple bundles, each with its own root and optional
// category-prefix visibility restriction; Project and User spaces are
// typically a single SpaceRoot each.
type SpaceRoot struct {
	Space    ryemodels.Space
	BundleID string
	Root     string
	// CategoryPrefixes restricts visibility to ids whose category has one
	// of these prefixes. Empty means unrestricted (visible for any id).
	CategoryPrefixes []string
}

func (sr SpaceRoot) covers(id string) bool {
	if len(sr.CategoryPrefixes) == 0 {
		return true
	}
	category := id
	if idx := strings.IndexByte(id, '/'); idx >= 0 {
		category = id[:idx]
	}
	for _, prefix := range sr.CategoryPrefixes {
		if strings.HasPrefix(category, prefix) {
			return true
		}
	}
	return false
}

type cacheKey struct {
	itemType ryemodels.ItemType
	id       string
}

type cacheEntry struct {
	path        string
	space       ryemodels.Space
	contentHash string
}

// Resolver resolves (item_type, id) to a filesystem path and space, caching
// by content hash and invalidating on filesystem change via fsnotify. The
// cache has no time-based expiry, matching spec.md §4.B: content hash is
// the sole invalidation signal.
type Resolver struct {
	mu      sync.RWMutex
	spaces  []SpaceRoot // ordered by precedence, highest first
	cache   map[cacheKey]cacheEntry
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// New builds a Resolver over the given space roots, sorted internally by
// space precedence (project ≥ user ≥ system). Multiple SpaceRoot entries
// for the system space (multi-bundle) are preserved in the order given.
func New(roots []SpaceRoot, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	sorted := make([]SpaceRoot, len(roots))
	copy(sorted, roots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Space.Precedence() > sorted[j].Space.Precedence()
	})
	return &Resolver{
		spaces: sorted,
		cache:  make(map[cacheKey]cacheEntry),
		logger: logger.With("component", "resolver"),
	}
}

// WatchForInvalidation starts an fsnotify watcher on every space root so a
// long-lived resolver invalidates cache entries on external edits without
// polling. Call Close to stop watching.
func (r *Resolver) WatchForInvalidation() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	for _, s := range r.spaces {
		if err := addRecursive(watcher, s.Root); err != nil {
			r.logger.Warn("watch space root", "root", s.Root, "error", err)
		}
	}
	r.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				r.invalidatePath(event.Name)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Warn("fsnotify error", "error", err)
			}
		}
	}()
	return nil
}

// Close stops the fsnotify watcher, if running.
func (r *Resolver) Close() error {
	if r.watcher == nil {
		return nil
	}
	return r.watcher.Close()
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

func (r *Resolver) invalidatePath(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, entry := range r.cache {
		if entry.path == path {
			delete(r.cache, key)
		}
	}
}

// Resolve finds the first matching file for (itemType, id) across spaces in
// precedence order, using the content-hash cache when possible.
func (r *Resolver) Resolve(itemType ryemodels.ItemType, id string) (path string, space ryemodels.Space, err error) {
	key := cacheKey{itemType: itemType, id: id}

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()

	if ok {
		hash, hashErr := hashFile(cached.path)
		if hashErr == nil && hash == cached.contentHash {
			return cached.path, cached.space, nil
		}
		r.mu.Lock()
		delete(r.cache, key)
		r.mu.Unlock()
	}

	path, space, err = r.search(itemType, id)
	if err != nil {
		return "", "", err
	}
	hash, hashErr := hashFile(path)
	if hashErr == nil {
		r.mu.Lock()
		r.cache[key] = cacheEntry{path: path, space: space, contentHash: hash}
		r.mu.Unlock()
	}
	return path, space, nil
}

func (r *Resolver) search(itemType ryemodels.ItemType, id string) (string, ryemodels.Space, error) {
	dir, ok := dirByType[itemType]
	if !ok {
		return "", "", ryemodels.NewRyeError(ryemodels.ErrResolution, fmt.Errorf("unknown item type %q", itemType)).WithItem(id)
	}
	exts := extensionsByType[itemType]

	r.mu.RLock()
	spaces := make([]SpaceRoot, len(r.spaces))
	copy(spaces, r.spaces)
	r.mu.RUnlock()

	for _, s := range spaces {
		if s.Space == ryemodels.SpaceSystem && !s.covers(id) {
			continue
		}
		base := filepath.Join(s.Root, dir, filepath.FromSlash(id))
		for _, ext := range exts {
			candidate := base + "." + ext
			if fi, statErr := os.Stat(candidate); statErr == nil && !fi.IsDir() {
				return candidate, s.Space, nil
			}
		}
	}
	return "", "", ryemodels.NewRyeError(ryemodels.ErrResolution,
		fmt.Errorf("item %q of type %q not found in any space", id, itemType)).WithItem(id)
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
