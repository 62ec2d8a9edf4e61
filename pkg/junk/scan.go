// Package junk finds and removes well-known cache, log and temp locations.
// Every destructive operation is validated against the catalog the scan was
// built from: the cleaner only ever deletes paths it advertised itself.
package junk

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxScanDepth bounds the recursive size computation; junk directories
// nested deeper than this contribute what was seen up to the limit.
const maxScanDepth = 10

// actionFunc executes one virtual catalog item.
type actionFunc func(ctx context.Context) error

// Manager scans the junk catalog and cleans selected entries.
type Manager struct {
	log       *zerolog.Logger
	targets   []target
	whitelist map[string]bool
	actions   map[string]actionFunc
}

// NewManager creates a Manager with the platform catalog and the built-in
// virtual action handlers.
func NewManager(log *zerolog.Logger) *Manager {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return newManager(log, defaultCatalog(runtime.GOOS, home), map[string]actionFunc{
		ActionDNSCache:  flushDNSCache,
		ActionClipboard: clearClipboard,
	})
}

// newManager wires an explicit catalog and action table; tests use it to
// point the manager at temp directories.
func newManager(log *zerolog.Logger, targets []target, actions map[string]actionFunc) *Manager {
	whitelist := make(map[string]bool, len(targets))
	for _, t := range targets {
		if !t.virtual {
			whitelist[filepath.Clean(t.path)] = true
		}
	}
	return &Manager{log: log, targets: targets, whitelist: whitelist, actions: actions}
}

// Scan sizes every catalog entry concurrently and returns the ones worth
// showing: real paths that exist and are non-empty, plus all virtual
// actions. Results are ordered by category, then size descending.
func (m *Manager) Scan(ctx context.Context) []Item {
	items := make([]Item, len(m.targets))
	found := make([]bool, len(m.targets))

	var wg sync.WaitGroup
	for i, t := range m.targets {
		if t.virtual {
			items[i] = m.itemFor(t, 0)
			found[i] = true
			continue
		}

		wg.Add(1)
		go func(i int, t target) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			default:
			}
			size := recursiveSize(t.path, 0)
			if size > 0 {
				items[i] = m.itemFor(t, size)
				found[i] = true
			}
		}(i, t)
	}
	wg.Wait()

	result := make([]Item, 0, len(items))
	for i, ok := range found {
		if ok {
			result = append(result, items[i])
		}
	}
	sort.SliceStable(result, func(a, b int) bool {
		if result[a].Category != result[b].Category {
			return result[a].Category < result[b].Category
		}
		return result[a].Size > result[b].Size
	})

	m.log.Info().Int("items", len(result)).Msg("junk scan complete")
	return result
}

func (m *Manager) itemFor(t target, size int64) Item {
	return Item{
		ID:          uuid.NewString(),
		Name:        t.name,
		Path:        t.path,
		Category:    t.category,
		Size:        size,
		Description: t.description,
		Warning:     t.warning,
	}
}

// recursiveSize totals regular file sizes under path. Symlinks are never
// followed, so a link into the user's documents cannot inflate a cache
// entry or, worse, mark it for deletion.
func recursiveSize(path string, depth int) int64 {
	if depth > maxScanDepth {
		return 0
	}
	info, err := os.Lstat(path)
	if err != nil || info.Mode()&os.ModeSymlink != 0 {
		return 0
	}
	if !info.IsDir() {
		if info.Mode().IsRegular() {
			return info.Size()
		}
		return 0
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return 0
	}
	var total int64
	for _, entry := range entries {
		total += recursiveSize(filepath.Join(path, entry.Name()), depth+1)
	}
	return total
}

// countFiles walks like recursiveSize but counts regular files, collecting
// up to limit paths for the dry-run preview.
func countFiles(path string, depth int, limit int, list *[]string) (int, int64) {
	if depth > maxScanDepth {
		return 0, 0
	}
	info, err := os.Lstat(path)
	if err != nil || info.Mode()&os.ModeSymlink != 0 {
		return 0, 0
	}
	if !info.IsDir() {
		if !info.Mode().IsRegular() {
			return 0, 0
		}
		if len(*list) < limit {
			*list = append(*list, path)
		}
		return 1, info.Size()
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, 0
	}
	var files int
	var bytes int64
	for _, entry := range entries {
		f, b := countFiles(filepath.Join(path, entry.Name()), depth+1, limit, list)
		files += f
		bytes += b
	}
	return files, bytes
}
