package junk

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// dryRunFileLimit caps how many individual paths a preview lists.
	dryRunFileLimit = 100
	// maxCleanBytes refuses absurd selections outright. A single run
	// deleting more than this is almost certainly a mistake.
	maxCleanBytes = 50 << 30
	// largeSelectionWarning threshold for the dry-run warning.
	largeSelectionBytes = 10 << 30
)

// CleanResult reports what a clean run achieved.
type CleanResult struct {
	BytesFreed   int64    `json:"bytesFreed"`
	FilesDeleted int      `json:"filesDeleted"`
	Errors       []string `json:"errors,omitempty"`
	Cancelled    bool     `json:"cancelled"`
}

// DryRunResult previews a clean without touching anything.
type DryRunResult struct {
	TotalFiles int      `json:"totalFiles"`
	TotalSize  int64    `json:"totalSize"`
	FileList   []string `json:"fileList"`
	Warnings   []string `json:"warnings,omitempty"`
}

// ProgressFunc receives one event per processed selection entry.
type ProgressFunc func(current, total int, name string, bytesFreed int64)

// validate rejects anything the catalog did not advertise. The whitelist is
// the security boundary: the UI hands back paths, and nothing outside the
// scanned catalog is ever deleted no matter what arrives here.
func (m *Manager) validate(path string) error {
	if m.whitelist[filepath.Clean(path)] {
		return nil
	}
	return fmt.Errorf("path not in the cleanable catalog: %s", path)
}

// Estimate previews cleaning the given selection. Virtual actions count as
// zero bytes; they are noted in the warnings instead.
func (m *Manager) Estimate(paths []string) (*DryRunResult, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no paths selected")
	}

	result := &DryRunResult{FileList: []string{}}
	for _, path := range paths {
		if _, ok := m.actions[path]; ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s is a system action; nothing to measure", path))
			continue
		}
		if err := m.validate(path); err != nil {
			result.Warnings = append(result.Warnings, err.Error())
			continue
		}
		files, bytes := countFiles(path, 0, dryRunFileLimit, &result.FileList)
		result.TotalFiles += files
		result.TotalSize += bytes

		if looksLikeLiveProfile(path) {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s may contain live browser profile data", path))
		}
	}

	if result.TotalSize > largeSelectionBytes {
		result.Warnings = append(result.Warnings, "selection exceeds 10 GiB; double-check before cleaning")
	}
	return result, nil
}

// Clean deletes the selected catalog entries. Real paths have their
// contents removed (the directory itself stays, applications expect it);
// virtual entries dispatch to the action table. Failures are collected
// per item and cancellation is honoured between items.
func (m *Manager) Clean(ctx context.Context, paths []string, progress ProgressFunc) (*CleanResult, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no paths selected")
	}

	// Refuse oversized selections before deleting anything.
	var planned int64
	for _, path := range paths {
		if _, ok := m.actions[path]; !ok && m.validate(path) == nil {
			planned += recursiveSize(path, 0)
		}
	}
	if planned > maxCleanBytes {
		return nil, fmt.Errorf("selection exceeds the 50 GiB per-run safety cap")
	}

	result := &CleanResult{}
	for i, path := range paths {
		select {
		case <-ctx.Done():
			result.Cancelled = true
			return result, nil
		default:
		}

		if action, ok := m.actions[path]; ok {
			if err := action(ctx); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
			}
		} else if err := m.validate(path); err != nil {
			result.Errors = append(result.Errors, err.Error())
		} else {
			files, bytes, errs := m.cleanPath(path)
			result.FilesDeleted += files
			result.BytesFreed += bytes
			result.Errors = append(result.Errors, errs...)
		}

		if progress != nil {
			progress(i+1, len(paths), path, result.BytesFreed)
		}
	}

	m.log.Info().Int("files", result.FilesDeleted).Int64("bytes", result.BytesFreed).
		Int("errors", len(result.Errors)).Msg("junk clean complete")
	return result, nil
}

// cleanPath removes the contents of one catalog entry. Entries that are
// plain files are removed directly.
func (m *Manager) cleanPath(path string) (int, int64, []string) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil // already gone is success
		}
		return 0, 0, []string{fmt.Sprintf("%s: %v", path, err)}
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return 0, 0, []string{fmt.Sprintf("refusing to clean symlink: %s", path)}
	}

	if !info.IsDir() {
		if err := os.Remove(path); err != nil {
			return 0, 0, []string{fmt.Sprintf("%s: %v", path, err)}
		}
		return 1, info.Size(), nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, 0, []string{fmt.Sprintf("%s: %v", path, err)}
	}

	var files int
	var bytes int64
	var errs []string
	for _, entry := range entries {
		child := filepath.Join(path, entry.Name())
		var list []string
		// Children sit one level below the catalog root; counting them at
		// depth 1 keeps the totals identical to what Estimate reported.
		f, b := countFiles(child, 1, 0, &list)
		if err := os.RemoveAll(child); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", child, err))
			continue
		}
		files += f
		bytes += b
	}
	return files, bytes, errs
}

func looksLikeLiveProfile(path string) bool {
	lower := strings.ToLower(path)
	return strings.Contains(lower, "profiles") || strings.Contains(lower, "mozilla")
}

// flushDNSCache asks the platform resolver to drop its cache. Best effort:
// the exact tooling varies even between distributions.
func flushDNSCache(ctx context.Context) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.CommandContext(ctx, "dscacheutil", "-flushcache").Run()
	case "windows":
		return exec.CommandContext(ctx, "ipconfig", "/flushdns").Run()
	default:
		if err := exec.CommandContext(ctx, "resolvectl", "flush-caches").Run(); err == nil {
			return nil
		}
		return exec.CommandContext(ctx, "systemd-resolve", "--flush-caches").Run()
	}
}

// clearClipboard overwrites the system clipboard with nothing.
func clearClipboard(ctx context.Context) error {
	switch runtime.GOOS {
	case "darwin":
		cmd := exec.CommandContext(ctx, "pbcopy")
		cmd.Stdin = strings.NewReader("")
		return cmd.Run()
	case "windows":
		cmd := exec.CommandContext(ctx, "cmd", "/c", "clip")
		cmd.Stdin = strings.NewReader("")
		return cmd.Run()
	default:
		cmd := exec.CommandContext(ctx, "xsel", "-bc")
		if err := cmd.Run(); err == nil {
			return nil
		}
		wl := exec.CommandContext(ctx, "wl-copy", "--clear")
		return wl.Run()
	}
}
