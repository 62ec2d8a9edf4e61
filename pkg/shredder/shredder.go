// Package shredder overwrites files in place before deleting them, so the
// content cannot be recovered from the raw disk. Overwriting only helps on
// magnetic or unencrypted storage; on wear-leveled flash the eraser falls
// back to a plain delete rather than pretend.
package shredder

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	bufferSize = 1 << 20
	// MaxFileSize caps a single shred target. Anything bigger is almost
	// certainly a disk image or database the user did not mean to select.
	MaxFileSize = 10 << 30
)

// systemRoots are directories the eraser refuses to touch, per platform.
var systemRoots = map[string][]string{
	"linux":   {"/bin", "/boot", "/dev", "/etc", "/lib", "/proc", "/run", "/sbin", "/sys", "/usr", "/var/lib"},
	"darwin":  {"/bin", "/etc", "/sbin", "/usr", "/System", "/Library", "/private/etc", "/private/var/db"},
	"windows": {`C:\Windows`, `C:\Program Files`, `C:\Program Files (x86)`, `C:\ProgramData`},
}

// flashPlatforms get a plain delete: wear leveling makes overwriting a lie.
var flashPlatforms = map[string]bool{"android": true, "ios": true}

// ProgressFunc receives per-file overwrite progress, 0-100.
type ProgressFunc func(file string, percent int)

// FilePlan is the dry-run preview for one path.
type FilePlan struct {
	Path     string   `json:"path"`
	Size     int64    `json:"size"`
	IsDir    bool     `json:"isDir"`
	Warnings []string `json:"warnings,omitempty"`
}

// DryRunReport summarizes what an erase would do without touching anything.
type DryRunReport struct {
	Items      []FilePlan `json:"items"`
	Blocked    []string   `json:"blocked,omitempty"`
	TotalBytes int64      `json:"totalBytes"`
}

// Eraser performs multi-pass secure deletion.
type Eraser struct {
	log *zerolog.Logger
}

// NewEraser creates an Eraser logging through the given logger.
func NewEraser(log *zerolog.Logger) *Eraser {
	return &Eraser{log: log}
}

// Validate checks that a path is something we are willing to destroy.
func (e *Eraser) Validate(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("path does not exist: %s", path)
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("refusing to shred symlink: %s", path)
	}
	if !info.IsDir() && !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", path)
	}
	if info.Mode().IsRegular() && info.Size() > MaxFileSize {
		return fmt.Errorf("file too large to shred (>10 GiB): %s", path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	for _, root := range systemRoots[runtime.GOOS] {
		if abs == root || strings.HasPrefix(abs, root+string(filepath.Separator)) {
			return fmt.Errorf("refusing to shred system path: %s", path)
		}
	}
	return nil
}

// DryRun previews an erase. Valid paths are listed with sizes and warnings,
// invalid ones end up in Blocked; nothing is modified.
func (e *Eraser) DryRun(paths []string) *DryRunReport {
	report := &DryRunReport{}
	for _, path := range paths {
		if err := e.Validate(path); err != nil {
			report.Blocked = append(report.Blocked, err.Error())
			continue
		}

		plan := FilePlan{Path: path}
		info, err := os.Lstat(path)
		if err != nil {
			report.Blocked = append(report.Blocked, err.Error())
			continue
		}
		if info.IsDir() {
			plan.IsDir = true
			plan.Size = dirSize(path)
			plan.Warnings = append(plan.Warnings, "directory: every file inside will be shredded")
		} else {
			plan.Size = info.Size()
		}
		if flashPlatforms[runtime.GOOS] {
			plan.Warnings = append(plan.Warnings, "flash storage: file will be deleted without overwrite")
		}
		report.Items = append(report.Items, plan)
		report.TotalBytes += plan.Size
	}
	return report
}

// Erase destroys one path with the given method and returns the number of
// bytes overwritten. A file that has started overwriting is always carried
// through every pass; for directories, cancellation is honoured between
// children.
func (e *Eraser) Erase(ctx context.Context, path string, method Method, progress ProgressFunc) (int64, error) {
	if err := e.Validate(path); err != nil {
		return 0, err
	}
	plan, err := planFor(method)
	if err != nil {
		return 0, err
	}

	info, err := os.Lstat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return e.eraseDir(ctx, path, plan, progress)
	}
	return e.eraseFile(path, plan, progress)
}

// eraseDir shreds children depth-first, then removes the empty directory.
func (e *Eraser) eraseDir(ctx context.Context, path string, plan []pass, progress ProgressFunc) (int64, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read directory %s: %w", path, err)
	}

	var total int64
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		child := filepath.Join(path, entry.Name())
		info, err := os.Lstat(child)
		if err != nil {
			return total, fmt.Errorf("failed to stat %s: %w", child, err)
		}

		var n int64
		switch {
		case info.Mode()&os.ModeSymlink != 0:
			// Remove the link itself, never follow it.
			err = os.Remove(child)
		case info.IsDir():
			n, err = e.eraseDir(ctx, child, plan, progress)
		default:
			n, err = e.eraseFile(child, plan, progress)
		}
		if err != nil {
			return total, err
		}
		total += n
	}

	if err := os.Remove(path); err != nil {
		return total, fmt.Errorf("failed to remove directory %s: %w", path, err)
	}
	return total, nil
}

// eraseFile runs the full pass plan over one file, then renames it to a
// random name and removes it so the original filename leaves the directory
// entry too.
func (e *Eraser) eraseFile(path string, plan []pass, progress ProgressFunc) (int64, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	size := info.Size()
	base := filepath.Base(path)

	if flashPlatforms[runtime.GOOS] {
		if err := os.Remove(path); err != nil {
			return 0, fmt.Errorf("failed to delete %s: %w", path, err)
		}
		return size, nil
	}

	// Clear read-only so the overwrite can proceed.
	if info.Mode().Perm()&0200 == 0 {
		if err := os.Chmod(path, info.Mode().Perm()|0200); err != nil {
			return 0, fmt.Errorf("failed to make %s writable: %w", path, err)
		}
	}

	if size > 0 {
		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err != nil {
			return 0, fmt.Errorf("failed to open %s for overwrite: %w", path, err)
		}

		buf := make([]byte, bufferSize)
		totalWork := size * int64(len(plan))
		var done int64
		lastPercent := -1

		for _, p := range plan {
			if _, err := f.Seek(0, 0); err != nil {
				f.Close()
				return 0, fmt.Errorf("failed to rewind %s: %w", path, err)
			}
			if !p.random {
				for i := range buf {
					buf[i] = p.pattern
				}
			}

			var written int64
			for written < size {
				n := int64(len(buf))
				if size-written < n {
					n = size - written
				}
				if p.random {
					if _, err := rand.Read(buf[:n]); err != nil {
						f.Close()
						return 0, fmt.Errorf("failed to generate overwrite data: %w", err)
					}
				}
				if _, err := f.Write(buf[:n]); err != nil {
					f.Close()
					return 0, fmt.Errorf("overwrite failed on %s: %w", path, err)
				}
				written += n
				done += n

				percent := int(float64(done) / float64(totalWork) * 100)
				if progress != nil && percent >= lastPercent+5 {
					progress(base, percent)
					lastPercent = percent
				}
			}

			// Flush each pass before the next, or the passes collapse
			// into one in the page cache.
			if err := f.Sync(); err != nil {
				f.Close()
				return 0, fmt.Errorf("failed to sync %s: %w", path, err)
			}
		}
		if err := f.Close(); err != nil {
			return 0, fmt.Errorf("failed to close %s: %w", path, err)
		}
	}

	// Rename to a random name to scrub the filename from the directory,
	// then delete. If the rename fails, delete in place.
	newPath := filepath.Join(filepath.Dir(path), uuid.NewString())
	if err := os.Rename(path, newPath); err == nil {
		path = newPath
	}
	if err := os.Remove(path); err != nil {
		return 0, fmt.Errorf("failed to delete %s: %w", path, err)
	}

	if progress != nil {
		progress(base, 100)
	}
	e.log.Debug().Str("path", path).Int("passes", len(plan)).Msg("file shredded")
	return size, nil
}

func dirSize(path string) int64 {
	var total int64
	filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil && info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	return total
}
