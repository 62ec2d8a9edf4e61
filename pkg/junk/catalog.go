package junk

import (
	"os"
	"path/filepath"
)

// Category groups junk items in the UI.
type Category string

const (
	CategoryBrowser   Category = "Browser"
	CategorySystem    Category = "System"
	CategoryLogs      Category = "Logs"
	CategoryDeveloper Category = "Developer"
	CategoryNetwork   Category = "Network"
	CategoryOther     Category = "Other"
)

// Virtual action markers. These are not filesystem paths; they dispatch to
// the action handler table instead of the deleter.
const (
	ActionDNSCache  = "::DNS_CACHE::"
	ActionClipboard = "::CLIPBOARD::"
)

// Item is one cleanable target presented to the user.
type Item struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Path        string   `json:"path"`
	Category    Category `json:"category"`
	Size        int64    `json:"size"`
	Description string   `json:"description"`
	Warning     string   `json:"warning,omitempty"`
}

// target is a catalog entry before scanning resolves sizes.
type target struct {
	name        string
	path        string
	category    Category
	description string
	warning     string
	virtual     bool
}

// defaultCatalog lists the well-known junk locations for one platform.
// Developer caches carry warnings: deleting them is safe but forces slow
// re-downloads, so the UI must not preselect them.
func defaultCatalog(goos, home string) []target {
	var targets []target

	switch goos {
	case "darwin":
		targets = append(targets,
			target{name: "Chrome Cache", path: filepath.Join(home, "Library/Caches/Google/Chrome"), category: CategoryBrowser, description: "Chromium browser cache"},
			target{name: "Safari Cache", path: filepath.Join(home, "Library/Caches/com.apple.Safari"), category: CategoryBrowser, description: "Safari browser cache"},
			target{name: "Firefox Cache", path: filepath.Join(home, "Library/Caches/Firefox"), category: CategoryBrowser, description: "Firefox browser cache"},
			target{name: "User Caches", path: filepath.Join(home, "Library/Caches"), category: CategorySystem, description: "Per-user application caches", warning: "applications rebuild caches on next launch"},
			target{name: "User Logs", path: filepath.Join(home, "Library/Logs"), category: CategoryLogs, description: "Per-user application logs"},
		)
	case "windows":
		local := os.Getenv("LOCALAPPDATA")
		roaming := os.Getenv("APPDATA")
		targets = append(targets,
			target{name: "Chrome Cache", path: filepath.Join(local, `Google\Chrome\User Data\Default\Cache`), category: CategoryBrowser, description: "Chromium browser cache"},
			target{name: "Edge Cache", path: filepath.Join(local, `Microsoft\Edge\User Data\Default\Cache`), category: CategoryBrowser, description: "Edge browser cache"},
			target{name: "Firefox Cache", path: filepath.Join(local, `Mozilla\Firefox\Profiles`), category: CategoryBrowser, description: "Firefox profile caches", warning: "contains live profile data; only cache subfolders are removed"},
			target{name: "Temp Files", path: filepath.Join(local, "Temp"), category: CategorySystem, description: "User temporary files"},
			target{name: "Recent Documents", path: filepath.Join(roaming, `Microsoft\Windows\Recent`), category: CategoryOther, description: "Recently opened document shortcuts"},
		)
	default: // linux and the BSDs
		targets = append(targets,
			target{name: "Chrome Cache", path: filepath.Join(home, ".cache/google-chrome"), category: CategoryBrowser, description: "Chromium browser cache"},
			target{name: "Chromium Cache", path: filepath.Join(home, ".cache/chromium"), category: CategoryBrowser, description: "Chromium browser cache"},
			target{name: "Firefox Cache", path: filepath.Join(home, ".cache/mozilla"), category: CategoryBrowser, description: "Firefox browser cache"},
			target{name: "Thumbnail Cache", path: filepath.Join(home, ".cache/thumbnails"), category: CategorySystem, description: "Image thumbnail cache"},
			target{name: "User Cache", path: filepath.Join(home, ".cache"), category: CategorySystem, description: "Per-user application caches", warning: "applications rebuild caches on next launch"},
			target{name: "Session Logs", path: filepath.Join(home, ".local/share/xorg"), category: CategoryLogs, description: "X session logs"},
		)
	}

	// Developer caches, mostly cross-platform locations.
	targets = append(targets,
		target{name: "npm Cache", path: filepath.Join(home, ".npm"), category: CategoryDeveloper, description: "npm package cache", warning: "packages will be re-downloaded on next install"},
		target{name: "Yarn Cache", path: filepath.Join(home, ".cache/yarn"), category: CategoryDeveloper, description: "Yarn package cache", warning: "packages will be re-downloaded on next install"},
		target{name: "Cargo Cache", path: filepath.Join(home, ".cargo/registry/cache"), category: CategoryDeveloper, description: "Rust crate cache", warning: "crates will be re-downloaded on next build"},
		target{name: "pip Cache", path: filepath.Join(home, ".cache/pip"), category: CategoryDeveloper, description: "Python package cache", warning: "packages will be re-downloaded on next install"},
		target{name: "Go Build Cache", path: filepath.Join(home, ".cache/go-build"), category: CategoryDeveloper, description: "Go build cache", warning: "next build will be slower"},
	)

	// Virtual actions: no path on disk, handled by the action table.
	targets = append(targets,
		target{name: "DNS Cache", path: ActionDNSCache, category: CategoryNetwork, description: "Flush the system DNS resolver cache", virtual: true},
		target{name: "Clipboard", path: ActionClipboard, category: CategorySystem, description: "Clear the system clipboard", virtual: true},
	)

	return targets
}
