package preset

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"videostove/internal/model"
)

// Entry is one selectable preset, expanded per profile for
// multi-profile files.
type Entry struct {
	Name    string           `json:"name"`
	Path    string           `json:"path"`
	Profile string           `json:"profile,omitempty"`
	Mode    model.RenderMode `json:"mode"`
	Issues  []string         `json:"issues,omitempty"`
}

// SearchPaths returns the preset lookup tiers under a workspace root,
// highest priority first. Only existing directories are returned.
func SearchPaths(root string) []string {
	var paths []string
	for _, dir := range []string{
		filepath.Join(root, "assets", "presets"),
		filepath.Join(root, "assets"),
	} {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			paths = append(paths, dir)
		}
	}
	return paths
}

// Find lists every loadable preset profile across the search paths.
// Files that fail to parse are skipped rather than failing the whole
// listing.
func Find(searchPaths []string) []Entry {
	var entries []Entry
	seen := make(map[string]bool)

	for _, dir := range searchPaths {
		matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
		if err != nil {
			continue
		}
		sort.Strings(matches)
		for _, path := range matches {
			raw, err := loadFile(path)
			if err != nil {
				continue
			}
			profiles, err := Profiles(raw)
			if err != nil {
				continue
			}
			base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			if len(profiles) == 1 {
				for _, cfg := range profiles {
					entries = appendEntry(entries, seen, Entry{
						Name:   base,
						Path:   path,
						Mode:   DetectMode(cfg),
						Issues: Validate(cfg),
					})
				}
				continue
			}
			for _, profile := range profileNames(profiles) {
				cfg := profiles[profile]
				entries = appendEntry(entries, seen, Entry{
					Name:    base + ":" + profile,
					Path:    path,
					Profile: profile,
					Mode:    DetectMode(cfg),
					Issues:  Validate(cfg),
				})
			}
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

func appendEntry(entries []Entry, seen map[string]bool, e Entry) []Entry {
	// First tier wins for duplicate basenames.
	if seen[e.Name] {
		return entries
	}
	seen[e.Name] = true
	return append(entries, e)
}
