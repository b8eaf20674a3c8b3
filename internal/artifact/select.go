// Package artifact implements the Artifact Engine of spec.md §4.4:
// glob-based file selection, optional compression, content-addressed
// storage with a JSON manifest, and a SQLite catalog index for fast
// List/Exists/Cleanup lookups (distinct from run-history persistence,
// which this system deliberately has no part of).
//
// Grounded on the teacher's doublestar usage in packages/core/heal/
// tools/glob.go (os.DirFS + doublestar.Glob) for selection, and the
// teacher's internal/persistence/sqlite.go (PRAGMA tuning, 0600 file
// permissions, ncruces/go-sqlite3 driver+embed blank imports) for the
// catalog's storage idiom — retargeted from scan-finding records to
// artifact-manifest summaries.
package artifact

import (
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// SelectFiles resolves patterns against root (a workspace directory) into
// a sorted, deduplicated list of root-relative file paths, per spec.md
// §4.4 "Selection": patterns starting with "!" remove from the current
// match set, all others union into it.
func SelectFiles(root string, patterns []string) ([]string, error) {
	matched := make(map[string]struct{})

	for _, pattern := range patterns {
		exclude := false
		p := pattern
		if strings.HasPrefix(p, "!") {
			exclude = true
			p = p[1:]
		}

		fsys := os.DirFS(root)
		matches, err := doublestar.Glob(fsys, p)
		if err != nil {
			return nil, err
		}

		for _, m := range matches {
			if isDir(fsys, m) {
				continue
			}
			if exclude {
				delete(matched, m)
			} else {
				matched[m] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(matched))
	for m := range matched {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func isDir(fsys fs.FS, path string) bool {
	info, err := fs.Stat(fsys, path)
	return err == nil && info.IsDir()
}
