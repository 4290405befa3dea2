// Package walker enumerates regular files under a root directory,
// generalizing the teacher's internal/filesystem.SearchDirs walk (spec
// §4.2): no extension/name filtering here — that decision belongs to
// the Store's own video-extension filter, not the Walker.
package walker

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Result is the outcome of a single Walk call.
type Result struct {
	Paths   []string // absolute paths of every regular file found
	Skipped int      // entries that could not be stat-ed
}

// Walk enumerates every regular file reachable under root. Symlinks are
// followed if and only if fs.WalkDir's entry reports them as a regular
// file; with os.DirFS the entry's Info() describes the link itself
// (Lstat semantics), so symlinks are never reported as regular files and
// are omitted. Entries that cannot be stat-ed are counted, logged at
// warn level, and omitted; non-files are omitted.
func Walk(root string) (Result, error) {
	root = filepath.Clean(root)
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Result{}, err
	}

	var res Result
	fsys := os.DirFS(absRoot)

	walkErr := fs.WalkDir(fsys, ".", func(relPath string, d fs.DirEntry, err error) error {
		if err != nil {
			res.Skipped++
			slog.Warn("walker: skipping entry", slog.String("path", relPath), slog.Any("error", err))
			return nil
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			res.Skipped++
			slog.Warn("walker: could not stat entry", slog.String("path", relPath), slog.Any("error", err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		res.Paths = append(res.Paths, filepath.Join(absRoot, relPath))
		return nil
	})
	if walkErr != nil {
		return res, walkErr
	}
	return res, nil
}
