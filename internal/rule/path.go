package rule

import (
	"os"
	"path/filepath"
	"strings"
)

// NormalizePath expands "~/", resolves relative paths against cwd and
// canonicalizes the result. Paths that do not exist are canonicalized up to
// their deepest existing ancestor.
func NormalizePath(path, cwd string) string {
	switch {
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	case strings.HasPrefix(path, "./"):
		path = filepath.Join(cwd, path[2:])
	case !filepath.IsAbs(path):
		path = filepath.Join(cwd, path)
	}
	return canonicalize(path)
}

func canonicalize(path string) string {
	path = filepath.Clean(path)

	dir, rest := path, ""
	for {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			if rest == "" {
				return resolved
			}
			return filepath.Join(resolved, rest)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return path
		}
		if rest == "" {
			rest = filepath.Base(dir)
		} else {
			rest = filepath.Join(filepath.Base(dir), rest)
		}
		dir = parent
	}
}

// IsWithinDir reports whether path is dir or lies under it.
func IsWithinDir(path, dir string) bool {
	path = filepath.Clean(path)
	dir = filepath.Clean(dir)

	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
