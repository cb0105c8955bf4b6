package filesystem

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// pathSeparator is the platform's native path separator as a string.
const pathSeparator = string(os.PathSeparator)

// TrimPathPrefix returns the portion of path beneath base, along with an
// indication of whether or not path actually lies at or beneath base. The
// comparison respects path component boundaries, so "/x/yz" does not lie
// beneath "/x/y". If path equals base, the returned suffix is empty.
func TrimPathPrefix(path, base string) (string, bool) {
	// An empty base can't contain anything.
	if base == "" {
		return "", false
	}

	// Discard any trailing separator on the base (unless the base is the root
	// directory itself).
	if base != pathSeparator {
		base = strings.TrimSuffix(base, pathSeparator)
	}

	// Handle exact matches.
	if path == base {
		return "", true
	}

	// Compute the prefix that path must carry to lie beneath base.
	prefix := base
	if base != pathSeparator {
		prefix = base + pathSeparator
	}

	// Check containment.
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	return path[len(prefix):], true
}

// ContainsPath indicates whether or not path lies at or beneath base,
// respecting path component boundaries.
func ContainsPath(base, path string) bool {
	_, ok := TrimPathPrefix(path, base)
	return ok
}

// JoinRelative joins a relative path onto a base path. Unlike filepath.Join,
// it leaves the base untouched when the relative path is empty, so that paths
// supplied by the parent process aren't silently rewritten.
func JoinRelative(base, path string) string {
	if path == "" {
		return base
	}
	return filepath.Join(base, path)
}

// Canonicalize fully resolves a path, evaluating any symbolic links along it.
// The path must exist.
func Canonicalize(path string) (string, error) {
	result, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", errors.Wrap(err, "unable to resolve path")
	}
	return result, nil
}
