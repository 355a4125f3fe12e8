// Package discover locates repository roots by walking up from a starting
// directory.
package discover

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when no matching directory exists at or above
// the starting point.
var ErrNotFound = errors.New("not found in any parent directory")

// FindUp returns the path of the first directory named name found in start
// or one of its ancestors.
func FindUp(start, name string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", start, err)
	}
	for {
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err == nil && info.IsDir() {
			return candidate, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("checking %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: %q above %s", ErrNotFound, name, start)
		}
		dir = parent
	}
}

// HostRoot returns the top-level directory of the Mercurial or Git
// repository containing start. Mercurial wins when both are present.
func HostRoot(start string) (string, error) {
	hg, hgErr := FindUp(start, ".hg")
	if hgErr == nil {
		return filepath.Dir(hg), nil
	}
	git, gitErr := FindUp(start, ".git")
	if gitErr == nil {
		return filepath.Dir(git), nil
	}
	return "", fmt.Errorf("failed to find a Mercurial or Git repository root above %s: %w",
		start, errors.Join(hgErr, gitErr))
}

// Checkout returns the .git directory governing path and its work tree.
func Checkout(path string) (gitDir, workTree string, err error) {
	gitDir, err = FindUp(path, ".git")
	if err != nil {
		return "", "", fmt.Errorf("failed to find a Git repository (`.git` directory) at or above %s: %w", path, err)
	}
	return gitDir, filepath.Dir(gitDir), nil
}
