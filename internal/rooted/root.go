// Package rooted confines filesystem paths to a fixed base directory.
//
// A FileRoot is a canonical directory; every Path minted from it is
// guaranteed to resolve inside it. ctsvendor holds one root for the host
// source tree and one for the CTS checkout, so a write aimed at the wrong
// tree fails at path construction instead of landing on disk.
package rooted

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrRootNotFound is returned when a root directory does not exist or is
	// not a directory.
	ErrRootNotFound = errors.New("root directory not found")

	// ErrPathEscapesRoot is matched by every *EscapeError.
	ErrPathEscapesRoot = errors.New("path escapes root")
)

// EscapeError reports a path whose canonical form lies outside its root.
type EscapeError struct {
	Label string // label of the root (or rooted path) the path escaped
	Root  string // canonical absolute root directory
	Path  string // the offending input
}

func (e *EscapeError) Error() string {
	return fmt.Sprintf("path %q is not contained in %s root %s", e.Path, e.Label, e.Root)
}

// Is reports whether target is ErrPathEscapesRoot.
func (e *EscapeError) Is(target error) bool {
	return target == ErrPathEscapesRoot
}

// FileRoot is an immutable, canonical base directory.
type FileRoot struct {
	label string
	dir   string
}

// New canonicalizes dir and returns a root labelled label. It fails with
// ErrRootNotFound when dir does not exist or is not a directory.
func New(label, dir string) (*FileRoot, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s root %q: %v", ErrRootNotFound, label, dir, err)
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s root %q: %v", ErrRootNotFound, label, dir, err)
	}
	info, err := os.Stat(canon)
	if err != nil {
		return nil, fmt.Errorf("%w: %s root %q: %v", ErrRootNotFound, label, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s root %q is not a directory", ErrRootNotFound, label, dir)
	}
	return &FileRoot{label: label, dir: canon}, nil
}

// Label returns the human-readable name of the root.
func (r *FileRoot) Label() string { return r.label }

// Dir returns the canonical absolute directory of the root.
func (r *FileRoot) Dir() string { return r.dir }

// String renders the root's absolute directory.
func (r *FileRoot) String() string { return r.dir }

// Path returns the root directory itself as a Path.
func (r *FileRoot) Path() Path { return Path{root: r, rel: "."} }

// Child resolves p, absolute or relative to the root, to a contained Path.
// Symlinks and ".." segments are resolved before the containment check; a
// path outside the root yields an *EscapeError. Callers use it both to mint
// paths and to test containment, so failure is an ordinary error.
func (r *FileRoot) Child(p string) (Path, error) {
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(r.dir, p)
	}
	canon, err := canonicalize(abs)
	if err != nil {
		return Path{}, fmt.Errorf("resolving %q under %s root %s: %w", p, r.label, r.dir, err)
	}
	if !within(r.dir, canon) {
		return Path{}, &EscapeError{Label: r.label, Root: r.dir, Path: p}
	}
	rel, err := filepath.Rel(r.dir, canon)
	if err != nil {
		return Path{}, &EscapeError{Label: r.label, Root: r.dir, Path: p}
	}
	return Path{root: r, rel: rel}, nil
}

// MustChild is Child for fixed layout paths known to be contained; it
// panics on failure.
func (r *FileRoot) MustChild(p string) Path {
	c, err := r.Child(p)
	if err != nil {
		panic(err)
	}
	return c
}

// Contains reports whether p resolves inside the root.
func (r *FileRoot) Contains(p string) bool {
	_, err := r.Child(p)
	return err == nil
}

// canonicalize makes p absolute and resolves symlinks in its longest
// existing ancestor; the non-existent tail is appended unchanged.
func canonicalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	var tail []string
	cur := abs
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(append([]string{resolved}, tail...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, nil
		}
		tail = append([]string{filepath.Base(cur)}, tail...)
		cur = parent
	}
}

// within reports whether p equals base or lies beneath it, comparing whole
// path components.
func within(base, p string) bool {
	if p == base {
		return true
	}
	rel, err := filepath.Rel(base, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
