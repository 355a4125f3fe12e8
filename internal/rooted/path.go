package rooted

import (
	"os"
	"path/filepath"
)

// Path is a location guaranteed to lie within its FileRoot. The zero value
// is not usable.
type Path struct {
	root *FileRoot
	rel  string
}

// Root returns the root the path was derived from.
func (p Path) Root() *FileRoot { return p.root }

// Rel returns the path relative to its root ("." for the root itself).
func (p Path) Rel() string { return p.rel }

// Abs returns the absolute path.
func (p Path) Abs() string {
	if p.rel == "." {
		return p.root.dir
	}
	return filepath.Join(p.root.dir, p.rel)
}

// String renders the absolute path so diagnostics do not depend on the
// working directory.
func (p Path) String() string { return p.Abs() }

// Child resolves rel beneath p. The result must be contained in p itself,
// not merely in p's root.
func (p Path) Child(rel string) (Path, error) {
	target := rel
	if !filepath.IsAbs(target) {
		target = filepath.Join(p.Abs(), rel)
	}
	c, err := p.root.Child(target)
	if err != nil {
		return Path{}, err
	}
	if !within(p.Abs(), c.Abs()) {
		return Path{}, &EscapeError{Label: p.root.label, Root: p.Abs(), Path: rel}
	}
	return c, nil
}

// MustChild is Child for fixed names; it panics on failure.
func (p Path) MustChild(rel string) Path {
	c, err := p.Child(rel)
	if err != nil {
		panic(err)
	}
	return c
}

// Parent returns the containing directory. It reports false for the root.
func (p Path) Parent() (Path, bool) {
	if p.rel == "." {
		return Path{}, false
	}
	return Path{root: p.root, rel: filepath.Dir(p.rel)}, true
}

// Exists reports whether anything exists at p.
func (p Path) Exists() bool {
	_, err := os.Lstat(p.Abs())
	return err == nil
}

// IsDir reports whether p is an existing directory.
func (p Path) IsDir() bool {
	info, err := os.Stat(p.Abs())
	return err == nil && info.IsDir()
}
