package rooted

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNotAFile is returned by ExistingFile for missing or non-regular paths.
var ErrNotAFile = errors.New("not an existing regular file")

// CreateDirAll creates p and any missing parents.
func CreateDirAll(p Path) error {
	if err := os.MkdirAll(p.Abs(), 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", p, err)
	}
	return nil
}

// RemoveFile unlinks the file at p.
func RemoveFile(p Path) error {
	if err := os.Remove(p.Abs()); err != nil {
		return fmt.Errorf("failed to remove file %s: %w", p, err)
	}
	return nil
}

// ExistingFile returns p if it names an existing regular file.
func ExistingFile(p Path) (Path, error) {
	info, err := os.Stat(p.Abs())
	if err != nil {
		return Path{}, fmt.Errorf("%w: %s: %v", ErrNotAFile, p, err)
	}
	if !info.Mode().IsRegular() {
		return Path{}, fmt.Errorf("%w: %s", ErrNotAFile, p)
	}
	return p, nil
}

// ReadFile reads the whole file at p.
func ReadFile(p Path) ([]byte, error) {
	data, err := os.ReadFile(p.Abs())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return data, nil
}

// WriteFile creates or truncates p with data.
func WriteFile(p Path, data []byte) error {
	if err := os.WriteFile(p.Abs(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	return nil
}

// CopyFile copies the contents and permission bits of from to to. The
// parent of to must exist.
func CopyFile(from, to Path) (err error) {
	src, err := os.Open(from.Abs())
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", from, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", from, err)
	}

	dst, err := os.OpenFile(to.Abs(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", to, err)
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", to, cerr)
		}
	}()

	if _, err = io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", from, to, err)
	}
	return nil
}

// CopyDir recursively copies the tree at from into to, creating to.
func CopyDir(from, to Path) error {
	return filepath.WalkDir(from.Abs(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(from.Abs(), path)
		if err != nil {
			return err
		}
		src, err := from.Child(rel)
		if err != nil {
			return err
		}
		dst, err := to.Child(rel)
		if err != nil {
			return err
		}
		if d.IsDir() {
			return CreateDirAll(dst)
		}
		return CopyFile(src, dst)
	})
}
