// Package vendoring copies the version-controlled files of a CTS checkout
// into the host tree.
package vendoring

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/eykd/ctsvendor/internal/logging"
	"github.com/eykd/ctsvendor/internal/rooted"
)

const (
	// CommitFileName holds the vendored revision, next to the copy.
	CommitFileName = "checkout_commit.txt"
	// CheckoutDirName is the directory receiving the copy.
	CheckoutDirName = "checkout"
)

// DefaultExclusions are never vendored. Each must be present upstream; a
// missing one means the list is stale.
var DefaultExclusions = []string{
	// Encrypted deployment credentials; nothing here needs them.
	"deploy_key.enc",
}

var (
	// ErrDirtyWorkingTree is matched by *DirtyWorkingTreeError.
	ErrDirtyWorkingTree = errors.New("checkout working tree is not clean")
	// ErrListingFailed wraps failures of the tracked-file listing.
	ErrListingFailed = errors.New("failed to list tracked files")
	// ErrMissingVendoredFile is matched by *MissingFilesError.
	ErrMissingVendoredFile = errors.New("tracked files missing on disk")
	// ErrExclusionNotFound is matched by *ExclusionNotFoundError.
	ErrExclusionNotFound = errors.New("excluded file not found in listing")
)

// DirtyWorkingTreeError carries the porcelain status that was not empty.
type DirtyWorkingTreeError struct {
	Status string
}

func (e *DirtyWorkingTreeError) Error() string {
	return fmt.Sprintf("expected a clean CTS working tree and index, but `git status --porcelain` reported:\n\n%s", e.Status)
}

// Is reports whether target is ErrDirtyWorkingTree.
func (e *DirtyWorkingTreeError) Is(target error) bool { return target == ErrDirtyWorkingTree }

// MissingFilesError lists paths git reported that do not exist on disk.
type MissingFilesError struct {
	Paths []string
}

func (e *MissingFilesError) Error() string {
	return fmt.Sprintf("the following files were returned by `git ls-files`, but do not exist on disk: %s",
		strings.Join(e.Paths, ", "))
}

// Is reports whether target is ErrMissingVendoredFile.
func (e *MissingFilesError) Is(target error) bool { return target == ErrMissingVendoredFile }

// ExclusionNotFoundError names an excluded path absent from the listing.
type ExclusionNotFoundError struct {
	Path string
}

func (e *ExclusionNotFoundError) Error() string {
	return fmt.Sprintf("failed to remove %s from list of files to vendor; does it still exist?", e.Path)
}

// Is reports whether target is ErrExclusionNotFound.
func (e *ExclusionNotFoundError) Is(target error) bool { return target == ErrExclusionNotFound }

// Copier vendors a checkout.
type Copier struct {
	log        *zap.Logger
	git        Git
	source     *rooted.FileRoot
	regen      *rooted.Regenerator
	exclusions []string
}

// NewCopier returns a Copier for the checkout at source, excluding
// DefaultExclusions.
func NewCopier(log *zap.Logger, git Git, source *rooted.FileRoot, regen *rooted.Regenerator) *Copier {
	return &Copier{
		log:        log,
		git:        git,
		source:     source,
		regen:      regen,
		exclusions: DefaultExclusions,
	}
}

// Vendor regenerates <vendorDir>/checkout_commit.txt and
// <vendorDir>/checkout from the checkout. Nothing is copied unless the
// working tree is clean, every tracked file exists and every exclusion is
// accounted for.
func (c *Copier) Vendor(ctx context.Context, vendorDir rooted.Path) error {
	commitFile, err := vendorDir.Child(CommitFileName)
	if err != nil {
		return err
	}
	checkoutDir, err := vendorDir.Child(CheckoutDirName)
	if err != nil {
		return err
	}

	c.log.Info("making a vendored copy of checked-in files", zap.Stringer("from", c.source))
	_, err = c.regen.File(commitFile, func(commitFile rooted.Path) error {
		status, err := c.git.StatusPorcelain(ctx)
		if err != nil {
			return fmt.Errorf("checking working tree status: %w", err)
		}
		if status != "" {
			return &DirtyWorkingTreeError{Status: status}
		}

		if _, err := c.regen.Dir(checkoutDir, func(dst rooted.Path) error {
			return c.copyTracked(ctx, dst)
		}); err != nil {
			return err
		}

		c.log.Info("writing commit ref pointed to by HEAD", zap.Stringer("path", commitFile))
		head, err := c.git.RevParseHead(ctx)
		if err != nil {
			return fmt.Errorf("resolving HEAD: %w", err)
		}
		if err := rooted.WriteFile(commitFile, []byte(head)); err != nil {
			return fmt.Errorf("failed to write HEAD ref: %w", err)
		}
		return nil
	})
	return err
}

func (c *Copier) copyTracked(ctx context.Context, dst rooted.Path) error {
	files, err := c.filesToVendor(ctx)
	if err != nil {
		return err
	}

	c.log.Info("copying files tracked by Git", zap.Stringer("to", dst), zap.Int("files", len(files)))
	if err := rooted.CreateDirAll(dst); err != nil {
		return err
	}
	for _, rel := range files {
		from, err := c.source.Child(rel)
		if err != nil {
			return err
		}
		to, err := dst.Child(rel)
		if err != nil {
			return err
		}
		if parent, ok := to.Parent(); ok {
			if err := rooted.CreateDirAll(parent); err != nil {
				return err
			}
		}
		logging.Trace(c.log, "copying", zap.Stringer("from", from), zap.Stringer("to", to))
		if err := rooted.CopyFile(from, to); err != nil {
			return err
		}
	}
	return nil
}

// filesToVendor returns the sorted tracked paths minus exclusions, after
// checking that every one of them exists.
func (c *Copier) filesToVendor(ctx context.Context) ([]string, error) {
	files, err := c.git.LsFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListingFailed, err)
	}
	slices.Sort(files)
	files = slices.Compact(files)
	logging.Trace(c.log, "tracked files", zap.Strings("files", files))

	logging.Trace(c.log, "validating that tracked files still exist")
	var missing []string
	for _, rel := range files {
		p, err := c.source.Child(rel)
		if err != nil {
			return nil, err
		}
		if !p.Exists() {
			missing = append(missing, rel)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingFilesError{Paths: missing}
	}

	logging.Trace(c.log, "stripping files we don't want to vendor", zap.Strings("exclusions", c.exclusions))
	for _, ex := range c.exclusions {
		idx, found := slices.BinarySearch(files, ex)
		if !found {
			path := ex
			if p, err := c.source.Child(ex); err == nil {
				path = p.String()
			}
			return nil, &ExclusionNotFoundError{Path: path}
		}
		files = slices.Delete(files, idx, idx+1)
	}
	return files, nil
}
