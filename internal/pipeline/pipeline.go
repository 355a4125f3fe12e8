// Package pipeline runs a full CTS vendoring: copy the checkout into the
// host tree, build the WPT documents, chunk them and install the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/eykd/ctsvendor/internal/cases"
	"github.com/eykd/ctsvendor/internal/chunk"
	"github.com/eykd/ctsvendor/internal/command"
	"github.com/eykd/ctsvendor/internal/config"
	"github.com/eykd/ctsvendor/internal/discover"
	"github.com/eykd/ctsvendor/internal/rooted"
	"github.com/eykd/ctsvendor/internal/vendoring"
)

var (
	// ErrLayoutDirMissing is returned when a configured host directory is absent.
	ErrLayoutDirMissing = errors.New("host layout directory missing")
	// ErrNestedRoots is matched by *NestedRootsError.
	ErrNestedRoots = errors.New("nested repository roots")
)

// NestedRootsError reports that one root lies within the other.
type NestedRootsError struct {
	Inner, Outer string
}

func (e *NestedRootsError) Error() string {
	return fmt.Sprintf("%s is a child path of %s, which is not supported", e.Inner, e.Outer)
}

// Is reports whether target is ErrNestedRoots.
func (e *NestedRootsError) Is(target error) bool { return target == ErrNestedRoots }

// Tools are the external programs a run drives.
type Tools struct {
	Git vendoring.Git
	NPM NPM
}

// ToolFactory builds Tools once the checkout is known.
type ToolFactory func(log *zap.Logger, cts *rooted.FileRoot, gitDir string) (Tools, error)

// SystemTools locates git and npm on PATH.
func SystemTools(log *zap.Logger, cts *rooted.FileRoot, gitDir string) (Tools, error) {
	gitBin, err := command.Which("git", "Git binary")
	if err != nil {
		return Tools{}, err
	}
	npmBin, err := command.Which("npm", "NPM binary")
	if err != nil {
		return Tools{}, err
	}
	return Tools{
		Git: vendoring.NewGitCLI(log, gitBin, gitDir, cts.Dir()),
		NPM: NewNPMCLI(log, npmBin, cts),
	}, nil
}

// Options configure a Run.
type Options struct {
	// Checkout is a path at or below the CTS checkout root.
	Checkout string
	// Start is where the search for the host repository begins.
	Start string
	Config config.Config
	// Rewriters apply to the unchunked document's boilerplate. Nil means
	// cases.DefaultRewriters.
	Rewriters []cases.Rewriter
}

// Runner executes the pipeline.
type Runner struct {
	log   *zap.Logger
	tools ToolFactory
}

// New returns a Runner obtaining its tools from tools.
func New(log *zap.Logger, tools ToolFactory) *Runner {
	return &Runner{log: log, tools: tools}
}

// Run performs every step in order, stopping at the first failure.
func (r *Runner) Run(ctx context.Context, opts Options) error {
	layout := opts.Config.Layout
	regen := rooted.NewRegenerator(r.log)

	hostDir, err := discover.HostRoot(opts.Start)
	if err != nil {
		return err
	}
	host, err := rooted.New("host", hostDir)
	if err != nil {
		return err
	}
	r.log.Info("detected host repository root", zap.Stringer("root", host))

	vendorDir, err := existingDir(host, "vendor dir", layout.VendorDir)
	if err != nil {
		return err
	}
	wptTestsDir, err := existingDir(host, "WPT tests dir", layout.WPTTestsDir)
	if err != nil {
		return err
	}

	gitDir, workTree, err := discover.Checkout(opts.Checkout)
	if err != nil {
		return err
	}
	cts, err := rooted.New("cts", workTree)
	if err != nil {
		return err
	}
	r.log.Debug("detected CTS checkout root", zap.Stringer("root", cts))

	tools, err := r.tools(r.log, cts, gitDir)
	if err != nil {
		return err
	}

	if err := ensureNotNested(cts, host); err != nil {
		return err
	}
	if err := ensureNotNested(host, cts); err != nil {
		return err
	}

	copier := vendoring.NewCopier(r.log, tools.Git, cts, regen)
	if err := copier.Vendor(ctx, vendorDir); err != nil {
		return err
	}

	if err := tools.NPM.CI(ctx); err != nil {
		return err
	}

	outDir, err := cts.Child(layout.OutputDir)
	if err != nil {
		return err
	}
	if _, err := regen.Dir(outDir, func(rooted.Path) error {
		return tools.NPM.RunWPT(ctx)
	}); err != nil {
		return err
	}

	unchunkedCfg, err := cts.Child(layout.UnchunkedConfig)
	if err != nil {
		return err
	}
	if unchunkedCfg, err = rooted.ExistingFile(unchunkedCfg); err != nil {
		return err
	}
	if err := tools.NPM.GenWPTCTSHTML(ctx, unchunkedCfg); err != nil {
		return err
	}

	extra, err := outDir.Child(layout.ExtraDocumentName)
	if err != nil {
		return err
	}
	r.log.Info("removing extraneous document", zap.Stringer("path", extra))
	if err := rooted.RemoveFile(extra); err != nil {
		return err
	}

	docPath, err := outDir.Child(layout.DocumentName)
	if err != nil {
		return err
	}
	r.log.Info("analyzing generated document", zap.Stringer("path", docPath))
	text, err := rooted.ReadFile(docPath)
	if err != nil {
		return err
	}
	rewriters := opts.Rewriters
	if rewriters == nil {
		rewriters = cases.DefaultRewriters()
	}
	doc, err := cases.NewParser(r.log, rewriters...).Parse(string(text))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", docPath, err)
	}

	chunkedDir, err := outDir.Child("chunked")
	if err != nil {
		return err
	}
	chunker := chunk.New(r.log, opts.Config.ChunkSize, layout.DocumentName)
	if _, err := regen.Dir(chunkedDir, func(dst rooted.Path) error {
		if err := rooted.CreateDirAll(dst); err != nil {
			return err
		}
		return chunker.Write(doc, dst, docPath)
	}); err != nil {
		return err
	}

	installDir, err := wptTestsDir.Child(layout.WPTSubdir)
	if err != nil {
		return err
	}
	if _, err := regen.Dir(installDir, func(dst rooted.Path) error {
		r.log.Info("copying generated tests", zap.Stringer("from", outDir), zap.Stringer("to", dst))
		return rooted.CopyDir(outDir, dst)
	}); err != nil {
		return err
	}

	r.log.Info("all done")
	return nil
}

func existingDir(root *rooted.FileRoot, what, rel string) (rooted.Path, error) {
	p, err := root.Child(rel)
	if err != nil {
		return rooted.Path{}, err
	}
	if !p.IsDir() {
		return rooted.Path{}, fmt.Errorf("%w: %s (%s) does not appear to exist", ErrLayoutDirMissing, what, p)
	}
	return p, nil
}

// ensureNotNested fails when outer contains inner.
func ensureNotNested(inner, outer *rooted.FileRoot) error {
	if outer.Contains(inner.Dir()) {
		return &NestedRootsError{Inner: inner.Dir(), Outer: outer.Dir()}
	}
	return nil
}
