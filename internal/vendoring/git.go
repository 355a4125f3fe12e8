package vendoring

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/eykd/ctsvendor/internal/command"
)

// Git is the version-control surface the Copier depends on.
type Git interface {
	// StatusPorcelain returns `git status --porcelain` output; empty means
	// the working tree and index are clean.
	StatusPorcelain(ctx context.Context) (string, error)
	// LsFiles returns the tracked paths, relative to the work tree.
	LsFiles(ctx context.Context) ([]string, error)
	// RevParseHead returns `git rev-parse HEAD` output verbatim.
	RevParseHead(ctx context.Context) (string, error)
}

// GitCLI implements Git by running the git binary against an explicit
// GIT_DIR and work tree.
type GitCLI struct {
	log      *zap.Logger
	bin      string
	gitDir   string
	workTree string
}

// NewGitCLI returns a Git backed by the executable at bin.
func NewGitCLI(log *zap.Logger, bin, gitDir, workTree string) *GitCLI {
	return &GitCLI{log: log, bin: bin, gitDir: gitDir, workTree: workTree}
}

func (g *GitCLI) command(args ...string) *command.Command {
	return command.New(g.log, g.bin,
		command.Args(args...),
		command.Env("GIT_DIR", g.gitDir),
		command.Env("GIT_WORK_TREE", g.workTree),
		command.Dir(g.workTree),
	)
}

// StatusPorcelain implements Git.
func (g *GitCLI) StatusPorcelain(ctx context.Context) (string, error) {
	cmd := g.command("status", "--porcelain")
	g.log.Info("ensuring the working tree and index are clean", zap.Stringer("cmd", cmd))
	return cmd.StdoutText(ctx)
}

// LsFiles implements Git. Paths are NUL-separated on the wire so names
// needing quoting come through unmangled.
func (g *GitCLI) LsFiles(ctx context.Context) ([]string, error) {
	cmd := g.command("ls-files", "-z")
	g.log.Debug("getting files to vendor", zap.Stringer("cmd", cmd))
	out, err := cmd.StdoutText(ctx)
	if err != nil {
		return nil, err
	}
	out = strings.TrimSuffix(out, "\x00")
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\x00"), nil
}

// RevParseHead implements Git.
func (g *GitCLI) RevParseHead(ctx context.Context) (string, error) {
	return g.command("rev-parse", "HEAD").StdoutText(ctx)
}
