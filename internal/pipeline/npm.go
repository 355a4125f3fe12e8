package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/eykd/ctsvendor/internal/command"
	"github.com/eykd/ctsvendor/internal/rooted"
)

// NPM runs the CTS build scripts.
type NPM interface {
	// CI installs a clean node_modules.
	CI(ctx context.Context) error
	// RunWPT generates WPT test documents into the output directory.
	RunWPT(ctx context.Context) error
	// GenWPTCTSHTML regenerates the WPT documents from the config at cfg.
	GenWPTCTSHTML(ctx context.Context, cfg rooted.Path) error
}

// NPMCLI implements NPM with the npm binary, run inside the checkout.
type NPMCLI struct {
	log *zap.Logger
	bin string
	dir string
}

// NewNPMCLI returns an NPM running bin in checkout.
func NewNPMCLI(log *zap.Logger, bin string, checkout *rooted.FileRoot) *NPMCLI {
	return &NPMCLI{log: log, bin: bin, dir: checkout.Dir()}
}

func (n *NPMCLI) command(args ...string) *command.Command {
	return command.New(n.log, n.bin, command.Args(args...), command.Dir(n.dir))
}

// CI implements NPM.
func (n *NPMCLI) CI(ctx context.Context) error {
	cmd := n.command("ci")
	n.log.Info("ensuring a clean node_modules directory", zap.String("dir", n.dir), zap.Stringer("cmd", cmd))
	return cmd.Spawn(ctx)
}

// RunWPT implements NPM.
func (n *NPMCLI) RunWPT(ctx context.Context) error {
	cmd := n.command("run", "wpt")
	n.log.Info("generating WPT test cases", zap.Stringer("cmd", cmd))
	return cmd.Spawn(ctx)
}

// GenWPTCTSHTML implements NPM.
func (n *NPMCLI) GenWPTCTSHTML(ctx context.Context, cfg rooted.Path) error {
	cmd := n.command("run", "gen_wpt_cts_html", cfg.Abs())
	n.log.Info("refining generated WPT documents", zap.Stringer("cmd", cmd))
	return cmd.Spawn(ctx)
}
