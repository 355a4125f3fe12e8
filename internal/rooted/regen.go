package rooted

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"
)

// ErrNotGenerated is returned when a generator reports success but the
// target is missing or of the wrong kind afterwards.
var ErrNotGenerated = errors.New("generator did not create its target")

// Generator populates target, which does not exist when it is called.
type Generator func(target Path) error

// Regenerator replaces files and directories from scratch. A regenerated
// target reflects exactly one generator run: whatever existed beforehand is
// removed first.
//
// Regeneration is not safe for concurrent use on the same target.
type Regenerator struct {
	log *zap.Logger
}

// NewRegenerator returns a Regenerator logging to log.
func NewRegenerator(log *zap.Logger) *Regenerator {
	return &Regenerator{log: log}
}

// File regenerates the regular file at target.
func (g *Regenerator) File(target Path, gen Generator) (Path, error) {
	return g.regen(target, gen, false)
}

// Dir regenerates the directory at target.
func (g *Regenerator) Dir(target Path, gen Generator) (Path, error) {
	return g.regen(target, gen, true)
}

// regen removes target, runs gen and checks its work. A generator error is
// returned unwrapped and whatever gen left behind stays on disk.
func (g *Regenerator) regen(target Path, gen Generator, wantDir bool) (Path, error) {
	if err := removeAny(target); err != nil {
		return Path{}, err
	}
	g.log.Debug("regenerating", zap.Stringer("path", target), zap.Bool("dir", wantDir))

	if err := gen(target); err != nil {
		return Path{}, err
	}

	info, err := os.Stat(target.Abs())
	if errors.Is(err, fs.ErrNotExist) {
		return Path{}, fmt.Errorf("%w: %s does not exist", ErrNotGenerated, target)
	}
	if err != nil {
		return Path{}, fmt.Errorf("checking regenerated %s: %w", target, err)
	}
	switch {
	case wantDir && !info.IsDir():
		return Path{}, fmt.Errorf("%w: expected directory at %s", ErrNotGenerated, target)
	case !wantDir && !info.Mode().IsRegular():
		return Path{}, fmt.Errorf("%w: expected regular file at %s", ErrNotGenerated, target)
	}
	return target, nil
}

// removeAny unlinks a file or recursively removes a directory at p. A
// missing target is not an error.
func removeAny(p Path) error {
	info, err := os.Lstat(p.Abs())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", p, err)
	}
	if info.IsDir() {
		err = os.RemoveAll(p.Abs())
	} else {
		err = os.Remove(p.Abs())
	}
	if err != nil {
		return fmt.Errorf("failed to remove stale %s: %w", p, err)
	}
	return nil
}
