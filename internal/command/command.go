// Package command runs external tools with a fixed argument list and turns
// their failures into errors that carry the exact command line.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/eykd/ctsvendor/internal/logging"
)

// stderrTailSize bounds how much stderr is kept for error reports.
const stderrTailSize = 16 << 10

var (
	// ErrProcessFailed is matched by *FailedError.
	ErrProcessFailed = errors.New("process exited unsuccessfully")
	// ErrProcessNotFound is matched by *NotFoundError.
	ErrProcessNotFound = errors.New("process could not be launched")
	// ErrNonUTF8Output is matched by *NonUTF8OutputError.
	ErrNonUTF8Output = errors.New("process output is not valid UTF-8")
)

// FailedError reports a non-zero exit.
type FailedError struct {
	Command  string
	ExitCode int
	Stderr   string // tail of the captured standard error
}

func (e *FailedError) Error() string {
	msg := fmt.Sprintf("`%s` exited with status %d", e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += "; stderr:\n" + s
	}
	return msg
}

// Is reports whether target is ErrProcessFailed.
func (e *FailedError) Is(target error) bool { return target == ErrProcessFailed }

// NotFoundError reports an executable that could not be started.
type NotFoundError struct {
	Command string
	Err     error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("failed to launch `%s`: %v", e.Command, e.Err)
}

// Is reports whether target is ErrProcessNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrProcessNotFound }

func (e *NotFoundError) Unwrap() error { return e.Err }

// NonUTF8OutputError reports captured stdout that is not text.
type NonUTF8OutputError struct {
	Command string
}

func (e *NonUTF8OutputError) Error() string {
	return fmt.Sprintf("output of `%s` is not valid UTF-8", e.Command)
}

// Is reports whether target is ErrNonUTF8Output.
func (e *NonUTF8OutputError) Is(target error) bool { return target == ErrNonUTF8Output }

type envVar struct {
	key, value string
}

// Command is a reusable description of one external tool invocation. Each
// call to Spawn or StdoutText starts a fresh process.
type Command struct {
	log    *zap.Logger
	bin    string
	args   []string
	env    []envVar
	dir    string
	stdout io.Writer
	stderr io.Writer
}

// Option configures a Command.
type Option func(*Command)

// Args appends arguments.
func Args(args ...string) Option {
	return func(c *Command) { c.args = append(c.args, args...) }
}

// Env overrides one environment variable; the rest is inherited.
func Env(key, value string) Option {
	return func(c *Command) { c.env = append(c.env, envVar{key: key, value: value}) }
}

// Dir sets the working directory.
func Dir(dir string) Option {
	return func(c *Command) { c.dir = dir }
}

// Output replaces the inherited stdout and stderr streams.
func Output(stdout, stderr io.Writer) Option {
	return func(c *Command) {
		c.stdout = stdout
		c.stderr = stderr
	}
}

// New describes an invocation of bin.
func New(log *zap.Logger, bin string, opts ...Option) *Command {
	c := &Command{
		log:    log,
		bin:    bin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// String renders the command line, environment overrides first, quoting
// arguments that would not survive a shell round trip.
func (c *Command) String() string {
	var parts []string
	for _, e := range c.env {
		parts = append(parts, e.key+"="+quote(e.value))
	}
	parts = append(parts, quote(c.bin))
	for _, a := range c.args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

// Spawn runs the command with stdout and stderr streamed through, for
// long-running tools whose progress output matters.
func (c *Command) Spawn(ctx context.Context) error {
	cmd := c.build(ctx)
	tail := &tailBuffer{max: stderrTailSize}
	cmd.Stdout = c.stdout
	cmd.Stderr = io.MultiWriter(c.stderr, tail)
	return c.run(ctx, cmd, tail)
}

// StdoutText runs the command and returns its standard output, which must
// be valid UTF-8. Standard error is still streamed through.
func (c *Command) StdoutText(ctx context.Context) (string, error) {
	cmd := c.build(ctx)
	tail := &tailBuffer{max: stderrTailSize}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = io.MultiWriter(c.stderr, tail)
	if err := c.run(ctx, cmd, tail); err != nil {
		return "", err
	}
	if !utf8.Valid(out.Bytes()) {
		return "", &NonUTF8OutputError{Command: c.String()}
	}
	return out.String(), nil
}

func (c *Command) build(ctx context.Context) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.bin, c.args...)
	cmd.Dir = c.dir
	if len(c.env) > 0 {
		cmd.Env = os.Environ()
		for _, e := range c.env {
			cmd.Env = append(cmd.Env, e.key+"="+e.value)
		}
	}
	return cmd
}

func (c *Command) run(ctx context.Context, cmd *exec.Cmd, tail *tailBuffer) error {
	logging.Trace(c.log, "running command", zap.Stringer("cmd", c), zap.String("dir", c.dir))
	if err := cmd.Start(); err != nil {
		return &NotFoundError{Command: c.String(), Err: err}
	}
	err := cmd.Wait()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("`%s` interrupted: %w", c, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &FailedError{Command: c.String(), ExitCode: exitErr.ExitCode(), Stderr: tail.String()}
	}
	return fmt.Errorf("waiting for `%s`: %w", c, err)
}

// Which resolves name on PATH. desc names the tool in the error.
func Which(name, desc string) (string, error) {
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("failed to find %s (%q) on PATH: %w", desc, name, err)
	}
	return p, nil
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n'\"\\$`;&|<>*?") {
		return strconv.Quote(s)
	}
	return s
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }
