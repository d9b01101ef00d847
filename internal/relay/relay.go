//go:build unix

// Package relay runs the wrapped program inside a pseudo-terminal and
// relays bytes between it and the real terminal.
//
// The relay is transparent: every byte the child writes reaches the
// real terminal unmodified, and every keystroke reaches the child
// unmodified. A tagged copy of both directions feeds the normalizer,
// whose stabilized lines drive the segmenter and the session store.
// One event loop owns the pipeline; reader goroutines only move bytes
// into it, so normalization and segmentation never run concurrently.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	xterm "golang.org/x/term"

	"github.com/scribe-dev/scribe/internal/segment"
	"github.com/scribe-dev/scribe/internal/session"
	"github.com/scribe-dev/scribe/internal/term"
)

const readBufSize = 4096

// SpawnError reports a fatal failure to allocate the pty or start the
// child. No session artifact exists when it is returned.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Spec describes the program to wrap.
type Spec struct {
	Command string
	Args    []string
	Dir     string
}

// Config holds relay tunables and injectable I/O for tests.
type Config struct {
	// PollInterval bounds the event-loop wait so stabilization windows
	// expire and periodic flushes run with no new input.
	PollInterval time.Duration

	Normalizer term.Config
	Segment    segment.Config

	// Stdin/Stdout default to the process's own. When Stdin is a
	// terminal the relay owns its raw mode for the duration of the
	// run.
	Stdin  io.Reader
	Stdout io.Writer

	Logger *slog.Logger
}

type frame struct {
	role term.Role
	data []byte
}

// Controller owns the pty, the child process, and the relay loop.
type Controller struct {
	spec  Spec
	store *session.Store
	cfg   Config

	logger *slog.Logger

	ptmx *os.File
	cmd  *exec.Cmd

	restoreOnce sync.Once
	restoreFn   func()
}

// New creates a controller. The store must wrap a fresh, active
// session; the controller performs no store call until the child has
// started successfully.
func New(spec Spec, store *session.Store, cfg Config) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}

	if cfg.Stdin == nil {
		cfg.Stdin = os.Stdin
	}

	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{spec: spec, store: store, cfg: cfg, logger: logger}
}

// Run spawns the child and relays until it exits or ctx is canceled.
// It returns the child's exit status; the error is non-nil only for
// fatal spawn failures and final persistence failures.
func (c *Controller) Run(ctx context.Context) (int, error) {
	path, err := exec.LookPath(c.spec.Command)
	if err != nil {
		return 0, &SpawnError{Command: c.spec.Command, Err: err}
	}

	cmd := exec.Command(path, c.spec.Args...) //nolint:gosec // command is the operator's own argv
	cmd.Dir = c.spec.Dir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptmx, err := pty.StartWithSize(cmd, c.initialSize())
	if err != nil {
		return 0, &SpawnError{Command: c.spec.Command, Err: err}
	}

	c.ptmx = ptmx
	c.cmd = cmd

	defer func() { _ = ptmx.Close() }()

	c.logger.Debug("relay started",
		slog.String("component", "relay"),
		slog.String("relay.command", path),
		slog.Int("relay.pid", cmd.Process.Pid),
	)

	// Raw mode on the real terminal, released on every exit path
	// including signal death.
	c.acquireTerminal()
	defer c.releaseTerminal()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGHUP)

	defer signal.Stop(stop)

	winch := c.watchResize()

	frames := make(chan frame, 64)
	ptyEOF := make(chan struct{})

	go readFrames(c.cfg.Stdin, term.RoleUser, frames, nil)
	go readFrames(ptmx, term.RoleAssistant, frames, ptyEOF)

	childDone := make(chan error, 1)

	go func() { childDone <- cmd.Wait() }()

	return c.loop(ctx, stop, winch, frames, ptyEOF, childDone)
}

func (c *Controller) loop(
	ctx context.Context,
	stop <-chan os.Signal,
	winch <-chan os.Signal,
	frames <-chan frame,
	ptyEOF <-chan struct{},
	childDone <-chan error,
) (int, error) {
	norm := term.New(c.cfg.Normalizer)
	seg := segment.New(c.cfg.Segment, func(turn segment.Turn) {
		segment.AppendTurn(c.store, turn)
	})

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	feed := func(lines []term.Line) {
		for _, l := range lines {
			seg.Line(l)
		}
	}

	var waitErr error

	for {
		select {
		case <-ctx.Done():
			return c.shutdown(norm, seg, frames, childDone, session.StatusInterrupted)

		case <-stop:
			return c.shutdown(norm, seg, frames, childDone, session.StatusInterrupted)

		case <-winch:
			_ = c.inheritSize()

		case fr := <-frames:
			feed(c.relayFrame(norm, fr))

		case <-ptyEOF:
			// Child output closed; wait for the exit status then
			// drain.
			waitErr = <-childDone
			c.drainFrames(norm, seg, frames)

			return c.finish(norm, seg, exitStatus(waitErr))

		case waitErr = <-childDone:
			c.drainFrames(norm, seg, frames)

			return c.finish(norm, seg, exitStatus(waitErr))

		case <-ticker.C:
			feed(norm.Tick(time.Now()))
			c.store.Flush()
		}
	}
}

// relayFrame passes one frame through verbatim and returns any lines
// the tagged copy stabilized.
func (c *Controller) relayFrame(norm *term.Normalizer, fr frame) []term.Line {
	switch fr.role {
	case term.RoleUser:
		_, _ = c.ptmx.Write(fr.data)
	case term.RoleAssistant:
		_, _ = c.cfg.Stdout.Write(fr.data)
	}

	return norm.Feed(fr.role, fr.data, time.Now())
}

// drainFrames consumes frames already queued when the child exited.
// Output frames still pass through to the terminal; new user input is
// no longer forwarded anywhere.
func (c *Controller) drainFrames(norm *term.Normalizer, seg *segment.Segmenter, frames <-chan frame) {
	deadline := time.After(200 * time.Millisecond)

	for {
		select {
		case fr := <-frames:
			if fr.role == term.RoleAssistant {
				_, _ = c.cfg.Stdout.Write(fr.data)
			}

			for _, l := range norm.Feed(fr.role, fr.data, time.Now()) {
				seg.Line(l)
			}

		case <-deadline:
			return
		}
	}
}

// shutdown handles external cancellation: stop forwarding input, flush
// the in-progress turn, mark the session interrupted, and let the
// deferred release restore the terminal.
func (c *Controller) shutdown(
	norm *term.Normalizer,
	seg *segment.Segmenter,
	frames <-chan frame,
	childDone <-chan error,
	status session.Status,
) (int, error) {
	c.drainFrames(norm, seg, frames)

	c.terminateChild(childDone)

	return c.finish(norm, seg, exitStatusFor(status))
}

func (c *Controller) finish(norm *term.Normalizer, seg *segment.Segmenter, code int) (int, error) {
	now := time.Now()

	for _, l := range norm.Flush(now) {
		seg.Line(l)
	}

	seg.Close()

	status := session.StatusCompleted

	switch {
	case code == interruptedExit:
		status = session.StatusInterrupted
		code = 130
	case code != 0:
		status = session.StatusError
	}

	if err := c.store.Finalize(status); err != nil {
		c.logger.Warn("session finalize failed",
			slog.String("component", "relay"),
			slog.String("error", err.Error()),
		)

		return code, err
	}

	return code, nil
}

// terminateChild asks the child to exit and escalates to SIGKILL after
// a short deadline.
func (c *Controller) terminateChild(childDone <-chan error) {
	if c.cmd.Process == nil {
		return
	}

	_ = c.cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-childDone:
		return
	case <-time.After(2 * time.Second):
		_ = c.cmd.Process.Kill()

		select {
		case <-childDone:
		case <-time.After(2 * time.Second):
		}
	}
}

// interruptedExit is a sentinel routed through finish to mark external
// cancellation; it never reaches the caller.
const interruptedExit = -130

func exitStatusFor(status session.Status) int {
	if status == session.StatusInterrupted {
		return interruptedExit
	}

	return 0
}

// exitStatus maps cmd.Wait's error to the child's exit code, using the
// 128+signal convention for signal death.
func exitStatus(waitErr error) int {
	if waitErr == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}

		return exitErr.ExitCode()
	}

	return 1
}

// readFrames moves bytes from r into the event loop. Each frame copies
// its chunk; the read buffer is reused.
func readFrames(r io.Reader, role term.Role, frames chan<- frame, eof chan<- struct{}) {
	buf := make([]byte, readBufSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])

			frames <- frame{role: role, data: data}
		}

		if err != nil {
			if eof != nil {
				close(eof)
			}

			return
		}
	}
}

// --- terminal mode and size ---

func (c *Controller) acquireTerminal() {
	file, ok := c.cfg.Stdin.(*os.File)
	if !ok || !xterm.IsTerminal(int(file.Fd())) {
		return
	}

	fd := int(file.Fd())

	oldState, err := xterm.MakeRaw(fd)
	if err != nil {
		c.logger.Warn("raw mode unavailable",
			slog.String("component", "relay"),
			slog.String("error", err.Error()),
		)

		return
	}

	c.restoreFn = func() { _ = xterm.Restore(fd, oldState) }

	// Best effort restore if we die to an uncatchable-adjacent signal
	// before the deferred release runs.
	crash := make(chan os.Signal, 1)
	signal.Notify(crash, syscall.SIGQUIT)

	go func() {
		<-crash
		c.releaseTerminal()
		os.Exit(131)
	}()
}

// releaseTerminal restores the real terminal's mode. Safe to call
// multiple times and from any exit path.
func (c *Controller) releaseTerminal() {
	c.restoreOnce.Do(func() {
		if c.restoreFn != nil {
			c.restoreFn()
		}
	})
}

func (c *Controller) initialSize() *pty.Winsize {
	size := &pty.Winsize{Rows: 24, Cols: 80}

	if file, ok := c.cfg.Stdin.(*os.File); ok && xterm.IsTerminal(int(file.Fd())) {
		if w, h, err := xterm.GetSize(int(file.Fd())); err == nil {
			size.Cols = uint16(w) //nolint:gosec // terminal dimensions
			size.Rows = uint16(h) //nolint:gosec // terminal dimensions
		}
	}

	return size
}

// watchResize forwards window-size changes to the pty so the child's
// UI reflows. Pass-through only, never parsed.
func (c *Controller) watchResize() <-chan os.Signal {
	winch := make(chan os.Signal, 1)

	if file, ok := c.cfg.Stdin.(*os.File); ok && xterm.IsTerminal(int(file.Fd())) {
		signal.Notify(winch, syscall.SIGWINCH)
	}

	_ = c.inheritSize()

	return winch
}

func (c *Controller) inheritSize() error {
	file, ok := c.cfg.Stdin.(*os.File)
	if !ok || !xterm.IsTerminal(int(file.Fd())) {
		return nil
	}

	if err := pty.InheritSize(file, c.ptmx); err != nil {
		return fmt.Errorf("resize pty: %w", err)
	}

	return nil
}
