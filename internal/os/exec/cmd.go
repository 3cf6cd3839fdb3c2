// Package exec runs external commands. It wraps exec.Cmd with logging of the command output and graceful
// interruption when the context is canceled.
package exec

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/input-output-hk/report-aggregator/internal/errors"
	"github.com/input-output-hk/report-aggregator/internal/os/signal"
	"github.com/input-output-hk/report-aggregator/pkg/log"
)

// DefaultWaitDelay is how long a command gets to exit after it was interrupted before it is killed.
const DefaultWaitDelay = 10 * time.Second

// Option configures a Cmd.
type Option func(*Cmd)

// WithLogger sets the logger the command output is written to.
func WithLogger(l log.Logger) Option {
	return func(cmd *Cmd) {
		cmd.logger = l
	}
}

// WithWaitDelay sets how long the command is waited for after the interrupt signal.
func WithWaitDelay(delay time.Duration) Option {
	return func(cmd *Cmd) {
		cmd.WaitDelay = delay
	}
}

// Cmd is a command type.
type Cmd struct {
	*exec.Cmd

	filename string
	logger   log.Logger
	stderr   bytes.Buffer
}

// Command returns the `Cmd` struct to execute the named program with the given arguments.
// Canceling ctx sends an interrupt to the program and kills it if it did not exit after the wait delay.
func Command(ctx context.Context, name string, args ...string) *Cmd {
	cmd := &Cmd{
		Cmd:      exec.CommandContext(ctx, name, args...),
		filename: filepath.Base(name),
		logger:   log.Default(),
	}

	cmd.WaitDelay = DefaultWaitDelay
	cmd.Cancel = func() error {
		if signal.InterruptSignal == nil {
			return cmd.Process.Kill()
		}

		return cmd.Process.Signal(signal.InterruptSignal)
	}

	return cmd
}

// Configure sets options to the `Cmd`.
func (cmd *Cmd) Configure(opts ...Option) {
	for _, opt := range opts {
		opt(cmd)
	}
}

// Run starts the command and waits for it to complete. Stdout is logged at debug level, stderr at warn level.
// A non-zero exit returns an ExitError carrying the last lines of stderr.
func (cmd *Cmd) Run() error {
	stdout := newLineLogger(cmd.logger.WithField("cmd", cmd.filename).Debug)
	stderr := newLineLogger(cmd.logger.WithField("cmd", cmd.filename).Warn)

	cmd.Stdout = stdout
	cmd.Stderr = io.MultiWriter(stderr, &cmd.stderr)

	cmd.logger.Debugf("Running %s", strings.Join(cmd.Args, " "))

	err := cmd.Cmd.Run()

	stdout.Flush()
	stderr.Flush()

	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return errors.New(ExitError{
			Cmd:    cmd.filename,
			Code:   exitErr.ExitCode(),
			Stderr: lastLines(cmd.stderr.String(), maxStderrLines),
		})
	}

	return errors.New(err)
}

const maxStderrLines = 20

// ExitError is returned when the command exits with a non-zero status.
type ExitError struct {
	Cmd    string
	Stderr string
	Code   int
}

func (err ExitError) Error() string {
	msg := err.Cmd + " exited with status " + strconv.Itoa(err.Code)

	if err.Stderr != "" {
		msg += ": " + err.Stderr
	}

	return msg
}

// ExitStatus returns the exit code of the command.
func (err ExitError) ExitStatus() (int, error) {
	return err.Code, nil
}

// GetExitCode returns the exit code of a failed command.
func GetExitCode(err error) (int, error) {
	var exitStatus interface {
		ExitStatus() (int, error)
	}

	if errors.As(err, &exitStatus) {
		return exitStatus.ExitStatus()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return status.ExitStatus(), nil
		}

		return exitErr.ExitCode(), nil
	}

	return 0, err
}

// lineLogger forwards every complete line written to it to the log function.
type lineLogger struct {
	logFn func(args ...any)
	buf   bytes.Buffer
}

func newLineLogger(logFn func(args ...any)) *lineLogger {
	return &lineLogger{logFn: logFn}
}

func (w *lineLogger) Write(p []byte) (int, error) {
	w.buf.Write(p)

	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// incomplete line, keep it for the next write
			w.buf.Reset()
			w.buf.WriteString(line)

			break
		}

		w.logFn(strings.TrimRight(line, "\r\n"))
	}

	return len(p), nil
}

// Flush logs the remaining incomplete line, if any.
func (w *lineLogger) Flush() {
	if w.buf.Len() > 0 {
		w.logFn(w.buf.String())
		w.buf.Reset()
	}
}

func lastLines(text string, n int) string {
	var lines []string

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}

	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	return strings.Join(lines, "\n")
}
