package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var ErrCommandFailed = errors.New("command failed")

// Result holds the outcome of an external command.
type Result struct {
	ExitCode int
}

// Runner executes external programs.
type Runner interface {
	Run(ctx context.Context, program string, args []string, out io.Writer) (*Result, error)
}

// CommandRunner runs programs with os/exec. Stdout and stderr are both
// written to out. Env is appended to the current environment.
type CommandRunner struct {
	Env map[string]string
}

func (r *CommandRunner) Run(ctx context.Context, program string, args []string, out io.Writer) (*Result, error) {
	cmd := exec.CommandContext(ctx, program, args...)
	if out != nil {
		cmd.Stdout = out
		cmd.Stderr = out
	}
	if len(r.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range r.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	err := cmd.Run()

	result := &Result{}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		return result, errors.Wrapf(ErrCommandFailed, "%s exited with code %d", program, result.ExitCode)
	default:
		result.ExitCode = -1
		return result, errors.Wrapf(err, "running %s", program)
	}
	return result, nil
}

// LineLogger is an io.Writer that logs every complete line it receives.
// Carriage returns count as line breaks so progress output is readable.
type LineLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	buf    bytes.Buffer
}

func NewLineLogger(logger zerolog.Logger) *LineLogger {
	return &LineLogger{logger: logger}
}

func (l *LineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf.Write(p)
	for {
		data := l.buf.Bytes()
		idx := bytes.IndexAny(data, "\r\n")
		if idx < 0 {
			break
		}
		l.emit(data[:idx])
		l.buf.Next(idx + 1)
	}
	return len(p), nil
}

// Flush logs any trailing partial line.
func (l *LineLogger) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.emit(l.buf.Bytes())
	l.buf.Reset()
}

func (l *LineLogger) emit(line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	l.logger.Info().Msg(string(line))
}
