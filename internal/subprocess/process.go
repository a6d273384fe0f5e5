package subprocess

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/wagiedev/mediaroute-go/internal/errors"
)

const (
	// maxStderrLineSize is the longest stderr line read from a service.
	maxStderrLineSize = 64 * 1024
	// maxStderrBufferSize caps the stderr kept for exit error reporting.
	maxStderrBufferSize = 64 * 1024
)

// Compile-time check that *Process is a byte stream.
var _ io.ReadWriteCloser = (*Process)(nil)

// Service describes how to launch one provider service.
type Service struct {
	// Executable is a path, or a bare name searched in PATH and then in
	// the launcher's search directories.
	Executable string

	// Args are passed to the executable.
	Args []string

	// Env adds or overrides environment variables of the service.
	Env map[string]string

	// Dir is the working directory. Empty means the current one.
	Dir string

	// Stderr receives each line the service writes to stderr.
	Stderr func(line string)
}

// Process is a running provider service. Reads come from its stdout and
// writes go to its stdin.
type Process struct {
	log    *slog.Logger
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *os.File

	mu      sync.Mutex
	closing bool

	closeOnce sync.Once
	done      chan struct{}
	err       error
}

// Start launches the executable at path. The process is killed when ctx
// is cancelled.
func Start(ctx context.Context, log *slog.Logger, path string, svc Service) (*Process, error) {
	log = log.With("component", "subprocess", "path", path)

	//nolint:gosec // G204: launching the configured provider service is the point.
	cmd := exec.CommandContext(ctx, path, svc.Args...)
	cmd.Dir = svc.Dir
	cmd.Env = buildEnvironment(svc.Env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &errors.TransportError{Op: "stdin pipe", Err: err}
	}

	// A plain pipe keeps the read end ours: EOF arrives when the service
	// exits instead of racing cmd.Wait closing it.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, &errors.TransportError{Op: "stdout pipe", Err: err}
	}

	cmd.Stdout = stdoutW

	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = stdoutR.Close()
		_ = stdoutW.Close()

		return nil, &errors.TransportError{Op: "stderr pipe", Err: err}
	}

	if err := cmd.Start(); err != nil {
		_ = stdoutR.Close()
		_ = stdoutW.Close()

		log.Error("Failed to start provider service", "error", err)

		return nil, &errors.TransportError{Op: "start", Err: err}
	}

	_ = stdoutW.Close()

	p := &Process{
		log:    log.With("pid", cmd.Process.Pid),
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdoutR,
		done:   make(chan struct{}),
	}

	go p.wait(stderr, svc.Stderr)

	p.log.Info("Provider service started")

	return p, nil
}

// Read implements io.Reader.
func (p *Process) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

// Write implements io.Writer.
func (p *Process) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

// Close kills the process and waits for it to exit.
// It's safe to call Close multiple times.
func (p *Process) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closing = true
		p.mu.Unlock()

		_ = p.stdin.Close()

		if err := p.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
			p.log.Debug("Could not kill provider service", "error", err)
		}

		<-p.done

		_ = p.stdout.Close()
	})

	return nil
}

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err returns the ProcessError of an unexpected exit, or nil. Only valid
// after Done is closed.
func (p *Process) Err() error {
	return p.err
}

// Pid returns the process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

func (p *Process) wait(stderr io.Reader, callback func(string)) {
	defer close(p.done)

	var buffer bytes.Buffer

	// Stderr must be drained before Wait.
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 4096), maxStderrLineSize)

	for scanner.Scan() {
		line := scanner.Text()

		p.log.Debug("Provider service stderr", "line", line)

		if callback != nil {
			callback(line)
		}

		if buffer.Len() < maxStderrBufferSize {
			buffer.WriteString(line)
			buffer.WriteByte('\n')
		}
	}

	if err := scanner.Err(); err != nil {
		p.log.Debug("Stderr scanner error", "error", err)
	}

	err := p.cmd.Wait()

	p.mu.Lock()
	closing := p.closing
	p.mu.Unlock()

	switch {
	case closing:
		p.log.Debug("Provider service terminated during shutdown")
	case err != nil:
		exitCode := -1
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}

		p.err = &errors.ProcessError{
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(buffer.String()),
			Err:      err,
		}

		p.log.Error("Provider service exited with error", "exit_code", exitCode, "error", p.err)
	default:
		p.log.Info("Provider service exited")
	}
}

// buildEnvironment returns the current environment with env applied.
func buildEnvironment(env map[string]string) []string {
	out := os.Environ()

	for key, value := range env {
		out = append(out, fmt.Sprintf("%s=%s", key, value))
	}

	return out
}
