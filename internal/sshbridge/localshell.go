package sshbridge

import (
	"io"
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// LocalShell pipes a tunnel connection to a local shell subprocess. It is
// strictly a local development/testing stand-in for the real Lynx/SSH
// bridge spec.md describes: there is no pty allocation here, so Resize is
// a no-op beyond logging, and interactive full-screen programs relying on
// terminal size won't behave correctly. A production bridge would instead
// dial an SSH server and run Lynx inside the remote session.
type LocalShell struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	log    *zap.Logger
}

// NewLocalShell starts shellPath (falling back to $SHELL, then /bin/sh)
// and returns a *LocalShell wrapping it; its output is read via Output().
func NewLocalShell(shellPath string, log *zap.Logger) (*LocalShell, error) {
	if shellPath == "" {
		shellPath = os.Getenv("SHELL")
	}
	if shellPath == "" {
		shellPath = "/bin/sh"
	}

	cmd := exec.Command(shellPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &LocalShell{cmd: cmd, stdin: stdin, stdout: stdout, log: log}, nil
}

func (l *LocalShell) Write(p []byte) (int, error) {
	return l.stdin.Write(p)
}

// Output returns the subprocess's combined stdout/stderr stream.
func (l *LocalShell) Output() io.Reader {
	return l.stdout
}

// Resize has nothing to resize without a pty; it only logs the request so
// the no-op is visible rather than silent.
func (l *LocalShell) Resize(rows, cols int) error {
	l.log.Debug("resize requested on a pty-less local shell stand-in", zap.Int("rows", rows), zap.Int("cols", cols))
	return nil
}

// Close terminates the subprocess.
func (l *LocalShell) Close() error {
	l.stdin.Close()
	return l.cmd.Process.Kill()
}
