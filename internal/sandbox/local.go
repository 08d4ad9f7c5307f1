package sandbox

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// LocalExecutor runs commands directly on the host via os/exec. It is the
// fallback path for the shell runtime when no Docker daemon is reachable.
// It carries no container isolation, so callers must only hand it commands
// that already passed the risk analyzer and the runtime's allow-list.
type LocalExecutor struct {
	// WorkDir is the working directory for commands. Empty means the
	// process's current directory.
	WorkDir string

	// Env is appended to a minimal environment. The host environment is
	// never inherited: untrusted commands must not read host secrets.
	Env []string

	logger *zap.Logger
}

// NewLocalExecutor creates a LocalExecutor.
func NewLocalExecutor(workDir string, logger *zap.Logger) *LocalExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalExecutor{WorkDir: workDir, logger: logger}
}

// Exec runs argv on the host, honoring the deadline on ctx. On expiry the
// process group is killed and partial output is returned with TimedOut set.
func (l *LocalExecutor) Exec(ctx context.Context, argv []string) (ExecResult, error) {
	if len(argv) == 0 {
		return ExecResult{}, errors.New("empty command")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = l.WorkDir
	cmd.Env = append([]string{"PATH=/usr/local/bin:/usr/bin:/bin", "LANG=C"}, l.Env...)
	// Give the process a moment to die after cancel before SIGKILL.
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}

	if ctx.Err() != nil {
		res.TimedOut = true
		res.ExitCode = -1
		return res, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		res.ExitCode = -1
		return res, err
	}

	return res, nil
}
