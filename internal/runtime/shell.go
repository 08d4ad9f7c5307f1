package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/virelia/sandrun/internal/sandbox"
)

// defaultShellCommands is the set of commands a shell snippet may invoke.
// Every pipeline segment is checked against it before anything runs.
var defaultShellCommands = []string{
	"echo", "pwd", "ls", "cat", "grep", "wc",
	"head", "tail", "sort", "uniq", "cut",
	"date", "whoami", "uname", "which",
}

// ShellRuntime runs allow-listed shell pipelines, preferring a pooled
// sandbox and falling back to a restricted host process when no pool is
// configured.
type ShellRuntime struct {
	pool        *sandbox.Pool
	local       *sandbox.LocalExecutor
	allowed     map[string]struct{}
	outputLimit int
	logger      *zap.Logger
}

// NewShellRuntime builds a shell runtime. pool may be nil, in which case
// commands run on the host through local. Passing an empty allow-list
// selects the default command set.
func NewShellRuntime(pool *sandbox.Pool, local *sandbox.LocalExecutor, allowed []string, outputLimit int, logger *zap.Logger) *ShellRuntime {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(allowed) == 0 {
		allowed = defaultShellCommands
	}
	set := make(map[string]struct{}, len(allowed))
	for _, cmd := range allowed {
		set[strings.ToLower(strings.TrimSpace(cmd))] = struct{}{}
	}
	return &ShellRuntime{
		pool:        pool,
		local:       local,
		allowed:     set,
		outputLimit: outputLimit,
		logger:      logger,
	}
}

func (r *ShellRuntime) Language() string { return "shell" }

// Execute runs the snippet under `sh -c` after verifying every command in
// it against the allow-list. Bindings surface as SANDRUN_<NAME> environment
// variables.
func (r *ShellRuntime) Execute(ctx context.Context, source string, timeout time.Duration, bindings map[string]any) (Result, error) {
	timeout = clampTimeout(timeout)

	if detail := r.checkCommands(source); detail != "" {
		return Result{
			Status:      StatusBlocked,
			Language:    "shell",
			ErrorDetail: detail,
		}, nil
	}

	script := source
	if len(bindings) > 0 {
		script = shellBindings(bindings) + script
	}
	argv := []string{"sh", "-c", script}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		raw   sandbox.ExecResult
		err   error
		start time.Time
	)
	if r.pool != nil {
		var sb *sandbox.Sandbox
		sb, err = r.pool.Acquire(runCtx)
		if err != nil {
			if runCtx.Err() != nil {
				return Result{
					Status:      StatusTimeout,
					Language:    "shell",
					ErrorDetail: fmt.Sprintf("no sandbox available within %s", timeout),
				}, nil
			}
			return Result{}, fmt.Errorf("acquire sandbox: %w", err)
		}
		start = time.Now()
		raw, err = sb.Exec(runCtx, argv)
		if raw.TimedOut {
			resetCtx, resetCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer resetCancel()
			r.pool.ReleaseWithReset(resetCtx, sb)
		} else {
			r.pool.Release(sb)
		}
	} else {
		start = time.Now()
		raw, err = r.local.Exec(runCtx, argv)
	}
	duration := time.Since(start)
	if err != nil {
		return Result{}, fmt.Errorf("shell exec: %w", err)
	}

	stdout, truncated := capOutput(raw.Stdout, r.outputLimit)
	res := Result{
		Stdout:    stdout,
		Duration:  duration,
		Language:  "shell",
		Truncated: truncated,
	}
	switch {
	case raw.TimedOut:
		res.Status = StatusTimeout
		res.ErrorDetail = fmt.Sprintf("execution exceeded %s", timeout)
	case raw.ExitCode != 0:
		res.Status = StatusError
		detail, _ := capOutput(strings.TrimSpace(raw.Stderr), r.outputLimit)
		if detail == "" {
			detail = fmt.Sprintf("exit status %d", raw.ExitCode)
		}
		res.ErrorDetail = detail
	default:
		res.Status = StatusSuccess
	}
	return res, nil
}

// checkCommands walks every line and pipeline segment of the snippet and
// returns a block reason for the first command outside the allow-list.
func (r *ShellRuntime) checkCommands(source string) string {
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Split on the connectors a snippet can chain commands with.
		segments := splitSegments(line)
		for _, seg := range segments {
			seg = strings.TrimSpace(seg)
			if seg == "" {
				continue
			}
			// Substitution would smuggle a second command past the
			// first-token check.
			if strings.Contains(seg, "$(") || strings.Contains(seg, "`") {
				return fmt.Sprintf("command substitution not allowed: %q", seg)
			}
			fields := strings.Fields(seg)
			if len(fields) == 0 {
				continue
			}
			cmd := fields[0]
			// VAR=value prefixes are assignments, not commands.
			if strings.Contains(cmd, "=") && !strings.HasPrefix(cmd, "=") {
				if len(fields) == 1 {
					continue
				}
				cmd = fields[1]
			}
			if strings.Contains(cmd, "/") {
				return fmt.Sprintf("command paths not allowed: %q", cmd)
			}
			if _, ok := r.allowed[strings.ToLower(cmd)]; !ok {
				return fmt.Sprintf("command not allowed: %q", cmd)
			}
		}
	}
	return ""
}

var segmentSeparators = []string{"||", "&&", "|", ";", "&"}

func splitSegments(line string) []string {
	segments := []string{line}
	for _, sep := range segmentSeparators {
		var next []string
		for _, seg := range segments {
			next = append(next, strings.Split(seg, sep)...)
		}
		segments = next
	}
	return segments
}

// shellBindings exports bindings as SANDRUN_<NAME> variables. Values are
// single-quoted with embedded quotes escaped the POSIX way.
func shellBindings(bindings map[string]any) string {
	var b strings.Builder
	for name, value := range bindings {
		safe := sanitizeEnvName(name)
		if safe == "" {
			continue
		}
		quoted := "'" + strings.ReplaceAll(fmt.Sprint(value), "'", `'\''`) + "'"
		fmt.Fprintf(&b, "SANDRUN_%s=%s\n", safe, quoted)
	}
	return b.String()
}

func sanitizeEnvName(name string) string {
	var b strings.Builder
	for _, c := range strings.ToUpper(name) {
		switch {
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			b.WriteRune(c)
		}
	}
	return b.String()
}
