package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/virelia/sandrun/internal/sandbox"
)

// containerRuntime executes snippets inside pooled sandbox containers. The
// python and javascript runtimes are two parametrizations of it.
type containerRuntime struct {
	language    string
	pool        *sandbox.Pool
	outputLimit int
	logger      *zap.Logger
	// buildArgv returns the command plus the number of preamble lines
	// inserted above the user's source.
	buildArgv func(source string, bindings map[string]any) ([]string, int, error)
	lineRe    *regexp.Regexp
}

// NewPythonRuntime returns the python adapter. Snippets run as
// `python3 -c` inside a pooled container; input bindings appear to the
// snippet as the `inputs` dict.
func NewPythonRuntime(pool *sandbox.Pool, outputLimit int, logger *zap.Logger) Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &containerRuntime{
		language:    "python",
		pool:        pool,
		outputLimit: outputLimit,
		logger:      logger,
		buildArgv: func(source string, bindings map[string]any) ([]string, int, error) {
			offset := 0
			if len(bindings) > 0 {
				preamble, err := pythonBindings(bindings)
				if err != nil {
					return nil, 0, err
				}
				offset = strings.Count(preamble, "\n")
				source = preamble + source
			}
			return []string{"python3", "-u", "-B", "-c", source}, offset, nil
		},
		lineRe: pythonTracebackRe,
	}
}

var (
	pythonTracebackRe = regexp.MustCompile(`line (\d+)`)
	nodeEvalFrameRe   = regexp.MustCompile(`\[eval\]:(\d+)`)
)

// NewNodeRuntime returns the javascript adapter. Snippets run as `node -e`
// inside a pooled container; input bindings appear as the `inputs` object.
func NewNodeRuntime(pool *sandbox.Pool, outputLimit int, logger *zap.Logger) Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &containerRuntime{
		language:    "javascript",
		pool:        pool,
		outputLimit: outputLimit,
		logger:      logger,
		buildArgv: func(source string, bindings map[string]any) ([]string, int, error) {
			offset := 0
			if len(bindings) > 0 {
				preamble, err := nodeBindings(bindings)
				if err != nil {
					return nil, 0, err
				}
				offset = strings.Count(preamble, "\n")
				source = preamble + source
			}
			return []string{"node", "--no-warnings", "-e", source}, offset, nil
		},
		lineRe: nodeEvalFrameRe,
	}
}

func (r *containerRuntime) Language() string { return r.language }

func (r *containerRuntime) Execute(ctx context.Context, source string, timeout time.Duration, bindings map[string]any) (Result, error) {
	timeout = clampTimeout(timeout)

	argv, lineOffset, err := r.buildArgv(source, bindings)
	if err != nil {
		return Result{}, fmt.Errorf("build command: %w", err)
	}

	// The timeout budget covers queueing for a sandbox too: saturation
	// degrades to a bounded wait surfaced as a timeout, never an unbounded
	// pile-up.
	acquireCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sb, err := r.pool.Acquire(acquireCtx)
	if err != nil {
		if acquireCtx.Err() != nil {
			return Result{
				Status:      StatusTimeout,
				Language:    r.language,
				ErrorDetail: fmt.Sprintf("no sandbox available within %s", timeout),
			}, nil
		}
		return Result{}, fmt.Errorf("acquire sandbox: %w", err)
	}

	// Duration measures time inside the runtime only, from here on.
	start := time.Now()

	execCtx, execCancel := context.WithTimeout(ctx, timeout)
	defer execCancel()

	raw, err := sb.Exec(execCtx, argv)
	duration := time.Since(start)

	if raw.TimedOut {
		// The exec'd process may still be alive; replace the container
		// before anyone else uses it.
		resetCtx, resetCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer resetCancel()
		r.pool.ReleaseWithReset(resetCtx, sb)
	} else {
		r.pool.Release(sb)
	}

	if err != nil {
		return Result{}, fmt.Errorf("sandbox exec: %w", err)
	}

	stdout, truncated := capOutput(raw.Stdout, r.outputLimit)
	res := Result{
		Stdout:    stdout,
		Duration:  duration,
		Language:  r.language,
		Truncated: truncated,
	}

	switch {
	case raw.TimedOut:
		res.Status = StatusTimeout
		res.ErrorDetail = fmt.Sprintf("execution exceeded %s", timeout)
	case raw.ExitCode != 0:
		res.Status = StatusError
		detail, _ := capOutput(strings.TrimSpace(raw.Stderr), r.outputLimit)
		res.ErrorDetail = detail
		if line := r.faultLine(raw.Stderr); line > lineOffset {
			res.Line = line - lineOffset
		}
	default:
		res.Status = StatusSuccess
	}
	return res, nil
}

// faultLine pulls the last matching source line out of an interpreter
// traceback; the last match is the innermost frame.
func (r *containerRuntime) faultLine(stderr string) int {
	matches := r.lineRe.FindAllStringSubmatch(stderr, -1)
	if len(matches) == 0 {
		return 0
	}
	line, _ := strconv.Atoi(matches[len(matches)-1][1])
	return line
}

// pythonBindings renders bindings as a preamble defining `inputs`. A JSON
// string literal is also a valid python string literal, so the payload
// round-trips through json.loads without shell-quoting hazards.
func pythonBindings(bindings map[string]any) (string, error) {
	payload, err := json.Marshal(bindings)
	if err != nil {
		return "", err
	}
	quoted, err := json.Marshal(string(payload))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("import json as _json\ninputs = _json.loads(%s)\ndel _json\n", quoted), nil
}

// nodeBindings renders bindings as a preamble defining `inputs`.
func nodeBindings(bindings map[string]any) (string, error) {
	payload, err := json.Marshal(bindings)
	if err != nil {
		return "", err
	}
	quoted, err := json.Marshal(string(payload))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("const inputs = JSON.parse(%s);\n", quoted), nil
}
