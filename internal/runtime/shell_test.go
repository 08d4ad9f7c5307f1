package runtime

import (
	"context"
	goruntime "runtime"
	"strings"
	"testing"
	"time"

	"github.com/virelia/sandrun/internal/sandbox"
)

func newHostShell(t *testing.T, allowed []string) *ShellRuntime {
	t.Helper()
	if goruntime.GOOS == "windows" {
		t.Skip("posix shell required")
	}
	return NewShellRuntime(nil, sandbox.NewLocalExecutor("", nil), allowed, 0, nil)
}

func TestShellExecute(t *testing.T) {
	r := newHostShell(t, nil)

	tests := []struct {
		name       string
		source     string
		wantStatus Status
		wantStdout string
	}{
		{"echo", "echo hello", StatusSuccess, "hello\n"},
		{"pipeline", "echo one two | wc -w", StatusSuccess, ""},
		{"chained", "echo a && echo b", StatusSuccess, "a\nb\n"},
		{"comment skipped", "# just a comment\necho ok", StatusSuccess, "ok\n"},
		{"grep no match exits nonzero", "echo abc | grep xyz", StatusError, ""},
		{"disallowed command", "rm -rf /tmp/x", StatusBlocked, ""},
		{"disallowed in pipeline", "echo hi | sh", StatusBlocked, ""},
		{"disallowed after chain", "echo hi; curl example.com", StatusBlocked, ""},
		{"disallowed after background", "echo hi & python3 -c 1", StatusBlocked, ""},
		{"absolute path", "/bin/echo hi", StatusBlocked, ""},
		{"command substitution", "echo $(whoami)", StatusBlocked, ""},
		{"backtick substitution", "echo `date`", StatusBlocked, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Execute(context.Background(), tt.source, time.Second, nil)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if res.Status != tt.wantStatus {
				t.Fatalf("status = %s, want %s (detail: %s)", res.Status, tt.wantStatus, res.ErrorDetail)
			}
			if tt.wantStdout != "" && res.Stdout != tt.wantStdout {
				t.Errorf("stdout = %q, want %q", res.Stdout, tt.wantStdout)
			}
			if res.Language != "shell" {
				t.Errorf("language = %q, want shell", res.Language)
			}
		})
	}
}

func TestShellBlockedNeverRuns(t *testing.T) {
	r := newHostShell(t, nil)

	res, err := r.Execute(context.Background(), "curl example.com", time.Second, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != StatusBlocked {
		t.Fatalf("status = %s, want blocked", res.Status)
	}
	if res.Stdout != "" {
		t.Errorf("stdout = %q, want empty for a blocked snippet", res.Stdout)
	}
	if !strings.Contains(res.ErrorDetail, "curl") {
		t.Errorf("detail = %q, want the offending command named", res.ErrorDetail)
	}
}

func TestShellCustomAllowList(t *testing.T) {
	r := newHostShell(t, []string{"echo"})

	res, err := r.Execute(context.Background(), "date", time.Second, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != StatusBlocked {
		t.Errorf("status = %s, want blocked: date is outside the custom list", res.Status)
	}

	res, err = r.Execute(context.Background(), "echo fine", time.Second, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Errorf("status = %s, want success (detail: %s)", res.Status, res.ErrorDetail)
	}
}

func TestShellBindings(t *testing.T) {
	r := newHostShell(t, nil)

	res, err := r.Execute(context.Background(), `echo "$SANDRUN_NAME:$SANDRUN_COUNT"`, time.Second, map[string]any{
		"name":  "it's",
		"count": 3,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Fatalf("status = %s (detail: %s)", res.Status, res.ErrorDetail)
	}
	if want := "it's:3\n"; res.Stdout != want {
		t.Errorf("stdout = %q, want %q", res.Stdout, want)
	}
}

func TestShellTimeout(t *testing.T) {
	r := newHostShell(t, []string{"sleep"})

	start := time.Now()
	res, err := r.Execute(context.Background(), "sleep 10", 100*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("took %s, deadline not enforced", elapsed)
	}
	if res.Status != StatusTimeout {
		t.Errorf("status = %s, want timeout", res.Status)
	}
}

func TestShellTruncatesOutput(t *testing.T) {
	if goruntime.GOOS == "windows" {
		t.Skip("posix shell required")
	}
	r := NewShellRuntime(nil, sandbox.NewLocalExecutor("", nil), nil, 32, nil)

	res, err := r.Execute(context.Background(), "echo aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", time.Second, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Fatalf("status = %s (detail: %s)", res.Status, res.ErrorDetail)
	}
	if !res.Truncated {
		t.Fatal("expected truncated output")
	}
	if !strings.HasSuffix(res.Stdout, TruncationMarker) {
		t.Errorf("stdout = %q, want truncation marker suffix", res.Stdout)
	}
}

func TestShellSegmentSplitting(t *testing.T) {
	tests := []struct {
		line string
		want int
	}{
		{"echo a", 1},
		{"echo a | wc -l", 2},
		{"echo a && echo b || echo c", 3},
		{"echo a; echo b; echo c", 3},
		{"echo a & echo b", 2},
	}
	for _, tt := range tests {
		segs := splitSegments(tt.line)
		n := 0
		for _, s := range segs {
			if strings.TrimSpace(s) != "" {
				n++
			}
		}
		if n != tt.want {
			t.Errorf("splitSegments(%q) produced %d segments, want %d", tt.line, n, tt.want)
		}
	}
}
