package toolbuiltin

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/spoonos-ai/spoonbot/pkg/security"
)

func skipIfWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func newShell(t *testing.T) *ShellTool {
	t.Helper()
	return NewShellTool(security.NewCommandValidator(), t.TempDir())
}

func TestShellToolRunsCommand(t *testing.T) {
	skipIfWindows(t)
	st := newShell(t)

	out := mustExecute(t, map[string]any{"command": "echo hello"}, st)
	if !strings.Contains(out, "hello") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestShellToolNoOutput(t *testing.T) {
	skipIfWindows(t)
	st := newShell(t)

	out := mustExecute(t, map[string]any{"command": "true"}, st)
	if out != "(no output)" {
		t.Fatalf("got %q", out)
	}
}

func TestShellToolStderrAndExitCode(t *testing.T) {
	skipIfWindows(t)
	st := newShell(t)

	out := mustExecute(t, map[string]any{"command": "echo oops 1>&2"}, st)
	if !strings.Contains(out, "STDERR:\noops") {
		t.Fatalf("stderr section missing: %q", out)
	}

	out = mustExecute(t, map[string]any{"command": "exit 3"}, st)
	if !strings.Contains(out, "Exit code: 3") {
		t.Fatalf("exit code missing: %q", out)
	}
}

func TestShellToolBlocksInjection(t *testing.T) {
	skipIfWindows(t)
	ws := t.TempDir()
	st := NewShellTool(security.NewCommandValidator(), ws)

	out := mustExecute(t, map[string]any{"command": "echo hi; cat /etc/passwd"}, st)
	if !strings.Contains(out, "Security Error") ||
		!strings.Contains(out, "injection") {
		t.Fatalf("injection not blocked: %q", out)
	}
	// The command must be rejected before anything runs.
	if strings.Contains(out, "root:") {
		t.Fatalf("blocked command produced output: %q", out)
	}
}

func TestShellToolBlocksDangerous(t *testing.T) {
	skipIfWindows(t)
	st := newShell(t)

	out := mustExecute(t, map[string]any{"command": "rm -rf /"}, st)
	if !strings.Contains(out, "Security Error") ||
		!strings.Contains(out, "dangerous") {
		t.Fatalf("dangerous command not blocked: %q", out)
	}
}

func TestShellToolWorkingDir(t *testing.T) {
	skipIfWindows(t)
	st := newShell(t)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := mustExecute(t, map[string]any{"command": "ls", "working_dir": dir}, st)
	if !strings.Contains(out, "marker.txt") {
		t.Fatalf("working_dir ignored: %q", out)
	}

	out = mustExecute(t, map[string]any{
		"command": "ls", "working_dir": filepath.Join(dir, "missing"),
	}, st)
	if !strings.Contains(out, "Error: Working directory not found") {
		t.Fatalf("missing workdir accepted: %q", out)
	}
}

func TestShellToolTimeout(t *testing.T) {
	skipIfWindows(t)
	st := newShell(t)
	st.SetTimeout(time.Second)

	out := mustExecute(t, map[string]any{"command": "sleep 5"}, st)
	if !strings.Contains(out, "Error: Command timed out after 1 seconds") {
		t.Fatalf("timeout not reported: %q", out)
	}
}

func TestShellToolTruncation(t *testing.T) {
	skipIfWindows(t)
	st := newShell(t)
	st.SetMaxOutput(16)

	out := mustExecute(t, map[string]any{
		"command": "echo aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
	}, st)
	if !strings.Contains(out, "... (truncated,") {
		t.Fatalf("long output not truncated: %q", out)
	}
	if len(out) > 16+64 {
		t.Fatalf("truncated output still too long: %d chars", len(out))
	}
}

func TestShellToolContextCancellation(t *testing.T) {
	skipIfWindows(t)
	st := newShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := st.Execute(ctx, map[string]any{"command": "echo hi"}); err == nil {
		t.Fatal("expected cancellation error")
	}
}
