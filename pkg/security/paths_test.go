package security

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func newTestValidator(t *testing.T) (*PathValidator, string) {
	t.Helper()
	ws := t.TempDir()
	v := NewPathValidator(ws)
	return v, v.Workspace()
}

func TestValidateReadInsideWorkspace(t *testing.T) {
	v, ws := newTestValidator(t)

	path := filepath.Join(ws, "notes.txt")
	if err := os.WriteFile(path, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	resolved, err := v.ValidateRead(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != path {
		t.Fatalf("resolved = %q, want %q", resolved, path)
	}
}

func TestValidateReadTraversalEscape(t *testing.T) {
	v, ws := newTestValidator(t)

	escape := filepath.Join(ws, "..", "other", "file.txt")
	_, err := v.ValidateRead(escape)
	if err == nil {
		t.Fatal("expected boundary error")
	}
	if !strings.Contains(err.Error(), "outside workspace boundary") {
		t.Fatalf("error = %v, want workspace boundary message", err)
	}
}

func TestValidateReadNonexistentStillChecked(t *testing.T) {
	v, ws := newTestValidator(t)

	// Missing files inside the workspace validate; the tool reports not-found.
	if _, err := v.ValidateRead(filepath.Join(ws, "missing.txt")); err != nil {
		t.Fatalf("missing file inside workspace rejected: %v", err)
	}

	// Missing files outside do not.
	if _, err := v.ValidateRead("/nonexistent-root-dir/file.txt"); err == nil {
		t.Fatal("expected boundary error for missing file outside workspace")
	}
}

func TestValidateReadSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test requires unix")
	}
	v, ws := newTestValidator(t)

	outside := t.TempDir()
	target := filepath.Join(outside, "target.txt")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(ws, "link.txt")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	// With the boundary on, the resolved target fails the workspace check.
	if _, err := v.ValidateRead(link); err == nil {
		t.Fatal("expected error for symlink leaving workspace")
	}

	// With outside reads permitted, the symlink check itself still fires.
	v.AllowOutsideWorkspace(true)
	v.StrictFilenames(false)
	_, err := v.ValidateRead(link)
	if err == nil || !strings.Contains(err.Error(), "symlink target") {
		t.Fatalf("error = %v, want symlink target message", err)
	}
}

func TestValidateReadBlocklist(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix blocklist paths")
	}
	v, _ := newTestValidator(t)
	v.AllowOutsideWorkspace(true)

	_, err := v.ValidateRead("/etc/passwd")
	if err == nil || !strings.Contains(err.Error(), "sensitive path pattern") {
		t.Fatalf("error = %v, want sensitive path pattern message", err)
	}
}

func TestValidateReadWorkspaceEnvExempt(t *testing.T) {
	v, ws := newTestValidator(t)

	// Project-local .env files are fair game inside the workspace...
	inside := filepath.Join(ws, ".env")
	if err := os.WriteFile(inside, []byte("KEY=1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := v.ValidateRead(inside); err != nil {
		t.Fatalf(".env inside workspace rejected: %v", err)
	}

	// ...but not outside it.
	outside := t.TempDir()
	outsideEnv := filepath.Join(outside, ".env")
	if err := os.WriteFile(outsideEnv, []byte("KEY=1"), 0o644); err != nil {
		t.Fatal(err)
	}
	v.AllowOutsideWorkspace(true)
	if _, err := v.ValidateRead(outsideEnv); err == nil {
		t.Fatal("expected .env outside workspace to be blocked")
	}
}

func TestStrictFilenamesOutsideWorkspace(t *testing.T) {
	v, _ := newTestValidator(t)
	v.AllowOutsideWorkspace(true)

	outside := t.TempDir()
	keyFile := filepath.Join(outside, "server.pem")
	if err := os.WriteFile(keyFile, []byte("---"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := v.ValidateRead(keyFile)
	if err == nil || !strings.Contains(err.Error(), "outside workspace is blocked") {
		t.Fatalf("error = %v, want strict filename message", err)
	}

	// The screen only applies outside the workspace and can be turned off.
	v.StrictFilenames(false)
	if _, err := v.ValidateRead(keyFile); err != nil {
		t.Fatalf("strict screen still active after disable: %v", err)
	}
}

func TestValidateWriteConfinedUnconditionally(t *testing.T) {
	v, ws := newTestValidator(t)
	v.AllowOutsideWorkspace(true) // must not loosen writes

	if _, err := v.ValidateWrite(filepath.Join(ws, "sub", "new.txt")); err != nil {
		t.Fatalf("write inside workspace rejected: %v", err)
	}

	outside := filepath.Join(t.TempDir(), "out.txt")
	_, err := v.ValidateWrite(outside)
	if err == nil || !strings.Contains(err.Error(), "outside workspace boundary") {
		t.Fatalf("error = %v, want boundary message", err)
	}
}

func TestValidateWriteParentSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test requires unix")
	}
	v, ws := newTestValidator(t)

	outside := t.TempDir()
	linkDir := filepath.Join(ws, "linked")
	if err := os.Symlink(outside, linkDir); err != nil {
		t.Fatal(err)
	}

	_, err := v.ValidateWrite(filepath.Join(linkDir, "file.txt"))
	if err == nil {
		t.Fatal("expected error for write through escaping symlink dir")
	}
}

func TestValidateDir(t *testing.T) {
	v, ws := newTestValidator(t)

	sub := filepath.Join(ws, "docs")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := v.ValidateDir(sub); err != nil {
		t.Fatalf("directory rejected: %v", err)
	}

	file := filepath.Join(ws, "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := v.ValidateDir(file)
	if err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Fatalf("error = %v, want not-a-directory message", err)
	}
	if !errors.Is(err, ErrNotDirectory) {
		t.Fatalf("error = %v, want ErrNotDirectory", err)
	}
}

func TestValidateEmptyPath(t *testing.T) {
	v, _ := newTestValidator(t)
	for _, fn := range []func(string) (string, error){v.ValidateRead, v.ValidateWrite, v.ValidateDir} {
		if _, err := fn("   "); err == nil {
			t.Fatal("expected empty path error")
		}
	}
}
