// Package security provides the validation layers consulted before any
// filesystem or subprocess operation: path confinement to a workspace root
// and command screening against destructive or injectable shell input.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var (
	// ErrEmptyPath indicates the caller passed nothing to validate.
	ErrEmptyPath = errors.New("security: empty path supplied")

	// ErrNotDirectory indicates an existing path failed the directory check.
	ErrNotDirectory = errors.New("security: not a directory")
)

// Sensitive locations that must never be touched, matched as substrings of
// the resolved path. The Unix and Windows sets mirror the credential and
// system files an agent has no business reading.
var unixBlocklist = []string{
	"/etc/passwd",
	"/etc/shadow",
	"/etc/sudoers",
	"/etc/ssh",
	"/root",
	"/.ssh",
	"/id_rsa",
	"/id_ed25519",
	"/authorized_keys",
	"/known_hosts",
	"/.gnupg",
	"/.aws/credentials",
	"/.aws/config",
	"/.config/gcloud",
	"/.kube/config",
	"/.docker/config.json",
	"/private/etc",
	"/.bash_history",
	"/.zsh_history",
	"/.netrc",
	"/.pgpass",
	"/.mysql_history",
	"/.env",
	"/secrets",
	"/credentials",
}

var windowsBlocklist = []string{
	`\windows\system32\config\sam`,
	`\windows\system32\config\system`,
	`\windows\system32\config\security`,
	`\users\administrator`,
	`\.ssh`,
	`\id_rsa`,
	`\id_ed25519`,
	`\authorized_keys`,
	`\.aws\credentials`,
	`\.aws\config`,
	`\.azure`,
	`\.kube\config`,
	`\.docker\config.json`,
	`\appdata\roaming\microsoft\credentials`,
	`\appdata\local\microsoft\credentials`,
	`\ntds.dit`,
	`\.env`,
	`\secrets`,
	`\credentials`,
	`\.netrc`,
	`\pgpass.conf`,
}

// Filename fragments that suggest credential material. Only consulted for
// paths outside the workspace when strict filename checking is on.
var sensitiveFilenamePatterns = []string{
	".env",
	".pem",
	".key",
	".p12",
	".pfx",
	"credentials",
	"secrets",
	"password",
	"private_key",
	"secret_key",
	"api_key",
	"token",
	".htpasswd",
}

// Blocklist fragments that are tolerated inside the workspace so projects can
// keep their own .env and secrets files.
var workspaceExemptPatterns = []string{"/.env", `\.env`, "/secrets", `\secrets`}

// PathValidator confines filesystem operations to a workspace root. It
// resolves symlinks, rejects escapes, and blocks a fixed set of sensitive
// system locations. Reads can optionally range outside the workspace; writes
// never can.
type PathValidator struct {
	workspace    string
	allowOutside bool
	strictNames  bool
	blocklist    []string
	windows      bool
}

// NewPathValidator creates a validator rooted at workspace. An empty
// workspace falls back to the current directory. Strict filename checking is
// on by default.
func NewPathValidator(workspace string) *PathValidator {
	root := workspace
	if root == "" {
		if cwd, err := os.Getwd(); err == nil {
			root = cwd
		}
	}
	root = normalizeAbs(expandUser(root))
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	windows := runtime.GOOS == "windows"
	blocklist := unixBlocklist
	if windows {
		blocklist = windowsBlocklist
	}

	return &PathValidator{
		workspace:   root,
		strictNames: true,
		blocklist:   blocklist,
		windows:     windows,
	}
}

// Workspace reports the resolved workspace root.
func (v *PathValidator) Workspace() string { return v.workspace }

// AllowOutsideWorkspace permits read access beyond the workspace root. Writes
// stay confined regardless.
func (v *PathValidator) AllowOutsideWorkspace(allow bool) { v.allowOutside = allow }

// StrictFilenames toggles the sensitive-filename screen applied to paths
// outside the workspace.
func (v *PathValidator) StrictFilenames(strict bool) { v.strictNames = strict }

// ValidateRead checks a path for read access and returns the resolved
// absolute path on success.
func (v *PathValidator) ValidateRead(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyPath
	}

	abs := normalizeAbs(expandUser(path))
	resolved, exists := resolveExisting(abs)

	if !v.allowOutside && !v.within(resolved) {
		return "", fmt.Errorf("security: path %q resolves outside workspace boundary (workspace: %s)", path, v.workspace)
	}
	if err := v.checkBlocklist(resolved); err != nil {
		return "", err
	}
	if exists {
		if err := v.checkSymlink(abs); err != nil {
			return "", err
		}
	}
	return resolved, nil
}

// ValidateWrite checks a path for write access. The workspace boundary is
// enforced unconditionally, and the parent directory must not escape through
// a symlink.
func (v *PathValidator) ValidateWrite(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyPath
	}

	abs := normalizeAbs(expandUser(path))
	resolved, _ := resolveExisting(abs)

	if !v.within(resolved) {
		return "", fmt.Errorf("security: write path %q resolves outside workspace boundary (workspace: %s)", path, v.workspace)
	}
	if err := v.checkBlocklist(resolved); err != nil {
		return "", err
	}

	parent := filepath.Dir(resolved)
	if _, err := os.Lstat(parent); err == nil {
		parentResolved, err := filepath.EvalSymlinks(parent)
		if err != nil {
			return "", fmt.Errorf("security: parent directory symlink: %w", err)
		}
		if !v.within(parentResolved) {
			return "", errors.New("security: parent directory escapes workspace boundary")
		}
	}
	return resolved, nil
}

// ValidateDir checks a path for directory listing. It follows the read rules
// and additionally requires an existing path to be a directory.
func (v *PathValidator) ValidateDir(path string) (string, error) {
	resolved, err := v.ValidateRead(path)
	if err != nil {
		return "", err
	}
	if info, statErr := os.Stat(resolved); statErr == nil && !info.IsDir() {
		return "", fmt.Errorf("path %q: %w", path, ErrNotDirectory)
	}
	return resolved, nil
}

// Contains reports whether an already-resolved path sits inside the
// workspace. Used by callers that annotate listings.
func (v *PathValidator) Contains(path string) bool {
	return v.within(normalizeAbs(path))
}

func (v *PathValidator) within(resolved string) bool {
	return withinRoot(resolved, v.workspace)
}

// checkBlocklist rejects resolved paths matching a sensitive pattern. The
// .env and secrets fragments are exempt inside the workspace, and in strict
// mode filenames outside the workspace are screened for credential material.
func (v *PathValidator) checkBlocklist(resolved string) error {
	normalized := v.normalizeForMatch(resolved)
	inside := v.within(resolved)

	for _, pattern := range v.blocklist {
		if !strings.Contains(normalized, pattern) {
			continue
		}
		if inside && patternExempt(pattern) {
			continue
		}
		return fmt.Errorf("security: access to sensitive path pattern %q is blocked", pattern)
	}

	if v.strictNames && !inside {
		name := strings.ToLower(filepath.Base(resolved))
		for _, pattern := range sensitiveFilenamePatterns {
			if strings.Contains(name, pattern) {
				return fmt.Errorf("security: access to files matching pattern %q outside workspace is blocked", pattern)
			}
		}
	}
	return nil
}

// checkSymlink rejects symlinks whose final target leaves the workspace.
// EvalSymlinks follows the whole chain, so nested links are covered.
func (v *PathValidator) checkSymlink(path string) error {
	info, err := os.Lstat(path)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return nil
	}
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return fmt.Errorf("security: cannot resolve symlink: %w", err)
	}
	if !v.within(target) {
		return fmt.Errorf("security: symlink target %q escapes workspace boundary", target)
	}
	return nil
}

func (v *PathValidator) normalizeForMatch(path string) string {
	lowered := strings.ToLower(path)
	if v.windows {
		return strings.ReplaceAll(lowered, "/", `\`)
	}
	return lowered
}

func patternExempt(pattern string) bool {
	for _, exempt := range workspaceExemptPatterns {
		if strings.Contains(pattern, exempt) {
			return true
		}
	}
	return false
}

// expandUser substitutes a leading ~ with the caller's home directory.
func expandUser(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func normalizeAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(abs)
}

// resolveExisting canonicalises a path, following symlinks along the longest
// existing prefix. Non-existent tails are rejoined unchanged so paths about
// to be created still validate.
func resolveExisting(abs string) (string, bool) {
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, true
	}

	dir := abs
	var tail []string
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		tail = append(tail, filepath.Base(dir))
		dir = parent
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return filepath.Clean(resolved), false
		}
	}
	return abs, false
}

func withinRoot(path, root string) bool {
	if root == "" {
		return false
	}
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if path == root {
		return true
	}
	if root == string(filepath.Separator) {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
