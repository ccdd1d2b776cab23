package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

var (
	// ErrEmptyCommand indicates the caller passed nothing to validate.
	ErrEmptyCommand = errors.New("security: empty command")
)

// Dangerous command signatures blocked as case-insensitive substrings. A
// leading sudo does not hide them because the whole command line is scanned.
var dangerousCommands = []string{
	// filesystem destruction
	"rm -rf /",
	"rm -rf /*",
	"rm -rf ~",
	"rm -rf ~/*",
	"rm -rf .",
	"rm -rf ./*",
	"rm -fr /",
	"rm -fr /*",
	// disk operations
	"mkfs",
	"dd if=/dev/zero",
	"dd if=/dev/random",
	"format c:",
	"format d:",
	// fork bomb
	":(){ :|:& };:",
	// system modification
	"chmod -R 777 /",
	"chown -R",
	// netcat listener
	"nc -l",
	// windows
	`del /f /s /q c:\`,
	`rd /s /q c:\`,
	"format",
}

// Regex patterns for destructive operations that substring matching misses.
var dangerousPatterns = []*regexp.Regexp{
	// recursive deletion at root or home
	regexp.MustCompile(`(?i)rm\s+(-[rfRF]+\s+)*[/~](\s|/\*|$)`),
	// fork bomb shapes
	regexp.MustCompile(`:\s*\(\s*\)\s*\{.*\}`),
	// disk formatting and wiping
	regexp.MustCompile(`(?i)mkfs\.[a-z0-9]+\s+/dev/`),
	regexp.MustCompile(`(?i)dd\s+.*if=/dev/(zero|random|urandom)`),
	// chmod/chown aimed at the filesystem root
	regexp.MustCompile(`(?i)chmod\s+(-[rR]+\s+)*[0-7]{3,4}\s+/$`),
	regexp.MustCompile(`(?i)chown\s+(-[rR]+\s+)*\S+:\S*\s+/$`),
	// windows format and recursive delete
	regexp.MustCompile(`(?i)format\s+[a-z]:`),
	regexp.MustCompile(`(?i)(del|rd)\s+/[sfq]+\s+[a-z]:\\`),
}

// Shell constructs that enable command injection. Pipes are handled
// separately because they are often legitimate.
var injectionPatterns = []*regexp.Regexp{
	// command chaining
	regexp.MustCompile(`;\s*\S`),
	regexp.MustCompile(`\|\|`),
	regexp.MustCompile(`&&`),
	// command substitution
	regexp.MustCompile(`\$\(`),
	regexp.MustCompile("`[^`]+`"),
	// process substitution
	regexp.MustCompile(`<\(`),
	regexp.MustCompile(`>\(`),
	// redirection into sensitive targets
	regexp.MustCompile(`>\s*/etc/`),
	regexp.MustCompile(`>\s*/dev/`),
	regexp.MustCompile(`>\s*~/.ssh/`),
	regexp.MustCompile(`>\s*~/.bashrc`),
	regexp.MustCompile(`>\s*~/.profile`),
	regexp.MustCompile(`>\s*/root/`),
}

// Paths whose mere mention is blocked in strict mode. Normal mode tolerates
// reading them, mirroring the read/write asymmetry of PathValidator.
var sensitiveCommandPaths = []string{
	"/etc/passwd",
	"/etc/shadow",
	"/etc/sudoers",
	"/etc/hosts",
	"~/.ssh/authorized_keys",
	"~/.ssh/id_rsa",
	"~/.bashrc",
	"~/.profile",
	"~/.zshrc",
	"/root/",
}

// Programs permitted when allow-list mode is on.
var defaultAllowlist = []string{
	"ls", "dir", "pwd", "cd", "echo", "cat", "head", "tail", "grep",
	"find", "which", "where", "whoami", "date", "cal", "uname",
	"git", "npm", "pnpm", "yarn", "node", "python", "python3", "pip",
	"cargo", "rustc", "go", "java", "javac", "mvn", "gradle",
	"docker", "kubectl", "terraform", "make", "cmake",
	"curl", "wget", "ping", "traceroute", "dig", "nslookup",
	"ps", "top", "htop", "df", "du", "free", "uptime",
	"tar", "zip", "unzip", "gzip", "gunzip",
	"cp", "mv", "mkdir", "touch", "ln",
	"code", "vim", "nano", "less", "more",
	"ssh", "scp", "rsync",
}

const displayTruncateAt = 100

// CommandValidator screens shell commands before they are handed to a
// subprocess. It blocks destructive signatures and injection constructs, and
// can optionally restrict execution to an allow-list of program names.
type CommandValidator struct {
	mu            sync.RWMutex
	allowlistMode bool
	allowlist     map[string]struct{}
	extraBlocked  []string
	allowPipes    bool
	strictMode    bool
}

// NewCommandValidator initialises a validator with the default policy:
// denylist screening on, pipes permitted, strict mode off.
func NewCommandValidator() *CommandValidator {
	allow := make(map[string]struct{}, len(defaultAllowlist))
	for _, name := range defaultAllowlist {
		allow[name] = struct{}{}
	}
	return &CommandValidator{
		allowlist:  allow,
		allowPipes: true,
	}
}

// SetAllowlistMode restricts execution to allow-listed program names.
func (v *CommandValidator) SetAllowlistMode(on bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.allowlistMode = on
}

// Allow adds program names to the allow-list.
func (v *CommandValidator) Allow(names ...string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			v.allowlist[name] = struct{}{}
		}
	}
}

// Block adds custom substrings to the denylist.
func (v *CommandValidator) Block(patterns ...string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, pattern := range patterns {
		if strings.TrimSpace(pattern) != "" {
			v.extraBlocked = append(v.extraBlocked, pattern)
		}
	}
}

// AllowlistMode reports whether the validator is restricted to allow-listed
// program names.
func (v *CommandValidator) AllowlistMode() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.allowlistMode
}

// SetAllowPipes toggles tolerance of the pipe operator.
func (v *CommandValidator) SetAllowPipes(allow bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.allowPipes = allow
}

// SetStrictMode additionally blocks commands that merely read sensitive
// paths.
func (v *CommandValidator) SetStrictMode(strict bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.strictMode = strict
}

// Validate checks a command for security risks. A nil return means the
// command may be spawned.
func (v *CommandValidator) Validate(command string) error {
	if strings.TrimSpace(command) == "" {
		return ErrEmptyCommand
	}

	v.mu.RLock()
	allowlistMode := v.allowlistMode
	allowPipes := v.allowPipes
	strictMode := v.strictMode
	extraBlocked := append([]string(nil), v.extraBlocked...)
	v.mu.RUnlock()

	if err := checkDangerous(command, extraBlocked); err != nil {
		return err
	}
	if err := checkInjection(command, allowPipes); err != nil {
		return err
	}
	if strictMode {
		if err := checkSensitivePaths(command); err != nil {
			return err
		}
	}
	if allowlistMode {
		if err := v.checkAllowlist(command); err != nil {
			return err
		}
	}
	return nil
}

// SanitizeForDisplay truncates long commands for safe logging.
func (v *CommandValidator) SanitizeForDisplay(command string) string {
	if len(command) > displayTruncateAt {
		return command[:displayTruncateAt] + "..."
	}
	return command
}

func checkDangerous(command string, extra []string) error {
	lowered := strings.ToLower(strings.TrimSpace(command))

	for _, signature := range dangerousCommands {
		if strings.Contains(lowered, strings.ToLower(signature)) {
			return fmt.Errorf("security: dangerous command %q is blocked", signature)
		}
	}
	for _, blocked := range extra {
		if strings.Contains(lowered, strings.ToLower(blocked)) {
			return fmt.Errorf("security: blocked by custom denylist %q", blocked)
		}
	}
	for _, pattern := range dangerousPatterns {
		if pattern.MatchString(command) {
			return fmt.Errorf("security: dangerous pattern matched: %s", pattern.String())
		}
	}
	return nil
}

func checkInjection(command string, allowPipes bool) error {
	for _, pattern := range injectionPatterns {
		if match := pattern.FindString(command); match != "" {
			return fmt.Errorf("security: shell injection detected: %q", match)
		}
	}
	if !allowPipes && strings.Contains(command, "|") {
		return errors.New("security: disallowed pipe operator")
	}
	return nil
}

func checkSensitivePaths(command string) error {
	for _, path := range sensitiveCommandPaths {
		if strings.Contains(command, path) {
			return fmt.Errorf("security: access to sensitive path %q is blocked", path)
		}
	}
	return nil
}

func (v *CommandValidator) checkAllowlist(command string) error {
	base := baseCommand(command)
	if base == "" {
		return ErrEmptyCommand
	}

	v.mu.RLock()
	_, ok := v.allowlist[base]
	v.mu.RUnlock()
	if !ok {
		return fmt.Errorf("security: command %q is not on the allow-list", base)
	}
	return nil
}

// baseCommand extracts the leading program name: the first pipe segment's
// first token, stripped of any path prefix and lowercased.
func baseCommand(command string) string {
	if idx := strings.Index(command, "|"); idx >= 0 {
		command = command[:idx]
	}
	fields := strings.Fields(strings.TrimSpace(command))
	if len(fields) == 0 {
		return ""
	}
	base := fields[0]
	if strings.ContainsAny(base, `/\`) {
		base = filepath.Base(strings.ReplaceAll(base, `\`, "/"))
	}
	return strings.ToLower(base)
}
