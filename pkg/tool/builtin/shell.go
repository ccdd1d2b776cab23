package toolbuiltin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/spoonos-ai/spoonbot/pkg/security"
	"github.com/spoonos-ai/spoonbot/pkg/tool"
)

const (
	defaultShellTimeout   = 60 * time.Second
	defaultShellMaxOutput = 10000

	// Shell executions are throttled so a runaway model cannot fork-storm
	// the host.
	shellRateLimit rate.Limit = 5
	shellRateBurst            = 10
)

var shellSchema = &tool.JSONSchema{
	Type: "object",
	Properties: map[string]any{
		"command": map[string]any{
			"type":        "string",
			"description": "The shell command to execute (validated for safety)",
		},
		"working_dir": map[string]any{
			"type":        "string",
			"description": "Optional working directory for the command",
		},
	},
	Required: []string{"command"},
}

// ShellTool executes shell commands behind a CommandValidator gate with a
// timeout, output truncation and rate limiting.
type ShellTool struct {
	validator *security.CommandValidator
	workdir   string
	timeout   time.Duration
	maxOutput int
	limiter   *rate.Limiter
}

// NewShellTool builds a shell tool that validates commands with the given
// validator and runs them under workdir by default.
func NewShellTool(validator *security.CommandValidator, workdir string) *ShellTool {
	if validator == nil {
		validator = security.NewCommandValidator()
	}
	return &ShellTool{
		validator: validator,
		workdir:   workdir,
		timeout:   defaultShellTimeout,
		maxOutput: defaultShellMaxOutput,
		limiter:   rate.NewLimiter(shellRateLimit, shellRateBurst),
	}
}

// SetTimeout overrides the per-command timeout.
func (s *ShellTool) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// SetMaxOutput overrides the output truncation threshold.
func (s *ShellTool) SetMaxOutput(n int) {
	if n > 0 {
		s.maxOutput = n
	}
}

func (s *ShellTool) Name() string { return "shell" }

func (s *ShellTool) Description() string {
	mode := "blocklist"
	if s.validator.AllowlistMode() {
		mode = "allowlist"
	}
	return fmt.Sprintf(
		"Execute a shell command and return its output. Commands timeout after %ds. "+
			"Security mode: %s. Dangerous commands and injection patterns are blocked.",
		int(s.timeout.Seconds()), mode)
}

func (s *ShellTool) Schema() *tool.JSONSchema { return shellSchema }

func (s *ShellTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	command, err := stringArg(args, "command")
	if err != nil {
		return "", err
	}

	waitStart := time.Now()
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	if waited := time.Since(waitStart); waited > 100*time.Millisecond {
		log.Printf("[shell] rate limited, waited %.2fs", waited.Seconds())
	}

	if err := s.validator.Validate(command); err != nil {
		return fmt.Sprintf("Security Error: %s\nCommand: %s",
			err, s.validator.SanitizeForDisplay(command)), nil
	}

	cwd, err := optionalString(args, "working_dir")
	if err != nil {
		return "", err
	}
	if cwd == "" {
		cwd = s.workdir
	}
	if cwd == "" {
		cwd, _ = os.Getwd()
	}
	if info, statErr := os.Stat(cwd); statErr != nil || !info.IsDir() {
		return fmt.Sprintf("Error: Working directory not found: %s", cwd), nil
	}

	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := shellCommand(execCtx, command)
	cmd.Dir = cwd
	cmd.Env = os.Environ()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("Error: Command timed out after %d seconds",
			int(s.timeout.Seconds())), nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return fmt.Sprintf("Error executing command: %v", runErr), nil
		}
	}

	var parts []string
	if stdout.Len() > 0 {
		parts = append(parts, stdout.String())
	}
	if strings.TrimSpace(stderr.String()) != "" {
		parts = append(parts, "STDERR:\n"+stderr.String())
	}
	if exitCode != 0 {
		parts = append(parts, fmt.Sprintf("\nExit code: %d", exitCode))
	}

	result := "(no output)"
	if len(parts) > 0 {
		result = strings.Join(parts, "\n")
	}
	if len(result) > s.maxOutput {
		over := len(result) - s.maxOutput
		result = result[:s.maxOutput] + fmt.Sprintf("\n... (truncated, %d more chars)", over)
	}
	return result, nil
}
