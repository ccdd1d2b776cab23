package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spoonos-ai/spoonbot/internal/config"
)

// isolateHome points config resolution at a temp dir and clears every env
// var the config layer reads.
func isolateHome(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("USERPROFILE", tmpDir)
	t.Setenv("SPOONBOT_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("ANTHROPIC_AUTH_TOKEN", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("SPOONBOT_WORKSPACE", "")
	t.Setenv("SPOONBOT_MODEL", "")
	return tmpDir
}

// captureStdout runs fn with os.Stdout redirected and returns what it wrote.
func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := fn()

	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String(), err
}

func TestWriteIfNotExists_NewFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.txt")

	writeIfNotExists(path, "test content")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if string(data) != "test content" {
		t.Errorf("content = %q, want 'test content'", string(data))
	}
}

func TestWriteIfNotExists_ExistingFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.txt")

	os.WriteFile(path, []byte("original"), 0644)

	writeIfNotExists(path, "new content")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	// Should not overwrite
	if string(data) != "original" {
		t.Errorf("content = %q, want 'original'", string(data))
	}
}

func TestDefaultConstants(t *testing.T) {
	if !strings.Contains(defaultAgentsMD, "spoonbot") {
		t.Error("defaultAgentsMD should mention spoonbot")
	}
	if !strings.Contains(defaultSoulMD, "assistant") {
		t.Error("defaultSoulMD should mention assistant")
	}
}

func TestProviderDisplay(t *testing.T) {
	if got := providerDisplay(""); got != "anthropic (default)" {
		t.Errorf("providerDisplay(\"\") = %q", got)
	}
	if got := providerDisplay("openai"); got != "openai" {
		t.Errorf("providerDisplay(openai) = %q", got)
	}
}

func TestModelDisplay(t *testing.T) {
	cfg := &config.Config{}
	if got := modelDisplay(cfg); got != "(provider default)" {
		t.Errorf("modelDisplay empty = %q", got)
	}
	cfg.Provider.Model = "claude-sonnet-4-5"
	if got := modelDisplay(cfg); got != "claude-sonnet-4-5" {
		t.Errorf("modelDisplay = %q", got)
	}
}

func TestRunOnboard(t *testing.T) {
	tmpDir := isolateHome(t)

	output, err := captureStdout(t, func() error {
		return runOnboard(&cobra.Command{}, []string{})
	})
	if err != nil {
		t.Errorf("runOnboard error: %v", err)
	}

	cfgPath := filepath.Join(tmpDir, ".spoonbot", "config.json")
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	ws := filepath.Join(tmpDir, ".spoonbot", "workspace")
	for _, p := range []string{
		filepath.Join(ws, "skills"),
		filepath.Join(ws, "memory", "MEMORY.md"),
		filepath.Join(ws, "AGENTS.md"),
		filepath.Join(ws, "SOUL.md"),
	} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			t.Errorf("%s was not created", p)
		}
	}

	if !strings.Contains(output, "Created config") && !strings.Contains(output, "Config already exists") {
		t.Errorf("unexpected output: %s", output)
	}
	if !strings.Contains(output, "Workspace ready") {
		t.Errorf("missing workspace line: %s", output)
	}
}

func TestRunOnboard_AlreadyExists(t *testing.T) {
	tmpDir := isolateHome(t)

	cfgDir := filepath.Join(tmpDir, ".spoonbot")
	os.MkdirAll(cfgDir, 0755)
	os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte("{}"), 0644)

	output, err := captureStdout(t, func() error {
		return runOnboard(&cobra.Command{}, []string{})
	})
	if err != nil {
		t.Errorf("runOnboard error: %v", err)
	}

	if !strings.Contains(output, "Config already exists") {
		t.Errorf("expected 'Config already exists', got: %s", output)
	}
}

func TestRunStatus(t *testing.T) {
	isolateHome(t)

	output, err := captureStdout(t, func() error {
		return runStatus(&cobra.Command{}, []string{})
	})
	if err != nil {
		t.Errorf("runStatus error: %v", err)
	}

	for _, want := range []string{"Config:", "API Key: not set", "CLI: enabled=", "Telegram: enabled=", "Heartbeat: enabled="} {
		if !strings.Contains(output, want) {
			t.Errorf("missing %q in output: %s", want, output)
		}
	}
}

func TestRunStatus_WithAPIKey(t *testing.T) {
	isolateHome(t)
	t.Setenv("SPOONBOT_API_KEY", "sk-ant-test-key-12345678")

	output, err := captureStdout(t, func() error {
		return runStatus(&cobra.Command{}, []string{})
	})
	if err != nil {
		t.Errorf("runStatus error: %v", err)
	}

	if !strings.Contains(output, "sk-a...") {
		t.Errorf("API key should be masked in output: %s", output)
	}
	if strings.Contains(output, "sk-ant-test-key-12345678") {
		t.Errorf("API key should not appear in full: %s", output)
	}
}

func TestRunStatus_WithShortAPIKey(t *testing.T) {
	isolateHome(t)
	t.Setenv("SPOONBOT_API_KEY", "short")

	output, err := captureStdout(t, func() error {
		return runStatus(&cobra.Command{}, []string{})
	})
	if err != nil {
		t.Errorf("runStatus error: %v", err)
	}

	if !strings.Contains(output, "API Key: set") {
		t.Errorf("short API key should show 'set': %s", output)
	}
}

func TestRunStatus_WorkspaceNotFound(t *testing.T) {
	tmpDir := isolateHome(t)

	cfgDir := filepath.Join(tmpDir, ".spoonbot")
	os.MkdirAll(cfgDir, 0755)
	os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte(`{"agent":{"workspace":"/nonexistent"}}`), 0644)

	output, err := captureStdout(t, func() error {
		return runStatus(&cobra.Command{}, []string{})
	})
	if err != nil {
		t.Errorf("runStatus error: %v", err)
	}

	if !strings.Contains(output, "not found") {
		t.Errorf("expected 'not found' in output: %s", output)
	}
}

func TestRunStatus_WithWorkspace(t *testing.T) {
	tmpDir := isolateHome(t)

	ws := filepath.Join(tmpDir, ".spoonbot", "workspace")
	os.MkdirAll(ws, 0755)

	output, err := captureStdout(t, func() error {
		return runStatus(&cobra.Command{}, []string{})
	})
	if err != nil {
		t.Errorf("runStatus error: %v", err)
	}

	if !strings.Contains(output, "Long-term memory") && !strings.Contains(output, "Memory is empty") {
		t.Errorf("missing memory summary in output: %s", output)
	}
}

func TestInit(t *testing.T) {
	if rootCmd == nil {
		t.Error("rootCmd should not be nil")
	}
	if agentCmd == nil {
		t.Error("agentCmd should not be nil")
	}
	if gatewayCmd == nil {
		t.Error("gatewayCmd should not be nil")
	}
	if onboardCmd == nil {
		t.Error("onboardCmd should not be nil")
	}
	if statusCmd == nil {
		t.Error("statusCmd should not be nil")
	}
	if versionCmd == nil {
		t.Error("versionCmd should not be nil")
	}

	if agentCmd.Flags().Lookup("message") == nil {
		t.Error("message flag should exist")
	}
	if agentCmd.Flags().Lookup("workspace") == nil {
		t.Error("workspace flag should exist")
	}
}

func TestRunAgent_NoAPIKey(t *testing.T) {
	isolateHome(t)

	err := runAgent(&cobra.Command{}, []string{})
	if err == nil {
		t.Error("expected error when API key is not set")
	}
	if !strings.Contains(err.Error(), "API key not set") {
		t.Errorf("error should mention API key: %v", err)
	}
}

func TestRunGateway_NoAPIKey(t *testing.T) {
	isolateHome(t)

	err := runGateway(&cobra.Command{}, []string{})
	if err == nil {
		t.Error("expected error when API key is not set")
	}
	if !strings.Contains(err.Error(), "API key not set") {
		t.Errorf("error should mention API key: %v", err)
	}
}

// mockRunner implements agentRunner for testing
type mockRunner struct {
	response string
	err      error
	shutdown bool
	cleared  bool
	tools    []string
	history  int
	lastCfg  *config.Config
}

func (m *mockRunner) ProcessOnce(ctx context.Context, content string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockRunner) ToolNames() []string  { return m.tools }
func (m *mockRunner) SkillCount() int      { return 0 }
func (m *mockRunner) ConversationLen() int { return m.history }
func (m *mockRunner) ClearConversation()   { m.cleared = true }
func (m *mockRunner) Shutdown() error      { m.shutdown = true; return nil }

func mockRunnerFactory(m *mockRunner) RunnerFactory {
	return func(cfg *config.Config) (agentRunner, error) {
		m.lastCfg = cfg
		return m, nil
	}
}

func setMessageFlag(t *testing.T, v string) {
	t.Helper()
	old := messageFlag
	messageFlag = v
	t.Cleanup(func() { messageFlag = old })
}

func TestRunAgentWithOptions_SingleMessage(t *testing.T) {
	isolateHome(t)
	setMessageFlag(t, "test message")

	m := &mockRunner{response: "Hello from mock!"}
	var stdout bytes.Buffer

	err := runAgentWithOptions(AgentOptions{
		Factory: mockRunnerFactory(m),
		Stdout:  &stdout,
	})
	if err != nil {
		t.Errorf("runAgentWithOptions error: %v", err)
	}

	if !strings.Contains(stdout.String(), "Hello from mock!") {
		t.Errorf("expected 'Hello from mock!' in output, got: %s", stdout.String())
	}
	if !m.shutdown {
		t.Error("runner should be shut down")
	}
}

func TestRunAgentWithOptions_SingleMessage_Error(t *testing.T) {
	isolateHome(t)
	setMessageFlag(t, "test")

	m := &mockRunner{err: context.DeadlineExceeded}

	err := runAgentWithOptions(AgentOptions{
		Factory: mockRunnerFactory(m),
		Stdout:  &bytes.Buffer{},
	})
	if err == nil {
		t.Error("expected error")
	}
	if !strings.Contains(err.Error(), "agent error") {
		t.Errorf("expected 'agent error', got: %v", err)
	}
}

func TestRunAgentWithOptions_REPLMode(t *testing.T) {
	isolateHome(t)
	setMessageFlag(t, "")

	m := &mockRunner{response: "REPL response"}
	stdin := strings.NewReader("hello\nexit\n")
	var stdout, stderr bytes.Buffer

	err := runAgentWithOptions(AgentOptions{
		Factory: mockRunnerFactory(m),
		Stdin:   stdin,
		Stdout:  &stdout,
		Stderr:  &stderr,
	})
	if err != nil {
		t.Errorf("runAgentWithOptions error: %v", err)
	}

	if !strings.Contains(stdout.String(), "spoonbot agent") {
		t.Errorf("expected REPL welcome message, got: %s", stdout.String())
	}
	if !strings.Contains(stdout.String(), "REPL response") {
		t.Errorf("expected 'REPL response' in output, got: %s", stdout.String())
	}
}

func TestRunAgentWithOptions_REPLMode_EmptyInput(t *testing.T) {
	isolateHome(t)
	setMessageFlag(t, "")

	m := &mockRunner{response: "response"}
	stdin := strings.NewReader("\n\nhello\nquit\n")

	err := runAgentWithOptions(AgentOptions{
		Factory: mockRunnerFactory(m),
		Stdin:   stdin,
		Stdout:  &bytes.Buffer{},
	})
	if err != nil {
		t.Errorf("error: %v", err)
	}
}

func TestRunAgentWithOptions_REPLMode_Error(t *testing.T) {
	isolateHome(t)
	setMessageFlag(t, "")

	m := &mockRunner{err: context.DeadlineExceeded}
	stdin := strings.NewReader("hello\nexit\n")
	var stdout, stderr bytes.Buffer

	err := runAgentWithOptions(AgentOptions{
		Factory: mockRunnerFactory(m),
		Stdin:   stdin,
		Stdout:  &stdout,
		Stderr:  &stderr,
	})
	if err != nil {
		t.Errorf("error: %v", err)
	}

	if !strings.Contains(stderr.String(), "Error:") {
		t.Errorf("expected error in stderr, got: %s", stderr.String())
	}
}

func TestRunAgentWithOptions_REPLCommands(t *testing.T) {
	isolateHome(t)
	setMessageFlag(t, "")

	m := &mockRunner{
		response: "should not appear",
		tools:    []string{"shell", "read_file"},
		history:  4,
	}
	stdin := strings.NewReader("/help\n/status\n/tools\n/clear\nexit\n")
	var stdout bytes.Buffer

	err := runAgentWithOptions(AgentOptions{
		Factory: mockRunnerFactory(m),
		Stdin:   stdin,
		Stdout:  &stdout,
	})
	if err != nil {
		t.Errorf("error: %v", err)
	}

	out := stdout.String()
	for _, want := range []string{
		"/clear, /reset",
		"Model:",
		"History: 4 messages",
		"Available tools (2):",
		"1. shell",
		"Conversation history cleared.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output: %s", want, out)
		}
	}
	if !m.cleared {
		t.Error("/clear should clear the conversation")
	}
	if strings.Contains(out, "should not appear") {
		t.Error("slash commands must not reach the agent")
	}
}

func TestRunAgentWithOptions_WorkspaceFlag(t *testing.T) {
	isolateHome(t)
	setMessageFlag(t, "hi")

	override := t.TempDir()
	oldWS := workspaceFlag
	workspaceFlag = override
	t.Cleanup(func() { workspaceFlag = oldWS })

	m := &mockRunner{response: "ok"}
	err := runAgentWithOptions(AgentOptions{
		Factory: mockRunnerFactory(m),
		Stdout:  &bytes.Buffer{},
	})
	if err != nil {
		t.Errorf("error: %v", err)
	}

	if m.lastCfg == nil || m.lastCfg.Agent.Workspace != override {
		t.Errorf("workspace flag not applied, got %+v", m.lastCfg)
	}
}

func TestDefaultRunnerFactory_NoAPIKey(t *testing.T) {
	cfg := &config.Config{
		Provider: config.ProviderConfig{
			APIKey: "",
		},
	}

	_, err := DefaultRunnerFactory(cfg)
	if err == nil {
		t.Error("expected error when API key is not set")
	}
	if !strings.Contains(err.Error(), "API key not set") {
		t.Errorf("error should mention API key: %v", err)
	}
}
