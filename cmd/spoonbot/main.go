package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spoonos-ai/spoonbot/internal/app"
	"github.com/spoonos-ai/spoonbot/internal/config"
	"github.com/spoonos-ai/spoonbot/internal/memory"
)

const appVersion = "0.1.0"

// agentRunner is the slice of app behavior the agent command drives
// directly (allows mocking in tests).
type agentRunner interface {
	ProcessOnce(ctx context.Context, content string) (string, error)
	ToolNames() []string
	SkillCount() int
	ConversationLen() int
	ClearConversation()
	Shutdown() error
}

// RunnerFactory creates an agentRunner instance.
type RunnerFactory func(cfg *config.Config) (agentRunner, error)

// DefaultRunnerFactory builds the full app.
func DefaultRunnerFactory(cfg *config.Config) (agentRunner, error) {
	if cfg.Provider.APIKey == "" {
		return nil, fmt.Errorf("API key not set. Run 'spoonbot onboard' or set SPOONBOT_API_KEY / ANTHROPIC_API_KEY")
	}
	return app.New(cfg)
}

// AgentOptions carries injectable dependencies for the agent command.
type AgentOptions struct {
	Factory RunnerFactory
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
}

var rootCmd = &cobra.Command{
	Use:   "spoonbot",
	Short: "spoonbot - local-first AI agent with native OS tools",
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run agent in single message or REPL mode",
	RunE:  runAgent,
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the full gateway (channels + heartbeat + MCP)",
	RunE:  runGateway,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and workspace",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show spoonbot status",
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show spoonbot version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("spoonbot version " + appVersion)
	},
}

var (
	messageFlag   string
	modelFlag     string
	workspaceFlag string
)

func init() {
	agentCmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Single message to send")
	agentCmd.Flags().StringVar(&modelFlag, "model", "", "Override the configured model")
	agentCmd.Flags().StringVarP(&workspaceFlag, "workspace", "w", "", "Override the workspace directory")
	rootCmd.AddCommand(agentCmd, gatewayCmd, onboardCmd, statusCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runAgent is the command handler that uses default options
func runAgent(cmd *cobra.Command, args []string) error {
	return runAgentWithOptions(AgentOptions{})
}

// runAgentWithOptions runs the agent with injectable dependencies for testing
func runAgentWithOptions(opts AgentOptions) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if modelFlag != "" {
		cfg.Provider.Model = modelFlag
	}
	if workspaceFlag != "" {
		cfg.Agent.Workspace = workspaceFlag
	}

	factory := opts.Factory
	if factory == nil {
		factory = DefaultRunnerFactory
	}

	runner, err := factory(cfg)
	if err != nil {
		return err
	}
	defer runner.Shutdown()

	stdin := opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	ctx := context.Background()

	// Single message mode
	if messageFlag != "" {
		resp, err := runner.ProcessOnce(ctx, messageFlag)
		if err != nil {
			return fmt.Errorf("agent error: %w", err)
		}
		fmt.Fprintln(stdout, resp)
		return nil
	}

	// REPL mode
	fmt.Fprintln(stdout, "spoonbot agent (type 'exit' to quit, '/help' for commands)")
	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "exit", "quit", "/exit", "/quit":
			return nil
		case "/clear", "/reset":
			runner.ClearConversation()
			fmt.Fprintln(stdout, "Conversation history cleared.")
			continue
		case "/help":
			printREPLHelp(stdout)
			continue
		case "/status":
			printREPLStatus(stdout, cfg, runner)
			continue
		case "/tools":
			names := runner.ToolNames()
			fmt.Fprintf(stdout, "Available tools (%d):\n", len(names))
			for i, name := range names {
				fmt.Fprintf(stdout, "  %d. %s\n", i+1, name)
			}
			continue
		}

		resp, err := runner.ProcessOnce(ctx, input)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			continue
		}
		fmt.Fprintln(stdout, resp)
	}
	return nil
}

func printREPLHelp(w io.Writer) {
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  /help          Show this help message")
	fmt.Fprintln(w, "  /exit, /quit   Exit the agent")
	fmt.Fprintln(w, "  /clear, /reset Clear conversation history")
	fmt.Fprintln(w, "  /status        Show agent status")
	fmt.Fprintln(w, "  /tools         List available tools")
}

func printREPLStatus(w io.Writer, cfg *config.Config, r agentRunner) {
	fmt.Fprintf(w, "Model: %s\n", modelDisplay(cfg))
	fmt.Fprintf(w, "Tools: %d\n", len(r.ToolNames()))
	fmt.Fprintf(w, "Skills: %d\n", r.SkillCount())
	fmt.Fprintf(w, "History: %d messages\n", r.ConversationLen())
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Provider.APIKey == "" {
		return fmt.Errorf("API key not set. Run 'spoonbot onboard' or set SPOONBOT_API_KEY / ANTHROPIC_API_KEY")
	}

	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	return a.Run(context.Background())
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		data, _ := json.MarshalIndent(cfg, "", "  ")
		if err := os.WriteFile(cfgPath, data, 0644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	cfg, _ := config.LoadConfig()
	ws := cfg.Agent.Workspace
	if err := os.MkdirAll(filepath.Join(ws, "skills"), 0755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	// Seeds memory/MEMORY.md as a side effect.
	if _, err := memory.NewStore(ws); err != nil {
		return fmt.Errorf("create memory: %w", err)
	}

	writeIfNotExists(filepath.Join(ws, "AGENTS.md"), defaultAgentsMD)
	writeIfNotExists(filepath.Join(ws, "SOUL.md"), defaultSoulMD)

	fmt.Printf("Workspace ready: %s\n", ws)
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set your API key\n", cfgPath)
	fmt.Println("  2. Or set SPOONBOT_API_KEY environment variable")
	fmt.Println("  3. Run 'spoonbot agent -m \"Hello\"' to test")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Workspace: %s\n", cfg.Agent.Workspace)
	fmt.Printf("Model: %s\n", modelDisplay(cfg))
	fmt.Printf("Provider: %s\n", providerDisplay(cfg.Provider.Type))
	if cfg.Provider.APIKey != "" && len(cfg.Provider.APIKey) > 8 {
		masked := cfg.Provider.APIKey[:4] + "..." + cfg.Provider.APIKey[len(cfg.Provider.APIKey)-4:]
		fmt.Printf("API Key: %s\n", masked)
	} else if cfg.Provider.APIKey != "" {
		fmt.Println("API Key: set")
	} else {
		fmt.Println("API Key: not set")
	}
	fmt.Printf("CLI: enabled=%v\n", cfg.Channels.CLI.Enabled)
	fmt.Printf("Telegram: enabled=%v\n", cfg.Channels.Telegram.Enabled)
	fmt.Printf("Heartbeat: enabled=%v (%s)\n", cfg.Heartbeat.Enabled, cfg.Heartbeat.Schedule)
	if n := len(cfg.MCP.Providers); n > 0 {
		fmt.Printf("MCP providers: %d\n", n)
	}

	if _, err := os.Stat(cfg.Agent.Workspace); err != nil {
		fmt.Println("Workspace: not found (run 'spoonbot onboard')")
	} else if store, err := memory.NewStore(cfg.Agent.Workspace); err == nil {
		fmt.Println(store.Summary())
	}

	return nil
}

func providerDisplay(t string) string {
	if t == "" {
		return "anthropic (default)"
	}
	return t
}

func modelDisplay(cfg *config.Config) string {
	if cfg.Provider.Model != "" {
		return cfg.Provider.Model
	}
	return "(provider default)"
}

func writeIfNotExists(path, content string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		_ = os.WriteFile(path, []byte(content), 0644)
		fmt.Printf("  Created: %s\n", path)
	}
}

const defaultAgentsMD = `# spoonbot Agent

You are spoonbot, a local-first AI assistant with native OS tools.

You have access to tools for shell commands, file operations, web fetching,
and memory. Use them to help the user accomplish tasks.

## Guidelines
- Explain what you are about to do before running tools
- Ask before destructive operations (rm, overwrite)
- Prefer reading files before editing them
- Remember information the user tells you by writing to memory
`

const defaultSoulMD = `# Soul

You are a helpful local assistant focused on software development and
system tasks.

Your personality:
- Direct and efficient
- Technical when needed, simple when possible
- Concise but thorough; action over lengthy explanation
`
