// Package app wires the assistant together: config, model provider, tool
// registry, security validators, sessions, memory, skills, heartbeat, MCP
// providers and chat channels, all talking through the message bus.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spoonos-ai/spoonbot/internal/bus"
	"github.com/spoonos-ai/spoonbot/internal/channel"
	"github.com/spoonos-ai/spoonbot/internal/config"
	"github.com/spoonos-ai/spoonbot/internal/heartbeat"
	"github.com/spoonos-ai/spoonbot/internal/memory"
	"github.com/spoonos-ai/spoonbot/internal/prompt"
	"github.com/spoonos-ai/spoonbot/internal/session"
	"github.com/spoonos-ai/spoonbot/internal/skills"
	"github.com/spoonos-ai/spoonbot/internal/telemetry"
	"github.com/spoonos-ai/spoonbot/pkg/agent"
	"github.com/spoonos-ai/spoonbot/pkg/mcp"
	"github.com/spoonos-ai/spoonbot/pkg/message"
	"github.com/spoonos-ai/spoonbot/pkg/model"
	"github.com/spoonos-ai/spoonbot/pkg/security"
	"github.com/spoonos-ai/spoonbot/pkg/tool"
	toolbuiltin "github.com/spoonos-ai/spoonbot/pkg/tool/builtin"
)

const (
	// cliSessionKey is the conversation shared by the CLI channel and the
	// one-shot/REPL command, so both modes continue the same history.
	cliSessionKey = "cli:default"

	// heartbeatHistoryLimit caps the in-memory heartbeat conversation so
	// long-running instances do not accumulate unbounded context.
	heartbeatHistoryLimit = 40

	errorReply = "Sorry, I encountered an error processing your message."
)

// ModelFactory builds the chat model the agent talks to. Tests swap in a
// scripted model here.
type ModelFactory func(cfg *config.Config) (model.Model, error)

// Options carries optional overrides for NewWithOptions.
type Options struct {
	ModelFactory ModelFactory
	// SignalChan overrides the OS signal subscription in Run.
	SignalChan chan os.Signal
}

// App owns every long-lived subsystem of the assistant.
type App struct {
	cfg      *config.Config
	bus      *bus.MessageBus
	tracer   telemetry.Tracer
	registry *tool.Registry
	agent    *agent.Agent
	sessions *session.Manager
	memory   *memory.Store
	skills   *skills.Manager
	prompts  *prompt.Builder
	hb       *heartbeat.Service
	hbLog    *message.History
	mcp      *mcp.Client
	channels *channel.Manager

	signalCh chan os.Signal

	// runMu serializes agent turns: sessions and the prompt builder are
	// shared between channels and the heartbeat.
	runMu sync.Mutex
}

// DefaultModelFactory builds the provider named in the config. The returned
// model resolves its API client lazily on the first call.
func DefaultModelFactory(cfg *config.Config) (model.Model, error) {
	var provider model.Provider
	switch cfg.Provider.Type {
	case "", "anthropic":
		provider = &model.AnthropicProvider{
			APIKey:    cfg.Provider.APIKey,
			BaseURL:   cfg.Provider.BaseURL,
			ModelName: cfg.Provider.Model,
			MaxTokens: cfg.Provider.MaxTokens,
		}
	case "openai":
		provider = &model.OpenAIProvider{
			APIKey:    cfg.Provider.APIKey,
			BaseURL:   cfg.Provider.BaseURL,
			ModelName: cfg.Provider.Model,
			MaxTokens: cfg.Provider.MaxTokens,
		}
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Provider.Type)
	}
	return &providerModel{provider: provider}, nil
}

// providerModel defers client construction to the first chat call, so New
// needs neither a context nor network access.
type providerModel struct {
	provider model.Provider
}

func (p *providerModel) Chat(ctx context.Context, req *model.Request) (*model.Response, error) {
	mdl, err := p.provider.Model(ctx)
	if err != nil {
		return nil, err
	}
	return mdl.Chat(ctx, req)
}

// New builds the app from config with default options.
func New(cfg *config.Config) (*App, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions builds the app, allowing tests to inject a model factory
// and a signal channel.
func NewWithOptions(cfg *config.Config, opts Options) (*App, error) {
	tracer, err := telemetry.NewTracer(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	factory := opts.ModelFactory
	if factory == nil {
		factory = DefaultModelFactory
	}
	mdl, err := factory(cfg)
	if err != nil {
		return nil, err
	}
	mdl = telemetry.WrapModel(tracer, mdl, cfg.Provider.Model)

	store, err := memory.NewStore(cfg.Agent.Workspace)
	if err != nil {
		return nil, fmt.Errorf("init memory: %w", err)
	}

	sessions, err := session.NewManager(cfg.Agent.Workspace)
	if err != nil {
		return nil, fmt.Errorf("init sessions: %w", err)
	}

	skillMgr := skills.NewManager(filepath.Join(cfg.Agent.Workspace, "skills"))
	if err := skillMgr.Reload(); err != nil {
		log.Printf("[app] load skills: %v", err)
	}

	prompts := prompt.NewBuilder(cfg.Agent.Workspace)
	prompts.SetMemoryContext(store.Context())
	prompts.SetSkillsSummary(skillMgr.Summary())

	pathVal := security.NewPathValidator(cfg.Agent.Workspace)
	pathVal.AllowOutsideWorkspace(!cfg.Agent.RestrictToWorkspace)
	cmdVal := security.NewCommandValidator()

	shell := toolbuiltin.NewShellTool(cmdVal, cfg.Agent.Workspace)
	shell.SetTimeout(time.Duration(cfg.Agent.ShellTimeout) * time.Second)
	shell.SetMaxOutput(cfg.Agent.MaxOutput)

	registry := tool.NewRegistry()
	builtins := []tool.Tool{
		shell,
		toolbuiltin.NewSpawnTool(cmdVal, cfg.Agent.Workspace),
		toolbuiltin.NewReadFileTool(pathVal),
		toolbuiltin.NewWriteFileTool(pathVal),
		toolbuiltin.NewEditFileTool(pathVal),
		toolbuiltin.NewListDirTool(pathVal),
		toolbuiltin.NewWebFetchTool(nil),
		memory.NewManagementTool(store),
	}
	for _, t := range builtins {
		if err := registry.Register(telemetry.WrapTool(tracer, t)); err != nil {
			return nil, fmt.Errorf("register tool %s: %w", t.Name(), err)
		}
	}

	mcpClient := mcp.NewClient()
	for _, pc := range cfg.MCP.Providers {
		if err := mcpClient.AddProvider(pc); err != nil {
			log.Printf("[app] mcp provider %s: %v", pc.Name, err)
		}
	}

	msgBus := bus.NewMessageBus(bus.DefaultBufSize)
	channels, err := channel.NewManager(cfg.Channels, msgBus)
	if err != nil {
		return nil, fmt.Errorf("init channels: %w", err)
	}

	a := &App{
		cfg:      cfg,
		bus:      msgBus,
		tracer:   tracer,
		registry: registry,
		agent: agent.New(mdl, registry, agent.Options{
			MaxIterations: cfg.Agent.MaxIterations,
			MaxTokens:     cfg.Provider.MaxTokens,
		}),
		sessions: sessions,
		memory:   store,
		skills:   skillMgr,
		prompts:  prompts,
		hb:       heartbeat.NewService(cfg.Agent.Workspace, cfg.Heartbeat.Schedule),
		hbLog:    message.NewHistory(),
		mcp:      mcpClient,
		channels: channels,
		signalCh: opts.SignalChan,
	}

	a.hb.SetHandler(a.runHeartbeat)

	return a, nil
}

// Run starts every subsystem and blocks until SIGINT/SIGTERM or a CLI exit.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.bus.DispatchOutbound(ctx)

	if a.mcp.ConnectAll(ctx) > 0 {
		for _, rt := range a.mcp.Tools() {
			if err := a.registry.Register(telemetry.WrapTool(a.tracer, rt)); err != nil {
				log.Printf("[app] register remote tool %s: %v", rt.Name(), err)
			}
		}
	}
	for name, reason := range a.mcp.FailedProviders() {
		log.Printf("[app] mcp provider %s unavailable: %s", name, reason)
	}

	sigCh := a.signalCh
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}

	// Typing "exit" in the CLI channel shuts the whole app down.
	if ch, ok := a.channels.Get("cli"); ok {
		if cli, ok := ch.(*channel.CLIChannel); ok {
			cli.SetOnExit(func() {
				select {
				case sigCh <- syscall.SIGTERM:
				default:
				}
			})
		}
	}

	if err := a.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	log.Printf("[app] channels started: %v", a.channels.Names())

	if a.cfg.Heartbeat.Enabled {
		if err := a.hb.Start(ctx); err != nil {
			log.Printf("[app] heartbeat error: %v", err)
		}
	}

	if err := a.skills.Watch(func([]skills.Skill) {
		a.prompts.SetSkillsSummary(a.skills.Summary())
	}); err != nil {
		log.Printf("[app] skills watch: %v", err)
	}

	go a.processLoop(ctx)

	<-sigCh
	log.Printf("[app] shutting down...")
	return a.Shutdown()
}

// Shutdown stops services in reverse dependency order. Safe to call after a
// failed Run.
func (a *App) Shutdown() error {
	a.hb.Stop()
	if err := a.skills.Close(); err != nil {
		log.Printf("[app] close skills watcher: %v", err)
	}
	if err := a.channels.StopAll(); err != nil {
		log.Printf("[app] stop channels: %v", err)
	}
	a.mcp.DisconnectAll()
	if err := a.tracer.Shutdown(); err != nil {
		log.Printf("[app] tracer shutdown: %v", err)
	}
	log.Printf("[app] shutdown complete")
	return nil
}

// processLoop consumes inbound messages one at a time and publishes agent
// replies on the outbound queue.
func (a *App) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-a.bus.Inbound:
			log.Printf("[app] inbound from %s/%s: %s", msg.Channel, msg.SenderID, truncate(msg.Content, 80))

			span := a.tracer.StartSessionSpan(msg.SessionKey(), msg.ID)
			result, err := a.runAgent(telemetry.ContextWithSpan(ctx, span), msg.SessionKey(), msg.Content)
			a.tracer.EndSpan(span, map[string]any{
				"channel":        msg.Channel,
				"response.chars": len(result),
			}, err)

			if err != nil {
				log.Printf("[app] agent error: %v", err)
				result = errorReply
			}
			if result != "" {
				a.bus.Outbound <- bus.NewOutboundMessage(msg, result)
			}
		case <-ctx.Done():
			return
		}
	}
}

// runAgent executes one conversation turn: refresh the prompt contexts, call
// the agent with the session history, then persist the exchange.
func (a *App) runAgent(ctx context.Context, sessionKey, content string) (string, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	sess := a.sessions.GetOrCreate(sessionKey)

	a.prompts.SetMemoryContext(a.memory.Context())
	a.prompts.SetSkillContext(a.skillContext(content))

	reply, err := a.agent.Process(ctx, a.prompts.System(), sess.History(), content)
	if err != nil {
		return "", err
	}

	sess.AddMessage(message.RoleUser, content)
	if reply != "" {
		sess.AddMessage(message.RoleAssistant, reply)
	}
	if err := a.sessions.Save(sess); err != nil {
		log.Printf("[app] save session %s: %v", sessionKey, err)
	}
	return reply, nil
}

// runHeartbeat executes one autonomous turn against an ephemeral in-memory
// history, so scheduled runs never land in the persisted user sessions.
func (a *App) runHeartbeat(ctx context.Context, task string) (string, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	if a.hbLog.Len() >= heartbeatHistoryLimit {
		a.hbLog.Reset()
	}

	a.prompts.SetMemoryContext(a.memory.Context())
	a.prompts.SetSkillContext(a.skillContext(task))

	reply, err := a.agent.Process(ctx, a.prompts.System(), a.hbLog.All(), task)
	if err != nil {
		return "", err
	}
	a.hbLog.Append(message.NewUserMessage(task))
	if reply != "" {
		a.hbLog.Append(message.NewAssistantMessage(reply, nil))
	}
	return reply, nil
}

// skillContext renders the full instructions of every skill whose keywords
// match the message.
func (a *App) skillContext(content string) string {
	matched := a.skills.Match(content)
	if len(matched) == 0 {
		return ""
	}
	var b strings.Builder
	for i, sk := range matched {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## Skill: %s\n\n%s", sk.Name, sk.Instructions)
	}
	return b.String()
}

// ProcessOnce runs a single agent turn against the CLI conversation without
// starting any channels.
func (a *App) ProcessOnce(ctx context.Context, content string) (string, error) {
	return a.runAgent(ctx, cliSessionKey, content)
}

// ToolNames lists the registered tools, sorted.
func (a *App) ToolNames() []string { return a.registry.Names() }

// SkillCount reports how many skills are loaded.
func (a *App) SkillCount() int { return len(a.skills.Skills()) }

// ConversationLen reports how many messages the CLI conversation holds.
func (a *App) ConversationLen() int {
	return a.sessions.GetOrCreate(cliSessionKey).Len()
}

// ClearConversation drops the CLI conversation history.
func (a *App) ClearConversation() {
	a.sessions.Delete(cliSessionKey)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
