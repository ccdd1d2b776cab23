package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spoonos-ai/spoonbot/pkg/mcp"
)

const (
	DefaultMaxIterations     = 20
	DefaultShellTimeout      = 60
	DefaultMaxOutput         = 10000
	DefaultMaxTokens         = 4096
	DefaultHeartbeatSchedule = "@every 30m"

	maxIterationsLimit = 100
	shellTimeoutLimit  = 3600
	minOutputLimit     = 100
	maxOutputLimit     = 1000000
)

type Config struct {
	Agent     AgentConfig     `json:"agent"`
	Provider  ProviderConfig  `json:"provider"`
	Channels  ChannelsConfig  `json:"channels"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
	MCP       MCPConfig       `json:"mcp"`
	Telemetry TelemetryConfig `json:"telemetry"`
}

type AgentConfig struct {
	Workspace           string `json:"workspace"`
	MaxIterations       int    `json:"maxIterations"`
	ShellTimeout        int    `json:"shellTimeout"` // seconds
	MaxOutput           int    `json:"maxOutput"`    // characters kept from tool output
	RestrictToWorkspace bool   `json:"restrictToWorkspace"`
}

type ProviderConfig struct {
	Type      string `json:"type,omitempty"` // "anthropic" (default) or "openai"
	APIKey    string `json:"apiKey"`
	Model     string `json:"model,omitempty"`
	BaseURL   string `json:"baseUrl,omitempty"`
	MaxTokens int    `json:"maxTokens,omitempty"`
}

type ChannelsConfig struct {
	CLI      CLIConfig      `json:"cli"`
	Telegram TelegramConfig `json:"telegram"`
}

type CLIConfig struct {
	Enabled bool `json:"enabled"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
}

type HeartbeatConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"` // cron spec, e.g. "@every 30m"
}

type MCPConfig struct {
	Providers []mcp.ProviderConfig `json:"providers,omitempty"`
}

type TelemetryConfig struct {
	Enabled     bool    `json:"enabled"`
	Endpoint    string  `json:"endpoint,omitempty"` // OTLP HTTP endpoint
	ServiceName string  `json:"serviceName,omitempty"`
	SampleRate  float64 `json:"sampleRate,omitempty"` // 0..1, default 1
	Insecure    bool    `json:"insecure,omitempty"`
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Agent: AgentConfig{
			Workspace:           filepath.Join(home, ".spoonbot", "workspace"),
			MaxIterations:       DefaultMaxIterations,
			ShellTimeout:        DefaultShellTimeout,
			MaxOutput:           DefaultMaxOutput,
			RestrictToWorkspace: true,
		},
		Provider: ProviderConfig{
			MaxTokens: DefaultMaxTokens,
		},
		Channels: ChannelsConfig{
			CLI: CLIConfig{Enabled: true},
		},
		Heartbeat: HeartbeatConfig{
			Enabled:  true,
			Schedule: DefaultHeartbeatSchedule,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".spoonbot")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	applyBounds(cfg)

	return cfg, nil
}

// Environment variable overrides
func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("SPOONBOT_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_AUTH_TOKEN"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
		if cfg.Provider.Type == "" {
			cfg.Provider.Type = "openai"
		}
	}
	if url := os.Getenv("SPOONBOT_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if url := os.Getenv("ANTHROPIC_BASE_URL"); url != "" && cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = url
	}
	if model := os.Getenv("SPOONBOT_MODEL"); model != "" {
		cfg.Provider.Model = model
	}
	if ws := os.Getenv("SPOONBOT_WORKSPACE"); ws != "" {
		cfg.Agent.Workspace = ws
	}
	if token := os.Getenv("SPOONBOT_TELEGRAM_TOKEN"); token != "" {
		cfg.Channels.Telegram.Token = token
	}
}

// applyBounds pulls out-of-range values back to the defaults. Zero means
// unset and lands the same way.
func applyBounds(cfg *Config) {
	if cfg.Agent.Workspace == "" {
		cfg.Agent.Workspace = DefaultConfig().Agent.Workspace
	}
	if cfg.Agent.MaxIterations < 1 || cfg.Agent.MaxIterations > maxIterationsLimit {
		cfg.Agent.MaxIterations = DefaultMaxIterations
	}
	if cfg.Agent.ShellTimeout < 1 || cfg.Agent.ShellTimeout > shellTimeoutLimit {
		cfg.Agent.ShellTimeout = DefaultShellTimeout
	}
	if cfg.Agent.MaxOutput < minOutputLimit || cfg.Agent.MaxOutput > maxOutputLimit {
		cfg.Agent.MaxOutput = DefaultMaxOutput
	}
	if cfg.Provider.MaxTokens <= 0 {
		cfg.Provider.MaxTokens = DefaultMaxTokens
	}
	if cfg.Heartbeat.Schedule == "" {
		cfg.Heartbeat.Schedule = DefaultHeartbeatSchedule
	}
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
