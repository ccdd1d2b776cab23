// Package mcp connects to external tool providers speaking the Model Context
// Protocol and surfaces their tools through the local registry. Subprocess
// providers are spoken to over a line-delimited JSON-RPC pipe; http-stream and
// sse providers over plain HTTP.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spoonos-ai/spoonbot/pkg/tool"
)

// connectRetryDelay spaces repeated connect attempts for network providers.
var connectRetryDelay = 200 * time.Millisecond

// Client manages provider configurations, their connections, and the tools
// discovered from them. All methods are safe for concurrent use.
type Client struct {
	mu        sync.RWMutex
	providers map[string]ProviderConfig
	conns     map[string]*subprocessConn
	connected map[string]bool
	failed    map[string]string
	tools     map[string]*RemoteTool

	httpc *http.Client
}

// NewClient creates a client with no providers configured.
func NewClient() *Client {
	return &Client{
		providers: make(map[string]ProviderConfig),
		conns:     make(map[string]*subprocessConn),
		connected: make(map[string]bool),
		failed:    make(map[string]string),
		tools:     make(map[string]*RemoteTool),
		httpc:     &http.Client{},
	}
}

// AddProvider validates and records a provider configuration. Adding a name
// that already exists replaces the stored config; an existing connection is
// untouched until the next Connect.
func (c *Client) AddProvider(cfg ProviderConfig) error {
	cfg = cfg.normalized()
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.providers[cfg.Name] = cfg
	c.mu.Unlock()
	log.Printf("[mcp] added provider config: %s (%s)", cfg.Name, cfg.Transport)
	return nil
}

// Connect dials one provider and discovers its tools, replacing any previous
// set. It reports success; failures are logged and recorded, never returned.
func (c *Client) Connect(ctx context.Context, name string) bool {
	c.mu.RLock()
	cfg, known := c.providers[name]
	alreadyConnected := c.connected[name]
	c.mu.RUnlock()

	if !known {
		log.Printf("[mcp] unknown provider: %s", name)
		return false
	}
	if alreadyConnected {
		c.Disconnect(name)
	}

	var err error
	switch cfg.Transport {
	case TransportSubprocess:
		err = c.connectSubprocess(ctx, cfg)
	case TransportHTTPStream, TransportSSE:
		err = c.connectHTTP(ctx, cfg)
	default:
		err = fmt.Errorf("unknown transport %s", cfg.Transport)
	}
	if err != nil {
		c.mu.Lock()
		c.failed[name] = err.Error()
		c.mu.Unlock()
		log.Printf("[mcp] connect %s failed: %v", name, err)
		return false
	}

	c.mu.Lock()
	c.connected[name] = true
	delete(c.failed, name)
	c.mu.Unlock()
	log.Printf("[mcp] connected to %s (%s)", name, cfg.Transport)
	return true
}

// ConnectAll connects every configured provider in name order and returns how
// many succeeded.
func (c *Client) ConnectAll(ctx context.Context) int {
	c.mu.RLock()
	names := make([]string, 0, len(c.providers))
	for name := range c.providers {
		names = append(names, name)
	}
	c.mu.RUnlock()
	sort.Strings(names)

	connected := 0
	for _, name := range names {
		if c.Connect(ctx, name) {
			connected++
		}
	}
	return connected
}

func (c *Client) connectSubprocess(ctx context.Context, cfg ProviderConfig) error {
	conn, err := startSubprocess(cfg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conns[cfg.Name] = conn
	c.mu.Unlock()

	// Discovery failure does not fail the connect: the provider is up, it
	// just offered nothing we could read.
	line, err := conn.request(ctx, "tools/list", map[string]any{}, cfg.timeout())
	if err != nil {
		log.Printf("[mcp] %s: tools/list failed: %v", cfg.Name, err)
		return nil
	}
	var resp rpcResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		log.Printf("[mcp] %s: bad tools/list response: %v", cfg.Name, err)
		return nil
	}
	if !notNull(resp.Result) {
		if notNull(resp.Error) {
			log.Printf("[mcp] %s: tools/list error: %s", cfg.Name, stringifyJSON(resp.Error))
		}
		return nil
	}
	descs, err := decodeToolList(resp.Result)
	if err != nil {
		log.Printf("[mcp] %s: %v", cfg.Name, err)
		return nil
	}
	c.recordTools(cfg.Name, descs)
	return nil
}

func (c *Client) connectHTTP(ctx context.Context, cfg ProviderConfig) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.retries(); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(connectRetryDelay):
			}
		}
		descs, err := c.fetchToolList(ctx, cfg)
		if err == nil {
			c.recordTools(cfg.Name, descs)
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (c *Client) fetchToolList(ctx context.Context, cfg ProviderConfig) ([]toolDescriptor, error) {
	reqCtx, cancel := context.WithTimeout(ctx, cfg.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, cfg.URL+"/tools", nil)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list tools: HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLineBytes))
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	return decodeToolList(body)
}

// recordTools replaces the provider's tool set with the discovered one.
// Entries without a name cannot be addressed and are dropped.
func (c *Client) recordTools(provider string, descs []toolDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeToolsLocked(provider)
	for _, d := range descs {
		if d.Name == "" {
			log.Printf("[mcp] %s: skipping tool with empty name", provider)
			continue
		}
		rt := newRemoteTool(c, provider, d)
		c.tools[rt.Name()] = rt
	}
}

func (c *Client) removeToolsLocked(provider string) {
	prefix := provider + ":"
	for key := range c.tools {
		if strings.HasPrefix(key, prefix) {
			delete(c.tools, key)
		}
	}
}

// CallTool invokes one remote tool and always returns conversation text.
// Providers that dropped out are dialed again before giving up.
func (c *Client) CallTool(ctx context.Context, provider, toolName string, args map[string]any) string {
	c.mu.RLock()
	cfg, known := c.providers[provider]
	connected := c.connected[provider]
	c.mu.RUnlock()

	if !known {
		return fmt.Sprintf("Error: Not connected to MCP server %s", provider)
	}
	if !connected && !c.Connect(ctx, provider) {
		return fmt.Sprintf("Error: Not connected to MCP server %s", provider)
	}
	if args == nil {
		args = map[string]any{}
	}

	switch cfg.Transport {
	case TransportSubprocess:
		return c.callSubprocess(ctx, cfg, toolName, args)
	case TransportHTTPStream, TransportSSE:
		return c.callHTTP(ctx, cfg, toolName, args)
	}
	return fmt.Sprintf("Error: Unknown transport %s", cfg.Transport)
}

func (c *Client) callSubprocess(ctx context.Context, cfg ProviderConfig, toolName string, args map[string]any) string {
	c.mu.RLock()
	conn := c.conns[cfg.Name]
	c.mu.RUnlock()
	if conn == nil {
		return fmt.Sprintf("Error: No process for server %s", cfg.Name)
	}

	line, err := conn.request(ctx, "tools/call", callParams{Name: toolName, Arguments: args}, cfg.timeout())
	if err != nil {
		switch {
		case errors.Is(err, errNoResponse):
			return "No response from MCP server"
		case errors.Is(err, errResponseTimeout):
			return "Error: Timeout waiting for response"
		default:
			return fmt.Sprintf("Error: %s", err)
		}
	}
	return renderRPCResult(line)
}

func (c *Client) callHTTP(ctx context.Context, cfg ProviderConfig, toolName string, args map[string]any) string {
	body, err := json.Marshal(callParams{Name: toolName, Arguments: args})
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, cfg.timeout())
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, cfg.URL+"/tools/call", bytes.NewReader(body))
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "Error: Timeout waiting for response"
		}
		return fmt.Sprintf("Error: %s", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("Error: HTTP %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxLineBytes))
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	return renderHTTPResult(raw)
}

// Disconnect tears down one provider connection and forgets its tools. The
// configuration stays, so the provider can be dialed again later.
func (c *Client) Disconnect(name string) {
	c.mu.Lock()
	conn := c.conns[name]
	wasConnected := c.connected[name] || conn != nil
	delete(c.conns, name)
	delete(c.connected, name)
	c.removeToolsLocked(name)
	c.mu.Unlock()

	if conn != nil {
		conn.shutdown()
	}
	if wasConnected {
		log.Printf("[mcp] disconnected from %s", name)
	}
}

// DisconnectAll tears down every live provider connection.
func (c *Client) DisconnectAll() {
	c.mu.RLock()
	names := make([]string, 0, len(c.connected))
	for name := range c.connected {
		names = append(names, name)
	}
	c.mu.RUnlock()

	for _, name := range names {
		c.Disconnect(name)
	}
}

// Connected reports whether the named provider has a live connection.
func (c *Client) Connected(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected[name]
}

// FailedProviders returns the most recent connect failure per provider.
// Entries clear when the provider connects.
func (c *Client) FailedProviders() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.failed))
	for name, reason := range c.failed {
		out[name] = reason
	}
	return out
}

// Tools returns every discovered tool ordered by full name.
func (c *Client) Tools() []*RemoteTool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*RemoteTool, 0, len(c.tools))
	for _, rt := range c.tools {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// RegisterTools publishes every discovered tool into the registry under its
// provider-prefixed name.
func (c *Client) RegisterTools(reg *tool.Registry) {
	for _, rt := range c.Tools() {
		if err := reg.Register(rt); err != nil {
			log.Printf("[mcp] register %s: %v", rt.Name(), err)
		}
	}
}
