package mcp

import (
	"fmt"
	"strings"
	"time"
)

// Transport names accepted by ProviderConfig.
const (
	TransportSubprocess = "subprocess"
	TransportHTTPStream = "http-stream"
	TransportSSE        = "sse"
)

const (
	DefaultTimeoutSeconds = 30
	DefaultMaxRetries     = 3

	maxTimeoutSeconds = 3600
	maxRetryLimit     = 10
)

// ProviderConfig describes how to reach one external tool provider.
type ProviderConfig struct {
	Name           string            `json:"name"`
	Transport      string            `json:"transport,omitempty"` // subprocess (default), http-stream, sse
	Command        string            `json:"command,omitempty"`   // for subprocess
	Args           []string          `json:"args,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
	URL            string            `json:"url,omitempty"` // for http-stream/sse
	TimeoutSeconds int               `json:"timeoutSeconds,omitempty"`
	// MaxRetries counts extra connect attempts for network transports.
	// nil applies DefaultMaxRetries; an explicit 0 disables retries.
	MaxRetries *int `json:"maxRetries,omitempty"`
}

// normalized returns a copy with trimmed fields and the default transport
// filled in, so configs hand-written in JSON and configs built in code
// validate the same way.
func (c ProviderConfig) normalized() ProviderConfig {
	c.Name = strings.TrimSpace(c.Name)
	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	if c.Transport == "" {
		c.Transport = TransportSubprocess
	}
	c.Command = strings.TrimSpace(c.Command)
	c.URL = strings.TrimSpace(c.URL)
	return c
}

// Validate reports the first problem that would keep the provider from being
// dialed. A zero timeout or retry count is not a problem; defaults apply.
func (c ProviderConfig) Validate() error {
	n := c.normalized()

	if n.Name == "" {
		return fmt.Errorf("mcp provider name is required")
	}
	switch n.Transport {
	case TransportSubprocess:
		if n.Command == "" {
			return fmt.Errorf("mcp provider %q: transport %s requires a command", n.Name, n.Transport)
		}
	case TransportHTTPStream, TransportSSE:
		if n.URL == "" {
			return fmt.Errorf("mcp provider %q: transport %s requires a url", n.Name, n.Transport)
		}
		if !strings.HasPrefix(n.URL, "http://") && !strings.HasPrefix(n.URL, "https://") {
			return fmt.Errorf("mcp provider %q: url must start with http:// or https://", n.Name)
		}
	default:
		return fmt.Errorf("mcp provider %q: unknown transport %q (want %s, %s, or %s)",
			n.Name, n.Transport, TransportSubprocess, TransportHTTPStream, TransportSSE)
	}
	if n.TimeoutSeconds < 0 || n.TimeoutSeconds > maxTimeoutSeconds {
		return fmt.Errorf("mcp provider %q: timeout must be between 1 and %d seconds, got %d",
			n.Name, maxTimeoutSeconds, n.TimeoutSeconds)
	}
	if n.MaxRetries != nil && (*n.MaxRetries < 0 || *n.MaxRetries > maxRetryLimit) {
		return fmt.Errorf("mcp provider %q: max retries must be between 0 and %d, got %d",
			n.Name, maxRetryLimit, *n.MaxRetries)
	}
	return nil
}

// Retries builds a MaxRetries value for configs assembled in code.
func Retries(n int) *int { return &n }

// timeout is the per-request deadline for discovery and tool calls.
func (c ProviderConfig) timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// retries is the number of extra connect attempts for network transports.
func (c ProviderConfig) retries() int {
	if c.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *c.MaxRetries
}
