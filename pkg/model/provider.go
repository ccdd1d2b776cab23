package model

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
)

// Provider gives runtime access to lazily-instantiated models.
type Provider interface {
	Model(ctx context.Context) (Model, error)
}

// ProviderFunc is an adapter to allow use of ordinary functions as providers.
type ProviderFunc func(context.Context) (Model, error)

// Model implements Provider.
func (fn ProviderFunc) Model(ctx context.Context) (Model, error) {
	if fn == nil {
		return nil, errors.New("model provider function is nil")
	}
	return fn(ctx)
}

// AnthropicProvider builds the Anthropic model on first use and caches it.
type AnthropicProvider struct {
	APIKey     string
	BaseURL    string
	ModelName  string
	MaxTokens  int
	MaxRetries int

	mu     sync.RWMutex
	cached Model
}

// Model implements Provider with caching using double-checked locking.
func (p *AnthropicProvider) Model(ctx context.Context) (Model, error) {
	// Fast path: check cache with read lock
	p.mu.RLock()
	cached := p.cached
	p.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	// Slow path: acquire write lock and double-check
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached != nil {
		return p.cached, nil
	}

	mdl, err := NewAnthropic(AnthropicConfig{
		APIKey:     p.resolveAPIKey(),
		BaseURL:    strings.TrimSpace(p.BaseURL),
		Model:      strings.TrimSpace(p.ModelName),
		MaxTokens:  p.MaxTokens,
		MaxRetries: p.MaxRetries,
	})
	if err != nil {
		return nil, err
	}

	p.cached = mdl
	return mdl, nil
}

func (p *AnthropicProvider) resolveAPIKey() string {
	if key := strings.TrimSpace(p.APIKey); key != "" {
		return key
	}
	if key := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); key != "" {
		return key
	}
	if key := strings.TrimSpace(os.Getenv("ANTHROPIC_AUTH_TOKEN")); key != "" {
		return key
	}
	return ""
}

// OpenAIProvider builds the OpenAI model on first use and caches it.
type OpenAIProvider struct {
	APIKey     string
	BaseURL    string // Optional: for Azure or proxies
	ModelName  string
	MaxTokens  int
	MaxRetries int

	mu     sync.RWMutex
	cached Model
}

// Model implements Provider with caching using double-checked locking.
func (p *OpenAIProvider) Model(ctx context.Context) (Model, error) {
	// Fast path: check cache with read lock
	p.mu.RLock()
	cached := p.cached
	p.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	// Slow path: acquire write lock and double-check
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached != nil {
		return p.cached, nil
	}

	mdl, err := NewOpenAI(OpenAIConfig{
		APIKey:     p.resolveAPIKey(),
		BaseURL:    strings.TrimSpace(p.BaseURL),
		Model:      strings.TrimSpace(p.ModelName),
		MaxTokens:  p.MaxTokens,
		MaxRetries: p.MaxRetries,
	})
	if err != nil {
		return nil, err
	}

	p.cached = mdl
	return mdl, nil
}

func (p *OpenAIProvider) resolveAPIKey() string {
	if key := strings.TrimSpace(p.APIKey); key != "" {
		return key
	}
	if key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); key != "" {
		return key
	}
	return ""
}
