package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/nikhilbhutani/labocr/internal/config"
)

type gateway struct {
	providers        map[string]Provider
	defaultProvider  string
	defaultModel     string
	fallbackProvider string
	maxRetries       int
	backoff          func(attempt int) time.Duration
}

func NewGateway(cfg config.LLMConfig) Gateway {
	g := newGateway(cfg)

	if cfg.OpenAIKey != "" {
		g.providers["openai"] = NewOpenAIProvider(cfg.OpenAIKey)
	}
	if cfg.AnthropicKey != "" {
		g.providers["anthropic"] = NewAnthropicProvider(cfg.AnthropicKey)
	}
	if cfg.OllamaURL != "" {
		g.providers["ollama"] = NewOllamaProvider(cfg.OllamaURL)
	}

	return g
}

// NewGatewayWithProviders builds a gateway over already constructed providers.
func NewGatewayWithProviders(cfg config.LLMConfig, providers ...Provider) Gateway {
	g := newGateway(cfg)
	for _, p := range providers {
		g.providers[p.Name()] = p
	}
	return g
}

func newGateway(cfg config.LLMConfig) *gateway {
	return &gateway{
		providers:        make(map[string]Provider),
		defaultProvider:  cfg.DefaultProvider,
		defaultModel:     cfg.DefaultModel,
		fallbackProvider: cfg.FallbackProvider,
		maxRetries:       cfg.MaxRetries,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * 500 * time.Millisecond
		},
	}
}

func (g *gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

func (g *gateway) Providers() []string {
	names := make([]string, 0, len(g.providers))
	for name := range g.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}
	if req.Model == "" {
		req.Model = g.defaultModel
	}

	resp, err := g.chatWithRetry(ctx, providerName, req)
	if err != nil && ctx.Err() == nil && g.fallbackProvider != "" && g.fallbackProvider != providerName {
		slog.Warn("primary provider failed, trying fallback",
			"primary", providerName,
			"fallback", g.fallbackProvider,
			"error", err,
		)
		// The primary's model name rarely exists on the fallback provider.
		fallbackReq := req
		fallbackReq.Model = ""
		return g.chatWithRetry(ctx, g.fallbackProvider, fallbackReq)
	}
	return resp, err
}

func (g *gateway) chatWithRetry(ctx context.Context, providerName string, req ChatRequest) (*ChatResponse, error) {
	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}
	if req.Model == "" {
		req.Model = defaultVisionModel(providerName)
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(g.backoff(attempt)):
			}
			slog.Debug("retrying LLM call", "provider", providerName, "attempt", attempt)
		}

		resp, err := p.ChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("all retries exhausted for %s: %w", providerName, lastErr)
}

func defaultVisionModel(provider string) string {
	switch provider {
	case "anthropic":
		return "claude-sonnet-4-20250514"
	case "ollama":
		return "llava"
	default:
		return "gpt-4o"
	}
}
