package llm

import (
	"context"
	"math"
	"time"

	"fundpilot/config"
	"fundpilot/logger"
	"fundpilot/metrics"
)

// Role selects the model tier for a call.
type Role string

const (
	RoleAnalysis Role = "analysis"
	RoleDecision Role = "decision"
	RoleCritical Role = "critical"
)

// Gateway is the provider-agnostic entry point for every LLM call:
// classified retries with exponential backoff, rate-limit provider
// hopping, and role-based model resolution when switching backends.
type Gateway struct {
	cfg     config.LLM
	clients map[string]Client
	sleep   func(time.Duration) // test hook
}

// NewGateway wires the two provider backends.
func NewGateway(cfg config.LLM) *Gateway {
	return &Gateway{
		cfg: cfg,
		clients: map[string]Client{
			ProviderDeepSeek: NewDeepSeek(),
			ProviderQwen:     NewQwen(),
		},
		sleep: time.Sleep,
	}
}

// NewGatewayWithClients injects backends, used by tests.
func NewGatewayWithClients(cfg config.LLM, clients map[string]Client) *Gateway {
	return &Gateway{cfg: cfg, clients: clients, sleep: func(time.Duration) {}}
}

// Model resolves the model name for a role on the given provider;
// unmappable roles fall back to the decision model.
func (g *Gateway) Model(provider string, role Role) string {
	models := g.cfg.Models(provider)
	switch role {
	case RoleAnalysis:
		if models.AnalysisModel != "" {
			return models.AnalysisModel
		}
	case RoleCritical:
		if models.CriticalModel != "" {
			return models.CriticalModel
		}
	}
	return models.DecisionModel
}

// Provider returns the configured primary provider.
func (g *Gateway) Provider() string { return g.cfg.Provider }

// providerChain is primary first, fallback appended iff its credential
// is present and fallback is enabled.
func (g *Gateway) providerChain() []string {
	chain := []string{g.cfg.Provider}
	if !g.cfg.EnableProviderFallback {
		return chain
	}
	fallback := FallbackOf(g.cfg.Provider)
	if client, ok := g.clients[fallback]; ok && client.HasCredential() {
		chain = append(chain, fallback)
	}
	return chain
}

// Call runs one prompt through the provider chain. On RATE_LIMIT it
// breaks to the next provider immediately; other retryable errors back
// off exponentially up to max_retries per provider. AUTH and BILLING
// surface at once. The returned error, when all attempts fail, is the
// classified error of the last attempt.
func (g *Gateway) Call(ctx context.Context, system, user string, role Role, maxTokens int) (string, int, error) {
	if maxTokens <= 0 {
		maxTokens = g.cfg.MaxTokens
	}
	maxRetries := g.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var lastErr *Error
	for _, provider := range g.providerChain() {
		client, ok := g.clients[provider]
		if !ok {
			continue
		}
		model := g.Model(provider, role)

		for attempt := 0; attempt < maxRetries; attempt++ {
			text, tokens, err := client.Call(ctx, system, user, model, maxTokens)
			if err == nil {
				metrics.LLMCalls.WithLabelValues(provider, "ok").Inc()
				metrics.LLMTokens.WithLabelValues(provider).Add(float64(tokens))
				return text, tokens, nil
			}

			classified := Classify(err, provider, model)
			metrics.LLMCalls.WithLabelValues(provider, string(classified.Category)).Inc()
			lastErr = classified

			if !classified.Retryable() {
				logger.Errorf("LLM non-retryable error: %v", classified)
				return "", 0, classified
			}
			if classified.Category == RateLimit {
				logger.Warnf("LLM rate limited (%s/%s), switching provider", provider, model)
				break
			}

			delay := g.backoff(attempt)
			logger.Warnf("LLM call failed (%s), retry %d/%d in %s",
				classified.Category, attempt+1, maxRetries, delay)
			select {
			case <-ctx.Done():
				return "", 0, Classify(ctx.Err(), provider, model)
			default:
			}
			g.sleep(delay)
		}
	}

	if lastErr != nil {
		return "", 0, lastErr
	}
	return "", 0, &Error{
		Category: Unknown,
		Provider: g.cfg.Provider,
		Model:    g.Model(g.cfg.Provider, RoleDecision),
		Message:  "no LLM provider available",
	}
}

func (g *Gateway) backoff(attempt int) time.Duration {
	base := g.cfg.RetryBackoffBase
	if base <= 0 {
		base = 2
	}
	capSecs := g.cfg.RetryBackoffMax
	if capSecs <= 0 {
		capSecs = 8
	}
	secs := math.Min(math.Pow(base, float64(attempt)), capSecs)
	return time.Duration(secs * float64(time.Second))
}
