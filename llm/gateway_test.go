package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundpilot/config"
)

type fakeClient struct {
	provider string
	hasKey   bool
	calls    []string // models called with
	results  []fakeResult
}

type fakeResult struct {
	text   string
	tokens int
	err    error
}

func (f *fakeClient) Provider() string    { return f.provider }
func (f *fakeClient) HasCredential() bool { return f.hasKey }

func (f *fakeClient) Call(ctx context.Context, system, user, model string, maxTokens int) (string, int, error) {
	f.calls = append(f.calls, model)
	idx := len(f.calls) - 1
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	r := f.results[idx]
	return r.text, r.tokens, r.err
}

func testLLMConfig() config.LLM {
	cfg := config.Default().LLM
	cfg.Provider = ProviderDeepSeek
	cfg.EnableProviderFallback = true
	return cfg
}

func TestGatewayRateLimitJumpsProvider(t *testing.T) {
	p1 := &fakeClient{provider: ProviderDeepSeek, hasKey: true, results: []fakeResult{
		{err: &httpError{status: 429, body: "slow down"}},
	}}
	p2 := &fakeClient{provider: ProviderQwen, hasKey: true, results: []fakeResult{
		{text: "ok", tokens: 42},
	}}
	g := NewGatewayWithClients(testLLMConfig(), map[string]Client{
		ProviderDeepSeek: p1, ProviderQwen: p2,
	})

	text, tokens, err := g.Call(context.Background(), "sys", "user", RoleCritical, 100)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 42, tokens)

	// One attempt against P1 (no retry on 429), one against P2.
	assert.Len(t, p1.calls, 1)
	assert.Len(t, p2.calls, 1)

	// Model role re-resolved against the target provider's tier.
	assert.Equal(t, "deepseek-reasoner", p1.calls[0])
	assert.Equal(t, "qwen-max", p2.calls[0])
}

func TestGatewayAuthSurfacesImmediately(t *testing.T) {
	p1 := &fakeClient{provider: ProviderDeepSeek, hasKey: true, results: []fakeResult{
		{err: &httpError{status: 401, body: "bad key"}},
	}}
	p2 := &fakeClient{provider: ProviderQwen, hasKey: true, results: []fakeResult{
		{text: "never reached"},
	}}
	g := NewGatewayWithClients(testLLMConfig(), map[string]Client{
		ProviderDeepSeek: p1, ProviderQwen: p2,
	})

	_, _, err := g.Call(context.Background(), "sys", "user", RoleDecision, 0)
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, Auth, gwErr.Category)
	assert.Len(t, p1.calls, 1)
	assert.Empty(t, p2.calls, "auth failure must not fall through")
}

func TestGatewayRetriesThenExhausts(t *testing.T) {
	p1 := &fakeClient{provider: ProviderDeepSeek, hasKey: true, results: []fakeResult{
		{err: errors.New("connection reset")},
	}}
	p2 := &fakeClient{provider: ProviderQwen, hasKey: true, results: []fakeResult{
		{err: &httpError{status: 503, body: "unavailable"}},
	}}
	g := NewGatewayWithClients(testLLMConfig(), map[string]Client{
		ProviderDeepSeek: p1, ProviderQwen: p2,
	})

	_, _, err := g.Call(context.Background(), "sys", "user", RoleDecision, 0)
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)

	// Both providers exhausted their retries.
	assert.Len(t, p1.calls, 3)
	assert.Len(t, p2.calls, 3)

	// The surfaced error is exactly the last attempt's.
	assert.Equal(t, ProviderQwen, gwErr.Provider)
	assert.Equal(t, "qwen-plus", gwErr.Model)
	assert.Equal(t, Network, gwErr.Category)
}

func TestGatewayNoFallbackWithoutCredential(t *testing.T) {
	p1 := &fakeClient{provider: ProviderDeepSeek, hasKey: true, results: []fakeResult{
		{err: &httpError{status: 429, body: "limited"}},
	}}
	p2 := &fakeClient{provider: ProviderQwen, hasKey: false, results: []fakeResult{
		{text: "unreachable"},
	}}
	g := NewGatewayWithClients(testLLMConfig(), map[string]Client{
		ProviderDeepSeek: p1, ProviderQwen: p2,
	})

	_, _, err := g.Call(context.Background(), "sys", "user", RoleDecision, 0)
	require.Error(t, err)
	assert.Empty(t, p2.calls)
}

func TestGatewayFallbackDisabled(t *testing.T) {
	cfg := testLLMConfig()
	cfg.EnableProviderFallback = false
	p1 := &fakeClient{provider: ProviderDeepSeek, hasKey: true, results: []fakeResult{
		{err: &httpError{status: 429, body: "limited"}},
	}}
	p2 := &fakeClient{provider: ProviderQwen, hasKey: true, results: []fakeResult{{text: "x"}}}
	g := NewGatewayWithClients(cfg, map[string]Client{ProviderDeepSeek: p1, ProviderQwen: p2})

	_, _, err := g.Call(context.Background(), "s", "u", RoleDecision, 0)
	require.Error(t, err)
	assert.Empty(t, p2.calls)
}

func TestModelRoleResolution(t *testing.T) {
	g := NewGatewayWithClients(testLLMConfig(), nil)
	assert.Equal(t, "deepseek-chat", g.Model(ProviderDeepSeek, RoleAnalysis))
	assert.Equal(t, "deepseek-reasoner", g.Model(ProviderDeepSeek, RoleCritical))
	assert.Equal(t, "qwen-turbo", g.Model(ProviderQwen, RoleAnalysis))
	assert.Equal(t, "qwen-plus", g.Model(ProviderQwen, RoleDecision))
	// Unknown role falls back to the decision model.
	assert.Equal(t, "qwen-plus", g.Model(ProviderQwen, Role("debate")))
}
