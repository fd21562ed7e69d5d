package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is one chat backend. Call returns the completion text and the
// total tokens billed.
type Client interface {
	Provider() string
	Call(ctx context.Context, system, user, model string, maxTokens int) (string, int, error)
	HasCredential() bool
}

// httpError carries the HTTP status into error classification.
type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("http %d: %s", e.status, e.body)
}

func (e *httpError) HTTPStatus() int { return e.status }

// openAIClient talks to an OpenAI-compatible chat-completions endpoint.
// Both supported providers (DeepSeek, DashScope/Qwen) expose this shape.
type openAIClient struct {
	provider string
	baseURL  string
	apiKey   string
	http     *http.Client
}

// ClientOption configures an openAIClient.
type ClientOption func(*openAIClient)

// WithBaseURL overrides the endpoint base URL.
func WithBaseURL(url string) ClientOption {
	return func(c *openAIClient) { c.baseURL = url }
}

// WithAPIKey overrides the credential.
func WithAPIKey(key string) ClientOption {
	return func(c *openAIClient) { c.apiKey = key }
}

// WithHTTPClient overrides the transport, used by tests.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *openAIClient) { c.http = h }
}

func newOpenAIClient(provider, baseURL, apiKey string, opts ...ClientOption) *openAIClient {
	c := &openAIClient{
		provider: provider,
		baseURL:  baseURL,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *openAIClient) Provider() string { return c.provider }

func (c *openAIClient) HasCredential() bool { return c.apiKey != "" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *openAIClient) Call(ctx context.Context, system, user, model string, maxTokens int) (string, int, error) {
	if c.apiKey == "" {
		return "", 0, &Error{
			Category: Auth,
			Provider: c.provider,
			Model:    model,
			Message:  "API key not configured",
		}
	}

	payload := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens: maxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", 0, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, &httpError{status: resp.StatusCode, body: truncate(string(raw), 300)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", 0, fmt.Errorf("decode chat response: %w", err)
	}
	if parsed.Error != nil {
		return "", 0, fmt.Errorf("provider error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", 0, fmt.Errorf("empty choices in response")
	}
	return parsed.Choices[0].Message.Content, parsed.Usage.TotalTokens, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
