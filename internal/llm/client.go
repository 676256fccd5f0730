// Package llm talks to the external chat service over Ollama's native
// /api/chat wire format, which is itself spec §6's LLM contract.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// Message is one chat turn, mirroring api.Message so callers don't need to
// import the Ollama package directly.
type Message struct {
	Role    string
	Content string
}

// Client is an Ollama API client for LLM interactions.
type Client struct {
	client      *api.Client
	model       string
	temperature float32
	keepAlive   time.Duration
	useChat     bool
	verbose     bool
}

// Config holds LLM client configuration.
type Config struct {
	Host        string
	Model       string
	Temperature float32
	KeepAlive   time.Duration
	UseChat     bool // false -> one-shot mode per spec §4.12
	Verbose     bool
}

// NewClient creates a new Ollama client with connection pooling tuned for
// low-latency repeated requests to a local LLM.
func NewClient(cfg *Config) (*Client, error) {
	host := strings.TrimSuffix(cfg.Host, "/")
	parsedURL, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("llm: invalid host URL: %w", err)
	}

	httpClient := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		client:      api.NewClient(parsedURL, httpClient),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		keepAlive:   cfg.KeepAlive,
		useChat:     cfg.UseChat,
		verbose:     cfg.Verbose,
	}, nil
}

// Chat sends messages (system prompt + history + new turn, assembled by the
// dialogue controller's Memory) and, when UseChat is set, streams the
// response, concatenating chunks until done:true, per spec §6. With UseChat
// unset the request asks for a single non-streamed response.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	apiMessages := make([]api.Message, len(messages))
	for i, m := range messages {
		apiMessages[i] = api.Message{Role: m.Role, Content: m.Content}
	}

	stream := true
	if !c.useChat {
		stream = false
	}

	keepAlive := api.Duration{Duration: c.keepAlive}

	var sb strings.Builder
	err := c.client.Chat(ctx, &api.ChatRequest{
		Model:     c.model,
		Messages:  apiMessages,
		Stream:    &stream,
		KeepAlive: &keepAlive,
		Options: map[string]any{
			"temperature": c.temperature,
		},
	}, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("llm: chat request failed: %w", err)
	}

	return strings.TrimSpace(sb.String()), nil
}

// HealthCheck verifies the Ollama server is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("llm: cannot reach Ollama: %w", err)
	}
	return nil
}
