// Package openai provides an agent provider backed by the OpenAI chat
// completions API.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/voxloop/voxloop/pkg/provider/agent"
)

// Compile-time assertion that Provider implements agent.Provider.
var _ agent.Provider = (*Provider)(nil)

// Provider implements agent.Provider using the OpenAI API.
type Provider struct {
	client      oai.Client
	model       string
	temperature float64
	maxTokens   int
}

// config holds optional configuration for the provider.
type config struct {
	baseURL     string
	timeout     time.Duration
	temperature float64
	maxTokens   int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Useful for
// OpenAI-compatible local servers.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithTemperature sets the sampling temperature for replies.
func WithTemperature(t float64) Option {
	return func(c *config) {
		c.temperature = t
	}
}

// WithMaxTokens bounds the reply length in tokens.
func WithMaxTokens(n int) Option {
	return func(c *config) {
		c.maxTokens = n
	}
}

// New constructs a new OpenAI agent Provider.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client:      oai.NewClient(reqOpts...),
		model:       model,
		temperature: cfg.temperature,
		maxTokens:   cfg.maxTokens,
	}, nil
}

// Respond implements agent.Provider.
func (p *Provider) Respond(ctx context.Context, text string, identity agent.Identity) (agent.Reply, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
	}
	if sys := systemPrompt(identity); sys != "" {
		params.Messages = append(params.Messages, oai.SystemMessage(sys))
	}
	params.Messages = append(params.Messages, oai.UserMessage(text))

	if p.temperature != 0 {
		params.Temperature = param.NewOpt(p.temperature)
	}
	if p.maxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(p.maxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return agent.Reply{}, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return agent.Reply{}, agent.ErrEmptyReply
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return agent.Reply{}, agent.ErrEmptyReply
	}
	return agent.Reply{
		Text:       content,
		Model:      p.model,
		TokensUsed: int(resp.Usage.TotalTokens),
		Timestamp:  time.Now(),
	}, nil
}

// systemPrompt renders identity into the system message. A zero identity
// yields an empty prompt and the backend's default behaviour.
func systemPrompt(id agent.Identity) string {
	var b strings.Builder
	if id.Name != "" {
		fmt.Fprintf(&b, "You are %s, a voice assistant. Keep replies short enough to speak aloud.\n", id.Name)
	}
	if id.Persona != "" {
		b.WriteString(id.Persona)
		b.WriteString("\n")
	}
	if id.Language != "" {
		fmt.Fprintf(&b, "Reply in the language with BCP-47 tag %q.\n", id.Language)
	}
	return strings.TrimSpace(b.String())
}
