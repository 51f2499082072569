// Package inference owns the process-wide pooled LLM client.
//
// All components that talk to the model route through a single Pool so HTTP
// connections are reused across runs. The endpoint is OpenAI-compatible
// (LM Studio, vLLM, or a hosted provider).
package inference

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Config configures the inference pool.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	VisionModel string
	// Timeout applies to each completion request. Zero means 120s.
	Timeout time.Duration
}

// Pool is a lazily-initialized, process-wide LLM client. It is safe for
// concurrent use; the underlying client is created exactly once and shared by
// every in-flight run.
type Pool struct {
	cfg    Config
	once   sync.Once
	client *openai.Client
	http   *http.Client
}

// NewPool creates a Pool. The network client is not created until the first
// call to Client or Chat.
func NewPool(cfg Config) *Pool {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Pool{cfg: cfg}
}

// Client returns the shared client, creating it on first use. Repeated calls
// return the same instance.
func (p *Pool) Client() *openai.Client {
	p.once.Do(func() {
		p.http = &http.Client{
			Timeout: p.cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 32,
				IdleConnTimeout:     90 * time.Second,
			},
		}
		clientCfg := openai.DefaultConfig(p.cfg.APIKey)
		if p.cfg.BaseURL != "" {
			clientCfg.BaseURL = p.cfg.BaseURL
		}
		clientCfg.HTTPClient = p.http
		p.client = openai.NewClientWithConfig(clientCfg)
	})
	return p.client
}

// Close releases idle connections. The pool must not be used afterwards.
func (p *Pool) Close() {
	if p.http != nil {
		p.http.CloseIdleConnections()
	}
}

// ChatOption tunes a single completion request.
type ChatOption func(*chatOptions)

type chatOptions struct {
	temperature float32
	model       string
}

// WithTemperature sets the sampling temperature for this request.
func WithTemperature(t float32) ChatOption {
	return func(o *chatOptions) {
		o.temperature = t
	}
}

// WithModel overrides the model for this request.
func WithModel(model string) ChatOption {
	return func(o *chatOptions) {
		o.model = model
	}
}

// Chat sends a system+user completion request and returns the assistant text
// with any reasoning block stripped.
func (p *Pool) Chat(ctx context.Context, system, user string, opts ...ChatOption) (string, error) {
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: user},
	}
	return p.ChatMessages(ctx, msgs, opts...)
}

// ChatMessages sends a completion request with an explicit message history.
func (p *Pool) ChatMessages(ctx context.Context, msgs []openai.ChatCompletionMessage, opts ...ChatOption) (string, error) {
	o := chatOptions{model: p.cfg.Model}
	for _, opt := range opts {
		opt(&o)
	}

	resp, err := p.Client().CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    msgs,
		Temperature: o.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}
	return StripReasoning(resp.Choices[0].Message.Content), nil
}

// ExtractPage sends a multi-part message to the vision-capable model. Used by
// the ingestion pipeline for per-page document extraction.
func (p *Pool) ExtractPage(ctx context.Context, system string, parts []openai.ChatMessagePart) (string, error) {
	model := p.cfg.VisionModel
	if model == "" {
		model = p.cfg.Model
	}

	resp, err := p.Client().CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision completion: empty response")
	}
	return StripReasoning(resp.Choices[0].Message.Content), nil
}

var reasoningRe = regexp.MustCompile(`(?is)<(think|thought)>.*?</(think|thought)>`)

// StripReasoning removes embedded reasoning blocks that thinking models emit
// inline with the answer.
func StripReasoning(content string) string {
	return strings.TrimSpace(reasoningRe.ReplaceAllString(content, ""))
}

// ParseJSONBlock extracts a JSON payload from model output, tolerating
// markdown code fences around it.
func ParseJSONBlock(content string) string {
	content = strings.TrimSpace(content)
	if i := strings.Index(content, "```"); i >= 0 {
		rest := content[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		content = strings.TrimSpace(rest)
	}
	return content
}
