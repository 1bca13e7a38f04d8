// Package openai adapts the OpenAI API to the completion and embedding ports
// behind retries and a circuit breaker.
package openai

import (
	"context"
	"fmt"
	"math"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/knowbase/knowledge-assistant/internal/core/domain"
	"github.com/knowbase/knowledge-assistant/internal/infrastructure/resilience"
)

const (
	DefaultChatModel      = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-3-small"

	defaultTemperature = 0.7
	defaultMaxTokens   = 1024
)

type Client struct {
	api            *goopenai.Client
	apiKey         string
	chatModel      string
	embeddingModel goopenai.EmbeddingModel
	temperature    float32
	maxTokens      int
	executor       *resilience.Executor
}

type Option func(*Client)

func WithChatModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.chatModel = model
		}
	}
}

func WithEmbeddingModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.embeddingModel = goopenai.EmbeddingModel(model)
		}
	}
}

func WithTemperature(t float64) Option {
	return func(c *Client) {
		if t > 0 {
			c.temperature = float32(t)
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL == "" {
			return
		}
		cfg := goopenai.DefaultConfig(c.apiKey)
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
		c.api = goopenai.NewClientWithConfig(cfg)
	}
}

func WithResilience(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		api:            goopenai.NewClient(apiKey),
		apiKey:         apiKey,
		chatModel:      DefaultChatModel,
		embeddingModel: goopenai.EmbeddingModel(DefaultEmbeddingModel),
		temperature:    defaultTemperature,
		maxTokens:      defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify runs a single-shot completion at temperature zero so routing is
// deterministic. The SDK's Temperature field is omitempty; a literal zero
// would fall back to the provider default, hence the smallest nonzero value.
func (c *Client) Classify(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	req := goopenai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: userMessage},
		},
		Temperature: math.SmallestNonzeroFloat32,
		MaxTokens:   16,
	}

	out, err := c.chatCompletion(ctx, "classify", req)
	if err != nil {
		return "", err
	}
	return out, nil
}

// Complete generates the answer for a turn, replaying prior conversation
// turns as chat messages ahead of the current one.
func (c *Client) Complete(ctx context.Context, systemPrompt string, history []domain.ConversationTurn, userMessage string) (string, error) {
	messages := make([]goopenai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, turn := range history {
		role := goopenai.ChatMessageRoleUser
		if turn.Role == domain.RoleAssistant {
			role = goopenai.ChatMessageRoleAssistant
		}
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Content,
		})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: userMessage,
	})

	req := goopenai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	return c.chatCompletion(ctx, "complete", req)
}

// Embed builds one vector per input text in a single batch request.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var vectors [][]float32
	op := func(ctx context.Context) error {
		resp, err := c.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
			Input: texts,
			Model: c.embeddingModel,
		})
		if err != nil {
			return fmt.Errorf("create embeddings: %w", err)
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("embeddings count mismatch: got %d for %d inputs", len(resp.Data), len(texts))
		}
		vectors = make([][]float32, len(resp.Data))
		for _, item := range resp.Data {
			vectors[item.Index] = item.Embedding
		}
		return nil
	}

	if err := c.execute(ctx, "openai.embed", op); err != nil {
		return nil, wrapTemporaryIfNeeded("embed", err)
	}
	return vectors, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed query: empty response")
	}
	return vectors[0], nil
}

func (c *Client) chatCompletion(ctx context.Context, operation string, req goopenai.ChatCompletionRequest) (string, error) {
	var content string
	op := func(ctx context.Context) error {
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return fmt.Errorf("%s: %w", operation, err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%s: empty choices", operation)
		}
		content = resp.Choices[0].Message.Content
		return nil
	}

	if err := c.execute(ctx, "openai."+operation, op); err != nil {
		return "", wrapTemporaryIfNeeded(operation, err)
	}
	return content, nil
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, operation, fn, classifyOpenAIError)
}
