package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/imkonsowa/restaurants-assistant/config"
	"github.com/imkonsowa/restaurants-assistant/retry"
)

var (
	ErrEmptyResponse   = errors.New("llm: empty response")
	ErrMalformedOutput = errors.New("llm: malformed model output")
)

// Model is the part of a langchaingo model the assistant needs.
type Model interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// EmbeddingModel turns texts into vectors.
type EmbeddingModel interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer turns a system instruction, optional context blocks and an
// optional user message into a single text answer.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Request struct {
	System  string
	Context []string
	User    string
}

type Client struct {
	model       Model
	policy      retry.Policy
	temperature float64
}

func NewClient(model Model, policy retry.Policy, temperature float64) *Client {
	return &Client{
		model:       model,
		policy:      policy,
		temperature: temperature,
	}
}

// NewModel builds the chat model selected by cfg.Provider.
func NewModel(cfg config.LLM) (Model, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.New(
			ollama.WithServerURL(cfg.OllamaAddress()),
			ollama.WithModel(cfg.Model),
		)
	case "openai", "":
		return openai.New(
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
		)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// NewEmbeddingModel builds the embedding model used to query the index. It
// must match the model the index was built with.
func NewEmbeddingModel(cfg config.LLM) (EmbeddingModel, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.New(
			ollama.WithServerURL(cfg.OllamaAddress()),
			ollama.WithModel(cfg.EmbeddingModel),
		)
	case "openai", "":
		return openai.New(
			openai.WithToken(cfg.APIKey),
			openai.WithEmbeddingModel(cfg.EmbeddingModel),
		)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	messages := []llms.MessageContent{
		{
			Role:  schema.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(req.System)},
		},
	}
	for _, block := range req.Context {
		messages = append(messages, llms.MessageContent{
			Role:  schema.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(block)},
		})
	}
	if req.User != "" {
		messages = append(messages, llms.MessageContent{
			Role:  schema.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(req.User)},
		})
	}

	return retry.Value(ctx, c.policy, "llm", func() (string, error) {
		content, err := c.model.GenerateContent(ctx, messages, llms.WithTemperature(c.temperature))
		if err != nil {
			return "", fmt.Errorf("failed to generate content: %w", err)
		}

		if content == nil || len(content.Choices) == 0 {
			return "", retry.Permanent(ErrEmptyResponse)
		}

		text := strings.TrimSpace(content.Choices[0].Content)
		if text == "" {
			return "", retry.Permanent(ErrEmptyResponse)
		}

		return text, nil
	})
}
