package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config points the client at any OpenAI-compatible endpoint.
type Config struct {
	BaseURL            string
	APIKey             string
	Model              string
	EmbeddingModel     string
	EmbeddingBatchSize int
	Timeout            time.Duration
}

// CallObserver is notified after every upstream call. op is "complete",
// "stream" or "embed".
type CallObserver func(op string, elapsed time.Duration, err error)

// Client wraps go-openai for chat completion and embeddings. It is created
// once and shared by all services.
type Client struct {
	client   *openai.Client
	cfg      Config
	logger   *zap.Logger
	observer CallObserver
}

func NewClient(cfg Config, logger *zap.Logger, observer CallObserver) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.EmbeddingBatchSize <= 0 {
		cfg.EmbeddingBatchSize = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		client:   openai.NewClientWithConfig(clientCfg),
		cfg:      cfg,
		logger:   logger,
		observer: observer,
	}
}

// Complete returns the full completion for messages. temperature < 0 leaves
// the provider default.
func (c *Client) Complete(ctx context.Context, messages []ChatMessage, temperature float32) (text string, err error) {
	start := time.Now()
	defer func() { c.observe("complete", start, err) }()

	req := openai.ChatCompletionRequest{
		Model:    c.cfg.Model,
		Messages: toOpenAIMessages(messages),
	}
	if temperature >= 0 {
		req.Temperature = temperature
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty llm choices")
	}

	c.logger.Debug("llm completion generated",
		zap.String("model", c.cfg.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Choices[0].Message.Content, nil
}

// StreamComplete streams completion deltas to onChunk and returns the
// concatenated text. An error from onChunk or a cancelled ctx stops the
// stream.
func (c *Client) StreamComplete(
	ctx context.Context,
	messages []ChatMessage,
	onChunk func(chunk string) error,
) (text string, err error) {
	start := time.Now()
	defer func() { c.observe("stream", start, err) }()

	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    c.cfg.Model,
		Messages: toOpenAIMessages(messages),
		Stream:   true,
	})
	if err != nil {
		return "", fmt.Errorf("llm stream request failed: %w", err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		resp, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return full.String(), fmt.Errorf("read llm stream failed: %w", recvErr)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}

		full.WriteString(delta)
		if err := onChunk(delta); err != nil {
			return full.String(), err
		}
	}
	return full.String(), nil
}

func (c *Client) observe(op string, start time.Time, err error) {
	if c.observer != nil {
		c.observer(op, time.Since(start), err)
	}
}

func toOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
