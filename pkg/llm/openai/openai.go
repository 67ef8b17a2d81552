// Package openai implements the model collaborator on OpenAI-compatible chat
// completion APIs.
package openai

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/jingkaihe/devlet/pkg/llm/base"
	llmtypes "github.com/jingkaihe/devlet/pkg/types/llm"
)

const (
	Provider     = "openai"
	DefaultModel = "gpt-4.1"
)

// chatClient is the part of *openai.Client the model uses.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
}

// Model generates replies with the chat completions API.
type Model struct {
	config llmtypes.Config
	client chatClient
}

// New creates a Model. The API key comes from the configuration or
// OPENAI_API_KEY; openai.base_url points it at a compatible server.
func New(config llmtypes.Config) (*Model, error) {
	key := config.OpenAI.APIKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" && config.OpenAI.BaseURL == "" {
		return nil, errors.New("openai: api key is not set, configure openai.api_key or OPENAI_API_KEY")
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}

	clientConfig := openai.DefaultConfig(key)
	if config.OpenAI.BaseURL != "" {
		clientConfig.BaseURL = config.OpenAI.BaseURL
	}
	return &Model{config: config, client: openai.NewClientWithConfig(clientConfig)}, nil
}

func (m *Model) Provider() string {
	return Provider
}

func (m *Model) Generate(ctx context.Context, prompt string, opts llmtypes.GenerateOptions, handler llmtypes.MessageHandler) (resp llmtypes.Response, err error) {
	s := base.Resolve(m.config, opts)
	ctx, span := base.StartCall(ctx, Provider, s)
	defer func() { base.EndCall(span, resp, err) }()

	req := openai.ChatCompletionRequest{
		Model:       s.Model,
		MaxTokens:   s.MaxTokens,
		Temperature: float32(s.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	acc := base.NewAccumulator(handler)
	err = base.Retry(ctx, m.config.Retry, Provider, isRetryableError, acc, func() error {
		if s.Stream {
			return m.stream(ctx, req, acc)
		}
		return m.complete(ctx, req, acc)
	})
	if err != nil {
		return llmtypes.Response{}, err
	}
	return acc.Done(s.Model), nil
}

func (m *Model) complete(ctx context.Context, req openai.ChatCompletionRequest, acc *base.Accumulator) error {
	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return err
	}
	if len(resp.Choices) == 0 {
		return errors.New("response has no choices")
	}
	acc.Emit(resp.Choices[0].Message.Content)
	acc.SetUsage(llmtypes.Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	})
	return nil
}

func (m *Model) stream(ctx context.Context, req openai.ChatCompletionRequest, acc *base.Accumulator) error {
	req.Stream = true
	req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := m.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if chunk.Usage != nil {
			acc.SetUsage(llmtypes.Usage{
				InputTokens:  chunk.Usage.PromptTokens,
				OutputTokens: chunk.Usage.CompletionTokens,
			})
		}
		if len(chunk.Choices) > 0 {
			acc.Emit(chunk.Choices[0].Delta.Content)
		}
	}
}

func isRetryableError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}

	return false
}
