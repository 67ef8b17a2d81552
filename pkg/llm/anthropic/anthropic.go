// Package anthropic implements the model collaborator on the Anthropic Messages API.
package anthropic

import (
	"context"
	"net/http"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"

	"github.com/jingkaihe/devlet/pkg/llm/base"
	llmtypes "github.com/jingkaihe/devlet/pkg/types/llm"
)

const (
	Provider     = "anthropic"
	DefaultModel = "claude-sonnet-4-5"
)

// Model generates replies with the Anthropic Messages API.
type Model struct {
	config llmtypes.Config
	client anthropic.Client
}

// New creates a Model. The API key comes from the configuration or
// ANTHROPIC_API_KEY.
func New(config llmtypes.Config, opts ...option.RequestOption) (*Model, error) {
	key := config.Anthropic.APIKey
	if key == "" {
		key = os.Getenv("ANTHROPIC_API_KEY")
	}
	if key == "" {
		return nil, errors.New("anthropic: api key is not set, configure anthropic.api_key or ANTHROPIC_API_KEY")
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}

	// retries are done by base.Retry
	clientOpts := []option.RequestOption{option.WithAPIKey(key), option.WithMaxRetries(0)}
	if config.Anthropic.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(config.Anthropic.BaseURL))
	}
	clientOpts = append(clientOpts, opts...)

	return &Model{config: config, client: anthropic.NewClient(clientOpts...)}, nil
}

func (m *Model) Provider() string {
	return Provider
}

func (m *Model) Generate(ctx context.Context, prompt string, opts llmtypes.GenerateOptions, handler llmtypes.MessageHandler) (resp llmtypes.Response, err error) {
	s := base.Resolve(m.config, opts)
	ctx, span := base.StartCall(ctx, Provider, s)
	defer func() { base.EndCall(span, resp, err) }()

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(s.Model),
		MaxTokens:   int64(s.MaxTokens),
		Temperature: anthropic.Float(s.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	acc := base.NewAccumulator(handler)
	err = base.Retry(ctx, m.config.Retry, Provider, isRetryableError, acc, func() error {
		if s.Stream {
			return m.stream(ctx, params, acc)
		}
		return m.complete(ctx, params, acc)
	})
	if err != nil {
		return llmtypes.Response{}, err
	}
	return acc.Done(s.Model), nil
}

func (m *Model) complete(ctx context.Context, params anthropic.MessageNewParams, acc *base.Accumulator) error {
	message, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return err
	}
	for _, block := range message.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			acc.Emit(text.Text)
		}
	}
	acc.SetUsage(llmtypes.Usage{
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	})
	return nil
}

func (m *Model) stream(ctx context.Context, params anthropic.MessageNewParams, acc *base.Accumulator) error {
	stream := m.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return errors.Wrap(err, "failed to accumulate stream event")
		}
		if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok {
				acc.Emit(text.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return err
	}
	acc.SetUsage(llmtypes.Usage{
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	})
	return nil
}

func isRetryableError(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	// transport failures carry no status code
	return true
}
