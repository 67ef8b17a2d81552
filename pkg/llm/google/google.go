// Package google implements the model collaborator on the Gemini API.
package google

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	"github.com/jingkaihe/devlet/pkg/llm/base"
	llmtypes "github.com/jingkaihe/devlet/pkg/types/llm"
)

const (
	Provider     = "google"
	DefaultModel = "gemini-2.5-pro"
)

// Model generates replies with the Gemini API.
type Model struct {
	config llmtypes.Config
	client *genai.Client
}

// New creates a Model. The API key comes from the configuration,
// GOOGLE_API_KEY or GEMINI_API_KEY.
func New(ctx context.Context, config llmtypes.Config) (*Model, error) {
	key := config.Google.APIKey
	for _, env := range []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"} {
		if key == "" {
			key = os.Getenv(env)
		}
	}
	if key == "" {
		return nil, errors.New("google: api key is not set, configure google.api_key or GOOGLE_API_KEY")
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Google GenAI client")
	}
	return &Model{config: config, client: client}, nil
}

func (m *Model) Provider() string {
	return Provider
}

func (m *Model) Generate(ctx context.Context, prompt string, opts llmtypes.GenerateOptions, handler llmtypes.MessageHandler) (resp llmtypes.Response, err error) {
	s := base.Resolve(m.config, opts)
	ctx, span := base.StartCall(ctx, Provider, s)
	defer func() { base.EndCall(span, resp, err) }()

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(s.Temperature)),
		MaxOutputTokens: int32(s.MaxTokens),
	}
	contents := genai.Text(prompt)

	acc := base.NewAccumulator(handler)
	err = base.Retry(ctx, m.config.Retry, Provider, isRetryableError, acc, func() error {
		if s.Stream {
			for chunk, err := range m.client.Models.GenerateContentStream(ctx, s.Model, contents, config) {
				if err != nil {
					return errors.Wrap(err, "streaming failed")
				}
				handleChunk(chunk, acc)
			}
			return nil
		}
		result, err := m.client.Models.GenerateContent(ctx, s.Model, contents, config)
		if err != nil {
			return err
		}
		handleChunk(result, acc)
		return nil
	})
	if err != nil {
		return llmtypes.Response{}, err
	}
	return acc.Done(s.Model), nil
}

func handleChunk(chunk *genai.GenerateContentResponse, acc *base.Accumulator) {
	if chunk == nil {
		return
	}
	if chunk.UsageMetadata != nil {
		acc.SetUsage(llmtypes.Usage{
			InputTokens:  int(chunk.UsageMetadata.PromptTokenCount),
			OutputTokens: int(chunk.UsageMetadata.CandidatesTokenCount),
		})
	}
	if len(chunk.Candidates) == 0 {
		return
	}
	candidate := chunk.Candidates[0]
	if candidate.Content == nil {
		return
	}
	for _, part := range candidate.Content.Parts {
		if part != nil && !part.Thought {
			acc.Emit(part.Text)
		}
	}
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"temporary failure",
		"service unavailable",
		"internal error",
		"quota exceeded",
		"rate limit",
		"too many requests",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
