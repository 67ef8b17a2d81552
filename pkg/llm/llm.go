// Package llm builds the model collaborator selected by the configuration.
package llm

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/devlet/pkg/llm/anthropic"
	"github.com/jingkaihe/devlet/pkg/llm/google"
	"github.com/jingkaihe/devlet/pkg/llm/openai"
	"github.com/jingkaihe/devlet/pkg/llm/static"
	llmtypes "github.com/jingkaihe/devlet/pkg/types/llm"
)

// Providers lists the accepted values of the provider key.
var Providers = []string{anthropic.Provider, openai.Provider, google.Provider, static.Provider}

// NewModel returns the model for config.Provider. An empty provider is
// inferred from the model name.
func NewModel(ctx context.Context, config llmtypes.Config) (llmtypes.Model, error) {
	provider := strings.ToLower(config.Provider)
	if provider == "" {
		provider = ProviderForModel(config.Model)
	}

	switch provider {
	case anthropic.Provider:
		return anthropic.New(config)
	case openai.Provider:
		return openai.New(config)
	case google.Provider:
		return google.New(ctx, config)
	case static.Provider:
		return static.New(config), nil
	default:
		return nil, errors.Errorf("unknown provider %q, expected one of %s", config.Provider, strings.Join(Providers, ", "))
	}
}

// ProviderForModel guesses the provider from a model name, defaulting to anthropic.
func ProviderForModel(model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gemini"):
		return google.Provider
	case strings.HasPrefix(m, "gpt"), strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return openai.Provider
	default:
		return anthropic.Provider
	}
}
