package llm

import "time"

// Config holds the configuration for the model client.
type Config struct {
	Provider    string        `mapstructure:"provider" json:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" json:"model" yaml:"model"`
	MaxTokens   int           `mapstructure:"max_tokens" json:"max_tokens" yaml:"max_tokens"`
	Temperature float64       `mapstructure:"temperature" json:"temperature" yaml:"temperature"`
	Stream      bool          `mapstructure:"stream" json:"stream" yaml:"stream"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`

	Retry     RetryConfig     `mapstructure:"retry" json:"retry" yaml:"retry"`
	Anthropic AnthropicConfig `mapstructure:"anthropic" json:"anthropic" yaml:"anthropic"`
	OpenAI    OpenAIConfig    `mapstructure:"openai" json:"openai" yaml:"openai"`
	Google    GoogleConfig    `mapstructure:"google" json:"google" yaml:"google"`
	Static    StaticConfig    `mapstructure:"static" json:"static" yaml:"static"`

	// Profiles are named sets of overrides selected with the profile key.
	Profiles map[string]ProfileConfig `mapstructure:"profiles" json:"profiles,omitempty" yaml:"profiles"`
	// Aliases map short model names to provider model identifiers.
	Aliases map[string]string `mapstructure:"aliases" json:"aliases,omitempty" yaml:"aliases"`
}

// ProfileConfig holds configuration keys overriding the top level ones.
type ProfileConfig map[string]any

// RetryConfig controls retries of failed provider calls. Delays are in
// milliseconds. Timeouts and cancellations are never retried.
type RetryConfig struct {
	Attempts     int    `mapstructure:"attempts" json:"attempts" yaml:"attempts"`
	InitialDelay int    `mapstructure:"initial_delay" json:"initial_delay" yaml:"initial_delay"`
	MaxDelay     int    `mapstructure:"max_delay" json:"max_delay" yaml:"max_delay"`
	BackoffType  string `mapstructure:"backoff_type" json:"backoff_type" yaml:"backoff_type"` // "fixed" or "exponential"
}

// DefaultRetryConfig is used when no retry section is configured.
var DefaultRetryConfig = RetryConfig{
	Attempts:     3,
	InitialDelay: 1000,
	MaxDelay:     10000,
	BackoffType:  "exponential",
}

type AnthropicConfig struct {
	APIKey  string `mapstructure:"api_key" json:"-" yaml:"api_key"`
	BaseURL string `mapstructure:"base_url" json:"base_url" yaml:"base_url"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key" json:"-" yaml:"api_key"`
	BaseURL string `mapstructure:"base_url" json:"base_url" yaml:"base_url"`
}

type GoogleConfig struct {
	APIKey string `mapstructure:"api_key" json:"-" yaml:"api_key"`
}

// StaticConfig configures the offline provider that always returns Reply.
type StaticConfig struct {
	Reply string `mapstructure:"reply" json:"reply" yaml:"reply"`
}

// GenerateOptions are the per-call model options. Zero values fall back to
// the client's Config.
type GenerateOptions struct {
	Model       string
	Temperature *float64
	MaxTokens   int
	Stream      *bool
}
