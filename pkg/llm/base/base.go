package base

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jingkaihe/devlet/pkg/logger"
	"github.com/jingkaihe/devlet/pkg/telemetry"
	llmtypes "github.com/jingkaihe/devlet/pkg/types/llm"
)

// DefaultMaxTokens is used when neither the call nor the configuration sets one.
const DefaultMaxTokens = 8192

// Settings are the effective options of one call.
type Settings struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Stream      bool
}

// Resolve merges per-call options over the configuration.
func Resolve(cfg llmtypes.Config, opts llmtypes.GenerateOptions) Settings {
	s := Settings{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Stream:      cfg.Stream,
	}
	if opts.Model != "" {
		s.Model = opts.Model
	}
	if opts.Temperature != nil {
		s.Temperature = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		s.MaxTokens = opts.MaxTokens
	}
	if opts.Stream != nil {
		s.Stream = *opts.Stream
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = DefaultMaxTokens
	}
	return s
}

// Accumulator forwards reply text to a handler and keeps the whole reply.
type Accumulator struct {
	handler llmtypes.MessageHandler

	mu      sync.Mutex
	text    strings.Builder
	emitted bool
	usage   llmtypes.Usage
}

// NewAccumulator wraps handler, which may be nil.
func NewAccumulator(handler llmtypes.MessageHandler) *Accumulator {
	return &Accumulator{handler: handler}
}

// Emit appends a chunk and passes it on. Empty chunks are dropped.
func (a *Accumulator) Emit(chunk string) {
	if chunk == "" {
		return
	}
	a.mu.Lock()
	a.text.WriteString(chunk)
	a.emitted = true
	a.mu.Unlock()

	if a.handler != nil {
		a.handler.HandleText(chunk)
	}
}

// SetUsage records the token usage reported by the provider.
func (a *Accumulator) SetUsage(u llmtypes.Usage) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.usage = u
}

// Emitted reports whether any chunk reached the handler.
func (a *Accumulator) Emitted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.emitted
}

// Done signals the end of the reply and returns it.
func (a *Accumulator) Done(model string) llmtypes.Response {
	if a.handler != nil {
		a.handler.HandleDone()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return llmtypes.Response{Text: a.text.String(), Model: model, Usage: a.usage}
}

// Retry runs op until it succeeds, retryable reports false, or the attempts
// run out. Context cancellation and deadlines are never retried, and neither
// is a failure after acc has emitted text. The final error is a
// *llmtypes.BackendError for provider.
func Retry(ctx context.Context, cfg llmtypes.RetryConfig, provider string, retryable func(error) bool, acc *Accumulator, op func() error) error {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}

	var delayType retry.DelayTypeFunc
	switch cfg.BackoffType {
	case "fixed":
		delayType = retry.FixedDelay
	case "exponential":
		fallthrough
	default:
		delayType = retry.BackOffDelay
	}

	err := retry.Do(
		func() error {
			err := op()
			if err != nil && acc != nil && acc.Emitted() {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.RetryIf(func(err error) bool {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false
			}
			return retryable(err)
		}),
		retry.Attempts(uint(cfg.Attempts)),
		retry.Delay(time.Duration(cfg.InitialDelay)*time.Millisecond),
		retry.DelayType(delayType),
		retry.MaxDelay(time.Duration(cfg.MaxDelay)*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).
				WithField("provider", provider).
				WithField("attempt", n+1).
				WithField("max_attempts", cfg.Attempts).
				Warn("retrying model call")
		}),
	)
	if err != nil {
		return &llmtypes.BackendError{Provider: provider, Err: err}
	}
	return nil
}

// StartCall opens the tracing span of one model call.
func StartCall(ctx context.Context, provider string, s Settings) (context.Context, trace.Span) {
	return telemetry.StartSpan(ctx, "llm.generate",
		attribute.String("provider", provider),
		attribute.String("model", s.Model),
		attribute.Int("max_tokens", s.MaxTokens),
		attribute.Float64("temperature", s.Temperature),
		attribute.Bool("stream", s.Stream),
	)
}

// EndCall records the usage of resp and closes the span.
func EndCall(span trace.Span, resp llmtypes.Response, err error) {
	span.SetAttributes(
		attribute.Int("tokens.input", resp.Usage.InputTokens),
		attribute.Int("tokens.output", resp.Usage.OutputTokens),
	)
	telemetry.EndSpan(span, err)
}
