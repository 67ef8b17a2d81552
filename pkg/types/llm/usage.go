package llm

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// ErrBackend is matched by every *BackendError.
var ErrBackend = errors.New("model backend failure")

// BackendError is a failed call to a model provider.
type BackendError struct {
	Provider string
	Err      error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrBackend, e.Provider, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func (e *BackendError) Is(target error) bool {
	return target == ErrBackend
}

// Usage represents token usage information from one model call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// TotalTokens returns the total number of tokens used
func (u Usage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}

// Response is the accumulated reply of a model call.
type Response struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
}

// Model is the text-generation collaborator. Implementations deliver the reply
// to handler, chunk by chunk when streaming, and return the accumulated text.
type Model interface {
	Provider() string
	Generate(ctx context.Context, prompt string, opts GenerateOptions, handler MessageHandler) (Response, error)
}
