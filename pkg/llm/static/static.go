// Package static implements an offline model that replies with fixed text.
// It backs tests and dry runs of the request pipeline.
package static

import (
	"context"
	"strings"
	"sync"

	"github.com/jingkaihe/devlet/pkg/llm/base"
	llmtypes "github.com/jingkaihe/devlet/pkg/types/llm"
)

const Provider = "static"

// Model replies with Reply, or with the result of Respond when set.
type Model struct {
	Reply   string
	Respond func(prompt string) (string, error)
	// Stream is the default when a call does not choose.
	Stream bool
	// ChunkSize splits streamed replies; zero streams one chunk per line.
	ChunkSize int

	mu      sync.Mutex
	prompts []string
}

// New creates a Model replying with the configured static reply.
func New(config llmtypes.Config) *Model {
	return &Model{Reply: config.Static.Reply, Stream: config.Stream}
}

func (m *Model) Provider() string {
	return Provider
}

func (m *Model) Generate(ctx context.Context, prompt string, opts llmtypes.GenerateOptions, handler llmtypes.MessageHandler) (llmtypes.Response, error) {
	if err := ctx.Err(); err != nil {
		return llmtypes.Response{}, &llmtypes.BackendError{Provider: Provider, Err: err}
	}

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	reply := m.Reply
	if m.Respond != nil {
		var err error
		if reply, err = m.Respond(prompt); err != nil {
			return llmtypes.Response{}, &llmtypes.BackendError{Provider: Provider, Err: err}
		}
	}

	acc := base.NewAccumulator(handler)
	stream := m.Stream
	if opts.Stream != nil {
		stream = *opts.Stream
	}
	if stream {
		for _, chunk := range m.chunks(reply) {
			acc.Emit(chunk)
		}
	} else {
		acc.Emit(reply)
	}
	acc.SetUsage(llmtypes.Usage{
		InputTokens:  len(strings.Fields(prompt)),
		OutputTokens: len(strings.Fields(reply)),
	})
	model := opts.Model
	if model == "" {
		model = Provider
	}
	return acc.Done(model), nil
}

// Prompts returns every prompt received so far.
func (m *Model) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

func (m *Model) chunks(reply string) []string {
	if m.ChunkSize <= 0 {
		return strings.SplitAfter(reply, "\n")
	}
	var out []string
	for len(reply) > m.ChunkSize {
		out = append(out, reply[:m.ChunkSize])
		reply = reply[m.ChunkSize:]
	}
	return append(out, reply)
}
