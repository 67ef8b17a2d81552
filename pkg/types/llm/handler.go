package llm

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// MessageHandler receives the model reply as it is produced. Streaming
// providers call HandleText once per chunk; the others once with the whole reply.
type MessageHandler interface {
	HandleText(text string)
	HandleDone()
}

// MessageEvent represents an event from processing a message
type MessageEvent struct {
	Content string
	Done    bool
}

// ConsoleMessageHandler writes chunks as they arrive.
type ConsoleMessageHandler struct {
	Silent bool
	Out    io.Writer
}

func (h *ConsoleMessageHandler) out() io.Writer {
	if h.Out == nil {
		return os.Stdout
	}
	return h.Out
}

func (h *ConsoleMessageHandler) HandleText(text string) {
	if !h.Silent {
		fmt.Fprint(h.out(), text)
	}
}

func (h *ConsoleMessageHandler) HandleDone() {
	if !h.Silent {
		fmt.Fprintln(h.out())
	}
}

// ChannelMessageHandler sends chunks through a channel.
type ChannelMessageHandler struct {
	MessageCh chan MessageEvent
}

func (h *ChannelMessageHandler) HandleText(text string) {
	h.MessageCh <- MessageEvent{Content: text}
}

func (h *ChannelMessageHandler) HandleDone() {
	h.MessageCh <- MessageEvent{Done: true}
}

// StringCollectorHandler collects the chunks into a string
type StringCollectorHandler struct {
	mu   sync.Mutex
	text strings.Builder
	done bool
}

func (h *StringCollectorHandler) HandleText(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.text.WriteString(text)
}

func (h *StringCollectorHandler) HandleDone() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.done = true
}

func (h *StringCollectorHandler) CollectedText() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.text.String()
}

func (h *StringCollectorHandler) Done() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}

// MultiHandler fans every event out to each handler in order.
type MultiHandler []MessageHandler

func (m MultiHandler) HandleText(text string) {
	for _, h := range m {
		if h != nil {
			h.HandleText(text)
		}
	}
}

func (m MultiHandler) HandleDone() {
	for _, h := range m {
		if h != nil {
			h.HandleDone()
		}
	}
}
