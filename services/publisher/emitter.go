package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"sjsage522/couponwatcher/internal/workflow"
	"sjsage522/couponwatcher/logger"
	werrors "sjsage522/couponwatcher/pkg/errors"
)

// MessageKey is the stream field outbound chat messages are stored under
const MessageKey = "b64_message"

// Message kinds
const (
	KindPlain = "plain"
	KindImage = "image"
)

// Message is one outbound chat message
type Message struct {
	Kind    string `json:"kind"`
	Text    string `json:"text,omitempty"`
	URL     string `json:"url,omitempty"`
	RunID   string `json:"run_id,omitempty"`
	Command string `json:"command"`
	SentAt  string `json:"sent_at"`
}

// ChatEmitter hands chat messages to the host through a Publisher
type ChatEmitter struct {
	pub     Publisher
	command string
	now     func() time.Time
	log     *logger.Logger
}

var _ workflow.Emitter = (*ChatEmitter)(nil)

// NewChatEmitter creates an emitter tagging every message with command
func NewChatEmitter(pub Publisher, command string) *ChatEmitter {
	return &ChatEmitter{
		pub:     pub,
		command: command,
		now:     time.Now,
		log:     logger.ForPublisher(),
	}
}

// Plain implements workflow.Emitter
func (e *ChatEmitter) Plain(ctx context.Context, text string) error {
	return e.publish(ctx, Message{Kind: KindPlain, Text: text})
}

// Image implements workflow.Emitter
func (e *ChatEmitter) Image(ctx context.Context, url string) error {
	return e.publish(ctx, Message{Kind: KindImage, URL: url})
}

func (e *ChatEmitter) publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return werrors.NewDelivery("message not sent", err)
	}

	msg.RunID = workflow.RunIDFrom(ctx)
	msg.Command = e.command
	msg.SentAt = e.now().UTC().Format(time.RFC3339)

	data, err := json.Marshal(msg)
	if err != nil {
		return werrors.NewDelivery("failed to encode message", err)
	}
	if err := e.pub.Publish(ctx, MessageKey, data); err != nil {
		return werrors.NewDelivery("failed to publish message", err)
	}

	e.log.Debug().
		Str("run_id", msg.RunID).
		Str("kind", msg.Kind).
		Msg("Message published")
	return nil
}

// ConsoleEmitter prints chat messages, one per line
type ConsoleEmitter struct {
	mu  sync.Mutex
	out io.Writer
}

var _ workflow.Emitter = (*ConsoleEmitter)(nil)

// NewConsoleEmitter creates an emitter writing to out
func NewConsoleEmitter(out io.Writer) *ConsoleEmitter {
	return &ConsoleEmitter{out: out}
}

// Plain implements workflow.Emitter
func (e *ConsoleEmitter) Plain(ctx context.Context, text string) error {
	return e.write("%s\n", text)
}

// Image implements workflow.Emitter
func (e *ConsoleEmitter) Image(ctx context.Context, url string) error {
	return e.write("[image] %s\n", url)
}

func (e *ConsoleEmitter) write(format string, args ...interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := fmt.Fprintf(e.out, format, args...); err != nil {
		return werrors.NewDelivery("failed to write message", err)
	}
	return nil
}
