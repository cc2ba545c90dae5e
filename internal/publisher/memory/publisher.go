// Package memory keeps snapshot notifications in-process. It stands in for
// Pub/Sub when a topic is configured without a GCP project, and in tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultHistory = 100

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	ID          string
	Topic       string
	Payload     any
	PublishedAt time.Time
}

// Publisher records the most recent notifications and logs each one.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
	seq      int
	history  int
	logger   *zap.Logger
}

// Option customizes a Publisher.
type Option func(*Publisher)

// WithLogger logs every notification at info level.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger.Named("publisher")
		}
	}
}

// WithHistory bounds how many notifications are retained.
func WithHistory(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.history = n
		}
	}
}

// New returns a memory Publisher.
func New(opts ...Option) *Publisher {
	p := &Publisher{history: defaultHistory, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish records the message and returns a sequence-based ID. Payloads that
// cannot be encoded as JSON are rejected, matching the Pub/Sub publisher.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("publish canceled: %w", err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	p.mu.Lock()
	p.seq++
	msg := PublishedMessage{
		ID:          fmt.Sprintf("memory-%d", p.seq),
		Topic:       topic,
		Payload:     payload,
		PublishedAt: time.Now().UTC(),
	}
	p.messages = append(p.messages, msg)
	if over := len(p.messages) - p.history; over > 0 {
		p.messages = append([]PublishedMessage(nil), p.messages[over:]...)
	}
	p.mu.Unlock()

	p.logger.Info("notification published",
		zap.String("topic", topic),
		zap.String("message_id", msg.ID),
		zap.ByteString("payload", data),
	)
	return msg.ID, nil
}

// Messages returns the retained notifications, oldest first.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}
