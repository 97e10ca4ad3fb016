package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// flushTimeout bounds Publish when the caller's context has no deadline.
const flushTimeout = 2 * time.Second

// Message is anything that can be published.
type Message interface {
	Marshal() ([]byte, error)
}

// Publisher sends commands onto the light and buzzer subjects. The HTTP API
// and the send subcommand use it so every command reaches the daemon through
// its ordered receive loop.
type Publisher struct {
	conn     *nats.Conn
	subjects Subjects
	logger   *slog.Logger
}

// NewPublisher connects to url.
func NewPublisher(url, name string, subjects Subjects, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}

	return &Publisher{
		conn:     conn,
		subjects: subjects,
		logger:   logger.With("component", "nats-publisher"),
	}, nil
}

// NewPublisherConn wraps an existing connection.
func NewPublisherConn(conn *nats.Conn, subjects Subjects, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:     conn,
		subjects: subjects,
		logger:   logger.With("component", "nats-publisher"),
	}
}

// Subjects returns the command subjects.
func (p *Publisher) Subjects() Subjects {
	return p.subjects
}

// PublishLight sends m on the light subject.
func (p *Publisher) PublishLight(ctx context.Context, m LightMessage) error {
	return p.Publish(ctx, p.subjects.Light, m)
}

// PublishTone sends m on the buzzer subject.
func (p *Publisher) PublishTone(ctx context.Context, m ToneMessage) error {
	return p.Publish(ctx, p.subjects.Buzzer, m)
}

// Publish sends m on subject and waits until the server has it.
func (p *Publisher) Publish(ctx context.Context, subject string, m Message) error {
	data, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("marshal message for %s: %w", subject, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish on %s: %w", subject, err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}
	p.logger.Debug("Published", "subject", subject, "size", len(data))
	return nil
}

// IsConnected reports whether the connection is live.
func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close closes the connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
