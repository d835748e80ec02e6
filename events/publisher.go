// Package events streams conversation events through NATS JetStream.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/imkonsowa/restaurants-assistant/config"
	"github.com/imkonsowa/restaurants-assistant/dialogue"
)

const DefaultSubject = "assistant.events"

type jetStream interface {
	PublishAsync(subject string, data []byte, opts ...nats.PubOpt) (nats.PubAckFuture, error)
	PublishAsyncComplete() <-chan struct{}
}

// Publisher is a dialogue.Observer that publishes every event as JSON.
type Publisher struct {
	conn    *nats.Conn
	js      jetStream
	subject string
}

func NewPublisher(cfg config.Nats) (*Publisher, error) {
	nc, err := nats.Connect(cfg.ConnStr())
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubject
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{subject},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    time.Hour * 24 * 7,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		nc.Close()
		return nil, err
	}

	return &Publisher{conn: nc, js: js, subject: subject}, nil
}

func (p *Publisher) Observe(_ context.Context, e dialogue.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Error("failed to marshal event", "kind", e.Kind, "err", err)
		return
	}

	if _, err := p.js.PublishAsync(p.subject, data); err != nil {
		slog.Warn("failed to publish event", "subject", p.subject, "kind", e.Kind, "err", err)
	}
}

// Close waits up to timeout for pending acks, then closes the connection.
func (p *Publisher) Close(timeout time.Duration) {
	select {
	case <-p.js.PublishAsyncComplete():
	case <-time.After(timeout):
		slog.Warn("closing with unacknowledged events", "subject", p.subject)
	}

	if p.conn != nil {
		p.conn.Close()
	}
}
