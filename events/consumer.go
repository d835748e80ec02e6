package events

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/imkonsowa/restaurants-assistant/config"
)

type Consumer struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

func NewConsumer(cfg config.Nats) (*Consumer, error) {
	nc, err := nats.Connect(cfg.ConnStr())
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	return &Consumer{
		conn: nc,
		js:   js,
	}, nil
}

func (c *Consumer) Close() {
	c.conn.Close()
}

// Subscribe pulls messages from a durable consumer named after the subject
// and hands them to the pool until ctx is done.
func (c *Consumer) Subscribe(ctx context.Context, subject string, pool *WorkerPool) error {
	subscription, err := c.js.PullSubscribe(subject, DurableName(subject), nats.ManualAck())
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			if err := subscription.Unsubscribe(); err != nil {
				slog.Warn("failed to unsubscribe from subject", "subject", subject, "err", err)
			}

			return nil
		default:
			msgs, err := subscription.Fetch(4, nats.MaxWait(200*time.Millisecond))
			if err != nil && !errors.Is(err, nats.ErrTimeout) && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}

			for _, msg := range msgs {
				if !pool.Submit(ctx, msg) {
					return nil
				}
			}
		}
	}
}

func DurableName(subject string) string {
	return strings.ReplaceAll(subject+".consumer", ".", "-")
}
