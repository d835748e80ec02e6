// Command eventlog tails the conversation event stream and logs every event.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/imkonsowa/restaurants-assistant/config"
	"github.com/imkonsowa/restaurants-assistant/dialogue"
	"github.com/imkonsowa/restaurants-assistant/events"
	"github.com/imkonsowa/restaurants-assistant/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded:", err)
	}

	cfg := config.LoadConfig()
	slog.SetDefault(logging.New(cfg.Log, os.Stdout))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	consumer, err := events.NewConsumer(cfg.Nats)
	if err != nil {
		log.Fatal(err)
	}
	defer consumer.Close()

	pool := events.NewWorkerPool(ctx, 2, 100, logEvent)

	slog.Info("tailing conversation events", "subject", cfg.Nats.Subject)
	if err := consumer.Subscribe(ctx, cfg.Nats.Subject, pool); err != nil {
		slog.Error("subscription failed", "err", err)
	}

	handled, failed := pool.Stop()
	slog.Info("Shutting down", "handled", handled, "failed", failed)
}

func logEvent(_ context.Context, e dialogue.Event) error {
	attrs := []any{"session", e.SessionID, "at", e.At}

	switch e.Kind {
	case dialogue.EventTransition:
		attrs = append(attrs, "from", e.From, "to", e.To)
	case dialogue.EventFailure:
		attrs = append(attrs, "failure", e.Failure)
	case dialogue.EventPage:
		attrs = append(attrs, "page", e.Page, "candidates", e.Candidates)
	}

	slog.Info(string(e.Kind), attrs...)

	return nil
}
