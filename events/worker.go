package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/imkonsowa/restaurants-assistant/dialogue"
)

type Handler func(ctx context.Context, e dialogue.Event) error

// WorkerPool runs a Handler over conversation events pulled from the stream.
// Each message is acked after the handler succeeds and nacked otherwise, so
// JetStream redelivers it.
type WorkerPool struct {
	handler Handler
	queue   chan *nats.Msg
	done    chan struct{}
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	handled atomic.Int64
	failed  atomic.Int64
}

func NewWorkerPool(ctx context.Context, workers, queueSize int, handler Handler) *WorkerPool {
	if workers < 1 {
		workers = 2
	}
	if queueSize < 1 {
		queueSize = 100
	}

	poolCtx, cancel := context.WithCancel(ctx)
	w := &WorkerPool{
		handler: handler,
		queue:   make(chan *nats.Msg, queueSize),
		done:    make(chan struct{}),
		ctx:     poolCtx,
		cancel:  cancel,
	}

	w.wg.Add(workers)
	for range workers {
		go w.run()
	}

	return w
}

func (w *WorkerPool) run() {
	defer w.wg.Done()

	for msg := range w.queue {
		if w.ctx.Err() != nil {
			return
		}
		w.settle(msg, w.dispatch(msg.Data))
	}
}

func (w *WorkerPool) dispatch(data []byte) error {
	var e dialogue.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}

	if err := w.handler(w.ctx, e); err != nil {
		return fmt.Errorf("failed to handle %s event of session %s: %w", e.Kind, e.SessionID, err)
	}

	return nil
}

func (w *WorkerPool) settle(msg *nats.Msg, err error) {
	ack := msg.Ack
	if err != nil {
		w.failed.Add(1)
		slog.Error("event not processed", "err", err)
		ack = msg.Nak
	} else {
		w.handled.Add(1)
	}

	// unbound messages (no subscription) cannot be acknowledged
	if err := ack(); err != nil {
		slog.Debug("failed to acknowledge event", "err", err)
	}
}

// Submit queues msg, waiting while the queue is full. It reports false when
// ctx or the pool is done before the message was queued.
func (w *WorkerPool) Submit(ctx context.Context, msg *nats.Msg) bool {
	select {
	case <-w.done:
		return false
	default:
	}

	select {
	case w.queue <- msg:
		return true
	case <-ctx.Done():
		return false
	case <-w.ctx.Done():
		return false
	}
}

// Stop drains the queue, waits for the workers and reports how many events
// were handled and how many failed. Submit must not be called after Stop
// begins.
func (w *WorkerPool) Stop() (handled, failed int64) {
	close(w.done)
	close(w.queue)
	w.wg.Wait()
	w.cancel()

	return w.handled.Load(), w.failed.Load()
}
