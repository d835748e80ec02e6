package dialogue

import (
	"context"
	"time"
)

type EventKind string

const (
	EventTransition EventKind = "transition"
	EventFailure    EventKind = "failure"
	EventPage       EventKind = "page"
)

type Failure string

const (
	FailureOffTopic        Failure = "off_topic"
	FailureNotFound        Failure = "not_found"
	FailureTooFar          Failure = "too_far"
	FailureOutOfRange      Failure = "out_of_range"
	FailureExhausted       Failure = "exhausted"
	FailureMalformedOutput Failure = "malformed_output"
)

type Event struct {
	SessionID  string    `json:"session_id"`
	Kind       EventKind `json:"kind"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	Failure    Failure   `json:"failure,omitempty"`
	Page       int       `json:"page,omitempty"`
	Candidates int       `json:"candidates,omitempty"`
	At         time.Time `json:"at"`
}

// Observer is notified of conversation events. Implementations must not
// block the turn for long.
type Observer interface {
	Observe(ctx context.Context, e Event)
}

type ObserverFunc func(ctx context.Context, e Event)

func (f ObserverFunc) Observe(ctx context.Context, e Event) {
	f(ctx, e)
}

// Observers fans an event out to every observer in order.
type Observers []Observer

func (o Observers) Observe(ctx context.Context, e Event) {
	for _, observer := range o {
		if observer != nil {
			observer.Observe(ctx, e)
		}
	}
}
