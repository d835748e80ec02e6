package main

import (
	"context"
	"strings"
	"time"

	"github.com/imkonsowa/restaurants-assistant/compose"
	"github.com/imkonsowa/restaurants-assistant/dialogue"
)

type Conversation interface {
	Handle(ctx context.Context, s *dialogue.Session, input string) []dialogue.Reply
}

type Handler struct {
	conversation Conversation
	streamDelay  time.Duration
}

func NewHandler(conversation Conversation, streamDelay time.Duration) *Handler {
	return &Handler{
		conversation: conversation,
		streamDelay:  streamDelay,
	}
}

// Respond runs one turn and streams the replies word by word. The channel
// is closed after the final state message or when ctx is done.
func (h *Handler) Respond(ctx context.Context, s *dialogue.Session, input string) chan WebSocketsMessage {
	resultChan := make(chan WebSocketsMessage)

	go func() {
		defer close(resultChan)

		send := func(msg WebSocketsMessage) bool {
			select {
			case resultChan <- msg:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for _, reply := range h.conversation.Handle(ctx, s, input) {
			sections := reply.Sections
			if len(sections) == 0 {
				sections = []compose.Section{{Text: reply.Text}}
			}

			for _, section := range sections {
				for _, chunk := range Chunks(section.Text) {
					if !send(WebSocketsMessage{Type: MessageChunk, Data: chunk}) {
						return
					}
					if !h.pause(ctx) {
						return
					}
				}
				if section.Instagram != "" {
					if !send(WebSocketsMessage{Type: MessageInstagram, Data: section.Instagram}) {
						return
					}
				}
			}

			if !send(WebSocketsMessage{Type: MessageDone, Data: reply.Text}) {
				return
			}
		}

		send(WebSocketsMessage{Type: MessageState, Data: s.Snapshot().State})
	}()

	return resultChan
}

func (h *Handler) pause(ctx context.Context) bool {
	if h.streamDelay <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(h.streamDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Chunks splits text into words, each keeping a trailing space, so that
// joining the chunks restores the text plus one space.
func Chunks(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	words := strings.Split(text, " ")
	chunks := make([]string, 0, len(words))
	for _, word := range words {
		chunks = append(chunks, word+" ")
	}

	return chunks
}
