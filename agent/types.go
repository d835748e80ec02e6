package main

import (
	"github.com/imkonsowa/restaurants-assistant/dialogue"
)

const (
	MessageHistory   = "history"
	MessageChunk     = "chunk"
	MessageInstagram = "instagram"
	MessageDone      = "done"
	MessageState     = "state"
	MessageError     = "error"
)

type WebSocketsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type ChatRequest struct {
	Input string `json:"input"`
}

type HistoryData struct {
	Session string          `json:"session"`
	Turns   []dialogue.Turn `json:"turns"`
}
