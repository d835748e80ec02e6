// Package dialogue drives one conversation: it keeps the session state and
// routes each user turn to extraction, retrieval, ranking and composition.
package dialogue

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imkonsowa/restaurants-assistant/maps"
	"github.com/imkonsowa/restaurants-assistant/recommend"
)

type State int

const (
	StateNone State = iota
	StatePrepare
	StateLocation
	StateGenerate
	StateContinuation
)

func (s State) String() string {
	switch s {
	case StatePrepare:
		return "PREPARE"
	case StateLocation:
		return "LOCATION"
	case StateGenerate:
		return "GENERATE"
	case StateContinuation:
		return "CONTINUATION"
	default:
		return "NONE"
	}
}

// awaitsInput reports whether the state only advances on user input.
func (s State) awaitsInput() bool {
	return s == StatePrepare || s == StateLocation || s == StateContinuation
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Session is one user's conversation. Controller.Handle serialises access;
// other readers go through Snapshot.
type Session struct {
	ID           string
	State        State
	History      []Turn
	PendingInput string
	Preference   string
	Location     string
	Coordinates  *maps.LatLng
	Ranked       []recommend.Candidate
	PageIndex    int

	mu sync.Mutex
}

func NewSession() *Session {
	return &Session{ID: uuid.NewString()}
}

// NewSessionWithID is used when the surface already has an id for the client.
func NewSessionWithID(id string) *Session {
	if _, err := uuid.Parse(id); err != nil {
		return NewSession()
	}

	return &Session{ID: id}
}

type Snapshot struct {
	ID          string       `json:"id"`
	State       string       `json:"state"`
	Preference  string       `json:"preference,omitempty"`
	Location    string       `json:"location,omitempty"`
	Coordinates *maps.LatLng `json:"coordinates,omitempty"`
	PageIndex   int          `json:"page_index"`
	Candidates  int          `json:"candidates"`
	History     []Turn       `json:"history"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]Turn, len(s.History))
	copy(history, s.History)

	return Snapshot{
		ID:          s.ID,
		State:       s.State.String(),
		Preference:  s.Preference,
		Location:    s.Location,
		Coordinates: s.Coordinates,
		PageIndex:   s.PageIndex,
		Candidates:  len(s.Ranked),
		History:     history,
	}
}

func (s *Session) say(role Role, content string) {
	s.History = append(s.History, Turn{Role: role, Content: content, At: time.Now()})
}

// takeInput consumes the pending input.
func (s *Session) takeInput() string {
	input := s.PendingInput
	s.PendingInput = ""

	return input
}

func (s *Session) transcript() []string {
	lines := make([]string, 0, len(s.History))
	for _, t := range s.History {
		lines = append(lines, string(t.Role)+": "+t.Content)
	}

	return lines
}
