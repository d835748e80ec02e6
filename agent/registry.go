package main

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/imkonsowa/restaurants-assistant/dialogue"
)

// Registry holds live sessions; a session expires after ttl without use.
type Registry struct {
	sessions *cache.Cache
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}

	return &Registry{sessions: cache.New(ttl, ttl/2)}
}

func (r *Registry) Get(id string) (*dialogue.Session, bool) {
	v, ok := r.sessions.Get(id)
	if !ok {
		return nil, false
	}

	s := v.(*dialogue.Session)
	r.sessions.SetDefault(id, s)

	return s, true
}

// GetOrCreate returns the session for id, creating one when id is unknown.
// A malformed id yields a session with a fresh id.
func (r *Registry) GetOrCreate(id string) *dialogue.Session {
	if id != "" {
		if s, ok := r.Get(id); ok {
			return s
		}
	}

	s := dialogue.NewSessionWithID(id)
	if err := r.sessions.Add(s.ID, s, cache.DefaultExpiration); err != nil {
		// created concurrently by another connection
		if existing, ok := r.Get(s.ID); ok {
			return existing
		}
		r.sessions.SetDefault(s.ID, s)
	}

	return s
}

func (r *Registry) Len() int {
	return r.sessions.ItemCount()
}
