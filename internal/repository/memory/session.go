// Package memory provides an in-process session storage, used by tests and one-shot runs.
package memory

import (
	"context"
	"sync"

	"github.com/and161185/cardtrader/internal/model"
)

// SessionStorage keeps the persisted session in memory.
type SessionStorage struct {
	mu  sync.Mutex
	rec *model.PersistedSession
}

// NewSessionStorage returns an empty storage.
func NewSessionStorage() *SessionStorage { return &SessionStorage{} }

// Load returns a copy of the stored session.
func (s *SessionStorage) Load(_ context.Context) (model.PersistedSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return model.PersistedSession{}, false, nil
	}
	return clone(*s.rec), true, nil
}

// Save replaces the stored session.
func (s *SessionStorage) Save(_ context.Context, p model.PersistedSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := clone(p)
	s.rec = &c
	return nil
}

// Clear drops the stored session.
func (s *SessionStorage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = nil
	return nil
}

func clone(p model.PersistedSession) model.PersistedSession {
	if p.User != nil {
		u := *p.User
		p.User = &u
	}
	return p
}
