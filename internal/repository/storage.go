package repository

import (
	"context"

	"github.com/and161185/cardtrader/internal/model"
)

// SessionStorage persists the durable subset of the session under a fixed namespace.
type SessionStorage interface {
	// Load returns the stored session; ok is false when nothing was stored.
	Load(ctx context.Context) (s model.PersistedSession, ok bool, err error)
	// Save replaces the stored session.
	Save(ctx context.Context, s model.PersistedSession) error
	// Clear removes the stored session. Clearing an empty storage is not an error.
	Clear(ctx context.Context) error
}
