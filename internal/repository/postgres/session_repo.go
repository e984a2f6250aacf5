package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/cardtrader/internal/model"
)

// SessionRepo implements SessionStorage on a client_sessions row keyed by namespace.
// It lets several client processes on one host share a session.
type SessionRepo struct {
	db        *DB
	namespace string
}

// NewSessionRepo constructs a session repository for the namespace.
func NewSessionRepo(db *DB, namespace string) *SessionRepo {
	if namespace == "" {
		namespace = model.SessionNamespace
	}
	return &SessionRepo{db: db, namespace: namespace}
}

// Load selects the session row.
func (r *SessionRepo) Load(ctx context.Context) (model.PersistedSession, bool, error) {
	const q = `
SELECT token, COALESCE(user_id, 0), COALESCE(username, ''), COALESCE(email, ''), is_authenticated
FROM client_sessions WHERE namespace=$1`
	var (
		p        model.PersistedSession
		userID   int64
		username string
		email    string
	)
	err := r.db.Pool.QueryRow(ctx, q, r.namespace).Scan(&p.Token, &userID, &username, &email, &p.IsAuthenticated)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PersistedSession{}, false, nil
	}
	if err != nil {
		return model.PersistedSession{}, false, err
	}
	if userID != 0 {
		p.User = &model.User{ID: userID, Username: username, Email: email}
	}
	return p, true, nil
}

// Save upserts the session row.
func (r *SessionRepo) Save(ctx context.Context, p model.PersistedSession) error {
	const q = `
INSERT INTO client_sessions (namespace, token, user_id, username, email, is_authenticated, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (namespace) DO UPDATE
SET token=EXCLUDED.token, user_id=EXCLUDED.user_id, username=EXCLUDED.username,
    email=EXCLUDED.email, is_authenticated=EXCLUDED.is_authenticated, updated_at=now()`
	var (
		userID          *int64
		username, email *string
	)
	if p.User != nil {
		userID, username, email = &p.User.ID, &p.User.Username, &p.User.Email
	}
	_, err := r.db.Pool.Exec(ctx, q, r.namespace, p.Token, userID, username, email, p.IsAuthenticated)
	return err
}

// Clear deletes the session row.
func (r *SessionRepo) Clear(ctx context.Context) error {
	const q = `DELETE FROM client_sessions WHERE namespace=$1`
	_, err := r.db.Pool.Exec(ctx, q, r.namespace)
	return err
}
