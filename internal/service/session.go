// Package service contains the client-side stores: the authentication session and the
// paginated card and trade collections.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/and161185/cardtrader/internal/model"
	"github.com/and161185/cardtrader/internal/repository"
	"github.com/and161185/cardtrader/internal/validate"
)

// DefaultRevokeTimeout bounds the background backend cleanup after logout.
const DefaultRevokeTimeout = 5 * time.Second

// SessionService owns the authenticated identity and bearer token.
type SessionService interface {
	repository.Credentials

	// Login authenticates and persists the session.
	Login(ctx context.Context, c model.Credentials) error
	// Register creates an account and logs into it.
	Register(ctx context.Context, r model.Registration) error
	// Logout clears the session locally and revokes the token in the background.
	Logout(ctx context.Context) error
	// CheckAuth validates the held token against the backend.
	CheckAuth(ctx context.Context) error
	// Restore rehydrates the session from storage.
	Restore(ctx context.Context) error
	// Snapshot returns a copy of the current state.
	Snapshot() model.Session
	// Subscribe registers fn for state changes and returns a function removing it.
	Subscribe(fn func(model.Session)) (unsubscribe func())
}

var _ SessionService = (*SessionServiceImpl)(nil)

type SessionServiceImpl struct {
	auth          repository.AuthAPI
	revoker       repository.Revoker
	storage       repository.SessionStorage
	log           *zap.Logger
	revokeTimeout time.Duration
	now           func() time.Time

	mu      sync.RWMutex
	state   model.Session
	subs    map[int]func(model.Session)
	nextSub int

	// persistMu orders storage writes so the last write always reflects the latest state.
	persistMu sync.Mutex
	bg        sync.WaitGroup
}

// NewSessionService constructs the session store. revoker may be nil.
func NewSessionService(auth repository.AuthAPI, revoker repository.Revoker, storage repository.SessionStorage, log *zap.Logger) *SessionServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionServiceImpl{
		auth:          auth,
		revoker:       revoker,
		storage:       storage,
		log:           log,
		revokeTimeout: DefaultRevokeTimeout,
		now:           time.Now,
		subs:          map[int]func(model.Session){},
	}
}

// Token implements repository.Credentials.
func (s *SessionServiceImpl) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// Invalidate implements repository.Credentials. It tears the session down without
// contacting the backend.
func (s *SessionServiceImpl) Invalidate() {
	s.reset("")
	if err := s.persist(context.Background()); err != nil {
		s.log.Warn("clear persisted session", zap.Error(err))
	}
	s.log.Info("session invalidated")
}

// Login validates c, authenticates and persists the session. On failure the state is left
// as it was. If the session cannot be persisted it is dropped again, so memory never holds
// an authenticated session that storage does not.
func (s *SessionServiceImpl) Login(ctx context.Context, c model.Credentials) error {
	if err := validate.Login(c); err != nil {
		return err
	}

	s.setLoading(true)
	resp, err := s.auth.Login(ctx, c)
	if err != nil {
		s.setLoading(false)
		return err
	}

	u := resp.User
	s.update(func(st *model.Session) {
		*st = model.Session{User: &u, Token: resp.Token, IsAuthenticated: true}
	})
	s.log.Info("logged in", zap.Int64("user_id", u.ID))

	if err := s.persist(ctx); err != nil {
		s.reset(resp.Token)
		if cerr := s.persist(ctx); cerr != nil {
			s.log.Warn("clear persisted session", zap.Error(cerr))
		}
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Register creates the account and then logs in with the same credentials. A persist
// failure during that login leaves the account created but the session anonymous.
func (s *SessionServiceImpl) Register(ctx context.Context, r model.Registration) error {
	if err := validate.Register(r); err != nil {
		return err
	}

	s.setLoading(true)
	if err := s.auth.Register(ctx, r); err != nil {
		s.setLoading(false)
		return err
	}
	s.log.Info("registered", zap.String("username", r.Username))
	return s.Login(ctx, r.Credentials())
}

// Logout never blocks on the backend: local state and storage are cleared first and the
// token is revoked from a goroutine. Only a storage failure is returned.
func (s *SessionServiceImpl) Logout(ctx context.Context) error {
	token := s.Token()
	s.reset("")
	err := s.persist(ctx)

	if token != "" && s.revoker != nil {
		s.bg.Add(1)
		go func() {
			defer s.bg.Done()
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.revokeTimeout)
			defer cancel()
			if rerr := s.revoker.Revoke(rctx, token); rerr != nil {
				s.log.Debug("revoke token", zap.Error(rerr))
			}
		}()
	}

	if err != nil {
		return fmt.Errorf("clear persisted session: %w", err)
	}
	return nil
}

// Wait blocks until background cleanup started by Logout has finished.
func (s *SessionServiceImpl) Wait() { s.bg.Wait() }

// CheckAuth asks the backend who the token belongs to. Without a token, or with a JWT
// whose exp is already past, the session becomes anonymous with no request made.
// A failed check clears the session unless the caller canceled it.
func (s *SessionServiceImpl) CheckAuth(ctx context.Context) error {
	token := s.Token()
	if token == "" {
		s.reset("")
		return s.persist(ctx)
	}
	if expired(token, s.now()) {
		s.log.Info("stored token expired")
		s.reset(token)
		return s.persist(ctx)
	}

	s.setLoading(true)
	u, err := s.auth.Me(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.setLoading(false)
			return err
		}
		s.reset(token)
		if perr := s.persist(ctx); perr != nil {
			s.log.Warn("clear persisted session", zap.Error(perr))
		}
		return err
	}

	s.update(func(st *model.Session) {
		st.IsLoading = false
		if st.Token != token {
			return
		}
		st.User = &u
		st.IsAuthenticated = true
	})
	return s.persist(ctx)
}

// Restore loads the persisted session. A record claiming authentication without a token
// or user is discarded.
func (s *SessionServiceImpl) Restore(ctx context.Context) error {
	p, ok, err := s.storage.Load(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return nil
	}
	if !p.Consistent() {
		s.log.Warn("discarding inconsistent persisted session")
		return s.storage.Clear(ctx)
	}
	s.update(func(st *model.Session) {
		*st = model.Session{User: p.User, Token: p.Token, IsAuthenticated: p.IsAuthenticated}
	})
	return nil
}

// Snapshot returns a copy of the current state.
func (s *SessionServiceImpl) Snapshot() model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySession(s.state)
}

// Subscribe registers fn, which is called after every state change outside the lock.
func (s *SessionServiceImpl) Subscribe(fn func(model.Session)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *SessionServiceImpl) update(fn func(st *model.Session)) {
	s.mu.Lock()
	fn(&s.state)
	snap := copySession(s.state)
	subs := make([]func(model.Session), 0, len(s.subs))
	for _, f := range s.subs {
		subs = append(subs, f)
	}
	s.mu.Unlock()

	for _, f := range subs {
		f(snap)
	}
}

func (s *SessionServiceImpl) setLoading(v bool) {
	s.update(func(st *model.Session) { st.IsLoading = v })
}

// reset clears the session. With a non-empty ifToken it only does so while that token is
// still the current one, so a late failure cannot wipe a newer login.
func (s *SessionServiceImpl) reset(ifToken string) {
	s.update(func(st *model.Session) {
		if ifToken != "" && st.Token != ifToken {
			st.IsLoading = false
			return
		}
		*st = model.Session{}
	})
}

// persist writes the current state, or clears storage when there is nothing to keep.
func (s *SessionServiceImpl) persist(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	snap := s.Snapshot()
	if snap.Token == "" && !snap.IsAuthenticated {
		return s.storage.Clear(ctx)
	}
	return s.storage.Save(ctx, snap.Persisted())
}

// expired reports whether token is a JWT whose exp claim is not after now. Opaque tokens
// are never considered expired locally.
func expired(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && !claims.ExpiresAt.After(now)
}

func copySession(s model.Session) model.Session {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}
