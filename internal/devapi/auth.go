package devapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

type ctxKey string

const userIDKey ctxKey = "ct.userID"

// WithUserID stores the authenticated user ID in the context.
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromCtx fetches the user ID from the context.
func UserIDFromCtx(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// issueToken creates a signed HS256 JWT for the given user.
func (s *Server) issueToken(userID int64) (string, error) {
	now := s.now()
	jti, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	claims := jwt.RegisteredClaims{
		ID:        jti.String(),
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.SigningKey)
}

// userIDFromToken verifies an HS256 token and returns its subject.
func (s *Server) userIDFromToken(tok string) (int64, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.cfg.SigningKey, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithLeeway(30*time.Second))
	if err != nil || !parsed.Valid {
		return 0, errors.New("invalid or expired token")
	}
	if s.store.isRevoked(tok) {
		return 0, errors.New("token revoked")
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("bad subject")
	}
	return id, nil
}

func bearerToken(r *http.Request) (string, error) {
	for _, v := range r.Header.Values("Authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			if t := strings.TrimSpace(v[7:]); t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}

// requireUser rejects requests without a valid, unrevoked token for an existing user.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		id, err := s.userIDFromToken(tok)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if _, err := s.store.user(id); err != nil {
			writeError(w, http.StatusUnauthorized, "unknown user")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
	})
}
