package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/cardtrader/internal/errs"
	"github.com/and161185/cardtrader/internal/limiter"
	"github.com/and161185/cardtrader/internal/notify"
)

type fakeCreds struct {
	mu          sync.Mutex
	token       string
	invalidated int
}

func (f *fakeCreds) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeCreds) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.invalidated++
}

func (f *fakeCreds) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invalidated
}

type observed struct {
	method, route, outcome string
	status                 int
}

type fakeMetrics struct {
	mu          sync.Mutex
	requests    []observed
	invalidated int
}

func (m *fakeMetrics) ObserveRequest(method, route, outcome string, status int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, observed{method, route, outcome, status})
}

func (m *fakeMetrics) RecordSessionInvalidated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated++
}

func newTestClient(t *testing.T, h http.Handler, opts ...Option) (*Client, *fakeCreds, *notify.Recorder) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	rec := &notify.Recorder{}
	creds := &fakeCreds{token: "tok"}
	c, err := New(Config{BaseURL: srv.URL}, nil, append([]Option{WithNotifier(rec)}, opts...)...)
	require.NoError(t, err)
	c.SetCredentials(creds)
	return c, creds, rec
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	t.Parallel()
	_, err := New(Config{BaseURL: "ftp://example.com"}, nil)
	require.Error(t, err)
	_, err = New(Config{BaseURL: "://"}, nil)
	require.Error(t, err)
}

func TestNew_TimeoutCeiling(t *testing.T) {
	t.Parallel()
	c, err := New(Config{BaseURL: "http://localhost", Timeout: time.Hour}, nil)
	require.NoError(t, err)
	require.Equal(t, MaxTimeout, c.timeout)

	c, err = New(Config{BaseURL: "http://localhost", Timeout: time.Second}, nil)
	require.NoError(t, err)
	require.Equal(t, time.Second, c.timeout)
}

func TestClient_RequestHeaders(t *testing.T) {
	t.Parallel()

	var got http.Header
	var body []byte
	c, _, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))

	require.NoError(t, c.AddUserCard(context.Background(), addCardReq()))
	require.Equal(t, "Bearer tok", got.Get("Authorization"))
	require.Equal(t, "application/json", got.Get("Accept"))
	require.Equal(t, "application/json", got.Get("Content-Type"))
	require.Len(t, got.Get(headerRequestID), 36)
	require.JSONEq(t, `{"cardId":5,"condition":"mint"}`, string(body))
	require.Zero(t, rec.Len())
}

func TestClient_AnonymousRequestHasNoAuthorization(t *testing.T) {
	t.Parallel()

	var auth []string
	var contentType string
	c, creds, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Values("Authorization")
		contentType = r.Header.Get("Content-Type")
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{}, "meta": map[string]int{"page": 1, "rpp": 20}})
	}))
	creds.Invalidate()

	_, err := c.ListCards(context.Background(), listParams())
	require.NoError(t, err)
	require.Empty(t, auth)
	require.Empty(t, contentType)
}

func TestClient_TokenReadPerRequest(t *testing.T) {
	t.Parallel()

	var seen []string
	c, creds, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{"id": 1, "username": "ash"})
	}))

	_, err := c.Me(context.Background())
	require.NoError(t, err)
	creds.mu.Lock()
	creds.token = "rotated"
	creds.mu.Unlock()
	_, err = c.Me(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"Bearer tok", "Bearer rotated"}, seen)
}

func TestClient_StatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      int
		body        string
		kind        errs.Kind
		sentinel    error
		title       string
		message     string
		invalidates bool
	}{
		{"unauthorized", 401, `{"message":"token expired"}`, errs.KindAuth, errs.ErrUnauthorized, "Authentication Error", "token expired", true},
		{"bad request prefers server message", 400, `{"message":"cardId is required"}`, errs.KindValidation, errs.ErrValidation, "Validation Error", "cardId is required", false},
		{"bad request without body", 400, ``, errs.KindValidation, errs.ErrValidation, "Validation Error", "bad request", false},
		{"not found", 404, `{"message":"card not found"}`, errs.KindNotFound, errs.ErrNotFound, "Not Found", "card not found", false},
		{"rate limited", 429, `{"error":"slow down"}`, errs.KindRateLimit, errs.ErrRateLimited, "Too Many Requests", "slow down", false},
		{"server error carries status", 503, `oops`, errs.KindServer, errs.ErrServer, "Server Error", "server error [status 503]", false},
		{"server error with message", 500, `{"message":"db down"}`, errs.KindServer, errs.ErrServer, "Server Error", "db down [status 500]", false},
		{"forbidden", 403, `{"message":"not your trade"}`, errs.KindHTTP, errs.ErrRequest, "Error", "not your trade", false},
		{"conflict", 409, ``, errs.KindHTTP, errs.ErrRequest, "Error", "conflict", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := &fakeMetrics{}
			c, creds, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}), WithMetrics(m))

			_, err := c.GetCard(context.Background(), 7)
			require.Error(t, err)
			require.ErrorIs(t, err, tc.sentinel)

			ae, ok := errs.As(err)
			require.True(t, ok)
			require.Equal(t, tc.kind, ae.Kind)
			require.Equal(t, tc.status, ae.Status)
			require.Equal(t, tc.message, ae.Message)
			require.NotEmpty(t, ae.RequestID)
			require.True(t, ae.Notified)
			require.True(t, errs.Announced(err))

			require.Equal(t, 1, rec.Len())
			n := rec.All()[0]
			require.Equal(t, notify.LevelError, n.Level)
			require.Equal(t, tc.title, n.Title)

			if tc.invalidates {
				require.Equal(t, 1, creds.count())
				require.Empty(t, creds.Token())
				require.Equal(t, 1, m.invalidated)
			} else {
				require.Zero(t, creds.count())
				require.Equal(t, "tok", creds.Token())
			}

			require.Len(t, m.requests, 1)
			require.Equal(t, observed{"GET", "/cards/{id}", string(tc.kind), tc.status}, m.requests[0])
		})
	}
}

func TestClient_UnauthorizedOnAnyEndpointInvalidates(t *testing.T) {
	t.Parallel()

	c, creds, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	ctx := context.Background()

	require.Error(t, c.DeleteTrade(ctx, 3))
	_, err := c.ListUserTrades(ctx, listParams())
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	require.Equal(t, 2, creds.count())
	require.Equal(t, 2, rec.Len())
}

func TestClient_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	rec := &notify.Recorder{}
	c, err := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil, WithNotifier(rec))
	require.NoError(t, err)

	_, err = c.Me(context.Background())
	require.ErrorIs(t, err, errs.ErrTimeout)
	require.NotErrorIs(t, err, errs.ErrNetwork)
	require.Equal(t, 1, rec.Len())
	require.Equal(t, "Timeout", rec.All()[0].Title)
}

func TestClient_NetworkFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	rec := &notify.Recorder{}
	c, err := New(Config{BaseURL: url}, nil, WithNotifier(rec))
	require.NoError(t, err)

	_, err = c.ListTrades(context.Background(), listParams())
	require.ErrorIs(t, err, errs.ErrNetwork)
	ae, _ := errs.As(err)
	require.Zero(t, ae.Status)
	require.Equal(t, 1, rec.Len())
	require.Equal(t, "Network Error", rec.All()[0].Title)
}

func TestClient_CallerCancelIsNotAnnounced(t *testing.T) {
	t.Parallel()

	c, creds, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Me(ctx)
	require.ErrorIs(t, err, errs.ErrNetwork)
	require.True(t, errors.Is(err, context.Canceled))
	require.False(t, errs.Announced(err))
	require.Zero(t, rec.Len())
	require.Zero(t, creds.count())
}

func TestClient_RevokeIsSilent(t *testing.T) {
	t.Parallel()

	var auth string
	c, creds, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusUnauthorized)
	}))

	err := c.Revoke(context.Background(), "old-token")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.Equal(t, "Bearer old-token", auth)
	require.Zero(t, rec.Len())
	require.Zero(t, creds.count())
	require.False(t, errs.Announced(err))

	require.NoError(t, c.Revoke(context.Background(), ""))
}

func TestClient_RateLimiterDeadline(t *testing.T) {
	t.Parallel()

	c, _, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": 1})
	}), WithLimiter(blockingLimiter{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Me(ctx)
	require.ErrorIs(t, err, errs.ErrTimeout)
	require.Equal(t, 1, rec.Len())
}

type blockingLimiter struct{}

func (blockingLimiter) Wait(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestClient_ExhaustedRateLimitIsTimeout(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	c, creds, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"id": 1, "username": "ash"})
	}), WithLimiter(limiter.New(0.01, 1)))

	_, err := c.Me(context.Background())
	require.NoError(t, err)

	// the next token is ~100s away, far past the 30s ceiling
	start := time.Now()
	_, err = c.Me(context.Background())
	require.Less(t, time.Since(start), time.Second)
	require.ErrorIs(t, err, errs.ErrTimeout)
	require.NotErrorIs(t, err, errs.ErrNetwork)
	require.True(t, errs.Announced(err))

	require.Equal(t, int32(1), hits.Load())
	require.Equal(t, 0, creds.count())
	got := rec.All()
	require.Len(t, got, 1)
	require.Equal(t, "Timeout", got[0].Title)
}

func TestClient_ResponseTooLarge(t *testing.T) {
	t.Parallel()

	body := []byte(`{"id":7,"username":"ash"}`)
	c, _, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))

	c.maxBody = int64(len(body))
	u, err := c.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ash", u.Username)

	c.maxBody = int64(len(body) - 1)
	_, err = c.Me(context.Background())
	require.ErrorIs(t, err, ErrResponseTooLarge)
	require.False(t, errs.Announced(err))
	require.Zero(t, rec.Len())
}
