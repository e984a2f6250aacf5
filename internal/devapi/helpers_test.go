package devapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/cardtrader/internal/crypto"
	"github.com/and161185/cardtrader/internal/model"
)

var fastHash = crypto.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func newTestServer(t *testing.T, mut ...func(*Config)) (*Server, *httptest.Server) {
	t.Helper()
	cfg := Config{SigningKey: []byte("test-signing-key"), Password: fastHash}
	for _, m := range mut {
		m(&cfg)
	}
	s := New(cfg, zaptest.NewLogger(t))
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return s, ts
}

func call(t *testing.T, ts *httptest.Server, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decodeAs[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(b, &v), string(b))
	return v
}

// signup registers and logs in a user, returning its token.
func signup(t *testing.T, ts *httptest.Server, name string) (model.User, string) {
	t.Helper()
	reg := model.Registration{Username: name, Email: name + "@example.com", Password: "pikachu123"}
	st, body := call(t, ts, http.MethodPost, "/register", "", reg)
	require.Equal(t, http.StatusCreated, st, string(body))

	st, body = call(t, ts, http.MethodPost, "/login", "", reg.Credentials())
	require.Equal(t, http.StatusOK, st, string(body))
	a := decodeAs[model.AuthResponse](t, body)
	require.NotEmpty(t, a.Token)
	return a.User, a.Token
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
