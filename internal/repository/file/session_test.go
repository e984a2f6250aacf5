package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/cardtrader/internal/model"
	"github.com/and161185/cardtrader/internal/repository"
)

var _ repository.SessionStorage = (*SessionStorage)(nil)

func sample() model.PersistedSession {
	return model.PersistedSession{
		Token:           "header.payload.sig",
		User:            &model.User{ID: 42, Username: "ash", Email: "ash@example.com"},
		IsAuthenticated: true,
	}
}

func TestDefaultDir_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	require.Equal(t, filepath.Join(dir, "cardtrader"), DefaultDir())

	s := NewSessionStorage("", "", nil)
	require.Equal(t, filepath.Join(dir, "cardtrader", "auth-storage.json"), s.Path())
}

func TestSessionStorage_Plain_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewSessionStorage(filepath.Join(t.TempDir(), "nested"), model.SessionNamespace, nil)

	_, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Save(ctx, sample()))

	st, err := os.Stat(s.Path())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.Contains(t, string(raw), `"isAuthenticated": true`)
	require.NotContains(t, string(raw), "isLoading")

	got, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sample(), got)

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))
	_, ok, err = s.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSessionStorage_Sealed_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	s := NewSessionStorage(dir, model.SessionNamespace, []byte("correct horse"))

	require.NoError(t, s.Save(ctx, sample()))
	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.False(t, strings.Contains(string(raw), "header.payload.sig"), "token must not be stored in clear")

	got, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sample(), got)

	wrong := NewSessionStorage(dir, model.SessionNamespace, []byte("battery staple"))
	_, _, err = wrong.Load(ctx)
	require.ErrorIs(t, err, ErrBadPassphrase)
}

func TestSessionStorage_CorruptFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := NewSessionStorage(dir, "ns", nil)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{broken"), 0o600))
	_, _, err := s.Load(context.Background())
	require.Error(t, err)
}
