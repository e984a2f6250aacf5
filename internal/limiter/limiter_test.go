package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNew_DisabledIsNop(t *testing.T) {
	t.Parallel()
	l := New(0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, l.Wait(ctx))
}

func TestNew_WaitHonoursContext(t *testing.T) {
	t.Parallel()
	l := New(0.001, 1)
	require.NoError(t, l.Wait(context.Background())) // burst token

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx))
}

func TestKeyed_AllowPerKey(t *testing.T) {
	t.Parallel()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	k := NewKeyed(rate.Every(time.Minute), 2, 10*time.Minute)
	k.now = func() time.Time { return now }

	ok, _ := k.Allow("1.2.3.4")
	require.True(t, ok)
	ok, _ = k.Allow("1.2.3.4")
	require.True(t, ok)
	ok, retry := k.Allow("1.2.3.4")
	require.False(t, ok)
	require.Greater(t, retry, time.Duration(0))
	require.LessOrEqual(t, retry, time.Minute)

	// other key unaffected
	ok, _ = k.Allow("5.6.7.8")
	require.True(t, ok)

	// refill
	now = now.Add(time.Minute)
	ok, _ = k.Allow("1.2.3.4")
	require.True(t, ok)
}

func TestKeyed_SweepsIdleKeys(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	k := NewKeyed(rate.Every(time.Second), 1, time.Minute)
	k.now = func() time.Time { return now }

	k.Allow("a")
	k.Allow("b")
	require.Equal(t, 2, k.Len())

	now = now.Add(2 * time.Minute)
	k.Allow("c")
	require.Equal(t, 1, k.Len())
}
