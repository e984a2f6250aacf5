// Package limiter provides token-bucket limiters for outbound requests and for per-key
// login throttling in the dev backend.
package limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter gates outbound requests.
type Limiter interface {
	// Wait blocks until a request may proceed or ctx is done.
	Wait(ctx context.Context) error
}

type nop struct{}

func (nop) Wait(context.Context) error { return nil }

// New returns a limiter allowing rps requests per second with the given burst.
// rps <= 0 disables limiting.
func New(rps float64, burst int) Limiter {
	if rps <= 0 {
		return nop{}
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Keyed throttles independently per key (e.g. per client IP).
type Keyed struct {
	mu        sync.Mutex
	rate      rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	entries   map[string]*entry
	now       func() time.Time
}

// NewKeyed constructs a per-key limiter. Keys idle for longer than idleTTL are forgotten.
func NewKeyed(r rate.Limit, burst int, idleTTL time.Duration) *Keyed {
	return &Keyed{
		rate:    r,
		burst:   burst,
		idleTTL: idleTTL,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Allow reports whether a request for key may proceed now and, if not, when to retry.
func (k *Keyed) Allow(key string) (bool, time.Duration) {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	k.sweep(now)

	e, ok := k.entries[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(k.rate, k.burst)}
		k.entries[key] = e
	}
	e.lastSeen = now

	r := e.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

func (k *Keyed) sweep(now time.Time) {
	if k.idleTTL <= 0 || now.Sub(k.lastSweep) < k.idleTTL {
		return
	}
	k.lastSweep = now
	for key, e := range k.entries {
		if now.Sub(e.lastSeen) > k.idleTTL {
			delete(k.entries, key)
		}
	}
}
