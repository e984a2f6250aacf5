// Package devapi is an in-memory implementation of the marketplace REST backend. It backs
// the pipeline, store and CLI tests and the local cmd/devapi binary; state lives in maps
// and is lost on exit.
package devapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/and161185/cardtrader/internal/crypto"
	"github.com/and161185/cardtrader/internal/limiter"
	"github.com/and161185/cardtrader/internal/metrics"
)

// Config configures the backend.
type Config struct {
	SigningKey []byte        // HS256 key, required
	TokenTTL   time.Duration // default 1h

	// LoginRate and LoginBurst throttle POST /login per client IP.
	LoginRate  rate.Limit
	LoginBurst int

	Password crypto.Params // default crypto.DefaultParams

	// Registry receives the backend metrics; nil creates a private one.
	Registry *prometheus.Registry

	// Now overrides the clock, for tests.
	Now func() time.Time
}

func (c *Config) setDefaults() {
	if c.TokenTTL <= 0 {
		c.TokenTTL = time.Hour
	}
	if c.LoginRate <= 0 {
		c.LoginRate = rate.Every(6 * time.Second)
	}
	if c.LoginBurst <= 0 {
		c.LoginBurst = 10
	}
	if c.Password == (crypto.Params{}) {
		c.Password = crypto.DefaultParams
	}
	if c.Registry == nil {
		c.Registry = prometheus.NewRegistry()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Server serves the marketplace REST surface.
type Server struct {
	cfg     Config
	log     *zap.Logger
	store   *store
	logins  *limiter.Keyed
	metrics *metrics.Collector
	router  chi.Router

	faultMu  sync.RWMutex
	failures map[string]int
	delays   map[string]time.Duration
}

// New builds a Server with the seeded catalog.
func New(cfg Config, log *zap.Logger) *Server {
	cfg.setDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		log:      log,
		store:    newStore(cfg.Now, seedCatalog(cfg.Now())),
		logins:   limiter.NewKeyed(cfg.LoginRate, cfg.LoginBurst, 15*time.Minute),
		metrics:  metrics.NewCollector(cfg.Registry, "devapi"),
		failures: map[string]int{},
		delays:   map[string]time.Duration{},
	}
	s.router = s.routes()
	return s
}

func (s *Server) now() time.Time { return s.cfg.Now() }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID, Recover(s.log), Logging(s.log), Metrics(s.metrics))

	r.Method(http.MethodGet, "/metrics", metrics.Handler(s.cfg.Registry))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	r.Group(func(r chi.Router) {
		r.Use(s.faults)

		r.Post("/register", s.register)
		r.Post("/login", s.login)
		r.Post("/logout", s.logout)

		r.Get("/cards", s.listCards)
		r.Get("/cards/{id}", s.getCard)
		r.Get("/trades", s.listTrades)
		r.Get("/trades/{id}", s.getTrade)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)

			r.Get("/me", s.me)
			r.Get("/me/cards", s.listUserCards)
			r.Post("/me/cards", s.addUserCard)
			r.Get("/me/trades", s.listUserTrades)

			r.Post("/trades", s.createTrade)
			r.Delete("/trades/{id}", s.deleteTrade)
			r.Patch("/trades/{id}/cancel", s.cancelTrade)
			r.Post("/trades/{id}/accept", s.acceptTrade)
			r.Post("/trades/{id}/reject", s.rejectTrade)
		})
	})
	return r
}

// SetFailure makes every request to path answer with status. Zero clears it.
func (s *Server) SetFailure(path string, status int) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	if status == 0 {
		delete(s.failures, path)
		return
	}
	s.failures[path] = status
}

// SetDelay holds every request to path for d before handling it. Zero clears it.
func (s *Server) SetDelay(path string, d time.Duration) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	if d <= 0 {
		delete(s.delays, path)
		return
	}
	s.delays[path] = d
}
