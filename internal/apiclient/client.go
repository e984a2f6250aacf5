// Package apiclient is the single point of egress to the marketplace backend. Every call
// gets the bearer token attached, is classified on failure, announced through a notifier
// and, on 401, tears the session down before the error is returned.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/cardtrader/internal/errs"
	"github.com/and161185/cardtrader/internal/limiter"
	"github.com/and161185/cardtrader/internal/metrics"
	"github.com/and161185/cardtrader/internal/notify"
	"github.com/and161185/cardtrader/internal/repository"
)

// MaxTimeout is the fixed ceiling on a single request.
const MaxTimeout = 30 * time.Second

const (
	headerRequestID = "X-Request-ID"
	maxBody         = 8 << 20
)

// Config configures the pipeline.
type Config struct {
	BaseURL   string
	Timeout   time.Duration // <= 0 or above MaxTimeout means MaxTimeout
	RateLimit float64       // requests per second, 0 disables
	Burst     int
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport client. Its Timeout is left as given.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithNotifier sets where failure notifications go.
func WithNotifier(n notify.Notifier) Option { return func(c *Client) { c.notifier = n } }

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option { return func(c *Client) { c.metrics = m } }

// WithLimiter overrides the limiter built from Config.RateLimit.
func WithLimiter(l limiter.Limiter) Option { return func(c *Client) { c.limiter = l } }

// ErrResponseTooLarge is returned when a successful response body exceeds the read limit.
var ErrResponseTooLarge = errors.New("response too large")

// Client talks JSON over HTTP to the backend.
type Client struct {
	base     *url.URL
	timeout  time.Duration
	http     *http.Client
	log      *zap.Logger
	notifier notify.Notifier
	metrics  metrics.Recorder
	limiter  limiter.Limiter
	maxBody  int64

	mu    sync.RWMutex
	creds repository.Credentials
}

// New builds a Client for cfg.BaseURL.
func New(cfg Config, log *zap.Logger, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", cfg.BaseURL)
	}
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 || timeout > MaxTimeout {
		timeout = MaxTimeout
	}

	c := &Client{
		base:     base,
		timeout:  timeout,
		http:     &http.Client{Timeout: timeout},
		log:      log,
		notifier: notify.Nop{},
		metrics:  metrics.Nop{},
		limiter:  limiter.New(cfg.RateLimit, cfg.Burst),
		maxBody:  maxBody,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// SetCredentials binds the session the pipeline reads the token from and invalidates on 401.
func (c *Client) SetCredentials(cr repository.Credentials) {
	c.mu.Lock()
	c.creds = cr
	c.mu.Unlock()
}

func (c *Client) credentials() repository.Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds
}

func (c *Client) token() string {
	if cr := c.credentials(); cr != nil {
		return cr.Token()
	}
	return ""
}

// call describes one request.
type call struct {
	method string
	route  string // path template, used as the metrics label
	path   string
	query  url.Values
	body   any

	// bearer overrides the session token when non-empty.
	bearer string
	// silent calls are never announced and never invalidate the session.
	silent bool
}

// do runs c through the pipeline and returns the raw response body of a 2xx answer.
func (c *Client) do(ctx context.Context, cl call) ([]byte, error) {
	reqID := newRequestID()
	start := time.Now()

	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(rctx); err != nil {
		return nil, c.fail(ctx, cl, reqID, start, limiterError(ctx, err, c.timeout))
	}

	req, err := c.newRequest(rctx, cl, reqID)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(ctx, cl, reqID, start, transportError(ctx, err, c.timeout))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, c.fail(ctx, cl, reqID, start, transportError(ctx, err, c.timeout))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if int64(len(body)) > c.maxBody {
			c.metrics.ObserveRequest(cl.method, cl.route, "too_large", resp.StatusCode, time.Since(start))
			return nil, fmt.Errorf("%s: %w (limit %d bytes)", cl.route, ErrResponseTooLarge, c.maxBody)
		}
		d := time.Since(start)
		c.metrics.ObserveRequest(cl.method, cl.route, "ok", resp.StatusCode, d)
		c.log.Debug("request",
			zap.String("method", cl.method),
			zap.String("path", cl.path),
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", d),
			zap.String("request_id", reqID),
		)
		return body, nil
	}

	return nil, c.fail(ctx, cl, reqID, start, statusError(resp.StatusCode, body))
}

func (c *Client) newRequest(ctx context.Context, cl call, reqID string) (*http.Request, error) {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + cl.path
	u.RawQuery = ""
	if len(cl.query) > 0 {
		u.RawQuery = cl.query.Encode()
	}

	var rd io.Reader
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", cl.route, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), rd)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", cl.route, err)
	}
	req.Header.Set("Accept", "application/json")
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(headerRequestID, reqID)

	token := cl.bearer
	if token == "" {
		token = c.token()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// fail runs the failure side effects: session teardown on 401, metrics, log and a single
// notification. The error is always returned.
func (c *Client) fail(ctx context.Context, cl call, reqID string, start time.Time, e *errs.APIError) error {
	e.RequestID = reqID
	d := time.Since(start)
	c.metrics.ObserveRequest(cl.method, cl.route, string(e.Kind), e.Status, d)

	fields := []zap.Field{
		zap.String("method", cl.method),
		zap.String("path", cl.path),
		zap.Int("status", e.Status),
		zap.String("kind", string(e.Kind)),
		zap.Duration("duration", d),
		zap.String("request_id", reqID),
	}
	if e.Err != nil {
		fields = append(fields, zap.Error(e.Err))
	}

	if cl.silent {
		c.log.Debug("request failed", fields...)
		return e
	}

	if e.Kind == errs.KindAuth {
		if cr := c.credentials(); cr != nil {
			cr.Invalidate()
			c.metrics.RecordSessionInvalidated()
		}
	}

	// The caller gave up; nobody is waiting for a notification.
	if errors.Is(ctx.Err(), context.Canceled) {
		c.log.Debug("request canceled", fields...)
		return e
	}

	c.log.Warn("request failed", fields...)
	c.notifier.Notify(notification(e))
	e.Notified = true
	return e
}

func newRequestID() string {
	id, err := uuid.NewV4()
	if err != nil {
		return ""
	}
	return id.String()
}
