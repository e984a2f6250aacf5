package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/and161185/cardtrader/internal/errs"
	"github.com/and161185/cardtrader/internal/notify"
)

// transportError classifies a failure where no response was received. ctx is the caller's
// context, not the pipeline's deadline-bound one.
func transportError(ctx context.Context, err error, timeout time.Duration) *errs.APIError {
	if errors.Is(ctx.Err(), context.Canceled) {
		return &errs.APIError{Kind: errs.KindNetwork, Message: "request canceled", Err: context.Canceled}
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &errs.APIError{
			Kind:    errs.KindTimeout,
			Message: fmt.Sprintf("no response within %s", timeout),
			Err:     err,
		}
	}
	return &errs.APIError{Kind: errs.KindNetwork, Message: "could not reach the server", Err: err}
}

// limiterError classifies a failed wait for the outbound rate limiter. The request never
// left the client, so anything but a caller cancellation means the deadline could not be met.
func limiterError(ctx context.Context, err error, timeout time.Duration) *errs.APIError {
	if errors.Is(ctx.Err(), context.Canceled) {
		return &errs.APIError{Kind: errs.KindNetwork, Message: "request canceled", Err: context.Canceled}
	}
	return &errs.APIError{
		Kind:    errs.KindTimeout,
		Message: fmt.Sprintf("rate limit would delay the request past %s", timeout),
		Err:     err,
	}
}

// statusError classifies a non-2xx response.
func statusError(status int, body []byte) *errs.APIError {
	msg := serverMessage(body)
	e := &errs.APIError{Status: status, Message: msg}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = errs.KindAuth
	case status == http.StatusBadRequest:
		e.Kind = errs.KindValidation
	case status == http.StatusNotFound:
		e.Kind = errs.KindNotFound
	case status == http.StatusTooManyRequests:
		e.Kind = errs.KindRateLimit
	case status >= 500:
		e.Kind = errs.KindServer
		e.Message = fmt.Sprintf("%s [status %d]", orDefault(msg, "server error"), status)
	default:
		e.Kind = errs.KindHTTP
	}
	if e.Message == "" {
		e.Message = strings.ToLower(http.StatusText(status))
	}
	return e
}

// serverMessage extracts {"message": ...} (or {"error": ...}) from an error body.
func serverMessage(body []byte) string {
	var v struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return ""
	}
	return strings.TrimSpace(orDefault(v.Message, v.Error))
}

func notification(e *errs.APIError) notify.Notification {
	n := notify.Notification{Level: notify.LevelError, Title: "Error", Description: e.Message}
	switch e.Kind {
	case errs.KindAuth:
		n.Title, n.Description = "Authentication Error", "Please log in again"
	case errs.KindServer:
		n.Title, n.Description = "Server Error", "The API is temporarily unavailable. Please try again later."
	case errs.KindTimeout:
		n.Title = "Timeout"
	case errs.KindNetwork:
		n.Title = "Network Error"
	case errs.KindValidation:
		n.Title = "Validation Error"
	case errs.KindNotFound:
		n.Title = "Not Found"
	case errs.KindRateLimit:
		n.Title = "Too Many Requests"
	}
	return n
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
