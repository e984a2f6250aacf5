// Command ct-devapi serves the in-memory marketplace backend for local development.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/and161185/cardtrader/internal/devapi"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses flags and serves the backend until SIGINT or SIGTERM.
func main() {
	addr := flag.String("addr", ":8080", "listen address")
	jwtKey := flag.String("jwt-key", "", "HS256 signing key (required)")
	tokenTTL := flag.Duration("token-ttl", time.Hour, "access token TTL")
	loginEvery := flag.Duration("login-every", 6*time.Second, "login attempt refill interval per client IP")
	loginBurst := flag.Int("login-burst", 10, "login attempts allowed in a burst per client IP")
	certFile := flag.String("tls-cert", "", "TLS certificate (PEM); plain HTTP when empty")
	keyFile := flag.String("tls-key", "", "TLS private key (PEM)")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", *addr),
	)

	if *jwtKey == "" {
		logger.Fatal("missing jwt signing key (--jwt-key)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := devapi.New(devapi.Config{
		SigningKey: []byte(*jwtKey),
		TokenTTL:   *tokenTTL,
		LoginRate:  rate.Every(*loginEvery),
		LoginBurst: *loginBurst,
	}, logger)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           api,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if *certFile != "" {
			logger.Info("listening (TLS)", zap.String("addr", *addr))
			errCh <- srv.ListenAndServeTLS(*certFile, *keyFile)
			return
		}
		logger.Info("listening", zap.String("addr", *addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("forced shutdown", zap.Error(err))
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
