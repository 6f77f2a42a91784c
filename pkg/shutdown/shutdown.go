// Package shutdown coordinates signal handling and graceful drain of
// the HTTP server and the store.
package shutdown

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"chatdb/pkg/logger"
)

// DrainTimeout bounds how long in-flight requests may run after a
// shutdown signal.
const DrainTimeout = 10 * time.Second

// NotifyContext returns a context canceled on SIGINT or SIGTERM.
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Drain shuts the server down gracefully, then runs each closer in
// order. Closer errors are logged, not returned; shutdown continues.
func Drain(srv *http.Server, closers ...func() error) {
	ctx, cancel := context.WithTimeout(context.Background(), DrainTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("http_shutdown_failed", zap.Error(err))
	}
	for _, c := range closers {
		if err := c(); err != nil {
			logger.Log.Error("closer_failed", zap.Error(err))
		}
	}
	logger.Log.Info("shutdown_complete")
}
