package observability

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownManager drains the HTTP server on SIGINT/SIGTERM and then runs
// registered cleanup hooks in reverse registration order, so resources close
// after the things that use them.
type ShutdownManager struct {
	logger  *Logger
	server  *http.Server
	timeout time.Duration

	mu    sync.Mutex
	hooks []shutdownHook
}

type shutdownHook struct {
	name string
	fn   func(context.Context) error
}

// NewShutdownManager creates a shutdown manager for the given server
func NewShutdownManager(logger *Logger, server *http.Server, timeout time.Duration) *ShutdownManager {
	if logger == nil {
		logger = NewLogger(InfoLevel, os.Stdout)
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{
		logger:  logger,
		server:  server,
		timeout: timeout,
	}
}

// RegisterShutdownFunc registers a named cleanup hook. Hooks run after the
// HTTP server has drained, last-registered first.
func (sm *ShutdownManager) RegisterShutdownFunc(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.hooks = append(sm.hooks, shutdownHook{name: name, fn: fn})
}

// WaitForShutdown blocks until a termination signal arrives, then drains the
// server and runs the hooks. The whole sequence shares one timeout.
func (sm *ShutdownManager) WaitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	sm.logger.Infof("Received signal %s, starting graceful shutdown", sig)

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	return sm.Shutdown(ctx)
}

// Shutdown drains the server and runs the hooks under the given context. It
// is called by WaitForShutdown and usable directly in tests.
func (sm *ShutdownManager) Shutdown(ctx context.Context) error {
	if sm.server != nil {
		sm.logger.Info("Draining HTTP server")
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.WithError(err).Error("HTTP server shutdown error")
			return fmt.Errorf("HTTP server shutdown failed: %w", err)
		}
	}

	sm.mu.Lock()
	hooks := make([]shutdownHook, len(sm.hooks))
	copy(hooks, sm.hooks)
	sm.mu.Unlock()

	var failed int
	for i := len(hooks) - 1; i >= 0; i-- {
		hook := hooks[i]
		if ctx.Err() != nil {
			sm.logger.Warn("Shutdown timeout reached before all hooks ran")
			return fmt.Errorf("shutdown timeout reached")
		}
		if err := hook.fn(ctx); err != nil {
			sm.logger.WithError(err).Errorf("Shutdown hook %q failed", hook.name)
			failed++
		} else {
			sm.logger.Infof("Shutdown hook %q complete", hook.name)
		}
	}

	if failed > 0 {
		return fmt.Errorf("shutdown completed with %d failed hooks", failed)
	}

	sm.logger.Info("Graceful shutdown complete")
	return nil
}
