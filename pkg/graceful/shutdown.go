package graceful

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/suiflow/suiflow_service/pkg/logger"
)

// DefaultTimeout bounds the whole shutdown sequence
const DefaultTimeout = 30 * time.Second

// ShutdownFunc releases one component
type ShutdownFunc func(ctx context.Context) error

type component struct {
	name string
	fn   ShutdownFunc
}

// ShutdownManager stops the HTTP server first, then registered components in
// reverse registration order.
type ShutdownManager struct {
	server     *http.Server
	components []component
	timeout    time.Duration
	logger     *logger.Logger
}

func NewShutdownManager(server *http.Server, logger *logger.Logger) *ShutdownManager {
	return &ShutdownManager{
		server:  server,
		timeout: DefaultTimeout,
		logger:  logger,
	}
}

// Register adds a component to stop after the server.
func (sm *ShutdownManager) Register(name string, fn ShutdownFunc) {
	sm.components = append(sm.components, component{name: name, fn: fn})
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then shuts down.
func (sm *ShutdownManager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	sm.logger.Info("Shutting down gracefully...", "signal", sig.String())
	sm.Shutdown(context.Background())
}

// Shutdown runs the shutdown sequence once.
func (sm *ShutdownManager) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, sm.timeout)
	defer cancel()

	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.Error("Server forced shutdown", "error", err)
		}
	}

	for i := len(sm.components) - 1; i >= 0; i-- {
		c := sm.components[i]
		if err := c.fn(ctx); err != nil {
			sm.logger.Warn("Component shutdown error", "component", c.name, "error", err)
		}
	}

	sm.logger.Info("Shutdown complete")
}
