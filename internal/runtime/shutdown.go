// Package runtime coordinates process shutdown for long-running toolgate
// commands: a signal cancels the serving context, then cleanup handlers run.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joss/toolgate/internal/logging"
)

// ShutdownFunc is a cleanup step run during shutdown.
type ShutdownFunc func(ctx context.Context) error

type namedHandler struct {
	name string
	fn   ShutdownFunc
}

// ShutdownManager cancels its context on the first signal or Shutdown call
// and runs registered handlers once, last registered first.
type ShutdownManager struct {
	mu       sync.Mutex
	handlers []namedHandler
	timeout  time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
	err      error
	log      *logging.Logger
}

// DefaultShutdownTimeout bounds the total time spent in handlers.
const DefaultShutdownTimeout = 10 * time.Second

// NewShutdownManager creates a manager whose handlers share one timeout.
func NewShutdownManager(timeout time.Duration) *ShutdownManager {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ShutdownManager{
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		log:     logging.New("runtime"),
	}
}

// Register adds a cleanup handler.
func (m *ShutdownManager) Register(name string, fn ShutdownFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, namedHandler{name: name, fn: fn})
}

// RegisterSimple adds a cleanup handler that cannot fail.
func (m *ShutdownManager) RegisterSimple(name string, fn func()) {
	m.Register(name, func(context.Context) error {
		fn()
		return nil
	})
}

// Context is cancelled when shutdown begins.
func (m *ShutdownManager) Context() context.Context {
	return m.ctx
}

// Done is closed once all handlers have returned or timed out.
func (m *ShutdownManager) Done() <-chan struct{} {
	return m.done
}

// ListenForSignals cancels the context on SIGINT or SIGTERM. Handlers still
// run only when Shutdown is called, so the caller can finish in-flight work.
// The returned stop function releases the signal subscription.
func (m *ShutdownManager) ListenForSignals() (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT)
	quit := make(chan struct{})

	go func() {
		select {
		case sig := <-sigs:
			m.log.Info("signal_received", map[string]any{"signal": sig.String()})
			m.cancel()
		case <-quit:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigs)
			close(quit)
		})
	}
}

// Shutdown cancels the context and runs handlers once. Later calls wait for
// the first to finish and return the same error.
func (m *ShutdownManager) Shutdown() error {
	m.once.Do(func() {
		defer close(m.done)
		m.cancel()
		m.err = m.run()
	})
	<-m.done
	return m.err
}

func (m *ShutdownManager) run() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.mu.Lock()
	handlers := make([]namedHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	var errs []error
	for i := len(handlers) - 1; i >= 0; i-- {
		h := handlers[i]
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("%s: skipped after %v timeout", h.name, m.timeout))
			continue
		}

		start := time.Now()
		if err := h.fn(ctx); err != nil {
			m.log.Warn("shutdown_handler_failed", map[string]any{"handler": h.name}, err)
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		m.log.TimedEvent("shutdown_handler_done", start, map[string]any{"handler": h.name})
	}
	return errors.Join(errs...)
}
