// Package core runs the bot's long-lived modules: the gateway connection,
// the proposal sync schedule and the DRep vote notifier.
package core

import (
	"context"
	"sync"
	"time"

	"github.com/juju/errors"
	"go.uber.org/zap"
)

// DefaultStopTimeout bounds how long one module may take to stop.
const DefaultStopTimeout = 10 * time.Second

// Module is a part of the bot with its own goroutines or connections.
type Module interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context)
}

// Manager starts modules in the order given and stops the running ones in
// reverse. Modules are fixed at construction.
type Manager struct {
	log         *zap.Logger
	modules     []Module
	stopTimeout time.Duration

	mu      sync.Mutex
	running []Module
}

// NewManager skips nil modules so optional ones can be passed unconditionally.
func NewManager(log *zap.Logger, mods ...Module) *Manager {
	m := &Manager{log: log, stopTimeout: DefaultStopTimeout}
	for _, mod := range mods {
		if mod != nil {
			m.modules = append(m.modules, mod)
		}
	}
	return m
}

// Start brings every module up. When one fails, the modules already running
// are stopped before the error is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.running) > 0 {
		return errors.AlreadyExistsf("running modules")
	}
	for _, mod := range m.modules {
		if err := mod.Start(ctx); err != nil {
			m.unwind(ctx)
			return errors.Annotatef(err, "module %s", mod.Name())
		}
		m.log.Info("module started", zap.String("module", mod.Name()))
		m.running = append(m.running, mod)
	}
	return nil
}

// Stop shuts the running modules down, newest first.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unwind(ctx)
}

// Running lists the names of started modules in start order.
func (m *Manager) Running() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.running))
	for _, mod := range m.running {
		names = append(names, mod.Name())
	}
	return names
}

func (m *Manager) unwind(ctx context.Context) {
	for i := len(m.running) - 1; i >= 0; i-- {
		mod := m.running[i]
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.stopTimeout)
		began := time.Now()
		mod.Stop(stopCtx)
		cancel()
		m.log.Info("module stopped", zap.String("module", mod.Name()), zap.Duration("took", time.Since(began)))
	}
	m.running = nil
}
