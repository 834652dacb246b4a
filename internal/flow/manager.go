package flow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/machinepilot/machinepilot/internal/models"
)

// Manager owns one engine per chat session plus its auto-advance runner.
// It serializes access per session and cancels pending runners on reset so a
// stale auto-advance never fires against a freshly reset flow.
type Manager struct {
	mu      sync.Mutex
	catalog *Catalog
	actions *Registry
	store   SnapshotStore
	delay   time.Duration
	engines map[string]*managedEngine
}

type managedEngine struct {
	engine *Engine
	cancel context.CancelFunc
}

// NewManager creates a session manager.
func NewManager(catalog *Catalog, actions *Registry, store SnapshotStore, delay time.Duration) *Manager {
	return &Manager{
		catalog: catalog,
		actions: actions,
		store:   store,
		delay:   delay,
		engines: make(map[string]*managedEngine),
	}
}

// Engine returns the engine for a session, creating (and restoring) it on
// first access. A freshly created engine gets an auto-advance kick so flows
// whose initial steps chain automatically start moving immediately.
func (m *Manager) Engine(sessionID string) (*Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if me, ok := m.engines[sessionID]; ok {
		return me.engine, nil
	}
	eng, err := NewEngine(m.catalog, m.actions, m.store, sessionID)
	if err != nil {
		return nil, err
	}
	me := &managedEngine{engine: eng}
	m.engines[sessionID] = me
	m.kickLocked(me)
	return eng, nil
}

// Send applies an event to a session's engine and, when the step changed,
// kicks the auto-advance runner to chain any no-input follow-up steps.
func (m *Manager) Send(ctx context.Context, sessionID string, ev models.Event) (SendResult, error) {
	eng, err := m.Engine(sessionID)
	if err != nil {
		return SendResult{}, err
	}
	res, err := eng.Send(ctx, ev)
	if err != nil {
		return res, err
	}
	if res.StepChanged {
		m.mu.Lock()
		if me, ok := m.engines[sessionID]; ok {
			m.kickLocked(me)
		}
		m.mu.Unlock()
	}
	return res, nil
}

// Reset cancels any pending auto-advance for the session, resets the engine,
// and kicks a fresh runner.
func (m *Manager) Reset(sessionID string, seed *models.FlowContext) error {
	eng, err := m.Engine(sessionID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	me := m.engines[sessionID]
	if me.cancel != nil {
		me.cancel()
		me.cancel = nil
	}
	m.mu.Unlock()

	eng.Reset(seed)

	m.mu.Lock()
	m.kickLocked(me)
	m.mu.Unlock()
	return nil
}

// kickLocked replaces the session's runner with a fresh one when the current
// step can auto-advance. Caller holds m.mu.
func (m *Manager) kickLocked(me *managedEngine) {
	if !me.engine.CanAutoAdvance() {
		return
	}
	if me.cancel != nil {
		me.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	me.cancel = cancel
	runner := NewRunner(me.engine, m.delay)
	go func() {
		defer cancel()
		if err := runner.Drive(ctx); err != nil && err != context.Canceled {
			slog.Warn("Manager: auto-advance runner stopped", "sessionID", me.engine.SessionID(), "error", err)
		}
	}()
}

// Stop cancels all pending runners.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, me := range m.engines {
		if me.cancel != nil {
			me.cancel()
			me.cancel = nil
		}
	}
	slog.Debug("Manager stopped all runners")
}
