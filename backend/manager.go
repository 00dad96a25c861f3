package backend

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/kbukum/bizbackend/errors"
	"github.com/kbukum/bizbackend/logger"
	"github.com/kbukum/bizbackend/observability"
)

// State is the Manager lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the Manager for health reporting.
type Status struct {
	Kind      Kind   `json:"kind"`
	Name      string `json:"name"`
	State     string `json:"state"`
	Available bool   `json:"available"`
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithDefaultKind overrides the kind used when no preference is stored.
func WithDefaultKind(kind Kind) ManagerOption {
	return func(m *Manager) { m.defaultKind = kind }
}

// WithLogger sets the Manager logger.
func WithLogger(l *logger.Logger) ManagerOption {
	return func(m *Manager) { m.log = l }
}

// Manager owns the active adapter. It selects it from the persisted
// preference at startup, swaps it on request and notifies subscribers.
type Manager struct {
	registry    *Registry
	prefs       PreferenceStore
	defaultKind Kind
	log         *logger.Logger

	initGroup singleflight.Group
	// switchMu serialises initialisation and switches.
	switchMu sync.Mutex

	mu     sync.RWMutex
	state  State
	active Provider
	// live is true while active has been initialised and not cleaned up.
	live bool

	subs       *Subscribers[Provider]
	background sync.WaitGroup
}

// NewManager creates a Manager. prefs may be nil, in which case the selection
// is not persisted.
func NewManager(registry *Registry, prefs PreferenceStore, opts ...ManagerOption) *Manager {
	m := &Manager{
		registry:    registry,
		prefs:       prefs,
		defaultKind: DefaultKind,
		log:         logger.Get("backend"),
		subs:        NewSubscribers[Provider]("provider-change"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Initialize selects and initialises the preferred adapter. Concurrent
// callers share one run; once Ready, further calls return immediately.
// The shared run is detached from ctx cancellation, so a caller that gives
// up returns ctx.Err() without failing the others.
// A failed run leaves the Manager Uninitialized so it can be retried.
func (m *Manager) Initialize(ctx context.Context) error {
	if m.State() == StateReady {
		return nil
	}
	ch := m.initGroup.DoChan("initialize", func() (interface{}, error) {
		changed, err := m.initialize(context.WithoutCancel(ctx))
		if changed != nil {
			m.subs.Notify(changed)
		}
		return nil, err
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// initialize returns the adapter to announce when it replaced a provisional one.
func (m *Manager) initialize(ctx context.Context) (Provider, error) {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	if m.State() == StateReady {
		return nil, nil
	}
	m.setState(StateInitializing)

	ctx, span := observability.StartSpan(ctx, "backend.initialize")
	defer span.End()

	kind, stored := m.preferredKind(ctx)
	p, err := m.start(ctx, kind)
	if err != nil && kind != m.defaultKind {
		m.log.Warn("preferred backend failed to initialize, using default", logger.Fields(
			logger.FieldProvider, kind,
			"default", m.defaultKind,
			logger.FieldError, err.Error(),
		))
		kind, stored = m.defaultKind, false
		p, err = m.start(ctx, kind)
	}
	if err != nil {
		m.setState(StateUninitialized)
		observability.SetSpanError(ctx, err)
		return nil, fmt.Errorf("initialize backend %q: %w", kind, err)
	}

	if !stored {
		m.persist(ctx, kind)
	}
	prev := m.install(p)
	observability.SetSpanAttribute(ctx, "backend.kind", string(kind))
	m.log.Info("backend ready", logger.Fields(logger.FieldProvider, kind, "name", p.Name()))

	if prev != nil && prev != p {
		return p, nil
	}
	return nil, nil
}

// SetProvider switches the active adapter to kind. The current adapter is
// cleaned up first. If the target fails to initialise, the previous adapter
// is re-initialised and stays active, and the error is returned.
// Subscribers run after the switch lock is released, so they may call back
// into the Manager.
func (m *Manager) SetProvider(ctx context.Context, kind Kind) error {
	if !m.registry.Has(kind) {
		return errors.InvalidInput("kind", fmt.Sprintf("backend %q is not registered", kind))
	}
	target, err := m.switchTo(ctx, kind)
	if err != nil {
		return err
	}
	if target != nil {
		m.subs.Notify(target)
	}
	return nil
}

func (m *Manager) switchTo(ctx context.Context, kind Kind) (Provider, error) {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	ctx, span := observability.StartSpan(ctx, "backend.switch")
	defer span.End()
	observability.SetSpanAttribute(ctx, "backend.kind", string(kind))

	m.mu.RLock()
	prev, wasLive := m.active, m.live
	m.mu.RUnlock()

	if prev != nil && wasLive && prev.Kind() == kind {
		return nil, nil
	}

	target, err := m.registry.Get(kind)
	if err != nil {
		return nil, err
	}

	if prev != nil && wasLive {
		if err := prev.Cleanup(ctx); err != nil {
			m.log.Warn("backend cleanup failed", logger.Fields(logger.FieldProvider, prev.Kind(), logger.FieldError, err.Error()))
		}
		m.mu.Lock()
		m.live = false
		m.mu.Unlock()
	}

	if err := target.Initialize(ctx); err != nil {
		observability.SetSpanError(ctx, err)
		m.rollback(ctx, prev, wasLive)
		return nil, fmt.Errorf("switch backend to %q: %w", kind, err)
	}

	m.install(target)
	m.persist(ctx, kind)
	m.log.Info("backend switched", logger.Fields(logger.FieldProvider, kind, "name", target.Name()))
	return target, nil
}

// rollback restores prev after a failed switch. prev stays the active adapter
// even if it cannot be re-initialised.
func (m *Manager) rollback(ctx context.Context, prev Provider, wasLive bool) {
	if prev == nil || !wasLive {
		return
	}
	if err := prev.Initialize(ctx); err != nil {
		m.log.Error("rollback failed, backend not initialized", logger.Fields(
			logger.FieldProvider, prev.Kind(),
			logger.FieldError, err.Error(),
		))
		m.setState(StateUninitialized)
		return
	}
	m.install(prev)
	m.log.Warn("backend switch rolled back", logger.Fields(logger.FieldProvider, prev.Kind()))
}

// Provider returns the active adapter. It never blocks and never returns nil:
// before initialisation completes it installs the default adapter and starts
// Initialize in the background, so the returned adapter may not be ready yet.
func (m *Manager) Provider() Provider {
	m.mu.RLock()
	p := m.active
	m.mu.RUnlock()
	if p != nil {
		return p
	}

	m.mu.Lock()
	if m.active != nil {
		p = m.active
		m.mu.Unlock()
		return p
	}
	p, err := m.registry.Get(m.defaultKind)
	if err != nil {
		p = Unavailable{ProviderKind: m.defaultKind, Reason: err.Error()}
	}
	m.active = p
	m.mu.Unlock()

	m.log.Warn("backend requested before initialization, starting default in background",
		logger.Fields(logger.FieldProvider, m.defaultKind))

	m.background.Add(1)
	go func() {
		defer m.background.Done()
		if err := m.Initialize(context.Background()); err != nil {
			m.log.Error("background initialization failed", logger.Fields(logger.FieldError, err.Error()))
		}
	}()
	return p
}

// WaitBackground blocks until background initialisations started by Provider finish.
func (m *Manager) WaitBackground() {
	m.background.Wait()
}

// OnProviderChange registers fn to run after every successful switch, in
// registration order.
func (m *Manager) OnProviderChange(fn func(Provider)) (unsubscribe func()) {
	return m.subs.Add(fn)
}

// Kinds returns the registered kinds.
func (m *Manager) Kinds() []Kind {
	return m.registry.Kinds()
}

// Status reports the active adapter and state.
func (m *Manager) Status(ctx context.Context) Status {
	m.mu.RLock()
	p, state := m.active, m.state
	m.mu.RUnlock()

	st := Status{State: state.String()}
	if p != nil {
		st.Kind = p.Kind()
		st.Name = p.Name()
		st.Available = state == StateReady && p.IsAvailable(ctx)
	}
	return st
}

// Shutdown cleans up the active adapter.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	m.mu.Lock()
	p, live := m.active, m.live
	m.live = false
	m.state = StateUninitialized
	m.mu.Unlock()

	if p == nil || !live {
		return nil
	}
	return p.Cleanup(ctx)
}

func (m *Manager) start(ctx context.Context, kind Kind) (Provider, error) {
	p, err := m.registry.Get(kind)
	if err != nil {
		return nil, err
	}
	if err := p.Initialize(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// install makes p the live active adapter and returns the one it replaced.
func (m *Manager) install(p Provider) Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.active
	m.active = p
	m.live = true
	m.state = StateReady
	return prev
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) preferredKind(ctx context.Context) (Kind, bool) {
	if m.prefs == nil {
		return m.defaultKind, false
	}
	kind, ok, err := m.prefs.Load(ctx)
	if err != nil {
		m.log.Warn("failed to load backend preference", logger.Fields(logger.FieldError, err.Error()))
		return m.defaultKind, false
	}
	if !ok {
		return m.defaultKind, false
	}
	if !m.registry.Has(kind) {
		m.log.Warn("stored backend preference is not registered", logger.Fields(logger.FieldProvider, kind))
		return m.defaultKind, false
	}
	return kind, true
}

// persist stores kind. A failure is logged; the switch itself stands.
func (m *Manager) persist(ctx context.Context, kind Kind) {
	if m.prefs == nil {
		return
	}
	if err := m.prefs.Save(ctx, kind); err != nil {
		m.log.Warn("failed to persist backend preference", logger.Fields(
			logger.FieldProvider, kind,
			logger.FieldError, err.Error(),
		))
	}
}
