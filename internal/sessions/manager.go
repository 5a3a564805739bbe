package sessions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/portfolio/testdashboard/internal/dashboard"
	"github.com/portfolio/testdashboard/internal/view"
)

const (
	// DefaultIdleTTL closes a dialog whose page stopped asking for frames,
	// e.g. because the tab was closed without closing the dashboard.
	DefaultIdleTTL = 2 * time.Minute

	cleanupInterval = 15 * time.Second
)

var ErrNotFound = errors.New("session not found")

// Observer is told the number of open sessions whenever it changes.
type Observer interface {
	SetSessionsActive(n int)
}

type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	loader         dashboard.Loader
	renderer       *view.Renderer
	idleTTL        time.Duration
	controllerOpts []dashboard.Option
	observer       Observer
	logger         *zap.SugaredLogger
	now            func() time.Time
}

type Option func(*Manager)

func WithIdleTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.idleTTL = d
		}
	}
}

// WithControllerOptions are applied to every session's controller.
func WithControllerOptions(opts ...dashboard.Option) Option {
	return func(m *Manager) { m.controllerOpts = append(m.controllerOpts, opts...) }
}

func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(loader dashboard.Loader, renderer *view.Renderer, opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		loader:   loader,
		renderer: renderer,
		idleTTL:  DefaultIdleTTL,
		logger:   zap.NewNop().Sugar(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open starts a new dashboard session. The session outlives ctx's
// cancellation; it ends on Close, on idle expiry, or on CloseAll.
func (m *Manager) Open(ctx context.Context) *Session {
	id := ulid.Make().String()
	logger := m.logger.With("session", id)

	scroll := &dashboard.ScrollFlag{}
	buf := view.NewFrameBuffer(m.renderer, id, logger)
	opts := append([]dashboard.Option{
		dashboard.WithScrollLock(scroll),
		dashboard.WithLogger(logger),
	}, m.controllerOpts...)
	ctrl := dashboard.New(m.loader, buf, opts...)

	now := m.now()
	s := &Session{
		ID:         id,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.idleTTL),
		Controller: ctrl,
		Buffer:     buf,
		Scroll:     scroll,
	}
	s.handle = ctrl.Start(context.WithoutCancel(ctx))

	m.mu.Lock()
	m.sessions[id] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.observe(n)
	return s
}

// Get returns an open session and pushes its expiry back by the idle TTL.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.ExpiresAt = m.now().Add(m.idleTTL)
	return s, nil
}

// Close stops the session's controller and forgets it. The returned session
// holds the final, closed frame.
func (m *Manager) Close(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	s.handle.Stop()
	m.observe(n)
	return s, nil
}

// CloseAll closes every open session. Used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	open := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range open {
		s.handle.Stop()
	}
	if len(open) > 0 {
		m.logger.Infow("closed all dashboard sessions", "count", len(open))
	}
	m.observe(0)
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Run reaps idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkExpired()
		}
	}
}

func (m *Manager) checkExpired() {
	now := m.now()

	m.mu.RLock()
	var expired []string
	for id, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		m.logger.Infow("dashboard session idle, closing", "session", id)
		m.Close(id)
	}
}

func (m *Manager) observe(n int) {
	if m.observer != nil {
		m.observer.SetSessionsActive(n)
	}
}
