package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is the fixed poll interval while the dashboard is open.
const DefaultInterval = 30 * time.Second

var ErrClosed = errors.New("dashboard is closed")

// Painter receives every frame the controller produces, in order.
type Painter interface {
	Paint(Frame)
}

type PainterFunc func(Frame)

func (f PainterFunc) Paint(fr Frame) { f(fr) }

// ScrollLock is the host page's body-scroll lock.
type ScrollLock interface {
	Lock()
	Unlock()
}

// ScrollFlag is a ScrollLock that only records whether it is engaged, for
// hosts that apply the lock themselves.
type ScrollFlag struct {
	locked atomic.Bool
}

func (f *ScrollFlag) Lock()        { f.locked.Store(true) }
func (f *ScrollFlag) Unlock()      { f.locked.Store(false) }
func (f *ScrollFlag) Locked() bool { return f.locked.Load() }

// CycleObserver is told the duration and outcome of every completed cycle.
type CycleObserver interface {
	ObserveCycle(d time.Duration, err error)
}

// Handle stops the session that Start opened. Stopping a handle from an
// earlier session is a no-op.
type Handle interface {
	Stop()
}

// Controller owns one dashboard's lifecycle: Closed → Loading → Ready, back
// to Loading on every tick, and Closed again on Stop.
type Controller struct {
	loader   Loader
	painter  Painter
	interval time.Duration
	logger   *zap.SugaredLogger
	scroll   ScrollLock
	observer CycleObserver
	now      func() time.Time

	mu     sync.Mutex
	state  State
	model  *ViewModel
	view   ViewState
	gen    uint64
	cancel context.CancelFunc
}

type Option func(*Controller)

// WithInterval overrides the poll interval. Only tests use it.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithScrollLock(l ScrollLock) Option {
	return func(c *Controller) {
		if l != nil {
			c.scroll = l
		}
	}
}

func WithObserver(o CycleObserver) Option {
	return func(c *Controller) { c.observer = o }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func New(loader Loader, painter Painter, opts ...Option) *Controller {
	c := &Controller{
		loader:   loader,
		painter:  painter,
		interval: DefaultInterval,
		logger:   zap.NewNop().Sugar(),
		scroll:   &ScrollFlag{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start opens the dashboard: it locks scrolling, paints the loading frame,
// and starts the poll loop whose first cycle runs immediately. Calling Start
// while already open returns a handle to the current session. Cancelling ctx
// closes the dashboard the same way Stop does.
func (c *Controller) Start(ctx context.Context) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Closed {
		return &handle{c: c, gen: c.gen}
	}

	c.gen++
	gen := c.gen
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.model = nil
	c.view = ViewState{}
	c.state = Loading
	c.scroll.Lock()
	c.paintLocked()

	c.logger.Infow("dashboard opened", "generation", gen, "interval", c.interval)
	go c.run(runCtx, gen)
	return &handle{c: c, gen: gen}
}

// Stop closes the dashboard. The poll timer stops immediately; a cycle still
// in flight finishes in the background and its result is discarded. The
// scroll lock is always released.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

type handle struct {
	c    *Controller
	gen  uint64
	once sync.Once
}

func (h *handle) Stop() {
	h.once.Do(func() {
		h.c.mu.Lock()
		defer h.c.mu.Unlock()
		if h.c.gen != h.gen {
			return
		}
		h.c.stopLocked()
	})
}

func (c *Controller) stopLocked() {
	defer c.scroll.Unlock()

	if c.state == Closed {
		return
	}
	c.gen++
	c.cancel()
	c.cancel = nil
	c.state = Closed
	c.model = nil
	c.view = ViewState{}
	c.paintLocked()
	c.logger.Infow("dashboard closed")
}

// Toggle flips one detail panel and repaints without refetching.
func (c *Controller) Toggle(p Panel) (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Closed {
		return Frame{}, ErrClosed
	}
	switch p {
	case PanelSuites:
		c.view.SuitesExpanded = !c.view.SuitesExpanded
	case PanelPerformance:
		c.view.PerformanceExpanded = !c.view.PerformanceExpanded
	default:
		return Frame{}, fmt.Errorf("%w: %q", ErrUnknownPanel, p)
	}
	c.paintLocked()
	return c.frameLocked(), nil
}

func (c *Controller) Frame() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameLocked()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) run(ctx context.Context, gen uint64) {
	c.refresh(ctx, gen)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.closeGeneration(gen)
			return
		case <-ticker.C:
			if !c.enterLoading(gen) {
				return
			}
			c.refresh(ctx, gen)
		}
	}
}

// closeGeneration closes the dashboard when gen is still the open session.
// After Stop the generation has already moved on and this does nothing.
func (c *Controller) closeGeneration(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.stopLocked()
}

func (c *Controller) enterLoading(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		return false
	}
	c.state = Loading
	c.paintLocked()
	return true
}

func (c *Controller) refresh(ctx context.Context, gen uint64) {
	start := c.now()
	model, err := c.cycle(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		c.logger.Debugw("discarding refresh result after close", "generation", gen)
		return
	}
	if err != nil {
		c.logger.Warnw("refresh cycle failed", "error", err)
	}
	if model == nil {
		model = c.model
	}
	if model == nil {
		model = EmptyModel(c.now())
	}
	c.model = model
	c.state = Ready
	c.paintLocked()

	if c.observer != nil {
		c.observer.ObserveCycle(c.now().Sub(start), err)
	}
}

func (c *Controller) cycle(ctx context.Context) (model *ViewModel, err error) {
	defer func() {
		if r := recover(); r != nil {
			model, err = nil, fmt.Errorf("refresh cycle panicked: %v", r)
		}
	}()
	return Assemble(ctx, c.loader, c.now(), c.logger)
}

func (c *Controller) frameLocked() Frame {
	return Frame{State: c.state, Model: c.model, View: c.view}
}

func (c *Controller) paintLocked() {
	if c.painter == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorw("painter panicked", "state", c.state, "panic", r)
		}
	}()
	c.painter.Paint(c.frameLocked())
}
