package view

import (
	"bytes"
	"sync"

	"go.uber.org/zap"

	"github.com/portfolio/testdashboard/internal/dashboard"
)

// FrameBuffer is a dashboard.Painter that keeps the latest rendered frame of
// one session, ready to be served.
type FrameBuffer struct {
	renderer  *Renderer
	sessionID string
	logger    *zap.SugaredLogger

	mu      sync.RWMutex
	html    []byte
	state   dashboard.State
	version uint64
}

func NewFrameBuffer(r *Renderer, sessionID string, logger *zap.SugaredLogger) *FrameBuffer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &FrameBuffer{renderer: r, sessionID: sessionID, logger: logger}
}

// Paint renders f. A frame that fails to render is logged and the previous
// output is kept.
func (b *FrameBuffer) Paint(f dashboard.Frame) {
	var buf bytes.Buffer
	if err := b.renderer.Render(&buf, b.sessionID, f); err != nil {
		b.logger.Errorw("failed to render dashboard frame", "session", b.sessionID, "state", f.State, "error", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.html = buf.Bytes()
	b.state = f.State
	b.version++
}

// Bytes returns the last rendered frame. The slice must not be modified.
func (b *FrameBuffer) Bytes() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.html
}

func (b *FrameBuffer) State() dashboard.State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Version counts successful paints.
func (b *FrameBuffer) Version() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}
