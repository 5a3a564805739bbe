package sessions

import (
	"time"

	"github.com/portfolio/testdashboard/internal/dashboard"
	"github.com/portfolio/testdashboard/internal/view"
)

// Session is one open dashboard dialog: a controller polling the feeds, the
// buffer its frames are painted into, and the scroll lock it holds on the
// host page.
type Session struct {
	ID        string
	CreatedAt time.Time
	// ExpiresAt is guarded by the Manager.
	ExpiresAt time.Time

	Controller *dashboard.Controller
	Buffer     *view.FrameBuffer
	Scroll     *dashboard.ScrollFlag

	handle dashboard.Handle
}

// HTML returns the session's latest rendered frame.
func (s *Session) HTML() []byte {
	return s.Buffer.Bytes()
}

func (s *Session) ScrollLocked() bool {
	return s.Scroll.Locked()
}
