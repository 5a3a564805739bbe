package dashboard

import (
	"errors"
	"fmt"
	"time"

	"github.com/portfolio/testdashboard/internal/stats"
)

// State is the controller's lifecycle state.
type State int

const (
	Closed State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Panel names one of the collapsible detail sections.
type Panel string

const (
	PanelSuites      Panel = "suites"
	PanelPerformance Panel = "performance"
)

var ErrUnknownPanel = errors.New("unknown panel")

func ParsePanel(s string) (Panel, error) {
	switch p := Panel(s); p {
	case PanelSuites, PanelPerformance:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPanel, s)
	}
}

// ViewState holds the expand/collapse toggles. They only affect rendering.
type ViewState struct {
	SuitesExpanded      bool `json:"suitesExpanded"`
	PerformanceExpanded bool `json:"performanceExpanded"`
}

// ViewModel is one refresh cycle's merged result. A new one is built every
// cycle; existing values are never mutated.
type ViewModel struct {
	Functional  stats.Result[stats.FunctionalStats]  `json:"functional"`
	Performance stats.Result[stats.PerformanceStats] `json:"performance"`
	Metadata    stats.Metadata                       `json:"metadata"`
	LoadedAt    time.Time                            `json:"loadedAt"`
}

// EmptyModel is a model with both feeds unavailable.
func EmptyModel(now time.Time) *ViewModel {
	return &ViewModel{
		Functional:  stats.Unavailable[stats.FunctionalStats](),
		Performance: stats.Unavailable[stats.PerformanceStats](),
		LoadedAt:    now,
	}
}

// Frame is everything a renderer needs to paint the dialog once. Model is nil
// until the first cycle of a session completes.
type Frame struct {
	State State
	Model *ViewModel
	View  ViewState
}
