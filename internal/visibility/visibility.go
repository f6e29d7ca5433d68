// Package visibility gates the diagnostic display of a page view's metrics.
//
// A Controller is a two-state machine (hidden, shown) driven by an operator
// toggle and a one-way dismiss. Independently of that state, a Gate decides
// on every render whether the deployment mode allows any output at all.
package visibility

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/torosent/vitalscope/internal/severity"
	"github.com/torosent/vitalscope/internal/vitals"
)

// State is the operator-controlled display state.
type State int

const (
	Hidden State = iota
	Shown
)

func (s State) String() string {
	if s == Shown {
		return "shown"
	}
	return "hidden"
}

// Gate reports whether the deployment is in diagnostic mode.
type Gate interface {
	Diagnostic() bool
}

// GateFunc adapts a function to Gate.
type GateFunc func() bool

func (f GateFunc) Diagnostic() bool { return f() }

// Mode names a deployment mode.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// Diagnostic reports whether m enables the diagnostic surface.
func (m Mode) Diagnostic() bool {
	switch Mode(strings.ToLower(strings.TrimSpace(string(m)))) {
	case ModeDevelopment, "diagnostic", "dev":
		return true
	default:
		return false
	}
}

// ModeGate is a Gate backed by a mode that may change at runtime.
type ModeGate struct {
	mode atomic.Value // Mode
}

// NewModeGate creates a gate starting in mode m.
func NewModeGate(m Mode) *ModeGate {
	g := &ModeGate{}
	g.mode.Store(m)
	return g
}

// Set replaces the current mode.
func (g *ModeGate) Set(m Mode) {
	g.mode.Store(m)
}

// Mode returns the current mode.
func (g *ModeGate) Mode() Mode {
	m, _ := g.mode.Load().(Mode)
	return m
}

func (g *ModeGate) Diagnostic() bool {
	return g.Mode().Diagnostic()
}

// View is what the display sink renders.
type View struct {
	Snapshot vitals.Snapshot
	Ratings  []severity.Rating
}

// Controller holds the display state of one page view.
type Controller struct {
	gate  Gate
	mu    sync.Mutex
	state State
}

// NewController creates a hidden controller guarded by gate.
func NewController(gate Gate) *Controller {
	if gate == nil {
		gate = GateFunc(func() bool { return false })
	}
	return &Controller{gate: gate}
}

// State returns the current display state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Toggle flips between hidden and shown and returns the new state.
func (c *Controller) Toggle() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Shown {
		c.state = Hidden
	} else {
		c.state = Shown
	}
	return c.state
}

// Dismiss forces the hidden state. It is a no-op while hidden.
func (c *Controller) Dismiss() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Hidden
	return c.state
}

// Enabled reports whether the gate currently allows output.
func (c *Controller) Enabled() bool {
	return c.gate.Diagnostic()
}

// View builds the renderable view of snap. It returns false, meaning render
// nothing, when the gate is closed, the state is hidden or there is no
// snapshot. The gate is consulted on every call.
func (c *Controller) View(snap vitals.Snapshot, ok bool) (View, bool) {
	if !c.gate.Diagnostic() {
		return View{}, false
	}
	if c.State() != Shown || !ok {
		return View{}, false
	}
	return View{Snapshot: snap, Ratings: severity.RateAll(snap)}, true
}
