package visibility

import (
	"testing"

	"github.com/torosent/vitalscope/internal/vitals"
)

func diagnostic() Gate { return GateFunc(func() bool { return true }) }

func TestToggle(t *testing.T) {
	c := NewController(diagnostic())
	if c.State() != Hidden {
		t.Fatalf("initial state = %s", c.State())
	}
	if got := c.Toggle(); got != Shown {
		t.Fatalf("toggle from hidden = %s, want shown", got)
	}
	if got := c.Toggle(); got != Hidden {
		t.Fatalf("second toggle = %s, want hidden", got)
	}
}

func TestDismiss(t *testing.T) {
	c := NewController(diagnostic())
	if got := c.Dismiss(); got != Hidden {
		t.Fatalf("dismiss from hidden = %s", got)
	}
	c.Toggle()
	if got := c.Dismiss(); got != Hidden {
		t.Fatalf("dismiss from shown = %s, want hidden", got)
	}
	if got := c.Dismiss(); got != Hidden {
		t.Fatalf("repeated dismiss = %s", got)
	}
}

func TestViewRequiresShownAndSnapshot(t *testing.T) {
	c := NewController(diagnostic())
	snap := vitals.Snapshot{FCP: 1200, TTFB: 600}

	if _, ok := c.View(snap, true); ok {
		t.Fatal("hidden controller produced a view")
	}
	c.Toggle()
	if _, ok := c.View(vitals.Snapshot{}, false); ok {
		t.Fatal("missing snapshot produced a view")
	}
	view, ok := c.View(snap, true)
	if !ok {
		t.Fatal("expected a view")
	}
	if len(view.Ratings) != len(vitals.Metrics) {
		t.Fatalf("ratings = %d", len(view.Ratings))
	}
}

func TestViewNeverRendersOutsideDiagnosticMode(t *testing.T) {
	gate := NewModeGate(ModeProduction)
	c := NewController(gate)
	snap := vitals.Snapshot{FCP: 1}

	for i := 0; i < 4; i++ {
		c.Toggle()
		if _, ok := c.View(snap, true); ok {
			t.Fatalf("view produced in production mode (state %s)", c.State())
		}
	}
}

func TestModeGateCheckedOnEveryRender(t *testing.T) {
	gate := NewModeGate(ModeDevelopment)
	c := NewController(gate)
	c.Toggle()
	snap := vitals.Snapshot{FCP: 1}

	if _, ok := c.View(snap, true); !ok {
		t.Fatal("expected view in development mode")
	}
	gate.Set(ModeProduction)
	if _, ok := c.View(snap, true); ok {
		t.Fatal("view produced after switching to production")
	}
	if c.State() != Shown {
		t.Fatal("gate must not change the display state")
	}
	gate.Set(ModeDevelopment)
	if _, ok := c.View(snap, true); !ok {
		t.Fatal("expected view after switching back")
	}
}

func TestModeDiagnostic(t *testing.T) {
	tests := map[Mode]bool{
		"development":  true,
		" Development": true,
		"dev":          true,
		"diagnostic":   true,
		"production":   false,
		"":             false,
		"staging":      false,
	}
	for m, want := range tests {
		if got := m.Diagnostic(); got != want {
			t.Errorf("Mode(%q).Diagnostic() = %v, want %v", m, got, want)
		}
	}
}

func TestNilGateIsClosed(t *testing.T) {
	c := NewController(nil)
	c.Toggle()
	if _, ok := c.View(vitals.Snapshot{}, true); ok {
		t.Fatal("nil gate should never render")
	}
}
