package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"golang.org/x/time/rate"

	"github.com/torosent/vitalscope/internal/clientmetrics"
	"github.com/torosent/vitalscope/internal/metrics"
	"github.com/torosent/vitalscope/internal/severity"
	"github.com/torosent/vitalscope/internal/visibility"
	"github.com/torosent/vitalscope/internal/vitals"
)

// Config holds the page view parameters shown in the header and the operator
// keys.
type Config struct {
	Source          string        // source kind (replay, sse, websocket, har, probe)
	Target          string        // trace path or URL
	Duration        time.Duration // lifetime cap (0 = until the source ends)
	ConfigFile      string        // path to config file if used
	ToggleKey       string        // termui event ID that toggles the overlay
	DismissKey      string        // termui event ID that dismisses the overlay
	RefreshInterval time.Duration // periodic redraw interval
}

// Sources are the read-only views the dashboard polls.
type Sources struct {
	Snapshot func() (vitals.Snapshot, bool)
	Stats    func() metrics.Stats
	// Relay is nil for sources without a connection.
	Relay func() clientmetrics.Snapshot
}

// Dashboard renders the diagnostic overlay of one page view in the terminal.
type Dashboard struct {
	cfg          Config
	sources      Sources
	controller   *visibility.Controller
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex
	wake         chan struct{}
	throttle     *rate.Sometimes

	// Widgets
	grid         *ui.Grid
	ratingsTable *widgets.Table
	clsSparkline *widgets.SparklineGroup
	summaryPara  *widgets.Paragraph
	entriesPara  *widgets.Paragraph
	relayPara    *widgets.Paragraph
	outcomeList  *widgets.List
	hintPara     *widgets.Paragraph
	clsHistory   []float64
	visible      bool
	startTime    time.Time
}

// New creates a new Dashboard. The terminal is taken over until Stop.
func New(cfg Config, sources Sources, controller *visibility.Controller, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	d := newDashboard(cfg, sources, controller, shutdownFunc)
	d.setupGrid()
	return d, nil
}

func newDashboard(cfg Config, sources Sources, controller *visibility.Controller, shutdownFunc func()) *Dashboard {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 500 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		cfg:          cfg,
		sources:      sources,
		controller:   controller,
		ctx:          ctx,
		cancel:       cancel,
		shutdownFunc: shutdownFunc,
		wake:         make(chan struct{}, 1),
		// Snapshot changes can arrive in bursts; redraw at most every 50ms.
		throttle:   &rate.Sometimes{Interval: 50 * time.Millisecond},
		clsHistory: make([]float64, 0, 100),
		startTime:  time.Now(),
	}
	d.initWidgets()
	return d
}

// initWidgets initializes all dashboard widgets.
func (d *Dashboard) initWidgets() {
	d.ratingsTable = widgets.NewTable()
	d.ratingsTable.Title = "Web Vitals"
	d.ratingsTable.Rows = [][]string{{"Metric", "Value", "Rating"}}
	d.ratingsTable.TextStyle = ui.NewStyle(ui.ColorWhite)
	d.ratingsTable.RowSeparator = false
	d.ratingsTable.FillRow = true
	d.ratingsTable.RowStyles = map[int]ui.Style{0: ui.NewStyle(ui.ColorWhite, ui.ColorClear, ui.ModifierBold)}
	d.ratingsTable.BorderStyle.Fg = ui.ColorCyan

	sparkline := widgets.NewSparkline()
	sparkline.Title = "CLS x1000"
	sparkline.LineColor = ui.ColorMagenta
	sparkline.Data = []float64{0}

	d.clsSparkline = widgets.NewSparklineGroup(sparkline)
	d.clsSparkline.Title = "Layout Shift"
	d.clsSparkline.BorderStyle.Fg = ui.ColorCyan

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Page View"
	d.summaryPara.Text = "Waiting for page load..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.entriesPara = widgets.NewParagraph()
	d.entriesPara.Title = "Entries"
	d.entriesPara.Text = "No entries yet"
	d.entriesPara.BorderStyle.Fg = ui.ColorCyan

	d.relayPara = widgets.NewParagraph()
	d.relayPara.Title = "Relay"
	d.relayPara.Text = "No relay connection"
	d.relayPara.TextStyle = ui.NewStyle(ui.ColorGreen)
	d.relayPara.BorderStyle.Fg = ui.ColorCyan

	d.outcomeList = widgets.NewList()
	d.outcomeList.Title = "Ignored Entries"
	d.outcomeList.Rows = []string{"None"}
	d.outcomeList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.outcomeList.BorderStyle.Fg = ui.ColorCyan

	d.hintPara = widgets.NewParagraph()
	d.hintPara.Border = false
	d.hintPara.Text = d.hintText()
}

// setupGrid configures the layout grid.
func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.18,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.34,
			ui.NewCol(0.5, d.ratingsTable),
			ui.NewCol(0.5, d.clsSparkline),
		),
		ui.NewRow(0.24,
			ui.NewCol(0.5, d.entriesPara),
			ui.NewCol(0.5, d.relayPara),
		),
		ui.NewRow(0.24,
			ui.NewCol(1.0, d.outcomeList),
		),
	)
	d.hintPara.SetRect(0, 0, termWidth, 1)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// Refresh asks for a redraw. It never blocks and may be called from any
// goroutine, including the collector's change callback.
func (d *Dashboard) Refresh() {
	d.throttle.Do(func() {
		select {
		case d.wake <- struct{}{}:
		default:
		}
	})
}

// run is the main dashboard update loop.
func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.RefreshInterval)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.update()
	d.render()

	for {
		select {
		case <-d.ctx.Done():
			// Drain any remaining events
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			// Check if context is done to avoid blocking
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			if e.ID == "<Resize>" {
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				d.hintPara.SetRect(0, 0, payload.Width, 1)
				ui.Clear()
				d.render()
				continue
			}
			if d.handleKey(e.ID) {
				d.update()
				d.render()
			}
		case <-d.wake:
			d.update()
			d.render()
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// handleKey applies an operator key and reports whether a redraw is needed.
func (d *Dashboard) handleKey(id string) bool {
	switch id {
	case "q", "<C-c>":
		if d.shutdownFunc != nil {
			d.shutdownFunc()
		}
		// Do not return here; wait for Stop() to cancel context
		return false
	case d.cfg.ToggleKey:
		d.controller.Toggle()
		return true
	case d.cfg.DismissKey:
		d.controller.Dismiss()
		return true
	}
	return false
}

// update refreshes widget data. The overlay only carries metrics when the
// controller yields a view.
func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap, ok := d.snapshot()
	view, visible := d.controller.View(snap, ok)
	d.visible = visible
	d.hintPara.Text = d.hintText()
	if !visible {
		return
	}

	elapsed := time.Since(d.startTime)
	d.summaryPara.Text = fmt.Sprintf(
		"Page view: %s\n%s\nElapsed: %s | Applied entries: %d",
		view.Snapshot.PageView,
		d.formatParams(),
		elapsed.Round(time.Second),
		view.Snapshot.Entries,
	)

	d.ratingsTable.Rows, d.ratingsTable.RowStyles = formatRatings(view.Ratings)

	d.clsHistory = append(d.clsHistory, severity.Scaled(vitals.MetricCLS, view.Snapshot.CLS))
	if len(d.clsHistory) > 100 {
		d.clsHistory = d.clsHistory[1:]
	}
	d.clsSparkline.Sparklines[0].Data = d.clsHistory
	d.clsSparkline.Title = fmt.Sprintf("Layout Shift | CLS %.4f", view.Snapshot.CLS)

	if d.sources.Stats != nil {
		stats := d.sources.Stats()
		d.entriesPara.Text = formatEntryStats(stats)
		d.outcomeList.Rows = formatOutcomeRows(stats.Outcomes)
	}
	if d.sources.Relay != nil {
		d.relayPara.Text = formatRelay(d.sources.Relay())
	}
}

func (d *Dashboard) snapshot() (vitals.Snapshot, bool) {
	if d.sources.Snapshot == nil {
		return vitals.Snapshot{}, false
	}
	return d.sources.Snapshot()
}

// render draws the overlay, or only the hint line while nothing may be shown.
func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Clear()
	switch {
	case d.visible:
		ui.Render(d.grid)
	case d.controller.Enabled():
		ui.Render(d.hintPara)
	}
}

func (d *Dashboard) hintText() string {
	return fmt.Sprintf("[%s](fg:cyan) toggle  [%s](fg:cyan) dismiss  [q](fg:cyan) quit",
		escapeKey(d.cfg.ToggleKey), escapeKey(d.cfg.DismissKey))
}

// escapeKey keeps termui's style markup from swallowing key names.
func escapeKey(k string) string {
	return strings.NewReplacer("[", "(", "]", ")").Replace(k)
}

var bandStyles = map[severity.Band]ui.Style{
	severity.Good:             ui.NewStyle(ui.ColorGreen),
	severity.NeedsImprovement: ui.NewStyle(ui.ColorYellow),
	severity.Poor:             ui.NewStyle(ui.ColorRed),
}

func formatRatings(ratings []severity.Rating) ([][]string, map[int]ui.Style) {
	rows := make([][]string, 0, len(ratings)+1)
	rows = append(rows, []string{"Metric", "Value", "Rating"})
	styles := map[int]ui.Style{0: ui.NewStyle(ui.ColorWhite, ui.ColorClear, ui.ModifierBold)}
	for _, r := range ratings {
		name := strings.ToUpper(string(r.Metric))
		if !r.Present {
			rows = append(rows, []string{name, "-", "pending"})
			continue
		}
		styles[len(rows)] = bandStyles[r.Band]
		rows = append(rows, []string{name, formatValue(r.Metric, r.Value), r.Band.String()})
	}
	return rows, styles
}

func formatValue(m vitals.Metric, v float64) string {
	if m == vitals.MetricCLS {
		return fmt.Sprintf("%.4f", v)
	}
	return fmt.Sprintf("%.0fms", v)
}

func formatEntryStats(stats metrics.Stats) string {
	if stats.Total == 0 {
		return "No entries yet"
	}
	lines := []string{fmt.Sprintf("Total: %d (%.1f/s)", stats.Total, stats.EntriesPerSec)}
	for _, t := range []vitals.EntryType{vitals.EntryLargestContentfulPaint, vitals.EntryFirstInput, vitals.EntryLayoutShift} {
		if n := stats.ByType[string(t)]; n > 0 {
			lines = append(lines, fmt.Sprintf("%-25s %d", t, n))
		}
	}
	if d := stats.Interaction; d.Count > 0 {
		lines = append(lines, fmt.Sprintf("Input delay P50/P90/P99: %.1f / %.1f / %.1f ms", d.P50Ms, d.P90Ms, d.P99Ms))
	}
	if stats.LayoutShifts > 0 {
		lines = append(lines, fmt.Sprintf("Largest shift: %.4f", stats.LargestShift))
	}
	return strings.Join(lines, "\n")
}

func formatOutcomeRows(outcomes map[string]map[string]int) []string {
	rows := metrics.FlattenOutcomes(outcomes)
	formatted := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Outcome == vitals.Applied.String() {
			continue
		}
		formatted = append(formatted, fmt.Sprintf("[%s](fg:yellow) %s x%d", row.EntryType, row.Outcome, row.Count))
		if len(formatted) == 10 {
			break
		}
	}
	if len(formatted) == 0 {
		return []string{"[None](fg:green)"}
	}
	return formatted
}

func formatRelay(s clientmetrics.Snapshot) string {
	state := "[disconnected](fg:red)"
	if s.Connected {
		state = "[connected](fg:green)"
	}
	return fmt.Sprintf(
		"State:       %s\nConnections: %d (reconnects %d)\nMessages:    %d\nBytes:       %d\nErrors:      %d",
		state, s.Connections, s.Reconnects, s.MessagesReceived, s.BytesReceived, s.Errors,
	)
}

// formatParams formats the page view parameters for display.
func (d *Dashboard) formatParams() string {
	var parts []string

	if d.cfg.Source != "" {
		parts = append(parts, fmt.Sprintf("Source: %s", d.cfg.Source))
	}
	if d.cfg.Target != "" {
		parts = append(parts, fmt.Sprintf("Target: %s", d.cfg.Target))
	}
	if d.cfg.Duration > 0 {
		parts = append(parts, fmt.Sprintf("Duration: %s", d.cfg.Duration))
	}
	if d.cfg.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", d.cfg.ConfigFile))
	}

	return strings.Join(parts, " | ")
}
