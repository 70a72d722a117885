// Package tui provides an interactive terminal UI for a hop sweep.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/atrtrace/atr/internal/trace"
)

// State represents the current state of the TUI.
type State int

const (
	StateRunning State = iota
	StateComplete
	StateError
)

// Model is the Bubble Tea model for the traceroute TUI.
type Model struct {
	// Configuration
	target string
	config *trace.Config
	tracer *trace.Tracer
	ctx    context.Context
	cancel context.CancelFunc
	width  int
	height int

	// State
	state     State
	hops      []trace.HopResult
	result    *trace.TraceResult
	err       error
	elapsed   time.Duration
	startTime time.Time

	// UI components
	spinner spinner.Model

	// Styles
	styles Styles

	// Channel for hop updates
	hopChan chan trace.HopResult
}

// HopMsg is sent when a hop is emitted.
type HopMsg struct {
	Hop trace.HopResult
}

// CompleteMsg is sent when the trace is complete.
type CompleteMsg struct {
	Result *trace.TraceResult
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Err error
}

// TickMsg is sent to update elapsed time.
type TickMsg time.Time

// New creates a TUI model that opens the protocol named by config.
func New(ctx context.Context, target string, config *trace.Config, styles Styles) (*Model, error) {
	return newModel(ctx, target, config, styles, trace.New)
}

func newModel(ctx context.Context, target string, config *trace.Config, styles Styles, open func(*trace.Config) (*trace.Tracer, error)) (*Model, error) {
	if config == nil {
		config = trace.DefaultConfig()
	}

	// One slot per possible TTL, so OnHop never blocks the sweep.
	hopChan := make(chan trace.HopResult, 255)
	cfg := *config
	next := config.OnHop
	cfg.OnHop = func(hop trace.HopResult) {
		if next != nil {
			next(hop)
		}
		hopChan <- hop
	}

	tracer, err := open(&cfg)
	if err != nil {
		return nil, err
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ctx, cancel := context.WithCancel(ctx)
	return &Model{
		target:    target,
		config:    &cfg,
		tracer:    tracer,
		ctx:       ctx,
		cancel:    cancel,
		state:     StateRunning,
		hops:      make([]trace.HopResult, 0),
		spinner:   s,
		styles:    styles,
		width:     80,
		height:    24,
		startTime: time.Now(),
		hopChan:   hopChan,
	}, nil
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.runTrace(),
		m.tickCmd(),
		m.waitForHop(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.cancel()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		m.elapsed = time.Since(m.startTime)
		if m.state == StateRunning {
			return m, m.tickCmd()
		}

	case HopMsg:
		if m.state != StateRunning {
			return m, nil
		}
		m.hops = insertHop(m.hops, msg.Hop)
		return m, m.waitForHop()

	case CompleteMsg:
		m.state = StateComplete
		m.result = msg.Result
		m.hops = msg.Result.Hops
		m.elapsed = msg.Result.Summary.TotalTime

	case ErrorMsg:
		m.state = StateError
		m.err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

// insertHop keeps hops ordered by TTL; concurrent sweeps emit out of order.
func insertHop(hops []trace.HopResult, hop trace.HopResult) []trace.HopResult {
	i := sort.Search(len(hops), func(i int) bool { return hops[i].TTL >= hop.TTL })
	hops = append(hops, trace.HopResult{})
	copy(hops[i+1:], hops[i:])
	hops[i] = hop
	return hops
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	b.WriteString(m.renderHops())

	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

func (m Model) renderHeader() string {
	title := m.styles.Title.Render("atr")

	var status string
	switch m.state {
	case StateRunning:
		status = m.spinner.View() + " Tracing..."
	case StateComplete:
		if m.result != nil && m.result.Completed {
			status = m.styles.Success.Render("✓ Reached")
		} else {
			status = m.styles.Warning.Render("✓ Incomplete")
		}
	case StateError:
		status = m.styles.Error.Render("✗ Error")
	}

	info := fmt.Sprintf("Target: %s | Method: %s | Strategy: %s",
		m.target, m.config.ProbeMethod, m.config.Strategy)
	if m.result != nil {
		info = fmt.Sprintf("Target: %s (%s) | Method: %s | Strategy: %s",
			m.target, m.result.ResolvedAddr, m.config.ProbeMethod, m.config.Strategy)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.styles.Subtle.Render(info),
		status,
	)
}

func (m Model) renderHops() string {
	if len(m.hops) == 0 {
		return m.styles.Subtle.Render("Waiting for responses...")
	}

	var rows []string

	header := fmt.Sprintf("%-4s %-15s %-12s %-12s", "TTL", "Responder", "Status", "Elapsed")
	rows = append(rows, m.styles.Header.Render(header))
	rows = append(rows, m.styles.Subtle.Render(strings.Repeat("─", 46)))

	for _, hop := range m.hops {
		rows = append(rows, m.renderHopRow(hop))
	}

	return strings.Join(rows, "\n")
}

func (m Model) renderHopRow(hop trace.HopResult) string {
	ttl := fmt.Sprintf("%-4d", hop.TTL)

	responder := "*"
	responderStyle := m.styles.Timeout
	if hop.Responder.IsValid() {
		responder = hop.Responder.String()
		responderStyle = m.styles.IP
	}

	elapsed := fmt.Sprintf("%.2f ms", hop.ElapsedMs())

	return fmt.Sprintf("%s %s %s %s",
		m.styles.HopNum.Render(ttl),
		responderStyle.Render(fmt.Sprintf("%-15s", truncate(responder, 15))),
		m.styles.status(hop.Status).Render(fmt.Sprintf("%-12s", hop.Status)),
		m.colorizeRTT(elapsed, hop.ElapsedMs()),
	)
}

// colorizeRTT applies color based on latency.
func (m Model) colorizeRTT(s string, rtt float64) string {
	if rtt <= 0 {
		return m.styles.Subtle.Render(s)
	}

	switch {
	case rtt < 50:
		return m.styles.RTTLow.Render(s)
	case rtt < 150:
		return m.styles.RTTMed.Render(s)
	default:
		return m.styles.RTTHigh.Render(s)
	}
}

func (m Model) renderFooter() string {
	var parts []string

	switch m.state {
	case StateComplete:
		parts = append(parts, fmt.Sprintf("Hops: %d", len(m.hops)))
		parts = append(parts, fmt.Sprintf("Total: %.2f ms", float64(m.elapsed.Nanoseconds())/1e6))
	case StateError:
		parts = append(parts, m.styles.Error.Render(m.err.Error()))
	default:
		parts = append(parts, fmt.Sprintf("Elapsed: %s", m.elapsed.Truncate(100*time.Millisecond)))
	}

	parts = append(parts, "Press 'q' to quit")

	return m.styles.Subtle.Render(strings.Join(parts, " | "))
}

// runTrace runs the sweep in the background.
func (m Model) runTrace() tea.Cmd {
	return func() tea.Msg {
		result, err := m.tracer.Trace(m.ctx, m.target)
		if err != nil {
			if result != nil && m.ctx.Err() != nil {
				return CompleteMsg{Result: result}
			}
			return ErrorMsg{Err: err}
		}
		return CompleteMsg{Result: result}
	}
}

func (m Model) waitForHop() tea.Cmd {
	return func() tea.Msg {
		select {
		case hop := <-m.hopChan:
			return HopMsg{Hop: hop}
		case <-m.ctx.Done():
			return nil
		}
	}
}

// tickCmd returns a command that sends tick messages.
func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Close cancels a running sweep and releases the probe socket.
func (m *Model) Close() error {
	m.cancel()
	return m.tracer.Close()
}

// truncate truncates a string to maxLen.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
