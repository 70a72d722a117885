package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/atrtrace/atr/internal/trace"
)

// Run starts the TUI for target and returns the final report. A nil
// result with a nil error means the user quit before the sweep ended.
func Run(ctx context.Context, target string, config *trace.Config, styles Styles) (*trace.TraceResult, error) {
	model, err := New(ctx, target, config, styles)
	if err != nil {
		return nil, fmt.Errorf("failed to create TUI model: %w", err)
	}
	defer model.Close()

	p := tea.NewProgram(*model, tea.WithAltScreen(), tea.WithContext(ctx))

	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("TUI error: %w", err)
	}

	m, ok := finalModel.(Model)
	if !ok {
		return nil, nil
	}
	if m.state == StateError && m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}
