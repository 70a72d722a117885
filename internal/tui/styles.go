package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/atrtrace/atr/internal/trace"
)

// Styles holds all the styles used in the TUI.
type Styles struct {
	// Text styles
	Title  lipgloss.Style
	Header lipgloss.Style
	Subtle lipgloss.Style

	// Status styles
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style

	// Hop styles
	HopNum  lipgloss.Style
	IP      lipgloss.Style
	Timeout lipgloss.Style

	// Hop status styles
	Reached     lipgloss.Style
	InProgress  lipgloss.Style
	Unreachable lipgloss.Style
	Failed      lipgloss.Style

	// RTT styles (color-coded by latency)
	RTTLow  lipgloss.Style // < 50ms
	RTTMed  lipgloss.Style // 50-150ms
	RTTHigh lipgloss.Style // > 150ms
}

// DefaultStyles returns the default style set.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1),

		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")),

		Subtle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")), // Green

		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")), // Red

		Warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")), // Orange

		HopNum: lipgloss.NewStyle().
			Foreground(lipgloss.Color("87")), // Cyan

		IP: lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")), // White

		Timeout: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red

		Reached: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")),

		InProgress: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")), // Blue

		Unreachable: lipgloss.NewStyle().
			Foreground(lipgloss.Color("141")), // Purple

		Failed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),

		RTTLow: lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")), // Green

		RTTMed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")), // Yellow

		RTTHigh: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red
	}
}

// LightTheme returns a style set for light terminal backgrounds.
func LightTheme() Styles {
	s := DefaultStyles()

	s.Subtle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	s.Header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0"))
	s.IP = lipgloss.NewStyle().Foreground(lipgloss.Color("0"))

	return s
}

// MinimalTheme returns a style set without colors.
func MinimalTheme() Styles {
	plain := lipgloss.NewStyle()
	bold := lipgloss.NewStyle().Bold(true)

	return Styles{
		Title:       bold.MarginBottom(1),
		Header:      bold,
		Subtle:      plain,
		Success:     bold,
		Error:       bold,
		Warning:     bold,
		HopNum:      bold,
		IP:          plain,
		Timeout:     plain,
		Reached:     bold,
		InProgress:  plain,
		Unreachable: plain,
		Failed:      plain,
		RTTLow:      plain,
		RTTMed:      plain,
		RTTHigh:     plain,
	}
}

// ThemeFor picks MinimalTheme when colors are off and otherwise matches
// the terminal background.
func ThemeFor(noColor bool) Styles {
	switch {
	case noColor:
		return MinimalTheme()
	case !lipgloss.HasDarkBackground():
		return LightTheme()
	default:
		return DefaultStyles()
	}
}

func (s Styles) status(st trace.Status) lipgloss.Style {
	switch st {
	case trace.StatusReached:
		return s.Reached
	case trace.StatusInProgress:
		return s.InProgress
	case trace.StatusUnreachable:
		return s.Unreachable
	default:
		return s.Failed
	}
}
