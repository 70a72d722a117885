package output

import (
	"bytes"
	"fmt"

	"github.com/fatih/color"

	"github.com/atrtrace/atr/internal/trace"
)

// TextFormatter formats one line per hop:
//
//	<ttl> <responder|*> <status> <elapsed> ms
type TextFormatter struct {
	config Config
	colors *ColorScheme
}

// NewTextFormatter creates a new text formatter.
func NewTextFormatter(config Config) *TextFormatter {
	var colors *ColorScheme
	if config.Colors {
		colors = DefaultColorScheme()
	}

	return &TextFormatter{
		config: config,
		colors: colors,
	}
}

// Format formats the trace result as header, hop lines and summary.
func (f *TextFormatter) Format(result *trace.TraceResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(f.FormatHeader(result))
	for _, hop := range result.Hops {
		buf.WriteString(f.FormatHop(hop))
	}
	buf.WriteString(f.FormatSummary(result))

	return buf.Bytes(), nil
}

// FormatHeader returns the line printed before the first hop.
func (f *TextFormatter) FormatHeader(result *trace.TraceResult) string {
	return f.FormatTarget(result.Target, result.Protocol)
}

// FormatTarget returns the header line for a resolved target. The first
// candidate address is the one probed.
func (f *TextFormatter) FormatTarget(target trace.Target, protocol string) string {
	candidates := "address"
	if len(target.Addrs) != 1 {
		candidates = "addresses"
	}
	var probed string
	if len(target.Addrs) > 0 {
		probed = target.Addrs[0].String()
	}
	header := fmt.Sprintf("traceroute to %s (%s), %d candidate %s, %s probes\n",
		target.Host, probed, len(target.Addrs), candidates, protocol)
	if f.colors != nil {
		header = f.colors.Header.Sprint(header)
	}
	return header
}

// FormatSummary returns the closing summary line.
func (f *TextFormatter) FormatSummary(result *trace.TraceResult) string {
	if result.Completed {
		return fmt.Sprintf("\nTrace complete. %d hops, %.2f ms total\n",
			result.Summary.TotalHops, durationMs(result.Summary.TotalTime))
	}
	return fmt.Sprintf("\nTrace incomplete after %d hops\n", result.Summary.TotalHops)
}

// FormatHop formats a single hop line, newline included. It is used for
// streaming output.
func (f *TextFormatter) FormatHop(hop trace.HopResult) string {
	ttl := fmt.Sprintf("%d", hop.TTL)
	responder := responderString(hop)
	status := hop.Status.String()
	elapsed := fmt.Sprintf("%.3f ms", hop.ElapsedMs())

	if f.colors != nil {
		ttl = f.colors.Hop.Sprint(ttl)
		if hop.Responder.IsValid() {
			responder = f.colors.IP.Sprint(responder)
		} else {
			responder = f.colors.Timeout.Sprint(responder)
		}
		status = f.colors.status(hop.Status).Sprint(status)
		elapsed = f.colors.rtt(hop.ElapsedMs()).Sprint(elapsed)
	}

	return fmt.Sprintf("%s %s %s %s\n", ttl, responder, status, elapsed)
}

// ContentType returns the MIME type for text output.
func (f *TextFormatter) ContentType() string {
	return "text/plain"
}

// FileExtension returns the file extension for text output.
func (f *TextFormatter) FileExtension() string {
	return "txt"
}

// ColorScheme defines colors for different output elements.
type ColorScheme struct {
	Hop         *color.Color
	IP          *color.Color
	RTTLow      *color.Color // < 50ms
	RTTMed      *color.Color // 50-150ms
	RTTHigh     *color.Color // > 150ms
	Timeout     *color.Color
	Reached     *color.Color
	InProgress  *color.Color
	Unreachable *color.Color
	Failed      *color.Color
	Header      *color.Color
}

// DefaultColorScheme returns the default color scheme.
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Hop:         color.New(color.FgCyan, color.Bold),
		IP:          color.New(color.FgWhite),
		RTTLow:      color.New(color.FgGreen),
		RTTMed:      color.New(color.FgYellow),
		RTTHigh:     color.New(color.FgRed),
		Timeout:     color.New(color.FgRed, color.Bold),
		Reached:     color.New(color.FgGreen, color.Bold),
		InProgress:  color.New(color.FgBlue),
		Unreachable: color.New(color.FgMagenta),
		Failed:      color.New(color.FgRed),
		Header:      color.New(color.FgWhite, color.Bold),
	}
}

func (c *ColorScheme) status(s trace.Status) *color.Color {
	switch s {
	case trace.StatusReached:
		return c.Reached
	case trace.StatusInProgress:
		return c.InProgress
	case trace.StatusUnreachable:
		return c.Unreachable
	default:
		return c.Failed
	}
}

// rtt picks a color by latency threshold.
func (c *ColorScheme) rtt(ms float64) *color.Color {
	switch {
	case ms < 50:
		return c.RTTLow
	case ms < 150:
		return c.RTTMed
	default:
		return c.RTTHigh
	}
}
