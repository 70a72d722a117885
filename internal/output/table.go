package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/atrtrace/atr/internal/trace"
)

// TableFormatter formats trace results as a detailed table.
type TableFormatter struct {
	config Config
	colors *ColorScheme
}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter(config Config) *TableFormatter {
	var colors *ColorScheme
	if config.Colors {
		colors = DefaultColorScheme()
	}

	return &TableFormatter{
		config: config,
		colors: colors,
	}
}

// Format formats the trace result as a detailed table.
func (f *TableFormatter) Format(result *trace.TraceResult) ([]byte, error) {
	var buf bytes.Buffer

	f.writeHeader(&buf, result)

	table := tablewriter.NewWriter(&buf)
	f.configureTable(table)
	table.SetHeader([]string{"TTL", "Responder", "Status", "Elapsed", "Error"})

	for _, hop := range result.Hops {
		table.Append(f.formatHopRow(hop))
	}

	table.Render()

	f.writeSummary(&buf, result)

	return buf.Bytes(), nil
}

func (f *TableFormatter) writeHeader(buf *bytes.Buffer, result *trace.TraceResult) {
	header := fmt.Sprintf("Target: %s (%s)\n", result.Target.Host, result.ResolvedAddr)
	if len(result.Target.Addrs) > 1 {
		addrs := make([]string, len(result.Target.Addrs))
		for i, a := range result.Target.Addrs {
			addrs[i] = a.String()
		}
		header += fmt.Sprintf("Candidates: %s\n", strings.Join(addrs, ", "))
	}
	header += fmt.Sprintf("Method: %s | Strategy: %s | Time: %s\n\n",
		strings.ToUpper(result.Protocol),
		result.Strategy,
		result.Timestamp.Format("2006-01-02 15:04:05"))

	if f.colors != nil {
		header = f.colors.Header.Sprint(header)
	}
	buf.WriteString(header)
}

// configureTable sets up the table appearance.
func (f *TableFormatter) configureTable(table *tablewriter.Table) {
	table.SetBorder(true)
	table.SetRowLine(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("│")
	table.SetColumnSeparator("│")
	table.SetRowSeparator("─")
	table.SetHeaderLine(true)
	table.SetTablePadding(" ")
}

func (f *TableFormatter) formatHopRow(hop trace.HopResult) []string {
	status := hop.Status.String()
	elapsed := fmt.Sprintf("%.2f ms", hop.ElapsedMs())
	if f.colors != nil {
		status = f.colors.status(hop.Status).Sprint(status)
		elapsed = f.colors.rtt(hop.ElapsedMs()).Sprint(elapsed)
	}

	errText := "-"
	if hop.Err != nil {
		errText = truncateString(hop.Err.Error(), 40)
	}

	return []string{
		fmt.Sprintf("%d", hop.TTL),
		responderString(hop),
		status,
		elapsed,
		errText,
	}
}

func (f *TableFormatter) writeSummary(buf *bytes.Buffer, result *trace.TraceResult) {
	buf.WriteString("\nSummary:\n")

	s := result.Summary
	fmt.Fprintf(buf, "  Total Hops:    %d\n", s.TotalHops)
	fmt.Fprintf(buf, "  In Progress:   %d\n", s.InProgress)
	fmt.Fprintf(buf, "  Unreachable:   %d\n", s.Unreachable)
	fmt.Fprintf(buf, "  Failed:        %d\n", s.Failed)
	fmt.Fprintf(buf, "  Timed Out:     %d\n", s.TimedOut)
	fmt.Fprintf(buf, "  Total Time:    %.2f ms\n", durationMs(s.TotalTime))

	buf.WriteString("  Status:        ")
	status := "Incomplete"
	if result.Completed {
		status = "Complete"
	}
	if f.colors != nil {
		if result.Completed {
			status = f.colors.RTTLow.Sprint(status)
		} else {
			status = f.colors.RTTHigh.Sprint(status)
		}
	}
	buf.WriteString(status)
	buf.WriteString("\n")
}

// ContentType returns the MIME type for table output.
func (f *TableFormatter) ContentType() string {
	return "text/plain"
}

// FileExtension returns the file extension for table output.
func (f *TableFormatter) FileExtension() string {
	return "txt"
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
