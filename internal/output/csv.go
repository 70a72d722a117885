package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/atrtrace/atr/internal/trace"
)

// CSVFormatter formats trace results as CSV.
type CSVFormatter struct {
	config  Config
	columns []string
}

var defaultCSVColumns = []string{"ttl", "responder", "status", "elapsed_ms", "error"}

// NewCSVFormatter creates a new CSV formatter.
func NewCSVFormatter(config Config) *CSVFormatter {
	return &CSVFormatter{
		config:  config,
		columns: defaultCSVColumns,
	}
}

// SetColumns allows customizing which columns to include.
func (f *CSVFormatter) SetColumns(columns []string) {
	f.columns = columns
}

// Format formats the trace result as CSV.
func (f *CSVFormatter) Format(result *trace.TraceResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(f.columns); err != nil {
		return nil, err
	}

	for _, hop := range result.Hops {
		if err := writer.Write(f.formatRow(hop)); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (f *CSVFormatter) formatRow(hop trace.HopResult) []string {
	row := make([]string, len(f.columns))
	for i, col := range f.columns {
		row[i] = f.getValue(hop, col)
	}
	return row
}

// getValue returns the value for a specific column.
func (f *CSVFormatter) getValue(hop trace.HopResult, column string) string {
	switch column {
	case "ttl":
		return strconv.Itoa(hop.TTL)
	case "responder":
		return responderString(hop)
	case "status":
		return hop.Status.String()
	case "elapsed_ms":
		return fmt.Sprintf("%.3f", hop.ElapsedMs())
	case "error":
		return errString(hop.Err)
	default:
		return ""
	}
}

// ContentType returns the MIME type for CSV output.
func (f *CSVFormatter) ContentType() string {
	return "text/csv"
}

// FileExtension returns the file extension for CSV output.
func (f *CSVFormatter) FileExtension() string {
	return "csv"
}
