package output

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/atrtrace/atr/internal/trace"
)

// Writer handles output formatting and writing.
type Writer struct {
	formatter Formatter
	output    io.Writer
}

// NewWriter creates a writer to out. Colors are turned off when out is not
// a terminal.
func NewWriter(out io.Writer, format Format, config Config) *Writer {
	if f, ok := out.(*os.File); !ok || !isTerminal(f) {
		config.Colors = false
	}
	return NewWriterWithFormatter(NewFormatter(format, config), out)
}

// NewWriterWithFormatter creates a writer with a specific formatter.
func NewWriterWithFormatter(formatter Formatter, output io.Writer) *Writer {
	return &Writer{
		formatter: formatter,
		output:    output,
	}
}

// Write formats and writes the trace result.
func (w *Writer) Write(result *trace.TraceResult) error {
	data, err := w.formatter.Format(result)
	if err != nil {
		return err
	}

	_, err = w.output.Write(data)
	return err
}

func isTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// WriteToFile writes the trace result to a file. A filename without an
// extension gets the formatter's. It returns the path written.
func WriteToFile(result *trace.TraceResult, filename string, formatter Formatter) (string, error) {
	data, err := formatter.Format(result)
	if err != nil {
		return "", err
	}

	if filepath.Ext(filename) == "" {
		filename += "." + formatter.FileExtension()
	}
	return filename, os.WriteFile(filename, data, 0644)
}

// LineWriter prints hops one line at a time as the sweep emits them.
// It is safe for concurrent use.
type LineWriter struct {
	mu        sync.Mutex
	out       io.Writer
	formatter *TextFormatter
	err       error
}

// NewLineWriter creates a LineWriter on out. Colors are turned off when
// out is not a terminal.
func NewLineWriter(out io.Writer, config Config) *LineWriter {
	if f, ok := out.(*os.File); !ok || !isTerminal(f) {
		config.Colors = false
	}
	return &LineWriter{out: out, formatter: NewTextFormatter(config)}
}

// WriteHop prints one hop line. It has the signature of trace.Config.OnHop.
func (w *LineWriter) WriteHop(hop trace.HopResult) {
	w.write(w.formatter.FormatHop(hop))
}

// WriteHeader prints the header line for a resolved target.
func (w *LineWriter) WriteHeader(target trace.Target, protocol string) {
	w.write(w.formatter.FormatTarget(target, protocol))
}

// WriteSummary prints the summary line for result.
func (w *LineWriter) WriteSummary(result *trace.TraceResult) {
	w.write(w.formatter.FormatSummary(result))
}

// Err returns the first write error, if any.
func (w *LineWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *LineWriter) write(s string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.out, s)
}
