package output

import (
	"encoding/json"
	"math"
	"time"

	"github.com/atrtrace/atr/internal/trace"
)

// JSONFormatter formats trace results as JSON.
type JSONFormatter struct {
	config Config
	pretty bool
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(config Config) *JSONFormatter {
	return &JSONFormatter{
		config: config,
		pretty: true,
	}
}

// SetPretty enables or disables pretty-printing.
func (f *JSONFormatter) SetPretty(pretty bool) {
	f.pretty = pretty
}

// Format formats the trace result as JSON.
func (f *JSONFormatter) Format(result *trace.TraceResult) ([]byte, error) {
	output := toJSONOutput(result)

	if f.pretty {
		return json.MarshalIndent(output, "", "  ")
	}
	return json.Marshal(output)
}

// JSONOutput is the JSON-serializable representation of a trace result.
type JSONOutput struct {
	Target       string      `json:"target"`
	Candidates   []string    `json:"candidates"`
	ResolvedAddr string      `json:"resolved_addr"`
	Timestamp    string      `json:"timestamp"`
	Protocol     string      `json:"protocol"`
	Strategy     string      `json:"strategy"`
	Completed    bool        `json:"completed"`
	Hops         []JSONHop   `json:"hops"`
	Summary      JSONSummary `json:"summary"`
}

// JSONHop represents a single hop in JSON format.
type JSONHop struct {
	TTL       int     `json:"ttl"`
	Responder string  `json:"responder,omitempty"`
	Status    string  `json:"status"`
	ElapsedMs float64 `json:"elapsed_ms"`
	Error     string  `json:"error,omitempty"`
}

// JSONSummary represents trace summary in JSON format.
type JSONSummary struct {
	TotalHops   int     `json:"total_hops"`
	Reached     int     `json:"reached"`
	InProgress  int     `json:"in_progress"`
	Unreachable int     `json:"unreachable"`
	Failed      int     `json:"failed"`
	TimedOut    int     `json:"timed_out"`
	TotalTimeMs float64 `json:"total_time_ms"`
}

func toJSONOutput(result *trace.TraceResult) *JSONOutput {
	output := &JSONOutput{
		Target:       result.Target.Host,
		Candidates:   make([]string, len(result.Target.Addrs)),
		ResolvedAddr: result.ResolvedAddr.String(),
		Timestamp:    result.Timestamp.Format(time.RFC3339),
		Protocol:     result.Protocol,
		Strategy:     result.Strategy.String(),
		Completed:    result.Completed,
		Hops:         make([]JSONHop, len(result.Hops)),
		Summary: JSONSummary{
			TotalHops:   result.Summary.TotalHops,
			Reached:     result.Summary.Reached,
			InProgress:  result.Summary.InProgress,
			Unreachable: result.Summary.Unreachable,
			Failed:      result.Summary.Failed,
			TimedOut:    result.Summary.TimedOut,
			TotalTimeMs: roundFloat(durationMs(result.Summary.TotalTime), 3),
		},
	}

	for i, a := range result.Target.Addrs {
		output.Candidates[i] = a.String()
	}
	for i, hop := range result.Hops {
		output.Hops[i] = toJSONHop(hop)
	}

	return output
}

func toJSONHop(hop trace.HopResult) JSONHop {
	jh := JSONHop{
		TTL:       hop.TTL,
		Status:    hop.Status.String(),
		ElapsedMs: roundFloat(hop.ElapsedMs(), 3),
		Error:     errString(hop.Err),
	}
	if hop.Responder.IsValid() {
		jh.Responder = hop.Responder.String()
	}
	return jh
}

// ContentType returns the MIME type for JSON output.
func (f *JSONFormatter) ContentType() string {
	return "application/json"
}

// FileExtension returns the file extension for JSON output.
func (f *JSONFormatter) FileExtension() string {
	return "json"
}

func roundFloat(val float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.Round(val*p) / p
}

func durationMs(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}
