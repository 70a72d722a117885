// Package trace discovers the hops toward a destination by sweeping the
// TTL of single probes and classifying what comes back.
package trace

import (
	"net/netip"
	"time"
)

// Status is the outcome of probing one hop.
type Status int

const (
	// StatusInProgress means something answered at this TTL but it was
	// not the destination: an ICMP Time Exceeded or a refused connection.
	StatusInProgress Status = iota
	// StatusReached means the destination answered; it ends the sweep.
	StatusReached
	// StatusUnreachable means a host or net unreachable signal arrived.
	StatusUnreachable
	// StatusFailed covers timeouts and any other I/O error.
	StatusFailed
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "in-progress"
	case StatusReached:
		return "reached"
	case StatusUnreachable:
		return "unreachable"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// HopResult is the result of the single probe sent at TTL.
type HopResult struct {
	// TTL is the hop number
	TTL int

	// Elapsed runs from send to classified outcome, timeouts included
	Elapsed time.Duration

	Status Status

	// Responder is the answering node; the zero Addr when unknown (TCP)
	Responder netip.Addr

	// Err is the probe error behind a Failed or Unreachable hop
	Err error
}

// ElapsedMs returns Elapsed in floating-point milliseconds.
func (h HopResult) ElapsedMs() float64 {
	return float64(h.Elapsed.Nanoseconds()) / 1e6
}

// Target is a resolved destination. Only the first address is probed.
type Target struct {
	// Host is the target as given by the user
	Host string

	// Addrs are all candidate addresses, in resolver order
	Addrs []netip.AddrPort
}

// TraceResult contains the complete result of a trace operation.
type TraceResult struct {
	Target Target

	// ResolvedAddr is the probed address, Target.Addrs[0]
	ResolvedAddr netip.AddrPort

	// Timestamp is when the trace started
	Timestamp time.Time

	// Protocol is the probe protocol name (icmp, tcp)
	Protocol string

	Strategy Strategy

	// Hops are sorted by TTL and end at the lowest reached TTL
	Hops []HopResult

	// Completed indicates if the trace reached the destination
	Completed bool

	Summary Summary
}

// Summary contains aggregate counts for a trace.
type Summary struct {
	TotalHops   int
	Reached     int
	Unreachable int
	Failed      int
	InProgress  int

	// TimedOut counts the Failed hops that got no answer in time
	TimedOut int

	// TotalTime is the wall-clock duration of the sweep
	TotalTime time.Duration
}
