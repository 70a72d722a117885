// Package probe implements the probe protocols used for hop discovery.
// A Protocol sends one probe at a given TTL; the returned Probe waits for
// the raw Outcome, which the trace package classifies into a hop status.
package probe

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// Protocol defines a probing strategy. Implementations are ICMPEcho and
// TCPConnect.
type Protocol interface {
	// Send configures the TTL, builds the protocol-specific probe and
	// transmits it toward dest. seq identifies the probe on the wire where
	// the protocol carries one (ICMP); the trace controller passes the TTL.
	// It returns a *SetupError when socket creation or option configuration
	// fails and ErrInvalidTTL when ttl is outside 1..255.
	Send(ctx context.Context, ttl int, dest netip.AddrPort, seq uint16) (Probe, error)

	// Name returns the protocol name ("icmp" or "tcp").
	Name() string

	// Close releases any resources held by the protocol.
	Close() error
}

// Probe is a single probe in flight.
type Probe interface {
	// Recv blocks until the outcome is known, the per-probe timeout
	// elapses (KindTimeout) or ctx is done (KindCancelled or KindTimeout).
	Recv(ctx context.Context) Outcome
}

// Kind is the raw outcome of a probe before classification.
type Kind int

const (
	// KindICMP means a matching ICMP message arrived; see Outcome.ICMPType.
	KindICMP Kind = iota
	// KindConnected means a TCP connection was established.
	KindConnected
	// KindRefused means the connection was refused or reset.
	KindRefused
	// KindUnreachable means the OS reported host or network unreachable.
	KindUnreachable
	// KindTimeout means nothing arrived within the probe timeout.
	KindTimeout
	// KindCancelled means the probe was abandoned by its caller.
	KindCancelled
	// KindIOError covers every other failure.
	KindIOError
)

// String returns the string representation of the outcome kind.
func (k Kind) String() string {
	switch k {
	case KindICMP:
		return "icmp"
	case KindConnected:
		return "connected"
	case KindRefused:
		return "refused"
	case KindUnreachable:
		return "unreachable"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	case KindIOError:
		return "io-error"
	default:
		return "unknown"
	}
}

// Outcome is what a probe observed.
type Outcome struct {
	Kind Kind

	// ICMPType and ICMPCode are set for KindICMP.
	ICMPType int
	ICMPCode int

	// Responder is the node that answered. It is the zero Addr when no
	// address was observed (always the case for TCP).
	Responder netip.Addr

	// Err is the underlying error for the error kinds.
	Err error
}

// errorOutcome maps err to an Outcome using KindFromError.
func errorOutcome(err error) Outcome {
	return Outcome{Kind: KindFromError(err), Err: err}
}

// Method represents the type of probe to use.
type Method int

const (
	// MethodICMP uses ICMP Echo Request packets on a raw socket
	MethodICMP Method = iota
	// MethodTCP uses TCP connection attempts
	MethodTCP
)

// String returns the string representation of the probe method.
func (m Method) String() string {
	switch m {
	case MethodICMP:
		return "icmp"
	case MethodTCP:
		return "tcp"
	default:
		return "unknown"
	}
}

// ParseMethod parses a protocol name.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "icmp":
		return MethodICMP, nil
	case "tcp":
		return MethodTCP, nil
	default:
		return 0, fmt.Errorf("%w: %q (want icmp or tcp)", ErrUnknownMethod, s)
	}
}

// Open creates the protocol for m with the given per-probe timeout.
func Open(m Method, timeout time.Duration) (Protocol, error) {
	switch m {
	case MethodICMP:
		return NewICMPEcho(ICMPEchoConfig{Timeout: timeout})
	case MethodTCP:
		return NewTCPConnect(TCPConnectConfig{Timeout: timeout}), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMethod, int(m))
	}
}

func checkTarget(ttl int, dest netip.AddrPort) error {
	if ttl < 1 || ttl > 255 {
		return ErrInvalidTTL
	}
	if !dest.Addr().Is4() {
		return ErrNotIPv4
	}
	return nil
}
