package probe

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/atrtrace/atr/internal/logger"
)

// TCPConnectConfig holds configuration for the TCP connect prober.
type TCPConnectConfig struct {
	// Timeout is the maximum time to wait for the connection (default: 1s)
	Timeout time.Duration
}

// dialFunc dials dest with the given TTL. configured receives the result
// of setting the TTL, before the SYN is sent.
type dialFunc func(ctx context.Context, dest netip.AddrPort, ttl int, configured chan<- error) (net.Conn, error)

// TCPConnect implements Protocol with one TCP connection attempt per
// probe, the socket TTL set before the SYN leaves. The responding router
// cannot be observed, so Outcome.Responder is always invalid.
type TCPConnect struct {
	timeout time.Duration
	dial    dialFunc
}

// NewTCPConnect creates a TCP connect prober.
func NewTCPConnect(config TCPConnectConfig) *TCPConnect {
	if config.Timeout <= 0 {
		config.Timeout = time.Second
	}
	return &TCPConnect{
		timeout: config.Timeout,
		dial:    dialTTL,
	}
}

// Send starts a connection attempt to dest with the given TTL and returns
// once the socket is configured. seq is unused: a connection carries its
// own identity.
func (t *TCPConnect) Send(ctx context.Context, ttl int, dest netip.AddrPort, _ uint16) (Probe, error) {
	if err := checkTarget(ttl, dest); err != nil {
		return nil, err
	}

	dctx, cancel := context.WithTimeout(ctx, t.timeout)
	p := &tcpProbe{
		result: make(chan Outcome, 1),
		cancel: cancel,
	}
	configured := make(chan error, 1)

	go func() {
		conn, err := t.dial(dctx, dest, ttl, configured)
		if err != nil {
			p.result <- errorOutcome(err)
			return
		}
		_ = conn.Close()
		p.result <- Outcome{Kind: KindConnected}
	}()

	log := logger.FromContext(ctx).WithFields(logrus.Fields{"ttl": ttl, "dst": dest})
	select {
	case err := <-configured:
		if err != nil {
			cancel()
			return nil, &SetupError{Op: "set ttl", Err: err}
		}
	case o := <-p.result:
		if isSocketError(o.Err) {
			cancel()
			return nil, &SetupError{Op: "socket", Err: o.Err}
		}
		p.result <- o
	}

	log.Debug("tcp connect started")
	return p, nil
}

// Name returns the probe method name.
func (t *TCPConnect) Name() string {
	return MethodTCP.String()
}

// Close is a no-op: sockets are owned by individual probes.
func (t *TCPConnect) Close() error {
	return nil
}

type tcpProbe struct {
	result chan Outcome
	cancel context.CancelFunc
}

// Recv waits on the connection attempt.
func (p *tcpProbe) Recv(ctx context.Context) Outcome {
	defer p.cancel()

	select {
	case o := <-p.result:
		return o
	case <-ctx.Done():
		return errorOutcome(ctx.Err())
	}
}

func dialTTL(ctx context.Context, dest netip.AddrPort, ttl int, configured chan<- error) (net.Conn, error) {
	d := net.Dialer{
		ControlContext: func(_ context.Context, _, _ string, c syscall.RawConn) error {
			var setErr error
			if err := c.Control(func(fd uintptr) {
				setErr = setIPv4TTL(fd, ttl)
			}); err != nil {
				setErr = err
			}
			select {
			case configured <- setErr:
			default:
			}
			return setErr
		},
	}
	return d.DialContext(ctx, "tcp4", dest.String())
}

// isSocketError reports whether err came from creating the socket itself.
func isSocketError(err error) bool {
	var se *os.SyscallError
	return errors.As(err, &se) && se.Syscall == "socket"
}
