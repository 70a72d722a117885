package probe

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/icmp"

	"github.com/atrtrace/atr/internal/logger"
)

// ICMPEchoConfig holds configuration for the ICMP echo prober.
type ICMPEchoConfig struct {
	// Timeout is the per-probe wait for a reply (default 300ms)
	Timeout time.Duration

	// Identifier is the echo identifier (default DefaultIdentifier)
	Identifier uint16
}

// echoConn is the socket surface ICMPEcho needs.
type echoConn interface {
	ReadFrom(b []byte) (int, net.Addr, error)
	WriteTo(b []byte, dst net.Addr) (int, error)
	SetTTL(ttl int) error
	Close() error
}

type rawICMPConn struct {
	*icmp.PacketConn
}

func (c rawICMPConn) SetTTL(ttl int) error {
	return c.IPv4PacketConn().SetTTL(ttl)
}

type echoReply struct {
	typ  int
	code int
	from netip.Addr
}

// ICMPEcho implements Protocol with ICMP echo requests on one raw socket
// shared by every probe. Sends are serialized because the TTL is a
// socket-wide option; a single reader goroutine routes each reply to the
// probe waiting on its sequence number.
type ICMPEcho struct {
	conn    echoConn
	id      uint16
	timeout time.Duration

	sendMu sync.Mutex

	mu      sync.Mutex
	pending map[uint16]chan echoReply
	readErr error

	done      chan struct{}
	closeOnce sync.Once
}

// NewICMPEcho opens a raw ICMP socket and starts its reader.
func NewICMPEcho(config ICMPEchoConfig) (*ICMPEcho, error) {
	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return nil, &SetupError{Op: "listen ip4:icmp", Err: err}
	}
	return newICMPEcho(rawICMPConn{conn}, config), nil
}

func newICMPEcho(conn echoConn, config ICMPEchoConfig) *ICMPEcho {
	if config.Timeout <= 0 {
		config.Timeout = 300 * time.Millisecond
	}
	if config.Identifier == 0 {
		config.Identifier = DefaultIdentifier
	}

	e := &ICMPEcho{
		conn:    conn,
		id:      config.Identifier,
		timeout: config.Timeout,
		pending: make(map[uint16]chan echoReply),
		done:    make(chan struct{}),
	}
	go e.readLoop()
	return e
}

// Send sets the socket TTL and writes one echo request with sequence seq.
// A write error does not fail the call; it surfaces as the probe outcome.
func (e *ICMPEcho) Send(ctx context.Context, ttl int, dest netip.AddrPort, seq uint16) (Probe, error) {
	if err := checkTarget(ttl, dest); err != nil {
		return nil, err
	}

	p := &icmpProbe{
		owner: e,
		seq:   seq,
		ch:    make(chan echoReply, 1),
	}
	if err := e.register(p); err != nil {
		return nil, err
	}

	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	if err := e.conn.SetTTL(ttl); err != nil {
		e.forget(p)
		return nil, &SetupError{Op: "set ttl", Err: err}
	}

	p.deadline = time.Now().Add(e.timeout)
	dst := &net.IPAddr{IP: net.IP(dest.Addr().AsSlice())}
	if _, err := e.conn.WriteTo(BuildEchoRequest(e.id, seq), dst); err != nil {
		e.forget(p)
		p.failed = errorOutcome(err)
	}

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"ttl": ttl,
		"seq": seq,
		"dst": dest.Addr(),
	}).Debug("icmp echo request sent")
	return p, nil
}

// Name returns the probe method name.
func (e *ICMPEcho) Name() string {
	return MethodICMP.String()
}

// Close closes the socket and waits for the reader to exit.
func (e *ICMPEcho) Close() error {
	var err error
	e.closeOnce.Do(func() {
		err = e.conn.Close()
		<-e.done
	})
	return err
}

func (e *ICMPEcho) register(p *icmpProbe) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.readErr != nil {
		return e.readErr
	}
	e.pending[p.seq] = p.ch
	return nil
}

func (e *ICMPEcho) forget(p *icmpProbe) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending[p.seq] == p.ch {
		delete(e.pending, p.seq)
	}
}

// deliver hands r to the probe waiting on seq, if any. Duplicates and
// replies to abandoned probes are dropped.
func (e *ICMPEcho) deliver(seq uint16, r echoReply) {
	e.mu.Lock()
	ch, ok := e.pending[seq]
	if ok {
		delete(e.pending, seq)
	}
	e.mu.Unlock()

	if ok {
		ch <- r
	}
}

func (e *ICMPEcho) readLoop() {
	defer close(e.done)

	buf := make([]byte, 1500)
	for {
		n, peer, err := e.conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				err = ErrSocketClosed
			}
			e.mu.Lock()
			e.readErr = err
			e.mu.Unlock()
			return
		}

		msg, err := ParseDatagram(buf[:n])
		if err != nil {
			continue
		}
		seq, ok := MatchEcho(msg, e.id)
		if !ok {
			continue
		}
		e.deliver(seq, echoReply{
			typ:  MessageType(msg),
			code: msg.Code,
			from: peerAddr(peer),
		})
	}
}

type icmpProbe struct {
	owner    *ICMPEcho
	seq      uint16
	ch       chan echoReply
	deadline time.Time
	failed   Outcome
}

func (p *icmpProbe) Recv(ctx context.Context) Outcome {
	if p.failed.Err != nil {
		return p.failed
	}
	defer p.owner.forget(p)

	timer := time.NewTimer(time.Until(p.deadline))
	defer timer.Stop()

	select {
	case r := <-p.ch:
		return Outcome{Kind: KindICMP, ICMPType: r.typ, ICMPCode: r.code, Responder: r.from}
	case <-timer.C:
		return Outcome{Kind: KindTimeout, Err: ErrTimeout}
	case <-ctx.Done():
		return errorOutcome(ctx.Err())
	case <-p.owner.done:
		p.owner.mu.Lock()
		err := p.owner.readErr
		p.owner.mu.Unlock()
		return Outcome{Kind: KindIOError, Err: err}
	}
}

func peerAddr(addr net.Addr) netip.Addr {
	var ip net.IP
	switch a := addr.(type) {
	case *net.IPAddr:
		ip = a.IP
	case *net.UDPAddr:
		ip = a.IP
	}
	if a, ok := netip.AddrFromSlice(ip); ok {
		return a.Unmap()
	}
	return netip.Addr{}
}
