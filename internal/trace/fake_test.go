package trace

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/atrtrace/atr/internal/probe"
)

// scriptedHop describes how the fake protocol answers one TTL.
type scriptedHop struct {
	outcome probe.Outcome
	delay   time.Duration
	block   bool // wait for ctx instead of answering
	sendErr error
	// sendFailures makes the first n sends fail with sendErr
	sendFailures int
}

// fakeProtocol answers each TTL from script. Unscripted TTLs return a
// Time Exceeded from 10.0.0.<ttl>.
type fakeProtocol struct {
	mu     sync.Mutex
	script map[int]scriptedHop
	sends  []int
	dests  []netip.AddrPort
	tries  map[int]int
	closed bool
}

func newFakeProtocol(script map[int]scriptedHop) *fakeProtocol {
	return &fakeProtocol{script: script, tries: make(map[int]int)}
}

func timeExceededFrom(ttl int) probe.Outcome {
	return probe.Outcome{
		Kind:      probe.KindICMP,
		ICMPType:  probe.ICMPTypeTimeExceeded,
		Responder: netip.AddrFrom4([4]byte{10, 0, 0, byte(ttl)}),
	}
}

func (f *fakeProtocol) Send(ctx context.Context, ttl int, dest netip.AddrPort, seq uint16) (probe.Probe, error) {
	if int(seq) != ttl {
		return nil, fmt.Errorf("seq %d does not match ttl %d", seq, ttl)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.tries[ttl]++
	h, ok := f.script[ttl]
	if !ok {
		h = scriptedHop{outcome: timeExceededFrom(ttl)}
	}
	if h.sendErr != nil && (h.sendFailures == 0 || f.tries[ttl] <= h.sendFailures) {
		return nil, h.sendErr
	}
	f.sends = append(f.sends, ttl)
	f.dests = append(f.dests, dest)
	return &fakeProbe{hop: h}, nil
}

func (f *fakeProtocol) Name() string { return "fake" }

func (f *fakeProtocol) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeProtocol) sent() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.sends...)
}

type fakeProbe struct {
	hop scriptedHop
}

func (p *fakeProbe) Recv(ctx context.Context) probe.Outcome {
	if p.hop.block {
		<-ctx.Done()
		return probe.Outcome{Kind: probe.KindFromError(ctx.Err()), Err: ctx.Err()}
	}
	if p.hop.delay > 0 {
		select {
		case <-time.After(p.hop.delay):
		case <-ctx.Done():
			return probe.Outcome{Kind: probe.KindFromError(ctx.Err()), Err: ctx.Err()}
		}
	}
	return p.hop.outcome
}

// staticResolver returns addrs for any host.
type staticResolver struct {
	addrs []netip.AddrPort
	err   error
}

func (r staticResolver) Resolve(context.Context, string, int) ([]netip.AddrPort, error) {
	return r.addrs, r.err
}

var testTarget = netip.MustParseAddrPort("93.184.216.34:443")

// hopRecorder collects OnHop calls.
type hopRecorder struct {
	mu   sync.Mutex
	hops []HopResult
}

func (r *hopRecorder) record(h HopResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hops = append(r.hops, h)
}

func (r *hopRecorder) ttls() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.hops))
	for i, h := range r.hops {
		out[i] = h.TTL
	}
	return out
}

func newTestTracer(cfg *Config, p probe.Protocol) (*Tracer, *hopRecorder) {
	rec := &hopRecorder{}
	if cfg.Resolver == nil {
		cfg.Resolver = staticResolver{addrs: []netip.AddrPort{testTarget}}
	}
	cfg.OnHop = rec.record
	tr, err := NewWithProtocol(cfg, p)
	if err != nil {
		panic(err)
	}
	return tr, rec
}
