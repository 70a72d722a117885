package trace

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/atrtrace/atr/internal/helper"
	"github.com/atrtrace/atr/internal/logger"
	"github.com/atrtrace/atr/internal/probe"
)

// Tracer performs network path tracing operations.
type Tracer struct {
	config   Config
	protocol probe.Protocol
}

// New creates a new Tracer with the given configuration, opening the
// configured probe protocol.
func New(config *Config) (*Tracer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	cfg := config.withDefaults()
	p, err := probe.Open(cfg.ProbeMethod, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create prober: %w", err)
	}
	return &Tracer{config: cfg, protocol: p}, nil
}

// NewWithProtocol creates a Tracer that probes with p instead of opening
// the protocol named by config.ProbeMethod.
func NewWithProtocol(config *Config, p probe.Protocol) (*Tracer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Tracer{config: config.withDefaults(), protocol: p}, nil
}

// Trace resolves target and sweeps the TTL toward its first address.
// Resolution and aborted setup errors return a nil result. When ctx ends
// mid-sweep the hops gathered so far are returned along with ctx.Err().
func (t *Tracer) Trace(ctx context.Context, target string) (*TraceResult, error) {
	started := time.Now()
	log := logger.FromContext(ctx).WithField("target", target)

	addrs, err := t.config.Resolver.Resolve(ctx, target, t.config.Port)
	if err == nil && len(addrs) == 0 {
		err = errors.New("resolver returned no addresses")
	}
	if err != nil {
		var re *ResolutionError
		if !errors.As(err, &re) {
			err = &ResolutionError{Host: target, Err: err}
		}
		return nil, err
	}

	tgt := Target{Host: target, Addrs: addrs}
	dest := addrs[0]
	log.WithFields(logrus.Fields{
		"addrs":    addrs,
		"probing":  dest,
		"protocol": t.protocol.Name(),
		"strategy": t.config.Strategy,
	}).Debug("target ips resolved")
	ctx = logger.IntoContext(ctx, log)
	if t.config.OnResolved != nil {
		t.config.OnResolved(tgt)
	}

	var hops []HopResult
	switch t.config.Strategy {
	case StrategyConcurrent:
		hops, err = t.traceConcurrent(ctx, dest)
	default:
		hops, err = t.traceSequential(ctx, dest)
	}

	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return t.buildResult(tgt, dest, started, hops), err
		}
		return nil, err
	}
	return t.buildResult(tgt, dest, started, hops), nil
}

// Close releases resources held by the tracer.
func (t *Tracer) Close() error {
	if t.protocol != nil {
		return t.protocol.Close()
	}
	return nil
}

// traceSequential keeps one probe in flight and emits hops in TTL order.
func (t *Tracer) traceSequential(ctx context.Context, dest netip.AddrPort) ([]HopResult, error) {
	s := newSweep(t.config.FirstHop, t.config.MaxHops)
	hops := make([]HopResult, 0, t.config.MaxHops-t.config.FirstHop+1)

	for ttl, done := s.start(), false; !done; {
		if err := ctx.Err(); err != nil {
			return hops, err
		}

		hop, kind, err := t.probeHop(ctx, dest, ttl)
		if err != nil {
			return hops, err
		}
		if kind == probe.KindCancelled {
			return hops, ctx.Err()
		}

		hops = append(hops, hop)
		t.emit(hop)
		ttl, done = s.advance(hop)
	}
	return hops, nil
}

// probeHop sends one probe at ttl and classifies its outcome. A non-nil
// error means the sweep must abort.
func (t *Tracer) probeHop(ctx context.Context, dest netip.AddrPort, ttl int) (HopResult, probe.Kind, error) {
	ctx, span := t.config.OTelTracer.Start(ctx, "probe hop", oteltrace.WithAttributes(
		attribute.Stringer("traceroute.target.address", dest),
		attribute.Int("traceroute.target.ttl", ttl),
		attribute.String("traceroute.protocol", t.protocol.Name()),
	))
	defer span.End()

	start := time.Now()
	var pr probe.Probe
	send := helper.Retry(func(ctx context.Context) error {
		var err error
		pr, err = t.protocol.Send(ctx, ttl, dest, uint16(ttl))
		if err != nil && !probe.IsSetupError(err) {
			return helper.Permanent(err)
		}
		return err
	}, helper.RetryConfig{Count: t.config.SetupRetries, Delay: t.config.RetryDelay})

	if err := send(ctx); err != nil {
		if ctx.Err() != nil {
			return HopResult{TTL: ttl}, probe.KindCancelled, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "probe setup failed")
		if t.config.SetupPolicy == SetupSkip && probe.IsSetupError(err) {
			hop := HopResult{TTL: ttl, Elapsed: time.Since(start), Status: StatusFailed, Err: err}
			return hop, probe.KindIOError, nil
		}
		return HopResult{TTL: ttl}, probe.KindIOError, fmt.Errorf("ttl %d: %w", ttl, err)
	}

	out := pr.Recv(ctx)
	if ctx.Err() != nil && (out.Kind == probe.KindCancelled || out.Kind == probe.KindTimeout) {
		return HopResult{TTL: ttl}, probe.KindCancelled, nil
	}
	hop := HopResult{
		TTL:       ttl,
		Elapsed:   time.Since(start),
		Status:    Classify(out),
		Responder: out.Responder,
	}
	if hop.Status == StatusFailed || hop.Status == StatusUnreachable {
		hop.Err = out.Err
	}

	span.SetAttributes(
		attribute.String("traceroute.hop.status", hop.Status.String()),
		attribute.String("traceroute.hop.outcome", out.Kind.String()),
		attribute.Float64("traceroute.hop.elapsed_ms", hop.ElapsedMs()),
	)
	if hop.Responder.IsValid() {
		span.SetAttributes(attribute.Stringer("traceroute.hop.responder", hop.Responder))
	}
	if hop.Err != nil {
		span.RecordError(hop.Err)
	}

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"ttl":     ttl,
		"outcome": out.Kind,
		"status":  hop.Status,
		"elapsed": hop.Elapsed,
	}).Debug("hop probed")

	return hop, out.Kind, nil
}

func (t *Tracer) emit(hop HopResult) {
	if t.config.OnHop != nil {
		t.config.OnHop(hop)
	}
}

// buildResult creates a TraceResult from the collected hops.
func (t *Tracer) buildResult(target Target, dest netip.AddrPort, started time.Time, hops []HopResult) *TraceResult {
	ordered := buildHopList(hops)
	result := &TraceResult{
		Target:       target,
		ResolvedAddr: dest,
		Timestamp:    started,
		Protocol:     t.protocol.Name(),
		Strategy:     t.config.Strategy,
		Hops:         ordered,
	}

	result.Summary.TotalHops = len(ordered)
	for _, hop := range ordered {
		switch hop.Status {
		case StatusReached:
			result.Summary.Reached++
			result.Completed = true
		case StatusUnreachable:
			result.Summary.Unreachable++
		case StatusFailed:
			result.Summary.Failed++
			if probe.IsTimeout(hop.Err) {
				result.Summary.TimedOut++
			}
		case StatusInProgress:
			result.Summary.InProgress++
		}
	}
	result.Summary.TotalTime = time.Since(started)

	return result
}

// buildHopList sorts hops by TTL and drops those beyond the lowest
// reached TTL.
func buildHopList(hops []HopResult) []HopResult {
	ordered := make([]HopResult, len(hops))
	copy(ordered, hops)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].TTL < ordered[j].TTL
	})

	for i, hop := range ordered {
		if hop.Status == StatusReached {
			return ordered[:i+1]
		}
	}
	return ordered
}
