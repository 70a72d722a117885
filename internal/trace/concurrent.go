package trace

import (
	"context"
	"net/netip"
	"sync"

	"github.com/atrtrace/atr/internal/probe"
)

// hopOutcome is what a concurrent probe task hands back.
type hopOutcome struct {
	hop  HopResult
	kind probe.Kind
	err  error
}

// traceConcurrent dispatches every TTL at once and emits hops in arrival
// order. The first Reached hop stops emission and cancels the probes above
// it; probes below it are still drained into the result, so a slower
// Reached reply from a lower TTL still ends the path there. Cancelled
// results are discarded. Timed out probes are kept as Failed or dropped
// according to TimeoutPolicy.
func (t *Tracer) traceConcurrent(ctx context.Context, dest netip.AddrPort) ([]HopResult, error) {
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	first, last := t.config.FirstHop, t.config.MaxHops
	results := make(chan hopOutcome, last-first+1)

	cancels := make([]context.CancelFunc, last-first+1)
	var wg sync.WaitGroup
	for ttl := first; ttl <= last; ttl++ {
		hopCtx, hopCancel := context.WithCancel(ctx)
		cancels[ttl-first] = hopCancel
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer hopCancel()
			hop, kind, err := t.probeHop(hopCtx, dest, ttl)
			results <- hopOutcome{hop: hop, kind: kind, err: err}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// cancelAbove stops every probe with a TTL greater than ttl.
	cancelAbove := func(ttl int) {
		for i := ttl + 1 - first; i < len(cancels); i++ {
			cancels[i]()
		}
	}

	s := newSweep(first, last)
	s.start()
	hops := make([]HopResult, 0, last-first+1)
	reached := last + 1
	var setupErr error

	for r := range results {
		if setupErr != nil {
			continue
		}

		switch {
		case r.err != nil:
			if r.hop.TTL > reached {
				continue
			}
			setupErr = r.err
			s.terminate()
			cancel()
			continue
		case r.kind == probe.KindCancelled:
			continue
		case r.kind == probe.KindTimeout && t.config.TimeoutPolicy == TimeoutDrop:
			continue
		case r.hop.TTL > reached:
			continue
		}

		hops = append(hops, r.hop)
		if !s.terminated() {
			t.emit(r.hop)
		}

		if r.hop.Status == StatusReached {
			reached = r.hop.TTL
			s.terminate()
			cancelAbove(reached)
		}
	}

	if setupErr != nil {
		return hops, setupErr
	}
	if err := parent.Err(); err != nil {
		return hops, err
	}
	return hops, nil
}
