package trace

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/netip"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrtrace/atr/internal/probe"
)

var hopOpts = cmp.Options{
	cmp.Comparer(func(a, b netip.Addr) bool { return a == b }),
	cmpopts.IgnoreFields(HopResult{}, "Elapsed"),
	cmpopts.EquateErrors(),
}

func echoReplyFrom(addr netip.AddrPort) probe.Outcome {
	return probe.Outcome{Kind: probe.KindICMP, ICMPType: probe.ICMPTypeEchoReply, Responder: addr.Addr()}
}

func TestTrace_SequentialReachesDestination(t *testing.T) {
	p := newFakeProtocol(map[int]scriptedHop{
		4: {outcome: echoReplyFrom(testTarget)},
	})
	cfg := DefaultConfig()
	tr, rec := newTestTracer(cfg, p)
	defer tr.Close()

	result, err := tr.Trace(context.Background(), "example.com")
	require.NoError(t, err)

	want := []HopResult{
		{TTL: 1, Status: StatusInProgress, Responder: netip.MustParseAddr("10.0.0.1")},
		{TTL: 2, Status: StatusInProgress, Responder: netip.MustParseAddr("10.0.0.2")},
		{TTL: 3, Status: StatusInProgress, Responder: netip.MustParseAddr("10.0.0.3")},
		{TTL: 4, Status: StatusReached, Responder: testTarget.Addr()},
	}
	if diff := cmp.Diff(want, result.Hops, hopOpts); diff != "" {
		t.Errorf("Hops mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, rec.hops, hopOpts); diff != "" {
		t.Errorf("OnHop mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []int{1, 2, 3, 4}, p.sent())
	assert.True(t, result.Completed)
	assert.Equal(t, "example.com", result.Target.Host)
	assert.Equal(t, testTarget, result.ResolvedAddr)
	assert.Equal(t, "fake", result.Protocol)
	assert.Equal(t, StrategySequential, result.Strategy)
	assert.Equal(t, Summary{TotalHops: 4, Reached: 1, InProgress: 3, TotalTime: result.Summary.TotalTime}, result.Summary)
	assert.Positive(t, result.Summary.TotalTime)
}

func TestTrace_SequentialStopsAtCeiling(t *testing.T) {
	p := newFakeProtocol(nil)
	cfg := DefaultConfig()
	cfg.MaxHops = 5
	tr, rec := newTestTracer(cfg, p)

	result, err := tr.Trace(context.Background(), "example.com")
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4, 5}, p.sent())
	assert.Equal(t, []int{1, 2, 3, 4, 5}, rec.ttls())
	assert.False(t, result.Completed)
	assert.Equal(t, 5, result.Summary.InProgress)
}

func TestTrace_FirstHop(t *testing.T) {
	p := newFakeProtocol(nil)
	cfg := DefaultConfig()
	cfg.FirstHop = 3
	cfg.MaxHops = 6
	tr, _ := newTestTracer(cfg, p)

	_, err := tr.Trace(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 5, 6}, p.sent())
}

// For any synthetic sequence of statuses, the sequential sweep emits one
// result per TTL in ascending order and stops at the first Reached or at
// the ceiling.
func TestTrace_SequentialTermination(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	outcomes := []probe.Outcome{
		timeExceededFrom(1),
		{Kind: probe.KindRefused},
		{Kind: probe.KindUnreachable},
		{Kind: probe.KindTimeout, Err: probe.ErrTimeout},
		{Kind: probe.KindIOError, Err: errors.New("boom")},
		{Kind: probe.KindConnected},
		echoReplyFrom(testTarget),
	}

	for i := 0; i < 200; i++ {
		maxHops := 1 + rng.IntN(20)
		script := make(map[int]scriptedHop)
		wantLast, found := maxHops, false
		for ttl := 1; ttl <= maxHops; ttl++ {
			o := outcomes[rng.IntN(len(outcomes))]
			script[ttl] = scriptedHop{outcome: o}
			if !found && Classify(o) == StatusReached {
				wantLast, found = ttl, true
			}
		}

		p := newFakeProtocol(script)
		cfg := DefaultConfig()
		cfg.MaxHops = maxHops
		tr, rec := newTestTracer(cfg, p)

		_, err := tr.Trace(context.Background(), "example.com")
		require.NoError(t, err)

		got := rec.ttls()
		require.Len(t, got, wantLast, "case %d", i)
		for j, ttl := range got {
			require.Equal(t, j+1, ttl, "case %d", i)
		}
		for _, h := range rec.hops[:len(rec.hops)-1] {
			require.NotEqual(t, StatusReached, h.Status, "case %d: emitted past Reached", i)
		}
	}
}

// A TCP connect that succeeds at TTL 5 reaches the destination.
func TestTrace_TCPConnectReached(t *testing.T) {
	p := newFakeProtocol(map[int]scriptedHop{
		1: {outcome: probe.Outcome{Kind: probe.KindTimeout, Err: probe.ErrTimeout}},
		2: {outcome: probe.Outcome{Kind: probe.KindTimeout, Err: context.DeadlineExceeded}},
		3: {outcome: probe.Outcome{Kind: probe.KindRefused}},
		4: {outcome: probe.Outcome{Kind: probe.KindUnreachable, Err: errors.New("no route to host")}},
		5: {outcome: probe.Outcome{Kind: probe.KindConnected}, delay: 2 * time.Millisecond},
	})
	cfg := DefaultConfig()
	cfg.ProbeMethod = probe.MethodTCP
	cfg.Resolver = staticResolver{addrs: []netip.AddrPort{testTarget}}
	tr, rec := newTestTracer(cfg, p)

	result, err := tr.Trace(context.Background(), "93.184.216.34:443")
	require.NoError(t, err)

	require.Len(t, rec.hops, 5)
	statuses := []Status{StatusFailed, StatusFailed, StatusInProgress, StatusUnreachable, StatusReached}
	for i, h := range rec.hops {
		assert.Equal(t, statuses[i], h.Status, "ttl %d", h.TTL)
		assert.False(t, h.Responder.IsValid(), "ttl %d", h.TTL)
	}

	reached := rec.hops[4]
	assert.Equal(t, 5, reached.TTL)
	assert.Positive(t, reached.Elapsed)
	assert.NoError(t, reached.Err)
	assert.ErrorIs(t, rec.hops[0].Err, probe.ErrTimeout)
	assert.Error(t, rec.hops[3].Err)
	assert.NoError(t, rec.hops[2].Err)
	assert.True(t, result.Completed)
	assert.Equal(t, Summary{TotalHops: 5, Reached: 1, Unreachable: 1, Failed: 2, TimedOut: 2, InProgress: 1, TotalTime: result.Summary.TotalTime}, result.Summary)
}

// A probe that times out is Failed with an elapsed time close to the
// probe timeout.
func TestTrace_TimeoutIsFailed(t *testing.T) {
	const timeout = 60 * time.Millisecond
	p := newFakeProtocol(map[int]scriptedHop{
		1: {outcome: probe.Outcome{Kind: probe.KindTimeout, Err: probe.ErrTimeout}, delay: timeout},
	})
	cfg := DefaultConfig()
	cfg.MaxHops = 1
	tr, rec := newTestTracer(cfg, p)

	_, err := tr.Trace(context.Background(), "example.com")
	require.NoError(t, err)

	require.Len(t, rec.hops, 1)
	h := rec.hops[0]
	assert.Equal(t, StatusFailed, h.Status)
	assert.GreaterOrEqual(t, h.Elapsed, timeout)
	assert.Less(t, h.Elapsed, timeout+500*time.Millisecond)
	assert.InDelta(t, float64(h.Elapsed)/1e6, h.ElapsedMs(), 1e-9)
}

func TestTrace_ProbesFirstAddressOnly(t *testing.T) {
	addrs := []netip.AddrPort{
		netip.MustParseAddrPort("192.0.2.1:80"),
		netip.MustParseAddrPort("192.0.2.2:80"),
		netip.MustParseAddrPort("192.0.2.3:80"),
	}
	p := newFakeProtocol(nil)
	cfg := DefaultConfig()
	cfg.MaxHops = 3
	cfg.Resolver = staticResolver{addrs: addrs}
	var resolved []Target
	cfg.OnResolved = func(tgt Target) { resolved = append(resolved, tgt) }
	tr, _ := newTestTracer(cfg, p)

	result, err := tr.Trace(context.Background(), "multi.example")
	require.NoError(t, err)

	require.Len(t, resolved, 1)
	assert.Equal(t, Target{Host: "multi.example", Addrs: addrs}, resolved[0])

	assert.Equal(t, addrs, result.Target.Addrs)
	assert.Equal(t, addrs[0], result.ResolvedAddr)
	for _, d := range p.dests {
		assert.Equal(t, addrs[0], d)
	}
}

func TestTrace_ResolutionErrors(t *testing.T) {
	tests := []struct {
		name     string
		resolver Resolver
	}{
		{name: "lookup failure", resolver: staticResolver{err: errors.New("no such host")}},
		{name: "typed failure", resolver: staticResolver{err: &ResolutionError{Host: "x", Err: errors.New("nxdomain")}}},
		{name: "empty result", resolver: staticResolver{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProtocol(nil)
			cfg := DefaultConfig()
			cfg.Resolver = tt.resolver
			tr, rec := newTestTracer(cfg, p)

			result, err := tr.Trace(context.Background(), "nowhere.invalid")
			assert.Nil(t, result)
			assert.ErrorIs(t, err, ErrTargetResolution)
			var re *ResolutionError
			assert.ErrorAs(t, err, &re)
			assert.Empty(t, p.sent())
			assert.Empty(t, rec.hops)
		})
	}
}

func TestTrace_SetupPolicies(t *testing.T) {
	setupErr := &probe.SetupError{Op: "set ttl", Err: errors.New("bad option")}

	t.Run("abort", func(t *testing.T) {
		p := newFakeProtocol(map[int]scriptedHop{3: {sendErr: setupErr}})
		cfg := DefaultConfig()
		tr, rec := newTestTracer(cfg, p)

		result, err := tr.Trace(context.Background(), "example.com")
		assert.Nil(t, result)
		assert.ErrorIs(t, err, setupErr)
		assert.True(t, probe.IsSetupError(err))
		assert.Equal(t, []int{1, 2}, rec.ttls())
	})

	t.Run("skip", func(t *testing.T) {
		p := newFakeProtocol(map[int]scriptedHop{
			3: {sendErr: setupErr},
			4: {outcome: echoReplyFrom(testTarget)},
		})
		cfg := DefaultConfig()
		cfg.SetupPolicy = SetupSkip
		tr, rec := newTestTracer(cfg, p)

		result, err := tr.Trace(context.Background(), "example.com")
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3, 4}, rec.ttls())
		assert.Equal(t, StatusFailed, rec.hops[2].Status)
		assert.ErrorIs(t, rec.hops[2].Err, setupErr)
		assert.True(t, result.Completed)
	})

	t.Run("retry then succeed", func(t *testing.T) {
		p := newFakeProtocol(map[int]scriptedHop{
			1: {sendErr: setupErr, sendFailures: 2, outcome: echoReplyFrom(testTarget)},
		})
		cfg := DefaultConfig()
		cfg.SetupRetries = 2
		cfg.RetryDelay = time.Millisecond
		tr, rec := newTestTracer(cfg, p)

		_, err := tr.Trace(context.Background(), "example.com")
		require.NoError(t, err)
		assert.Equal(t, 3, p.tries[1])
		require.Len(t, rec.hops, 1)
		assert.Equal(t, StatusReached, rec.hops[0].Status)
	})

	t.Run("non-setup errors are not retried", func(t *testing.T) {
		p := newFakeProtocol(map[int]scriptedHop{1: {sendErr: probe.ErrNotIPv4}})
		cfg := DefaultConfig()
		cfg.SetupRetries = 3
		cfg.SetupPolicy = SetupSkip
		tr, _ := newTestTracer(cfg, p)

		_, err := tr.Trace(context.Background(), "example.com")
		assert.ErrorIs(t, err, probe.ErrNotIPv4)
		assert.Equal(t, 1, p.tries[1])
	})
}

func TestTrace_SequentialCancelled(t *testing.T) {
	p := newFakeProtocol(map[int]scriptedHop{3: {block: true}})
	cfg := DefaultConfig()
	tr, rec := newTestTracer(cfg, p)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result, err := tr.Trace(ctx, "example.com")
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, []int{1, 2}, rec.ttls())
	assert.Len(t, result.Hops, 2)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxHops = 0
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrInvalidMaxHops)

	_, err = NewWithProtocol(cfg, newFakeProtocol(nil))
	assert.ErrorIs(t, err, ErrInvalidMaxHops)
}

func TestTracer_Close(t *testing.T) {
	p := newFakeProtocol(nil)
	tr, err := NewWithProtocol(nil, p)
	require.NoError(t, err)
	require.NoError(t, tr.Close())
	assert.True(t, p.closed)
}

func TestBuildHopList(t *testing.T) {
	tests := []struct {
		name string
		in   []HopResult
		want []int
	}{
		{
			name: "sorts by ttl",
			in:   []HopResult{{TTL: 3}, {TTL: 1}, {TTL: 2}},
			want: []int{1, 2, 3},
		},
		{
			name: "truncates after lowest reached",
			in:   []HopResult{{TTL: 5, Status: StatusReached}, {TTL: 1}, {TTL: 3, Status: StatusReached}, {TTL: 4}},
			want: []int{1, 3},
		},
		{
			name: "empty",
			in:   nil,
			want: []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildHopList(tt.in)
			ttls := make([]int, len(got))
			for i, h := range got {
				ttls[i] = h.TTL
			}
			assert.Equal(t, tt.want, ttls)
		})
	}
}

func TestTrace_Localhost(t *testing.T) {
	if !canCreateRawSocket() {
		t.Skip("Skipping: requires elevated privileges")
	}

	cfg := DefaultConfig()
	cfg.MaxHops = 5
	cfg.Timeout = 2 * time.Second
	tr, err := New(cfg)
	require.NoError(t, err)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result, err := tr.Trace(ctx, "127.0.0.1")
	require.NoError(t, err)
	assert.True(t, result.Completed)
	require.Len(t, result.Hops, 1)
	assert.Equal(t, StatusReached, result.Hops[0].Status)
	assert.Equal(t, netip.MustParseAddr("127.0.0.1"), result.Hops[0].Responder)
}
