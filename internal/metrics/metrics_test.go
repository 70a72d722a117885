package metrics

import (
	"net/netip"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrtrace/atr/internal/trace"
)

// counterValue returns the value of the sample of family name whose labels
// include want.
func counterValue(t *testing.T, r *Recorder, name string, want map[string]string) float64 {
	t.Helper()
	families, err := r.GetRegistry().Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			if hasLabels(m, want) {
				switch {
				case m.GetCounter() != nil:
					return m.GetCounter().GetValue()
				case m.GetGauge() != nil:
					return m.GetGauge().GetValue()
				case m.GetHistogram() != nil:
					return float64(m.GetHistogram().GetSampleCount())
				}
			}
		}
	}
	return 0
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	found := 0
	for _, lp := range m.GetLabel() {
		if v, ok := want[lp.GetName()]; ok && v == lp.GetValue() {
			found++
		}
	}
	return found == len(want)
}

func TestRecorder_GetCollectors(t *testing.T) {
	r := New("icmp")
	assert.Len(t, r.GetCollectors(), 4)
	assert.NotNil(t, r.GetRegistry())
}

func TestRecorder_ObserveHop(t *testing.T) {
	r := New("tcp")

	hops := []trace.HopResult{
		{TTL: 1, Status: trace.StatusInProgress, Elapsed: 2 * time.Millisecond, Responder: netip.MustParseAddr("10.0.0.1")},
		{TTL: 2, Status: trace.StatusFailed, Elapsed: time.Second},
		{TTL: 3, Status: trace.StatusFailed, Elapsed: time.Second},
		{TTL: 4, Status: trace.StatusReached, Elapsed: 20 * time.Millisecond},
	}
	var wg sync.WaitGroup
	for _, h := range hops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.ObserveHop(h)
		}()
	}
	wg.Wait()

	tests := []struct {
		status string
		want   float64
	}{
		{"in-progress", 1},
		{"failed", 2},
		{"reached", 1},
		{"unreachable", 0},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			labels := map[string]string{"protocol": "tcp", "status": tt.status}
			assert.Equal(t, tt.want, counterValue(t, r, "atr_hops_total", labels))
			assert.Equal(t, tt.want, counterValue(t, r, "atr_hop_elapsed_seconds", labels))
		})
	}
}

func TestRecorder_ObserveTrace(t *testing.T) {
	r := New("icmp")

	r.ObserveTrace(&trace.TraceResult{Completed: true, Hops: make([]trace.HopResult, 7)})
	r.ObserveTrace(&trace.TraceResult{Completed: false, Hops: make([]trace.HopResult, 3)})

	assert.Equal(t, 1.0, counterValue(t, r, "atr_traces_total", map[string]string{"completed": "true"}))
	assert.Equal(t, 1.0, counterValue(t, r, "atr_traces_total", map[string]string{"completed": "false"}))
	assert.Equal(t, 3.0, counterValue(t, r, "atr_path_length_hops", nil))
}

func TestRecorder_WriteToTextfile(t *testing.T) {
	r := New("icmp")
	r.ObserveHop(trace.HopResult{TTL: 5, Status: trace.StatusReached, Elapsed: 3 * time.Millisecond})

	path := filepath.Join(t.TempDir(), "atr.prom")
	require.NoError(t, r.WriteToTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `atr_hops_total{protocol="icmp",status="reached"} 1`)
	assert.Contains(t, string(data), "# TYPE atr_hop_elapsed_seconds histogram")

	err = r.WriteToTextfile(filepath.Join(t.TempDir(), "missing", "atr.prom"))
	assert.Error(t, err)
}
