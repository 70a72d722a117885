package trace

type sweepState int

const (
	stateNotStarted sweepState = iota
	stateProbing
	stateTerminated
)

// sweep is the TTL state machine:
// NotStarted -> Probing(ttl) -> Probing(ttl+1) | Terminated.
type sweep struct {
	first int
	last  int
	ttl   int
	state sweepState
}

func newSweep(first, last int) *sweep {
	return &sweep{first: first, last: last}
}

// start moves to Probing(first) and returns the first TTL.
func (s *sweep) start() int {
	s.ttl = s.first
	s.state = stateProbing
	return s.ttl
}

// advance consumes the result for the current TTL. It terminates on a
// Reached hop or at the ceiling, otherwise it returns the next TTL.
func (s *sweep) advance(h HopResult) (next int, done bool) {
	if s.state != stateProbing {
		return 0, true
	}
	if h.Status == StatusReached || s.ttl >= s.last {
		s.state = stateTerminated
		return 0, true
	}
	s.ttl++
	return s.ttl, false
}

// terminate ends the sweep regardless of state.
func (s *sweep) terminate() {
	s.state = stateTerminated
}

func (s *sweep) terminated() bool {
	return s.state == stateTerminated
}
