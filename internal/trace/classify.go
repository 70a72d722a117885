package trace

import (
	"github.com/atrtrace/atr/internal/probe"
)

// Classify maps a raw probe outcome to a hop status. It is a pure function
// of its input.
func Classify(o probe.Outcome) Status {
	switch o.Kind {
	case probe.KindICMP:
		switch o.ICMPType {
		case probe.ICMPTypeTimeExceeded:
			return StatusInProgress
		case probe.ICMPTypeUnreachable:
			return StatusUnreachable
		default:
			return StatusReached
		}
	case probe.KindConnected:
		return StatusReached
	case probe.KindRefused:
		return StatusInProgress
	case probe.KindUnreachable:
		return StatusUnreachable
	default:
		return StatusFailed
	}
}
