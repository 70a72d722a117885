package trace

import (
	"errors"
	"fmt"
)

// Trace-related errors.
var (
	// ErrInvalidMaxHops indicates max hops is out of valid range (1-255)
	ErrInvalidMaxHops = errors.New("max hops must be between 1 and 255")

	// ErrInvalidTimeout indicates timeout is too short
	ErrInvalidTimeout = errors.New("timeout must be at least 10ms")

	// ErrInvalidFirstHop indicates first hop is invalid
	ErrInvalidFirstHop = errors.New("first hop must be between 1 and max hops")

	// ErrInvalidSetupRetries indicates a negative retry count
	ErrInvalidSetupRetries = errors.New("setup retries must not be negative")

	// ErrInvalidPort indicates a default port outside 1-65535
	ErrInvalidPort = errors.New("port must be between 1 and 65535")

	// ErrTargetResolution indicates the target could not be resolved
	ErrTargetResolution = errors.New("could not resolve target")
)

// ResolutionError reports that no usable address was found for Host.
type ResolutionError struct {
	Host string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%v %q: %v", ErrTargetResolution, e.Host, e.Err)
}

func (e *ResolutionError) Unwrap() []error {
	return []error{ErrTargetResolution, e.Err}
}
