package probe

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"
)

// Probe-related errors.
var (
	// ErrTimeout indicates the probe timed out waiting for a response
	ErrTimeout = errors.New("probe timeout")

	// ErrPermissionDenied indicates insufficient privileges for raw sockets
	ErrPermissionDenied = errors.New("permission denied: raw socket requires elevated privileges")

	// ErrInvalidPacket indicates a malformed or unexpected packet was received
	ErrInvalidPacket = errors.New("invalid packet received")

	// ErrSocketClosed indicates the socket has been closed
	ErrSocketClosed = errors.New("socket closed")

	// ErrInvalidTTL indicates the TTL value is out of range
	ErrInvalidTTL = errors.New("TTL must be between 1 and 255")

	// ErrNotIPv4 indicates a destination that is not an IPv4 address
	ErrNotIPv4 = errors.New("destination must be an IPv4 address")

	// ErrUnknownMethod indicates an unsupported probe protocol
	ErrUnknownMethod = errors.New("unknown probe protocol")
)

// SetupError reports a failure to create or configure a probe socket.
type SetupError struct {
	Op  string
	Err error
}

func (e *SetupError) Error() string {
	return "probe setup: " + e.Op + ": " + e.Err.Error()
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// Is reports ErrPermissionDenied for setup failures caused by missing
// privileges.
func (e *SetupError) Is(target error) bool {
	return target == ErrPermissionDenied && errors.Is(e.Err, os.ErrPermission)
}

// IsTimeout returns true if the error indicates a timeout: the probe's own
// ErrTimeout, an expired deadline, or a net.Error that timed out.
func IsTimeout(err error) bool {
	return err != nil && KindFromError(err) == KindTimeout
}

// IsPermissionError returns true if the error is a permission error.
func IsPermissionError(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, os.ErrPermission)
}

// IsSetupError returns true if err is or wraps a *SetupError.
func IsSetupError(err error) bool {
	var se *SetupError
	return errors.As(err, &se)
}

// KindFromError maps a non-nil probe error to an outcome kind.
func KindFromError(err error) Kind {
	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.Is(err, ErrTimeout):
		return KindTimeout
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if k, ok := errnoKind(errno); ok {
			return k
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindIOError
}
