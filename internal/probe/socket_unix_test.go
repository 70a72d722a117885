//go:build linux || darwin || freebsd || netbsd || openbsd

package probe

import "golang.org/x/sys/unix"

var (
	errRefused     error = unix.ECONNREFUSED
	errReset       error = unix.ECONNRESET
	errHostUnreach error = unix.EHOSTUNREACH
	errNetUnreach  error = unix.ENETUNREACH
	errPermission  error = unix.EPERM
)
