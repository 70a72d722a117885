//go:build windows

package probe

import "syscall"

var (
	errRefused     error = wsaeConnRefused
	errReset       error = wsaeConnReset
	errHostUnreach error = wsaeHostUnreach
	errNetUnreach  error = wsaeNetUnreach
	errPermission  error = syscall.ERROR_ACCESS_DENIED
)
