//go:build windows

package probe

import (
	"syscall"
)

const (
	ipprotoIP = 0
	ipTTL     = 4
)

// Winsock error codes.
const (
	wsaeNetUnreach  syscall.Errno = 10051
	wsaeConnReset   syscall.Errno = 10054
	wsaeTimedOut    syscall.Errno = 10060
	wsaeConnRefused syscall.Errno = 10061
	wsaeHostUnreach syscall.Errno = 10065
)

// setIPv4TTL sets the unicast TTL on an IPv4 socket on Windows.
func setIPv4TTL(fd uintptr, ttl int) error {
	return syscall.SetsockoptInt(syscall.Handle(fd), ipprotoIP, ipTTL, ttl)
}

func errnoKind(errno syscall.Errno) (Kind, bool) {
	switch errno {
	case wsaeConnRefused, wsaeConnReset:
		return KindRefused, true
	case wsaeHostUnreach, wsaeNetUnreach:
		return KindUnreachable, true
	case wsaeTimedOut:
		return KindTimeout, true
	}
	return 0, false
}
