//go:build linux || darwin || freebsd || netbsd || openbsd

package probe

import (
	"golang.org/x/sys/unix"
)

// setIPv4TTL sets the unicast TTL on an IPv4 socket on Unix systems.
func setIPv4TTL(fd uintptr, ttl int) error {
	return unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TTL, ttl)
}

func errnoKind(errno unix.Errno) (Kind, bool) {
	switch errno {
	case unix.ECONNREFUSED, unix.ECONNRESET:
		return KindRefused, true
	case unix.EHOSTUNREACH, unix.ENETUNREACH:
		return KindUnreachable, true
	case unix.ETIMEDOUT:
		return KindTimeout, true
	}
	return 0, false
}
