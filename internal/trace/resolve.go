package trace

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/atrtrace/atr/internal/probe"
)

// Resolver turns "host" or "host:port" into candidate IPv4 socket
// addresses. defaultPort applies when hostport names no port.
type Resolver interface {
	Resolve(ctx context.Context, hostport string, defaultPort int) ([]netip.AddrPort, error)
}

// NetResolver resolves through a *net.Resolver (net.DefaultResolver when
// nil). IPv4 literals are returned without a lookup.
type NetResolver struct {
	Resolver *net.Resolver
}

// Resolve implements Resolver.
func (r NetResolver) Resolve(ctx context.Context, hostport string, defaultPort int) ([]netip.AddrPort, error) {
	res := r.Resolver
	if res == nil {
		res = net.DefaultResolver
	}

	host, portStr := splitHostPort(hostport)
	if host == "" {
		return nil, &ResolutionError{Host: hostport, Err: errors.New("empty host")}
	}

	port := defaultPort
	if portStr != "" {
		p, err := res.LookupPort(ctx, "tcp", portStr)
		if err != nil {
			return nil, &ResolutionError{Host: hostport, Err: err}
		}
		port = p
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		if !addr.Is4() {
			return nil, &ResolutionError{Host: hostport, Err: probe.ErrNotIPv4}
		}
		return []netip.AddrPort{netip.AddrPortFrom(addr, uint16(port))}, nil
	}

	ips, err := res.LookupNetIP(ctx, "ip4", host)
	if err != nil {
		return nil, &ResolutionError{Host: hostport, Err: err}
	}

	addrs := make([]netip.AddrPort, 0, len(ips))
	for _, ip := range ips {
		ip = ip.Unmap()
		if ip.Is4() {
			addrs = append(addrs, netip.AddrPortFrom(ip, uint16(port)))
		}
	}
	if len(addrs) == 0 {
		return nil, &ResolutionError{Host: hostport, Err: fmt.Errorf("no IPv4 addresses found")}
	}
	return addrs, nil
}

// splitHostPort accepts "host", "host:port", "[v6]" and "[v6]:port". A
// bare IPv6 literal is returned whole.
func splitHostPort(hostport string) (host, port string) {
	hostport = strings.TrimSpace(hostport)
	if h, p, err := net.SplitHostPort(hostport); err == nil {
		return h, p
	}
	if strings.HasPrefix(hostport, "[") && strings.HasSuffix(hostport, "]") {
		return hostport[1 : len(hostport)-1], ""
	}
	return hostport, ""
}
