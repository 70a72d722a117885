package probe

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// ICMP message types for IPv4
const (
	ICMPTypeEchoReply    = 0
	ICMPTypeUnreachable  = 3
	ICMPTypeEchoRequest  = 8
	ICMPTypeTimeExceeded = 11
)

const (
	// DefaultIdentifier is the echo identifier carried by every request.
	DefaultIdentifier uint16 = 0x1234

	// EchoRequestLen is the size of an echo request on the wire.
	EchoRequestLen = 28

	icmpHeaderLen = 8
	protocolICMP  = 1
)

// BuildEchoRequest returns a 28-byte ICMP echo request: type 8, code 0,
// the Internet checksum over the whole message, id and seq big-endian,
// and a zero-filled payload.
func BuildEchoRequest(id, seq uint16) []byte {
	b := make([]byte, EchoRequestLen)
	b[0] = ICMPTypeEchoRequest
	b[1] = 0
	binary.BigEndian.PutUint16(b[4:6], id)
	binary.BigEndian.PutUint16(b[6:8], seq)
	binary.BigEndian.PutUint16(b[2:4], Checksum(b))
	return b
}

// ParseDatagram decodes an inbound ICMP message. b may be a full IPv4
// datagram, as read from a raw socket that keeps the header, or a bare
// ICMP message, as delivered once the kernel has stripped it.
func ParseDatagram(b []byte) (*icmp.Message, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidPacket, len(b))
	}

	if b[0]>>4 == ipv4.Version {
		h, err := ipv4.ParseHeader(b)
		if err != nil {
			return nil, fmt.Errorf("%w: ipv4 header: %v", ErrInvalidPacket, err)
		}
		if h.Len < ipv4.HeaderLen || h.Len+4 > len(b) {
			return nil, fmt.Errorf("%w: ipv4 header length %d of %d bytes", ErrInvalidPacket, h.Len, len(b))
		}
		if h.Protocol != protocolICMP {
			return nil, fmt.Errorf("%w: ip protocol %d", ErrInvalidPacket, h.Protocol)
		}
		b = b[h.Len:]
	}

	msg, err := icmp.ParseMessage(protocolICMP, b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPacket, err)
	}
	return msg, nil
}

// MessageType returns the numeric ICMP type of msg.
func MessageType(msg *icmp.Message) int {
	if t, ok := msg.Type.(ipv4.ICMPType); ok {
		return int(t)
	}
	return -1
}

// MatchEcho returns the sequence number of the echo request with identifier
// id that msg answers. Echo replies carry it in their body; Time Exceeded
// and Destination Unreachable quote the original IPv4 header and the first
// 8 bytes of our request. Other error messages, Parameter Problem included,
// never match.
func MatchEcho(msg *icmp.Message, id uint16) (seq uint16, ok bool) {
	switch body := msg.Body.(type) {
	case *icmp.Echo:
		if msg.Type != ipv4.ICMPTypeEchoReply || uint16(body.ID) != id {
			return 0, false
		}
		return uint16(body.Seq), true
	case *icmp.TimeExceeded:
		return matchQuoted(body.Data, id)
	case *icmp.DstUnreach:
		return matchQuoted(body.Data, id)
	}
	return 0, false
}

// matchQuoted inspects the datagram quoted by an ICMP error message.
func matchQuoted(data []byte, id uint16) (uint16, bool) {
	if len(data) < ipv4.HeaderLen+icmpHeaderLen || data[0]>>4 != ipv4.Version {
		return 0, false
	}
	ihl := int(data[0]&0x0f) * 4
	if ihl < ipv4.HeaderLen || len(data) < ihl+icmpHeaderLen {
		return 0, false
	}
	if data[9] != protocolICMP {
		return 0, false
	}

	inner := data[ihl : ihl+icmpHeaderLen]
	if inner[0] != ICMPTypeEchoRequest {
		return 0, false
	}
	if binary.BigEndian.Uint16(inner[4:6]) != id {
		return 0, false
	}
	return binary.BigEndian.Uint16(inner[6:8]), true
}
