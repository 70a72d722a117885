package probe

// Checksum calculates the Internet Checksum (RFC 1071) of data.
func Checksum(data []byte) uint16 {
	return ^fold(data)
}

// ValidateChecksum reports whether data, checksum field included, sums
// to 0xFFFF, which is the same as its Checksum being zero.
func ValidateChecksum(data []byte) bool {
	return fold(data) == 0xffff
}

// fold returns the one's complement sum of data as 16-bit big-endian
// words, padding an odd trailing byte with zero.
func fold(data []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(data); i += 2 {
		sum += uint32(data[i])<<8 | uint32(data[i+1])
	}
	if len(data)%2 == 1 {
		sum += uint32(data[len(data)-1]) << 8
	}
	for sum > 0xffff {
		sum = (sum >> 16) + (sum & 0xffff)
	}
	return uint16(sum)
}
