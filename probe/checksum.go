package probe

import "encoding/binary"

// foldChecksum reduces the 32-bit accumulated sum of 16-bit words to its
// final 16-bit ones'-complement form, carrying the overflow back in.
func foldChecksum(sum uint32) uint16 {
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return uint16(sum)
}

// sum16 accumulates b as big-endian 16-bit words, zero-padding a trailing
// odd byte.
func sum16(b []byte) uint32 {
	var sum uint32
	for i := 0; i+1 < len(b); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(b[i : i+2]))
	}
	if len(b)%2 == 1 {
		sum += uint32(b[len(b)-1]) << 8
	}
	return sum
}

// steerChecksum overwrites the last two bytes of packet (the designated
// magic word) so that, combined with the checksum field already written at
// packet[2:4], the packet's internet checksum validates while that field
// holds the caller-chosen value target. This is the Paris-traceroute
// technique for carrying a flow identifier in the ICMP checksum field
// without producing an invalid packet.
func steerChecksum(packet []byte, target uint16) {
	binary.BigEndian.PutUint16(packet[2:4], target)
	magicWord := packet[len(packet)-2:]
	binary.BigEndian.PutUint16(magicWord, 0)
	total := foldChecksum(sum16(packet))
	binary.BigEndian.PutUint16(magicWord, ^total)
}
