package probe

import "testing"

func TestSteerChecksumProducesValidPacket(t *testing.T) {
	cases := []struct {
		target uint16
		body   []byte
	}{
		{0x1234, []byte{0x08, 0x00, 0, 0, 0x12, 0x34, 0x00, 0x01, 0xde, 0xad, 0xbe, 0xef, 0, 0}},
		{0x0000, []byte{0x08, 0x00, 0, 0, 0x00, 0x00, 0x00, 0x00, 0, 0}},
		{0xffff, []byte{0x08, 0x00, 0, 0, 0x00, 0x05, 0x00, 0x09, 0, 0}},
	}
	for _, c := range cases {
		packet := append([]byte(nil), c.body...)
		steerChecksum(packet, c.target)

		gotChecksum := uint16(packet[2])<<8 | uint16(packet[3])
		if gotChecksum != c.target {
			t.Errorf("checksum field = %#04x, want %#04x", gotChecksum, c.target)
		}

		if folded := foldChecksum(sum16(packet)); folded != 0xffff {
			t.Errorf("packet does not validate: folded sum = %#04x, want 0xffff", folded)
		}
	}
}

func TestFoldChecksumCarriesOverflow(t *testing.T) {
	if got := foldChecksum(0x10000); got != 0x0001 {
		t.Errorf("foldChecksum(0x10000) = %#04x, want 0x0001", got)
	}
	if got := foldChecksum(0xfffe); got != 0xfffe {
		t.Errorf("foldChecksum(0xfffe) = %#04x, want 0xfffe", got)
	}
}
