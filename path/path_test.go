package path

import (
	"testing"
	"time"
)

func TestParseHopsRoundTrip(t *testing.T) {
	dst := uint32(0x0a000003) // 10.0.0.3
	hopstr := "10.0.0.1:0:1.00,1.00,1.00,0.00:|10.0.0.2:0:2.00,2.00,2.00,0.00:|10.0.0.3:0:3.00,3.00,3.00,0.00:"
	p, err := ParseHops(hopstr, dst)
	if err != nil {
		t.Fatalf("ParseHops: %v", err)
	}
	if p.Length() != 3 {
		t.Fatalf("Length() = %d, want 3", p.Length())
	}
	if p.Flags&FlagNoReachability != 0 {
		t.Error("path reaching dst should not carry FlagNoReachability")
	}
}

func TestParseHopsUnreachableGrowsPlaceholder(t *testing.T) {
	dst := uint32(0x0a0000ff)
	hopstr := "10.0.0.1:0:1.00,1.00,1.00,0.00:|10.0.0.2:0:2.00,2.00,2.00,0.00:"
	p, err := ParseHops(hopstr, dst)
	if err != nil {
		t.Fatalf("ParseHops: %v", err)
	}
	if p.Flags&FlagNoReachability == 0 {
		t.Error("path missing dst should carry FlagNoReachability")
	}
	if _, ok := p.Ifaces[dst]; !ok {
		t.Error("unreachable path should index a placeholder for dst")
	}
}

func TestSearchHopDestinationEquivalence(t *testing.T) {
	dst := uint32(0x0a000003)
	hopstr := "10.0.0.1:0:1.00,1.00,1.00,0.00:|10.0.0.2:0:2.00,2.00,2.00,0.00:|10.0.0.3:0:3.00,3.00,3.00,0.00:"
	p, err := ParseHops(hopstr, dst)
	if err != nil {
		t.Fatal(err)
	}
	other, err := ParseHop("10.0.0.3:0:9.00,9.00,9.00,0.00:;10.0.0.9:1:9.00,9.00,9.00,0.00:", time.Time{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	got := p.SearchHop(other, 0)
	if got != p.Length()-1 {
		t.Errorf("SearchHop destination-equivalence = %d, want %d", got, p.Length()-1)
	}
}

func TestSearchHopNotFound(t *testing.T) {
	dst := uint32(0x0a000003)
	hopstr := "10.0.0.1:0:1.00,1.00,1.00,0.00:|10.0.0.2:0:2.00,2.00,2.00,0.00:|10.0.0.3:0:3.00,3.00,3.00,0.00:"
	p, err := ParseHops(hopstr, dst)
	if err != nil {
		t.Fatal(err)
	}
	other, err := ParseHop("10.0.0.99:0:9.00,9.00,9.00,0.00:", time.Time{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.SearchHop(other, 0); got != -1 {
		t.Errorf("SearchHop(unrelated hop) = %d, want -1", got)
	}
}

func TestDiffIdenticalPathsHaveNoChanges(t *testing.T) {
	dst := uint32(0x0a000003)
	hopstr := "10.0.0.1:0:1.00,1.00,1.00,0.00:|10.0.0.2:0:2.00,2.00,2.00,0.00:|10.0.0.3:0:3.00,3.00,3.00,0.00:"
	p1, _ := ParseHops(hopstr, dst)
	p2, _ := ParseHops(hopstr, dst)
	if got := p1.Diff(p2, 0); got != 0 {
		t.Errorf("Diff(identical) = %d, want 0", got)
	}
}

func TestDiffFixStarsConverges(t *testing.T) {
	dst := uint32(0x0a000003)
	known := "10.0.0.1:0:1.00,1.00,1.00,0.00:|10.0.0.2:0:2.00,2.00,2.00,0.00:|10.0.0.3:0:3.00,3.00,3.00,0.00:"
	star := "10.0.0.1:0:1.00,1.00,1.00,0.00:|255.255.255.255:0:0.00,0.00,0.00,0.00:|10.0.0.3:0:3.00,3.00,3.00,0.00:"

	p1, err := ParseHops(known, dst)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := ParseHops(star, dst)
	if err != nil {
		t.Fatal(err)
	}

	got := p1.Diff(p2, FixStars)
	if got != 0 {
		t.Errorf("Diff(known, star) with FixStars = %d, want 0", got)
	}
}

func TestDiffFillMissingPadsShorterPath(t *testing.T) {
	dst := uint32(0x0a000003)
	short := "10.0.0.1:0:1.00,1.00,1.00,0.00:|10.0.0.2:0:2.00,2.00,2.00,0.00:"
	long := "10.0.0.1:0:1.00,1.00,1.00,0.00:|10.0.0.2:0:2.00,2.00,2.00,0.00:|10.0.0.3:0:3.00,3.00,3.00,0.00:"

	p1, err := ParseHops(short, dst)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := ParseHops(long, dst)
	if err != nil {
		t.Fatal(err)
	}

	got := p1.Diff(p2, FillMissing)
	if got != 0 {
		t.Errorf("Diff(short, long) with FillMissing = %d, want 0", got)
	}
	if p1.Length() != p2.Length() {
		t.Errorf("after FillMissing, p1.Length() = %d, want %d", p1.Length(), p2.Length())
	}
}

func TestSetHopRefusesToClobberResolvedHop(t *testing.T) {
	dst := uint32(0x0a000003)
	hopstr := "10.0.0.1:0:1.00,1.00,1.00,0.00:|10.0.0.2:0:2.00,2.00,2.00,0.00:|10.0.0.3:0:3.00,3.00,3.00,0.00:"
	p, err := ParseHops(hopstr, dst)
	if err != nil {
		t.Fatal(err)
	}

	defer func() {
		if recover() == nil {
			t.Error("SetHop over a resolved hop should panic")
		}
	}()
	p.SetHop(1, NewStarHop(1))
}

func TestAliasDatabaseDeduplicates(t *testing.T) {
	dst := uint32(0x0a000003)
	hopstr := "10.0.0.1:0:1.00,1.00,1.00,0.00:|10.0.0.2:0:2.00,2.00,2.00,0.00:|10.0.0.3:0:3.00,3.00,3.00,0.00:"
	p1, _ := ParseHops(hopstr, dst)
	p2, _ := ParseHops(hopstr, dst)

	db := NewDB(4)
	a1 := db.Alias(p1)
	a2 := db.Alias(p2)
	if a1 != a2 {
		t.Errorf("identical paths got different aliases: %d vs %d", a1, a2)
	}
	if got := db.NAliases(dst); got != 1 {
		t.Errorf("NAliases = %d, want 1", got)
	}
}
