package probedb

import (
	"testing"
	"time"

	"github.com/gian-teixeira/tmp-remaprt/path"
)

func TestAddHopAndFindHop(t *testing.T) {
	db := New()
	hop, err := path.ParseHop("10.0.0.1:0:1.00,1.00,1.00,0.00:", time.Time{}, 3)
	if err != nil {
		t.Fatal(err)
	}
	db.AddHop(hop)

	if got := db.FindHop(3); got != hop {
		t.Errorf("FindHop(3) = %v, want %v", got, hop)
	}
	if got := db.FindHop(4); got != nil {
		t.Errorf("FindHop(4) = %v, want nil", got)
	}
}

func TestAddHopDuplicateTTLPanics(t *testing.T) {
	db := New()
	hop1, _ := path.ParseHop("10.0.0.1:0:1.00,1.00,1.00,0.00:", time.Time{}, 3)
	hop2, _ := path.ParseHop("10.0.0.2:0:1.00,1.00,1.00,0.00:", time.Time{}, 3)
	db.AddHop(hop1)

	defer func() {
		if recover() == nil {
			t.Error("AddHop with a duplicate TTL should panic")
		}
	}()
	db.AddHop(hop2)
}

func TestFindIfaceByFlowID(t *testing.T) {
	db := New()
	hop, err := path.ParseHop("10.0.0.1:2,3:1.00,1.00,1.00,0.00:", time.Time{}, 1)
	if err != nil {
		t.Fatal(err)
	}
	db.AddHop(hop)

	if got := db.FindIface(1, 2); got == nil || got.IP != hop.Interfaces[0].IP {
		t.Errorf("FindIface(1, 2) = %v, want interface for flow 2", got)
	}
	if got := db.FindIface(1, 99); got != nil {
		t.Errorf("FindIface(1, 99) = %v, want nil", got)
	}
}

func TestTTLsAscending(t *testing.T) {
	db := New()
	for _, ttl := range []int{5, 1, 3} {
		hop, _ := path.ParseHop("10.0.0.1:0:1.00,1.00,1.00,0.00:", time.Time{}, ttl)
		db.AddHop(hop)
	}
	got := db.TTLs()
	want := []int{1, 3, 5}
	for i, ttl := range want {
		if got[i] != ttl {
			t.Errorf("TTLs()[%d] = %d, want %d", i, got[i], ttl)
		}
	}
}
