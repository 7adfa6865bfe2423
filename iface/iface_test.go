package iface

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseRoundTrip(t *testing.T) {
	cases := []struct {
		desc string
		in   string
	}{
		{"single flow", "10.0.0.1:0:1.00,2.00,3.00,0.50:"},
		{"multi flow", "192.168.1.1:0,1,2:0.10,0.20,0.30,0.01:"},
		{"star", "255.255.255.255:0:0.00,0.00,0.00,0.00:"},
	}
	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			ifc, err := Parse(c.in, time.Time{}, 3)
			if err != nil {
				t.Fatalf("Parse(%q): %v", c.in, err)
			}
			if got := ifc.String(); got != c.in {
				t.Errorf("String() = %q, want %q", got, c.in)
			}
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []struct {
		desc string
		in   string
	}{
		{"too few fields", "10.0.0.1:0:1.00,2.00,3.00,0.50"},
		{"bad ip", "not-an-ip:0:1.00,2.00,3.00,0.50:"},
		{"empty flowids", "10.0.0.1::1.00,2.00,3.00,0.50:"},
		{"wrong rtt arity", "10.0.0.1:0:1.00,2.00,3.00:"},
	}
	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			if _, err := Parse(c.in, time.Time{}, 0); err == nil {
				t.Errorf("Parse(%q): expected error, got nil", c.in)
			}
		})
	}
}

func TestIsStar(t *testing.T) {
	star := NewStar(2)
	if !star.IsStar() {
		t.Error("NewStar: IsStar() = false, want true")
	}

	resolved, err := Parse("10.0.0.1:0:1.00,2.00,3.00,0.50:", time.Time{}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.IsStar() {
		t.Error("resolved interface: IsStar() = true, want false")
	}
}

func TestCloneIndependence(t *testing.T) {
	ifc, err := Parse("10.0.0.1:0,1:1.00,2.00,3.00,0.50:", time.Time{}, 1)
	if err != nil {
		t.Fatal(err)
	}
	clone := ifc.Clone()
	if diff := cmp.Diff(ifc, clone); diff != "" {
		t.Errorf("Clone() before mutation differs from original (-want +got):\n%s", diff)
	}

	clone.FlowIDs[0] = 99
	if ifc.FlowIDs[0] == 99 {
		t.Error("Clone: mutating clone's FlowIDs affected the original")
	}
}

func TestCompareIP(t *testing.T) {
	a, _ := Parse("10.0.0.1:0:0,0,0,0:", time.Time{}, 0)
	b, _ := Parse("10.0.0.2:0:0,0,0,0:", time.Time{}, 0)
	if CompareIP(a, b) >= 0 {
		t.Errorf("CompareIP(10.0.0.1, 10.0.0.2) >= 0, want < 0")
	}
	if CompareIP(a, a) != 0 {
		t.Errorf("CompareIP(a, a) != 0")
	}
}
