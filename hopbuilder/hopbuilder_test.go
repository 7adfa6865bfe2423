package hopbuilder

import (
	"testing"

	"github.com/gian-teixeira/tmp-remaprt/iface"
	"github.com/gian-teixeira/tmp-remaprt/path"
	"github.com/gian-teixeira/tmp-remaprt/probe"
)

// fakeOracle answers every submission synchronously and inline, with a
// caller-supplied IP per flow-id (star if absent from the map).
type fakeOracle struct {
	ipFor func(flowID int) uint32
}

func (f *fakeOracle) Submit(dst uint32, ttl, flowID, retries int, cb probe.ReplyFunc) error {
	cb(probe.Reply{IP: f.ipFor(flowID), FlowID: flowID})
	return nil
}

func TestBuilderSingleInterfaceStopsAtK0(t *testing.T) {
	oracle := &fakeOracle{ipFor: func(flowID int) uint32 { return 0x0a000001 }}

	var gotTTL, gotProbes int
	var gotHop *path.Hop
	done := make(chan struct{})

	Start(oracle, 0x0a0000ff, 5, func(ttl, probesSent int, hop *path.Hop) {
		gotTTL = ttl
		gotProbes = probesSent
		gotHop = hop
		close(done)
	})
	<-done

	if gotTTL != 5 {
		t.Errorf("ttl = %d, want 5", gotTTL)
	}
	if gotProbes != NeededProbes[0] {
		t.Errorf("probesSent = %d, want %d", gotProbes, NeededProbes[0])
	}
	if gotHop.IsStar() {
		t.Error("single responding interface should not build a star hop")
	}
}

func TestBuilderAllStarsYieldsStarHop(t *testing.T) {
	oracle := &fakeOracle{ipFor: func(flowID int) uint32 { return iface.StarIP }}

	done := make(chan bool, 1)
	Start(oracle, 0x0a0000ff, 1, func(ttl, probesSent int, hop *path.Hop) {
		done <- hop.IsStar()
	})
	if star := <-done; !star {
		t.Error("all-star replies should build a star hop")
	}
}

func TestNeededTableMonotonic(t *testing.T) {
	for i := 1; i < len(NeededProbes); i++ {
		if NeededProbes[i] < NeededProbes[i-1] {
			t.Errorf("NeededProbes[%d]=%d < NeededProbes[%d]=%d, table should be non-decreasing",
				i, NeededProbes[i], i-1, NeededProbes[i-1])
		}
	}
	if Needed(MaxIfaces) != 0 {
		t.Errorf("Needed(MaxIfaces) = %d, want 0", Needed(MaxIfaces))
	}
}
