// Package hopbuilder implements the per-hop multipath detection state
// machine: it submits probes to the probe oracle, accumulates responding
// interfaces, and decides when enough probes have been sent to be
// confident the hop's interface set is complete.
//
// Grounded on SPEC_FULL.md §4.c / spec.md §4.c (`hopremap` in
// original_source/src/prober.c).
package hopbuilder

import (
	"fmt"
	"strings"
	"time"

	"github.com/gian-teixeira/tmp-remaprt/iface"
	"github.com/gian-teixeira/tmp-remaprt/path"
	"github.com/gian-teixeira/tmp-remaprt/probe"
)

// NeededProbes is the fixed lookup table giving the total probe count
// required once n distinct interfaces have responded at a hop.
var NeededProbes = [...]int{6, 6, 11, 16, 21, 27, 33, 38, 44, 51, 57, 63, 70, 76, 83, 90, 96}

// MaxIfaces caps the table: beyond this many distinct interfaces, no more
// probes are ever requested.
const MaxIfaces = 15

// ProbeRetries is the number of attempts the oracle gives each probe
// issued while building a hop.
const ProbeRetries = 2

// Oracle is the subset of probe.Oracle the builder depends on.
type Oracle interface {
	Submit(dst uint32, ttl, flowID, retries int, cb probe.ReplyFunc) error
}

type observedIface struct {
	ip      uint32
	flowIDs []int
	rtts    []float64
}

// Builder accumulates probe replies for a single TTL until the stopping
// rule is satisfied, then emits a finished hop.
type Builder struct {
	oracle Oracle
	dst    uint32
	ttl    int

	probesSent int
	pending    int
	order      []uint32
	byIP       map[uint32]*observedIface

	done func(ttl, probesSent int, hop *path.Hop)
}

// Start creates a builder for ttl against dst and issues its first batch
// of probes. done is invoked exactly once, after the stopping rule fires.
func Start(oracle Oracle, dst uint32, ttl int, done func(ttl, probesSent int, hop *path.Hop)) *Builder {
	b := &Builder{
		oracle: oracle,
		dst:    dst,
		ttl:    ttl,
		byIP:   make(map[uint32]*observedIface),
		done:   done,
	}
	b.sendBatch(needed(0))
	return b
}

func needed(nIfaces int) int {
	if nIfaces >= MaxIfaces {
		return 0
	}
	return NeededProbes[nIfaces]
}

// Needed returns the total probe budget the stopping rule would charge
// for a hop carrying nIfaces distinct interfaces. Exported for the search
// driver's offline-replay probe accounting.
func Needed(nIfaces int) int { return needed(nIfaces) }

// sendBatch submits probes one at a time, advancing probesSent before
// each Submit call so a reply delivered synchronously (or reentrantly,
// from within this same loop) sees an up-to-date count.
func (b *Builder) sendBatch(total int) {
	for b.probesSent < total {
		flowID := b.probesSent
		b.probesSent++
		b.pending++
		b.oracle.Submit(b.dst, b.ttl, flowID, ProbeRetries, func(r probe.Reply) {
			b.onReply(r)
		})
	}
}

// onReply must only ever be invoked from the single consumer goroutine
// that owns this builder — see SPEC_FULL.md §5's single-prober-thread
// discipline. The search driver runs one builder at a time, and the probe
// oracle delivers every reply from its single dispatch goroutine.
func (b *Builder) onReply(r probe.Reply) {
	b.pending--

	if r.IP != iface.StarIP {
		obs, ok := b.byIP[r.IP]
		if !ok {
			obs = &observedIface{ip: r.IP}
			b.byIP[r.IP] = obs
			b.order = append(b.order, r.IP)
		}
		obs.flowIDs = append(obs.flowIDs, r.FlowID)
		obs.rtts = append(obs.rtts, float64(r.RTT.Microseconds())/1000.0)
	}

	want := needed(len(b.order))
	if want > b.probesSent {
		b.sendBatch(want)
		return
	}
	if b.pending == 0 {
		b.done(b.ttl, b.probesSent, b.buildHop())
	}
}

func (b *Builder) buildHop() *path.Hop {
	if len(b.order) == 0 {
		return path.NewStarHop(b.ttl)
	}

	parts := make([]string, len(b.order))
	for i, ip := range b.order {
		obs := b.byIP[ip]
		parts[i] = ifaceString(obs)
	}
	hopStr := strings.Join(parts, ";")

	hop, err := path.ParseHop(hopStr, time.Time{}, b.ttl)
	if err != nil {
		return path.NewStarHop(b.ttl)
	}
	return hop
}

func ifaceString(obs *observedIface) string {
	n := float64(len(obs.rtts))
	var sum, sumSq, min, max float64
	min = obs.rtts[0]
	max = obs.rtts[0]
	for _, r := range obs.rtts {
		sum += r
		sumSq += r * r
		if r < min {
			min = r
		}
		if r > max {
			max = r
		}
	}
	avg := sum / n
	variance := sumSq/n - avg*avg

	flowStrs := make([]string, len(obs.flowIDs))
	for i, f := range obs.flowIDs {
		flowStrs[i] = fmt.Sprintf("%d", f)
	}

	return fmt.Sprintf("%s:%s:%.2f,%.2f,%.2f,%.2f:", iface.Uint32ToIP(obs.ip), strings.Join(flowStrs, ","), min, avg, max, variance)
}
