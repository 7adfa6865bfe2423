// Package remap implements the path-remapping search driver: it walks the
// TTL space between a known old path and a changing new one, probing only
// the diverged segment, and splices the result back into the old path.
//
// Grounded on SPEC_FULL.md §4.e-f / spec.md §4.e-f (`remap` in
// original_source/src/remap.c).
package remap

import (
	"errors"
	"time"

	"github.com/golang/glog"

	"github.com/gian-teixeira/tmp-remaprt/hopbuilder"
	"github.com/gian-teixeira/tmp-remaprt/path"
	"github.com/gian-teixeira/tmp-remaprt/probe"
	"github.com/gian-teixeira/tmp-remaprt/probedb"
)

// ErrNoResponsiveHop marks a search that found no responding hop at or
// below the starting TTL; Run falls back to returning the old path
// verbatim rather than propagating this as a fatal error, matching the
// original's best-effort result-printing policy.
var ErrNoResponsiveHop = errors.New("remap: no responsive hop found at or below starting ttl")

// ShiftChange marks a TTL known to have changed, without yet knowing by
// how much — recorded across the interior of a branch..join segment
// before the segment's endpoints are resolved.
const ShiftChange = int(^uint(0) >> 1) // max int, mirrors RMP_SHIFT_CHANGE

// Oracle is the probe transport the driver's hop builders submit against.
type Oracle interface {
	Submit(dst uint32, ttl, flowID, retries int, cb probe.ReplyFunc) error
}

// Driver runs one remap search against a single old path and destination.
type Driver struct {
	OldPath *path.Path
	NewPath *path.Path // non-nil enables offline replay
	Oracle  Oracle

	cache            *probedb.DB
	shifts           map[int]int
	totalProbes      int
	measuredTTLCount int
}

// NewDriver returns a driver ready to remap oldPath. If newPath is
// non-nil, the driver runs in offline replay mode: no probes are issued,
// hops are synthesized from newPath, and the probe budget is charged as
// if probing had occurred (spec.md §6 `-n`).
func NewDriver(oldPath, newPath *path.Path, oracle Oracle) *Driver {
	return &Driver{
		OldPath: oldPath,
		NewPath: newPath,
		Oracle:  oracle,
		cache:   probedb.New(),
		shifts:  make(map[int]int),
	}
}

// TotalProbes returns the number of probes issued (or charged, in offline
// mode) over the lifetime of the driver.
func (d *Driver) TotalProbes() int { return d.totalProbes }

// MeasuredTTLCount returns the number of distinct TTLs the driver
// resolved, whether by live probe, offline synthesis, or cache hit.
// Diagnostic only; not part of the emitted result line.
func (d *Driver) MeasuredTTLCount() int { return d.measuredTTLCount }

// Cache exposes the driver's probe cache for debug dumps. Callers must not
// mutate it.
func (d *Driver) Cache() *probedb.DB { return d.cache }

// getHop is the driver's only probe entry point (spec.md §4.e). It
// consults the cache, then offline replay, then blocks on a live hop
// builder.
func (d *Driver) getHop(ttl int) *path.Hop {
	if hop := d.cache.FindHop(ttl); hop != nil {
		return hop
	}

	if d.NewPath != nil {
		if ttl >= d.NewPath.Length() {
			hop := path.NewStarHop(ttl)
			d.measuredTTLCount++
			d.cache.AddHop(hop)
			return hop
		}
		hop := d.NewPath.Hop(ttl).Clone()
		d.totalProbes += hopbuilder.Needed(len(hop.Interfaces))
		d.measuredTTLCount++
		d.cache.AddHop(hop)
		return hop
	}

	reply := make(chan *path.Hop, 1)
	hopbuilder.Start(d.Oracle, d.OldPath.Dst, ttl+1, func(builtTTL, probesSent int, hop *path.Hop) {
		d.totalProbes += probesSent
		hop.TTL = ttl
		reply <- hop
	})
	hop := <-reply
	d.measuredTTLCount++
	d.cache.AddHop(hop)
	return hop
}

func (d *Driver) searchOld(hop *path.Hop) int {
	return d.OldPath.SearchHop(hop, 0)
}

// remapLocal opens a local branch..join segment around ttl, known to have
// diverged from the old path, and returns the TTL where it rejoins.
func (d *Driver) remapLocal(ttl, minttl int, first bool) int {
	branch := ttl
	for {
		hop := d.getHop(branch)
		if !hop.IsStar() && d.searchOld(hop) != -1 {
			break
		}
		branch--
	}
	oldBranchTTL := d.searchOld(d.getHop(branch))
	branch++

	join := ttl + 1
	joinLastResponsive := ttl
	var hop *path.Hop
	for {
		if first && join-joinLastResponsive > 4 {
			break
		}

		hop = d.getHop(join)
		if !hop.IsStar() {
			joinLastResponsive = join
		}
		join++

		if hop.Contains(d.OldPath.Dst) {
			break
		}
		if !hop.IsStar() && d.searchOld(hop) >= oldBranchTTL {
			break
		}
		if join >= path.MaxPathLength {
			break
		}
	}
	join--

	if !hop.IsStar() {
		d.shifts[join] = join - d.searchOld(hop)
	}

	for i := branch + 1; i < join; i++ {
		d.shifts[i] = ShiftChange
	}

	if d.shifts[branch] != branch-oldBranchTTL {
		d.remapBinary(minttl, branch)
	}

	return join
}

// remapBinary finds the leftmost shifted hop in (l, r] via binary search,
// falling back to remapLocal wherever the old path offers no consistent
// anchor.
func (d *Driver) remapBinary(l, r int) int {
	rightBoundary := r
	p1left, p1right := 0, path.MaxPathLength

	for r > l+1 {
		i := (l + r) / 2
		hop := d.getHop(i)
		for hop.IsStar() && i > l {
			i--
			hop = d.getHop(i)
		}
		if i == l {
			return d.remapLocal((l+r)/2, l, false)
		}

		p1ttl := d.searchOld(hop)
		switch {
		case i-p1ttl == d.shifts[i]:
			l, p1left = i, p1ttl
		case p1left <= p1ttl && p1ttl <= p1right:
			r, p1right = i, p1ttl
		default:
			return d.remapLocal(i, l, false)
		}
	}

	hop := d.cache.FindHop(r)
	if hop == nil {
		hop = d.getHop(r)
	}
	shift := r - d.searchOld(hop)
	for ttl := r; ttl <= rightBoundary; ttl++ {
		d.shifts[ttl] = shift
	}

	prevTTL := r
	for _, ttl := range d.cache.TTLs() {
		if ttl <= r || ttl > rightBoundary {
			continue
		}
		h := d.cache.FindHop(ttl)
		if h.IsStar() {
			continue
		}
		trueShift := ttl - d.searchOld(h)
		if trueShift != d.shifts[ttl] {
			d.remapBinary(prevTTL, ttl)
		}
		prevTTL = ttl
	}
	return r
}

// Run executes the remap search starting at the one-based TTL startTTL
// and returns the reconstructed current path.
func (d *Driver) Run(startTTL int) *path.Path {
	ttl := startTTL - 1
	hop := d.getHop(ttl)
	for hop.IsStar() && ttl > 0 {
		ttl--
		hop = d.getHop(ttl)
	}
	if hop.IsStar() {
		glog.Errorf("remap: Run: %v", ErrNoResponsiveHop)
		return d.OldPath.Clone()
	}

	oldTTL := d.searchOld(hop)
	switch {
	case oldTTL == ttl:
		return d.OldPath.Clone()
	case oldTTL == -1:
		d.remapLocal(ttl, 0, true)
	default:
		d.remapBinary(0, ttl)
	}

	return d.assembleResult()
}

// assembleResult splices the cache's probed hops into the old path,
// carrying unprobed prefix and suffix segments over verbatim (spec.md
// §4.f).
func (d *Driver) assembleResult() *path.Path {
	ttls := d.cache.TTLs()
	if len(ttls) == 0 {
		return d.OldPath.Clone()
	}

	out := &path.Path{Src: d.OldPath.Src, Dst: d.OldPath.Dst, Timestamp: time.Now(), Alias: -1}

	branch := d.cache.FindHop(ttls[0])
	ttlBranchOld := d.searchOld(branch)
	if ttlBranchOld < 0 {
		ttlBranchOld = 0
	}
	for t := 0; t < ttlBranchOld; t++ {
		if h := d.OldPath.Hop(t); h != nil {
			out.SetHop(t, h.Clone())
		}
	}

	for _, t := range ttls {
		out.SetHop(t, d.cache.FindHop(t).Clone())
	}

	var join *path.Hop
	joinTTL := -1
	for _, t := range ttls {
		if h := d.cache.FindHop(t); !h.IsStar() {
			join, joinTTL = h, t
		}
	}
	if join != nil {
		ttlJoinOld := d.searchOld(join)
		if ttlJoinOld >= 0 {
			cursor := joinTTL + 1
			for t := ttlJoinOld + 1; t < d.OldPath.Length(); t++ {
				if h := d.OldPath.Hop(t); h != nil {
					out.SetHop(cursor, h.Clone())
					cursor++
				}
			}
		}
	}

	d.fillGaps(out, ttls)
	out.CheckReachability()
	return out
}

// fillGaps covers any TTL left unset by the cache-splice and old-path
// copy steps above by consuming the old path sequentially, advancing an
// old-path cursor past whichever TTL a cached hop was shown to map to.
func (d *Driver) fillGaps(out *path.Path, cachedTTLs []int) {
	cachedAt := make(map[int]bool, len(cachedTTLs))
	for _, t := range cachedTTLs {
		cachedAt[t] = true
	}

	oldCursor := 0
	for t := 0; t < out.Length(); t++ {
		if out.Hop(t) != nil {
			if cachedAt[t] && !out.Hop(t).IsStar() {
				if mapped := d.searchOld(out.Hop(t)); mapped >= 0 {
					oldCursor = mapped + 1
				}
			}
			continue
		}
		if h := d.OldPath.Hop(oldCursor); h != nil {
			out.SetHop(t, h.Clone())
		}
		oldCursor++
	}
}
