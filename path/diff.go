package path

import "github.com/golang/glog"

// DiffFlags controls path comparison/reconciliation behavior (spec.md
// §4.a).
type DiffFlags uint32

const (
	// FixStars converges a star hop on one path with a single-interface
	// non-star hop on the other, when that interface isn't already known
	// elsewhere on the star path.
	FixStars DiffFlags = 1 << iota
	// FillMissing treats a pure length difference with no other changes
	// as zero changes, padding the shorter path with the longer path's
	// tail.
	FillMissing
	// IgnoreBalancers compares hops by their first interface's IP only.
	IgnoreBalancers
)

// Diff counts the number of disjoint change segments between p1 and p2,
// walking both in lockstep (spec.md §4.a `path_diff`).
func (p1 *Path) Diff(p2 *Path, flags DiffFlags) int {
	changes := 0
	i1, i2 := 0, 0

	for i1 < len(p1.Hops) && i2 < len(p2.Hops) {
		if Equal(p1.Hops[i1], p2.Hops[i2], flags) {
			i1++
			i2++
			continue
		}

		j1, j2 := diffJoin(p1, p2, i1, i2, flags)
		if flags&FixStars != 0 {
			i1, i2, j1, j2 = diffFixStars(p1, p2, i1, i2, j1, j2)
		}
		if j1 > i1 || j2 > i2 {
			changes++
		}
		i1, i2 = j1, j2
	}

	if flags&FillMissing != 0 && changes == 0 {
		if i1 != i2 {
			glog.Warningf("path: Diff: FillMissing invoked with misaligned cursors %d/%d", i1, i2)
		}
		diffFillMissing(p1, p2, i1)
	} else if i1 != len(p1.Hops) || i2 != len(p2.Hops) {
		changes++
	}

	return changes
}

// diffJoin scans forward from (oi, ni) for the next aligned pair of equal
// hops, returning the lengths of both paths if none is found.
func diffJoin(p1, p2 *Path, oi, ni int, flags DiffFlags) (oj, nj int) {
	for nni := ni; nni < len(p2.Hops); nni++ {
		if p2.Hops[nni].IsStar() {
			continue
		}
		for noi := oi; noi < len(p1.Hops); noi++ {
			if Equal(p1.Hops[noi], p2.Hops[nni], flags) {
				return noi, nni
			}
		}
	}
	return len(p1.Hops), len(p2.Hops)
}

// diffFixStars converges star/non-star mismatches at both ends of the
// segment [i1,j1)/[i2,j2), shrinking it from both sides as far as
// convergence allows.
func diffFixStars(p1, p2 *Path, i1, i2, j1, j2 int) (int, int, int, int) {
	i := 0
	for threshold := min(j1-i1, j2-i2); i < threshold; i++ {
		if !fixStars1Hop(p1, p2, i1+i, i2+i, j1, j2) {
			break
		}
	}
	i1 += i
	i2 += i

	j := 0
	for threshold := min(j1-i1, j2-i2); j < threshold; j++ {
		ttl1 := j1 - j - 1
		ttl2 := j2 - j - 1
		if !fixStars1Hop(p1, p2, ttl1, ttl2, j1, j2) {
			break
		}
	}
	j1 -= j
	j2 -= j

	p1.checkReachability()
	p2.checkReachability()
	return i1, i2, j1, j2
}

// fixStars1Hop replaces a star hop at (i1 or i2) with a copy of the other
// path's non-star hop there, provided: the replacement has a single
// interface, that interface isn't already known elsewhere on the star
// path, and — if it's the destination — it sits in the last position of
// the star path's mismatched segment (just before starj).
func fixStars1Hop(p1, p2 *Path, i1, i2, j1, j2 int) bool {
	h1 := p1.Hops[i1]
	h2 := p2.Hops[i2]
	if h1.IsStar() && h2.IsStar() {
		return true
	}
	if !h1.IsStar() && !h2.IsStar() {
		return false
	}

	var starPath *Path
	var stari, starj int
	var srcHop *Hop
	if h1.IsStar() {
		starPath, stari, starj, srcHop = p1, i1, j1, h2
	} else {
		starPath, stari, starj, srcHop = p2, i2, j2, h1
	}

	if len(srcHop.Interfaces) > 1 {
		return false
	}
	if _, ok := starPath.Ifaces[srcHop.Interfaces[0].IP]; ok {
		return false
	}
	if srcHop.Interfaces[0].IP == starPath.Dst && stari+1 != starj {
		return false
	}

	starPath.SetHop(stari, srcHop.Clone())
	return true
}

// diffFillMissing pads the shorter of p1/p2 with copies of the longer
// path's tail starting at ttl.
func diffFillMissing(p1, p2 *Path, ttl int) {
	shorter, longer := p1, p2
	if len(p1.Hops) > len(p2.Hops) {
		shorter, longer = p2, p1
	}
	for ; ttl < len(longer.Hops); ttl++ {
		shorter.Hops = append(shorter.Hops, longer.Hops[ttl].Clone())
	}
	shorter.rebuildIfaces()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
