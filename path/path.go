// Package path implements the measured-path value type: an ordered
// sequence of hops from a source to a destination, its parsing/printing
// grammar, the path-diff and hop-search algorithms the remap search driver
// is built on, and the path alias database.
//
// See SPEC_FULL.md §4.a and spec.md §3-4.a for the authoritative model.
package path

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/gian-teixeira/tmp-remaprt/iface"
)

// MaxPathLength bounds the number of hops a path can carry — the TTL range
// the search driver and hop builder operate over.
const MaxPathLength = 32

// FlagNoReachability is set on Path.Flags when the last hop does not carry
// the destination's interface.
const FlagNoReachability uint32 = 1 << 0

// Path is a forward IP path from Src to Dst, indexed by zero-based TTL.
type Path struct {
	Src       uint32
	Dst       uint32
	Timestamp time.Time
	Hops      []*Hop
	Ifaces    map[uint32]*iface.Interface
	Flags     uint32
	Alias     int
}

// Parse decodes a path line of the form "<src> <dst> <tvsec> <hopstr>".
func Parse(s string) (*Path, error) {
	fields := strings.SplitN(strings.TrimRight(s, "\n"), " ", 4)
	if len(fields) < 4 {
		return nil, fmt.Errorf("%w: path %q: expected at least 4 space-separated fields", ErrInvalidPath, s)
	}

	srcIP := net.ParseIP(fields[0])
	if srcIP == nil {
		return nil, fmt.Errorf("%w: path %q: bad src %q", ErrInvalidPath, s, fields[0])
	}
	dstIP := net.ParseIP(fields[1])
	if dstIP == nil {
		return nil, fmt.Errorf("%w: path %q: bad dst %q", ErrInvalidPath, s, fields[1])
	}
	tvsec, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: path %q: bad timestamp %q", ErrInvalidPath, s, fields[2])
	}

	src, _ := iface.IPToUint32(srcIP)
	dst, ok := iface.IPToUint32(dstIP)
	if !ok {
		return nil, fmt.Errorf("%w: path %q: dst is not IPv4", ErrInvalidPath, s)
	}

	p, err := ParseHops(fields[3], dst)
	if err != nil {
		return nil, err
	}
	p.Src = src
	p.Timestamp = time.Unix(tvsec, 0)
	return p, nil
}

// ParseHops decodes a `|`-separated hop string against a known dst,
// skipping any hop that fails to parse. A path with zero parseable hops is
// rejected.
func ParseHops(hopstr string, dst uint32) (*Path, error) {
	parts := strings.Split(hopstr, "|")
	hops := make([]*Hop, 0, len(parts))
	for _, part := range parts {
		h, err := ParseHop(part, time.Time{}, len(hops))
		if err != nil {
			continue
		}
		hops = append(hops, h)
	}
	if len(hops) == 0 {
		return nil, fmt.Errorf("%w: path has zero hops", ErrInvalidPath)
	}

	p := &Path{Dst: dst, Hops: hops, Alias: -1}
	p.checkReachability()
	return p, nil
}

// ParseSafe parses s and, on failure, falls back to a path to dst parsed
// from three star hops so a caller always has something to diff against.
// End-star trimming removes all three, so the fallback has zero hops and
// carries FlagNoReachability.
func ParseSafe(s string, dst uint32) *Path {
	if p, err := Parse(s); err == nil {
		return p
	}
	star := "255.255.255.255:0:0.00,0.00,0.00,0.00:"
	fallback := fmt.Sprintf("0.0.0.0 %s 0 %s|%s|%s", iface.Uint32ToIP(dst), star, star, star)
	p, err := Parse(fallback)
	if err != nil {
		glog.Errorf("path: ParseSafe: fallback path failed to parse: %v", err)
		return nil
	}
	return p
}

// String renders the path back to its wire/text representation.
func (p *Path) String() string {
	hopStrs := make([]string, len(p.Hops))
	for i, h := range p.Hops {
		hopStrs[i] = h.String()
	}
	return fmt.Sprintf("%s %s %d %s", iface.Uint32ToIP(p.Src), iface.Uint32ToIP(p.Dst),
		p.Timestamp.Unix(), strings.Join(hopStrs, "|"))
}

// Length returns the number of hops in p.
func (p *Path) Length() int { return len(p.Hops) }

// Clone returns a deep copy of p.
func (p *Path) Clone() *Path {
	c := &Path{Src: p.Src, Dst: p.Dst, Timestamp: p.Timestamp, Flags: p.Flags, Alias: p.Alias}
	c.Hops = make([]*Hop, len(p.Hops))
	for i, h := range p.Hops {
		c.Hops[i] = h.Clone()
	}
	c.rebuildIfaces()
	return c
}

// SetHop installs h at ttl, growing the hop slice if needed. Overwriting a
// hop is only allowed when the existing slot is empty, a star, or ttl is
// the path's origin — matching the original's invariant that a resolved
// hop is never clobbered.
func (p *Path) SetHop(ttl int, h *Hop) {
	if ttl < 0 {
		panic("path: SetHop: negative ttl")
	}
	for ttl >= len(p.Hops) {
		p.Hops = append(p.Hops, nil)
	}
	existing := p.Hops[ttl]
	if existing != nil && !existing.IsStar() && ttl != 0 {
		panic(fmt.Errorf("%w: SetHop: refusing to overwrite a resolved hop at ttl %d", ErrProgrammingViolation, ttl))
	}
	h.TTL = ttl
	p.Hops[ttl] = h
	p.rebuildIfaces()
}

// CheckReachability recomputes p's reachability flag and destination
// pivot. Callers that assemble a path from pieces (SetHop only rebuilds
// the interface index) must call this once the assembly is complete.
func (p *Path) CheckReachability() { p.checkReachability() }

// Hop returns the hop at ttl, or nil if ttl is out of range.
func (p *Path) Hop(ttl int) *Hop {
	if ttl < 0 || ttl >= len(p.Hops) {
		return nil
	}
	return p.Hops[ttl]
}

// SearchHop returns the first TTL at which hop appears in p under flags,
// or -1. If hop is not found but carries p's destination and p is
// reachable, the last TTL is returned instead (destination-equivalence,
// spec.md §4.a).
func (p *Path) SearchHop(hop *Hop, flags DiffFlags) int {
	if hop.IsStar() {
		panic(fmt.Errorf("%w: SearchHop called with a star hop", ErrProgrammingViolation))
	}
	for t, h := range p.Hops {
		if Equal(h, hop, flags) {
			return t
		}
	}
	if hop.Contains(p.Dst) && p.Flags&FlagNoReachability == 0 {
		return len(p.Hops) - 1
	}
	return -1
}

// checkReachability trims trailing star hops, recomputes
// FlagNoReachability, and — when reachable — pivots the destination
// interface to the front of the last hop. When unreachable and the path
// hasn't hit MaxPathLength, it also records a placeholder destination
// interface in the index so a later probe landing on dst is recognized as
// path growth rather than an unrelated new interface.
func (p *Path) checkReachability() {
	p.removeEndStars()
	p.rebuildIfaces()

	var last *Hop
	if len(p.Hops) > 0 {
		last = p.Hops[len(p.Hops)-1]
	}

	if last != nil && last.Contains(p.Dst) {
		p.Flags &^= FlagNoReachability
		last.pivotDestinationFirst(p.Dst)
		return
	}

	p.Flags |= FlagNoReachability
	if len(p.Hops) >= MaxPathLength {
		return
	}
	if p.Ifaces == nil {
		p.Ifaces = make(map[uint32]*iface.Interface)
	}
	if _, ok := p.Ifaces[p.Dst]; !ok {
		ph := iface.NewStar(len(p.Hops))
		ph.IP = p.Dst
		p.Ifaces[p.Dst] = ph
	}
}

func (p *Path) removeEndStars() {
	for len(p.Hops) > 0 && p.Hops[len(p.Hops)-1].IsStar() {
		p.Hops = p.Hops[:len(p.Hops)-1]
	}
}

// rebuildIfaces recomputes the IP -> interface index from scratch. Per
// SPEC_FULL.md's pointer-heavy re-architecture notes, the index is a
// borrowed view into the interfaces already owned by hops, rebuilt on
// mutation rather than maintained via back-pointers.
func (p *Path) rebuildIfaces() {
	idx := make(map[uint32]*iface.Interface)
	for _, h := range p.Hops {
		if h == nil || h.IsStar() {
			continue
		}
		for _, ifc := range h.Interfaces {
			if _, ok := idx[ifc.IP]; !ok {
				idx[ifc.IP] = ifc
			}
		}
	}
	p.Ifaces = idx
}
